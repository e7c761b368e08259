package sequence

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"ledgersync/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("sequence",
	fx.Provide(NewRedisGenerator),
)

type Generator interface {
	NextSyncRunCode(ctx context.Context) (string, error)
}

type RedisGenerator struct {
	rdb *redis.Client
	now func() time.Time
}

type Params struct {
	fx.In

	Redis *redis.Client
}

func NewRedisGenerator(p Params) Generator {
	return &RedisGenerator{
		rdb: p.Redis,
		now: time.Now,
	}
}

func (g *RedisGenerator) NextSyncRunCode(ctx context.Context) (string, error) {
	return g.nextDailyCode(ctx, "SYN")
}

// nextDailyCode yields PREFIX-YYMMDD-<base36 seq><2 random chars>; the
// counter key expires at the end of the day.
func (g *RedisGenerator) nextDailyCode(ctx context.Context, prefix string) (string, error) {
	now := g.now().UTC()
	today := now.Format("060102")
	key := rediskey.BuildSequenceKey(prefix, today)

	seq, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return "", err
	}

	if seq == 1 {
		expire := now.Truncate(24 * time.Hour).Add(24 * time.Hour).Sub(now)
		_ = g.rdb.Expire(ctx, key, expire).Err()
	}

	encodedSeq := strings.ToUpper(fmt.Sprintf("%03s", strconv.FormatInt(seq, 36)))
	randSuffix, _ := randomAlphaNumeric(2)

	return fmt.Sprintf("%s-%s-%s%s", prefix, today, encodedSeq, randSuffix), nil
}

func randomAlphaNumeric(n int) (string, error) {
	const chars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, n)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		b[i] = chars[num.Int64()]
	}
	return string(b), nil
}
