package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"ledgersync/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// DefaultLookback is how far back the first window reaches when no cursor exists.
const DefaultLookback = 24 * time.Hour

// CursorStore holds the end of the last successfully synced window.
type CursorStore interface {
	Load(ctx context.Context) (time.Time, error)
	Save(ctx context.Context, t time.Time) error
}

type MemoryCursor struct {
	mu sync.Mutex
	at time.Time
}

func NewMemoryCursor(initial time.Time) *MemoryCursor {
	return &MemoryCursor{at: initial}
}

func (c *MemoryCursor) Load(context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at, nil
}

func (c *MemoryCursor) Save(_ context.Context, t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = t
	return nil
}

// RedisCursor persists the cursor so restarts resume where the last cycle ended.
type RedisCursor struct {
	rdb      redis.UniversalClient
	key      string
	lookback time.Duration
	now      func() time.Time
}

func NewRedisCursor(rdb redis.UniversalClient, lookback time.Duration) *RedisCursor {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &RedisCursor{
		rdb:      rdb,
		key:      rediskey.SyncCursorKey,
		lookback: lookback,
		now:      time.Now,
	}
}

func (c *RedisCursor) Load(ctx context.Context) (time.Time, error) {
	raw, err := c.rdb.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return c.now().Add(-c.lookback), nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func (c *RedisCursor) Save(ctx context.Context, t time.Time) error {
	return c.rdb.Set(ctx, c.key, t.UTC().Format(time.RFC3339Nano), 0).Err()
}
