package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ledgersync/pkg/rediskey"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_summary_cache_hits_total",
		Help: "Summary reads served from redis",
	})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledgersync_summary_cache_miss_total",
		Help: "Summary reads that went to the database",
	})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMiss)
}

// CachedSummaryStore is a read-through redis cache in front of a SummaryStore.
//
// Entries are keyed by a per-user generation. Invalidate bumps the generation
// instead of deleting, so a read that raced a write can only fill a key that
// nobody looks up anymore. Redis failures degrade to the inner store.
type CachedSummaryStore struct {
	next  SummaryStore
	rdb   redis.UniversalClient
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedSummaryStore(next SummaryStore, rdb redis.UniversalClient, ttl time.Duration) *CachedSummaryStore {
	return &CachedSummaryStore{next: next, rdb: rdb, ttl: ttl}
}

// WithTrx bypasses the cache; reads inside a transaction must see the locked row.
func (c *CachedSummaryStore) WithTrx(tx *gorm.DB) SummaryStore {
	return c.next.WithTrx(tx)
}

func (c *CachedSummaryStore) generation(ctx context.Context, userID string) (string, error) {
	gen, err := c.rdb.Get(ctx, rediskey.BuildSummaryGenKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

func (c *CachedSummaryStore) Get(ctx context.Context, userID string) (*UserSummary, error) {
	gen, err := c.generation(ctx, userID)
	if err != nil {
		zap.L().Warn("summary cache unavailable", zap.String("user_id", userID), zap.Error(err))
		cacheMiss.Inc()
		return c.next.Get(ctx, userID)
	}
	key := rediskey.BuildSummaryKey(userID, gen)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var s UserSummary
		if err := json.Unmarshal(raw, &s); err == nil {
			cacheHits.Inc()
			return &s, nil
		}
		zap.L().Warn("dropping undecodable cached summary", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		zap.L().Warn("summary cache read failed", zap.String("key", key), zap.Error(err))
	}

	cacheMiss.Inc()
	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := c.next.Get(ctx, userID)
		if err != nil || s == nil {
			return s, err
		}
		if payload, err := json.Marshal(s); err == nil {
			if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
				zap.L().Warn("summary cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s, _ := v.(*UserSummary)
	return s, nil
}

func (c *CachedSummaryStore) Upsert(ctx context.Context, s *UserSummary) error {
	if err := c.next.Upsert(ctx, s); err != nil {
		return err
	}
	c.Invalidate(ctx, s.UserID)
	return nil
}

// Invalidate retires every cached copy of the user's summary.
func (c *CachedSummaryStore) Invalidate(ctx context.Context, userID string) {
	genKey := rediskey.BuildSummaryGenKey(userID)
	if err := c.rdb.Incr(ctx, genKey).Err(); err != nil {
		zap.L().Warn("summary cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	// outlive every entry written under an older generation
	if c.ttl > 0 {
		if err := c.rdb.Expire(ctx, genKey, 10*c.ttl).Err(); err != nil {
			zap.L().Warn("summary cache generation ttl failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

func (c *CachedSummaryStore) ScanPositivePayouts(ctx context.Context) ([]*UserSummary, error) {
	return c.next.ScanPositivePayouts(ctx)
}
