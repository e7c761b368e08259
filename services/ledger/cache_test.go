package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"ledgersync/services/testutil"
)

// memoryRedis answers the handful of commands the summary cache issues from a
// map, through the client's own hook chain, so no server is needed.
type memoryRedis struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newMemoryRedis(t *testing.T) (*redis.Client, *memoryRedis) {
	t.Helper()
	m := &memoryRedis{data: make(map[string]string)}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	rdb.AddHook(m)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb, m
}

func (m *memoryRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (m *memoryRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (m *memoryRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		m.mu.Lock()
		defer m.mu.Unlock()

		args := cmd.Args()
		key := fmt.Sprint(args[1])
		switch c := cmd.(type) {
		case *redis.StringCmd:
			v, ok := m.data[key]
			if !ok {
				return redis.Nil
			}
			c.SetVal(v)
		case *redis.StatusCmd:
			switch v := args[2].(type) {
			case []byte:
				m.data[key] = string(v)
			default:
				m.data[key] = fmt.Sprint(v)
			}
			m.sets++
			c.SetVal("OK")
		case *redis.IntCmd:
			n, _ := strconv.ParseInt(m.data[key], 10, 64)
			n++
			m.data[key] = strconv.FormatInt(n, 10)
			c.SetVal(n)
		case *redis.BoolCmd:
			c.SetVal(true)
		default:
			return fmt.Errorf("unsupported command %s", cmd.Name())
		}
		return nil
	}
}

func (m *memoryRedis) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

func (m *memoryRedis) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func TestCachedSummaryStoreServesHits(t *testing.T) {
	rdb, _ := newMemoryRedis(t)
	calls := 0
	inner := &summaryStoreMock{
		getFn: func(_ context.Context, userID string) (*UserSummary, error) {
			calls++
			s := NewUserSummary(userID)
			s.Balance = decimal.RequireFromString("-40.8")
			return s, nil
		},
	}
	cache := NewCachedSummaryStore(inner, rdb, time.Minute)
	ctx := context.Background()

	first, err := cache.Get(ctx, "074092")
	require.NoError(t, err)
	second, err := cache.Get(ctx, "074092")
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.True(t, first.Balance.Equal(second.Balance))
	requireDecimal(t, "-40.8", second.Balance)
}

func TestCachedSummaryStoreUpsertInvalidates(t *testing.T) {
	rdb, _ := newMemoryRedis(t)
	db := testutil.NewTestDB(t, Models()...)
	cache := NewCachedSummaryStore(NewSummaryStore(db), rdb, time.Minute)
	ctx := context.Background()

	s := NewUserSummary("user1")
	s.Earned = decimal.NewFromInt(5)
	require.NoError(t, cache.Upsert(ctx, s))

	got, err := cache.Get(ctx, "user1")
	require.NoError(t, err)
	requireDecimal(t, "5", got.Earned)

	s.Earned = decimal.NewFromInt(9)
	require.NoError(t, cache.Upsert(ctx, s))

	got, err = cache.Get(ctx, "user1")
	require.NoError(t, err)
	requireDecimal(t, "9", got.Earned)
}

func TestCachedSummaryStoreIgnoresRacedFill(t *testing.T) {
	rdb, mem := newMemoryRedis(t)
	db := testutil.NewTestDB(t, Models()...)
	store := NewSummaryStore(db)
	ctx := context.Background()

	stale := NewUserSummary("user1")
	stale.Earned = decimal.NewFromInt(1)
	require.NoError(t, store.Upsert(ctx, stale))

	var cache *CachedSummaryStore
	racing := &summaryStoreMock{
		getFn: func(ctx context.Context, userID string) (*UserSummary, error) {
			old, err := store.Get(ctx, userID)
			// a reconcile commits and invalidates while this read is in flight
			fresh := NewUserSummary(userID)
			fresh.Earned = decimal.NewFromInt(2)
			require.NoError(t, store.Upsert(ctx, fresh))
			cache.Invalidate(ctx, userID)
			return old, err
		},
	}
	cache = NewCachedSummaryStore(racing, rdb, time.Minute)

	got, err := cache.Get(ctx, "user1")
	require.NoError(t, err)
	requireDecimal(t, "1", got.Earned)
	require.Equal(t, 1, mem.setCount())

	cache.next = store
	got, err = cache.Get(ctx, "user1")
	require.NoError(t, err)
	requireDecimal(t, "2", got.Earned)
}

func TestCachedSummaryStoreDropsUndecodableEntry(t *testing.T) {
	rdb, mem := newMemoryRedis(t)
	mem.put("ledgersync:summary:user1:0", "{not json")

	inner := &summaryStoreMock{
		getFn: func(_ context.Context, userID string) (*UserSummary, error) {
			return NewUserSummary(userID), nil
		},
	}
	got, err := NewCachedSummaryStore(inner, rdb, time.Minute).Get(context.Background(), "user1")
	require.NoError(t, err)
	require.Equal(t, "user1", got.UserID)
}
