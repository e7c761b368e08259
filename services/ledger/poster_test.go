package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ledgersync/pkg/rediskey"
	"ledgersync/services/testutil"
)

type failingUpserts struct {
	SummaryStore
	err error
}

func (f *failingUpserts) WithTrx(tx *gorm.DB) SummaryStore {
	return &failingUpserts{SummaryStore: f.SummaryStore.WithTrx(tx), err: f.err}
}

func (f *failingUpserts) Upsert(context.Context, *UserSummary) error { return f.err }

func TestPosterStoresAndReconciles(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	summaries := NewSummaryStore(db)
	poster := NewPoster(db, NewReconciler(NewTransactionStore(db), summaries))
	ctx := context.Background()

	res, err := poster.Post(ctx, "user1", []*Transaction{
		newTx("tx-1", "user1", TypeEarned, "500"),
		newTx("tx-1", "user1", TypeEarned, "500"),
		newTx("tx-2", "user1", TypePayout, "200"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)
	require.Equal(t, 1, res.Duplicates)
	require.NotNil(t, res.Summary)
	requireDecimal(t, "300", res.Summary.Balance)

	stored, err := summaries.Get(ctx, "user1")
	require.NoError(t, err)
	requireDecimal(t, "200", stored.PaidOut)
	requireDecimal(t, "300", stored.Balance)

	res, err = poster.Post(ctx, "user1", []*Transaction{newTx("tx-2", "user1", TypePayout, "200")})
	require.NoError(t, err)
	require.Zero(t, res.Inserted)
	require.Nil(t, res.Summary)
}

func TestPosterRollsBackOnSummaryFailure(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	boom := errors.New("disk full")
	summaries := &failingUpserts{SummaryStore: NewSummaryStore(db), err: boom}
	transactions := NewTransactionStore(db)
	poster := NewPoster(db, NewReconciler(transactions, summaries))

	_, err := poster.Post(context.Background(), "user1", []*Transaction{
		newTx("tx-1", "user1", TypeEarned, "500"),
	})
	require.ErrorIs(t, err, boom)

	exists, err := transactions.Exists(context.Background(), "tx-1")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPosterInvalidatesCachedSummary(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	rdb, mem := newMemoryRedis(t)
	cache := NewCachedSummaryStore(NewSummaryStore(db), rdb, time.Minute)
	poster := NewPoster(db, NewReconciler(NewTransactionStore(db), cache))
	ctx := context.Background()

	before, err := cache.Get(ctx, "user1")
	require.NoError(t, err)
	require.Nil(t, before)

	_, err = poster.Post(ctx, "user1", []*Transaction{newTx("tx-1", "user1", TypeEarned, "7")})
	require.NoError(t, err)

	mem.mu.Lock()
	gen := mem.data[rediskey.BuildSummaryGenKey("user1")]
	mem.mu.Unlock()
	require.Equal(t, "1", gen)

	after, err := cache.Get(ctx, "user1")
	require.NoError(t, err)
	require.NotNil(t, after)
	requireDecimal(t, "7", after.Earned)
}
