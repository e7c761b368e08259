package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledgersync/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type summaryStoreMock struct {
	getFn    func(ctx context.Context, userID string) (*UserSummary, error)
	upsertFn func(ctx context.Context, s *UserSummary) error
	scanFn   func(ctx context.Context) ([]*UserSummary, error)
}

func (m *summaryStoreMock) WithTrx(*gorm.DB) SummaryStore { return m }

func (m *summaryStoreMock) Get(ctx context.Context, userID string) (*UserSummary, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, nil
}

func (m *summaryStoreMock) Upsert(ctx context.Context, s *UserSummary) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	return nil
}

func (m *summaryStoreMock) ScanPositivePayouts(ctx context.Context) ([]*UserSummary, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx)
	}
	return nil, nil
}

type transactionStoreMock struct {
	existsFn func(ctx context.Context, id string) (bool, error)
	insertFn func(ctx context.Context, t *Transaction) (bool, error)
	listFn   func(ctx context.Context, userID string) ([]*Transaction, error)
}

func (m *transactionStoreMock) WithTrx(*gorm.DB) TransactionStore { return m }

func (m *transactionStoreMock) Exists(ctx context.Context, id string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return false, nil
}

func (m *transactionStoreMock) Insert(ctx context.Context, t *Transaction) (bool, error) {
	if m.insertFn != nil {
		return m.insertFn(ctx, t)
	}
	return true, nil
}

func (m *transactionStoreMock) ListByUser(ctx context.Context, userID string) ([]*Transaction, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func newTx(id, userID string, typ TransactionType, amount string) *Transaction {
	return &Transaction{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Date(2023, 3, 16, 12, 33, 11, 0, time.UTC),
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
	}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestTransactionValidate(t *testing.T) {
	require.NoError(t, newTx("a", "u", TypeEarned, "0").Validate())
	require.Error(t, newTx("", "u", TypeEarned, "1").Validate())
	require.Error(t, newTx("a", "", TypeEarned, "1").Validate())
	require.Error(t, newTx("a", "u", TransactionType("refund"), "1").Validate())
	require.Error(t, newTx("a", "u", TypeSpent, "-0.01").Validate())
}

func TestTransactionStoreInsertIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	store := NewTransactionStore(db)
	ctx := context.Background()

	exists, err := store.Exists(ctx, "tx-1")
	require.NoError(t, err)
	require.False(t, exists)

	inserted, err := store.Insert(ctx, newTx("tx-1", "user1", TypeEarned, "10.50"))
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = store.Insert(ctx, newTx("tx-1", "user1", TypeEarned, "99"))
	require.NoError(t, err)
	require.False(t, inserted)

	exists, err = store.Exists(ctx, "tx-1")
	require.NoError(t, err)
	require.True(t, exists)

	history, err := store.ListByUser(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	requireDecimal(t, "10.5", history[0].Amount)
}

func TestRecalculateAggregates(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	transactions := NewTransactionStore(db)
	summaries := NewSummaryStore(db)
	r := NewReconciler(transactions, summaries)
	ctx := context.Background()

	for _, tx := range []*Transaction{
		newTx("t1", "user1", TypeEarned, "500"),
		newTx("t2", "user1", TypeSpent, "100"),
		newTx("t3", "user1", TypePayout, "200"),
		newTx("t4", "user2", TypeEarned, "7"),
	} {
		_, err := transactions.Insert(ctx, tx)
		require.NoError(t, err)
	}

	s, err := r.Recalculate(ctx, "user1")
	require.NoError(t, err)
	requireDecimal(t, "500", s.Earned)
	requireDecimal(t, "100", s.Spent)
	requireDecimal(t, "200", s.Payout)
	requireDecimal(t, "200", s.PaidOut)
	requireDecimal(t, "200", s.Balance)
	require.Equal(t, int64(3), s.TransactionCount)

	stored, err := summaries.Get(ctx, "user1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	requireDecimal(t, "200", stored.Balance)
	requireDecimal(t, "200", stored.PaidOut)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	transactions := NewTransactionStore(db)
	summaries := NewSummaryStore(db)
	r := NewReconciler(transactions, summaries)
	ctx := context.Background()

	_, err := transactions.Insert(ctx, newTx("t1", "074092", TypeEarned, "1.2"))
	require.NoError(t, err)
	_, err = transactions.Insert(ctx, newTx("t2", "074092", TypeSpent, "12"))
	require.NoError(t, err)

	first, err := r.Recalculate(ctx, "074092")
	require.NoError(t, err)
	second, err := r.Recalculate(ctx, "074092")
	require.NoError(t, err)

	for _, pair := range [][2]decimal.Decimal{
		{first.Earned, second.Earned},
		{first.Spent, second.Spent},
		{first.Payout, second.Payout},
		{first.PaidOut, second.PaidOut},
		{first.Balance, second.Balance},
	} {
		require.True(t, pair[0].Equal(pair[1]))
	}
	requireDecimal(t, "-10.8", second.Balance)

	var rows int64
	require.NoError(t, db.Model(&UserSummary{}).Count(&rows).Error)
	require.Equal(t, int64(1), rows)
}

func TestRecalculateWithoutHistoryWritesZeroSummary(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	summaries := NewSummaryStore(db)
	r := NewReconciler(NewTransactionStore(db), summaries)

	s, err := r.Recalculate(context.Background(), "ghost")
	require.NoError(t, err)
	require.True(t, s.Balance.IsZero())

	stored, err := summaries.Get(context.Background(), "ghost")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.True(t, stored.Payout.IsZero())
}

func TestRecalculatePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")

	r := NewReconciler(
		&transactionStoreMock{listFn: func(context.Context, string) ([]*Transaction, error) { return nil, boom }},
		&summaryStoreMock{},
	)
	_, err := r.Recalculate(context.Background(), "user1")
	require.ErrorIs(t, err, boom)

	r = NewReconciler(
		&transactionStoreMock{},
		&summaryStoreMock{upsertFn: func(context.Context, *UserSummary) error { return boom }},
	)
	_, err = r.Recalculate(context.Background(), "user1")
	require.ErrorIs(t, err, boom)
}

func TestSummaryStoreGetMissing(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	summaries := NewSummaryStore(db)

	s, err := summaries.Get(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = summaries.Get(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestScanPositivePayouts(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	summaries := NewSummaryStore(db)
	ctx := context.Background()

	user1 := NewUserSummary("user1")
	user1.Payout = decimal.NewFromInt(100)
	user1.PaidOut = user1.Payout
	require.NoError(t, summaries.Upsert(ctx, user1))
	require.NoError(t, summaries.Upsert(ctx, NewUserSummary("user2")))

	out, err := summaries.ScanPositivePayouts(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "user1", out[0].UserID)
	requireDecimal(t, "100", out[0].Payout)
}

func TestSummaryUpsertOverwrites(t *testing.T) {
	db := testutil.NewTestDB(t, Models()...)
	summaries := NewSummaryStore(db)
	ctx := context.Background()

	s := NewUserSummary("user1")
	s.Earned = decimal.NewFromInt(5)
	require.NoError(t, summaries.Upsert(ctx, s))

	s = NewUserSummary("user1")
	s.Earned = decimal.NewFromInt(9)
	require.NoError(t, summaries.Upsert(ctx, s))

	got, err := summaries.Get(ctx, "user1")
	require.NoError(t, err)
	requireDecimal(t, "9", got.Earned)
}

func unreachableRedis(t *testing.T) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestCachedSummaryStoreDegradesWithoutRedis(t *testing.T) {
	calls := 0
	inner := &summaryStoreMock{
		getFn: func(_ context.Context, userID string) (*UserSummary, error) {
			calls++
			return NewUserSummary(userID), nil
		},
	}
	cache := NewCachedSummaryStore(inner, unreachableRedis(t), time.Minute)

	s, err := cache.Get(context.Background(), "user1")
	require.NoError(t, err)
	require.Equal(t, "user1", s.UserID)
	require.Equal(t, 1, calls)

	require.NoError(t, cache.Upsert(context.Background(), s))
}

func TestCachedSummaryStorePropagatesUpsertError(t *testing.T) {
	boom := errors.New("write failed")
	cache := NewCachedSummaryStore(&summaryStoreMock{
		upsertFn: func(context.Context, *UserSummary) error { return boom },
	}, unreachableRedis(t), time.Minute)

	require.ErrorIs(t, cache.Upsert(context.Background(), NewUserSummary("user1")), boom)
}
