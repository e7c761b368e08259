package ledger

import (
	"context"

	"ledgersync/pkg/db/option"
	"ledgersync/pkg/repository"

	"gorm.io/gorm"
)

type TransactionStore interface {
	WithTrx(tx *gorm.DB) TransactionStore
	Exists(ctx context.Context, id string) (bool, error)
	// Insert stores t unless its id is already present and reports whether a row was written.
	Insert(ctx context.Context, t *Transaction) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*Transaction, error)
}

type SummaryStore interface {
	// WithTrx binds the store to tx; Get then locks the row it reads.
	WithTrx(tx *gorm.DB) SummaryStore
	// Get returns (nil, nil) when the user has no summary yet.
	Get(ctx context.Context, userID string) (*UserSummary, error)
	Upsert(ctx context.Context, s *UserSummary) error
	ScanPositivePayouts(ctx context.Context) ([]*UserSummary, error)
}

type transactionStore struct {
	repo repository.Repository[Transaction]
}

func NewTransactionStore(db *gorm.DB) TransactionStore {
	return &transactionStore{repo: repository.ProvideStore[Transaction](db)}
}

func (s *transactionStore) WithTrx(tx *gorm.DB) TransactionStore {
	return &transactionStore{repo: s.repo.WithTrx(tx)}
}

func (s *transactionStore) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	n, err := s.repo.Count(ctx, &Transaction{ID: id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *transactionStore) Insert(ctx context.Context, t *Transaction) (bool, error) {
	return s.repo.CreateIfAbsent(ctx, t)
}

func (s *transactionStore) ListByUser(ctx context.Context, userID string) ([]*Transaction, error) {
	if userID == "" {
		return nil, nil
	}
	return s.repo.Find(ctx, &Transaction{UserID: userID},
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}),
	)
}

type summaryStore struct {
	repo    repository.Repository[UserSummary]
	locking bool
}

func NewSummaryStore(db *gorm.DB) SummaryStore {
	return &summaryStore{repo: repository.ProvideStore[UserSummary](db)}
}

func (s *summaryStore) WithTrx(tx *gorm.DB) SummaryStore {
	return &summaryStore{repo: s.repo.WithTrx(tx), locking: true}
}

func (s *summaryStore) Get(ctx context.Context, userID string) (*UserSummary, error) {
	if userID == "" {
		return nil, nil
	}
	var opts []option.QueryOption
	if s.locking {
		opts = append(opts, option.WithLockingUpdate())
	}
	return s.repo.FindOne(ctx, &UserSummary{UserID: userID}, opts...)
}

func (s *summaryStore) Upsert(ctx context.Context, summary *UserSummary) error {
	return s.repo.Upsert(ctx, summary, "user_id")
}

func (s *summaryStore) ScanPositivePayouts(ctx context.Context) ([]*UserSummary, error) {
	return s.repo.Find(ctx, &UserSummary{},
		option.ApplyOperator(option.Condition{Field: "payout", Operator: option.GT, Value: 0}),
		option.WithSortBy(option.QuerySortBy{SortBy: "user_id", OrderBy: "asc"}),
	)
}
