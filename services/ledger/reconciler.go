package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Reconciler struct {
	transactions TransactionStore
	summaries    SummaryStore
	now          func() time.Time
}

func NewReconciler(transactions TransactionStore, summaries SummaryStore) *Reconciler {
	return &Reconciler{
		transactions: transactions,
		summaries:    summaries,
		now:          time.Now,
	}
}

// WithTrx returns a reconciler whose reads and writes run inside tx.
func (r *Reconciler) WithTrx(tx *gorm.DB) *Reconciler {
	return &Reconciler{
		transactions: r.transactions.WithTrx(tx),
		summaries:    r.summaries.WithTrx(tx),
		now:          r.now,
	}
}

// Totals folds a transaction history into earned/spent/payout sums.
func Totals(history []*Transaction) (earned, spent, payout decimal.Decimal) {
	earned, spent, payout = decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range history {
		switch t.Type {
		case TypeEarned:
			earned = earned.Add(t.Amount)
		case TypeSpent:
			spent = spent.Add(t.Amount)
		case TypePayout:
			payout = payout.Add(t.Amount)
		}
	}
	return earned, spent, payout
}

// Recalculate rebuilds the user's summary from their complete history and
// overwrites the stored row. Calling it twice without new inserts yields the
// same aggregate.
func (r *Reconciler) Recalculate(ctx context.Context, userID string) (*UserSummary, error) {
	ctx, span := otel.Tracer("ledger").Start(ctx, "ledger.Recalculate")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	history, err := r.transactions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", userID, err)
	}

	summary, err := r.summaries.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load summary for %s: %w", userID, err)
	}
	if summary == nil {
		summary = NewUserSummary(userID)
	}

	earned, spent, payout := Totals(history)
	summary.Earned = earned
	summary.Spent = spent
	summary.Payout = payout
	// payouts are disbursed as soon as they are recorded
	summary.PaidOut = payout
	summary.Balance = earned.Sub(spent).Sub(summary.PaidOut)
	summary.TransactionCount = int64(len(history))
	summary.UpdatedAt = r.now()

	if err := r.summaries.Upsert(ctx, summary); err != nil {
		return nil, fmt.Errorf("upsert summary for %s: %w", userID, err)
	}

	zap.L().Debug("summary reconciled",
		zap.String("user_id", userID),
		zap.Int("transactions", len(history)),
		zap.String("balance", summary.Balance.String()),
	)

	return summary, nil
}
