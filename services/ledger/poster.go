package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Invalidator is implemented by summary stores that keep copies outside the
// database and must drop them once a write has committed.
type Invalidator interface {
	Invalidate(ctx context.Context, userID string)
}

type PostResult struct {
	Inserted   int
	Duplicates int
	// Summary is nil when nothing new was stored.
	Summary *UserSummary
}

// Poster applies one user's share of a batch. The inserts and the summary
// rebuild commit together, so a stored transaction is always reflected in its
// user's summary.
type Poster struct {
	db         *gorm.DB
	reconciler *Reconciler
}

func NewPoster(db *gorm.DB, reconciler *Reconciler) *Poster {
	return &Poster{db: db, reconciler: reconciler}
}

// Post stores the unseen transactions of userID in order and, if any were new,
// recalculates the user's summary. Everything rolls back on error.
func (p *Poster) Post(ctx context.Context, userID string, batch []*Transaction) (*PostResult, error) {
	res := &PostResult{}

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := p.reconciler.WithTrx(tx)

		for _, t := range batch {
			exists, err := rec.transactions.Exists(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("check transaction %s: %w", t.ID, err)
			}
			if exists {
				res.Duplicates++
				continue
			}

			inserted, err := rec.transactions.Insert(ctx, t)
			if err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
			if !inserted {
				res.Duplicates++
				continue
			}
			res.Inserted++
		}

		if res.Inserted == 0 {
			return nil
		}

		summary, err := rec.Recalculate(ctx, userID)
		if err != nil {
			return err
		}
		res.Summary = summary
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Summary != nil {
		if inv, ok := p.reconciler.summaries.(Invalidator); ok {
			inv.Invalidate(ctx, userID)
		}
	}

	zap.L().Debug("user batch posted",
		zap.String("user_id", userID),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
	)
	return res, nil
}
