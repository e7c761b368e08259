package summary

import (
	"context"
	"errors"
	"strings"

	"ledgersync/pkg/db/pagination"
	"ledgersync/pkg/errutil"
	"ledgersync/services/ledger"
	"ledgersync/services/syncer"

	"go.uber.org/zap"
)

const SyncCompletedMessage = "Transaction sync completed"

type Syncer interface {
	Sync(ctx context.Context) (*syncer.Result, error)
	ListRuns(ctx context.Context, limit int, cursor string) ([]*syncer.SyncRun, *pagination.PageInfo, error)
}

// Service is the read side. It only touches the summary store; ForceSync
// delegates to the coordinator.
type Service struct {
	summaries ledger.SummaryStore
	syncer    Syncer
}

func NewService(summaries ledger.SummaryStore, s Syncer) *Service {
	return &Service{summaries: summaries, syncer: s}
}

func (s *Service) GetUserSummary(ctx context.Context, userID string) (*ledger.UserSummary, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errutil.BadRequest("User ID is required", nil)
	}

	summary, err := s.summaries.Get(ctx, userID)
	if err != nil {
		zap.L().Error("failed to load summary", zap.String("user_id", userID), zap.Error(err))
		return nil, errutil.Internal("failed to load summary", err)
	}
	if summary == nil {
		return nil, errutil.NotFound("User not found", nil)
	}

	return summary, nil
}

func (s *Service) ListPayoutSummaries(ctx context.Context) ([]ledger.PayoutSummary, error) {
	rows, err := s.summaries.ScanPositivePayouts(ctx)
	if err != nil {
		zap.L().Error("failed to scan payouts", zap.Error(err))
		return nil, errutil.Internal("failed to list payouts", err)
	}

	out := make([]ledger.PayoutSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, ledger.PayoutSummary{UserID: r.UserID, PayoutAmount: r.Payout})
	}
	return out, nil
}

// ForceSync runs the same cycle the scheduler runs and reports its outcome.
func (s *Service) ForceSync(ctx context.Context) (*syncer.Result, error) {
	res, err := s.syncer.Sync(ctx)
	if err != nil {
		return nil, errutil.BadGateway("Transaction sync failed", err)
	}
	return res, nil
}

func (s *Service) ListSyncRuns(ctx context.Context, limit int, cursor string) ([]*syncer.SyncRun, *pagination.PageInfo, error) {
	if limit < 0 || limit > syncer.MaxRunsLimit {
		return nil, nil, errutil.BadRequest("limit must be between 1 and 100", nil)
	}

	runs, info, err := s.syncer.ListRuns(ctx, limit, cursor)
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return nil, nil, errutil.BadRequest("invalid cursor", nil)
	}
	if err != nil {
		return nil, nil, errutil.Internal("failed to list sync runs", err)
	}
	return runs, info, nil
}
