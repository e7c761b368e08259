package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledgersync/pkg/db/option"
	"ledgersync/pkg/db/pagination"
	"ledgersync/pkg/gen"
	"ledgersync/pkg/repository"
	"ledgersync/pkg/sequence"
	"ledgersync/services/ledger"
	"ledgersync/services/source"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	DefaultConcurrency = 4
	DefaultRunsLimit   = 20
	MaxRunsLimit       = 100
)

// Poster stores one user's transactions and rebuilds that user's summary as a
// single unit.
type Poster interface {
	Post(ctx context.Context, userID string, txs []*ledger.Transaction) (*ledger.PostResult, error)
}

// Coordinator runs fetch, ingest and reconcile cycles. Cycles are
// non-reentrant: overlapping callers of Sync and SyncWindow queue on the mutex.
type Coordinator struct {
	mu sync.Mutex

	source   source.Source
	poster   Poster
	cursor   CursorStore
	runs     repository.Repository[SyncRun]
	archiver Archiver
	codes    sequence.Generator
	node     *gen.SnowflakeNode

	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

type Options struct {
	Source      source.Source
	Poster      Poster
	Cursor      CursorStore
	DB          *gorm.DB
	Node        *gen.SnowflakeNode
	Archiver    Archiver
	Codes       sequence.Generator
	Concurrency int
	Timeout     time.Duration
}

func NewCoordinator(o Options) *Coordinator {
	c := &Coordinator{
		source:      o.Source,
		poster:      o.Poster,
		cursor:      o.Cursor,
		runs:        repository.ProvideStore[SyncRun](o.DB),
		archiver:    o.Archiver,
		codes:       o.Codes,
		node:        o.Node,
		concurrency: o.Concurrency,
		timeout:     o.Timeout,
		now:         time.Now,
	}
	if c.cursor == nil {
		c.cursor = NewMemoryCursor(c.now().Add(-DefaultLookback))
	}
	if c.archiver == nil {
		c.archiver = NopArchiver()
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultConcurrency
	}
	return c
}

// Sync runs one cycle over [cursor, now) and advances the cursor only when the
// cycle succeeds. A failed cycle leaves the window to be retried next time.
func (c *Coordinator) Sync(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	since, err := c.cursor.Load(ctx)
	if err != nil {
		zap.L().Error("failed to load sync cursor", zap.Error(err))
		return nil, fmt.Errorf("load sync cursor: %w", err)
	}
	until := c.now()

	res, err := c.syncWindow(ctx, since, until)
	if err != nil {
		zap.L().Error("sync cycle failed, cursor kept",
			zap.Time("cursor", since),
			zap.Error(err),
		)
		return nil, err
	}

	if err := c.cursor.Save(ctx, until); err != nil {
		zap.L().Error("failed to advance sync cursor", zap.Time("cursor", until), zap.Error(err))
		return nil, fmt.Errorf("save sync cursor: %w", err)
	}

	return res, nil
}

// SyncWindow runs one cycle over an explicit window. It does not touch the cursor.
func (c *Coordinator) SyncWindow(ctx context.Context, since, until time.Time) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncWindow(ctx, since, until)
}

func (c *Coordinator) syncWindow(ctx context.Context, since, until time.Time) (*Result, error) {
	ctx, span := otel.Tracer("syncer").Start(ctx, "syncer.SyncWindow")
	defer span.End()

	started := c.now()
	defer func() { cycleDuration.Observe(time.Since(started).Seconds()) }()

	run := c.startRun(ctx, since, until, started)
	span.SetAttributes(
		attribute.String("sync.run_id", run.ID),
		attribute.String("sync.window_start", since.UTC().Format(time.RFC3339)),
		attribute.String("sync.window_end", until.UTC().Format(time.RFC3339)),
	)

	log := zap.L().With(
		zap.String("run_id", run.ID),
		zap.String("code", run.Code),
		zap.Time("window_start", since),
		zap.Time("window_end", until),
	)
	log.Info("sync cycle started")

	res := &Result{
		RunID:         run.ID,
		Code:          run.Code,
		WindowStart:   since,
		WindowEnd:     until,
		AffectedUsers: []string{},
	}

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		cyclesTotal.WithLabelValues(string(RunStatusFailed)).Inc()
		c.finishRun(ctx, run, res, err)
		log.Error("sync cycle failed", zap.Error(err))
		return nil, err
	}

	// the timeout bounds fetch, ingest and reconcile together
	cycleCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	batch, err := c.source.Fetch(cycleCtx, since, until)
	if err != nil {
		return fail(fmt.Errorf("fetch transactions: %w", err))
	}
	res.Fetched = len(batch.Items)
	res.Fallback = batch.Fallback

	if len(batch.Items) == 0 {
		cyclesTotal.WithLabelValues(string(RunStatusSuccess)).Inc()
		c.finishRun(ctx, run, res, nil)
		log.Info("sync cycle finished, empty window")
		return res, nil
	}

	if err := c.ingest(cycleCtx, run, batch, res); err != nil {
		return fail(err)
	}

	if err := c.archiver.Archive(ctx, run, batch); err != nil {
		log.Warn("failed to archive sync batch", zap.Error(err))
	}

	cyclesTotal.WithLabelValues(string(RunStatusSuccess)).Inc()
	c.finishRun(ctx, run, res, nil)
	log.Info("sync cycle finished",
		zap.Int("fetched", res.Fetched),
		zap.Int("inserted", res.Inserted),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("rejected", res.Rejected),
		zap.Int("affected_users", len(res.AffectedUsers)),
		zap.Bool("fallback", res.Fallback),
	)
	return res, nil
}

// ingest validates the batch in order, then posts each user's share in its own
// database transaction; distinct users run in parallel. A failed user is rolled
// back on its own, and the next cycle over the same window picks it up again.
func (c *Coordinator) ingest(ctx context.Context, run *SyncRun, batch *source.Batch, res *Result) error {
	groups := newUserBatches()
	syncedAt := c.now()

	for _, item := range batch.Items {
		tx := &ledger.Transaction{
			ID:        item.ID,
			UserID:    item.UserID,
			CreatedAt: item.CreatedAt,
			Type:      ledger.TransactionType(item.Type),
			Amount:    item.Amount.Round(ledger.AmountPlaces),
			SyncedAt:  syncedAt,
			SyncRunID: run.ID,
		}

		if err := tx.Validate(); err != nil {
			res.Rejected++
			transactionsTotal.WithLabelValues("rejected").Inc()
			zap.L().Warn("rejected upstream transaction", zap.String("run_id", run.ID), zap.Error(err))
			continue
		}
		groups.Add(tx)
	}

	posted := make([]*ledger.PostResult, groups.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, userID := range groups.users {
		g.Go(func() error {
			out, err := c.poster.Post(gctx, userID, groups.txs[i])
			if err != nil {
				return fmt.Errorf("post user %s: %w", userID, err)
			}
			posted[i] = out
			return nil
		})
	}
	err := g.Wait()

	// committed users count even when another user failed
	for i, out := range posted {
		if out == nil {
			continue
		}
		res.Inserted += out.Inserted
		res.Duplicates += out.Duplicates
		transactionsTotal.WithLabelValues("inserted").Add(float64(out.Inserted))
		transactionsTotal.WithLabelValues("duplicate").Add(float64(out.Duplicates))
		if out.Inserted > 0 {
			res.AffectedUsers = append(res.AffectedUsers, groups.users[i])
		}
	}
	return err
}

func (c *Coordinator) startRun(ctx context.Context, since, until, started time.Time) *SyncRun {
	run := &SyncRun{
		WindowStart:   since,
		WindowEnd:     until,
		Status:        RunStatusRunning,
		AffectedUsers: []byte("[]"),
		StartedAt:     started,
	}
	if c.node != nil {
		run.ID = c.node.GenerateID().String()
	} else {
		run.ID = fmt.Sprintf("%d", started.UnixNano())
	}

	if c.codes != nil {
		code, err := c.codes.NextSyncRunCode(ctx)
		if err != nil {
			zap.L().Warn("failed to allocate sync run code", zap.Error(err))
		}
		run.Code = code
	}

	if err := c.runs.Create(ctx, run); err != nil {
		zap.L().Warn("failed to record sync run", zap.String("run_id", run.ID), zap.Error(err))
	}
	return run
}

func (c *Coordinator) finishRun(ctx context.Context, run *SyncRun, res *Result, cause error) {
	completed := c.now()
	run.CompletedAt = &completed
	run.Status = RunStatusSuccess
	if cause != nil {
		run.Status = RunStatusFailed
		run.ErrorMsg = cause.Error()
	}
	res.record(run)

	// the cycle's own context may already be done; bookkeeping still gets written
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := c.runs.Update(ctx, run.ID, map[string]any{
		"status":         run.Status,
		"fetched":        run.Fetched,
		"inserted":       run.Inserted,
		"duplicates":     run.Duplicates,
		"rejected":       run.Rejected,
		"affected_users": run.AffectedUsers,
		"fallback":       run.Fallback,
		"error_msg":      run.ErrorMsg,
		"completed_at":   run.CompletedAt,
	})
	if err != nil {
		zap.L().Warn("failed to update sync run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// ListRuns returns sync runs newest first, continuing after cursor when set.
func (c *Coordinator) ListRuns(ctx context.Context, limit int, cursor string) ([]*SyncRun, *pagination.PageInfo, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	if limit > MaxRunsLimit {
		limit = MaxRunsLimit
	}

	var after *pagination.Cursor
	if cursor != "" {
		decoded, err := pagination.DecodeCursor(cursor)
		if err != nil {
			return nil, nil, err
		}
		after = decoded
	}

	runs, err := c.runs.Find(ctx, &SyncRun{},
		pagination.Before("started_at", after),
		option.WithSortBy(option.QuerySortBy{SortBy: "started_at", OrderBy: "desc"}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
		option.WithLimit(limit+1),
	)
	if err != nil {
		return nil, nil, err
	}

	runs, info := pagination.Trim(runs, limit, func(r *SyncRun) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.StartedAt, ID: r.ID}
	})
	return runs, info, nil
}
