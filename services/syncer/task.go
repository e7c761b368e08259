package syncer

import (
	"context"
	"time"

	"ledgersync/pkg/config"
	"ledgersync/pkg/task"
	"ledgersync/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewSyncTask builds the queued form of one sync cycle. Unique keeps a slow
// cycle from piling up duplicates behind it.
func NewSyncTask(ttl time.Duration) (*asynq.Task, []asynq.Option) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return asynq.NewTask(taskname.LedgerSyncRun, nil), []asynq.Option{
		asynq.Queue(taskname.QueueCritical),
		asynq.MaxRetry(0),
		asynq.Unique(ttl),
	}
}

// HandleSyncTask runs a cycle for a queued task. Failures are logged and
// swallowed; the next tick retries the same window.
func (c *Coordinator) HandleSyncTask(ctx context.Context, t *asynq.Task) error {
	if _, err := c.Sync(ctx); err != nil {
		zap.L().Warn("[Asynq] sync task finished without progress", zap.String("task_type", t.Type()), zap.Error(err))
	}
	return nil
}

func registerSyncHandler(mux *asynq.ServeMux, c *Coordinator) {
	mux.HandleFunc(taskname.LedgerSyncRun, c.HandleSyncTask)
}

type periodicResult struct {
	fx.Out
	Entry task.Periodic `group:"periodic"`
}

func providePeriodicSync(cfg *config.Config) periodicResult {
	t, opts := NewSyncTask(cfg.Sync.Interval)
	return periodicResult{Entry: task.Periodic{
		Cronspec: cfg.Sync.Cron,
		Task:     t,
		Opts:     opts,
	}}
}

// Ticker runs Sync in-process on a fixed interval, for deployments without asynq.
type Ticker struct {
	coordinator *Coordinator
	interval    time.Duration
	timeout     time.Duration
}

func NewTicker(c *Coordinator, interval, timeout time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Ticker{coordinator: c, interval: interval, timeout: timeout}
}

func startTicker(lc fx.Lifecycle, cfg *config.Config, c *Coordinator) {
	t := NewTicker(c, cfg.Sync.Interval, cfg.Sync.Timeout)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				t.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

// Run syncs once immediately and then on every tick until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	zap.L().Info("[Scheduler] sync ticker started", zap.Duration("interval", t.interval))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		t.tick(ctx)

		select {
		case <-ctx.Done():
			zap.L().Info("[Scheduler] sync ticker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	if _, err := t.coordinator.Sync(ctx); err != nil {
		zap.L().Warn("[Scheduler] sync tick made no progress", zap.Error(err))
		return
	}
	zap.L().Debug("[Scheduler] sync tick finished", zap.Duration("duration", time.Since(start)))
}
