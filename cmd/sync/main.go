// Command sync runs a single sync cycle and exits non-zero if it fails.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"ledgersync/pkg/config"
	"ledgersync/pkg/db"
	"ledgersync/pkg/featureflags"
	"ledgersync/pkg/gen"
	"ledgersync/pkg/logger"
	"ledgersync/pkg/minio"
	"ledgersync/pkg/otelcol"
	"ledgersync/pkg/redis"
	"ledgersync/pkg/sequence"
	"ledgersync/services/ledger"
	"ledgersync/services/source"
	"ledgersync/services/syncer"
)

func main() {
	since := flag.Duration("since", 0, "sync the window [now-since, now) instead of resuming from the cursor")
	flag.Parse()

	cfg := config.LoadConfig(config.Params{})

	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		otelcol.Module,
		db.Module,
		gen.Module,
		featureflags.Module,
		source.Module,
		ledger.Module,
		syncer.Module,
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, c *syncer.Coordinator) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go runOnce(sd, c, cfg, *since)
					return nil
				},
			})
		}),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}
	if cfg.Sync.CursorStore == syncer.CursorRedis {
		opts = append(opts, redis.Module, sequence.Module)
	}
	if cfg.Minio.Enable {
		opts = append(opts, minio.Client)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		log.Fatalf("failed to build app: %v", err)
	}

	app.Run()
}

func runOnce(sd fx.Shutdowner, c *syncer.Coordinator, cfg *config.Config, since time.Duration) {
	ctx := context.Background()
	if cfg.Sync.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sync.Timeout)
		defer cancel()
	}

	var (
		res *syncer.Result
		err error
	)
	if since > 0 {
		now := time.Now()
		res, err = c.SyncWindow(ctx, now.Add(-since), now)
	} else {
		res, err = c.Sync(ctx)
	}

	code := 0
	if err != nil {
		zap.L().Error("sync failed", zap.Error(err))
		code = 1
	} else {
		zap.L().Info("sync completed",
			zap.String("run_id", res.RunID),
			zap.Int("inserted", res.Inserted),
			zap.Int("duplicates", res.Duplicates),
			zap.Strings("affected_users", res.AffectedUsers),
		)
	}

	if err := sd.Shutdown(fx.ExitCode(code)); err != nil {
		os.Exit(code)
	}
}
