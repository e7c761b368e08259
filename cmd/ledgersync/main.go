package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"ledgersync/pkg/config"
	"ledgersync/pkg/db"
	"ledgersync/pkg/featureflags"
	"ledgersync/pkg/gen"
	"ledgersync/pkg/hashistack/secretmanager"
	"ledgersync/pkg/health"
	"ledgersync/pkg/httpapi"
	"ledgersync/pkg/logger"
	"ledgersync/pkg/minio"
	"ledgersync/pkg/otelcol"
	"ledgersync/pkg/profiling"
	"ledgersync/pkg/redis"
	"ledgersync/pkg/sequence"
	"ledgersync/pkg/server"
	"ledgersync/pkg/task"
	"ledgersync/services/ledger"
	"ledgersync/services/source"
	"ledgersync/services/summary"
	"ledgersync/services/syncer"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	opts := []fx.Option{
		fx.Supply(cfg),
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		gen.Module,
		featureflags.Module,
		health.Module,
		source.Module,
		ledger.Module,
		syncer.Module,
		summary.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		health.GRPCModule,
		fxLogger,
	}

	if usesRedis(cfg) {
		opts = append(opts, redis.Module, sequence.Module)
	}
	if cfg.Minio.Enable {
		opts = append(opts, minio.Client)
	}

	switch cfg.Sync.Scheduler {
	case syncer.SchedulerAsynq:
		opts = append(opts, task.Client, task.Server, task.Scheduler, syncer.Worker)
	case syncer.SchedulerTicker:
		opts = append(opts, syncer.InProcess)
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

func usesRedis(cfg *config.Config) bool {
	return cfg.Sync.Scheduler == syncer.SchedulerAsynq ||
		cfg.Sync.CursorStore == syncer.CursorRedis ||
		cfg.Cache.Enable
}

// loadConfig reads config before the graph is built since module selection depends on it.
func loadConfig() (*config.Config, error) {
	var p config.Params
	if secretmanager.Enabled() {
		client, err := secretmanager.ProvideVault()
		if err != nil {
			return nil, err
		}
		p.Vault = client
	}

	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		return config.LoadRemote(p), nil
	}
	return config.LoadConfig(p), nil
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "development" {
		return &fxevent.ZapLogger{Logger: logger}
	}
	return fxevent.NopLogger
})
