package syncer

import (
	"context"
	"time"

	"ledgersync/pkg/config"
	"ledgersync/pkg/gen"
	"ledgersync/pkg/sequence"
	"ledgersync/services/ledger"
	"ledgersync/services/source"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	SchedulerAsynq  = "asynq"
	SchedulerTicker = "ticker"
	SchedulerNone   = "none"

	CursorMemory = "memory"
	CursorRedis  = "redis"
)

var Module = fx.Module("sync.service",
	fx.Provide(
		provideCursor,
		provideArchiver,
		NewService,
	),
	fx.Invoke(migrate),
)

// Worker consumes queued sync tasks and registers the periodic entry.
var Worker = fx.Module("sync.worker",
	fx.Provide(providePeriodicSync),
	fx.Invoke(registerSyncHandler),
)

// InProcess drives Sync from a ticker instead of asynq.
var InProcess = fx.Module("sync.ticker",
	fx.Invoke(startTicker),
)

type cursorParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func provideCursor(p cursorParams) CursorStore {
	lookback := p.Config.Sync.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	if p.Config.Sync.CursorStore == CursorRedis && p.Redis != nil {
		zap.L().Info("sync cursor persisted in redis")
		return NewRedisCursor(p.Redis, lookback)
	}

	cursor := NewMemoryCursor(time.Now().Add(-lookback))
	zap.L().Info("sync cursor kept in memory", zap.Duration("lookback", lookback))
	return cursor
}

type archiverParams struct {
	fx.In
	Config *config.Config
	Minio  *minio.Client `optional:"true"`
}

func provideArchiver(p archiverParams) Archiver {
	if !p.Config.Minio.Enable || p.Minio == nil {
		return NopArchiver()
	}
	return NewMinioArchiver(p.Minio, p.Config.Minio.BucketName)
}

type Params struct {
	fx.In
	Config   *config.Config
	DB       *gorm.DB
	Source   source.Source
	Poster   *ledger.Poster
	Cursor   CursorStore
	Archiver Archiver
	Node     *gen.SnowflakeNode
	Codes    sequence.Generator `optional:"true"`
}

func NewService(p Params) *Coordinator {
	return NewCoordinator(Options{
		Source:      p.Source,
		Poster:      p.Poster,
		Cursor:      p.Cursor,
		DB:          p.DB,
		Node:        p.Node,
		Archiver:    p.Archiver,
		Codes:       p.Codes,
		Concurrency: p.Config.Sync.ReconcileConcurrency,
		Timeout:     p.Config.Sync.Timeout,
	})
}

func migrate(lc fx.Lifecycle, db *gorm.DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.WithContext(ctx).AutoMigrate(&SyncRun{}); err != nil {
				zap.L().Error("failed to migrate sync tables", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
