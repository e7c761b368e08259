package ledger

import (
	"context"

	"ledgersync/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("ledger.service",
	fx.Provide(
		NewTransactionStore,
		provideSummaryStore,
		NewReconciler,
		NewPoster,
	),
	fx.Invoke(migrate),
)

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Transaction{}, &UserSummary{}}
}

type summaryStoreParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client `optional:"true"`
}

func provideSummaryStore(p summaryStoreParams) SummaryStore {
	store := NewSummaryStore(p.DB)
	if !p.Config.Cache.Enable || p.Redis == nil {
		return store
	}

	zap.L().Info("summary cache enabled", zap.Duration("ttl", p.Config.Cache.TTL))
	return NewCachedSummaryStore(store, p.Redis, p.Config.Cache.TTL)
}

func migrate(lc fx.Lifecycle, db *gorm.DB) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
				zap.L().Error("failed to migrate ledger tables", zap.Error(err))
				return err
			}
			return nil
		},
	})
}
