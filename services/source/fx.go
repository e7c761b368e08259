package source

import (
	"context"

	"ledgersync/pkg/config"
	"ledgersync/pkg/featureflags"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	FallbackSample = "sample"
	FallbackNone   = "none"
)

var Module = fx.Module("transaction.source",
	fx.Provide(ProvideSource),
)

type Params struct {
	fx.In
	Config *config.Config
	Flags  featureflags.FeatureFlag `optional:"true"`
}

func ProvideSource(p Params) Source {
	cfg := p.Config.Source
	primary := NewHTTPSource(cfg.BaseURL, cfg.Timeout, WithMaxPages(cfg.MaxPages))

	if cfg.Fallback == FallbackNone {
		zap.L().Info("transaction source fallback disabled", zap.String("base_url", cfg.BaseURL))
		return primary
	}

	flags := p.Flags
	if flags == nil {
		flags = featureflags.Static()
	}
	return NewFallbackSource(primary, func(ctx context.Context) bool {
		return flags.Enabled(ctx, FallbackFlag, true)
	})
}
