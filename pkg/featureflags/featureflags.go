package featureflags

import (
	"context"

	"ledgersync/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

type FeatureFlag interface {
	Features(ctx context.Context) ([]flagsmith.Flag, error)
	// Enabled reports the environment value of name, or def when flags are
	// unconfigured or unreachable.
	Enabled(ctx context.Context, name string, def bool) bool
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	opts := []flagsmith.Option{flagsmith.WithAnalytics()}
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

// Static returns a FeatureFlag that always answers with the caller's default.
func Static() FeatureFlag {
	return &featureflag{}
}

func (s *featureflag) Features(ctx context.Context) ([]flagsmith.Flag, error) {
	if s.client == nil {
		return nil, nil
	}

	flags, err := s.client.GetEnvironmentFlags()
	if err != nil {
		return nil, err
	}

	return flags.AllFlags(), nil
}

func (s *featureflag) Enabled(ctx context.Context, name string, def bool) bool {
	if s.client == nil {
		return def
	}

	flags, err := s.client.GetEnvironmentFlags()
	if err != nil {
		zap.L().Warn("flagsmith unavailable, using default", zap.String("flag", name), zap.Error(err))
		return def
	}

	enabled, err := flags.IsFeatureEnabled(name)
	if err != nil {
		return def
	}
	return enabled
}
