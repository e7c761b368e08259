package profiling

import (
	"context"

	"ledgersync/pkg/config"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module starts continuous profiling when PYROSCOPE.ADDR is configured.
var Module = fx.Module("profiling", fx.Invoke(StartProfiling))

func StartProfiling(lc fx.Lifecycle, c *config.Config) error {
	if c.Pyroscope.Addr == "" {
		return nil
	}

	zap.L().Info("starting pyroscope", zap.String("app_name", c.AppName), zap.String("pyroscope_addr", c.Pyroscope.Addr))
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: c.AppName,
		ServerAddress:   c.Pyroscope.Addr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Tags: map[string]string{
			"service_name": c.AppName,
			"env":          c.AppEnv,
		},
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return profiler.Stop()
		},
	})

	return nil
}
