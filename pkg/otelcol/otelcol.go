package otelcol

import (
	"context"

	"ledgersync/pkg/config"
	"ledgersync/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("otelcol",
	fx.Provide(
		ProvideTracerProvider,
		ProvideMeterProvider,
	),
)

func serviceResource(cfg *config.Config) *resource.Resource {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.AppName),
		attribute.String("service.version", cfg.AppVersion),
		attribute.String("deployment.environment", cfg.AppEnv),
	))
	if err != nil {
		return resource.Default()
	}
	return res
}

func ProvideTrace(exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	if len(opts) == 0 {
		opts = []sdktrace.TracerProviderOption{sdktrace.WithResource(resource.Default())}
	}

	opts = append(opts, sdktrace.WithBatcher(exporter))

	return sdktrace.NewTracerProvider(opts...)
}

// ProvideTracerProvider exports spans over OTLP when OTEL.ADDR is set and
// falls back to the global (no-op) provider otherwise.
func ProvideTracerProvider(lc fx.Lifecycle, cfg *config.Config) (trace.TracerProvider, error) {
	if cfg.Otel.Addr == "" {
		return otel.GetTracerProvider(), nil
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Otel.Protocol {
	case "http":
		exporter, err = exporters.ProvideHttp(cfg)
	default:
		exporter, err = exporters.ProvideGrpc(cfg)
	}
	if err != nil {
		return nil, err
	}

	tp := ProvideTrace(exporter, sdktrace.WithResource(serviceResource(cfg)))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	zap.L().Info("otel tracing enabled",
		zap.String("addr", cfg.Otel.Addr),
		zap.String("protocol", cfg.Otel.Protocol),
	)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})

	return tp, nil
}

// Metrics are scraped from prometheus; otel instrumentation gets the global provider.
func ProvideMeterProvider() metric.MeterProvider {
	return otel.GetMeterProvider()
}
