package health

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCModule serves grpc.health.v1 on the shared gRPC server, refreshed from Check.
var GRPCModule = fx.Module("health.grpc",
	fx.Provide(grpchealth.NewServer),
	fx.Invoke(RegisterGRPC),
)

const probeInterval = 10 * time.Second

func RegisterGRPC(lc fx.Lifecycle, srv *grpc.Server, hs *grpchealth.Server, svc HealthService) {
	healthpb.RegisterHealthServer(srv, hs)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go probe(ctx, hs, svc)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			hs.Shutdown()
			return nil
		},
	})
}

func probe(ctx context.Context, hs *grpchealth.Server, svc HealthService) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, probeInterval/2)
		status := healthpb.HealthCheckResponse_SERVING
		if res := svc.Check(checkCtx); res.Status != StatusHealthy {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			zap.L().Warn("readiness degraded", zap.String("message", res.Message))
		}
		cancel()
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
