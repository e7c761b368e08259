package server

import (
	"context"
	"fmt"
	"net"

	"ledgersync/pkg/config"
	"ledgersync/pkg/errutil"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

var ProvideGRPCServer = fx.Module("grpc.server",
	fx.Provide(
		NewListener,
		WithOption,
		NewGRPCServer,
	),
	fx.Invoke(
		StartGRPCServer,
	),
)

func NewListener(cfg *config.Config) (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%s", cfg.Grpc.Addr))
}

type optionParams struct {
	fx.In
	Config         *config.Config
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func WithOption(p optionParams) ([]grpc.ServerOption, error) {
	recoverer := recovery.WithRecoveryHandler(func(r any) error {
		zap.L().Error("grpc handler panicked", zap.Any("panic", r))
		return status.Errorf(codes.Internal, "internal error")
	})

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recovery.UnaryServerInterceptor(recoverer),
			statusInterceptor,
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recoverer),
		),
		grpc.StatsHandler(
			otelgrpc.NewServerHandler(
				otelgrpc.WithTracerProvider(p.TracerProvider),
				otelgrpc.WithMeterProvider(p.MeterProvider),
			),
		),
	}

	if p.Config.TLS.Enable {
		creds, err := credentials.NewServerTLSFromFile(p.Config.TLS.CertPath, p.Config.TLS.KeyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	return opts, nil
}

// statusInterceptor maps errutil errors onto gRPC status codes.
func statusInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	return resp, errutil.ToGRPCError(err)
}

func NewGRPCServer(opts []grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(opts...)
}

func StartGRPCServer(lc fx.Lifecycle, lis net.Listener, srv *grpc.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				zap.L().Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
				reflection.Register(srv)
				if err := srv.Serve(lis); err != nil {
					zap.L().Error("gRPC server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Stopping gRPC server")
			srv.GracefulStop()
			return nil
		},
	})
}
