package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"ledgersync/pkg/config"
	"ledgersync/pkg/middleware"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(NewHttpServer),
	fx.Invoke(Run),
)

type Server struct {
	server   *http.Server
	tlsMutex sync.RWMutex
	cert     *tls.Certificate
	certPath string
	keyPath  string
}

// NewEngine builds the gin engine every route module registers on.
func NewEngine(cfg *config.Config, tp trace.TracerProvider) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.Tracing(cfg.AppName, tp),
		middleware.Logger(),
		middleware.Error(),
	)
	return engine
}

type Params struct {
	fx.In
	Config  *config.Config
	Handler *gin.Engine
}

func NewHttpServer(p Params) *Server {
	cfg := p.Config
	srv := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Addr),
			Handler:      p.Handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		certPath: cfg.TLS.CertPath,
		keyPath:  cfg.TLS.KeyPath,
	}

	if cfg.TLS.Enable {
		srv.reloadCert()
		go srv.watchTLSFiles()

		srv.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			GetCertificate: func(info *tls.ClientHelloInfo) (*tls.Certificate, error) {
				srv.tlsMutex.RLock()
				defer srv.tlsMutex.RUnlock()

				if srv.cert == nil {
					return nil, fmt.Errorf("no TLS cert loaded")
				}

				return srv.cert, nil
			},
		}
	}

	return srv
}

func (s *Server) reloadCert() {
	cert, err := tls.LoadX509KeyPair(s.certPath, s.keyPath)
	if err != nil {
		zap.L().Error("failed to reload TLS cert", zap.Error(err))
		return
	}
	s.tlsMutex.Lock()
	s.cert = &cert
	s.tlsMutex.Unlock()
	zap.L().Info("TLS certificate reloaded")
}

// watchTLSFiles reloads the key pair whenever cert-manager style rotation rewrites it.
func (s *Server) watchTLSFiles() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		zap.L().Error("failed to create fsnotify watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	_ = watcher.Add(s.certPath)
	_ = watcher.Add(s.keyPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				s.reloadCert()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			zap.L().Error("watcher error", zap.Error(err))
		}
	}
}

func Run(lc fx.Lifecycle, srv *Server) {
	serve := func() {
		var err error
		if srv.server.TLSConfig != nil {
			// certificates come from GetCertificate
			err = srv.server.ListenAndServeTLS("", "")
		} else {
			err = srv.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("HTTP server exited", zap.Error(err))
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			zap.L().Info("Starting HTTP server",
				zap.String("addr", srv.server.Addr),
				zap.Bool("tls_enabled", srv.server.TLSConfig != nil),
			)
			go serve()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Shutting down HTTP server gracefully...")
			return srv.server.Shutdown(ctx)
		},
	})
}
