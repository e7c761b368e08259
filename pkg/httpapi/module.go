package httpapi

import (
	"ledgersync/pkg/health"
	"ledgersync/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module provides the shared gin engine plus the operational endpoints.
var Module = fx.Module("httpapi",
	fx.Provide(server.NewEngine),
	fx.Invoke(registerOperationalEndpoints),
)

func registerOperationalEndpoints(r *gin.Engine, hs health.HealthService) {
	r.GET("/healthz", hs.Liveness)
	r.GET("/readyz", hs.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
