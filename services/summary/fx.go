package summary

import (
	"ledgersync/pkg/task"
	"ledgersync/services/ledger"
	"ledgersync/services/syncer"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("summary.service",
	fx.Provide(
		provideService,
		provideHandler,
	),
	fx.Invoke(registerRoutes),
)

func provideService(summaries ledger.SummaryStore, c *syncer.Coordinator) *Service {
	return NewService(summaries, c)
}

type handlerParams struct {
	fx.In
	Service  *Service
	Enqueuer task.Enqueuer `optional:"true"`
}

func provideHandler(p handlerParams) *Handler {
	return NewHandler(p.Service, p.Enqueuer)
}

func registerRoutes(r *gin.Engine, h *Handler) {
	h.Register(r)
}
