package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Check(ctx context.Context) *Health
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{
		db:    p.DB,
		redis: p.Redis,
	}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  StatusHealthy,
		Message: "OK",
	})
}

// Check pings every wired dependency; one failure marks the whole service unhealthy.
func (h *health) Check(ctx context.Context) *Health {
	this := &Health{
		Status:  StatusHealthy,
		Message: "OK",
	}

	deps := make([]Dependency, 0, 2)
	if h.db != nil {
		dep := Dependency{
			Name:    h.db.Name(),
			Status:  StatusHealthy,
			Message: "OK",
		}

		sql, err := h.db.DB()
		if err == nil {
			err = sql.PingContext(ctx)
		}
		if err != nil {
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
		}

		deps = append(deps, dep)
	}

	if h.redis != nil {
		dep := Dependency{
			Name:    "redis",
			Status:  StatusHealthy,
			Message: "OK",
		}

		if err := h.redis.Ping(ctx).Err(); err != nil {
			dep.Status = StatusUnhealthy
			dep.Message = err.Error()
		}

		deps = append(deps, dep)
	}

	for _, dep := range deps {
		if dep.Status != StatusHealthy {
			this.Status = StatusUnhealthy
			this.Message = dep.Name + " unavailable"
			break
		}
	}

	this.Deps = deps
	return this
}

func (h *health) Readiness(c *gin.Context) {
	this := h.Check(c.Request.Context())
	code := http.StatusOK
	if this.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, this)
}
