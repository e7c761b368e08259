package summary

import (
	"errors"
	"net/http"
	"strconv"

	"ledgersync/pkg/errutil"
	"ledgersync/pkg/task"
	"ledgersync/services/ledger"
	"ledgersync/services/syncer"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// amount renders a decimal as a bare JSON number.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

type userSummaryResponse struct {
	UserID  string `json:"userId"`
	Balance amount `json:"balance"`
	Earned  amount `json:"earned"`
	Spent   amount `json:"spent"`
	Payout  amount `json:"payout"`
	PaidOut amount `json:"paidOut"`
}

func toUserSummaryResponse(s *ledger.UserSummary) userSummaryResponse {
	return userSummaryResponse{
		UserID:  s.UserID,
		Balance: amount(s.Balance),
		Earned:  amount(s.Earned),
		Spent:   amount(s.Spent),
		Payout:  amount(s.Payout),
		PaidOut: amount(s.PaidOut),
	}
}

type payoutResponse struct {
	UserID       string `json:"userId"`
	PayoutAmount amount `json:"payoutAmount"`
}

type syncResponse struct {
	Message string         `json:"message"`
	Result  *syncer.Result `json:"result,omitempty"`
	TaskID  string         `json:"taskId,omitempty"`
}

type Handler struct {
	service  *Service
	enqueuer task.Enqueuer
}

func NewHandler(service *Service, enqueuer task.Enqueuer) *Handler {
	return &Handler{service: service, enqueuer: enqueuer}
}

func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.GET("/users/:userId/summary", h.GetUserSummary)
	api.GET("/payouts", h.ListPayouts)
	api.POST("/sync", h.ForceSync)
	api.GET("/sync/runs", h.ListSyncRuns)
}

func (h *Handler) GetUserSummary(c *gin.Context) {
	s, err := h.service.GetUserSummary(c.Request.Context(), c.Param("userId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toUserSummaryResponse(s))
}

func (h *Handler) ListPayouts(c *gin.Context) {
	rows, err := h.service.ListPayoutSummaries(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]payoutResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, payoutResponse{UserID: r.UserID, PayoutAmount: amount(r.PayoutAmount)})
	}
	c.JSON(http.StatusOK, out)
}

// ForceSync runs a cycle inline; with ?async=true it queues one on asynq instead.
func (h *Handler) ForceSync(c *gin.Context) {
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		h.enqueueSync(c)
		return
	}

	res, err := h.service.ForceSync(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, syncResponse{Message: SyncCompletedMessage, Result: res})
}

func (h *Handler) enqueueSync(c *gin.Context) {
	if h.enqueuer == nil {
		_ = c.Error(errutil.NotImplemented("async sync requires the task queue", nil))
		return
	}

	t, opts := syncer.NewSyncTask(0)
	info, err := h.enqueuer.Enqueue(c.Request.Context(), t, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		_ = c.Error(errutil.Conflict("Transaction sync already queued", nil))
		return
	}
	if err != nil {
		zap.L().Warn("failed to enqueue sync task", zap.Error(err))
		_ = c.Error(errutil.ServiceUnavailable("task queue unavailable", err))
		return
	}
	c.JSON(http.StatusAccepted, syncResponse{Message: "Transaction sync queued", TaskID: info.ID})
}

func (h *Handler) ListSyncRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = c.Error(errutil.BadRequest("limit must be between 1 and 100", err))
			return
		}
		limit = n
	}

	runs, info, err := h.service.ListSyncRuns(c.Request.Context(), limit, c.Query("cursor"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "page_info": info})
}
