package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledgersync/pkg/db/pagination"
	"ledgersync/pkg/errutil"
	"ledgersync/pkg/middleware"
	"ledgersync/services/ledger"
	"ledgersync/services/syncer"
	"ledgersync/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type syncerMock struct {
	syncFn     func(ctx context.Context) (*syncer.Result, error)
	listRunsFn func(ctx context.Context, limit int, cursor string) ([]*syncer.SyncRun, *pagination.PageInfo, error)
}

func (m *syncerMock) Sync(ctx context.Context) (*syncer.Result, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx)
	}
	return &syncer.Result{}, nil
}

func (m *syncerMock) ListRuns(ctx context.Context, limit int, cursor string) ([]*syncer.SyncRun, *pagination.PageInfo, error) {
	if m.listRunsFn != nil {
		return m.listRunsFn(ctx, limit, cursor)
	}
	return nil, &pagination.PageInfo{}, nil
}

type enqueuerMock struct {
	enqueueFn func(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func (m *enqueuerMock) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.enqueueFn(ctx, task, opts...)
}

func seedSummaries(t *testing.T) ledger.SummaryStore {
	t.Helper()
	db := testutil.NewTestDB(t, ledger.Models()...)
	store := ledger.NewSummaryStore(db)

	user1 := ledger.NewUserSummary("user1")
	user1.Earned = decimal.NewFromInt(500)
	user1.Spent = decimal.NewFromInt(100)
	user1.Payout = decimal.NewFromInt(200)
	user1.PaidOut = user1.Payout
	user1.Balance = decimal.NewFromInt(200)
	require.NoError(t, store.Upsert(context.Background(), user1))

	// offsetting transactions leave a known user at zero
	user2 := ledger.NewUserSummary("user2")
	user2.Earned = decimal.NewFromInt(50)
	user2.Spent = decimal.NewFromInt(50)
	require.NoError(t, store.Upsert(context.Background(), user2))

	return store
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Error())
	h.Register(r)
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGetUserSummary(t *testing.T) {
	svc := NewService(seedSummaries(t), &syncerMock{})

	s, err := svc.GetUserSummary(context.Background(), "user1")
	require.NoError(t, err)
	require.True(t, s.Balance.Equal(decimal.NewFromInt(200)))

	zero, err := svc.GetUserSummary(context.Background(), "user2")
	require.NoError(t, err)
	require.True(t, zero.Balance.IsZero())

	_, err = svc.GetUserSummary(context.Background(), "nonexistent")
	require.True(t, errutil.IsNotFound(err))

	_, err = svc.GetUserSummary(context.Background(), "  ")
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestListPayoutSummaries(t *testing.T) {
	svc := NewService(seedSummaries(t), &syncerMock{})

	out, err := svc.ListPayoutSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "user1", out[0].UserID)
	require.True(t, out[0].PayoutAmount.Equal(decimal.NewFromInt(200)))
}

func TestForceSyncSurfacesFailure(t *testing.T) {
	svc := NewService(seedSummaries(t), &syncerMock{
		syncFn: func(context.Context) (*syncer.Result, error) { return nil, errors.New("upstream unreachable") },
	})

	_, err := svc.ForceSync(context.Background())
	require.Equal(t, errutil.StatusBadGateway, errutil.StatusOf(err))
}

func TestHTTPGetUserSummary(t *testing.T) {
	r := newRouter(NewHandler(NewService(seedSummaries(t), &syncerMock{}), nil))

	w := do(r, http.MethodGet, "/api/users/user1/summary")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"userId":"user1","balance":200,"earned":500,"spent":100,"payout":200,"paidOut":200}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/users/nonexistent/summary")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "User not found")

	w = do(r, http.MethodGet, "/api/users/%20/summary")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "User ID is required")
}

func TestHTTPListPayouts(t *testing.T) {
	r := newRouter(NewHandler(NewService(seedSummaries(t), &syncerMock{}), nil))

	w := do(r, http.MethodGet, "/api/payouts")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[{"userId":"user1","payoutAmount":200}]`, w.Body.String())
}

func TestHTTPForceSync(t *testing.T) {
	calls := 0
	r := newRouter(NewHandler(NewService(seedSummaries(t), &syncerMock{
		syncFn: func(context.Context) (*syncer.Result, error) {
			calls++
			return &syncer.Result{RunID: "42", Stats: syncer.Stats{Fetched: 5, Inserted: 5}}, nil
		},
	}), nil))

	w := do(r, http.MethodPost, "/api/sync")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, calls)

	var body struct {
		Message string `json:"message"`
		Result  struct {
			RunID    string `json:"runId"`
			Inserted int    `json:"inserted"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, SyncCompletedMessage, body.Message)
	require.Equal(t, "42", body.Result.RunID)
	require.Equal(t, 5, body.Result.Inserted)
}

func TestHTTPForceSyncFailure(t *testing.T) {
	r := newRouter(NewHandler(NewService(seedSummaries(t), &syncerMock{
		syncFn: func(context.Context) (*syncer.Result, error) { return nil, errors.New("dial tcp: refused") },
	}), nil))

	w := do(r, http.MethodPost, "/api/sync")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "Transaction sync failed: dial tcp: refused")
}

func TestHTTPForceSyncAsync(t *testing.T) {
	var queued string
	enq := &enqueuerMock{enqueueFn: func(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
		queued = task.Type()
		return &asynq.TaskInfo{ID: "task-1"}, nil
	}}
	r := newRouter(NewHandler(NewService(seedSummaries(t), &syncerMock{
		syncFn: func(context.Context) (*syncer.Result, error) {
			t.Fatal("inline sync must not run for async requests")
			return nil, nil
		},
	}), enq))

	w := do(r, http.MethodPost, "/api/sync?async=true")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "ledger:sync:run", queued)
	require.Contains(t, w.Body.String(), "task-1")

	enq.enqueueFn = func(context.Context, *asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
		return nil, fmt.Errorf("failed to enqueue task: %w", asynq.ErrDuplicateTask)
	}
	w = do(r, http.MethodPost, "/api/sync?async=true")
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestHTTPForceSyncAsyncWithoutQueue(t *testing.T) {
	r := newRouter(NewHandler(NewService(seedSummaries(t), &syncerMock{}), nil))

	w := do(r, http.MethodPost, "/api/sync?async=1")
	require.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHTTPListSyncRuns(t *testing.T) {
	var (
		gotLimit  int
		gotCursor string
	)
	r := newRouter(NewHandler(NewService(seedSummaries(t), &syncerMock{
		listRunsFn: func(_ context.Context, limit int, cursor string) ([]*syncer.SyncRun, *pagination.PageInfo, error) {
			if cursor == "bad" {
				return nil, nil, pagination.ErrInvalidCursor
			}
			gotLimit, gotCursor = limit, cursor
			return []*syncer.SyncRun{{ID: "1", Status: syncer.RunStatusSuccess}}, &pagination.PageInfo{HasMore: true, NextCursor: "next"}, nil
		},
	}), nil))

	w := do(r, http.MethodGet, "/api/sync/runs?limit=5&cursor=abc")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 5, gotLimit)
	require.Equal(t, "abc", gotCursor)
	require.Contains(t, w.Body.String(), `"status":"success"`)
	require.Contains(t, w.Body.String(), `"next_cursor":"next"`)

	w = do(r, http.MethodGet, "/api/sync/runs?cursor=bad")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/sync/runs?limit=0")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/sync/runs?limit=101")
	require.Equal(t, http.StatusBadRequest, w.Code)
}
