package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	return db
}

func TestCheckHealthyWithoutDeps(t *testing.T) {
	h := ProvideHealth(HealthParams{})
	res := h.Check(context.Background())
	require.Equal(t, StatusHealthy, res.Status)
	require.Empty(t, res.Deps)
}

func TestReadiness(t *testing.T) {
	db := openDB(t)
	h := ProvideHealth(HealthParams{DB: db})

	r := gin.New()
	r.GET("/readyz", h.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Deps, 1)
	require.Equal(t, "sqlite", body.Deps[0].Name)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, StatusUnhealthy, body.Status)
	require.Equal(t, "sqlite unavailable", body.Message)
}
