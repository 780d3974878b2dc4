package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/iampurna/habit-island-core/internal/adapters/handler/http"
	"github.com/iampurna/habit-island-core/internal/adapters/repository"
	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/services"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

type brokenCompletionRepo struct {
	domain.CompletionRepository
}

func (brokenCompletionRepo) ListByUserIDAndDateRange(context.Context, string, time.Time, time.Time) ([]*domain.CompletionEvent, error) {
	return nil, errors.New("backend down")
}

func (brokenCompletionRepo) GetChanges(context.Context, string, time.Time) ([]*domain.CompletionEvent, error) {
	return nil, errors.New("backend down")
}

func newSyncRouter(t *testing.T, userID string, completions domain.CompletionRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rules := config.DefaultRules()
	svc := services.NewSyncService(
		repository.NewMemoryLocalStore(rules.SyncQueueMax),
		repository.NewMemoryHabitRepository(),
		completions,
		repository.NewMemoryUserRepository(),
		nil,
		timeutil.SystemClock{},
		rules,
	)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(fakeAuth(userID))
	adapterHTTP.NewSyncHandler(svc).RegisterRoutes(api)
	return router
}

func TestSyncHandler_CleanCycle(t *testing.T) {
	router := newSyncRouter(t, "user-1", repository.NewMemoryCompletionRepository())

	w := postJSON(router, "/api/v1/sync", `{"strategy": "merge"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "merge", report["strategy"])
	assert.Equal(t, "user-1", report["user_id"])
}

func TestSyncHandler_PartialFailureIsMultiStatus(t *testing.T) {
	router := newSyncRouter(t, "user-1", brokenCompletionRepo{})

	w := postJSON(router, "/api/v1/sync", "")
	assert.Equal(t, http.StatusMultiStatus, w.Code)
	assert.Contains(t, w.Body.String(), "failures")
}

func TestSyncHandler_Status(t *testing.T) {
	router := newSyncRouter(t, "user-1", repository.NewMemoryCompletionRepository())

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/sync/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "idle")
}
