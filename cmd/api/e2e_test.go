package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/iampurna/habit-island-core/internal/adapters/handler/http"
	"github.com/iampurna/habit-island-core/internal/adapters/handler/http/middleware"
	"github.com/iampurna/habit-island-core/internal/adapters/repository"
	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/growth"
	"github.com/iampurna/habit-island-core/internal/core/services"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

// Full-stack lifecycle over the HTTP surface, backed by in-memory adapters so
// it runs without Postgres or Redis.
func setupTestServer(t *testing.T) (*gin.Engine, *services.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rules := config.DefaultRules()
	clock := timeutil.SystemClock{}
	days := timeutil.NewDayResolver(rules.GracePeriod)

	habits := repository.NewMemoryHabitRepository()
	completions := repository.NewMemoryCompletionRepository()
	events := repository.NewMemoryXPEventRepository()
	users := repository.NewMemoryUserRepository()
	local := repository.NewMemoryLocalStore(rules.SyncQueueMax)

	xpService := services.NewXPService(events, users, days, clock, rules)
	engine := growth.NewEngine(rules.StageThresholds, rules.ShieldWindow, days)
	habitService := services.NewHabitService(habits, completions, users, xpService, engine, days, clock, rules, local)
	syncService := services.NewSyncService(local, habits, completions, users, nil, clock, rules)
	statsService := services.NewStatsService(habits, completions, days)
	tokenService := services.NewTokenService("e2e-secret", "habit-island", time.Hour)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(tokenService))

	adapterHTTP.NewHabitHandler(habitService).RegisterRoutes(api)
	adapterHTTP.NewXPHandler(xpService).RegisterRoutes(api)
	adapterHTTP.NewSyncHandler(syncService).RegisterRoutes(api)
	adapterHTTP.NewStatsHandler(statsService).RegisterRoutes(api)

	return router, tokenService
}

func doJSON(router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEndToEnd_HabitLifecycle(t *testing.T) {
	router, tokens := setupTestServer(t)

	token, err := tokens.GenerateToken("e2e-tester-1")
	require.NoError(t, err)

	var habitID, secondID string

	t.Run("1. Unauthenticated requests are rejected", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/habits", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("2. Create Habits", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/habits", token,
			`{"name": "Morning Run", "category": "exercise", "frequency": "daily"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var created map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		habitID, _ = created["id"].(string)
		require.NotEmpty(t, habitID)

		w = doJSON(router, http.MethodPost, "/api/v1/habits", token,
			`{"name": "Read", "category": "reading", "frequency": "daily"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		var second map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
		secondID, _ = second["id"].(string)
	})

	t.Run("3. Duplicate name is rejected", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/habits", token,
			`{"name": "morning run"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("4. Complete and check streak", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/habits/"+habitID+"/complete", token, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		// Completing twice the same day is a business-rule failure.
		w = doJSON(router, http.MethodPost, "/api/v1/habits/"+habitID+"/complete", token, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		w = doJSON(router, http.MethodGet, "/api/v1/habits/"+habitID+"/streak", token, "")
		require.Equal(t, http.StatusOK, w.Code)

		var streak map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &streak))
		assert.EqualValues(t, 1, streak["current_streak"])
	})

	t.Run("5. XP was credited for the completion", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/xp/level", token, "")
		require.Equal(t, http.StatusOK, w.Code)

		var level map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &level))
		total, _ := level["total_xp"].(float64)
		assert.GreaterOrEqual(t, total, 10.0)
	})

	t.Run("6. List and update", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/habits", token, "")
		require.Equal(t, http.StatusOK, w.Code)

		var list map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		assert.EqualValues(t, 2, list["count"])

		w = doJSON(router, http.MethodPut, "/api/v1/habits/"+habitID, token,
			`{"name": "Evening Run"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
		assert.Equal(t, "Evening Run", updated["name"])
	})

	t.Run("7. Sync drains the pending queue", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/v1/sync", token, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var report map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		pushed, _ := report["pushed"].(float64)
		assert.Greater(t, pushed, 0.0)

		w = doJSON(router, http.MethodGet, "/api/v1/sync/status", token, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "idle")
	})

	t.Run("8. Stats cover the completion", func(t *testing.T) {
		w := doJSON(router, http.MethodGet, "/api/v1/stats", token, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "overall_completion_rate")
	})

	t.Run("9. Delete honors the last-habit rule", func(t *testing.T) {
		w := doJSON(router, http.MethodDelete, "/api/v1/habits/"+secondID, token, "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(router, http.MethodDelete, "/api/v1/habits/"+habitID, token, "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "the last habit cannot be deleted")
	})

	t.Run("10. Cross-user access is a 404", func(t *testing.T) {
		other, err := tokens.GenerateToken("e2e-tester-2")
		require.NoError(t, err)

		w := doJSON(router, http.MethodGet, "/api/v1/habits/"+habitID, other, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
