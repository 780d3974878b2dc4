package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adapterHTTP "github.com/iampurna/habit-island-core/internal/adapters/handler/http"
	"github.com/iampurna/habit-island-core/internal/adapters/repository"
	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/services"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

func newXPRouter(t *testing.T, userID string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rules := config.DefaultRules()
	clock := timeutil.SystemClock{}
	days := timeutil.NewDayResolver(rules.GracePeriod)

	events := repository.NewMemoryXPEventRepository()
	users := repository.NewMemoryUserRepository()
	svc := services.NewXPService(events, users, days, clock, rules)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(fakeAuth(userID))
	adapterHTTP.NewXPHandler(svc).RegisterRoutes(api)
	return router
}

func TestXPHandler_DailyLogin(t *testing.T) {
	router := newXPRouter(t, "user-1")

	w := postJSON(router, "/api/v1/xp/login", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var first map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.EqualValues(t, 5, first["total"])

	// Replaying the same day still succeeds, with nothing granted.
	w = postJSON(router, "/api/v1/xp/login", "")
	require.Equal(t, http.StatusOK, w.Code)

	var again map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.EqualValues(t, 0, again["total"])
	assert.Equal(t, true, again["already_granted"])
}

func TestXPHandler_RewardedAd(t *testing.T) {
	t.Run("Missing ad id is a 400", func(t *testing.T) {
		router := newXPRouter(t, "user-1")
		w := postJSON(router, "/api/v1/xp/ad", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Daily cap is a 429", func(t *testing.T) {
		router := newXPRouter(t, "user-1")

		for i := 0; i < 3; i++ {
			w := postJSON(router, "/api/v1/xp/ad", fmt.Sprintf(`{"ad_id": "ad-%d"}`, i))
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}

		w := postJSON(router, "/api/v1/xp/ad", `{"ad_id": "ad-4"}`)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "ads_watched_today")
	})
}

func TestXPHandler_Level(t *testing.T) {
	router := newXPRouter(t, "user-1")

	// A fresh account reads as level 1 with zero XP.
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/xp/level", bytes.NewBuffer(nil))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var level map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &level))
	assert.EqualValues(t, 0, level["total_xp"])
	assert.EqualValues(t, 1, level["level"])
}
