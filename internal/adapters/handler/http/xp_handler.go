package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iampurna/habit-island-core/internal/adapters/handler/http/middleware"
	"github.com/iampurna/habit-island-core/internal/core/services"
)

type XPHandler struct {
	svc *services.XPService
}

func NewXPHandler(svc *services.XPService) *XPHandler {
	return &XPHandler{svc: svc}
}

type rewardedAdRequest struct {
	AdID string `json:"ad_id" binding:"required"`
}

type manualAwardRequest struct {
	Amount      int    `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func (h *XPHandler) RegisterRoutes(router *gin.RouterGroup) {
	xp := router.Group("/xp")
	{
		xp.GET("/level", h.Level)
		xp.GET("/summary", h.Summary)
		xp.POST("/login", h.DailyLogin)
		xp.POST("/ad", h.RewardedAd)
		xp.POST("/manual", h.Manual)
	}
}

func (h *XPHandler) Level(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	info, err := h.svc.Level(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *XPHandler) Summary(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	summary, err := h.svc.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *XPHandler) DailyLogin(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	award, err := h.svc.AwardForDailyLogin(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, award)
}

func (h *XPHandler) RewardedAd(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	var req rewardedAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	award, err := h.svc.AwardForRewardedAd(c.Request.Context(), userID, req.AdID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, award)
}

// Manual credits an unconditional amount, for promotional and support flows.
func (h *XPHandler) Manual(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	var req manualAwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	award, err := h.svc.AwardManual(c.Request.Context(), userID, req.Amount, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, award)
}
