package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iampurna/habit-island-core/internal/adapters/handler/http/middleware"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/services"
)

type SyncHandler struct {
	svc *services.SyncService
}

func NewSyncHandler(svc *services.SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

type syncRequest struct {
	Strategy string `json:"strategy"`
}

func (h *SyncHandler) RegisterRoutes(router *gin.RouterGroup) {
	sync := router.Group("/sync")
	{
		sync.POST("", h.Sync)
		sync.GET("/status", h.Status)
	}
}

func (h *SyncHandler) Sync(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	report, err := h.svc.Sync(c.Request.Context(), userID, domain.ConflictStrategy(req.Strategy))
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if !report.Succeeded() {
		// Parts of the cycle failed; the report says which.
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

func (h *SyncHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	state, startedAt := h.svc.Status(userID)

	resp := gin.H{"state": state}
	if startedAt != nil {
		resp["started_at"] = startedAt
	}
	c.JSON(http.StatusOK, resp)
}
