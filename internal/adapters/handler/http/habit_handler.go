package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iampurna/habit-island-core/internal/adapters/handler/http/middleware"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/services"
)

type HabitHandler struct {
	svc *services.HabitService
}

func NewHabitHandler(svc *services.HabitService) *HabitHandler {
	return &HabitHandler{
		svc: svc,
	}
}

type createHabitRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name" binding:"required"`
	Category  string `json:"category"`
	Frequency string `json:"frequency"`
	Zone      string `json:"zone"`
	Reminder  string `json:"reminder_time"`
	Weekdays  []int  `json:"weekdays"`
}

type updateHabitRequest struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Frequency string `json:"frequency"`
	Reminder  string `json:"reminder_time"`
	Weekdays  []int  `json:"weekdays"`
	Active    *bool  `json:"active"`
	Version   int    `json:"version"`
}

type completeHabitRequest struct {
	At   *time.Time `json:"at"`
	Note string     `json:"note"`
}

func (h *HabitHandler) RegisterRoutes(router *gin.RouterGroup) {
	habits := router.Group("/habits")
	{
		habits.POST("", h.Create)
		habits.GET("", h.List)
		habits.GET("/changes", h.Changes)
		habits.GET("/:id", h.Get)
		habits.PUT("/:id", h.Update)
		habits.DELETE("/:id", h.Delete)
		habits.POST("/:id/complete", h.Complete)
		habits.POST("/:id/shield", h.UseShield)
		habits.GET("/:id/streak", h.Streak)
		habits.GET("/:id/decay", h.Decay)
	}
}

func (h *HabitHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	var req createHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := services.CreateHabitInput{
		ID:        req.ID,
		UserID:    userID,
		Name:      req.Name,
		Category:  req.Category,
		Frequency: req.Frequency,
		Zone:      req.Zone,
		Reminder:  req.Reminder,
		Weekdays:  req.Weekdays,
	}

	habit, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, habit)
}

func (h *HabitHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	filter := domain.HabitFilter{
		Zone:     c.Query("zone"),
		Category: c.Query("category"),
	}
	if activeStr := c.Query("active"); activeStr != "" {
		active := activeStr == "true"
		filter.Active = &active
	}

	list, err := h.svc.List(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habits": list, "count": len(list)})
}

// Changes serves the delta feed: habits touched after ?since, tombstones
// included.
func (h *HabitHandler) Changes(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	since, err := time.Parse(time.RFC3339, c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since, expected RFC3339"})
		return
	}

	changes, err := h.svc.Changes(c.Request.Context(), userID, since)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habits": changes, "count": len(changes)})
}

func (h *HabitHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	habit, err := h.svc.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, habit)
}

func (h *HabitHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	var req updateHabitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := services.UpdateHabitInput{
		ID:        c.Param("id"),
		UserID:    userID,
		Name:      req.Name,
		Category:  req.Category,
		Frequency: req.Frequency,
		Reminder:  req.Reminder,
		Weekdays:  req.Weekdays,
		Active:    req.Active,
		Version:   req.Version,
	}

	habit, err := h.svc.Update(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, habit)
}

func (h *HabitHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	hard := c.Query("hard") == "true"

	if err := h.svc.Delete(c.Request.Context(), c.Param("id"), userID, hard); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HabitHandler) Complete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	var req completeHabitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	input := services.CompleteHabitInput{
		HabitID: c.Param("id"),
		UserID:  userID,
		Note:    req.Note,
	}
	if req.At != nil {
		input.At = *req.At
	}

	result, err := h.svc.Complete(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *HabitHandler) UseShield(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	result, err := h.svc.UseStreakShield(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *HabitHandler) Streak(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	summary, err := h.svc.CalculateStreak(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *HabitHandler) Decay(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		missingUserContext(c)
		return
	}

	report, err := h.svc.EvaluateDecay(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
