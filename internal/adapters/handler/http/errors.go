package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

// respondError maps a core error onto a status code and a JSON body carrying
// the failure kind, so clients can branch without parsing message text.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)

	body := gin.H{
		"error":     err.Error(),
		"kind":      kind.String(),
		"retryable": kind.Retryable(),
	}

	var limitErr *domain.HabitLimitError
	if errors.As(err, &limitErr) {
		body["current_count"] = limitErr.CurrentCount
		body["max_allowed"] = limitErr.MaxAllowed
		body["premium"] = limitErr.IsPremium
	}
	var zoneErr *domain.ZoneCapacityError
	if errors.As(err, &zoneErr) {
		body["zone"] = zoneErr.Zone
		body["current_count"] = zoneErr.CurrentCount
		body["max_allowed"] = zoneErr.MaxAllowed
	}
	var adErr *domain.AdLimitError
	if errors.As(err, &adErr) {
		body["ads_watched_today"] = adErr.AdsWatchedToday
		body["max_ads_per_day"] = adErr.MaxAdsPerDay
	}
	var queueErr *domain.QueueFullError
	if errors.As(err, &queueErr) {
		body["queue_size"] = queueErr.Size
		body["queue_max"] = queueErr.Max
	}

	c.JSON(statusFor(err, kind), body)
}

func statusFor(err error, kind domain.FailureKind) int {
	switch {
	case errors.Is(err, domain.ErrHabitNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrCompletionNotFound):
		return http.StatusNotFound
	}

	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindCapacity:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func missingUserContext(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
}
