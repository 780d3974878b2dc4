package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNegativeXPAmount = errors.New("xp amount cannot be negative")
	ErrInvalidXPSource  = errors.New("invalid xp source")
	ErrAdIDRequired     = errors.New("ad id is required")
)

// XP event sources.
const (
	XPSourceCompletion = "habit_completion"
	XPSourceDailyLogin = "daily_login"
	XPSourceRewardedAd = "rewarded_ad"
	XPSourceManual     = "manual"
)

var validXPSources = map[string]bool{
	XPSourceCompletion: true,
	XPSourceDailyLogin: true,
	XPSourceRewardedAd: true,
	XPSourceManual:     true,
}

// XPEvent is one entry of the append-only XP ledger. Total XP for a user is
// the sum over all of their events; the cached total on UserAccount is an
// optimization, never authoritative.
type XPEvent struct {
	ID      string `json:"id" db:"id"`
	UserID  string `json:"user_id" db:"user_id"`
	HabitID string `json:"habit_id,omitempty" db:"habit_id"`

	Amount      int    `json:"amount" db:"amount"`
	Source      string `json:"source" db:"source"`
	Description string `json:"description,omitempty" db:"description"`

	// AdID is the idempotence key for rewarded-ad grants; a given ad is
	// credited at most once.
	AdID string `json:"ad_id,omitempty" db:"ad_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewXPEvent(userID, habitID string, amount int, source, description string, now time.Time) *XPEvent {
	return &XPEvent{
		ID:          uuid.NewString(),
		UserID:      userID,
		HabitID:     habitID,
		Amount:      amount,
		Source:      source,
		Description: description,
		CreatedAt:   now.UTC(),
	}
}

func (e *XPEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrInvalidUserID
	}
	if e.Amount < 0 {
		return ErrNegativeXPAmount
	}
	if !validXPSources[e.Source] {
		return ErrInvalidXPSource
	}
	return nil
}

// LevelForXP derives the level from a total. Level 1 starts at zero XP.
func LevelForXP(totalXP, xpPerLevel int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/xpPerLevel + 1
}

// XPIntoLevel is the XP accumulated inside the current level.
func XPIntoLevel(totalXP, xpPerLevel int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP % xpPerLevel
}

// XPToNextLevel is the remaining XP before the next level is reached.
func XPToNextLevel(totalXP, xpPerLevel int) int {
	return xpPerLevel - XPIntoLevel(totalXP, xpPerLevel)
}
