package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCompletionNotFound = errors.New("completion event not found")
	ErrCompletionInFuture = errors.New("completion timestamp cannot be in the future")
	ErrInvalidCompletion  = errors.New("invalid completion event data")
)

// MaxXPPerCompletion is a sanity ceiling on the xp a single event may carry.
const MaxXPPerCompletion = 1000

// CompletionEvent is one entry of the append-only completion ledger. Events
// are immutable once created; the ledger is the source of truth streaks are
// recomputed from.
type CompletionEvent struct {
	ID      string `json:"id" db:"id"`
	HabitID string `json:"habit_id" db:"habit_id"`
	UserID  string `json:"user_id" db:"user_id"`

	CompletedAt time.Time `json:"completed_at" db:"completed_at"`
	Note        string    `json:"note,omitempty" db:"note"`
	XPEarned    int       `json:"xp_earned" db:"xp_earned"`
	Bonus       bool      `json:"bonus" db:"bonus"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func NewCompletionEvent(habitID, userID string, completedAt time.Time, note string, now time.Time) *CompletionEvent {
	return &CompletionEvent{
		ID:          uuid.NewString(),
		HabitID:     habitID,
		UserID:      userID,
		CompletedAt: completedAt.UTC(),
		Note:        note,
		CreatedAt:   now.UTC(),
	}
}

// Validate checks the ledger invariants against the given reference instant.
func (e *CompletionEvent) Validate(now time.Time) error {
	if strings.TrimSpace(e.HabitID) == "" {
		return ErrInvalidCompletion
	}
	if strings.TrimSpace(e.UserID) == "" {
		return ErrInvalidCompletion
	}
	if e.CompletedAt.IsZero() {
		return ErrInvalidCompletion
	}
	if e.CompletedAt.After(now) {
		return ErrCompletionInFuture
	}
	if e.XPEarned < 0 || e.XPEarned > MaxXPPerCompletion {
		return ErrInvalidCompletion
	}
	return nil
}
