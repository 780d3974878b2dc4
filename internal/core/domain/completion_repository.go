package domain

import (
	"context"
	"time"
)

type CompletionRepository interface {
	// Create appends a new event to the ledger.
	Create(ctx context.Context, event *CompletionEvent) error

	// GetByID retrieves a single event.
	GetByID(ctx context.Context, id string) (*CompletionEvent, error)

	// ListByHabitID returns every event for one habit within [from, to],
	// newest first. A zero from/to means unbounded on that side.
	ListByHabitID(ctx context.Context, habitID string, from, to time.Time) ([]*CompletionEvent, error)

	// ListByUserIDAndDateRange returns all of a user's events in the range,
	// across habits. Feeds stats and the all-habits-done bonus check.
	ListByUserIDAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]*CompletionEvent, error)

	// Upsert inserts the event if its id is unseen, otherwise leaves the
	// existing row alone. Events are immutable, so replay is a no-op.
	Upsert(ctx context.Context, event *CompletionEvent) error

	// GetChanges returns events created after since, for incremental pulls.
	GetChanges(ctx context.Context, userID string, since time.Time) ([]*CompletionEvent, error)
}
