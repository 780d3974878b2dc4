package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrHabitNotFound      = errors.New("habit not found")
	ErrHabitConflict      = errors.New("habit version conflict")
	ErrDuplicateHabitName = errors.New("a habit with this name already exists")
)

// HabitFilter narrows ListByUserID. Nil/empty fields mean "no filter".
type HabitFilter struct {
	Active   *bool
	Zone     string
	Category string
}

type HabitRepository interface {
	// Create persists a new habit definition.
	Create(ctx context.Context, habit *Habit) error

	// GetByID retrieves a habit by its unique identifier.
	GetByID(ctx context.Context, id string) (*Habit, error)

	// ListByUserID retrieves a user's habits, newest first, honoring the
	// filter.
	ListByUserID(ctx context.Context, userID string, filter HabitFilter) ([]*Habit, error)

	// FindByName does a case-insensitive name lookup scoped to one user.
	// Returns ErrHabitNotFound when no active habit matches.
	FindByName(ctx context.Context, userID, name string) (*Habit, error)

	// CountActive returns the number of active habits for a user.
	CountActive(ctx context.Context, userID string) (int, error)

	// CountActiveInZone returns the number of active habits in one zone.
	CountActiveInZone(ctx context.Context, userID, zone string) (int, error)

	// Update modifies an existing habit. Implementations must check the
	// version column (optimistic locking) and return ErrHabitConflict on a
	// mismatch. total_completions is owned by IncrementCompletion and is not
	// written here.
	Update(ctx context.Context, habit *Habit) error

	// IncrementCompletion atomically bumps total_completions and
	// last_completed_at, so two devices completing near-simultaneously never
	// lose an update.
	IncrementCompletion(ctx context.Context, id string, completedAt time.Time) error

	// UpdateStreaks writes only the cached streak counters, used by the
	// ledger audit worker when a repair is needed.
	UpdateStreaks(ctx context.Context, id string, current, longest int) error

	// Delete soft-deletes by default; hard removes the row entirely.
	Delete(ctx context.Context, id string, hard bool) error

	// Upsert inserts or overwrites a habit by id, used by the sync push path.
	Upsert(ctx context.Context, habit *Habit) error

	// GetChanges returns habits whose updated_at is after since, oldest
	// first, soft-deleted rows included so clients can tombstone them.
	GetChanges(ctx context.Context, userID string, since time.Time) ([]*Habit, error)
}
