package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSyncInProgress = errors.New("a sync is already in progress for this user")
	ErrUnknownOpKind  = errors.New("unknown pending operation kind")
)

// ConflictStrategy selects how a divergent local/remote pair is resolved.
type ConflictStrategy string

const (
	// StrategyLocalWins keeps the local copy wholesale.
	StrategyLocalWins ConflictStrategy = "local_wins"
	// StrategyRemoteWins keeps the remote copy wholesale.
	StrategyRemoteWins ConflictStrategy = "remote_wins"
	// StrategyNewestWins compares updated_at; ties favor remote. This is the
	// default applied during an ordinary sync.
	StrategyNewestWins ConflictStrategy = "newest_wins"
	// StrategyMerge keeps user-editable fields from local, takes the pairwise
	// maximum of monotone counters, and remote for everything else.
	StrategyMerge ConflictStrategy = "merge"
)

func (s ConflictStrategy) Valid() bool {
	switch s {
	case StrategyLocalWins, StrategyRemoteWins, StrategyNewestWins, StrategyMerge:
		return true
	}
	return false
}

// PendingOpKind tags the entity type of a queued local mutation.
type PendingOpKind string

const (
	OpHabitUpsert      PendingOpKind = "habit_upsert"
	OpCompletionUpsert PendingOpKind = "completion_upsert"
	OpUserUpsert       PendingOpKind = "user_upsert"
)

// PendingOp is a local mutation waiting to be pushed to the remote store.
// Payload is the JSON encoding of the entity at enqueue time.
type PendingOp struct {
	ID       string        `json:"id" db:"id"`
	UserID   string        `json:"user_id" db:"user_id"`
	Kind     PendingOpKind `json:"kind" db:"kind"`
	EntityID string        `json:"entity_id" db:"entity_id"`
	Payload  []byte        `json:"payload" db:"payload"`
	QueuedAt time.Time     `json:"queued_at" db:"queued_at"`
}

// SyncQueue is the bounded pending-operation queue. Enqueue returns a
// QueueFullError once the cap is reached.
type SyncQueue interface {
	Enqueue(ctx context.Context, op *PendingOp) error
	ListPending(ctx context.Context, userID string) ([]*PendingOp, error)
	Remove(ctx context.Context, ids []string) error
	Size(ctx context.Context, userID string) (int, error)
}

// LocalStore is the device-side cache the sync engine reconciles against the
// remote store. It also owns the pending queue and the last-sync watermark.
type LocalStore interface {
	SyncQueue

	GetHabit(ctx context.Context, id string) (*Habit, error)
	ListHabits(ctx context.Context, userID string) ([]*Habit, error)
	SaveHabits(ctx context.Context, habits []*Habit) error

	SaveCompletions(ctx context.Context, events []*CompletionEvent) error
	ListCompletions(ctx context.Context, userID string, from, to time.Time) ([]*CompletionEvent, error)

	GetUser(ctx context.Context, id string) (*UserAccount, error)
	SaveUser(ctx context.Context, user *UserAccount) error

	LastSyncAt(ctx context.Context, userID string) (*time.Time, error)
	SetLastSyncAt(ctx context.Context, userID string, at time.Time) error
}
