package domain

import (
	"context"
	"time"
)

type UserRepository interface {
	// Create persists a new account.
	Create(ctx context.Context, user *UserAccount) error

	// GetByID retrieves an account, ErrUserNotFound when absent.
	GetByID(ctx context.Context, id string) (*UserAccount, error)

	// Update writes the full account row with an optimistic version check.
	Update(ctx context.Context, user *UserAccount) error

	// Upsert inserts or overwrites by id, used by the sync push path.
	Upsert(ctx context.Context, user *UserAccount) error

	// GetIfChanged returns the account when its updated_at is after since,
	// nil otherwise. Keeps user pulls incremental like the other stores.
	GetIfChanged(ctx context.Context, id string, since time.Time) (*UserAccount, error)
}
