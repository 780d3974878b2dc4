package domain

import (
	"context"
	"time"
)

type XPEventRepository interface {
	// Create appends a new event to the XP ledger.
	Create(ctx context.Context, event *XPEvent) error

	// TotalForUser sums every event amount for the user.
	TotalForUser(ctx context.Context, userID string) (int, error)

	// SumInRange sums amounts for events created within [from, to).
	SumInRange(ctx context.Context, userID string, from, to time.Time) (int, error)

	// CountBySourceInRange counts events of one source within [from, to).
	// Drives the daily-login dedupe and the rewarded-ad cap.
	CountBySourceInRange(ctx context.Context, userID, source string, from, to time.Time) (int, error)

	// ExistsAdID reports whether the ad idempotence key was already credited.
	ExistsAdID(ctx context.Context, userID, adID string) (bool, error)
}
