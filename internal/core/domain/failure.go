package domain

import (
	"errors"
	"fmt"
)

// FailureKind classifies every error the core can return. Handlers use it to
// pick a status code; the sync layer uses Retryable to decide whether a
// bounded retry makes sense.
type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindValidation
	KindBusinessRule
	KindInfrastructure
	KindConflict
	KindCapacity
)

func (k FailureKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindInfrastructure:
		return "infrastructure"
	case KindConflict:
		return "conflict"
	case KindCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Retryable reports whether the caller may retry the operation as-is.
// Validation and business-rule failures never become valid by retrying.
func (k FailureKind) Retryable() bool {
	return k == KindInfrastructure || k == KindUnknown
}

type kinded interface {
	FailureKind() FailureKind
}

// HabitLimitError is returned when a user at their tier's habit cap tries to
// create another one. The counts travel with the error so the UI can render
// exact guidance.
type HabitLimitError struct {
	CurrentCount int
	MaxAllowed   int
	IsPremium    bool
}

func (e *HabitLimitError) Error() string {
	return fmt.Sprintf("habit limit reached (%d/%d, premium=%t)", e.CurrentCount, e.MaxAllowed, e.IsPremium)
}

func (e *HabitLimitError) FailureKind() FailureKind { return KindCapacity }

// ZoneCapacityError is returned when the target island zone has no slots left.
type ZoneCapacityError struct {
	Zone         string
	CurrentCount int
	MaxAllowed   int
}

func (e *ZoneCapacityError) Error() string {
	return fmt.Sprintf("zone %q is full (%d/%d)", e.Zone, e.CurrentCount, e.MaxAllowed)
}

func (e *ZoneCapacityError) FailureKind() FailureKind { return KindCapacity }

// AdLimitError is returned once the per-day rewarded-ad XP cap is hit.
type AdLimitError struct {
	AdsWatchedToday int
	MaxAdsPerDay    int
}

func (e *AdLimitError) Error() string {
	return fmt.Sprintf("rewarded ad limit reached (%d/%d today)", e.AdsWatchedToday, e.MaxAdsPerDay)
}

func (e *AdLimitError) FailureKind() FailureKind { return KindCapacity }

// QueueFullError is returned when the pending sync queue refuses a new entry.
// Overflow is a rejected operation, never silent data loss.
type QueueFullError struct {
	Size int
	Max  int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("sync queue full (%d/%d)", e.Size, e.Max)
}

func (e *QueueFullError) FailureKind() FailureKind { return KindCapacity }

// KindOf maps any error coming out of the core onto the failure taxonomy.
// Unrecognized errors are treated as infrastructure faults.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindUnknown
	}

	var k kinded
	if errors.As(err, &k) {
		return k.FailureKind()
	}

	switch {
	case errors.Is(err, ErrHabitNameEmpty),
		errors.Is(err, ErrHabitNameTooLong),
		errors.Is(err, ErrInvalidCategory),
		errors.Is(err, ErrInvalidFrequency),
		errors.Is(err, ErrInvalidWeekdays),
		errors.Is(err, ErrInvalidReminder),
		errors.Is(err, ErrInvalidUserID),
		errors.Is(err, ErrCompletionInFuture),
		errors.Is(err, ErrNegativeXPAmount),
		errors.Is(err, ErrInvalidXPSource),
		errors.Is(err, ErrAdIDRequired):
		return KindValidation
	case errors.Is(err, ErrHabitNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrCompletionNotFound),
		errors.Is(err, ErrAlreadyCompletedToday),
		errors.Is(err, ErrDuplicateHabitName),
		errors.Is(err, ErrCannotDeleteLastHabit),
		errors.Is(err, ErrNoShieldsAvailable),
		errors.Is(err, ErrNoActiveStreak),
		errors.Is(err, ErrHabitArchived):
		return KindBusinessRule
	case errors.Is(err, ErrHabitConflict),
		errors.Is(err, ErrUserConflict),
		errors.Is(err, ErrSyncInProgress):
		return KindConflict
	default:
		return KindInfrastructure
	}
}
