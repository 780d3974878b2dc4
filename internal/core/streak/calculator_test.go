package streak_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/streak"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

func eventOn(day time.Time) *domain.CompletionEvent {
	return &domain.CompletionEvent{
		ID:          day.Format("2006-01-02"),
		HabitID:     "h1",
		UserID:      "u1",
		CompletedAt: day,
	}
}

func TestCalculate(t *testing.T) {
	days := timeutil.NewDayResolver(0)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	day := func(offset int) time.Time {
		return now.AddDate(0, 0, offset)
	}

	t.Run("empty ledger is a broken streak", func(t *testing.T) {
		got := streak.Calculate(streak.Input{Now: now}, days)

		assert.Equal(t, 0, got.Current)
		assert.Equal(t, 0, got.Longest)
		assert.Equal(t, streak.StatusBroken, got.Status)
		assert.False(t, got.IsActive)
	})

	t.Run("consecutive days ending today", func(t *testing.T) {
		in := streak.Input{
			Events: []*domain.CompletionEvent{
				eventOn(day(-2)), eventOn(day(-1)), eventOn(day(0)),
			},
			Now: now,
		}
		got := streak.Calculate(in, days)

		assert.Equal(t, 3, got.Current)
		assert.Equal(t, 3, got.Longest)
		assert.Equal(t, streak.StatusActive, got.Status)
		assert.True(t, got.IsActive)
	})

	t.Run("last completion yesterday is at risk, not broken", func(t *testing.T) {
		in := streak.Input{
			Events: []*domain.CompletionEvent{eventOn(day(-2)), eventOn(day(-1))},
			Now:    now,
		}
		got := streak.Calculate(in, days)

		assert.Equal(t, 2, got.Current)
		assert.Equal(t, streak.StatusAtRisk, got.Status)
		assert.True(t, got.IsActive)
	})

	t.Run("two day gap breaks the current streak but keeps the longest", func(t *testing.T) {
		in := streak.Input{
			Events: []*domain.CompletionEvent{
				eventOn(day(-6)), eventOn(day(-5)), eventOn(day(-4)), eventOn(day(-3)),
			},
			Now: now,
		}
		got := streak.Calculate(in, days)

		assert.Equal(t, 0, got.Current)
		assert.Equal(t, 4, got.Longest)
		assert.Equal(t, streak.StatusBroken, got.Status)
	})

	t.Run("same day duplicates collapse into one", func(t *testing.T) {
		morning := day(0).Add(-4 * time.Hour)
		evening := day(0).Add(-1 * time.Hour)

		in := streak.Input{
			Events: []*domain.CompletionEvent{eventOn(day(-1)), eventOn(morning), eventOn(evening)},
			Now:    now,
		}
		got := streak.Calculate(in, days)

		assert.Equal(t, 2, got.Current)
		assert.Equal(t, 2, got.Longest)
	})

	t.Run("shielded day bridges a hole in the ledger", func(t *testing.T) {
		shielded := days.DayOf(day(-1))
		in := streak.Input{
			Events:      []*domain.CompletionEvent{eventOn(day(-2)), eventOn(day(0))},
			ShieldedDay: &shielded,
			Now:         now,
		}
		got := streak.Calculate(in, days)

		assert.Equal(t, 3, got.Current)
		assert.Equal(t, 3, got.Longest)
	})

	t.Run("protected flag upgrades the status", func(t *testing.T) {
		in := streak.Input{
			Events:    []*domain.CompletionEvent{eventOn(day(-1))},
			Protected: true,
			Now:       now,
		}
		got := streak.Calculate(in, days)

		assert.Equal(t, streak.StatusProtected, got.Status)
	})

	t.Run("longest run found in the middle of history", func(t *testing.T) {
		in := streak.Input{
			Events: []*domain.CompletionEvent{
				eventOn(day(-10)), eventOn(day(-9)), eventOn(day(-8)), eventOn(day(-7)), eventOn(day(-6)),
				eventOn(day(-1)), eventOn(day(0)),
			},
			Now: now,
		}
		got := streak.Calculate(in, days)

		assert.Equal(t, 2, got.Current)
		assert.Equal(t, 5, got.Longest)
	})

	t.Run("streak start is reported", func(t *testing.T) {
		in := streak.Input{
			Events: []*domain.CompletionEvent{eventOn(day(-1)), eventOn(day(0))},
			Now:    now,
		}
		got := streak.Calculate(in, days)

		if assert.NotNil(t, got.StreakStartAt) {
			assert.Equal(t, days.DayOf(day(-1)), *got.StreakStartAt)
		}
	})
}
