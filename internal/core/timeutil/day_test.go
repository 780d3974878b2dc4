package timeutil_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

func TestDayResolver_SameDay(t *testing.T) {
	days := timeutil.NewDayResolver(0)

	t.Run("instants just around midnight fall on different days", func(t *testing.T) {
		before := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
		after := time.Date(2024, 3, 11, 0, 0, 1, 0, time.UTC)

		assert.False(t, days.SameDay(before, after))
		assert.True(t, days.IsConsecutive(before, after))
	})

	t.Run("same calendar day regardless of hour", func(t *testing.T) {
		morning := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
		night := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)

		assert.True(t, days.SameDay(morning, night))
	})
}

func TestDayResolver_GracePeriod(t *testing.T) {
	days := timeutil.NewDayResolver(3 * time.Hour)

	t.Run("early morning belongs to the previous day", func(t *testing.T) {
		lateNight := time.Date(2024, 3, 10, 23, 45, 0, 0, time.UTC)
		earlyMorning := time.Date(2024, 3, 11, 1, 30, 0, 0, time.UTC)

		assert.True(t, days.SameDay(lateNight, earlyMorning))
		assert.Equal(t, "2024-03-10", days.DayKey(earlyMorning))
	})

	t.Run("past the grace boundary starts a new day", func(t *testing.T) {
		earlyMorning := time.Date(2024, 3, 11, 3, 0, 1, 0, time.UTC)
		assert.Equal(t, "2024-03-11", days.DayKey(earlyMorning))
	})

	t.Run("day bounds include the grace shift", func(t *testing.T) {
		at := time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC)
		start, end := days.DayBounds(at)

		assert.Equal(t, time.Date(2024, 3, 11, 3, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2024, 3, 12, 3, 0, 0, 0, time.UTC), end)
	})
}

func TestDayResolver_DaysBetween(t *testing.T) {
	days := timeutil.NewDayResolver(0)

	a := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, days.DaysBetween(a, a.Add(time.Hour)))
	assert.Equal(t, 1, days.DaysBetween(a, a.Add(3*time.Hour)))
	assert.Equal(t, 5, days.DaysBetween(a, time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, days.DaysBetween(a, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)))
}

func TestDayResolver_WeekAndMonth(t *testing.T) {
	days := timeutil.NewDayResolver(0)

	// 2024-03-13 is a Wednesday.
	at := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), days.StartOfWeek(at))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), days.StartOfMonth(at))

	// Sunday still belongs to the week that started the previous Monday.
	sunday := time.Date(2024, 3, 17, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), days.StartOfWeek(sunday))
}
