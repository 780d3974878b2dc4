package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iampurna/habit-island-core/internal/adapters/repository"
	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/services"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

func TestStatsService_GetPeriodStats(t *testing.T) {
	ctx := context.Background()
	rules := config.DefaultRules()
	days := timeutil.NewDayResolver(rules.GracePeriod)

	habits := repository.NewMemoryHabitRepository()
	completions := repository.NewMemoryCompletionRepository()
	svc := services.NewStatsService(habits, completions, days)

	base := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC) // a Monday

	run, err := domain.NewHabit("h-run", "u1", "Run", domain.CategoryExercise, domain.FreqDaily, "", "", nil, base)
	require.NoError(t, err)
	require.NoError(t, habits.Create(ctx, run))

	read, err := domain.NewHabit("h-read", "u1", "Read", domain.CategoryReading, domain.FreqDaily, "", "", nil, base)
	require.NoError(t, err)
	require.NoError(t, habits.Create(ctx, read))

	// Run on Mon/Tue/Thu, read only Monday.
	for _, day := range []int{0, 1, 3} {
		e := domain.NewCompletionEvent("h-run", "u1", base.AddDate(0, 0, day), "", base.AddDate(0, 0, day))
		require.NoError(t, completions.Create(ctx, e))
	}
	e := domain.NewCompletionEvent("h-read", "u1", base, "", base)
	require.NoError(t, completions.Create(ctx, e))

	stats, err := svc.GetPeriodStats(ctx, domain.StatsInput{
		UserID:    "u1",
		StartDate: base,
		EndDate:   base.AddDate(0, 0, 6),
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-11", stats.StartDate)
	assert.Equal(t, "2024-03-17", stats.EndDate)
	assert.Equal(t, 2, stats.TotalHabits)
	require.Len(t, stats.HabitStats, 2)

	byID := make(map[string]domain.HabitStat, len(stats.HabitStats))
	for _, hs := range stats.HabitStats {
		byID[hs.HabitID] = hs
	}

	runStat := byID["h-run"]
	assert.Equal(t, 3, runStat.DaysCompleted)
	assert.InDelta(t, 3.0/7.0*100, runStat.CompletionRate, 0.01)
	assert.Equal(t, []int{1, 1, 0, 1, 0, 0, 0}, runStat.DailyProgress)

	readStat := byID["h-read"]
	assert.Equal(t, 1, readStat.DaysCompleted)

	// 4 completed day-slots out of 14 possible.
	assert.InDelta(t, 4.0/14.0*100, stats.OverallRate, 0.01)
}

func TestStatsService_SkipsArchivedHabits(t *testing.T) {
	ctx := context.Background()
	rules := config.DefaultRules()
	days := timeutil.NewDayResolver(rules.GracePeriod)

	habits := repository.NewMemoryHabitRepository()
	completions := repository.NewMemoryCompletionRepository()
	svc := services.NewStatsService(habits, completions, days)

	base := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)

	h, err := domain.NewHabit("h1", "u1", "Run", domain.CategoryExercise, domain.FreqDaily, "", "", nil, base)
	require.NoError(t, err)
	require.NoError(t, habits.Create(ctx, h))
	require.NoError(t, habits.Delete(ctx, "h1", false))

	stats, err := svc.GetPeriodStats(ctx, domain.StatsInput{
		UserID:    "u1",
		StartDate: base,
		EndDate:   base.AddDate(0, 0, 6),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalHabits)
	assert.Zero(t, stats.OverallRate)
}

func TestStatsService_GraceAssignsSmallHoursToPreviousDay(t *testing.T) {
	ctx := context.Background()
	days := timeutil.NewDayResolver(3 * time.Hour)

	habits := repository.NewMemoryHabitRepository()
	completions := repository.NewMemoryCompletionRepository()
	svc := services.NewStatsService(habits, completions, days)

	base := time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)

	h, err := domain.NewHabit("h1", "u1", "Run", domain.CategoryExercise, domain.FreqDaily, "", "", nil, base)
	require.NoError(t, err)
	require.NoError(t, habits.Create(ctx, h))

	// 01:30 on the 12th falls inside the grace window, so it counts as the 11th.
	at := time.Date(2024, 3, 12, 1, 30, 0, 0, time.UTC)
	require.NoError(t, completions.Create(ctx, domain.NewCompletionEvent("h1", "u1", at, "", at)))

	// 01:30 on the 13th is past the calendar end of the period but still
	// belongs to the 12th, the last logical day.
	late := time.Date(2024, 3, 13, 1, 30, 0, 0, time.UTC)
	require.NoError(t, completions.Create(ctx, domain.NewCompletionEvent("h1", "u1", late, "", late)))

	stats, err := svc.GetPeriodStats(ctx, domain.StatsInput{
		UserID:    "u1",
		StartDate: base,
		EndDate:   base.AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	require.Len(t, stats.HabitStats, 1)
	assert.Equal(t, []int{1, 1}, stats.HabitStats[0].DailyProgress)
}
