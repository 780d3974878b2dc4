package workers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iampurna/habit-island-core/internal/adapters/repository"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
	"github.com/iampurna/habit-island-core/internal/core/workers"
)

func TestLedgerAuditWorker_RepairsDriftedStreaks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := timeutil.FixedClock{T: now}
	days := timeutil.NewDayResolver(0)

	habits := repository.NewMemoryHabitRepository()
	completions := repository.NewMemoryCompletionRepository()

	h, err := domain.NewHabit("h1", "u1", "Run", domain.CategoryExercise, domain.FreqDaily, "", "", nil, now.AddDate(0, 0, -3))
	require.NoError(t, err)
	require.NoError(t, habits.Create(ctx, h))

	// Three consecutive ledger days the cached counters know nothing about.
	for i := 2; i >= 0; i-- {
		at := now.AddDate(0, 0, -i)
		e := domain.NewCompletionEvent("h1", "u1", at, "", at)
		require.NoError(t, completions.Create(ctx, e))
	}

	w := workers.NewLedgerAuditWorker(habits, completions, days, clock)
	w.Start(ctx)
	w.Enqueue("h1")

	assert.Eventually(t, func() bool {
		got, err := habits.GetByID(ctx, "h1")
		if err != nil {
			return false
		}
		return got.CurrentStreak == 3 && got.LongestStreak == 3
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLedgerAuditWorker_LeavesConsistentCountersAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := timeutil.FixedClock{T: now}
	days := timeutil.NewDayResolver(0)

	habits := repository.NewMemoryHabitRepository()
	completions := repository.NewMemoryCompletionRepository()

	h, err := domain.NewHabit("h1", "u1", "Run", domain.CategoryExercise, domain.FreqDaily, "", "", nil, now)
	require.NoError(t, err)
	require.NoError(t, habits.Create(ctx, h))

	e := domain.NewCompletionEvent("h1", "u1", now, "", now)
	require.NoError(t, completions.Create(ctx, e))
	require.NoError(t, habits.UpdateStreaks(ctx, "h1", 1, 1))

	before, err := habits.GetByID(ctx, "h1")
	require.NoError(t, err)

	w := workers.NewLedgerAuditWorker(habits, completions, days, clock)
	w.Start(ctx)
	w.Enqueue("h1")

	// Give the worker a chance to process, then confirm nothing moved.
	time.Sleep(100 * time.Millisecond)

	after, err := habits.GetByID(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, before.CurrentStreak, after.CurrentStreak)
	assert.Equal(t, before.Version, after.Version)
}

func TestLedgerAuditWorker_MissingHabitIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := timeutil.FixedClock{T: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
	w := workers.NewLedgerAuditWorker(
		repository.NewMemoryHabitRepository(),
		repository.NewMemoryCompletionRepository(),
		timeutil.NewDayResolver(0),
		clock,
	)
	w.Start(ctx)

	// Must not panic or wedge the worker loop.
	w.Enqueue("no-such-habit")
	time.Sleep(50 * time.Millisecond)
}
