package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iampurna/habit-island-core/internal/adapters/repository"
	"github.com/iampurna/habit-island-core/internal/core/domain"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newHabit(t *testing.T, id, userID, name string) *domain.Habit {
	t.Helper()
	h, err := domain.NewHabit(id, userID, name, domain.CategoryExercise, domain.FreqDaily, "", "", nil, testNow)
	require.NoError(t, err)
	return h
}

func TestMemoryHabitRepository_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryHabitRepository()

	h := newHabit(t, "h1", "u1", "Run")
	require.NoError(t, repo.Create(ctx, h))
	require.Equal(t, 1, h.Version)

	fresh, err := repo.GetByID(ctx, "h1")
	require.NoError(t, err)
	stale, err := repo.GetByID(ctx, "h1")
	require.NoError(t, err)

	fresh.Name = "Run far"
	require.NoError(t, repo.Update(ctx, fresh))
	assert.Equal(t, 2, fresh.Version)

	// The copy still carrying version 1 must not overwrite version 2.
	stale.Name = "Run fast"
	assert.ErrorIs(t, repo.Update(ctx, stale), domain.ErrHabitConflict)

	got, err := repo.GetByID(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "Run far", got.Name)
}

func TestMemoryHabitRepository_UpsertNeverRegressesCounters(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryHabitRepository()

	h := newHabit(t, "h1", "u1", "Run")
	h.TotalCompletions = 20
	h.LongestStreak = 9
	require.NoError(t, repo.Upsert(ctx, h))

	// A stale device pushes an older snapshot.
	old := newHabit(t, "h1", "u1", "Run")
	old.TotalCompletions = 12
	old.LongestStreak = 4
	require.NoError(t, repo.Upsert(ctx, old))

	got, err := repo.GetByID(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, 20, got.TotalCompletions)
	assert.Equal(t, 9, got.LongestStreak)
}

func TestMemoryHabitRepository_SoftDeleteLeavesTombstone(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryHabitRepository()

	require.NoError(t, repo.Create(ctx, newHabit(t, "h1", "u1", "Run")))
	require.NoError(t, repo.Delete(ctx, "h1", false))

	_, err := repo.GetByID(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrHabitNotFound)

	list, err := repo.ListByUserID(ctx, "u1", domain.HabitFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// Delta sync still sees the tombstone so other devices can drop the habit.
	changes, err := repo.GetChanges(ctx, "u1", testNow.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.NotNil(t, changes[0].DeletedAt)

	// Hard delete removes the row outright.
	require.NoError(t, repo.Delete(ctx, "h1", true))
	changes, err = repo.GetChanges(ctx, "u1", testNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestMemoryCompletionRepository_ReplayIsANoOp(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryCompletionRepository()

	e := domain.NewCompletionEvent("h1", "u1", testNow, "", testNow)
	require.NoError(t, repo.Create(ctx, e))

	dup := *e
	dup.Note = "changed"
	require.NoError(t, repo.Create(ctx, &dup))

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Note, "the first write wins; a replay changes nothing")

	list, err := repo.ListByHabitID(ctx, "h1", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryUserRepository_UpsertKeepsBestProgress(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryUserRepository()

	u, err := domain.NewUserAccount("u1", 3, testNow)
	require.NoError(t, err)
	u.TotalXP = 500
	u.Level = 6
	require.NoError(t, repo.Upsert(ctx, u))

	stale, err := domain.NewUserAccount("u1", 3, testNow)
	require.NoError(t, err)
	stale.TotalXP = 200
	stale.Level = 3
	require.NoError(t, repo.Upsert(ctx, stale))

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 500, got.TotalXP)
	assert.Equal(t, 6, got.Level)
}

func TestMemoryLocalStore_QueueIsBoundedPerUser(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLocalStore(2)

	enqueue := func(userID string) error {
		return store.Enqueue(ctx, &domain.PendingOp{
			UserID:   userID,
			Kind:     domain.OpHabitUpsert,
			EntityID: "h1",
			Payload:  []byte(`{}`),
			QueuedAt: testNow,
		})
	}

	require.NoError(t, enqueue("u1"))
	require.NoError(t, enqueue("u1"))

	err := enqueue("u1")
	var full *domain.QueueFullError
	require.ErrorAs(t, err, &full)
	assert.Equal(t, 2, full.Size)
	assert.Equal(t, 2, full.Max)

	// Another user's queue is independent.
	assert.NoError(t, enqueue("u2"))

	// Draining frees capacity.
	ops, err := store.ListPending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	require.NoError(t, store.Remove(ctx, []string{ops[0].ID}))

	assert.NoError(t, enqueue("u1"))
}

func TestMemoryLocalStore_Watermark(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryLocalStore(10)

	mark, err := store.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, mark, "no watermark before the first sync")

	require.NoError(t, store.SetLastSyncAt(ctx, "u1", testNow))

	mark, err = store.LastSyncAt(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.True(t, mark.Equal(testNow))
}
