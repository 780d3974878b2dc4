package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

var _ domain.HabitRepository = (*CachedHabitRepository)(nil)

// CachedHabitRepository decorates a HabitRepository with a Redis read-through
// cache over the per-user habit list. The cache is an optimization only: any
// Redis failure falls back to the underlying store.
type CachedHabitRepository struct {
	next  domain.HabitRepository
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedHabitRepository(next domain.HabitRepository, cache *redis.Client) *CachedHabitRepository {
	return &CachedHabitRepository{
		next:  next,
		cache: cache,
		ttl:   30 * time.Minute,
	}
}

func (r *CachedHabitRepository) cacheKey(userID string) string {
	return fmt.Sprintf("habits:%s", userID)
}

func (r *CachedHabitRepository) invalidate(ctx context.Context, userID string) {
	if err := r.cache.Del(ctx, r.cacheKey(userID)).Err(); err != nil {
		log.Printf("[CACHE] Failed to invalidate for user %s: %v", userID, err)
	}
}

func (r *CachedHabitRepository) invalidateByHabitID(ctx context.Context, id string) {
	habit, err := r.next.GetByID(ctx, id)
	if err == nil && habit != nil {
		r.invalidate(ctx, habit.UserID)
	}
}

// ListByUserID caches the unfiltered list only; filtered reads are rare and
// go straight through.
func (r *CachedHabitRepository) ListByUserID(ctx context.Context, userID string, filter domain.HabitFilter) ([]*domain.Habit, error) {
	if filter != (domain.HabitFilter{}) {
		return r.next.ListByUserID(ctx, userID, filter)
	}

	key := r.cacheKey(userID)

	val, err := r.cache.Get(ctx, key).Result()
	if err == nil {
		var habits []*domain.Habit
		if err := json.Unmarshal([]byte(val), &habits); err == nil {
			return habits, nil
		}

		log.Printf("[CACHE] Corrupted data for user %s, cleaning up key", userID)
		r.cache.Del(ctx, key)
	} else if err != redis.Nil {
		log.Printf("[CACHE] Redis read error: %v", err)
	}

	habits, err := r.next.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(habits); err == nil {
		if setErr := r.cache.Set(ctx, key, data, r.ttl).Err(); setErr != nil {
			log.Printf("[CACHE] Redis set error: %v", setErr)
		}
	}

	return habits, nil
}

func (r *CachedHabitRepository) GetByID(ctx context.Context, id string) (*domain.Habit, error) {
	return r.next.GetByID(ctx, id)
}

func (r *CachedHabitRepository) FindByName(ctx context.Context, userID, name string) (*domain.Habit, error) {
	return r.next.FindByName(ctx, userID, name)
}

func (r *CachedHabitRepository) CountActive(ctx context.Context, userID string) (int, error) {
	return r.next.CountActive(ctx, userID)
}

func (r *CachedHabitRepository) CountActiveInZone(ctx context.Context, userID, zone string) (int, error) {
	return r.next.CountActiveInZone(ctx, userID, zone)
}

func (r *CachedHabitRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.Habit, error) {
	return r.next.GetChanges(ctx, userID, since)
}

func (r *CachedHabitRepository) Create(ctx context.Context, habit *domain.Habit) error {
	if err := r.next.Create(ctx, habit); err != nil {
		return err
	}
	r.invalidate(ctx, habit.UserID)
	return nil
}

func (r *CachedHabitRepository) Update(ctx context.Context, habit *domain.Habit) error {
	if err := r.next.Update(ctx, habit); err != nil {
		return err
	}
	r.invalidate(ctx, habit.UserID)
	return nil
}

func (r *CachedHabitRepository) Upsert(ctx context.Context, habit *domain.Habit) error {
	if err := r.next.Upsert(ctx, habit); err != nil {
		return err
	}
	r.invalidate(ctx, habit.UserID)
	return nil
}

func (r *CachedHabitRepository) IncrementCompletion(ctx context.Context, id string, completedAt time.Time) error {
	defer r.invalidateByHabitID(ctx, id)
	return r.next.IncrementCompletion(ctx, id, completedAt)
}

func (r *CachedHabitRepository) UpdateStreaks(ctx context.Context, id string, current, longest int) error {
	defer r.invalidateByHabitID(ctx, id)
	return r.next.UpdateStreaks(ctx, id, current, longest)
}

func (r *CachedHabitRepository) Delete(ctx context.Context, id string, hard bool) error {
	habit, err := r.next.GetByID(ctx, id)
	if err == nil && habit != nil {
		defer r.invalidate(ctx, habit.UserID)
	}

	return r.next.Delete(ctx, id, hard)
}
