package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

// In-memory repositories backing unit tests and local development. They hold
// the same invariants as the Postgres adapters (version checks, monotone
// upserts, soft deletes) so services can be exercised without a database.

func copyHabit(h *domain.Habit) *domain.Habit {
	c := *h
	if h.Weekdays != nil {
		c.Weekdays = append([]int(nil), h.Weekdays...)
	}
	return &c
}

func copyUser(u *domain.UserAccount) *domain.UserAccount {
	c := *u
	if u.UnlockedZones != nil {
		c.UnlockedZones = append([]string(nil), u.UnlockedZones...)
	}
	return &c
}

func copyEvent(e *domain.CompletionEvent) *domain.CompletionEvent {
	c := *e
	return &c
}

func maxOf(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type MemoryHabitRepository struct {
	mu     sync.RWMutex
	habits map[string]*domain.Habit
}

func NewMemoryHabitRepository() *MemoryHabitRepository {
	return &MemoryHabitRepository{habits: make(map[string]*domain.Habit)}
}

func (r *MemoryHabitRepository) Create(_ context.Context, h *domain.Habit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h.Version = 1
	r.habits[h.ID] = copyHabit(h)
	return nil
}

func (r *MemoryHabitRepository) GetByID(_ context.Context, id string) (*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.habits[id]
	if !ok || h.DeletedAt != nil {
		return nil, domain.ErrHabitNotFound
	}
	return copyHabit(h), nil
}

func (r *MemoryHabitRepository) ListByUserID(_ context.Context, userID string, filter domain.HabitFilter) ([]*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Habit
	for _, h := range r.habits {
		if h.UserID != userID || h.DeletedAt != nil {
			continue
		}
		if filter.Active != nil && h.Active != *filter.Active {
			continue
		}
		if filter.Zone != "" && h.Zone != filter.Zone {
			continue
		}
		if filter.Category != "" && h.Category != filter.Category {
			continue
		}
		out = append(out, copyHabit(h))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryHabitRepository) FindByName(_ context.Context, userID, name string) (*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, h := range r.habits {
		if h.UserID == userID && h.Active && h.DeletedAt == nil && strings.EqualFold(h.Name, name) {
			return copyHabit(h), nil
		}
	}
	return nil, domain.ErrHabitNotFound
}

func (r *MemoryHabitRepository) CountActive(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, h := range r.habits {
		if h.UserID == userID && h.Active && h.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *MemoryHabitRepository) CountActiveInZone(_ context.Context, userID, zone string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, h := range r.habits {
		if h.UserID == userID && h.Zone == zone && h.Active && h.DeletedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *MemoryHabitRepository) Update(_ context.Context, h *domain.Habit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.habits[h.ID]
	if !ok {
		return domain.ErrHabitNotFound
	}
	if stored.DeletedAt != nil || stored.Version != h.Version {
		return domain.ErrHabitConflict
	}

	next := copyHabit(h)
	next.TotalCompletions = stored.TotalCompletions
	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now().UTC()
	r.habits[h.ID] = next

	h.Version = next.Version
	h.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *MemoryHabitRepository) IncrementCompletion(_ context.Context, id string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.habits[id]
	if !ok || h.DeletedAt != nil {
		return domain.ErrHabitNotFound
	}

	h.TotalCompletions++
	if h.LastCompletedAt == nil || completedAt.After(*h.LastCompletedAt) {
		t := completedAt
		h.LastCompletedAt = &t
	}
	h.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryHabitRepository) UpdateStreaks(_ context.Context, id string, current, longest int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.habits[id]
	if !ok || h.DeletedAt != nil {
		return domain.ErrHabitNotFound
	}

	h.CurrentStreak = current
	h.LongestStreak = maxOf(h.LongestStreak, longest)
	h.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryHabitRepository) Delete(_ context.Context, id string, hard bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.habits[id]
	if !ok || (h.DeletedAt != nil && !hard) {
		return domain.ErrHabitNotFound
	}

	if hard {
		delete(r.habits, id)
		return nil
	}

	now := time.Now().UTC()
	h.DeletedAt = &now
	h.Active = false
	h.UpdatedAt = now
	h.Version++
	return nil
}

func (r *MemoryHabitRepository) Upsert(_ context.Context, h *domain.Habit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := copyHabit(h)
	if stored, ok := r.habits[h.ID]; ok {
		next.LongestStreak = maxOf(stored.LongestStreak, h.LongestStreak)
		next.TotalCompletions = maxOf(stored.TotalCompletions, h.TotalCompletions)
		next.Version = maxOf(stored.Version, h.Version) + 1
	}
	next.UpdatedAt = time.Now().UTC()
	r.habits[h.ID] = next
	return nil
}

func (r *MemoryHabitRepository) GetChanges(_ context.Context, userID string, since time.Time) ([]*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Habit
	for _, h := range r.habits {
		if h.UserID == userID && h.UpdatedAt.After(since) {
			out = append(out, copyHabit(h))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

type MemoryCompletionRepository struct {
	mu     sync.RWMutex
	events map[string]*domain.CompletionEvent
}

func NewMemoryCompletionRepository() *MemoryCompletionRepository {
	return &MemoryCompletionRepository{events: make(map[string]*domain.CompletionEvent)}
}

func (r *MemoryCompletionRepository) Create(_ context.Context, e *domain.CompletionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[e.ID]; ok {
		return nil
	}
	r.events[e.ID] = copyEvent(e)
	return nil
}

func (r *MemoryCompletionRepository) GetByID(_ context.Context, id string) (*domain.CompletionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, domain.ErrCompletionNotFound
	}
	return copyEvent(e), nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func (r *MemoryCompletionRepository) ListByHabitID(_ context.Context, habitID string, from, to time.Time) ([]*domain.CompletionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.CompletionEvent
	for _, e := range r.events {
		if e.HabitID == habitID && inRange(e.CompletedAt, from, to) {
			out = append(out, copyEvent(e))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (r *MemoryCompletionRepository) ListByUserIDAndDateRange(_ context.Context, userID string, from, to time.Time) ([]*domain.CompletionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.CompletionEvent
	for _, e := range r.events {
		if e.UserID == userID && inRange(e.CompletedAt, from, to) {
			out = append(out, copyEvent(e))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (r *MemoryCompletionRepository) Upsert(ctx context.Context, e *domain.CompletionEvent) error {
	return r.Create(ctx, e)
}

func (r *MemoryCompletionRepository) GetChanges(_ context.Context, userID string, since time.Time) ([]*domain.CompletionEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.CompletionEvent
	for _, e := range r.events {
		if e.UserID == userID && e.CreatedAt.After(since) {
			out = append(out, copyEvent(e))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type MemoryXPEventRepository struct {
	mu     sync.RWMutex
	events []*domain.XPEvent
}

func NewMemoryXPEventRepository() *MemoryXPEventRepository {
	return &MemoryXPEventRepository{}
}

func (r *MemoryXPEventRepository) Create(_ context.Context, e *domain.XPEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.events {
		if existing.ID == e.ID {
			return nil
		}
	}
	c := *e
	r.events = append(r.events, &c)
	return nil
}

func (r *MemoryXPEventRepository) TotalForUser(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, e := range r.events {
		if e.UserID == userID {
			total += e.Amount
		}
	}
	return total, nil
}

func (r *MemoryXPEventRepository) SumInRange(_ context.Context, userID string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, e := range r.events {
		if e.UserID == userID && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			total += e.Amount
		}
	}
	return total, nil
}

func (r *MemoryXPEventRepository) CountBySourceInRange(_ context.Context, userID, source string, from, to time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.events {
		if e.UserID == userID && e.Source == source && !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryXPEventRepository) ExistsAdID(_ context.Context, userID, adID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.events {
		if e.UserID == userID && e.AdID == adID {
			return true, nil
		}
	}
	return false, nil
}

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.UserAccount
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domain.UserAccount)}
}

func (r *MemoryUserRepository) Create(_ context.Context, u *domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return nil
	}
	u.Version = 1
	r.users[u.ID] = copyUser(u)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *MemoryUserRepository) Update(_ context.Context, u *domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if stored.Version != u.Version {
		return domain.ErrUserConflict
	}

	next := copyUser(u)
	next.Version = stored.Version + 1
	next.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = next

	u.Version = next.Version
	u.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *MemoryUserRepository) Upsert(_ context.Context, u *domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := copyUser(u)
	if stored, ok := r.users[u.ID]; ok {
		next.TotalXP = maxOf(stored.TotalXP, u.TotalXP)
		next.Level = maxOf(stored.Level, u.Level)
		next.GlobalStreak = maxOf(stored.GlobalStreak, u.GlobalStreak)
		next.Version = maxOf(stored.Version, u.Version) + 1
	}
	next.UpdatedAt = time.Now().UTC()
	r.users[u.ID] = next
	return nil
}

func (r *MemoryUserRepository) GetIfChanged(_ context.Context, id string, since time.Time) (*domain.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok || !u.UpdatedAt.After(since) {
		return nil, nil
	}
	return copyUser(u), nil
}

// MemoryLocalStore is an in-process device cache for tests: habits,
// completions, the user snapshot, the last-sync watermark and a bounded
// pending queue.
type MemoryLocalStore struct {
	mu          sync.RWMutex
	habits      map[string]*domain.Habit
	completions map[string]*domain.CompletionEvent
	users       map[string]*domain.UserAccount
	pending     []*domain.PendingOp
	lastSync    map[string]time.Time
	queueMax    int
}

func NewMemoryLocalStore(queueMax int) *MemoryLocalStore {
	return &MemoryLocalStore{
		habits:      make(map[string]*domain.Habit),
		completions: make(map[string]*domain.CompletionEvent),
		users:       make(map[string]*domain.UserAccount),
		lastSync:    make(map[string]time.Time),
		queueMax:    queueMax,
	}
}

func (s *MemoryLocalStore) Enqueue(_ context.Context, op *domain.PendingOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, p := range s.pending {
		if p.UserID == op.UserID {
			count++
		}
	}
	if count >= s.queueMax {
		return &domain.QueueFullError{Size: count, Max: s.queueMax}
	}

	c := *op
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Payload = append([]byte(nil), op.Payload...)
	s.pending = append(s.pending, &c)
	return nil
}

func (s *MemoryLocalStore) ListPending(_ context.Context, userID string) ([]*domain.PendingOp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PendingOp
	for _, op := range s.pending {
		if op.UserID == userID {
			c := *op
			c.Payload = append([]byte(nil), op.Payload...)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryLocalStore) Remove(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	kept := s.pending[:0]
	for _, op := range s.pending {
		if !drop[op.ID] {
			kept = append(kept, op)
		}
	}
	s.pending = kept
	return nil
}

func (s *MemoryLocalStore) Size(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, op := range s.pending {
		if op.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryLocalStore) GetHabit(_ context.Context, id string) (*domain.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.habits[id]
	if !ok {
		return nil, domain.ErrHabitNotFound
	}
	return copyHabit(h), nil
}

func (s *MemoryLocalStore) ListHabits(_ context.Context, userID string) ([]*domain.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Habit
	for _, h := range s.habits {
		if h.UserID == userID {
			out = append(out, copyHabit(h))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryLocalStore) SaveHabits(_ context.Context, habits []*domain.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range habits {
		s.habits[h.ID] = copyHabit(h)
	}
	return nil
}

func (s *MemoryLocalStore) SaveCompletions(_ context.Context, events []*domain.CompletionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.completions[e.ID] = copyEvent(e)
	}
	return nil
}

func (s *MemoryLocalStore) ListCompletions(_ context.Context, userID string, from, to time.Time) ([]*domain.CompletionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.CompletionEvent
	for _, e := range s.completions {
		if e.UserID == userID && inRange(e.CompletedAt, from, to) {
			out = append(out, copyEvent(e))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, nil
}

func (s *MemoryLocalStore) GetUser(_ context.Context, id string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryLocalStore) SaveUser(_ context.Context, u *domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *MemoryLocalStore) LastSyncAt(_ context.Context, userID string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.lastSync[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryLocalStore) SetLastSyncAt(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSync[userID] = at.UTC()
	return nil
}
