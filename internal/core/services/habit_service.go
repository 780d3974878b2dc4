package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/growth"
	"github.com/iampurna/habit-island-core/internal/core/streak"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

// HabitService owns the habit aggregate: create/update/delete, completion
// recording, streak shields, and lazy decay evaluation. Callers are expected
// to serialize commands against a given habit id; reads are side-effect-free
// apart from persisting decay that fell due.
type HabitService struct {
	habits      domain.HabitRepository
	completions domain.CompletionRepository
	users       domain.UserRepository
	xp          *XPService
	growth      *growth.Engine
	days        timeutil.DayResolver
	clock       timeutil.Clock
	rules       config.Rules

	// queue records local mutations for the sync push path. Nil when the
	// service runs directly against the authoritative store.
	queue domain.SyncQueue
}

func NewHabitService(
	habits domain.HabitRepository,
	completions domain.CompletionRepository,
	users domain.UserRepository,
	xp *XPService,
	growthEngine *growth.Engine,
	days timeutil.DayResolver,
	clock timeutil.Clock,
	rules config.Rules,
	queue domain.SyncQueue,
) *HabitService {
	return &HabitService{
		habits:      habits,
		completions: completions,
		users:       users,
		xp:          xp,
		growth:      growthEngine,
		days:        days,
		clock:       clock,
		rules:       rules,
		queue:       queue,
	}
}

type CreateHabitInput struct {
	// ID may be supplied by an offline client so a sync retry stays
	// idempotent; empty means server-assigned.
	ID        string
	UserID    string
	Name      string
	Category  string
	Frequency string
	Zone      string
	Reminder  string
	Weekdays  []int
}

type UpdateHabitInput struct {
	ID        string
	UserID    string
	Name      string
	Category  string
	Frequency string
	Reminder  string
	Weekdays  []int
	Active    *bool
	Version   int
}

type CompleteHabitInput struct {
	HabitID string
	UserID  string
	// At defaults to now; backdating beyond the current instant is rejected.
	At   time.Time
	Note string
}

// CompletionResult is what the UI renders after a successful completion.
type CompletionResult struct {
	Habit *domain.Habit          `json:"habit"`
	Event *domain.CompletionEvent `json:"event"`
	Award *XPAward               `json:"award"`
}

// ShieldResult reports a successful shield use.
type ShieldResult struct {
	Habit            *domain.Habit `json:"habit"`
	ShieldsRemaining int           `json:"shields_remaining"`
}

// DecayReport is the outcome of an explicit decay evaluation.
type DecayReport struct {
	Habit    *domain.Habit     `json:"habit"`
	State    growth.DecayState `json:"state"`
	Severity string            `json:"severity"`
	GapDays  int               `json:"gap_days"`
	Applied  bool              `json:"applied"`
}

func mergeString(newVal, oldVal string) string {
	if newVal == "" {
		return oldVal
	}
	return newVal
}

// ensureUser loads the account, provisioning a fresh one on first contact.
// Identity itself is external; the core only ever sees a stable user id.
func (s *HabitService) ensureUser(ctx context.Context, userID string) (*domain.UserAccount, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	user, err = domain.NewUserAccount(userID, s.rules.DefaultShields, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *HabitService) enqueue(ctx context.Context, userID string, kind domain.PendingOpKind, entityID string, v any) error {
	if s.queue == nil {
		return nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return s.queue.Enqueue(ctx, &domain.PendingOp{
		ID:       uuid.NewString(),
		UserID:   userID,
		Kind:     kind,
		EntityID: entityID,
		Payload:  payload,
		QueuedAt: s.clock.Now(),
	})
}

// Create validates and persists a new habit, enforcing the tier habit cap,
// zone capacity and per-user name uniqueness. Retrying a create with the same
// client-assigned id returns the existing habit.
func (s *HabitService) Create(ctx context.Context, input CreateHabitInput) (*domain.Habit, error) {
	now := s.clock.Now()

	user, err := s.ensureUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	if input.ID != "" {
		existing, err := s.habits.GetByID(ctx, input.ID)
		if err == nil {
			if existing.UserID != input.UserID {
				return nil, domain.ErrHabitConflict
			}
			return existing, nil
		}
		if !errors.Is(err, domain.ErrHabitNotFound) {
			return nil, err
		}
	}

	habit, err := domain.NewHabit(input.ID, input.UserID, input.Name, input.Category, input.Frequency, input.Zone, input.Reminder, input.Weekdays, now)
	if err != nil {
		return nil, err
	}

	active, err := s.habits.CountActive(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	maxAllowed := user.MaxHabits(s.rules.FreeHabitLimit, now)
	if active >= maxAllowed {
		return nil, &domain.HabitLimitError{
			CurrentCount: active,
			MaxAllowed:   maxAllowed,
			IsPremium:    user.IsPremium(now),
		}
	}

	inZone, err := s.habits.CountActiveInZone(ctx, input.UserID, habit.Zone)
	if err != nil {
		return nil, err
	}
	if inZone >= s.rules.ZoneCapacity {
		return nil, &domain.ZoneCapacityError{Zone: habit.Zone, CurrentCount: inZone, MaxAllowed: s.rules.ZoneCapacity}
	}

	if _, err := s.habits.FindByName(ctx, input.UserID, habit.Name); err == nil {
		return nil, domain.ErrDuplicateHabitName
	} else if !errors.Is(err, domain.ErrHabitNotFound) {
		return nil, err
	}

	if err := s.habits.Create(ctx, habit); err != nil {
		return nil, err
	}

	user.HabitCreated(now)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, input.UserID, domain.OpHabitUpsert, habit.ID, habit); err != nil {
		return nil, err
	}

	return habit, nil
}

// Get fetches one habit, applying any decay that fell due since the last read.
func (s *HabitService) Get(ctx context.Context, id, userID string) (*domain.Habit, error) {
	habit, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if s.growth.EvaluateDecay(habit, s.clock.Now()) {
		if err := s.habits.Update(ctx, habit); err != nil {
			return nil, err
		}
	}

	return habit, nil
}

// List returns the user's habits honoring the filter, with lazy decay applied
// to each active one.
func (s *HabitService) List(ctx context.Context, userID string, filter domain.HabitFilter) ([]*domain.Habit, error) {
	habits, err := s.habits.ListByUserID(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for _, h := range habits {
		if h.Active && s.growth.EvaluateDecay(h, now) {
			if err := s.habits.Update(ctx, h); err != nil {
				return nil, err
			}
		}
	}

	return habits, nil
}

// Changes returns every habit touched after since, tombstones included, so a
// device can apply a delta without running a full sync cycle.
func (s *HabitService) Changes(ctx context.Context, userID string, since time.Time) ([]*domain.Habit, error) {
	return s.habits.GetChanges(ctx, userID, since)
}

func (s *HabitService) owned(ctx context.Context, id, userID string) (*domain.Habit, error) {
	habit, err := s.habits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if habit.UserID != userID {
		return nil, domain.ErrHabitNotFound
	}
	return habit, nil
}

// completedForDay reports whether the habit already counts as done on the
// logical day of at, either by a real completion or a shield substitution.
func (s *HabitService) completedForDay(habit *domain.Habit, at time.Time) bool {
	if habit.LastCompletedAt != nil && s.days.SameDay(*habit.LastCompletedAt, at) {
		return true
	}
	if habit.ShieldActive && habit.ShieldUsedAt != nil && s.days.SameDay(*habit.ShieldUsedAt, at) {
		return true
	}
	return false
}

// allHabitsDoneToday checks whether completing justCompleted finishes every
// active habit for the logical day of at.
func (s *HabitService) allHabitsDoneToday(ctx context.Context, userID, justCompletedID string, at time.Time) (bool, error) {
	active := true
	habits, err := s.habits.ListByUserID(ctx, userID, domain.HabitFilter{Active: &active})
	if err != nil {
		return false, err
	}

	dayStart, dayEnd := s.days.DayBounds(at)
	events, err := s.completions.ListByUserIDAndDateRange(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return false, err
	}

	done := map[string]bool{justCompletedID: true}
	for _, e := range events {
		done[e.HabitID] = true
	}

	for _, h := range habits {
		if !done[h.ID] {
			return false, nil
		}
	}
	return true, nil
}

// Complete records one completion for the habit's logical day. A second
// completion for the same day is rejected; the first one advances the streak
// (shields may bridge a single missed day), grows the plant, appends to the
// completion ledger and delegates the XP award.
func (s *HabitService) Complete(ctx context.Context, input CompleteHabitInput) (*CompletionResult, error) {
	now := s.clock.Now()

	at := input.At
	if at.IsZero() {
		at = now
	}
	at = at.UTC()
	if at.After(now) {
		return nil, domain.ErrCompletionInFuture
	}

	habit, err := s.owned(ctx, input.HabitID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !habit.Active {
		return nil, domain.ErrHabitArchived
	}

	if _, err := s.ensureUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	// Settle any overdue decay before crediting the completion.
	s.growth.EvaluateDecay(habit, now)

	if s.completedForDay(habit, at) {
		return nil, domain.ErrAlreadyCompletedToday
	}

	// A backdated at fills a day before the streak anchor. The cached
	// LastCompletedAt says nothing about those days, so the ledger is
	// consulted; a filled day never rewinds the anchor or the streak.
	backfill := habit.LastCompletedAt != nil && s.days.DaysBetween(at, *habit.LastCompletedAt) > 0
	if backfill {
		dayStart, dayEnd := s.days.DayBounds(at)
		existing, err := s.completions.ListByHabitID(ctx, habit.ID, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return nil, domain.ErrAlreadyCompletedToday
		}
		habit.RecordBackfill(now)
	} else {
		consecutive := false
		if habit.LastCompletedAt != nil {
			gap := s.days.DaysBetween(*habit.LastCompletedAt, at)
			switch {
			case gap == 1:
				consecutive = true
			case gap == 2 && habit.ShieldCovers(at, s.rules.ShieldWindow) && s.days.DaysBetween(*habit.ShieldUsedAt, at) == 1:
				// The shield stood in for the missed day.
				consecutive = true
				habit.ClearShield(now)
			}
		}
		habit.AdvanceStreak(at, consecutive)
	}
	s.growth.Advance(habit, now)

	allDone, err := s.allHabitsDoneToday(ctx, input.UserID, habit.ID, at)
	if err != nil {
		return nil, err
	}

	streakForAward := habit.CurrentStreak
	if backfill {
		// Milestone bonuses fire on the live transition only.
		streakForAward = 0
	}
	award, err := s.xp.AwardForCompletion(ctx, input.UserID, habit.ID, allDone, streakForAward)
	if err != nil {
		return nil, err
	}

	event := domain.NewCompletionEvent(habit.ID, input.UserID, at, input.Note, now)
	event.XPEarned = award.Total
	event.Bonus = award.Bonus
	if err := event.Validate(now); err != nil {
		return nil, err
	}
	if err := s.completions.Create(ctx, event); err != nil {
		return nil, err
	}

	if err := s.habits.Update(ctx, habit); err != nil {
		return nil, err
	}
	if err := s.habits.IncrementCompletion(ctx, habit.ID, at); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, input.UserID, domain.OpCompletionUpsert, event.ID, event); err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, input.UserID, domain.OpHabitUpsert, habit.ID, habit); err != nil {
		return nil, err
	}

	return &CompletionResult{Habit: habit, Event: event, Award: award}, nil
}

// Update applies a partial edit. Empty fields keep their current value; a
// changed name is re-validated and re-checked for duplicates.
func (s *HabitService) Update(ctx context.Context, input UpdateHabitInput) (*domain.Habit, error) {
	now := s.clock.Now()

	habit, err := s.owned(ctx, input.ID, input.UserID)
	if err != nil {
		return nil, err
	}

	if input.Version > 0 && habit.Version != input.Version {
		return nil, domain.ErrHabitConflict
	}

	name := mergeString(input.Name, habit.Name)
	category := mergeString(input.Category, habit.Category)
	frequency := mergeString(input.Frequency, habit.Frequency)

	reminder := ""
	if input.Reminder != "" {
		reminder = input.Reminder
	} else if habit.ReminderTime != nil {
		reminder = *habit.ReminderTime
	}

	weekdays := habit.Weekdays
	if input.Weekdays != nil {
		weekdays = input.Weekdays
	}

	if !strings.EqualFold(name, habit.Name) {
		if _, err := s.habits.FindByName(ctx, input.UserID, name); err == nil {
			return nil, domain.ErrDuplicateHabitName
		} else if !errors.Is(err, domain.ErrHabitNotFound) {
			return nil, err
		}
	}

	if input.Active != nil && *input.Active && !habit.Active {
		habit.Restore(now)
	}

	if err := habit.Rename(name, category, frequency, reminder, weekdays, now); err != nil {
		return nil, err
	}

	if input.Active != nil && !*input.Active && habit.Active {
		habit.Deactivate(now)
		user, uerr := s.ensureUser(ctx, input.UserID)
		if uerr != nil {
			return nil, uerr
		}
		user.HabitDeactivated(now)
		if uerr := s.users.Update(ctx, user); uerr != nil {
			return nil, uerr
		}
	}

	if err := s.habits.Update(ctx, habit); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, input.UserID, domain.OpHabitUpsert, habit.ID, habit); err != nil {
		return nil, err
	}

	return habit, nil
}

// Delete soft-deletes by default and hard-deletes on request. The user's last
// active habit cannot be deleted (global-per-user rule).
func (s *HabitService) Delete(ctx context.Context, id, userID string, hard bool) error {
	now := s.clock.Now()

	habit, err := s.owned(ctx, id, userID)
	if err != nil {
		return err
	}

	if habit.Active {
		active, err := s.habits.CountActive(ctx, userID)
		if err != nil {
			return err
		}
		if active <= 1 {
			return domain.ErrCannotDeleteLastHabit
		}
	}

	if err := s.habits.Delete(ctx, id, hard); err != nil {
		return err
	}

	user, err := s.ensureUser(ctx, userID)
	if err != nil {
		return err
	}
	if hard {
		user.HabitHardDeleted(habit.Active, now)
	} else if habit.Active {
		user.HabitDeactivated(now)
	}
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	// Queue a tombstone so other devices drop the habit on their next pull.
	habit.Active = false
	habit.DeletedAt = &now
	habit.UpdatedAt = now
	return s.enqueue(ctx, userID, domain.OpHabitUpsert, habit.ID, habit)
}

// UseStreakShield spends one shield to mark today as covered without a real
// completion, protecting the streak for one missed day.
func (s *HabitService) UseStreakShield(ctx context.Context, habitID, userID string) (*ShieldResult, error) {
	now := s.clock.Now()

	habit, err := s.owned(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}
	if !habit.Active {
		return nil, domain.ErrHabitArchived
	}
	if habit.CurrentStreak == 0 {
		return nil, domain.ErrNoActiveStreak
	}
	if s.completedForDay(habit, now) {
		return nil, domain.ErrAlreadyCompletedToday
	}

	user, err := s.ensureUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.ConsumeShield(now); err != nil {
		return nil, err
	}

	habit.ActivateShield(now)

	if err := s.habits.Update(ctx, habit); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.enqueue(ctx, userID, domain.OpHabitUpsert, habit.ID, habit); err != nil {
		return nil, err
	}
	if err := s.enqueue(ctx, userID, domain.OpUserUpsert, user.ID, user); err != nil {
		return nil, err
	}

	return &ShieldResult{Habit: habit, ShieldsRemaining: user.ShieldsRemaining}, nil
}

// CalculateStreak rebuilds the streak summary from the completion ledger and
// repairs the cached counters when they have drifted.
func (s *HabitService) CalculateStreak(ctx context.Context, habitID, userID string) (*streak.Summary, error) {
	now := s.clock.Now()

	habit, err := s.owned(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}

	events, err := s.completions.ListByHabitID(ctx, habitID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	var shieldedDay *time.Time
	if habit.ShieldUsedAt != nil {
		d := s.days.DayOf(*habit.ShieldUsedAt)
		shieldedDay = &d
	}

	summary := streak.Calculate(streak.Input{
		Events:      events,
		ShieldedDay: shieldedDay,
		Protected:   habit.ShieldCovers(now, s.rules.ShieldWindow),
		Now:         now,
	}, s.days)

	if summary.Current != habit.CurrentStreak || summary.Longest != habit.LongestStreak {
		if err := s.habits.UpdateStreaks(ctx, habitID, summary.Current, summary.Longest); err != nil {
			return nil, err
		}
	}

	return &summary, nil
}

// EvaluateDecay runs the lazy decay check on demand and reports the weather
// state the UI should render.
func (s *HabitService) EvaluateDecay(ctx context.Context, habitID, userID string) (*DecayReport, error) {
	now := s.clock.Now()

	habit, err := s.owned(ctx, habitID, userID)
	if err != nil {
		return nil, err
	}

	gap := s.growth.GapDays(habit, now)
	applied := s.growth.EvaluateDecay(habit, now)
	if applied {
		if err := s.habits.Update(ctx, habit); err != nil {
			return nil, err
		}
		if err := s.enqueue(ctx, userID, domain.OpHabitUpsert, habit.ID, habit); err != nil {
			return nil, err
		}
	}

	return &DecayReport{
		Habit:    habit,
		State:    growth.StateForGap(gap),
		Severity: growth.SeverityForGap(gap).String(),
		GapDays:  gap,
		Applied:  applied,
	}, nil
}
