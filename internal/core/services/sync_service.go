package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

// SyncState labels the phases of one sync cycle.
type SyncState string

const (
	SyncIdle    SyncState = "idle"
	SyncPulling SyncState = "pulling"
	SyncMerging SyncState = "merging"
	SyncPushing SyncState = "pushing"
	SyncError   SyncState = "error"
)

// StreakAuditor receives habit ids whose cached streaks should be re-derived
// from the ledger after a merge may have changed history.
type StreakAuditor interface {
	Enqueue(habitID string)
}

// SyncReport is the outcome of one cycle. Failures lists the portions that
// could not be applied; everything else was applied incrementally.
type SyncReport struct {
	UserID   string                  `json:"user_id"`
	Strategy domain.ConflictStrategy `json:"strategy"`

	HabitsPulled      int  `json:"habits_pulled"`
	CompletionsPulled int  `json:"completions_pulled"`
	UserPulled        bool `json:"user_pulled"`
	Conflicts         int  `json:"conflicts"`
	Pushed            int  `json:"pushed"`

	Failures []string `json:"failures,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports whether every portion of the cycle applied cleanly.
func (r *SyncReport) Succeeded() bool { return len(r.Failures) == 0 }

type syncProgress struct {
	state     SyncState
	startedAt time.Time
}

// SyncService reconciles the local device cache against the remote
// authoritative store: pull-since-watermark, per-record conflict resolution,
// then push of the pending queue. At most one cycle runs per user; a crashed
// cycle's flag goes stale after the watchdog timeout and may be superseded.
type SyncService struct {
	local       domain.LocalStore
	habits      domain.HabitRepository
	completions domain.CompletionRepository
	users       domain.UserRepository
	auditor     StreakAuditor
	clock       timeutil.Clock
	rules       config.Rules

	mu         sync.Mutex
	inProgress map[string]*syncProgress
}

func NewSyncService(
	local domain.LocalStore,
	habits domain.HabitRepository,
	completions domain.CompletionRepository,
	users domain.UserRepository,
	auditor StreakAuditor,
	clock timeutil.Clock,
	rules config.Rules,
) *SyncService {
	return &SyncService{
		local:       local,
		habits:      habits,
		completions: completions,
		users:       users,
		auditor:     auditor,
		clock:       clock,
		rules:       rules,
		inProgress:  make(map[string]*syncProgress),
	}
}

func (s *SyncService) begin(userID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.inProgress[userID]; ok && now.Sub(p.startedAt) < s.rules.SyncWatchdog {
		return domain.ErrSyncInProgress
	}
	s.inProgress[userID] = &syncProgress{state: SyncPulling, startedAt: now}
	return nil
}

func (s *SyncService) setState(userID string, state SyncState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.inProgress[userID]; ok {
		p.state = state
	}
}

func (s *SyncService) finish(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inProgress, userID)
}

// Status reports the current cycle state for a user, SyncIdle when none runs.
func (s *SyncService) Status(userID string) (SyncState, *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.inProgress[userID]; ok {
		t := p.startedAt
		return p.state, &t
	}
	return SyncIdle, nil
}

// Sync runs one full pull/merge/push cycle. Partial failures are applied
// incrementally and reported in the result; only a second concurrent cycle
// for the same user is a hard error.
func (s *SyncService) Sync(ctx context.Context, userID string, strategy domain.ConflictStrategy) (*SyncReport, error) {
	now := s.clock.Now()

	if !strategy.Valid() {
		strategy = domain.StrategyNewestWins
	}

	if err := s.begin(userID, now); err != nil {
		return nil, err
	}
	defer s.finish(userID)

	report := &SyncReport{UserID: userID, Strategy: strategy, StartedAt: now}

	since, err := s.local.LastSyncAt(ctx, userID)
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("last sync watermark: %v", err))
	}

	s.pullHabits(ctx, userID, since, strategy, report)
	s.pullCompletions(ctx, userID, since, now, report)
	s.pullUser(ctx, userID, since, strategy, report)

	s.setState(userID, SyncPushing)
	s.push(ctx, userID, report)

	if report.Succeeded() {
		if err := s.local.SetLastSyncAt(ctx, userID, now); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("set sync watermark: %v", err))
		}
	}

	report.FinishedAt = s.clock.Now()
	return report, nil
}

func (s *SyncService) pullHabits(ctx context.Context, userID string, since *time.Time, strategy domain.ConflictStrategy, report *SyncReport) {
	var (
		remote []*domain.Habit
		err    error
	)
	if since != nil {
		remote, err = s.habits.GetChanges(ctx, userID, *since)
	} else {
		remote, err = s.habits.ListByUserID(ctx, userID, domain.HabitFilter{})
	}
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("pull habits: %v", err))
		return
	}
	if len(remote) == 0 {
		return
	}

	s.setState(userID, SyncMerging)

	resolved := make([]*domain.Habit, 0, len(remote))
	for _, r := range remote {
		local, lerr := s.local.GetHabit(ctx, r.ID)
		if lerr != nil {
			local = nil
		}
		if local != nil && !local.UpdatedAt.Equal(r.UpdatedAt) {
			report.Conflicts++
		}
		merged := ResolveHabit(local, r, strategy)
		resolved = append(resolved, merged)

		if s.auditor != nil && local != nil && !local.UpdatedAt.Equal(r.UpdatedAt) {
			s.auditor.Enqueue(r.ID)
		}
	}

	if err := s.local.SaveHabits(ctx, resolved); err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("apply habits: %v", err))
		return
	}
	report.HabitsPulled = len(resolved)
}

func (s *SyncService) pullCompletions(ctx context.Context, userID string, since *time.Time, now time.Time, report *SyncReport) {
	var (
		events []*domain.CompletionEvent
		err    error
	)
	if since != nil {
		events, err = s.completions.GetChanges(ctx, userID, *since)
	} else {
		// First sync: bounded by the retention window, not the full history.
		from := now.AddDate(0, 0, -s.rules.CompletionRetentionDays)
		events, err = s.completions.ListByUserIDAndDateRange(ctx, userID, from, now)
	}
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("pull completions: %v", err))
		return
	}
	if len(events) == 0 {
		return
	}

	// The ledger is append-only: saving is replay-safe, no conflict to solve.
	if err := s.local.SaveCompletions(ctx, events); err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("apply completions: %v", err))
		return
	}
	report.CompletionsPulled = len(events)
}

func (s *SyncService) pullUser(ctx context.Context, userID string, since *time.Time, strategy domain.ConflictStrategy, report *SyncReport) {
	var (
		remote *domain.UserAccount
		err    error
	)
	if since != nil {
		remote, err = s.users.GetIfChanged(ctx, userID, *since)
	} else {
		remote, err = s.users.GetByID(ctx, userID)
		if errors.Is(err, domain.ErrUserNotFound) {
			remote, err = nil, nil
		}
	}
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("pull user: %v", err))
		return
	}
	if remote == nil {
		return
	}

	local, lerr := s.local.GetUser(ctx, userID)
	if lerr != nil {
		local = nil
	}
	if local != nil && !local.UpdatedAt.Equal(remote.UpdatedAt) {
		report.Conflicts++
	}

	merged := ResolveUser(local, remote, strategy)
	if err := s.local.SaveUser(ctx, merged); err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("apply user: %v", err))
		return
	}
	report.UserPulled = true
}

func (s *SyncService) push(ctx context.Context, userID string, report *SyncReport) {
	ops, err := s.local.ListPending(ctx, userID)
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("list pending: %v", err))
		return
	}
	if len(ops) == 0 {
		return
	}

	var done []string
	for _, op := range ops {
		if err := s.pushOne(ctx, op); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("push %s %s: %v", op.Kind, op.EntityID, err))
			continue
		}
		done = append(done, op.ID)
	}

	if len(done) > 0 {
		if err := s.local.Remove(ctx, done); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("dequeue pushed ops: %v", err))
		}
	}
	report.Pushed = len(done)
}

func (s *SyncService) pushOne(ctx context.Context, op *domain.PendingOp) error {
	switch op.Kind {
	case domain.OpHabitUpsert:
		var h domain.Habit
		if err := json.Unmarshal(op.Payload, &h); err != nil {
			return err
		}
		return s.habits.Upsert(ctx, &h)
	case domain.OpCompletionUpsert:
		var e domain.CompletionEvent
		if err := json.Unmarshal(op.Payload, &e); err != nil {
			return err
		}
		return s.completions.Upsert(ctx, &e)
	case domain.OpUserUpsert:
		var u domain.UserAccount
		if err := json.Unmarshal(op.Payload, &u); err != nil {
			return err
		}
		return s.users.Upsert(ctx, &u)
	default:
		return domain.ErrUnknownOpKind
	}
}
