package workers

import (
	"context"
	"log"
	"time"

	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/streak"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

type HabitRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Habit, error)
	UpdateStreaks(ctx context.Context, id string, current, longest int) error
}

type CompletionRepository interface {
	ListByHabitID(ctx context.Context, habitID string, from, to time.Time) ([]*domain.CompletionEvent, error)
}

type AuditJob struct {
	HabitID string
}

// LedgerAuditWorker re-derives cached streak counters from the completion
// ledger and repairs them when they drifted, typically after a sync merge
// rewrote part of a habit's history. Jobs arrive over a bounded channel and
// are dropped (with a log line) when it is full; an audit is always safe to
// re-run later.
type LedgerAuditWorker struct {
	habitRepo HabitRepository
	entryRepo CompletionRepository
	days      timeutil.DayResolver
	clock     timeutil.Clock
	jobs      chan AuditJob
}

func NewLedgerAuditWorker(hRepo HabitRepository, eRepo CompletionRepository, days timeutil.DayResolver, clock timeutil.Clock) *LedgerAuditWorker {
	return &LedgerAuditWorker{
		habitRepo: hRepo,
		entryRepo: eRepo,
		days:      days,
		clock:     clock,
		jobs:      make(chan AuditJob, 100),
	}
}

func (w *LedgerAuditWorker) Start(ctx context.Context) {
	go func() {
		log.Println("Ledger audit worker started in background...")
		for {
			select {
			case job := <-w.jobs:
				w.processJob(ctx, job)
			case <-ctx.Done():
				log.Println("Ledger audit worker shutting down...")
				return
			}
		}
	}()
}

func (w *LedgerAuditWorker) Enqueue(habitID string) {
	select {
	case w.jobs <- AuditJob{HabitID: habitID}:
	default:
		log.Printf("Ledger audit queue full, dropping job for habit %s", habitID)
	}
}

func (w *LedgerAuditWorker) processJob(ctx context.Context, job AuditJob) {
	habit, err := w.habitRepo.GetByID(ctx, job.HabitID)
	if err != nil {
		log.Printf("Audit: fetching habit %s: %v", job.HabitID, err)
		return
	}

	events, err := w.entryRepo.ListByHabitID(ctx, job.HabitID, time.Time{}, time.Time{})
	if err != nil {
		log.Printf("Audit: fetching ledger for %s: %v", job.HabitID, err)
		return
	}

	var shieldedDay *time.Time
	if habit.ShieldUsedAt != nil {
		d := w.days.DayOf(*habit.ShieldUsedAt)
		shieldedDay = &d
	}

	summary := streak.Calculate(streak.Input{
		Events:      events,
		ShieldedDay: shieldedDay,
		Now:         w.clock.Now(),
	}, w.days)

	if habit.CurrentStreak != summary.Current || habit.LongestStreak != summary.Longest {
		if err := w.habitRepo.UpdateStreaks(ctx, job.HabitID, summary.Current, summary.Longest); err != nil {
			log.Printf("Audit: failed to repair streaks for %s: %v", job.HabitID, err)
		} else {
			log.Printf("Audit: repaired streaks for %s: current=%d longest=%d", habit.Name, summary.Current, summary.Longest)
		}
	}
}
