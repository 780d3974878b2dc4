// Package streak derives streak state from the completion ledger. The cached
// counters on Habit are an optimization; this calculator is the source of
// truth used to validate or repair them.
package streak

import (
	"sort"
	"time"

	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

// Status is the liveness of a streak as of "now".
type Status string

const (
	StatusActive    Status = "active"
	StatusAtRisk    Status = "at_risk"
	StatusBroken    Status = "broken"
	StatusProtected Status = "protected"
)

// Summary is the derived streak record for one habit.
type Summary struct {
	Current         int        `json:"current_streak"`
	Longest         int        `json:"longest_streak"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`
	StreakStartAt   *time.Time `json:"streak_start_at,omitempty"`
	Status          Status     `json:"status"`
	IsActive        bool       `json:"is_active"`
}

// Input bundles what the calculator needs beyond the ledger itself.
type Input struct {
	Events []*domain.CompletionEvent
	// ShieldedDay is the logical day a streak shield substitutes for, nil
	// when no shield usage is in play.
	ShieldedDay *time.Time
	// Protected marks the habit as currently shield-covered, which upgrades
	// the status.
	Protected bool
	Now       time.Time
}

// Calculate walks the ledger and rebuilds the full streak summary. It
// collapses same-day duplicates, counts consecutive logical days from the
// most recent one for the current streak, and scans the whole history for
// the longest run.
func Calculate(in Input, days timeutil.DayResolver) Summary {
	uniq := make(map[string]time.Time)
	var lastCompleted *time.Time

	for _, e := range in.Events {
		key := days.DayKey(e.CompletedAt)
		if _, ok := uniq[key]; !ok {
			uniq[key] = days.DayOf(e.CompletedAt)
		}
		if lastCompleted == nil || e.CompletedAt.After(*lastCompleted) {
			t := e.CompletedAt
			lastCompleted = &t
		}
	}

	// A shield day counts as completed without a ledger event.
	if in.ShieldedDay != nil {
		key := days.DayKey(*in.ShieldedDay)
		if _, ok := uniq[key]; !ok {
			uniq[key] = days.DayOf(*in.ShieldedDay)
		}
	}

	if len(uniq) == 0 {
		return Summary{Status: StatusBroken}
	}

	dates := make([]time.Time, 0, len(uniq))
	for _, d := range uniq {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	today := days.DayOf(in.Now)
	gap := int(today.Sub(dates[0]).Hours() / 24)

	current := 0
	var streakStart *time.Time
	if gap <= 1 {
		current = 1
		start := dates[0]
		for i := 0; i < len(dates)-1; i++ {
			if int(dates[i].Sub(dates[i+1]).Hours()/24) == 1 {
				current++
				start = dates[i+1]
			} else {
				break
			}
		}
		streakStart = &start
	}

	longest := 0
	run := 1
	for i := 0; i < len(dates)-1; i++ {
		if int(dates[i].Sub(dates[i+1]).Hours()/24) == 1 {
			run++
		} else {
			if run > longest {
				longest = run
			}
			run = 1
		}
	}
	if run > longest {
		longest = run
	}

	status := StatusBroken
	switch {
	case in.Protected:
		status = StatusProtected
	case gap == 0:
		status = StatusActive
	case gap == 1:
		status = StatusAtRisk
	}

	return Summary{
		Current:         current,
		Longest:         longest,
		LastCompletedAt: lastCompleted,
		StreakStartAt:   streakStart,
		Status:          status,
		IsActive:        gap <= 1,
	}
}
