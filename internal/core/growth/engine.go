// Package growth maps streak continuity and elapsed inactivity into a growth
// stage/level and a decay severity. Everything here is evaluated lazily on
// read or before a write; there is no background scheduler.
package growth

import (
	"time"

	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

// Severity buckets for decay, by whole days overdue. Day-based scheme:
// 2-3 days minor, 4-6 moderate, 7+ severe.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMinor
	SeverityModerate
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return "none"
	}
}

// Penalty is the growth-level cost of a decay application.
func (s Severity) Penalty() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 3
	case SeveritySevere:
		return 5
	default:
		return 0
	}
}

// SeverityForGap buckets a days-overdue count.
func SeverityForGap(days int) Severity {
	switch {
	case days >= 7:
		return SeveritySevere
	case days >= 4:
		return SeverityModerate
	case days >= 2:
		return SeverityMinor
	default:
		return SeverityNone
	}
}

// DecayState is the weather-style presentation of how overdue a habit is.
type DecayState string

const (
	DecayHealthy DecayState = "healthy"
	DecayWarning DecayState = "warning"
	DecayCloudy  DecayState = "cloudy"
	DecayStormy  DecayState = "stormy"
)

// StateForGap maps days overdue onto the decay state machine:
// healthy -> warning (1) -> cloudy (2-3) -> stormy (4+).
func StateForGap(days int) DecayState {
	switch {
	case days >= 4:
		return DecayStormy
	case days >= 2:
		return DecayCloudy
	case days == 1:
		return DecayWarning
	default:
		return DecayHealthy
	}
}

// Engine holds the stage thresholds and the shield window, injected from
// config so tests can run several schemes side by side.
type Engine struct {
	thresholds   [4]int
	shieldWindow time.Duration
	days         timeutil.DayResolver
}

func NewEngine(thresholds [4]int, shieldWindow time.Duration, days timeutil.DayResolver) *Engine {
	return &Engine{thresholds: thresholds, shieldWindow: shieldWindow, days: days}
}

// StageForLevel returns the stage a cumulative growth level has earned.
// Forest is terminal.
func (e *Engine) StageForLevel(level int) domain.GrowthStage {
	switch {
	case level >= e.thresholds[3]:
		return domain.StageForest
	case level >= e.thresholds[2]:
		return domain.StageTree
	case level >= e.thresholds[1]:
		return domain.StageSapling
	case level >= e.thresholds[0]:
		return domain.StageSprout
	default:
		return domain.StageSeed
	}
}

// Advance applies one completion's worth of growth: level +1 and a stage
// promotion when a threshold is crossed.
func (e *Engine) Advance(h *domain.Habit, now time.Time) {
	level := h.GrowthLevel + 1
	h.SetGrowth(level, e.StageForLevel(level), now)
}

// GapDays is the whole-logical-day gap since the habit was last completed or
// shield-covered. Zero when never completed (a seed cannot decay).
func (e *Engine) GapDays(h *domain.Habit, now time.Time) int {
	anchor := h.LastCompletedAt
	if h.ShieldUsedAt != nil && (anchor == nil || h.ShieldUsedAt.After(*anchor)) {
		anchor = h.ShieldUsedAt
	}
	if anchor == nil {
		return 0
	}
	gap := e.days.DaysBetween(*anchor, now)
	if gap < 0 {
		return 0
	}
	return gap
}

// EvaluateDecay lazily applies decay when the habit is read after an
// inactivity gap of two or more days. Applied at most once per logical day so
// repeated reads do not compound the penalty. Returns true when the habit
// state changed.
func (e *Engine) EvaluateDecay(h *domain.Habit, now time.Time) bool {
	gap := e.GapDays(h, now)

	severity := SeverityForGap(gap)
	if severity == SeverityNone {
		return false
	}

	if h.ShieldCovers(now, e.shieldWindow) {
		return false
	}

	if h.LastDecayAt != nil && e.days.SameDay(*h.LastDecayAt, now) {
		return false
	}

	h.ApplyDecay(severity.Penalty(), now)
	return true
}
