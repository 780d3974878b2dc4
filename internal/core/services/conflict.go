package services

import (
	"time"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

// Conflict resolution for divergent local/remote copies of the same record.
// The merge strategy keeps user-editable fields from local, takes the
// pairwise maximum of monotonically-increasing counters, and remote for
// everything else. newest_wins ties favor remote.

func cloneHabit(h *domain.Habit) *domain.Habit {
	c := *h
	if h.Weekdays != nil {
		c.Weekdays = append([]int(nil), h.Weekdays...)
	}
	return &c
}

func cloneUser(u *domain.UserAccount) *domain.UserAccount {
	c := *u
	if u.UnlockedZones != nil {
		c.UnlockedZones = append([]string(nil), u.UnlockedZones...)
	}
	return &c
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func laterTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// ResolveHabit resolves one local/remote habit pair. Either side may be nil,
// in which case the other wins outright.
func ResolveHabit(local, remote *domain.Habit, strategy domain.ConflictStrategy) *domain.Habit {
	if local == nil {
		return cloneHabit(remote)
	}
	if remote == nil {
		return cloneHabit(local)
	}

	switch strategy {
	case domain.StrategyLocalWins:
		return cloneHabit(local)
	case domain.StrategyRemoteWins:
		return cloneHabit(remote)
	case domain.StrategyMerge:
		return mergeHabits(local, remote)
	default: // newest_wins
		if local.UpdatedAt.After(remote.UpdatedAt) {
			return cloneHabit(local)
		}
		return cloneHabit(remote)
	}
}

func mergeHabits(local, remote *domain.Habit) *domain.Habit {
	merged := cloneHabit(remote)

	// User-editable fields prefer local.
	merged.Name = local.Name
	merged.Category = local.Category
	merged.Frequency = local.Frequency
	merged.Weekdays = append([]int(nil), local.Weekdays...)
	merged.ReminderTime = local.ReminderTime
	merged.Active = local.Active

	// Monotone counters take the pairwise maximum.
	merged.TotalCompletions = maxInt(local.TotalCompletions, remote.TotalCompletions)
	merged.LongestStreak = maxInt(local.LongestStreak, remote.LongestStreak)
	if local.GrowthStage.After(remote.GrowthStage) {
		merged.GrowthStage = local.GrowthStage
	}

	merged.UpdatedAt = laterTime(local.UpdatedAt, remote.UpdatedAt)
	merged.Version = maxInt(local.Version, remote.Version)

	if merged.LongestStreak < merged.CurrentStreak {
		merged.LongestStreak = merged.CurrentStreak
	}

	return merged
}

// ResolveUser resolves one local/remote account pair.
func ResolveUser(local, remote *domain.UserAccount, strategy domain.ConflictStrategy) *domain.UserAccount {
	if local == nil {
		return cloneUser(remote)
	}
	if remote == nil {
		return cloneUser(local)
	}

	switch strategy {
	case domain.StrategyLocalWins:
		return cloneUser(local)
	case domain.StrategyRemoteWins:
		return cloneUser(remote)
	case domain.StrategyMerge:
		return mergeUsers(local, remote)
	default: // newest_wins
		if local.UpdatedAt.After(remote.UpdatedAt) {
			return cloneUser(local)
		}
		return cloneUser(remote)
	}
}

func mergeUsers(local, remote *domain.UserAccount) *domain.UserAccount {
	merged := cloneUser(remote)

	merged.TotalXP = maxInt(local.TotalXP, remote.TotalXP)
	merged.Level = maxInt(local.Level, remote.Level)
	merged.GlobalStreak = maxInt(local.GlobalStreak, remote.GlobalStreak)

	// Unlocked zones only ever grow; keep the union.
	seen := make(map[string]bool, len(merged.UnlockedZones))
	for _, z := range merged.UnlockedZones {
		seen[z] = true
	}
	for _, z := range local.UnlockedZones {
		if !seen[z] {
			merged.UnlockedZones = append(merged.UnlockedZones, z)
			seen[z] = true
		}
	}

	merged.UpdatedAt = laterTime(local.UpdatedAt, remote.UpdatedAt)
	merged.Version = maxInt(local.Version, remote.Version)

	return merged
}
