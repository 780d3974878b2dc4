package services

import (
	"context"

	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

// StatsService builds the per-period read model the UI charts from the habit
// list and the completion ledger.
type StatsService struct {
	habits      domain.HabitRepository
	completions domain.CompletionRepository
	days        timeutil.DayResolver
}

func NewStatsService(habits domain.HabitRepository, completions domain.CompletionRepository, days timeutil.DayResolver) *StatsService {
	return &StatsService{habits: habits, completions: completions, days: days}
}

func (s *StatsService) GetPeriodStats(ctx context.Context, input domain.StatsInput) (*domain.PeriodStats, error) {
	startDate := s.days.DayOf(input.StartDate)
	endDate := s.days.DayOf(input.EndDate)

	active := true
	habits, err := s.habits.ListByUserID(ctx, input.UserID, domain.HabitFilter{Active: &active})
	if err != nil {
		return nil, err
	}

	// Query by logical-day bounds so a grace-window completion in the small
	// hours after endDate still lands inside the period.
	rangeStart, _ := s.days.DayBounds(input.StartDate)
	_, rangeEnd := s.days.DayBounds(input.EndDate)
	events, err := s.completions.ListByUserIDAndDateRange(ctx, input.UserID, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	completedDays := make(map[string]map[string]bool)
	for _, e := range events {
		key := s.days.DayKey(e.CompletedAt)
		if _, ok := completedDays[e.HabitID]; !ok {
			completedDays[e.HabitID] = make(map[string]bool)
		}
		completedDays[e.HabitID][key] = true
	}

	stats := &domain.PeriodStats{
		StartDate:   startDate.Format("2006-01-02"),
		EndDate:     endDate.Format("2006-01-02"),
		TotalHabits: len(habits),
		HabitStats:  make([]domain.HabitStat, 0, len(habits)),
	}

	totalDaysPossible := 0
	totalDaysCompleted := 0

	for _, h := range habits {
		hStat := domain.HabitStat{
			HabitID:       h.ID,
			Name:          h.Name,
			Category:      h.Category,
			Zone:          h.Zone,
			GrowthStage:   h.GrowthStage,
			CurrentStreak: h.CurrentStreak,
			DailyProgress: make([]int, 0),
		}

		daysInPeriod := 0
		daysAchieved := 0

		current := startDate
		for !current.After(endDate) {
			key := current.Format("2006-01-02")

			val := 0
			if completedDays[h.ID][key] {
				val = 1
				daysAchieved++
				totalDaysCompleted++
			}
			hStat.DailyProgress = append(hStat.DailyProgress, val)

			daysInPeriod++
			totalDaysPossible++
			current = current.AddDate(0, 0, 1)
		}

		hStat.DaysCompleted = daysAchieved
		if daysInPeriod > 0 {
			hStat.CompletionRate = float64(daysAchieved) / float64(daysInPeriod) * 100
		}

		stats.HabitStats = append(stats.HabitStats, hStat)
	}

	if totalDaysPossible > 0 {
		stats.OverallRate = float64(totalDaysCompleted) / float64(totalDaysPossible) * 100
	}

	return stats, nil
}
