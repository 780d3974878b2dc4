package domain

import "time"

// PeriodStats is the read model the stats endpoint serves: per-habit
// completion rates over a date range plus an overall rate.
type PeriodStats struct {
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	TotalHabits int         `json:"total_habits"`
	OverallRate float64     `json:"overall_completion_rate"`
	HabitStats  []HabitStat `json:"habits"`
}

type HabitStat struct {
	HabitID        string      `json:"habit_id"`
	Name           string      `json:"name"`
	Category       string      `json:"category"`
	Zone           string      `json:"zone"`
	GrowthStage    GrowthStage `json:"growth_stage"`
	CurrentStreak  int         `json:"current_streak"`
	DaysCompleted  int         `json:"days_completed"`
	CompletionRate float64     `json:"completion_rate"`
	DailyProgress  []int       `json:"daily_progress"`
}

type StatsInput struct {
	UserID    string
	StartDate time.Time
	EndDate   time.Time
}
