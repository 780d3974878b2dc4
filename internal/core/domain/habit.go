package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrHabitNameEmpty        = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong      = errors.New("habit name is too long (max 50 chars)")
	ErrInvalidCategory       = errors.New("invalid habit category")
	ErrInvalidFrequency      = errors.New("invalid frequency (must be daily, weekly, or custom_days)")
	ErrInvalidWeekdays       = errors.New("invalid weekdays (must be 0-6)")
	ErrInvalidReminder       = errors.New("invalid reminder format (must be HH:MM 24h)")
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrHabitArchived         = errors.New("cannot modify an inactive habit")
	ErrAlreadyCompletedToday = errors.New("habit already completed today")
	ErrCannotDeleteLastHabit = errors.New("cannot delete the last active habit")
)

var reminderRegex = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)

const (
	FreqDaily      = "daily"
	FreqWeekly     = "weekly"
	FreqCustomDays = "custom_days"

	MaxNameLen = 50
)

// Habit categories, fixed enumeration.
const (
	CategoryWater        = "water"
	CategoryExercise     = "exercise"
	CategoryMindfulness  = "mindfulness"
	CategoryNutrition    = "nutrition"
	CategorySleep        = "sleep"
	CategoryProductivity = "productivity"
	CategoryLearning     = "learning"
	CategorySocial       = "social"
	CategoryCreative     = "creative"
	CategoryReading      = "reading"
	CategoryMeditation   = "meditation"
	CategoryCustom       = "custom"
)

var validCategories = map[string]bool{
	CategoryWater: true, CategoryExercise: true, CategoryMindfulness: true,
	CategoryNutrition: true, CategorySleep: true, CategoryProductivity: true,
	CategoryLearning: true, CategorySocial: true, CategoryCreative: true,
	CategoryReading: true, CategoryMeditation: true, CategoryCustom: true,
}

// GrowthStage is the coarse maturity measure of a habit's island plant.
// Stages only ever move forward; decay regresses the level, never the stage.
type GrowthStage string

const (
	StageSeed    GrowthStage = "seed"
	StageSprout  GrowthStage = "sprout"
	StageSapling GrowthStage = "sapling"
	StageTree    GrowthStage = "tree"
	StageForest  GrowthStage = "forest"
)

var stageOrder = map[GrowthStage]int{
	StageSeed: 0, StageSprout: 1, StageSapling: 2, StageTree: 3, StageForest: 4,
}

// After reports whether s is a later stage than other.
func (s GrowthStage) After(other GrowthStage) bool {
	return stageOrder[s] > stageOrder[other]
}

type Habit struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Name         string  `json:"name" db:"name"`
	Category     string  `json:"category" db:"category"`
	Frequency    string  `json:"frequency" db:"frequency"`
	Weekdays     []int   `json:"weekdays,omitempty" db:"-"`
	Zone         string  `json:"zone" db:"zone"`
	ReminderTime *string `json:"reminder_time,omitempty" db:"reminder_time"`
	Active       bool    `json:"active" db:"active"`

	CurrentStreak    int        `json:"current_streak" db:"current_streak"`
	LongestStreak    int        `json:"longest_streak" db:"longest_streak"`
	TotalCompletions int        `json:"total_completions" db:"total_completions"`
	LastCompletedAt  *time.Time `json:"last_completed_at,omitempty" db:"last_completed_at"`

	GrowthStage  GrowthStage `json:"growth_stage" db:"growth_stage"`
	GrowthLevel  int         `json:"growth_level" db:"growth_level"`
	DecayCounter int         `json:"decay_counter" db:"decay_counter"`
	LastDecayAt  *time.Time  `json:"last_decay_at,omitempty" db:"last_decay_at"`

	ShieldActive bool       `json:"shield_active" db:"shield_active"`
	ShieldUsedAt *time.Time `json:"shield_used_at,omitempty" db:"shield_used_at"`

	Version   int        `json:"version" db:"version"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func normalizeWeekdays(days []int) []int {
	if len(days) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var unique []int
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			unique = append(unique, d)
		}
	}

	sort.Ints(unique)
	return unique
}

func validateHabitFields(name, category, frequency, reminder string, weekdays []int) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrHabitNameEmpty
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLen {
		return "", ErrHabitNameTooLong
	}

	if !validCategories[category] {
		return "", ErrInvalidCategory
	}

	switch frequency {
	case FreqDaily, FreqWeekly:
	case FreqCustomDays:
		if len(weekdays) == 0 {
			return "", ErrInvalidFrequency
		}
	default:
		return "", ErrInvalidFrequency
	}

	for _, day := range weekdays {
		if day < 0 || day > 6 {
			return "", ErrInvalidWeekdays
		}
	}

	if reminder != "" && !reminderRegex.MatchString(reminder) {
		return "", ErrInvalidReminder
	}

	return trimmed, nil
}

// NewHabit builds a validated habit. An empty id gets a fresh UUID; offline
// clients may supply their own so a sync retry stays idempotent. Empty
// category and frequency default to custom/daily, like the zone below.
func NewHabit(id, userID, name, category, frequency, zone, reminder string, weekdays []int, now time.Time) (*Habit, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}

	if category == "" {
		category = CategoryCustom
	}
	if frequency == "" {
		frequency = FreqDaily
	}

	cleanName, err := validateHabitFields(name, category, frequency, reminder, weekdays)
	if err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.NewString()
	}
	if zone == "" {
		zone = "starter"
	}

	var remPtr *string
	if reminder != "" {
		remPtr = &reminder
	}

	now = now.UTC()

	return &Habit{
		ID:           id,
		UserID:       userID,
		Name:         cleanName,
		Category:     category,
		Frequency:    frequency,
		Weekdays:     normalizeWeekdays(weekdays),
		Zone:         zone,
		ReminderTime: remPtr,
		Active:       true,
		GrowthStage:  StageSeed,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Rename re-validates and applies a new set of user-editable fields.
func (h *Habit) Rename(name, category, frequency, reminder string, weekdays []int, now time.Time) error {
	if !h.Active {
		return ErrHabitArchived
	}

	cleanName, err := validateHabitFields(name, category, frequency, reminder, weekdays)
	if err != nil {
		return err
	}

	var remPtr *string
	if reminder != "" {
		remPtr = &reminder
	}

	h.Name = cleanName
	h.Category = category
	h.Frequency = frequency
	h.Weekdays = normalizeWeekdays(weekdays)
	h.ReminderTime = remPtr
	h.UpdatedAt = now.UTC()

	return nil
}

// AdvanceStreak records a completion at the aggregate level. consecutive
// means the previous completion (or a shield-covered day) was exactly the
// prior logical day; anything else restarts the streak at 1.
func (h *Habit) AdvanceStreak(at time.Time, consecutive bool) {
	if consecutive {
		h.CurrentStreak++
	} else {
		h.CurrentStreak = 1
	}
	if h.CurrentStreak > h.LongestStreak {
		h.LongestStreak = h.CurrentStreak
	}

	at = at.UTC()
	h.LastCompletedAt = &at
	h.TotalCompletions++
	h.UpdatedAt = at
}

// RecordBackfill credits a completion for a day before the streak anchor.
// Counters grow; CurrentStreak and LastCompletedAt stay put.
func (h *Habit) RecordBackfill(now time.Time) {
	h.TotalCompletions++
	h.UpdatedAt = now.UTC()
}

// SetGrowth applies a level/stage computed by the growth engine. A stage can
// only move forward.
func (h *Habit) SetGrowth(level int, stage GrowthStage, now time.Time) {
	if level < 0 {
		level = 0
	}
	h.GrowthLevel = level
	if stage.After(h.GrowthStage) {
		h.GrowthStage = stage
	}
	h.UpdatedAt = now.UTC()
}

// ApplyDecay reduces the growth level by penalty, floored at zero. The stage
// is untouched.
func (h *Habit) ApplyDecay(penalty int, now time.Time) {
	now = now.UTC()
	h.GrowthLevel -= penalty
	if h.GrowthLevel < 0 {
		h.GrowthLevel = 0
	}
	h.DecayCounter++
	h.LastDecayAt = &now
	h.UpdatedAt = now
}

// ActivateShield marks the habit protected for the next 24h window.
func (h *Habit) ActivateShield(at time.Time) {
	at = at.UTC()
	h.ShieldActive = true
	h.ShieldUsedAt = &at
	h.UpdatedAt = at
}

// ClearShield removes shield protection, typically once it has bridged a gap.
func (h *Habit) ClearShield(now time.Time) {
	h.ShieldActive = false
	h.UpdatedAt = now.UTC()
}

// ShieldCovers reports whether an active shield is still within its validity
// window at the given instant.
func (h *Habit) ShieldCovers(at time.Time, window time.Duration) bool {
	return h.ShieldActive && h.ShieldUsedAt != nil && at.Sub(*h.ShieldUsedAt) < window
}

func (h *Habit) Deactivate(now time.Time) {
	if !h.Active {
		return
	}
	h.Active = false
	h.UpdatedAt = now.UTC()
}

func (h *Habit) Restore(now time.Time) {
	if h.Active {
		return
	}
	h.Active = true
	h.UpdatedAt = now.UTC()
}
