package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iampurna/habit-island-core/internal/config"
	"github.com/iampurna/habit-island-core/internal/core/domain"
	"github.com/iampurna/habit-island-core/internal/core/timeutil"
)

// Bonus descriptors recorded on XP events.
const (
	BonusAllHabitsDone = "all_habits_completed"
	BonusStreak7       = "7_day_streak"
	BonusStreak30      = "30_day_streak"
)

// XPAward describes the outcome of one award operation. AlreadyGranted marks
// a zero-effect call (daily login repeated, ad id replayed), which is not an
// error.
type XPAward struct {
	Total          int      `json:"total"`
	Base           int      `json:"base"`
	Bonus          bool     `json:"bonus"`
	Bonuses        []string `json:"bonuses,omitempty"`
	AlreadyGranted bool     `json:"already_granted,omitempty"`
}

// LevelInfo is the pure projection of a user's XP total.
type LevelInfo struct {
	TotalXP       int     `json:"total_xp"`
	Level         int     `json:"level"`
	XPIntoLevel   int     `json:"xp_into_level"`
	XPToNextLevel int     `json:"xp_to_next_level"`
	Progress      float64 `json:"progress"`
}

// XPSummary aggregates the ledger over the common UI periods.
type XPSummary struct {
	Today int `json:"today"`
	Week  int `json:"week"`
	Month int `json:"month"`
	Total int `json:"total"`
}

// XPService owns the append-only XP ledger: award rules, daily caps, and
// duplicate-claim prevention.
type XPService struct {
	events domain.XPEventRepository
	users  domain.UserRepository
	days   timeutil.DayResolver
	clock  timeutil.Clock
	rules  config.Rules
}

func NewXPService(events domain.XPEventRepository, users domain.UserRepository, days timeutil.DayResolver, clock timeutil.Clock, rules config.Rules) *XPService {
	return &XPService{events: events, users: users, days: days, clock: clock, rules: rules}
}

func (s *XPService) clamp(amount int) int {
	if amount > s.rules.MaxXPPerEvent {
		return s.rules.MaxXPPerEvent
	}
	return amount
}

func (s *XPService) credit(ctx context.Context, event *domain.XPEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if err := s.events.Create(ctx, event); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, event.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Ledger write stands; the cached total catches up on the next
			// account read.
			return nil
		}
		return err
	}

	user.AddXP(event.Amount, s.rules.XPPerLevel, s.clock.Now())
	return s.users.Update(ctx, user)
}

// AwardForCompletion grants base XP plus any bonuses earned by this
// completion. Milestone bonuses fire only on the streak transition itself
// (streak becomes exactly 7 or 30), so they are idempotent by construction.
func (s *XPService) AwardForCompletion(ctx context.Context, userID, habitID string, allHabitsDone bool, newStreak int) (*XPAward, error) {
	now := s.clock.Now()

	award := &XPAward{Base: s.rules.BaseCompletionXP, Total: s.rules.BaseCompletionXP}

	if allHabitsDone {
		award.Total += s.rules.AllHabitsBonusXP
		award.Bonuses = append(award.Bonuses, BonusAllHabitsDone)
	}
	switch newStreak {
	case 7:
		award.Total += s.rules.Streak7BonusXP
		award.Bonuses = append(award.Bonuses, BonusStreak7)
	case 30:
		award.Total += s.rules.Streak30BonusXP
		award.Bonuses = append(award.Bonuses, BonusStreak30)
	}
	award.Bonus = len(award.Bonuses) > 0
	award.Total = s.clamp(award.Total)

	event := domain.NewXPEvent(userID, habitID, award.Total, domain.XPSourceCompletion, strings.Join(award.Bonuses, ","), now)
	if err := s.credit(ctx, event); err != nil {
		return nil, err
	}

	return award, nil
}

// AwardForDailyLogin grants the login bonus at most once per logical day.
// A repeated call is a zero-effect success, not an error.
func (s *XPService) AwardForDailyLogin(ctx context.Context, userID string) (*XPAward, error) {
	now := s.clock.Now()
	dayStart, dayEnd := s.days.DayBounds(now)

	granted, err := s.events.CountBySourceInRange(ctx, userID, domain.XPSourceDailyLogin, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if granted > 0 {
		return &XPAward{AlreadyGranted: true}, nil
	}

	event := domain.NewXPEvent(userID, "", s.rules.DailyLoginXP, domain.XPSourceDailyLogin, "daily login", now)
	if err := s.credit(ctx, event); err != nil {
		return nil, err
	}

	if user, err := s.users.GetByID(ctx, userID); err == nil {
		user.RecordLogin(now)
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
	}

	return &XPAward{Total: s.rules.DailyLoginXP, Base: s.rules.DailyLoginXP}, nil
}

// AwardForRewardedAd grants ad XP subject to the per-day cap. The ad id is an
// idempotence key: replaying one is a zero-effect success, while exceeding
// the cap is a capacity failure carrying the exact counts.
func (s *XPService) AwardForRewardedAd(ctx context.Context, userID, adID string) (*XPAward, error) {
	if strings.TrimSpace(adID) == "" {
		return nil, domain.ErrAdIDRequired
	}

	now := s.clock.Now()

	seen, err := s.events.ExistsAdID(ctx, userID, adID)
	if err != nil {
		return nil, err
	}
	if seen {
		return &XPAward{AlreadyGranted: true}, nil
	}

	dayStart, dayEnd := s.days.DayBounds(now)
	watched, err := s.events.CountBySourceInRange(ctx, userID, domain.XPSourceRewardedAd, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if watched >= s.rules.MaxAdsPerDay {
		return nil, &domain.AdLimitError{AdsWatchedToday: watched, MaxAdsPerDay: s.rules.MaxAdsPerDay}
	}

	event := domain.NewXPEvent(userID, "", s.rules.RewardedAdXP, domain.XPSourceRewardedAd, fmt.Sprintf("rewarded ad %s", adID), now)
	event.AdID = adID
	if err := s.credit(ctx, event); err != nil {
		return nil, err
	}

	return &XPAward{Total: s.rules.RewardedAdXP, Base: s.rules.RewardedAdXP}, nil
}

// AwardManual grants an unconditional amount, for administrative and
// promotional credits.
func (s *XPService) AwardManual(ctx context.Context, userID string, amount int, description string) (*XPAward, error) {
	if amount < 0 {
		return nil, domain.ErrNegativeXPAmount
	}

	amount = s.clamp(amount)
	event := domain.NewXPEvent(userID, "", amount, domain.XPSourceManual, description, s.clock.Now())
	if err := s.credit(ctx, event); err != nil {
		return nil, err
	}

	return &XPAward{Total: amount, Base: amount}, nil
}

// Level recomputes level state from the ledger total.
func (s *XPService) Level(ctx context.Context, userID string) (*LevelInfo, error) {
	total, err := s.events.TotalForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	into := domain.XPIntoLevel(total, s.rules.XPPerLevel)
	return &LevelInfo{
		TotalXP:       total,
		Level:         domain.LevelForXP(total, s.rules.XPPerLevel),
		XPIntoLevel:   into,
		XPToNextLevel: domain.XPToNextLevel(total, s.rules.XPPerLevel),
		Progress:      float64(into) / float64(s.rules.XPPerLevel),
	}, nil
}

// Summary sums the ledger over today, the current week and the current month.
func (s *XPService) Summary(ctx context.Context, userID string) (*XPSummary, error) {
	now := s.clock.Now()

	dayStart, dayEnd := s.days.DayBounds(now)
	today, err := s.events.SumInRange(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	week, err := s.events.SumInRange(ctx, userID, s.days.StartOfWeek(now), dayEnd)
	if err != nil {
		return nil, err
	}

	month, err := s.events.SumInRange(ctx, userID, s.days.StartOfMonth(now), dayEnd)
	if err != nil {
		return nil, err
	}

	total, err := s.events.TotalForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &XPSummary{Today: today, Week: week, Month: month, Total: total}, nil
}
