package domain

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserConflict       = errors.New("user account was modified concurrently")
	ErrNoShieldsAvailable = errors.New("no streak shields available")
	ErrNoActiveStreak     = errors.New("habit has no active streak to protect")
)

// Premium tiers.
const (
	TierFree     = "free"
	TierMonthly  = "monthly"
	TierAnnual   = "annual"
	TierLifetime = "lifetime"
)

// UserAccount is the per-user aggregate: cached XP totals, habit counts, and
// the consumable entitlements (shields, vacation days).
type UserAccount struct {
	ID string `json:"id" db:"id"`

	TotalXP int `json:"total_xp" db:"total_xp"`
	Level   int `json:"level" db:"level"`

	TotalHabits  int `json:"total_habits" db:"total_habits"`
	ActiveHabits int `json:"active_habits" db:"active_habits"`
	GlobalStreak int `json:"global_streak" db:"global_streak"`

	PremiumTier      string     `json:"premium_tier" db:"premium_tier"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty" db:"premium_expires_at"`

	ShieldsRemaining      int `json:"shields_remaining" db:"shields_remaining"`
	VacationDaysRemaining int `json:"vacation_days_remaining" db:"vacation_days_remaining"`

	UnlockedZones []string `json:"unlocked_zones" db:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty" db:"last_sync_at"`

	Version   int       `json:"version" db:"version"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func NewUserAccount(id string, defaultShields int, now time.Time) (*UserAccount, error) {
	if id == "" {
		return nil, ErrInvalidUserID
	}

	now = now.UTC()
	return &UserAccount{
		ID:               id,
		Level:            1,
		PremiumTier:      TierFree,
		ShieldsRemaining: defaultShields,
		UnlockedZones:    []string{"starter"},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsPremium reports whether the subscription is active at the given instant.
func (u *UserAccount) IsPremium(now time.Time) bool {
	switch u.PremiumTier {
	case TierLifetime:
		return true
	case TierMonthly, TierAnnual:
		return u.PremiumExpiresAt != nil && u.PremiumExpiresAt.After(now)
	default:
		return false
	}
}

// MaxHabits is the active-habit cap for this account's tier. Premium is
// effectively unbounded.
func (u *UserAccount) MaxHabits(freeLimit int, now time.Time) int {
	if u.IsPremium(now) {
		return int(^uint(0) >> 1)
	}
	return freeLimit
}

// ConsumeShield spends one streak shield.
func (u *UserAccount) ConsumeShield(now time.Time) error {
	if u.ShieldsRemaining <= 0 {
		return ErrNoShieldsAvailable
	}
	u.ShieldsRemaining--
	u.UpdatedAt = now.UTC()
	return nil
}

// AddXP bumps the cached total and re-derives the level.
func (u *UserAccount) AddXP(amount, xpPerLevel int, now time.Time) {
	if amount <= 0 {
		return
	}
	u.TotalXP += amount
	u.Level = LevelForXP(u.TotalXP, xpPerLevel)
	u.UpdatedAt = now.UTC()
}

func (u *UserAccount) RecordLogin(now time.Time) {
	now = now.UTC()
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

func (u *UserAccount) RecordSync(now time.Time) {
	now = now.UTC()
	u.LastSyncAt = &now
	u.UpdatedAt = now
}

// HabitCreated / HabitDeleted keep the cached counters in step with habit
// lifecycle operations. activeHabits never exceeds totalHabits.
func (u *UserAccount) HabitCreated(now time.Time) {
	u.TotalHabits++
	u.ActiveHabits++
	u.UpdatedAt = now.UTC()
}

func (u *UserAccount) HabitDeactivated(now time.Time) {
	if u.ActiveHabits > 0 {
		u.ActiveHabits--
	}
	u.UpdatedAt = now.UTC()
}

func (u *UserAccount) HabitHardDeleted(wasActive bool, now time.Time) {
	if u.TotalHabits > 0 {
		u.TotalHabits--
	}
	if wasActive && u.ActiveHabits > 0 {
		u.ActiveHabits--
	}
	u.UpdatedAt = now.UTC()
}

// HasZone reports whether the given island zone is unlocked.
func (u *UserAccount) HasZone(zone string) bool {
	for _, z := range u.UnlockedZones {
		if z == zone {
			return true
		}
	}
	return false
}
