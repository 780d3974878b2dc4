package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

func TestNewUserAccount(t *testing.T) {
	u, err := domain.NewUserAccount("u1", 3, now)
	require.NoError(t, err)

	assert.Equal(t, 1, u.Level)
	assert.Equal(t, domain.TierFree, u.PremiumTier)
	assert.Equal(t, 3, u.ShieldsRemaining)
	assert.Equal(t, []string{"starter"}, u.UnlockedZones)

	_, err = domain.NewUserAccount("", 3, now)
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)
}

func TestUserAccount_Premium(t *testing.T) {
	u, _ := domain.NewUserAccount("u1", 3, now)

	t.Run("free tier is capped", func(t *testing.T) {
		assert.False(t, u.IsPremium(now))
		assert.Equal(t, 7, u.MaxHabits(7, now))
	})

	t.Run("lifetime never expires", func(t *testing.T) {
		u.PremiumTier = domain.TierLifetime
		assert.True(t, u.IsPremium(now))
		assert.Greater(t, u.MaxHabits(7, now), 1000000)
	})

	t.Run("monthly honors the expiry instant", func(t *testing.T) {
		u.PremiumTier = domain.TierMonthly
		exp := now.Add(time.Hour)
		u.PremiumExpiresAt = &exp

		assert.True(t, u.IsPremium(now))
		assert.False(t, u.IsPremium(now.Add(2*time.Hour)))
	})
}

func TestUserAccount_ConsumeShield(t *testing.T) {
	u, _ := domain.NewUserAccount("u1", 1, now)

	require.NoError(t, u.ConsumeShield(now))
	assert.Equal(t, 0, u.ShieldsRemaining)

	assert.ErrorIs(t, u.ConsumeShield(now), domain.ErrNoShieldsAvailable)
}

func TestUserAccount_AddXP(t *testing.T) {
	u, _ := domain.NewUserAccount("u1", 3, now)

	u.AddXP(250, 100, now)
	assert.Equal(t, 250, u.TotalXP)
	assert.Equal(t, 3, u.Level)

	// Non-positive amounts are ignored.
	u.AddXP(0, 100, now)
	u.AddXP(-10, 100, now)
	assert.Equal(t, 250, u.TotalXP)
}

func TestUserAccount_HabitCounters(t *testing.T) {
	u, _ := domain.NewUserAccount("u1", 3, now)

	u.HabitCreated(now)
	u.HabitCreated(now)
	assert.Equal(t, 2, u.TotalHabits)
	assert.Equal(t, 2, u.ActiveHabits)

	u.HabitDeactivated(now)
	assert.Equal(t, 2, u.TotalHabits)
	assert.Equal(t, 1, u.ActiveHabits)

	u.HabitHardDeleted(true, now)
	assert.Equal(t, 1, u.TotalHabits)
	assert.Equal(t, 0, u.ActiveHabits)

	// Counters never go negative.
	u.HabitDeactivated(now)
	u.HabitHardDeleted(true, now)
	assert.Equal(t, 0, u.TotalHabits)
	assert.Equal(t, 0, u.ActiveHabits)
}

func TestUserAccount_HasZone(t *testing.T) {
	u, _ := domain.NewUserAccount("u1", 3, now)
	assert.True(t, u.HasZone("starter"))
	assert.False(t, u.HasZone("volcano"))
}
