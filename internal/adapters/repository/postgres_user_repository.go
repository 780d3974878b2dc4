package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `
        id, total_xp, level, total_habits, active_habits, global_streak,
        premium_tier, premium_expires_at,
        shields_remaining, vacation_days_remaining, unlocked_zones,
        last_login_at, last_sync_at,
        version, created_at, updated_at`

func (r *PostgresUserRepository) scanUser(row scannable) (*domain.UserAccount, error) {
	var u domain.UserAccount
	var zones pq.StringArray

	err := row.Scan(
		&u.ID, &u.TotalXP, &u.Level, &u.TotalHabits, &u.ActiveHabits, &u.GlobalStreak,
		&u.PremiumTier, &u.PremiumExpiresAt,
		&u.ShieldsRemaining, &u.VacationDaysRemaining, &zones,
		&u.LastLoginAt, &u.LastSyncAt,
		&u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.UnlockedZones = []string(zones)
	return &u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *domain.UserAccount) error {
	query := `
        INSERT INTO user_accounts (
            id, total_xp, level, total_habits, active_habits, global_streak,
            premium_tier, premium_expires_at,
            shields_remaining, vacation_days_remaining, unlocked_zones,
            last_login_at, last_sync_at,
            version, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8,
            $9, $10, $11,
            $12, $13,
            1, $14, $15
        )`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.TotalXP, u.Level, u.TotalHabits, u.ActiveHabits, u.GlobalStreak,
		u.PremiumTier, u.PremiumExpiresAt,
		u.ShieldsRemaining, u.VacationDaysRemaining, pq.StringArray(u.UnlockedZones),
		u.LastLoginAt, u.LastSyncAt,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pgErrCode(err, "23505") {
			// Two requests provisioning the same account: the row exists, done.
			return nil
		}
		return fmt.Errorf("failed to insert user account: %w", err)
	}

	u.Version = 1
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	query := `SELECT ` + userColumns + ` FROM user_accounts WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	u, err := r.scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u *domain.UserAccount) error {
	query := `
        UPDATE user_accounts SET
            total_xp=$1, level=$2, total_habits=$3, active_habits=$4, global_streak=$5,
            premium_tier=$6, premium_expires_at=$7,
            shields_remaining=$8, vacation_days_remaining=$9, unlocked_zones=$10,
            last_login_at=$11, last_sync_at=$12,
            updated_at=NOW(), version = version + 1
        WHERE id=$13 AND version=$14
        RETURNING version, updated_at`

	row := r.db.QueryRowContext(ctx, query,
		u.TotalXP, u.Level, u.TotalHabits, u.ActiveHabits, u.GlobalStreak,
		u.PremiumTier, u.PremiumExpiresAt,
		u.ShieldsRemaining, u.VacationDaysRemaining, pq.StringArray(u.UnlockedZones),
		u.LastLoginAt, u.LastSyncAt,
		u.ID, u.Version,
	)

	var newVersion int
	var newUpdatedAt time.Time

	if err := row.Scan(&newVersion, &newUpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existsQuery := `SELECT count(*) FROM user_accounts WHERE id = $1`
			var count int
			if checkErr := r.db.QueryRowContext(ctx, existsQuery, u.ID).Scan(&count); checkErr != nil {
				return fmt.Errorf("existence check failed: %w", checkErr)
			}
			if count == 0 {
				return domain.ErrUserNotFound
			}
			return domain.ErrUserConflict
		}
		return fmt.Errorf("update query failed: %w", err)
	}

	u.Version = newVersion
	u.UpdatedAt = newUpdatedAt
	return nil
}

// Upsert serves the sync push path. XP, level and the global streak are
// monotone, so GREATEST keeps a stale device from rolling them back.
func (r *PostgresUserRepository) Upsert(ctx context.Context, u *domain.UserAccount) error {
	query := `
        INSERT INTO user_accounts (
            id, total_xp, level, total_habits, active_habits, global_streak,
            premium_tier, premium_expires_at,
            shields_remaining, vacation_days_remaining, unlocked_zones,
            last_login_at, last_sync_at,
            version, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8,
            $9, $10, $11,
            $12, $13,
            $14, $15, $16
        )
        ON CONFLICT (id) DO UPDATE SET
            total_xp = GREATEST(user_accounts.total_xp, EXCLUDED.total_xp),
            level = GREATEST(user_accounts.level, EXCLUDED.level),
            total_habits = EXCLUDED.total_habits,
            active_habits = EXCLUDED.active_habits,
            global_streak = GREATEST(user_accounts.global_streak, EXCLUDED.global_streak),
            premium_tier = EXCLUDED.premium_tier,
            premium_expires_at = EXCLUDED.premium_expires_at,
            shields_remaining = EXCLUDED.shields_remaining,
            vacation_days_remaining = EXCLUDED.vacation_days_remaining,
            unlocked_zones = EXCLUDED.unlocked_zones,
            last_login_at = EXCLUDED.last_login_at,
            last_sync_at = EXCLUDED.last_sync_at,
            version = GREATEST(user_accounts.version, EXCLUDED.version) + 1,
            updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.TotalXP, u.Level, u.TotalHabits, u.ActiveHabits, u.GlobalStreak,
		u.PremiumTier, u.PremiumExpiresAt,
		u.ShieldsRemaining, u.VacationDaysRemaining, pq.StringArray(u.UnlockedZones),
		u.LastLoginAt, u.LastSyncAt,
		u.Version, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert query failed: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetIfChanged(ctx context.Context, id string, since time.Time) (*domain.UserAccount, error) {
	query := `SELECT ` + userColumns + ` FROM user_accounts WHERE id = $1 AND updated_at > $2`

	row := r.db.QueryRowContext(ctx, query, id, since)

	u, err := r.scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return u, nil
}
