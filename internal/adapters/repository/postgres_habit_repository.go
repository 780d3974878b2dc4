package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iampurna/habit-island-core/internal/core/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresHabitRepository struct {
	db *sqlx.DB
}

func NewPostgresHabitRepository(db *sqlx.DB) *PostgresHabitRepository {
	return &PostgresHabitRepository{db: db}
}

type scannable interface {
	Scan(dest ...interface{}) error
}

const habitColumns = `
        id, user_id, name, category, frequency, weekdays, zone, reminder_time, active,
        current_streak, longest_streak, total_completions, last_completed_at,
        growth_stage, growth_level, decay_counter, last_decay_at,
        shield_active, shield_used_at,
        version, created_at, updated_at, deleted_at`

func (r *PostgresHabitRepository) scanRow(row scannable) (*domain.Habit, error) {
	var h domain.Habit
	var weekdaysJSON []byte

	err := row.Scan(
		&h.ID, &h.UserID, &h.Name, &h.Category, &h.Frequency, &weekdaysJSON, &h.Zone, &h.ReminderTime, &h.Active,
		&h.CurrentStreak, &h.LongestStreak, &h.TotalCompletions, &h.LastCompletedAt,
		&h.GrowthStage, &h.GrowthLevel, &h.DecayCounter, &h.LastDecayAt,
		&h.ShieldActive, &h.ShieldUsedAt,
		&h.Version, &h.CreatedAt, &h.UpdatedAt, &h.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(weekdaysJSON) > 0 {
		if err := json.Unmarshal(weekdaysJSON, &h.Weekdays); err != nil {
			return nil, fmt.Errorf("failed to unmarshal weekdays: %w", err)
		}
	}

	return &h, nil
}

func (r *PostgresHabitRepository) Create(ctx context.Context, h *domain.Habit) error {
	weekdaysJSON, err := json.Marshal(h.Weekdays)
	if err != nil {
		return fmt.Errorf("failed to marshal weekdays: %w", err)
	}

	query := `
        INSERT INTO habits (
            id, user_id, name, category, frequency, weekdays, zone, reminder_time, active,
            current_streak, longest_streak, total_completions, last_completed_at,
            growth_stage, growth_level, decay_counter, last_decay_at,
            shield_active, shield_used_at,
            version, created_at, updated_at, deleted_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9,
            $10, $11, $12, $13,
            $14, $15, $16, $17,
            $18, $19,
            1, $20, $21, NULL
        )`

	_, err = r.db.ExecContext(ctx, query,
		h.ID, h.UserID, h.Name, h.Category, h.Frequency, weekdaysJSON, h.Zone, h.ReminderTime, h.Active,
		h.CurrentStreak, h.LongestStreak, h.TotalCompletions, h.LastCompletedAt,
		h.GrowthStage, h.GrowthLevel, h.DecayCounter, h.LastDecayAt,
		h.ShieldActive, h.ShieldUsedAt,
		h.CreatedAt, h.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}

	h.Version = 1
	return nil
}

func (r *PostgresHabitRepository) GetByID(ctx context.Context, id string) (*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1 AND deleted_at IS NULL`

	row := r.db.QueryRowContext(ctx, query, id)

	h, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return h, nil
}

func (r *PostgresHabitRepository) ListByUserID(ctx context.Context, userID string, filter domain.HabitFilter) ([]*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = $1 AND deleted_at IS NULL`
	args := []interface{}{userID}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Zone != "" {
		args = append(args, filter.Zone)
		query += fmt.Sprintf(" AND zone = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var habits []*domain.Habit
	for rows.Next() {
		h, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("row scan error: %w", err)
		}
		habits = append(habits, h)
	}

	return habits, rows.Err()
}

func (r *PostgresHabitRepository) FindByName(ctx context.Context, userID, name string) (*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits
        WHERE user_id = $1 AND LOWER(name) = LOWER($2) AND active = TRUE AND deleted_at IS NULL
        LIMIT 1`

	row := r.db.QueryRowContext(ctx, query, userID, name)

	h, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return h, nil
}

func (r *PostgresHabitRepository) CountActive(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT count(*) FROM habits WHERE user_id = $1 AND active = TRUE AND deleted_at IS NULL`

	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return count, nil
}

func (r *PostgresHabitRepository) CountActiveInZone(ctx context.Context, userID, zone string) (int, error) {
	var count int
	query := `SELECT count(*) FROM habits WHERE user_id = $1 AND zone = $2 AND active = TRUE AND deleted_at IS NULL`

	if err := r.db.QueryRowContext(ctx, query, userID, zone).Scan(&count); err != nil {
		return 0, fmt.Errorf("zone count query failed: %w", err)
	}
	return count, nil
}

func (r *PostgresHabitRepository) Update(ctx context.Context, h *domain.Habit) error {
	weekdaysJSON, err := json.Marshal(h.Weekdays)
	if err != nil {
		return err
	}

	// total_completions is owned by IncrementCompletion.
	query := `
        UPDATE habits SET
            name=$1, category=$2, frequency=$3, weekdays=$4, zone=$5, reminder_time=$6, active=$7,
            current_streak=$8, longest_streak=$9, last_completed_at=$10,
            growth_stage=$11, growth_level=$12, decay_counter=$13, last_decay_at=$14,
            shield_active=$15, shield_used_at=$16,
            updated_at=NOW(), version = version + 1
        WHERE id=$17 AND version=$18 AND deleted_at IS NULL
        RETURNING version, updated_at`

	row := r.db.QueryRowContext(ctx, query,
		h.Name, h.Category, h.Frequency, weekdaysJSON, h.Zone, h.ReminderTime, h.Active,
		h.CurrentStreak, h.LongestStreak, h.LastCompletedAt,
		h.GrowthStage, h.GrowthLevel, h.DecayCounter, h.LastDecayAt,
		h.ShieldActive, h.ShieldUsedAt,
		h.ID, h.Version,
	)

	var newVersion int
	var newUpdatedAt time.Time

	err = row.Scan(&newVersion, &newUpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existsQuery := `SELECT count(*) FROM habits WHERE id = $1`
			var count int
			if checkErr := r.db.QueryRowContext(ctx, existsQuery, h.ID).Scan(&count); checkErr != nil {
				return fmt.Errorf("existence check failed: %w", checkErr)
			}

			if count == 0 {
				return domain.ErrHabitNotFound
			}
			return domain.ErrHabitConflict
		}
		return fmt.Errorf("update query failed: %w", err)
	}

	h.Version = newVersion
	h.UpdatedAt = newUpdatedAt

	return nil
}

// IncrementCompletion bumps the completion counter server-side so two devices
// completing near-simultaneously never lose an update.
func (r *PostgresHabitRepository) IncrementCompletion(ctx context.Context, id string, completedAt time.Time) error {
	query := `
        UPDATE habits
        SET total_completions = total_completions + 1,
            last_completed_at = GREATEST(COALESCE(last_completed_at, $2), $2),
            updated_at = NOW()
        WHERE id = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, completedAt)
	if err != nil {
		return fmt.Errorf("increment query failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

func (r *PostgresHabitRepository) UpdateStreaks(ctx context.Context, id string, current, longest int) error {
	query := `
        UPDATE habits
        SET current_streak = $2, longest_streak = GREATEST(longest_streak, $3), updated_at = NOW()
        WHERE id = $1 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, current, longest)
	if err != nil {
		return fmt.Errorf("streak update failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

func (r *PostgresHabitRepository) Delete(ctx context.Context, id string, hard bool) error {
	var query string
	if hard {
		query = `DELETE FROM habits WHERE id = $1`
	} else {
		query = `
            UPDATE habits
            SET deleted_at = NOW(), active = FALSE, updated_at = NOW(), version = version + 1
            WHERE id = $1 AND deleted_at IS NULL`
	}

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete query failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrHabitNotFound
	}

	return nil
}

// Upsert overwrites by id for the sync push path. Monotone counters use
// GREATEST so a stale push can never roll them back.
func (r *PostgresHabitRepository) Upsert(ctx context.Context, h *domain.Habit) error {
	weekdaysJSON, err := json.Marshal(h.Weekdays)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO habits (
            id, user_id, name, category, frequency, weekdays, zone, reminder_time, active,
            current_streak, longest_streak, total_completions, last_completed_at,
            growth_stage, growth_level, decay_counter, last_decay_at,
            shield_active, shield_used_at,
            version, created_at, updated_at, deleted_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9,
            $10, $11, $12, $13,
            $14, $15, $16, $17,
            $18, $19,
            $20, $21, $22, $23
        )
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            category = EXCLUDED.category,
            frequency = EXCLUDED.frequency,
            weekdays = EXCLUDED.weekdays,
            zone = EXCLUDED.zone,
            reminder_time = EXCLUDED.reminder_time,
            active = EXCLUDED.active,
            current_streak = EXCLUDED.current_streak,
            longest_streak = GREATEST(habits.longest_streak, EXCLUDED.longest_streak),
            total_completions = GREATEST(habits.total_completions, EXCLUDED.total_completions),
            last_completed_at = EXCLUDED.last_completed_at,
            growth_stage = EXCLUDED.growth_stage,
            growth_level = EXCLUDED.growth_level,
            decay_counter = EXCLUDED.decay_counter,
            last_decay_at = EXCLUDED.last_decay_at,
            shield_active = EXCLUDED.shield_active,
            shield_used_at = EXCLUDED.shield_used_at,
            version = GREATEST(habits.version, EXCLUDED.version) + 1,
            updated_at = NOW(),
            deleted_at = EXCLUDED.deleted_at`

	_, err = r.db.ExecContext(ctx, query,
		h.ID, h.UserID, h.Name, h.Category, h.Frequency, weekdaysJSON, h.Zone, h.ReminderTime, h.Active,
		h.CurrentStreak, h.LongestStreak, h.TotalCompletions, h.LastCompletedAt,
		h.GrowthStage, h.GrowthLevel, h.DecayCounter, h.LastDecayAt,
		h.ShieldActive, h.ShieldUsedAt,
		h.Version, h.CreatedAt, h.UpdatedAt, h.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert query failed: %w", err)
	}
	return nil
}

func (r *PostgresHabitRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.Habit, error) {
	// Soft-deleted rows are included so clients can tombstone them.
	query := `SELECT ` + habitColumns + ` FROM habits
        WHERE user_id = $1 AND updated_at > $2
        ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("sync query error: %w", err)
	}
	defer rows.Close()

	var habits []*domain.Habit
	for rows.Next() {
		h, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("sync row scan error: %w", err)
		}
		habits = append(habits, h)
	}

	return habits, rows.Err()
}
