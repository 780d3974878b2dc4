package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

type PostgresXPEventRepository struct {
	db *sqlx.DB
}

func NewPostgresXPEventRepository(db *sqlx.DB) *PostgresXPEventRepository {
	return &PostgresXPEventRepository{db: db}
}

func (r *PostgresXPEventRepository) Create(ctx context.Context, e *domain.XPEvent) error {
	query := `
        INSERT INTO xp_events (id, user_id, habit_id, amount, source, description, ad_id, created_at)
        VALUES (:id, :user_id, :habit_id, :amount, :source, :description, :ad_id, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		if pgErrCode(err, "23505") {
			// Same event id replayed: already on the ledger.
			return nil
		}
		return fmt.Errorf("failed to insert xp event: %w", err)
	}
	return nil
}

func (r *PostgresXPEventRepository) TotalForUser(ctx context.Context, userID string) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(amount), 0) FROM xp_events WHERE user_id = $1`

	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("xp total query failed: %w", err)
	}
	return total, nil
}

func (r *PostgresXPEventRepository) SumInRange(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var total int
	query := `
        SELECT COALESCE(SUM(amount), 0) FROM xp_events
        WHERE user_id = $1 AND created_at >= $2 AND created_at < $3`

	if err := r.db.QueryRowContext(ctx, query, userID, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("xp range query failed: %w", err)
	}
	return total, nil
}

func (r *PostgresXPEventRepository) CountBySourceInRange(ctx context.Context, userID, source string, from, to time.Time) (int, error) {
	var count int
	query := `
        SELECT count(*) FROM xp_events
        WHERE user_id = $1 AND source = $2 AND created_at >= $3 AND created_at < $4`

	if err := r.db.QueryRowContext(ctx, query, userID, source, from, to).Scan(&count); err != nil {
		return 0, fmt.Errorf("xp count query failed: %w", err)
	}
	return count, nil
}

func (r *PostgresXPEventRepository) ExistsAdID(ctx context.Context, userID, adID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM xp_events WHERE user_id = $1 AND ad_id = $2)`

	if err := r.db.QueryRowContext(ctx, query, userID, adID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ad id lookup failed: %w", err)
	}
	return exists, nil
}
