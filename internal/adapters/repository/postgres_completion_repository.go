package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/iampurna/habit-island-core/internal/core/domain"
)

// pgErrCode reports whether err carries the given SQLSTATE. The pgx stdlib
// driver surfaces *pgconn.PgError, not lib/pq's error type.
func pgErrCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

type PostgresCompletionRepository struct {
	db *sqlx.DB
}

func NewPostgresCompletionRepository(db *sqlx.DB) *PostgresCompletionRepository {
	return &PostgresCompletionRepository{db: db}
}

func (r *PostgresCompletionRepository) Create(ctx context.Context, e *domain.CompletionEvent) error {
	query := `
        INSERT INTO completion_events (id, habit_id, user_id, completed_at, note, xp_earned, bonus, created_at)
        VALUES (:id, :habit_id, :user_id, :completed_at, :note, :xp_earned, :bonus, :created_at)`

	_, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		switch {
		case pgErrCode(err, "23505"):
			// Replaying the same event id is fine: the ledger already has it.
			return nil
		case pgErrCode(err, "23503"):
			return domain.ErrHabitNotFound
		}
		return fmt.Errorf("failed to insert completion event: %w", err)
	}
	return nil
}

func (r *PostgresCompletionRepository) GetByID(ctx context.Context, id string) (*domain.CompletionEvent, error) {
	var e domain.CompletionEvent
	query := `SELECT * FROM completion_events WHERE id = $1`

	err := r.db.GetContext(ctx, &e, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCompletionNotFound
		}
		return nil, fmt.Errorf("query error: %w", err)
	}
	return &e, nil
}

func (r *PostgresCompletionRepository) ListByHabitID(ctx context.Context, habitID string, from, to time.Time) ([]*domain.CompletionEvent, error) {
	query := `SELECT * FROM completion_events WHERE habit_id = $1`
	args := []interface{}{habitID}

	if !from.IsZero() {
		args = append(args, from)
		query += fmt.Sprintf(" AND completed_at >= $%d", len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += fmt.Sprintf(" AND completed_at < $%d", len(args))
	}

	query += " ORDER BY completed_at DESC"

	var events []*domain.CompletionEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return events, nil
}

func (r *PostgresCompletionRepository) ListByUserIDAndDateRange(ctx context.Context, userID string, from, to time.Time) ([]*domain.CompletionEvent, error) {
	query := `
        SELECT * FROM completion_events
        WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3
        ORDER BY completed_at ASC`

	var events []*domain.CompletionEvent
	if err := r.db.SelectContext(ctx, &events, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	return events, nil
}

// Upsert is the push-path variant of Create: the ledger is append-only, so a
// conflicting id means the event already landed and the op is a no-op.
func (r *PostgresCompletionRepository) Upsert(ctx context.Context, e *domain.CompletionEvent) error {
	query := `
        INSERT INTO completion_events (id, habit_id, user_id, completed_at, note, xp_earned, bonus, created_at)
        VALUES (:id, :habit_id, :user_id, :completed_at, :note, :xp_earned, :bonus, :created_at)
        ON CONFLICT (id) DO NOTHING`

	_, err := r.db.NamedExecContext(ctx, query, e)
	if err != nil {
		if pgErrCode(err, "23503") {
			return domain.ErrHabitNotFound
		}
		return fmt.Errorf("failed to upsert completion event: %w", err)
	}
	return nil
}

func (r *PostgresCompletionRepository) GetChanges(ctx context.Context, userID string, since time.Time) ([]*domain.CompletionEvent, error) {
	query := `
        SELECT * FROM completion_events
        WHERE user_id = $1 AND created_at > $2
        ORDER BY created_at ASC`

	var events []*domain.CompletionEvent
	if err := r.db.SelectContext(ctx, &events, query, userID, since); err != nil {
		return nil, fmt.Errorf("sync query error: %w", err)
	}
	return events, nil
}
