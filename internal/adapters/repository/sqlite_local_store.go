package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iampurna/habit-island-core/internal/core/domain"

	_ "modernc.org/sqlite"
)

// SQLiteLocalStore is the durable device-side cache: a single SQLite file
// holding JSON snapshots of habits, the completion window, the user account,
// the pending-operation queue and the last-sync watermark. Rows are stored as
// JSON payloads with a few indexed columns, so the cache schema never has to
// chase the entity schema.
type SQLiteLocalStore struct {
	db       *sqlx.DB
	queueMax int
}

const localSchema = `
CREATE TABLE IF NOT EXISTS cache_habits (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    created_at TEXT NOT NULL,
    payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_habits_user ON cache_habits(user_id);

CREATE TABLE IF NOT EXISTS cache_completions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    completed_at TEXT NOT NULL,
    payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_completions_user ON cache_completions(user_id, completed_at);

CREATE TABLE IF NOT EXISTS cache_user (
    id      TEXT PRIMARY KEY,
    payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_ops (
    id        TEXT PRIMARY KEY,
    user_id   TEXT NOT NULL,
    kind      TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    payload   BLOB NOT NULL,
    queued_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_ops_user ON pending_ops(user_id, queued_at);

CREATE TABLE IF NOT EXISTS sync_meta (
    user_id      TEXT PRIMARY KEY,
    last_sync_at TEXT NOT NULL
);`

func NewSQLiteLocalStore(path string, queueMax int) (*SQLiteLocalStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	// SQLite allows one writer; funnel everything through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply local schema: %w", err)
	}

	return &SQLiteLocalStore{db: db, queueMax: queueMax}, nil
}

func (s *SQLiteLocalStore) Close() error { return s.db.Close() }

func (s *SQLiteLocalStore) Enqueue(ctx context.Context, op *domain.PendingOp) error {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM pending_ops WHERE user_id = ?`, op.UserID,
	).Scan(&count); err != nil {
		return fmt.Errorf("queue size check failed: %w", err)
	}
	if count >= s.queueMax {
		return &domain.QueueFullError{Size: count, Max: s.queueMax}
	}

	id := op.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_ops (id, user_id, kind, entity_id, payload, queued_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id, op.UserID, string(op.Kind), op.EntityID, op.Payload, op.QueuedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue pending op: %w", err)
	}

	op.ID = id
	return nil
}

func (s *SQLiteLocalStore) ListPending(ctx context.Context, userID string) ([]*domain.PendingOp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, entity_id, payload, queued_at
         FROM pending_ops WHERE user_id = ? ORDER BY queued_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("pending query failed: %w", err)
	}
	defer rows.Close()

	var ops []*domain.PendingOp
	for rows.Next() {
		var op domain.PendingOp
		var kind, queuedAt string
		if err := rows.Scan(&op.ID, &op.UserID, &kind, &op.EntityID, &op.Payload, &queuedAt); err != nil {
			return nil, fmt.Errorf("pending row scan failed: %w", err)
		}
		op.Kind = domain.PendingOpKind(kind)
		if t, perr := time.Parse(time.RFC3339Nano, queuedAt); perr == nil {
			op.QueuedAt = t
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (s *SQLiteLocalStore) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM pending_ops WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to remove pending ops: %w", err)
	}
	return nil
}

func (s *SQLiteLocalStore) Size(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM pending_ops WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("queue size query failed: %w", err)
	}
	return count, nil
}

func (s *SQLiteLocalStore) GetHabit(ctx context.Context, id string) (*domain.Habit, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM cache_habits WHERE id = ?`, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("habit cache lookup failed: %w", err)
	}

	var h domain.Habit
	if err := json.Unmarshal(payload, &h); err != nil {
		return nil, fmt.Errorf("corrupt habit cache row %s: %w", id, err)
	}
	return &h, nil
}

func (s *SQLiteLocalStore) ListHabits(ctx context.Context, userID string) ([]*domain.Habit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM cache_habits WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("habit cache query failed: %w", err)
	}
	defer rows.Close()

	var habits []*domain.Habit
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var h domain.Habit
		if err := json.Unmarshal(payload, &h); err != nil {
			return nil, fmt.Errorf("corrupt habit cache row: %w", err)
		}
		habits = append(habits, &h)
	}
	return habits, rows.Err()
}

func (s *SQLiteLocalStore) SaveHabits(ctx context.Context, habits []*domain.Habit) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, h := range habits {
		payload, err := json.Marshal(h)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cache_habits (id, user_id, created_at, payload)
             VALUES (?, ?, ?, ?)
             ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
			h.ID, h.UserID, h.CreatedAt.UTC().Format(time.RFC3339Nano), payload,
		)
		if err != nil {
			return fmt.Errorf("failed to cache habit %s: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteLocalStore) SaveCompletions(ctx context.Context, events []*domain.CompletionEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		// Ledger rows are immutable: replaying an id is a no-op.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cache_completions (id, user_id, completed_at, payload)
             VALUES (?, ?, ?, ?)
             ON CONFLICT (id) DO NOTHING`,
			e.ID, e.UserID, e.CompletedAt.UTC().Format(time.RFC3339Nano), payload,
		)
		if err != nil {
			return fmt.Errorf("failed to cache completion %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteLocalStore) ListCompletions(ctx context.Context, userID string, from, to time.Time) ([]*domain.CompletionEvent, error) {
	query := `SELECT payload FROM cache_completions WHERE user_id = ?`
	args := []interface{}{userID}

	if !from.IsZero() {
		query += ` AND completed_at >= ?`
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if !to.IsZero() {
		query += ` AND completed_at < ?`
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	query += ` ORDER BY completed_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("completion cache query failed: %w", err)
	}
	defer rows.Close()

	var events []*domain.CompletionEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e domain.CompletionEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("corrupt completion cache row: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *SQLiteLocalStore) GetUser(ctx context.Context, id string) (*domain.UserAccount, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM cache_user WHERE id = ?`, id,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user cache lookup failed: %w", err)
	}

	var u domain.UserAccount
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("corrupt user cache row %s: %w", id, err)
	}
	return &u, nil
}

func (s *SQLiteLocalStore) SaveUser(ctx context.Context, u *domain.UserAccount) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_user (id, payload) VALUES (?, ?)
         ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`,
		u.ID, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to cache user %s: %w", u.ID, err)
	}
	return nil
}

func (s *SQLiteLocalStore) LastSyncAt(ctx context.Context, userID string) (*time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync_at FROM sync_meta WHERE user_id = ?`, userID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sync watermark lookup failed: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt sync watermark for %s: %w", userID, err)
	}
	return &t, nil
}

func (s *SQLiteLocalStore) SetLastSyncAt(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_meta (user_id, last_sync_at) VALUES (?, ?)
         ON CONFLICT (user_id) DO UPDATE SET last_sync_at = excluded.last_sync_at`,
		userID, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to set sync watermark: %w", err)
	}
	return nil
}
