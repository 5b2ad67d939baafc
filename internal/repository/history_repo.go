package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// HistoryRepository persists session turns in SQLite
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Turns returns the turns of a session ordered by insertion
func (r *HistoryRepository) Turns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := []domain.Turn{}
	for rows.Next() {
		var turn domain.Turn
		var role string
		if err := rows.Scan(&role, &turn.Text, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = domain.Role(role)
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Append writes all turns in one transaction
func (r *HistoryRepository) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, sessionID, now, now); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	for _, turn := range turns {
		seq++
		created := turn.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, session_id, seq, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), sessionID, seq, string(turn.Role), turn.Text, created.UTC()); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Sessions lists the ids of sessions that have turns
func (r *HistoryRepository) Sessions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
