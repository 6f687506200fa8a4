package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calebmorris/go-song-funnel/internal/session"
)

// SessionRepository handles session database operations.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// List returns all sessions.
func (r *SessionRepository) List(ctx context.Context) ([]session.Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.Session
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		var s session.Session
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, fmt.Errorf("decoding session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// Upsert creates or replaces a session with its nested conversation, working
// set, rejected and preference lists. Sessions are append-mostly with no
// cross-device contention, so there is no version gate.
func (r *SessionRepository) Upsert(ctx context.Context, s session.Session) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	query := `
		INSERT INTO sessions (id, theme_id, doc, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			theme_id = EXCLUDED.theme_id,
			doc = EXCLUDED.doc,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, s.ID, s.ThemeID, doc); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}
