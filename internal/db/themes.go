package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
)

// ThemeRepository handles theme database operations.
type ThemeRepository struct {
	pool *pgxpool.Pool
}

// List returns all themes with their nested tier songs.
func (r *ThemeRepository) List(ctx context.Context) ([]funnel.Theme, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc FROM themes ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	defer rows.Close()

	var themes []funnel.Theme
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning theme: %w", err)
		}
		var t funnel.Theme
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, fmt.Errorf("decoding theme: %w", err)
		}
		themes = append(themes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing themes: %w", err)
	}
	return themes, nil
}

// Get returns one theme.
func (r *ThemeRepository) Get(ctx context.Context, id string) (funnel.Theme, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM themes WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return funnel.Theme{}, fmt.Errorf("%w: theme %s", ErrNotFound, id)
	}
	if err != nil {
		return funnel.Theme{}, fmt.Errorf("getting theme: %w", err)
	}

	var t funnel.Theme
	if err := json.Unmarshal(doc, &t); err != nil {
		return funnel.Theme{}, fmt.Errorf("decoding theme: %w", err)
	}
	return t, nil
}

// Create inserts a new theme. An existing ID is upserted: creates are
// replayed by the client after failed pushes, and replays must be harmless.
func (r *ThemeRepository) Create(ctx context.Context, t funnel.Theme) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding theme: %w", err)
	}

	query := `
		INSERT INTO themes (id, doc, version, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			doc = EXCLUDED.doc,
			version = EXCLUDED.version,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, t.ID, doc, t.Version); err != nil {
		return fmt.Errorf("creating theme: %w", err)
	}
	return nil
}

// Update replaces a theme wholesale, nested songs included. The stored
// version must not be ahead of the payload's; when it is, another device
// pushed first and ErrConflict is returned so the caller can surface it
// rather than silently overwrite.
func (r *ThemeRepository) Update(ctx context.Context, t funnel.Theme) error {
	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding theme: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning update: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored int
	err = tx.QueryRow(ctx, `SELECT version FROM themes WHERE id = $1 FOR UPDATE`, t.ID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: theme %s", ErrNotFound, t.ID)
	}
	if err != nil {
		return fmt.Errorf("reading stored version: %w", err)
	}
	if stored > t.Version {
		return fmt.Errorf("%w: stored version %d ahead of %d", ErrConflict, stored, t.Version)
	}

	query := `UPDATE themes SET doc = $2, version = $3, updated_at = NOW() WHERE id = $1`
	if _, err := tx.Exec(ctx, query, t.ID, doc, t.Version); err != nil {
		return fmt.Errorf("updating theme: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}

// Delete removes a theme and its sessions in one transaction.
func (r *ThemeRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM themes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting theme: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: theme %s", ErrNotFound, id)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE theme_id = $1`, id); err != nil {
		return fmt.Errorf("deleting theme sessions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM competitor_notes WHERE theme_id = $1`, id); err != nil {
		return fmt.Errorf("deleting competitor notes: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}
