package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/calebmorris/go-song-funnel/internal/api"
)

// ImportAll performs the migration bulk import in a single transaction.
// Every record is an "insert, or update on conflicting identifier" upsert,
// so replaying the same payload converges on the same rows instead of
// duplicating them.
func (db *DB) ImportAll(ctx context.Context, payload api.MigratePayload) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning import: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range payload.Themes {
		doc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encoding theme %s: %w", t.ID, err)
		}
		query := `
			INSERT INTO themes (id, doc, version, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (id) DO UPDATE SET
				doc = EXCLUDED.doc,
				version = EXCLUDED.version,
				updated_at = NOW()
		`
		if _, err := tx.Exec(ctx, query, t.ID, doc, t.Version); err != nil {
			return fmt.Errorf("importing theme %s: %w", t.ID, err)
		}
	}

	for _, s := range payload.Sessions {
		doc, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding session %s: %w", s.ID, err)
		}
		query := `
			INSERT INTO sessions (id, theme_id, doc, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (id) DO UPDATE SET
				theme_id = EXCLUDED.theme_id,
				doc = EXCLUDED.doc,
				updated_at = NOW()
		`
		if _, err := tx.Exec(ctx, query, s.ID, s.ThemeID, doc); err != nil {
			return fmt.Errorf("importing session %s: %w", s.ID, err)
		}
	}

	for _, s := range payload.SavedSongs {
		doc, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding saved song %s: %w", s.ID, err)
		}
		query := `
			INSERT INTO saved_songs (id, doc)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
		`
		if _, err := tx.Exec(ctx, query, s.ID, doc); err != nil {
			return fmt.Errorf("importing saved song %s: %w", s.ID, err)
		}
	}

	if payload.UserProfile != nil {
		doc, err := json.Marshal(payload.UserProfile)
		if err != nil {
			return fmt.Errorf("encoding profile: %w", err)
		}
		query := `
			INSERT INTO profiles (id, doc)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
		`
		if _, err := tx.Exec(ctx, query, payload.UserProfile.ID, doc); err != nil {
			return fmt.Errorf("importing profile: %w", err)
		}
	}

	for key, value := range payload.Settings {
		query := `
			INSERT INTO settings (key, value)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`
		if _, err := tx.Exec(ctx, query, key, value); err != nil {
			return fmt.Errorf("importing setting %s: %w", key, err)
		}
	}

	for _, note := range payload.Competitors {
		doc, err := json.Marshal(note)
		if err != nil {
			return fmt.Errorf("encoding competitor note: %w", err)
		}
		query := `
			INSERT INTO competitor_notes (theme_id, doc)
			VALUES ($1, $2)
			ON CONFLICT (theme_id) DO UPDATE SET doc = EXCLUDED.doc
		`
		if _, err := tx.Exec(ctx, query, note.ThemeID, doc); err != nil {
			return fmt.Errorf("importing competitor note for %s: %w", note.ThemeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}
