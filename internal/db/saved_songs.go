package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
)

// SavedSongRepository handles the saved-songs library. The library syncs as
// one unit, so writes replace it wholesale inside a transaction.
type SavedSongRepository struct {
	pool *pgxpool.Pool
}

// List returns all saved songs.
func (r *SavedSongRepository) List(ctx context.Context) ([]funnel.Song, error) {
	rows, err := r.pool.Query(ctx, `SELECT doc FROM saved_songs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing saved songs: %w", err)
	}
	defer rows.Close()

	var songs []funnel.Song
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scanning saved song: %w", err)
		}
		var s funnel.Song
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, fmt.Errorf("decoding saved song: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing saved songs: %w", err)
	}
	return songs, nil
}

// ReplaceAll swaps the whole library for the given set in one transaction.
func (r *SavedSongRepository) ReplaceAll(ctx context.Context, songs []funnel.Song) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM saved_songs`); err != nil {
		return fmt.Errorf("clearing saved songs: %w", err)
	}
	for _, s := range songs {
		doc, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encoding saved song: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO saved_songs (id, doc) VALUES ($1, $2)`, s.ID, doc); err != nil {
			return fmt.Errorf("inserting saved song: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing replace: %w", err)
	}
	return nil
}
