// Package db provides PostgreSQL persistence for the remote store. Each
// theme is one row carrying its nested tier songs as a JSON document, so a
// logical update (theme plus songs) is atomic by construction; anything that
// touches several rows runs in a single transaction.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an update carries an older version than
	// the stored row: another device pushed first.
	ErrConflict = errors.New("version conflict")
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New creates a new database connection pool.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the underlying connection pool for advanced operations.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Themes returns a ThemeRepository.
func (db *DB) Themes() *ThemeRepository {
	return &ThemeRepository{pool: db.pool}
}

// Sessions returns a SessionRepository.
func (db *DB) Sessions() *SessionRepository {
	return &SessionRepository{pool: db.pool}
}

// SavedSongs returns a SavedSongRepository.
func (db *DB) SavedSongs() *SavedSongRepository {
	return &SavedSongRepository{pool: db.pool}
}

// schema is applied on startup. Documents live in JSONB; the theme version
// is duplicated out of the document into a column so the conflict check
// stays in SQL.
const schema = `
CREATE TABLE IF NOT EXISTS themes (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	version    INT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	theme_id   TEXT NOT NULL,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS sessions_theme_id_idx ON sessions (theme_id);

CREATE TABLE IF NOT EXISTS saved_songs (
	id  TEXT PRIMARY KEY,
	doc JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
	id  TEXT PRIMARY KEY,
	doc JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS competitor_notes (
	theme_id TEXT PRIMARY KEY,
	doc      JSONB NOT NULL
);
`

// EnsureSchema creates the tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// HasData reports whether any user data exists. Drives the client's
// migration decision.
func (db *DB) HasData(ctx context.Context) (bool, error) {
	var has bool
	query := `
		SELECT EXISTS (SELECT 1 FROM themes)
		    OR EXISTS (SELECT 1 FROM sessions)
		    OR EXISTS (SELECT 1 FROM saved_songs)
	`
	if err := db.pool.QueryRow(ctx, query).Scan(&has); err != nil {
		return false, fmt.Errorf("checking for data: %w", err)
	}
	return has, nil
}
