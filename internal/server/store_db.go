package server

import (
	"context"

	"github.com/calebmorris/go-song-funnel/internal/api"
	"github.com/calebmorris/go-song-funnel/internal/db"
	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
)

// dbStore adapts *db.DB to the Store interface.
type dbStore struct {
	db *db.DB
}

// NewDBStore wraps a database handle as the server's Store.
func NewDBStore(database *db.DB) Store {
	return &dbStore{db: database}
}

func (s *dbStore) HasData(ctx context.Context) (bool, error) {
	return s.db.HasData(ctx)
}

func (s *dbStore) ListThemes(ctx context.Context) ([]funnel.Theme, error) {
	return s.db.Themes().List(ctx)
}

func (s *dbStore) GetTheme(ctx context.Context, id string) (funnel.Theme, error) {
	return s.db.Themes().Get(ctx, id)
}

func (s *dbStore) CreateTheme(ctx context.Context, t funnel.Theme) error {
	return s.db.Themes().Create(ctx, t)
}

func (s *dbStore) UpdateTheme(ctx context.Context, t funnel.Theme) error {
	return s.db.Themes().Update(ctx, t)
}

func (s *dbStore) DeleteTheme(ctx context.Context, id string) error {
	return s.db.Themes().Delete(ctx, id)
}

func (s *dbStore) ListSessions(ctx context.Context) ([]session.Session, error) {
	return s.db.Sessions().List(ctx)
}

func (s *dbStore) UpsertSession(ctx context.Context, sess session.Session) error {
	return s.db.Sessions().Upsert(ctx, sess)
}

func (s *dbStore) DeleteSession(ctx context.Context, id string) error {
	return s.db.Sessions().Delete(ctx, id)
}

func (s *dbStore) ListSavedSongs(ctx context.Context) ([]funnel.Song, error) {
	return s.db.SavedSongs().List(ctx)
}

func (s *dbStore) ReplaceSavedSongs(ctx context.Context, songs []funnel.Song) error {
	return s.db.SavedSongs().ReplaceAll(ctx, songs)
}

func (s *dbStore) ImportAll(ctx context.Context, payload api.MigratePayload) error {
	return s.db.ImportAll(ctx, payload)
}
