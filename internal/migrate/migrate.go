// Package migrate performs the one-time bulk transfer of pre-existing
// local-only data into an empty remote store. The server upserts on
// conflicting identifiers, so a replayed import creates no duplicates and a
// failed one is safely retryable from scratch.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/calebmorris/go-song-funnel/internal/api"
	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
	"github.com/calebmorris/go-song-funnel/internal/store"
)

// ErrMigrationFailed is returned when the import could not complete after
// retries. Local data is left untouched.
var ErrMigrationFailed = errors.New("migration failed")

// Remote is the slice of the API the importer needs. *api.Client satisfies it.
type Remote interface {
	HasData(ctx context.Context) (bool, error)
	Migrate(ctx context.Context, payload api.MigratePayload) error
}

// Importer moves the local blob into the remote store.
type Importer struct {
	remote     Remote
	cache      *store.Cache
	logger     *log.Logger
	maxElapsed time.Duration
	newID      func() string
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Importer) {
		i.logger = l
	}
}

// WithMaxElapsed caps how long transient failures are retried before the
// import gives up.
func WithMaxElapsed(d time.Duration) Option {
	return func(i *Importer) {
		i.maxElapsed = d
	}
}

// WithIDGenerator overrides server-scheme ID generation, for tests.
func WithIDGenerator(fn func() string) Option {
	return func(i *Importer) {
		i.newID = fn
	}
}

// New creates an Importer reading from cache and writing through remote.
func New(remote Remote, cache *store.Cache, opts ...Option) *Importer {
	i := &Importer{
		remote:     remote,
		cache:      cache,
		logger:     log.Default(),
		maxElapsed: 30 * time.Second,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Needed reports whether migration should be offered: the remote store is
// empty while a local blob exists.
func (i *Importer) Needed(ctx context.Context) (bool, error) {
	local, err := i.cache.Load()
	if err != nil {
		return false, fmt.Errorf("loading local state: %w", err)
	}
	if local == nil {
		return false, nil
	}

	hasData, err := i.remote.HasData(ctx)
	if err != nil {
		return false, fmt.Errorf("checking remote data: %w", err)
	}
	return !hasData, nil
}

// Run imports the local blob into the remote store. Entities missing an
// identifier in the server's scheme get one generated. On success the local
// blob is deleted and the remote store becomes the source of truth; the
// migrated state is returned so the caller can seed the store and the
// reconciler baseline. On failure the blob is untouched and Run can simply
// be called again.
func (i *Importer) Run(ctx context.Context) (*store.State, error) {
	local, err := i.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading local state: %w", err)
	}
	if local == nil {
		return nil, fmt.Errorf("%w: no local state to migrate", ErrMigrationFailed)
	}

	state := i.assignIDs(local.Clone())
	payload := api.MigratePayload{
		Themes:      state.Themes,
		Sessions:    state.Sessions,
		UserProfile: state.Profile,
		SavedSongs:  state.SavedSongs,
		Settings:    state.Settings,
		Competitors: state.Competitors,
	}
	if payload.Themes == nil {
		payload.Themes = []funnel.Theme{}
	}
	if payload.Sessions == nil {
		payload.Sessions = []session.Session{}
	}
	if payload.SavedSongs == nil {
		payload.SavedSongs = []funnel.Song{}
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = i.maxElapsed

	attempt := 0
	push := func() error {
		attempt++
		err := i.remote.Migrate(ctx, payload)
		if err == nil {
			return nil
		}
		if errors.Is(err, api.ErrUnavailable) || errors.Is(err, api.ErrServer) {
			i.logger.Printf("migrate: attempt %d failed, will retry: %v", attempt, err)
			return err // transient, retry
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(push, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	// Only now is the local blob redundant.
	if err := i.cache.Delete(); err != nil {
		return nil, fmt.Errorf("clearing local state after migration: %w", err)
	}
	i.logger.Printf("migrate: imported %d themes, %d sessions, %d saved songs",
		len(state.Themes), len(state.Sessions), len(state.SavedSongs))
	return &state, nil
}

// assignIDs fills in UUIDs for entities the local store created without one.
func (i *Importer) assignIDs(state store.State) store.State {
	for idx := range state.Themes {
		if state.Themes[idx].ID == "" {
			state.Themes[idx].ID = i.newID()
		}
	}
	for idx := range state.Sessions {
		if state.Sessions[idx].ID == "" {
			state.Sessions[idx].ID = i.newID()
		}
	}
	for idx := range state.SavedSongs {
		if state.SavedSongs[idx].ID == "" {
			state.SavedSongs[idx].ID = i.newID()
		}
	}
	if state.Profile != nil && state.Profile.ID == "" {
		state.Profile.ID = i.newID()
	}
	return state
}
