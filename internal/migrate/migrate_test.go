package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmorris/go-song-funnel/internal/api"
	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
	"github.com/calebmorris/go-song-funnel/internal/store"
)

// fakeRemote implements Remote with idempotent upsert semantics, keyed by ID
// like the real server.
type fakeRemote struct {
	mu       sync.Mutex
	themes   map[string]funnel.Theme
	sessions map[string]session.Session
	saved    map[string]funnel.Song

	migrateCalls int
	failFirstN   int
	permanentErr error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		themes:   map[string]funnel.Theme{},
		sessions: map[string]session.Session{},
		saved:    map[string]funnel.Song{},
	}
}

func (f *fakeRemote) HasData(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.themes)+len(f.sessions)+len(f.saved) > 0, nil
}

func (f *fakeRemote) Migrate(_ context.Context, payload api.MigratePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.migrateCalls++
	if f.permanentErr != nil {
		return f.permanentErr
	}
	if f.migrateCalls <= f.failFirstN {
		return fmt.Errorf("%w: flaky", api.ErrUnavailable)
	}
	for _, t := range payload.Themes {
		f.themes[t.ID] = t
	}
	for _, s := range payload.Sessions {
		f.sessions[s.ID] = s
	}
	for _, s := range payload.SavedSongs {
		f.saved[s.ID] = s
	}
	return nil
}

func seedCache(t *testing.T) *store.Cache {
	t.Helper()
	cache := store.NewCache(filepath.Join(t.TempDir(), "state.json"))

	themes := make([]funnel.Theme, 3)
	for i := range themes {
		themes[i] = funnel.NewTheme(fmt.Sprintf("t%d", i+1), fmt.Sprintf("theme %d", i+1), time.Now().UTC())
	}
	themes[0].Candidates = []funnel.Song{{ID: "s1", Title: "Thunder", Artist: "Imagine Dragons"}}

	require.NoError(t, cache.Save(store.State{
		Themes:     themes,
		Sessions:   []session.Session{session.New("sess-1", "t1", time.Now().UTC())},
		SavedSongs: []funnel.Song{{ID: "sv1", Title: "Dreams", Artist: "Fleetwood Mac"}},
	}))
	return cache
}

func newImporter(remote Remote, cache *store.Cache, opts ...Option) *Importer {
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	return New(remote, cache, opts...)
}

func TestNeeded(t *testing.T) {
	ctx := context.Background()

	t.Run("local data and empty remote", func(t *testing.T) {
		imp := newImporter(newFakeRemote(), seedCache(t))
		needed, err := imp.Needed(ctx)
		require.NoError(t, err)
		assert.True(t, needed)
	})

	t.Run("no local blob", func(t *testing.T) {
		cache := store.NewCache(filepath.Join(t.TempDir(), "state.json"))
		imp := newImporter(newFakeRemote(), cache)
		needed, err := imp.Needed(ctx)
		require.NoError(t, err)
		assert.False(t, needed)
	})

	t.Run("remote already has data", func(t *testing.T) {
		remote := newFakeRemote()
		remote.themes["existing"] = funnel.Theme{ID: "existing"}
		imp := newImporter(remote, seedCache(t))
		needed, err := imp.Needed(ctx)
		require.NoError(t, err)
		assert.False(t, needed)
	})
}

func TestRunMovesEverythingAndClearsTheBlob(t *testing.T) {
	remote := newFakeRemote()
	cache := seedCache(t)
	imp := newImporter(remote, cache)

	state, err := imp.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)

	assert.Len(t, remote.themes, 3)
	assert.Len(t, remote.sessions, 1)
	assert.Len(t, remote.saved, 1)
	assert.Len(t, remote.themes["t1"].Candidates, 1, "nested songs carried")

	// Local blob cleared only after success.
	loaded, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRunIsIdempotent(t *testing.T) {
	remote := newFakeRemote()

	// Two separate imports of the same dataset (e.g. a crash between the
	// server commit and the local delete, then a retry from scratch).
	for i := 0; i < 2; i++ {
		cache := seedCache(t)
		imp := newImporter(remote, cache)
		_, err := imp.Run(context.Background())
		require.NoError(t, err)
	}

	assert.Len(t, remote.themes, 3, "replayed import must not duplicate themes")
	assert.Len(t, remote.sessions, 1)
	assert.Len(t, remote.saved, 1)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	remote := newFakeRemote()
	remote.failFirstN = 2
	cache := seedCache(t)
	imp := newImporter(remote, cache, WithMaxElapsed(5*time.Second))

	_, err := imp.Run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, remote.migrateCalls, 3)
	assert.Len(t, remote.themes, 3)
}

func TestRunFailureLeavesLocalDataUntouched(t *testing.T) {
	remote := newFakeRemote()
	remote.permanentErr = errors.New("schema rejected")
	cache := seedCache(t)
	imp := newImporter(remote, cache)

	_, err := imp.Run(context.Background())
	assert.ErrorIs(t, err, ErrMigrationFailed)

	loaded, loadErr := cache.Load()
	require.NoError(t, loadErr)
	require.NotNil(t, loaded, "local blob must survive a failed migration")
	assert.Len(t, loaded.Themes, 3)
}

func TestAssignIDs(t *testing.T) {
	remote := newFakeRemote()
	cache := store.NewCache(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, cache.Save(store.State{
		Themes: []funnel.Theme{{RawText: "no id yet"}},
	}))

	n := 0
	imp := newImporter(remote, cache, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))

	state, err := imp.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, state.Themes, 1)
	assert.Equal(t, "gen-1", state.Themes[0].ID)
	assert.Contains(t, remote.themes, "gen-1")
}
