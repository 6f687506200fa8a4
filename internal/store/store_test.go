package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
)

func TestUpdateTheme(t *testing.T) {
	cfg := funnel.DefaultConfig()
	st := New(cfg)
	st.PutTheme(funnel.NewTheme("t1", "songs about weather", time.Now()))

	err := st.UpdateTheme("t1", func(th funnel.Theme) (funnel.Theme, error) {
		return funnel.AddCandidate(cfg, th, funnel.Song{ID: "s1", Title: "Thunder", Artist: "Imagine Dragons"})
	})
	require.NoError(t, err)

	got, err := st.Theme("t1")
	require.NoError(t, err)
	assert.Len(t, got.Candidates, 1)
	assert.Equal(t, 2, got.Version, "put is version 1, update bumps to 2")
	assert.Equal(t, funnel.PhaseBrainstorm, got.Phase)
}

func TestPutThemeSeedsVersion(t *testing.T) {
	st := New(funnel.DefaultConfig())

	st.PutTheme(funnel.NewTheme("t1", "weather", time.Now()))
	got, err := st.Theme("t1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version, "new theme must not enter at version 0")

	// A theme that already carries a version keeps it.
	hydrated := funnel.NewTheme("t2", "driving songs", time.Now())
	hydrated.Version = 7
	st.PutTheme(hydrated)
	got, err = st.Theme("t2")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Version)
}

func TestUpdateThemeErrorLeavesStateUntouched(t *testing.T) {
	cfg := funnel.DefaultConfig()
	st := New(cfg)
	theme := funnel.NewTheme("t1", "weather", time.Now())
	theme.Candidates = []funnel.Song{{ID: "s1", Title: "Thunder", Artist: "Imagine Dragons"}}
	st.PutTheme(theme)
	before, _ := st.Theme("t1")

	err := st.UpdateTheme("t1", func(th funnel.Theme) (funnel.Theme, error) {
		return funnel.AddCandidate(cfg, th, funnel.Song{ID: "s2", Title: "Thunder", Artist: "Imagine Dragons"})
	})
	assert.ErrorIs(t, err, funnel.ErrDuplicate)

	after, _ := st.Theme("t1")
	assert.Equal(t, before.Version, after.Version, "failed update must not bump version")
	assert.Len(t, after.Candidates, 1)
}

func TestSubscribersSeeCommittedSnapshots(t *testing.T) {
	cfg := funnel.DefaultConfig()
	st := New(cfg)

	var notifications []State
	unsubscribe := st.Subscribe(func(s State) {
		notifications = append(notifications, s)
	})

	st.PutTheme(funnel.NewTheme("t1", "weather", time.Now()))
	require.Len(t, notifications, 1)
	assert.Len(t, notifications[0].Themes, 1)

	// Snapshots are isolated: mutating a notification must not leak back.
	notifications[0].Themes[0].RawText = "tampered"
	got, err := st.Theme("t1")
	require.NoError(t, err)
	assert.Equal(t, "weather", got.RawText)

	unsubscribe()
	st.PutTheme(funnel.NewTheme("t2", "driving songs", time.Now()))
	assert.Len(t, notifications, 1, "unsubscribed listener still notified")
}

func TestDeleteThemeRemovesItsSessions(t *testing.T) {
	st := New(funnel.DefaultConfig())
	st.PutTheme(funnel.NewTheme("t1", "weather", time.Now()))
	st.PutSession(session.New("sess-1", "t1", time.Now()))
	st.PutSession(session.New("sess-2", "t2", time.Now()))

	require.NoError(t, st.DeleteTheme("t1"))

	snap := st.Snapshot()
	assert.Empty(t, snap.Themes)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, "sess-2", snap.Sessions[0].ID)

	assert.True(t, errors.Is(st.DeleteTheme("t1"), ErrNotFound))
}

func TestSavedSongs(t *testing.T) {
	st := New(funnel.DefaultConfig())
	st.SaveSong(funnel.Song{ID: "s1", Title: "Thunder", Artist: "Imagine Dragons"})
	st.SaveSong(funnel.Song{ID: "s1", Title: "Thunder", Artist: "Imagine Dragons", IsFavorite: true})

	snap := st.Snapshot()
	require.Len(t, snap.SavedSongs, 1, "same ID replaces, not appends")
	assert.True(t, snap.SavedSongs[0].IsFavorite)

	st.UnsaveSong("s1")
	assert.Empty(t, st.Snapshot().SavedSongs)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := NewCache(filepath.Join(t.TempDir(), "state.json"))

	// Missing file loads as nil without error.
	got, err := cache.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	theme := funnel.NewTheme("t1", "weather", time.Now().UTC())
	theme.Candidates = []funnel.Song{{ID: "s1", Title: "Thunder", Artist: "Imagine Dragons"}}
	state := State{
		Themes:   []funnel.Theme{theme},
		Sessions: []session.Session{session.New("sess-1", "t1", time.Now().UTC())},
		Settings: map[string]string{"model": "standard"},
	}
	require.NoError(t, cache.Save(state))

	got, err = cache.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Themes, 1)
	assert.Equal(t, "t1", got.Themes[0].ID)
	assert.Len(t, got.Themes[0].Candidates, 1)
	assert.Equal(t, "standard", got.Settings["model"])

	require.NoError(t, cache.Delete())
	got, err = cache.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting twice is fine.
	require.NoError(t, cache.Delete())
}
