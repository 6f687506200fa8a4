// Package store holds all local application state: themes, sessions, saved
// songs, profile and settings. It is a single-writer container; every
// mutation runs to completion under one lock before the next is admitted,
// and subscribers observe committed snapshots only, never a mid-mutation
// view. The store itself contains no domain logic: funnel and session
// operations are applied through the pure functions in those packages.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
)

// Profile is the user's profile as kept locally and mirrored remotely.
type Profile struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// CompetitorNote records observations about another competitor's picks for a
// theme. Carried through migration; not part of the funnel itself.
type CompetitorNote struct {
	ThemeID   string        `json:"themeId"`
	Notes     string        `json:"notes,omitempty"`
	Songs     []funnel.Song `json:"songs,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// State is the full local dataset. Collection fields are replaced wholesale
// on every mutation, so two snapshots never share backing arrays.
type State struct {
	Themes      []funnel.Theme    `json:"themes"`
	Sessions    []session.Session `json:"sessions"`
	SavedSongs  []funnel.Song     `json:"savedSongs"`
	Profile     *Profile          `json:"userProfile,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
	Competitors []CompetitorNote  `json:"competitorAnalysis,omitempty"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := s
	if s.Themes != nil {
		out.Themes = make([]funnel.Theme, len(s.Themes))
		for i, t := range s.Themes {
			out.Themes[i] = t.Clone()
		}
	}
	if s.Sessions != nil {
		out.Sessions = make([]session.Session, len(s.Sessions))
		for i, sess := range s.Sessions {
			out.Sessions[i] = sess.Clone()
		}
	}
	out.SavedSongs = append([]funnel.Song(nil), s.SavedSongs...)
	if s.Profile != nil {
		p := *s.Profile
		out.Profile = &p
	}
	if s.Settings != nil {
		out.Settings = make(map[string]string, len(s.Settings))
		for k, v := range s.Settings {
			out.Settings[k] = v
		}
	}
	out.Competitors = append([]CompetitorNote(nil), s.Competitors...)
	return out
}

// Subscriber receives a committed snapshot after each mutation.
type Subscriber func(State)

// Store is the process-wide state container.
type Store struct {
	mu    sync.Mutex
	state State
	cfg   funnel.Config

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int
}

// New creates an empty store using the given funnel configuration.
func New(cfg funnel.Config) *Store {
	return &Store{
		state: State{Settings: map[string]string{}},
		cfg:   cfg,
		subs:  map[int]Subscriber{},
	}
}

// Config returns the funnel configuration the store applies.
func (st *Store) Config() funnel.Config {
	return st.cfg
}

// Snapshot returns a deep copy of the current state.
func (st *Store) Snapshot() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state.Clone()
}

// Subscribe registers a subscriber and returns a function that removes it.
// Subscribers run synchronously after each committed mutation, so they must
// be quick; anything slow belongs on the subscriber's own goroutine.
func (st *Store) Subscribe(fn Subscriber) (unsubscribe func()) {
	st.subMu.Lock()
	defer st.subMu.Unlock()
	id := st.nextSub
	st.nextSub++
	st.subs[id] = fn
	return func() {
		st.subMu.Lock()
		defer st.subMu.Unlock()
		delete(st.subs, id)
	}
}

func (st *Store) notify(snapshot State) {
	st.subMu.Lock()
	subs := make([]Subscriber, 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.subMu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

// Replace swaps in a whole new state, used for hydration from the remote
// store. Versions arrive as-is; no bumping.
func (st *Store) Replace(state State) {
	st.mu.Lock()
	st.state = state.Clone()
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
}

// PutTheme inserts a new theme or overwrites one with the same ID. A theme
// arriving without a version starts at 1, so even its first push carries a
// value the remote conflict gate can compare.
func (st *Store) PutTheme(t funnel.Theme) {
	st.mu.Lock()
	if t.Version == 0 {
		t.Version = 1
	}
	t = funnel.WithPhase(st.cfg, t)
	themes := make([]funnel.Theme, 0, len(st.state.Themes)+1)
	replaced := false
	for _, existing := range st.state.Themes {
		if existing.ID == t.ID {
			themes = append(themes, t.Clone())
			replaced = true
		} else {
			themes = append(themes, existing)
		}
	}
	if !replaced {
		themes = append(themes, t.Clone())
	}
	st.state.Themes = themes
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
}

// UpdateTheme applies a pure mutation to the named theme. On success the
// result's version is bumped, its phase refreshed, and the themes collection
// reference replaced. On error nothing changes and the error is returned
// unwrapped, so callers can errors.Is against the funnel sentinels.
func (st *Store) UpdateTheme(id string, mutate func(funnel.Theme) (funnel.Theme, error)) error {
	st.mu.Lock()
	idx := -1
	for i, t := range st.state.Themes {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		st.mu.Unlock()
		return fmt.Errorf("%w: theme %s", ErrNotFound, id)
	}

	updated, err := mutate(st.state.Themes[idx].Clone())
	if err != nil {
		st.mu.Unlock()
		return err
	}
	updated.Version = st.state.Themes[idx].Version + 1
	updated = funnel.WithPhase(st.cfg, updated)

	themes := make([]funnel.Theme, len(st.state.Themes))
	copy(themes, st.state.Themes)
	themes[idx] = updated
	st.state.Themes = themes

	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
	return nil
}

// DeleteTheme removes a theme and its sessions.
func (st *Store) DeleteTheme(id string) error {
	st.mu.Lock()
	themes := make([]funnel.Theme, 0, len(st.state.Themes))
	found := false
	for _, t := range st.state.Themes {
		if t.ID == id {
			found = true
			continue
		}
		themes = append(themes, t)
	}
	if !found {
		st.mu.Unlock()
		return fmt.Errorf("%w: theme %s", ErrNotFound, id)
	}
	st.state.Themes = themes

	sessions := make([]session.Session, 0, len(st.state.Sessions))
	for _, s := range st.state.Sessions {
		if s.ThemeID != id {
			sessions = append(sessions, s)
		}
	}
	st.state.Sessions = sessions

	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
	return nil
}

// Theme returns a copy of the named theme.
func (st *Store) Theme(id string) (funnel.Theme, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, t := range st.state.Themes {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return funnel.Theme{}, fmt.Errorf("%w: theme %s", ErrNotFound, id)
}

// PutSession inserts a new session or overwrites one with the same ID.
func (st *Store) PutSession(s session.Session) {
	st.mu.Lock()
	sessions := make([]session.Session, 0, len(st.state.Sessions)+1)
	replaced := false
	for _, existing := range st.state.Sessions {
		if existing.ID == s.ID {
			sessions = append(sessions, s.Clone())
			replaced = true
		} else {
			sessions = append(sessions, existing)
		}
	}
	if !replaced {
		sessions = append(sessions, s.Clone())
	}
	st.state.Sessions = sessions
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
}

// UpdateSession applies a pure mutation to the named session.
func (st *Store) UpdateSession(id string, mutate func(session.Session) (session.Session, error)) error {
	st.mu.Lock()
	idx := -1
	for i, s := range st.state.Sessions {
		if s.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		st.mu.Unlock()
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}

	updated, err := mutate(st.state.Sessions[idx].Clone())
	if err != nil {
		st.mu.Unlock()
		return err
	}

	sessions := make([]session.Session, len(st.state.Sessions))
	copy(sessions, st.state.Sessions)
	sessions[idx] = updated
	st.state.Sessions = sessions

	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
	return nil
}

// DeleteSession removes a session.
func (st *Store) DeleteSession(id string) error {
	st.mu.Lock()
	sessions := make([]session.Session, 0, len(st.state.Sessions))
	found := false
	for _, s := range st.state.Sessions {
		if s.ID == id {
			found = true
			continue
		}
		sessions = append(sessions, s)
	}
	if !found {
		st.mu.Unlock()
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	st.state.Sessions = sessions
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
	return nil
}

// SaveSong adds a song to the saved-songs list, replacing any entry with the
// same ID.
func (st *Store) SaveSong(s funnel.Song) {
	st.mu.Lock()
	songs := make([]funnel.Song, 0, len(st.state.SavedSongs)+1)
	replaced := false
	for _, existing := range st.state.SavedSongs {
		if existing.ID == s.ID {
			songs = append(songs, s)
			replaced = true
		} else {
			songs = append(songs, existing)
		}
	}
	if !replaced {
		songs = append(songs, s)
	}
	st.state.SavedSongs = songs
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
}

// UnsaveSong removes a song from the saved-songs list. Absent IDs are a
// no-op.
func (st *Store) UnsaveSong(id string) {
	st.mu.Lock()
	songs := make([]funnel.Song, 0, len(st.state.SavedSongs))
	for _, s := range st.state.SavedSongs {
		if s.ID != id {
			songs = append(songs, s)
		}
	}
	st.state.SavedSongs = songs
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
}

// SetProfile stores the user profile.
func (st *Store) SetProfile(p Profile) {
	st.mu.Lock()
	st.state.Profile = &p
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
}

// SetSetting stores one settings key.
func (st *Store) SetSetting(key, value string) {
	st.mu.Lock()
	if st.state.Settings == nil {
		st.state.Settings = map[string]string{}
	}
	settings := make(map[string]string, len(st.state.Settings)+1)
	for k, v := range st.state.Settings {
		settings[k] = v
	}
	settings[key] = value
	st.state.Settings = settings
	snapshot := st.state.Clone()
	st.mu.Unlock()
	st.notify(snapshot)
}
