// Package sync keeps the local store and the remote store converged. It
// watches the store for mutations, diffs the committed state against the
// last snapshot it successfully pushed, and issues create/update/delete
// calls against the remote API, debounced so rapid edits coalesce into one
// push carrying the final state.
//
// Failure handling is at-least-once: a failed push leaves the snapshot where
// it was, so the next cycle retries the same diff extended by whatever
// happened meanwhile. Idempotent upserts on the server make a stale
// re-delivery harmless.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
	"github.com/calebmorris/go-song-funnel/internal/store"
)

// DefaultWindow is the default debounce window between a mutation and the
// push it triggers.
const DefaultWindow = 1 * time.Second

// savedSongsKey identifies the saved-songs library, which syncs as one unit.
const savedSongsKey = "saved-songs"

// Status is an entity's position in the sync lifecycle:
// Clean → Dirty → Syncing → Clean, or → SyncFailed → Dirty on retry.
type Status int

// Entity sync statuses.
const (
	StatusClean Status = iota
	StatusDirty
	StatusSyncing
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusDirty:
		return "dirty"
	case StatusSyncing:
		return "syncing"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// RemoteAPI is the slice of the remote store the reconciler needs.
// *api.Client satisfies it.
type RemoteAPI interface {
	Health(ctx context.Context) error
	CreateTheme(ctx context.Context, t funnel.Theme) error
	UpdateTheme(ctx context.Context, t funnel.Theme) error
	DeleteTheme(ctx context.Context, id string) error
	CreateSession(ctx context.Context, s session.Session) error
	UpdateSession(ctx context.Context, s session.Session) error
	DeleteSession(ctx context.Context, id string) error
	PutSavedSongs(ctx context.Context, songs []funnel.Song) error
}

// Service is the reconciler.
type Service struct {
	api    RemoteAPI
	store  *store.Store
	window time.Duration
	sched  Scheduler
	logger *log.Logger

	mu sync.Mutex
	// Last successfully pushed state, keyed per entity. This is private
	// bookkeeping for diffing only; it is never handed to the state machine.
	snapThemes   map[string]funnel.Theme
	snapSessions map[string]session.Session
	snapSaved    []funnel.Song
	savedSynced  bool // whether snapSaved has ever been pushed

	status      map[string]Status
	lastErr     map[string]error
	cancelTimer func()
	unsubscribe func()
}

// Option configures a Service.
type Option func(*Service)

// WithWindow sets the debounce window.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		s.window = d
	}
}

// WithScheduler replaces the wall-clock scheduler, for tests.
func WithScheduler(sched Scheduler) Option {
	return func(s *Service) {
		s.sched = sched
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithBaseline seeds the last-pushed snapshot from a state already known to
// match the remote store (hydration or a completed migration). Without it
// every local entity is pushed as a create on the first cycle.
func WithBaseline(state store.State) Option {
	return func(s *Service) {
		s.loadSnapshot(state)
		s.savedSynced = true
	}
}

// New creates a reconciler for the given store and remote API.
func New(st *store.Store, remote RemoteAPI, opts ...Option) *Service {
	s := &Service{
		api:          remote,
		store:        st,
		window:       DefaultWindow,
		sched:        NewTimerScheduler(),
		logger:       log.Default(),
		snapThemes:   map[string]funnel.Theme{},
		snapSessions: map[string]session.Session{},
		status:       map[string]Status{},
		lastErr:      map[string]error{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) loadSnapshot(state store.State) {
	s.snapThemes = make(map[string]funnel.Theme, len(state.Themes))
	for _, t := range state.Themes {
		s.snapThemes[t.ID] = t.Clone()
	}
	s.snapSessions = make(map[string]session.Session, len(state.Sessions))
	for _, sess := range state.Sessions {
		s.snapSessions[sess.ID] = sess.Clone()
	}
	s.snapSaved = append([]funnel.Song(nil), state.SavedSongs...)
}

// Start subscribes to the store. Every committed mutation restarts the
// debounce timer; when it fires, one push cycle runs with the then-current
// state.
func (s *Service) Start() {
	s.unsubscribe = s.store.Subscribe(func(state store.State) {
		s.onChange(state)
	})
}

// Stop unsubscribes and cancels any pending debounce timer. An in-flight
// push is not interrupted.
func (s *Service) Stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Lock()
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
	s.mu.Unlock()
}

func (s *Service) onChange(state store.State) {
	s.mu.Lock()
	// Mark what this snapshot dirties, so status reads are accurate during
	// the debounce window.
	for _, op := range s.diffLocked(state) {
		s.status[op.key] = StatusDirty
	}
	if s.cancelTimer != nil {
		s.cancelTimer()
	}
	s.cancelTimer = s.sched.Schedule(s.window, func() {
		// The push reads a fresh snapshot; coalesced edits since the diff
		// above are carried automatically.
		s.push(context.Background())
	})
	s.mu.Unlock()
}

// Flush cancels any pending timer and runs one push cycle immediately.
// Returns the combined error of all failed calls, nil when everything
// converged.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
	s.mu.Unlock()
	return s.push(ctx)
}

// Status returns the sync status for an entity key such as "theme:t1",
// "session:sess-1" or "saved-songs".
func (s *Service) Status(key string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[key]
}

// LastError returns the most recent push error for an entity key, nil when
// its last push succeeded.
func (s *Service) LastError(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr[key]
}

// op is one remote call derived from the diff.
type op struct {
	key  string
	call func(ctx context.Context) error
	// commit advances the snapshot for this entity; run only on success,
	// with s.mu held.
	commit func()
}

// diffLocked structurally diffs state against the last-pushed snapshot and
// returns the remote calls needed to converge. Caller holds s.mu.
func (s *Service) diffLocked(state store.State) []op {
	var ops []op

	seenThemes := make(map[string]bool, len(state.Themes))
	for _, t := range state.Themes {
		t := t
		seenThemes[t.ID] = true
		key := "theme:" + t.ID
		prev, existed := s.snapThemes[t.ID]
		switch {
		case !existed:
			ops = append(ops, op{
				key:    key,
				call:   func(ctx context.Context) error { return s.api.CreateTheme(ctx, t) },
				commit: func() { s.snapThemes[t.ID] = t.Clone() },
			})
		case !reflect.DeepEqual(prev, t):
			ops = append(ops, op{
				key:    key,
				call:   func(ctx context.Context) error { return s.api.UpdateTheme(ctx, t) },
				commit: func() { s.snapThemes[t.ID] = t.Clone() },
			})
		}
	}
	for id := range s.snapThemes {
		if !seenThemes[id] {
			id := id
			ops = append(ops, op{
				key:    "theme:" + id,
				call:   func(ctx context.Context) error { return s.api.DeleteTheme(ctx, id) },
				commit: func() { delete(s.snapThemes, id) },
			})
		}
	}

	seenSessions := make(map[string]bool, len(state.Sessions))
	for _, sess := range state.Sessions {
		sess := sess
		seenSessions[sess.ID] = true
		key := "session:" + sess.ID
		prev, existed := s.snapSessions[sess.ID]
		switch {
		case !existed:
			ops = append(ops, op{
				key:    key,
				call:   func(ctx context.Context) error { return s.api.CreateSession(ctx, sess) },
				commit: func() { s.snapSessions[sess.ID] = sess.Clone() },
			})
		case !reflect.DeepEqual(prev, sess):
			ops = append(ops, op{
				key:    key,
				call:   func(ctx context.Context) error { return s.api.UpdateSession(ctx, sess) },
				commit: func() { s.snapSessions[sess.ID] = sess.Clone() },
			})
		}
	}
	for id := range s.snapSessions {
		if !seenSessions[id] {
			id := id
			ops = append(ops, op{
				key:    "session:" + id,
				call:   func(ctx context.Context) error { return s.api.DeleteSession(ctx, id) },
				commit: func() { delete(s.snapSessions, id) },
			})
		}
	}

	if !s.savedSynced || !reflect.DeepEqual(s.snapSaved, state.SavedSongs) {
		songs := append([]funnel.Song(nil), state.SavedSongs...)
		ops = append(ops, op{
			key:  savedSongsKey,
			call: func(ctx context.Context) error { return s.api.PutSavedSongs(ctx, songs) },
			commit: func() {
				s.snapSaved = songs
				s.savedSynced = true
			},
		})
	}

	return ops
}

// push runs one diff-and-push cycle against the current store state.
func (s *Service) push(ctx context.Context) error {
	state := s.store.Snapshot()

	s.mu.Lock()
	ops := s.diffLocked(state)
	if len(ops) == 0 {
		s.mu.Unlock()
		return nil
	}
	for _, o := range ops {
		s.status[o.key] = StatusSyncing
	}
	s.mu.Unlock()

	// Probe availability once per cycle rather than failing every call.
	if err := s.api.Health(ctx); err != nil {
		s.logger.Printf("sync: server unavailable, using local data: %v", err)
		s.mu.Lock()
		for _, o := range ops {
			s.status[o.key] = StatusDirty
			s.lastErr[o.key] = err
		}
		s.mu.Unlock()
		return fmt.Errorf("health check: %w", err)
	}

	// Independent entities have no ordering dependency; push concurrently.
	errs := make([]error, len(ops))
	var wg sync.WaitGroup
	for i, o := range ops {
		wg.Add(1)
		go func(i int, o op) {
			defer wg.Done()
			errs[i] = o.call(ctx)
		}(i, o)
	}
	wg.Wait()

	var failed []error
	s.mu.Lock()
	for i, o := range ops {
		if errs[i] != nil {
			// Snapshot does not advance: the next cycle retries this diff.
			s.status[o.key] = StatusFailed
			s.lastErr[o.key] = errs[i]
			failed = append(failed, fmt.Errorf("%s: %w", o.key, errs[i]))
			s.logger.Printf("sync: push %s failed: %v", o.key, errs[i])
			continue
		}
		o.commit()
		s.status[o.key] = StatusClean
		delete(s.lastErr, o.key)
	}
	s.mu.Unlock()

	return errors.Join(failed...)
}
