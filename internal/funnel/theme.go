// Package funnel implements the tier state machine that narrows a pool of
// songs for a themed competition round: candidates, semifinalists, finalists,
// and a single pick. All operations are pure; they take a Theme and return a
// new Theme, leaving the input untouched.
package funnel

import (
	"errors"
	"time"
)

// Common errors.
var (
	// ErrCapacityFull is returned when a promote or add targets a full tier.
	ErrCapacityFull = errors.New("tier at capacity")
	// ErrDuplicate is returned when a candidate with the same title and
	// artist is already present.
	ErrDuplicate = errors.New("duplicate candidate")
	// ErrNotFound is returned when an operation references a song or tier
	// that is absent. Callers treat it as a warning, not a failure.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyPicked is returned when promoting a song that already
	// occupies the pick slot.
	ErrAlreadyPicked = errors.New("song is already the pick")
	// ErrInvalidMove is returned when a promote would move a song backward
	// or a demote forward in the funnel order.
	ErrInvalidMove = errors.New("invalid move for funnel order")
	// ErrHallPassUsed is returned when a theme's hall pass for the requested
	// stage has already been spent.
	ErrHallPassUsed = errors.New("hall pass already used")
)

// Tier identifies one stage of the funnel. Tiers form a strict linear order:
// working < candidates < semifinalists < finalists < pick. Promote moves
// right, demote moves left.
type Tier string

// Funnel tiers, in promotion order. TierWorking is the implicit pre-funnel
// stage for songs proposed in a session but not yet added as candidates.
const (
	TierWorking       Tier = "working"
	TierCandidates    Tier = "candidates"
	TierSemifinalists Tier = "semifinalists"
	TierFinalists     Tier = "finalists"
	TierPick          Tier = "pick"
)

// order returns the tier's position in the funnel's linear order.
func (t Tier) order() int {
	switch t {
	case TierCandidates:
		return 1
	case TierSemifinalists:
		return 2
	case TierFinalists:
		return 3
	case TierPick:
		return 4
	default:
		return 0 // working set
	}
}

// Valid reports whether t names a real funnel tier (not the working set).
func (t Tier) Valid() bool {
	return t.order() > 0
}

// Status is a theme's lifecycle state, set explicitly by the user.
type Status string

// Theme statuses.
const (
	StatusActive    Status = "active"
	StatusArchived  Status = "archived"
	StatusSubmitted Status = "submitted"
)

// HallPasses tracks a theme's two one-shot promotion exceptions. Once spent,
// a flag never reverts, even if the song that used it is later demoted.
type HallPasses struct {
	Semifinals bool `json:"semifinals"`
	Finals     bool `json:"finals"`
}

// Config holds tier capacities and phase thresholds. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	CandidatesCap    int
	SemifinalistsCap int
	FinalistsCap     int

	// RefineThreshold is the candidate count at which the theme's phase
	// moves from brainstorm to refine.
	RefineThreshold int
	// DecideThreshold is the semifinalist count at which phase moves to
	// decide.
	DecideThreshold int
}

// DefaultConfig returns the standard capacities and thresholds.
func DefaultConfig() Config {
	return Config{
		CandidatesCap:    30,
		SemifinalistsCap: 8,
		FinalistsCap:     4,
		RefineThreshold:  8,
		DecideThreshold:  4,
	}
}

// capacity returns the configured capacity for a tier. The working set is
// unbounded.
func (c Config) capacity(t Tier) int {
	switch t {
	case TierCandidates:
		return c.CandidatesCap
	case TierSemifinalists:
		return c.SemifinalistsCap
	case TierFinalists:
		return c.FinalistsCap
	case TierPick:
		return 1
	default:
		return -1
	}
}

// Theme is one competition round and the funnel of songs being narrowed for
// it. A song belongs to at most one tier of a theme at any time.
type Theme struct {
	ID              string     `json:"id"`
	RawText         string     `json:"rawText"`
	InterpretedText string     `json:"interpretedText,omitempty"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	Status          Status     `json:"status"`
	Phase           Phase      `json:"phase"`

	HallPassesUsed HallPasses `json:"hallPassesUsed"`

	Candidates    []Song `json:"candidates"`
	Semifinalists []Song `json:"semifinalists"`
	Finalists     []Song `json:"finalists"`
	Pick          *Song  `json:"pick"`

	// Version is a client-side monotonic counter bumped on every committed
	// mutation. The remote store rejects pushes carrying an older version
	// than it has stored, surfacing cross-device conflicts instead of
	// silently overwriting.
	Version int `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTheme creates an empty active theme.
func NewTheme(id, rawText string, now time.Time) Theme {
	return Theme{
		ID:        id,
		RawText:   rawText,
		Status:    StatusActive,
		Phase:     PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the theme.
func (t Theme) Clone() Theme {
	out := t
	out.Candidates = cloneSongs(t.Candidates)
	out.Semifinalists = cloneSongs(t.Semifinalists)
	out.Finalists = cloneSongs(t.Finalists)
	if t.Pick != nil {
		p := t.Pick.clone()
		out.Pick = &p
	}
	if t.Deadline != nil {
		d := *t.Deadline
		out.Deadline = &d
	}
	return out
}

func cloneSongs(songs []Song) []Song {
	if songs == nil {
		return nil
	}
	out := make([]Song, len(songs))
	for i, s := range songs {
		out[i] = s.clone()
	}
	return out
}

// tier returns the named tier's members. The pick slot is presented as a
// zero-or-one element slice.
func (t Theme) tier(name Tier) []Song {
	switch name {
	case TierCandidates:
		return t.Candidates
	case TierSemifinalists:
		return t.Semifinalists
	case TierFinalists:
		return t.Finalists
	case TierPick:
		if t.Pick == nil {
			return nil
		}
		return []Song{*t.Pick}
	default:
		return nil
	}
}

// Locations returns a song-ID → tier index over the theme's four tiers.
// Rebuilding it from the tier slices keeps it impossible to drift; it also
// makes the tier-exclusivity invariant mechanically checkable (a song ID
// appearing twice would collide here).
func (t Theme) Locations() map[string]Tier {
	locs := make(map[string]Tier, len(t.Candidates)+len(t.Semifinalists)+len(t.Finalists)+1)
	for _, tier := range []Tier{TierCandidates, TierSemifinalists, TierFinalists, TierPick} {
		for _, s := range t.tier(tier) {
			locs[s.ID] = tier
		}
	}
	return locs
}

// LocationOf returns the tier a song currently occupies. Songs outside the
// funnel report TierWorking.
func (t Theme) LocationOf(songID string) Tier {
	for _, tier := range []Tier{TierCandidates, TierSemifinalists, TierFinalists, TierPick} {
		for _, s := range t.tier(tier) {
			if s.ID == songID {
				return tier
			}
		}
	}
	return TierWorking
}

// SongCount returns the number of songs across all four tiers.
func (t Theme) SongCount() int {
	n := len(t.Candidates) + len(t.Semifinalists) + len(t.Finalists)
	if t.Pick != nil {
		n++
	}
	return n
}

// detach removes the song with the given ID from the named tier, returning
// the removed song and whether it was present. The theme is modified in
// place; callers operate on a clone.
func (t *Theme) detach(songID string, tier Tier) (Song, bool) {
	switch tier {
	case TierPick:
		if t.Pick != nil && t.Pick.ID == songID {
			s := *t.Pick
			t.Pick = nil
			return s, true
		}
		return Song{}, false
	case TierCandidates:
		return removeByID(&t.Candidates, songID)
	case TierSemifinalists:
		return removeByID(&t.Semifinalists, songID)
	case TierFinalists:
		return removeByID(&t.Finalists, songID)
	default:
		return Song{}, false
	}
}

func removeByID(songs *[]Song, id string) (Song, bool) {
	for i, s := range *songs {
		if s.ID == id {
			*songs = append((*songs)[:i:i], (*songs)[i+1:]...)
			return s, true
		}
	}
	return Song{}, false
}

// attach inserts a song into the named tier. Capacity must have been checked
// by the caller.
func (t *Theme) attach(s Song, tier Tier) {
	s.CurrentTier = tier
	switch tier {
	case TierCandidates:
		t.Candidates = append(t.Candidates, s)
	case TierSemifinalists:
		t.Semifinalists = append(t.Semifinalists, s)
	case TierFinalists:
		t.Finalists = append(t.Finalists, s)
	case TierPick:
		t.Pick = &s
	}
}
