package funnel

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func song(id, title, artist string) Song {
	return Song{ID: id, Title: title, Artist: artist}
}

// themeWith builds a theme with the given tier occupancy.
func themeWith(candidates, semifinalists, finalists []Song, pick *Song) Theme {
	t := NewTheme("theme-1", "songs about weather", time.Now())
	t.Candidates = candidates
	t.Semifinalists = semifinalists
	t.Finalists = finalists
	t.Pick = pick
	return t
}

// checkExclusivity fails the test if any song ID appears in more than one
// tier of the theme.
func checkExclusivity(t *testing.T, th Theme) {
	t.Helper()
	seen := make(map[string]Tier)
	for _, tier := range []Tier{TierCandidates, TierSemifinalists, TierFinalists, TierPick} {
		for _, s := range th.tier(tier) {
			if prev, ok := seen[s.ID]; ok {
				t.Fatalf("song %s in both %s and %s", s.ID, prev, tier)
			}
			seen[s.ID] = tier
		}
	}
}

func TestAddCandidate(t *testing.T) {
	cfg := DefaultConfig()

	fullHouse := make([]Song, cfg.CandidatesCap)
	for i := range fullHouse {
		fullHouse[i] = song(fmt.Sprintf("c%d", i), fmt.Sprintf("Track %d", i), "Various")
	}

	tests := []struct {
		name    string
		theme   Theme
		add     Song
		wantErr error
		wantLen int
	}{
		{
			name:    "into empty theme",
			theme:   themeWith(nil, nil, nil, nil),
			add:     song("s1", "Thunder", "Imagine Dragons"),
			wantLen: 1,
		},
		{
			name:    "at capacity is a hard reject",
			theme:   themeWith(fullHouse, nil, nil, nil),
			add:     song("s31", "One Too Many", "Anyone"),
			wantErr: ErrCapacityFull,
			wantLen: cfg.CandidatesCap,
		},
		{
			name:    "duplicate title and artist",
			theme:   themeWith([]Song{song("s1", "Thunder", "Imagine Dragons")}, nil, nil, nil),
			add:     song("s2", "Thunder", "Imagine Dragons"),
			wantErr: ErrDuplicate,
			wantLen: 1,
		},
		{
			name:    "duplicate check is case-insensitive",
			theme:   themeWith([]Song{song("s1", "Thunder", "Imagine Dragons")}, nil, nil, nil),
			add:     song("s2", "THUNDER", "imagine dragons"),
			wantErr: ErrDuplicate,
			wantLen: 1,
		},
		{
			name:    "same title different artist is allowed",
			theme:   themeWith([]Song{song("s1", "Thunder", "Imagine Dragons")}, nil, nil, nil),
			add:     song("s2", "Thunder", "Boys Like Girls"),
			wantLen: 2,
		},
		{
			name:    "ID already in a higher tier",
			theme:   themeWith(nil, []Song{song("s1", "Thunder", "Imagine Dragons")}, nil, nil),
			add:     song("s1", "Thunder", "Imagine Dragons"),
			wantErr: ErrDuplicate,
			wantLen: 0,
		},
		{
			name:    "ID already the pick",
			theme:   themeWith(nil, nil, nil, ptr(song("s1", "Thunder", "Imagine Dragons"))),
			add:     song("s1", "Thunder (Remaster)", "Imagine Dragons"),
			wantErr: ErrDuplicate,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(tt.theme.Candidates)
			got, err := AddCandidate(cfg, tt.theme, tt.add)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("AddCandidate error = %v, want %v", err, tt.wantErr)
			}
			if len(got.Candidates) != tt.wantLen {
				t.Errorf("candidates length = %d, want %d", len(got.Candidates), tt.wantLen)
			}
			if tt.wantErr != nil && len(got.Candidates) != before {
				t.Errorf("rejected add changed the theme")
			}
			checkExclusivity(t, got)
		})
	}
}

func TestPromote(t *testing.T) {
	cfg := DefaultConfig()

	fullSemis := make([]Song, cfg.SemifinalistsCap)
	for i := range fullSemis {
		fullSemis[i] = song(fmt.Sprintf("sf%d", i), fmt.Sprintf("Semi %d", i), "Various")
	}

	tests := []struct {
		name     string
		theme    Theme
		song     Song
		to       Tier
		wantErr  error
		wantFrom Tier // expected fromTier in the new history record
	}{
		{
			name:     "candidates to semifinalists",
			theme:    themeWith([]Song{song("s1", "Thunder", "Imagine Dragons")}, nil, nil, nil),
			song:     song("s1", "Thunder", "Imagine Dragons"),
			to:       TierSemifinalists,
			wantFrom: TierCandidates,
		},
		{
			name:     "unknown song falls back to the working set",
			theme:    themeWith(nil, nil, nil, nil),
			song:     song("w1", "Ghost Town", "Kanye West"),
			to:       TierSemifinalists,
			wantFrom: TierWorking,
		},
		{
			name:    "into a full tier is a hard reject",
			theme:   themeWith([]Song{song("s1", "Thunder", "Imagine Dragons")}, fullSemis, nil, nil),
			song:    song("s1", "Thunder", "Imagine Dragons"),
			to:      TierSemifinalists,
			wantErr: ErrCapacityFull,
		},
		{
			name:    "pick cannot be promoted further",
			theme:   themeWith(nil, nil, nil, ptr(song("p1", "Winner", "Someone"))),
			song:    song("p1", "Winner", "Someone"),
			to:      TierFinalists,
			wantErr: ErrAlreadyPicked,
		},
		{
			name:    "promote backward is rejected",
			theme:   themeWith(nil, nil, []Song{song("f1", "Final", "Someone")}, nil),
			song:    song("f1", "Final", "Someone"),
			to:      TierSemifinalists,
			wantErr: ErrInvalidMove,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Promote(cfg, tt.theme, tt.song, tt.to, "test")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Promote error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if got.SongCount() != tt.theme.SongCount() {
					t.Errorf("rejected promote changed the theme")
				}
				return
			}
			loc := got.LocationOf(tt.song.ID)
			if loc != tt.to {
				t.Errorf("song location = %s, want %s", loc, tt.to)
			}
			var moved Song
			for _, s := range got.tier(tt.to) {
				if s.ID == tt.song.ID {
					moved = s
				}
			}
			last := moved.PromotionHistory[len(moved.PromotionHistory)-1]
			if last.FromTier != tt.wantFrom || last.ToTier != tt.to {
				t.Errorf("history record = %s -> %s, want %s -> %s", last.FromTier, last.ToTier, tt.wantFrom, tt.to)
			}
			checkExclusivity(t, got)
		})
	}
}

func TestDemote(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("finalists to candidates", func(t *testing.T) {
		th := themeWith(nil, nil, []Song{song("f1", "Final", "Someone")}, nil)
		got, err := Demote(cfg, th, song("f1", "Final", "Someone"), TierCandidates, "not feeling it")
		if err != nil {
			t.Fatalf("Demote: %v", err)
		}
		if got.LocationOf("f1") != TierCandidates {
			t.Errorf("song location = %s, want candidates", got.LocationOf("f1"))
		}
		if len(got.Finalists) != 0 {
			t.Errorf("finalists still holds %d songs", len(got.Finalists))
		}
		checkExclusivity(t, got)
	})

	t.Run("demote forward is rejected", func(t *testing.T) {
		th := themeWith([]Song{song("c1", "Track", "Someone")}, nil, nil, nil)
		_, err := Demote(cfg, th, song("c1", "Track", "Someone"), TierFinalists, "")
		if !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("Demote error = %v, want ErrInvalidMove", err)
		}
	})

	t.Run("demote never fails on destination occupancy", func(t *testing.T) {
		// Candidates at capacity; the demoted song still lands there.
		full := make([]Song, cfg.CandidatesCap)
		for i := range full {
			full[i] = song(fmt.Sprintf("c%d", i), fmt.Sprintf("Track %d", i), "Various")
		}
		th := themeWith(full, []Song{song("sf1", "Semi", "Someone")}, nil, nil)
		got, err := Demote(cfg, th, song("sf1", "Semi", "Someone"), TierCandidates, "")
		if err != nil {
			t.Fatalf("Demote: %v", err)
		}
		if got.LocationOf("sf1") != TierCandidates {
			t.Errorf("song location = %s, want candidates", got.LocationOf("sf1"))
		}
	})
}

func TestRemove(t *testing.T) {
	th := themeWith([]Song{song("c1", "Track", "Someone")}, nil, nil, nil)

	got, err := Remove(th, "c1", TierCandidates)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got.SongCount() != 0 {
		t.Errorf("song count = %d after remove, want 0", got.SongCount())
	}

	if _, err := Remove(th, "nope", TierCandidates); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove of absent song: error = %v, want ErrNotFound", err)
	}
}

func TestSetPick(t *testing.T) {
	t.Run("moves a finalist into the slot", func(t *testing.T) {
		th := themeWith(nil, nil, []Song{song("f1", "Final", "Someone")}, nil)
		got, err := SetPick(th, ptr(song("f1", "Final", "Someone")))
		if err != nil {
			t.Fatalf("SetPick: %v", err)
		}
		if got.Pick == nil || got.Pick.ID != "f1" {
			t.Fatalf("pick = %v, want f1", got.Pick)
		}
		if len(got.Finalists) != 0 {
			t.Errorf("finalists still holds the picked song")
		}
		checkExclusivity(t, got)
	})

	t.Run("overwrites a previous pick", func(t *testing.T) {
		th := themeWith(nil, nil, nil, ptr(song("p1", "Old", "Someone")))
		got, err := SetPick(th, ptr(song("p2", "New", "Someone Else")))
		if err != nil {
			t.Fatalf("SetPick: %v", err)
		}
		if got.Pick == nil || got.Pick.ID != "p2" {
			t.Fatalf("pick = %v, want p2", got.Pick)
		}
	})

	t.Run("nil clears the slot", func(t *testing.T) {
		th := themeWith(nil, nil, nil, ptr(song("p1", "Old", "Someone")))
		got, err := SetPick(th, nil)
		if err != nil {
			t.Fatalf("SetPick: %v", err)
		}
		if got.Pick != nil {
			t.Errorf("pick = %v, want nil", got.Pick)
		}
	})
}

// TestFullFunnelRun walks one song through the whole funnel and checks the
// append-only history ends up with exactly one record per hop.
func TestFullFunnelRun(t *testing.T) {
	cfg := DefaultConfig()
	th := themeWith(nil, nil, nil, nil)
	thunder := song("s1", "Thunder", "Imagine Dragons")

	th, err := AddCandidate(cfg, th, thunder)
	if err != nil {
		t.Fatalf("AddCandidate: %v", err)
	}

	hops := []Tier{TierSemifinalists, TierFinalists, TierPick}
	prevHistory := 0
	for _, to := range hops {
		th, err = Promote(cfg, th, thunder, to, "")
		if err != nil {
			t.Fatalf("Promote to %s: %v", to, err)
		}
		var cur Song
		for _, s := range th.tier(to) {
			if s.ID == "s1" {
				cur = s
			}
		}
		if len(cur.PromotionHistory) <= prevHistory {
			t.Fatalf("history shrank at %s: %d -> %d", to, prevHistory, len(cur.PromotionHistory))
		}
		prevHistory = len(cur.PromotionHistory)
	}

	if th.Pick == nil {
		t.Fatal("song never reached the pick slot")
	}
	hist := th.Pick.PromotionHistory
	if len(hist) != 3 {
		t.Fatalf("history length = %d, want 3", len(hist))
	}
	wantPairs := [][2]Tier{
		{TierCandidates, TierSemifinalists},
		{TierSemifinalists, TierFinalists},
		{TierFinalists, TierPick},
	}
	for i, want := range wantPairs {
		if hist[i].FromTier != want[0] || hist[i].ToTier != want[1] {
			t.Errorf("history[%d] = %s -> %s, want %s -> %s", i, hist[i].FromTier, hist[i].ToTier, want[0], want[1])
		}
	}
}

// TestPureOperations checks that inputs are never mutated in place.
func TestPureOperations(t *testing.T) {
	cfg := DefaultConfig()
	th := themeWith([]Song{song("s1", "Thunder", "Imagine Dragons")}, nil, nil, nil)

	got, err := Promote(cfg, th, song("s1", "Thunder", "Imagine Dragons"), TierSemifinalists, "")
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if len(th.Candidates) != 1 || len(th.Semifinalists) != 0 {
		t.Errorf("input theme was mutated: candidates=%d semifinalists=%d", len(th.Candidates), len(th.Semifinalists))
	}
	if len(got.Semifinalists) != 1 {
		t.Errorf("result missing promoted song")
	}
}

func ptr(s Song) *Song { return &s }
