package funnel

import (
	"fmt"
	"testing"
)

func nSongs(prefix string, n int) []Song {
	out := make([]Song, n)
	for i := range out {
		out[i] = song(fmt.Sprintf("%s%d", prefix, i), fmt.Sprintf("Track %d", i), "Various")
	}
	return out
}

func TestPhaseOf(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name  string
		theme Theme
		want  Phase
	}{
		{
			name:  "empty theme is idle",
			theme: themeWith(nil, nil, nil, nil),
			want:  PhaseIdle,
		},
		{
			name:  "first candidate starts brainstorm",
			theme: themeWith(nSongs("c", 1), nil, nil, nil),
			want:  PhaseBrainstorm,
		},
		{
			name:  "below refine threshold stays brainstorm",
			theme: themeWith(nSongs("c", cfg.RefineThreshold-1), nil, nil, nil),
			want:  PhaseBrainstorm,
		},
		{
			name:  "refine threshold reached",
			theme: themeWith(nSongs("c", cfg.RefineThreshold), nil, nil, nil),
			want:  PhaseRefine,
		},
		{
			name:  "decide threshold reached",
			theme: themeWith(nSongs("c", 10), nSongs("sf", cfg.DecideThreshold), nil, nil),
			want:  PhaseDecide,
		},
		{
			name:  "pick set means complete",
			theme: themeWith(nil, nil, nil, ptr(song("p1", "Winner", "Someone"))),
			want:  PhaseComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhaseOf(cfg, tt.theme); got != tt.want {
				t.Errorf("PhaseOf = %s, want %s", got, tt.want)
			}
		})
	}
}

// TestPhaseMovesBackward checks that phase is derived, not latched: removing
// songs can regress it.
func TestPhaseMovesBackward(t *testing.T) {
	cfg := DefaultConfig()
	th := themeWith(nSongs("c", cfg.RefineThreshold), nil, nil, nil)

	if got := PhaseOf(cfg, th); got != PhaseRefine {
		t.Fatalf("PhaseOf = %s, want refine", got)
	}

	th, err := Remove(th, "c0", TierCandidates)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := PhaseOf(cfg, th); got != PhaseBrainstorm {
		t.Errorf("PhaseOf after removal = %s, want brainstorm", got)
	}
}

func TestWithPhase(t *testing.T) {
	cfg := DefaultConfig()
	th := themeWith(nil, nil, nil, ptr(song("p1", "Winner", "Someone")))
	th.Phase = PhaseBrainstorm // stale

	if got := WithPhase(cfg, th).Phase; got != PhaseComplete {
		t.Errorf("WithPhase refreshed to %s, want complete", got)
	}
}
