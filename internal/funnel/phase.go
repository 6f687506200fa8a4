package funnel

// Phase is a coarse workflow label derived from funnel occupancy. It is
// recomputed from current counts on every read rather than advanced and
// cached, so it self-corrects: removing songs can move the phase backward.
type Phase string

// Workflow phases.
const (
	PhaseIdle       Phase = "idle"
	PhaseBrainstorm Phase = "brainstorm"
	PhaseRefine     Phase = "refine"
	PhaseDecide     Phase = "decide"
	PhaseComplete   Phase = "complete"
)

// PhaseOf derives the theme's current phase from tier occupancy.
func PhaseOf(cfg Config, t Theme) Phase {
	switch {
	case t.Pick != nil:
		return PhaseComplete
	case len(t.Semifinalists) >= cfg.DecideThreshold:
		return PhaseDecide
	case len(t.Candidates) >= cfg.RefineThreshold:
		return PhaseRefine
	case t.SongCount() > 0:
		return PhaseBrainstorm
	default:
		return PhaseIdle
	}
}

// WithPhase returns the theme with its Phase field refreshed from occupancy.
// The store calls this after every committed mutation so the serialized form
// carries the derived value; PhaseOf remains the source of truth.
func WithPhase(cfg Config, t Theme) Theme {
	t.Phase = PhaseOf(cfg, t)
	return t
}
