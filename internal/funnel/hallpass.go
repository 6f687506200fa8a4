package funnel

import (
	"fmt"
	"time"
)

// HallPassStage names which of a theme's two hall passes to spend.
type HallPassStage string

// Hall pass stages.
const (
	HallPassSemifinals HallPassStage = "semifinals"
	HallPassFinals     HallPassStage = "finals"
)

// tier returns the tier a hall pass admits into.
func (s HallPassStage) tier() (Tier, bool) {
	switch s {
	case HallPassSemifinals:
		return TierSemifinalists, true
	case HallPassFinals:
		return TierFinalists, true
	default:
		return "", false
	}
}

// UseHallPass inserts a song directly into semifinalists or finalists,
// skipping the intermediate hops the normal promote chain would require, and
// irreversibly spends the theme's hall pass for that stage. The destination's
// own capacity still applies. A spent pass is never reclaimed, even if the
// song that used it is later demoted.
func UseHallPass(cfg Config, t Theme, song Song, stage HallPassStage, reason string) (Theme, error) {
	to, ok := stage.tier()
	if !ok {
		return t, fmt.Errorf("%w: unknown hall pass stage %q", ErrNotFound, stage)
	}

	switch stage {
	case HallPassSemifinals:
		if t.HallPassesUsed.Semifinals {
			return t, fmt.Errorf("%w: %s", ErrHallPassUsed, stage)
		}
	case HallPassFinals:
		if t.HallPassesUsed.Finals {
			return t, fmt.Errorf("%w: %s", ErrHallPassUsed, stage)
		}
	}

	from := t.LocationOf(song.ID)
	if from == to || from == TierPick {
		return t, fmt.Errorf("%w: song already at or past %s", ErrInvalidMove, to)
	}
	if limit := cfg.capacity(to); len(t.tier(to)) >= limit {
		return t, fmt.Errorf("%w: %s holds %d", ErrCapacityFull, to, limit)
	}

	out := t.Clone()
	moved, ok := out.detach(song.ID, from)
	if !ok {
		moved = song.clone()
	}
	if reason == "" {
		reason = "hall pass"
	}
	moved.PromotionHistory = append(moved.PromotionHistory, PromotionRecord{
		FromTier:  from,
		ToTier:    to,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	moved.Rank = 0
	out.attach(moved, to)

	switch stage {
	case HallPassSemifinals:
		out.HallPassesUsed.Semifinals = true
	case HallPassFinals:
		out.HallPassesUsed.Finals = true
	}
	out.UpdatedAt = time.Now()
	return out, nil
}
