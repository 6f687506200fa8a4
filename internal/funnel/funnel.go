package funnel

import (
	"fmt"
	"time"
)

// Promote moves a song one or more tiers up the funnel. The song's current
// tier is located by ID; a song not present in any tier is treated as coming
// from the working set, and the move becomes a pure insertion recording
// fromTier "working". A full destination is a hard reject: the theme is
// returned unchanged with ErrCapacityFull, and the caller must free capacity
// or spend a hall pass instead.
func Promote(cfg Config, t Theme, song Song, to Tier, reason string) (Theme, error) {
	if !to.Valid() {
		return t, fmt.Errorf("%w: unknown tier %q", ErrNotFound, to)
	}

	from := t.LocationOf(song.ID)
	if from == TierPick {
		return t, ErrAlreadyPicked
	}
	if from.order() >= to.order() {
		return t, fmt.Errorf("%w: %s -> %s is not a promotion", ErrInvalidMove, from, to)
	}
	if limit := cfg.capacity(to); limit >= 0 && len(t.tier(to)) >= limit {
		return t, fmt.Errorf("%w: %s holds %d", ErrCapacityFull, to, limit)
	}

	out := t.Clone()
	moved, ok := out.detach(song.ID, from)
	if !ok {
		moved = song.clone() // working-set insertion
	}
	moved.PromotionHistory = append(moved.PromotionHistory, PromotionRecord{
		FromTier:  from,
		ToTier:    to,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	moved.Rank = 0 // rank is per-tier; entering a tier starts unranked
	out.attach(moved, to)
	out.UpdatedAt = time.Now()
	return out, nil
}

// Demote moves a song down the funnel. Demotion never fails on capacity:
// every downstream tier is at least as large as the one being left. A song
// absent from the funnel is inserted from the working set, same as Promote.
func Demote(cfg Config, t Theme, song Song, to Tier, reason string) (Theme, error) {
	if !to.Valid() {
		return t, fmt.Errorf("%w: unknown tier %q", ErrNotFound, to)
	}

	from := t.LocationOf(song.ID)
	if from != TierWorking && from.order() <= to.order() {
		return t, fmt.Errorf("%w: %s -> %s is not a demotion", ErrInvalidMove, from, to)
	}

	out := t.Clone()
	moved, ok := out.detach(song.ID, from)
	if !ok {
		moved = song.clone()
	}
	moved.PromotionHistory = append(moved.PromotionHistory, PromotionRecord{
		FromTier:  from,
		ToTier:    to,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	moved.Rank = 0
	out.attach(moved, to)
	out.UpdatedAt = time.Now()
	return out, nil
}

// Remove detaches a song from the named tier without inserting it anywhere.
// Used for outright rejection. Returns ErrNotFound (theme unchanged) when the
// song is not in that tier.
func Remove(t Theme, songID string, tier Tier) (Theme, error) {
	if !tier.Valid() {
		return t, fmt.Errorf("%w: unknown tier %q", ErrNotFound, tier)
	}
	out := t.Clone()
	if _, ok := out.detach(songID, tier); !ok {
		return t, fmt.Errorf("%w: song %s not in %s", ErrNotFound, songID, tier)
	}
	out.UpdatedAt = time.Now()
	return out, nil
}

// AddCandidate inserts a newly suggested song into the candidates tier.
// Rejects a song ID already occupying any tier (exclusivity holds from this
// side too), case-insensitive title+artist duplicates among candidates, and
// adds into a full candidates tier. Addition is not a promotion,
// so no history record is written.
func AddCandidate(cfg Config, t Theme, song Song) (Theme, error) {
	if loc := t.LocationOf(song.ID); loc != TierWorking {
		return t, fmt.Errorf("%w: song %s already in %s", ErrDuplicate, song.ID, loc)
	}
	for _, existing := range t.Candidates {
		if SameTrack(existing, song) {
			return t, fmt.Errorf("%w: %q by %q", ErrDuplicate, song.Title, song.Artist)
		}
	}
	if len(t.Candidates) >= cfg.CandidatesCap {
		return t, fmt.Errorf("%w: candidates holds %d", ErrCapacityFull, cfg.CandidatesCap)
	}

	out := t.Clone()
	out.attach(song.clone(), TierCandidates)
	out.UpdatedAt = time.Now()
	return out, nil
}

// SetPick directly overwrites the pick slot, bypassing the funnel order.
// Used for assistant-driven finalize actions. A non-nil song already in a
// tier is moved (removed from its source, preserving tier exclusivity) and
// gains a history record; a previous occupant of the slot is detached from
// the theme. SetPick(theme, nil) clears the slot.
func SetPick(t Theme, song *Song) (Theme, error) {
	out := t.Clone()
	if song == nil {
		out.Pick = nil
		out.UpdatedAt = time.Now()
		return out, nil
	}

	from := out.LocationOf(song.ID)
	if from == TierPick {
		return t, nil // already the pick
	}
	moved, ok := out.detach(song.ID, from)
	if !ok {
		moved = song.clone()
	}
	moved.PromotionHistory = append(moved.PromotionHistory, PromotionRecord{
		FromTier:  from,
		ToTier:    TierPick,
		Reason:    "finalized",
		Timestamp: time.Now(),
	})
	moved.Rank = 0
	out.Pick = nil
	out.attach(moved, TierPick)
	out.UpdatedAt = time.Now()
	return out, nil
}
