package funnel

import (
	"fmt"
	"sort"
	"time"
)

// Reorder reassigns ranks in a rank-bearing tier (semifinalists or finalists)
// from a full permutation of the tier's member IDs. Ranks come out dense,
// 1..N in the order given. A member omitted from orderedIDs is dropped from
// the tier, so callers must always pass the complete membership. IDs that are
// not members are ignored.
func Reorder(t Theme, tier Tier, orderedIDs []string) (Theme, error) {
	if tier != TierSemifinalists && tier != TierFinalists {
		return t, fmt.Errorf("%w: tier %s does not carry ranks", ErrInvalidMove, tier)
	}

	members := make(map[string]Song, len(t.tier(tier)))
	for _, s := range t.tier(tier) {
		members[s.ID] = s
	}

	reordered := make([]Song, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		s, ok := members[id]
		if !ok {
			continue
		}
		s = s.clone()
		s.Rank = len(reordered) + 1
		reordered = append(reordered, s)
	}

	out := t.Clone()
	switch tier {
	case TierSemifinalists:
		out.Semifinalists = reordered
	case TierFinalists:
		out.Finalists = reordered
	}
	out.UpdatedAt = time.Now()
	return out, nil
}

// SortedByRank returns the songs in display order: ranked songs first by
// ascending rank, then unranked songs in their existing order. The sort is
// stable, and the input is not modified. Rank is display metadata only; it
// never determines tier membership.
func SortedByRank(songs []Song) []Song {
	out := make([]Song, len(songs))
	copy(out, songs)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Rank, out[j].Rank
		if ri == 0 {
			return false
		}
		if rj == 0 {
			return true
		}
		return ri < rj
	})
	return out
}
