package funnel

import (
	"strings"
	"time"
)

// Song is a candidate track moving through a theme's funnel.
// Songs are value types: funnel operations copy them, never mutate in place.
type Song struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
	Year   int    `json:"year,omitempty"`
	Genre  string `json:"genre,omitempty"`

	// Reason records why the song was suggested (by the assistant or the user).
	Reason string `json:"reason,omitempty"`

	// Rank is 1-based display order inside rank-bearing tiers. Zero means
	// unranked; unranked songs sort after ranked ones.
	Rank int `json:"rank,omitempty"`

	IsFavorite   bool `json:"isFavorite,omitempty"`
	IsMuted      bool `json:"isMuted,omitempty"`
	IsEliminated bool `json:"isEliminated,omitempty"`

	Links  Links   `json:"links,omitempty"`
	Rating *Rating `json:"rating,omitempty"`

	PromotionHistory []PromotionRecord `json:"promotionHistory,omitempty"`

	// CurrentTier mirrors the song's present location for serialization;
	// the theme's tier slices are authoritative.
	CurrentTier Tier `json:"currentTier,omitempty"`
}

// Links holds cross-platform identifiers for a song.
type Links struct {
	SpotifyID string `json:"spotifyId,omitempty"`
	YouTubeID string `json:"youtubeId,omitempty"`
}

// Rating is a user rating pair: how well the song fits the theme, and how
// good it is in general. Both on a 1-10 scale.
type Rating struct {
	ThemeFit int `json:"themeFit"`
	General  int `json:"general"`
}

// PromotionRecord is one entry in a song's append-only movement history.
type PromotionRecord struct {
	FromTier  Tier      `json:"fromTier"`
	ToTier    Tier      `json:"toTier"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// clone returns a deep copy of the song.
func (s Song) clone() Song {
	out := s
	if s.Rating != nil {
		r := *s.Rating
		out.Rating = &r
	}
	if s.PromotionHistory != nil {
		out.PromotionHistory = make([]PromotionRecord, len(s.PromotionHistory))
		copy(out.PromotionHistory, s.PromotionHistory)
	}
	return out
}

// SameTrack reports whether two songs name the same recording, matching
// title and artist case-insensitively. Used for duplicate detection.
func SameTrack(a, b Song) bool {
	return strings.EqualFold(a.Title, b.Title) && strings.EqualFold(a.Artist, b.Artist)
}
