// Package session models a conversation thread bound to a theme: the turns
// exchanged with the assistant, the ephemeral working set of songs it has
// proposed, and what the user has rejected or taught it along the way.
// Sessions are append-mostly; a theme can accumulate several of them.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
)

// ErrNotInWorkingSet is returned when a song ID is not in the session's
// working set.
var ErrNotInWorkingSet = errors.New("song not in working set")

// Role identifies who produced a conversation turn.
type Role string

// Turn roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RejectedSong records a working-set song the user turned down, with the
// stated reason so the assistant can avoid similar suggestions.
type RejectedSong struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Reason string `json:"reason,omitempty"`
}

// Preference is something the assistant has learned about the user's taste.
type Preference struct {
	Text      string    `json:"text"`
	LearnedAt time.Time `json:"learnedAt"`
}

// Session is one conversation about one theme.
type Session struct {
	ID      string `json:"id"`
	ThemeID string `json:"themeId"`

	Turns       []Turn         `json:"turns,omitempty"`
	WorkingSet  []funnel.Song  `json:"workingSet,omitempty"`
	Rejected    []RejectedSong `json:"rejected,omitempty"`
	Preferences []Preference   `json:"preferences,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates an empty session for a theme.
func New(id, themeID string, now time.Time) Session {
	return Session{ID: id, ThemeID: themeID, CreatedAt: now, UpdatedAt: now}
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Turns = append([]Turn(nil), s.Turns...)
	out.WorkingSet = append([]funnel.Song(nil), s.WorkingSet...)
	out.Rejected = append([]RejectedSong(nil), s.Rejected...)
	out.Preferences = append([]Preference(nil), s.Preferences...)
	return out
}

// AddTurn appends a conversation turn.
func AddTurn(s Session, role Role, content string) Session {
	out := s.Clone()
	out.Turns = append(out.Turns, Turn{Role: role, Content: content, Timestamp: time.Now()})
	out.UpdatedAt = time.Now()
	return out
}

// Propose adds assistant-suggested songs to the working set, skipping any
// that duplicate an existing working-set entry by title and artist.
func Propose(s Session, songs []funnel.Song) Session {
	out := s.Clone()
	for _, song := range songs {
		dup := false
		for _, existing := range out.WorkingSet {
			if funnel.SameTrack(existing, song) {
				dup = true
				break
			}
		}
		if !dup {
			out.WorkingSet = append(out.WorkingSet, song)
		}
	}
	out.UpdatedAt = time.Now()
	return out
}

// Reject removes a song from the working set and records it on the rejected
// list with the user's reason.
func Reject(s Session, songID, reason string) (Session, error) {
	out := s.Clone()
	for i, song := range out.WorkingSet {
		if song.ID == songID {
			out.WorkingSet = append(out.WorkingSet[:i:i], out.WorkingSet[i+1:]...)
			out.Rejected = append(out.Rejected, RejectedSong{
				Title:  song.Title,
				Artist: song.Artist,
				Reason: reason,
			})
			out.UpdatedAt = time.Now()
			return out, nil
		}
	}
	return s, fmt.Errorf("%w: %s", ErrNotInWorkingSet, songID)
}

// Learn appends a learned preference.
func Learn(s Session, text string) Session {
	out := s.Clone()
	out.Preferences = append(out.Preferences, Preference{Text: text, LearnedAt: time.Now()})
	out.UpdatedAt = time.Now()
	return out
}

// Take removes a song from the working set and returns it, so the caller can
// hand it to funnel.AddCandidate. The funnel move and the working-set removal
// are separate collections; callers commit both through the store.
func Take(s Session, songID string) (Session, funnel.Song, error) {
	out := s.Clone()
	for i, song := range out.WorkingSet {
		if song.ID == songID {
			out.WorkingSet = append(out.WorkingSet[:i:i], out.WorkingSet[i+1:]...)
			out.UpdatedAt = time.Now()
			return out, song, nil
		}
	}
	return s, funnel.Song{}, fmt.Errorf("%w: %s", ErrNotInWorkingSet, songID)
}
