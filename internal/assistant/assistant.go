// Package assistant is the narrow interface to the AI chat that suggests
// songs for a theme. The funnel core never talks to it directly; the client
// runtime feeds its proposals into the session working set.
package assistant

import (
	"context"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
)

// Proposal is one song the assistant puts forward, with its reasoning.
type Proposal struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Reason string `json:"reason"`
}

// Assistant suggests songs for a theme given the conversation so far. The
// session carries the rejected list and learned preferences, which
// implementations should use to avoid repeating turned-down suggestions.
type Assistant interface {
	Suggest(ctx context.Context, theme funnel.Theme, sess session.Session) ([]Proposal, error)
}
