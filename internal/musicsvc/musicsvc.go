// Package musicsvc resolves songs against external music services, filling
// in cross-platform link identifiers. The funnel core consumes only the
// Resolver interface; the concrete clients here are thin wrappers.
package musicsvc

import (
	"context"
	"errors"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
)

// ErrNoMatch is returned when a service finds nothing for the song.
var ErrNoMatch = errors.New("no matching track")

// Resolver looks up a song on one external service and returns its link
// identifiers there. Implementations fill only the fields they know about.
type Resolver interface {
	Resolve(ctx context.Context, title, artist string) (funnel.Links, error)
}

// ResolveAll runs the song through every resolver, merging whatever each one
// finds. A resolver finding no match is not an error; any other failure
// aborts and is returned.
func ResolveAll(ctx context.Context, song funnel.Song, resolvers ...Resolver) (funnel.Links, error) {
	var links funnel.Links
	for _, r := range resolvers {
		found, err := r.Resolve(ctx, song.Title, song.Artist)
		if errors.Is(err, ErrNoMatch) {
			continue
		}
		if err != nil {
			return links, err
		}
		if found.SpotifyID != "" {
			links.SpotifyID = found.SpotifyID
		}
		if found.YouTubeID != "" {
			links.YouTubeID = found.YouTubeID
		}
	}
	return links, nil
}
