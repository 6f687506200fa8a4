package musicsvc

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
)

// SpotifyResolver resolves songs via the Spotify search API.
type SpotifyResolver struct {
	api *spotify.Client
}

// NewSpotifyResolver authenticates with the client-credentials flow (no user
// context is needed for search) and returns a resolver.
func NewSpotifyResolver(ctx context.Context, clientID, clientSecret string) (*SpotifyResolver, error) {
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating with spotify: %w", err)
	}

	httpClient := spotifyauth.New().Client(ctx, token)
	return &SpotifyResolver{api: spotify.New(httpClient)}, nil
}

// NewSpotifyResolverFromClient wraps an already authenticated client, for
// tests.
func NewSpotifyResolverFromClient(api *spotify.Client) *SpotifyResolver {
	return &SpotifyResolver{api: api}
}

// Resolve searches for the track and returns the top hit's Spotify ID.
func (r *SpotifyResolver) Resolve(ctx context.Context, title, artist string) (funnel.Links, error) {
	query := fmt.Sprintf("track:%s artist:%s", title, artist)
	result, err := r.api.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(1))
	if err != nil {
		return funnel.Links{}, fmt.Errorf("searching spotify: %w", err)
	}
	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return funnel.Links{}, fmt.Errorf("%w: %q by %q on spotify", ErrNoMatch, title, artist)
	}
	return funnel.Links{SpotifyID: string(result.Tracks.Tracks[0].ID)}, nil
}
