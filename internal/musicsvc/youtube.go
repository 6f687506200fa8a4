package musicsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
)

const youtubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

// YouTubeResolver resolves songs via the YouTube Data API search endpoint.
type YouTubeResolver struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewYouTubeResolver creates a resolver using the given API key.
func NewYouTubeResolver(apiKey string) *YouTubeResolver {
	return &YouTubeResolver{
		apiKey:  apiKey,
		baseURL: youtubeSearchURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

// Resolve searches for the track and returns the top hit's video ID.
func (r *YouTubeResolver) Resolve(ctx context.Context, title, artist string) (funnel.Links, error) {
	params := url.Values{
		"part":       {"id"},
		"type":       {"video"},
		"maxResults": {"1"},
		"q":          {fmt.Sprintf("%s %s", title, artist)},
		"key":        {r.apiKey},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return funnel.Links{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return funnel.Links{}, fmt.Errorf("searching youtube: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return funnel.Links{}, fmt.Errorf("youtube search returned %d", resp.StatusCode)
	}

	var out youtubeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return funnel.Links{}, fmt.Errorf("decoding youtube response: %w", err)
	}
	if len(out.Items) == 0 || out.Items[0].ID.VideoID == "" {
		return funnel.Links{}, fmt.Errorf("%w: %q by %q on youtube", ErrNoMatch, title, artist)
	}
	return funnel.Links{YouTubeID: out.Items[0].ID.VideoID}, nil
}
