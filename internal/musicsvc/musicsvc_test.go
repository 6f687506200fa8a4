package musicsvc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
)

type stubResolver struct {
	links funnel.Links
	err   error
}

func (s stubResolver) Resolve(context.Context, string, string) (funnel.Links, error) {
	return s.links, s.err
}

func TestResolveAll(t *testing.T) {
	song := funnel.Song{Title: "Thunder", Artist: "Imagine Dragons"}

	t.Run("merges results across services", func(t *testing.T) {
		links, err := ResolveAll(context.Background(), song,
			stubResolver{links: funnel.Links{SpotifyID: "sp-1"}},
			stubResolver{links: funnel.Links{YouTubeID: "yt-1"}},
		)
		if err != nil {
			t.Fatalf("ResolveAll: %v", err)
		}
		if links.SpotifyID != "sp-1" || links.YouTubeID != "yt-1" {
			t.Errorf("links = %+v", links)
		}
	})

	t.Run("no match is not an error", func(t *testing.T) {
		links, err := ResolveAll(context.Background(), song,
			stubResolver{err: ErrNoMatch},
			stubResolver{links: funnel.Links{YouTubeID: "yt-1"}},
		)
		if err != nil {
			t.Fatalf("ResolveAll: %v", err)
		}
		if links.YouTubeID != "yt-1" {
			t.Errorf("links = %+v", links)
		}
	})

	t.Run("real failures abort", func(t *testing.T) {
		wantErr := errors.New("rate limited")
		_, err := ResolveAll(context.Background(), song, stubResolver{err: wantErr})
		if !errors.Is(err, wantErr) {
			t.Fatalf("ResolveAll error = %v, want %v", err, wantErr)
		}
	})
}

func TestYouTubeResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "Thunder Imagine Dragons" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": map[string]string{"videoId": "abc123"}},
			},
		})
	}))
	defer srv.Close()

	r := &YouTubeResolver{
		apiKey:     "test-key",
		baseURL:    srv.URL,
		httpClient: &http.Client{Timeout: time.Second},
	}

	links, err := r.Resolve(context.Background(), "Thunder", "Imagine Dragons")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if links.YouTubeID != "abc123" {
		t.Errorf("YouTubeID = %q, want abc123", links.YouTubeID)
	}
}

func TestYouTubeResolverNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
	}))
	defer srv.Close()

	r := &YouTubeResolver{apiKey: "k", baseURL: srv.URL, httpClient: srv.Client()}
	_, err := r.Resolve(context.Background(), "Nothing", "Nobody")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("Resolve error = %v, want ErrNoMatch", err)
	}
}
