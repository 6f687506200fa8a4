// Package api is the HTTP/JSON client for the remote authoritative store.
// It is a thin request/response layer: no retries, no queueing, no domain
// logic. The reconciler and migration importer decide what to call and when.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
	"github.com/calebmorris/go-song-funnel/internal/store"
)

const userAgent = "song-funnel/1.0"

// Sentinel errors. ErrUnavailable and ErrServer are transient: the caller's
// local state stays usable and the push is retried later. ErrConflict means
// another device moved the remote entity forward first.
var (
	// ErrUnavailable is returned when the server cannot be reached.
	ErrUnavailable = errors.New("server unavailable")

	// ErrServer is returned on a 5xx response.
	ErrServer = errors.New("server error")

	// ErrConflict is returned when an update carries an older version than
	// the remote store holds.
	ErrConflict = errors.New("version conflict")

	// ErrNotFound is returned on a 404 response.
	ErrNotFound = errors.New("not found")
)

// MigratePayload is the bulk import body for POST /migrate.
type MigratePayload struct {
	Themes      []funnel.Theme         `json:"themes"`
	Sessions    []session.Session      `json:"sessions"`
	UserProfile *store.Profile         `json:"userProfile,omitempty"`
	SavedSongs  []funnel.Song          `json:"savedSongs"`
	Settings    map[string]string      `json:"settings,omitempty"`
	Competitors []store.CompetitorNote `json:"competitorAnalysis,omitempty"`
}

// Client talks to the remote store.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a client for the remote store at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues one request and decodes the JSON response into out (when out is
// non-nil). Network failures map to ErrUnavailable, 5xx to ErrServer, 409 to
// ErrConflict, 404 to ErrNotFound.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", ErrServer, method, path, resp.StatusCode)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s %s", ErrConflict, method, path)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Health probes server availability (GET /health).
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// HasData reports whether the remote store already holds any data for this
// user (GET /has-data). Used to decide whether migration is offered.
func (c *Client) HasData(ctx context.Context) (bool, error) {
	var out struct {
		HasData bool `json:"hasData"`
	}
	if err := c.do(ctx, http.MethodGet, "/has-data", nil, &out); err != nil {
		return false, err
	}
	return out.HasData, nil
}

// ListThemes fetches all themes with their nested tier songs.
func (c *Client) ListThemes(ctx context.Context) ([]funnel.Theme, error) {
	var out []funnel.Theme
	if err := c.do(ctx, http.MethodGet, "/themes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTheme fetches one theme.
func (c *Client) GetTheme(ctx context.Context, id string) (funnel.Theme, error) {
	var out funnel.Theme
	if err := c.do(ctx, http.MethodGet, "/themes/"+id, nil, &out); err != nil {
		return funnel.Theme{}, err
	}
	return out, nil
}

// CreateTheme creates a theme, nested songs included.
func (c *Client) CreateTheme(ctx context.Context, t funnel.Theme) error {
	return c.do(ctx, http.MethodPost, "/themes", t, nil)
}

// UpdateTheme replaces a theme wholesale, nested songs included.
func (c *Client) UpdateTheme(ctx context.Context, t funnel.Theme) error {
	return c.do(ctx, http.MethodPut, "/themes/"+t.ID, t, nil)
}

// DeleteTheme removes a theme.
func (c *Client) DeleteTheme(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/themes/"+id, nil, nil)
}

// ListSessions fetches all sessions.
func (c *Client) ListSessions(ctx context.Context) ([]session.Session, error) {
	var out []session.Session
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSession creates a session with its nested conversation, working set,
// rejected and preference lists.
func (c *Client) CreateSession(ctx context.Context, s session.Session) error {
	return c.do(ctx, http.MethodPost, "/sessions", s, nil)
}

// UpdateSession replaces a session wholesale.
func (c *Client) UpdateSession(ctx context.Context, s session.Session) error {
	return c.do(ctx, http.MethodPut, "/sessions/"+s.ID, s, nil)
}

// DeleteSession removes a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+id, nil, nil)
}

// ListSavedSongs fetches the saved-songs library.
func (c *Client) ListSavedSongs(ctx context.Context) ([]funnel.Song, error) {
	var out []funnel.Song
	if err := c.do(ctx, http.MethodGet, "/saved-songs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutSavedSongs replaces the saved-songs library wholesale. The library is
// small and synced as one unit, so there is no per-song endpoint.
func (c *Client) PutSavedSongs(ctx context.Context, songs []funnel.Song) error {
	if songs == nil {
		songs = []funnel.Song{}
	}
	return c.do(ctx, http.MethodPut, "/saved-songs", songs, nil)
}

// Migrate bulk-imports pre-existing local data (POST /migrate). The server
// upserts idempotently, so retrying a partially failed migration is safe.
func (c *Client) Migrate(ctx context.Context, payload MigratePayload) error {
	return c.do(ctx, http.MethodPost, "/migrate", payload, nil)
}
