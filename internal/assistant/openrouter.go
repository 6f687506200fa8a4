package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/calebmorris/go-song-funnel/internal/funnel"
	"github.com/calebmorris/go-song-funnel/internal/session"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "anthropic/claude-3.5-sonnet"
)

// OpenRouterClient is a chat-completions implementation of Assistant.
type OpenRouterClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// Option configures an OpenRouterClient.
type Option func(*OpenRouterClient)

// WithModel selects the model.
func WithModel(model string) Option {
	return func(c *OpenRouterClient) {
		c.model = model
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *OpenRouterClient) {
		c.baseURL = u
	}
}

// NewOpenRouterClient creates a client with the given API key.
func NewOpenRouterClient(apiKey string, opts ...Option) *OpenRouterClient {
	c := &OpenRouterClient{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Suggest asks the model for song proposals for the theme, steering it away
// from rejected songs and toward learned preferences, and parses the JSON
// array it returns.
func (c *OpenRouterClient) Suggest(ctx context.Context, theme funnel.Theme, sess session.Session) ([]Proposal, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(theme, sess)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling assistant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("assistant returned %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("assistant returned no choices")
	}

	var proposals []Proposal
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &proposals); err != nil {
		return nil, fmt.Errorf("parsing proposals: %w", err)
	}
	return proposals, nil
}

const systemPrompt = `You suggest songs for a themed music competition. ` +
	`Respond with a JSON array of objects with "title", "artist" and "reason" fields and nothing else.`

func buildUserPrompt(theme funnel.Theme, sess session.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\n", theme.RawText)
	if theme.InterpretedText != "" {
		fmt.Fprintf(&b, "Interpretation: %s\n", theme.InterpretedText)
	}
	if len(sess.Rejected) > 0 {
		b.WriteString("Do not suggest these again:\n")
		for _, r := range sess.Rejected {
			fmt.Fprintf(&b, "- %s by %s (%s)\n", r.Title, r.Artist, r.Reason)
		}
	}
	if len(sess.Preferences) > 0 {
		b.WriteString("Keep in mind:\n")
		for _, p := range sess.Preferences {
			fmt.Fprintf(&b, "- %s\n", p.Text)
		}
	}
	b.WriteString("Suggest 5 songs.")
	return b.String()
}
