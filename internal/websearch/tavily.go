// Package websearch wraps the Tavily search API. The /search endpoint
// passes Tavily's response through to callers; the RAG pipeline uses the
// condensed context form.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTavilyBaseURL = "https://api.tavily.com"

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("web search not configured: TAVILY_API_KEY is not set")

// Result is a single Tavily search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is the Tavily search response.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Options tunes a single search. Zero values fall back to 5 results at
// basic depth.
type Options struct {
	MaxResults  int
	SearchDepth string
}

func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = 5
	}
	if o.SearchDepth == "" {
		o.SearchDepth = "basic"
	}
	return o
}

// Client calls the Tavily search API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Tavily client. Returns nil if apiKey is empty;
// callers treat a nil client as the feature being disabled.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultTavilyBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

// Search runs a web search and returns the parsed response.
func (c *Client) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	opts = opts.withDefaults()

	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  opts.MaxResults,
		SearchDepth: opts.SearchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tavily request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tavily response: %w", err)
	}
	return &result, nil
}

// SearchContext condenses search results into a text block suitable for
// inclusion in a prompt, bounded to roughly maxTokens (at ~4 characters
// per token). maxTokens <= 0 means unbounded.
func (c *Client) SearchContext(ctx context.Context, query string, maxTokens int) (string, error) {
	resp, err := c.Search(ctx, query, Options{})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if resp.Answer != "" {
		sb.WriteString(resp.Answer)
		sb.WriteString("\n\n")
	}
	for _, r := range resp.Results {
		sb.WriteString(r.Title)
		sb.WriteString(" (")
		sb.WriteString(r.URL)
		sb.WriteString(")\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n\n")
	}

	text := strings.TrimSpace(sb.String())
	if maxTokens > 0 {
		if limit := maxTokens * 4; len(text) > limit {
			text = text[:limit]
		}
	}
	return text, nil
}
