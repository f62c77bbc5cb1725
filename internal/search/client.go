package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/naurunnahansa/voicebridge/internal/reliability"
)

// Result is one hit from the search collaborator.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response is the collaborator's summarized answer plus raw hits.
type Response struct {
	Summary string   `json:"summary"`
	Results []Result `json:"results"`
}

type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Client talks to the external web-search collaborator. The collaborator is a
// black box behind one POST endpoint; this client does no retrying.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{cfg: cfg}
}

// Configured reports whether a collaborator endpoint is set.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.BaseURL) != ""
}

// Search runs one query and returns the summarized response.
func (c *Client) Search(ctx context.Context, query string) (Response, error) {
	if !c.Configured() {
		return Response{}, fmt.Errorf("search collaborator is not configured")
	}
	if strings.TrimSpace(query) == "" {
		return Response{}, fmt.Errorf("query is required")
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/search", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Response{}, fmt.Errorf("search upstream status %d (retryable=%v): %s",
			res.StatusCode, reliability.IsRetryableHTTPStatus(res.StatusCode), strings.TrimSpace(string(raw)))
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("decode search response: %w", err)
	}
	return out, nil
}
