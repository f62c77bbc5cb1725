package ultravox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/reliability"
)

// Config holds the Ultravox credentials and call defaults.
type Config struct {
	APIKey              string
	APIBaseURL          string
	Model               string
	Voice               string
	DefaultSystemPrompt string
	HTTPClient          *http.Client
}

// Client creates and terminates Ultravox calls over the REST surface.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.ultravox.ai"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "fixie-ai/ultravox"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{cfg: cfg}
}

type selectedTool struct {
	TemporaryTool temporaryTool `json:"temporaryTool"`
}

type temporaryTool struct {
	ModelToolName string         `json:"modelToolName"`
	Description   string         `json:"description"`
	Client        map[string]any `json:"client"`
}

type createCallRequest struct {
	SystemPrompt    string         `json:"systemPrompt"`
	Model           string         `json:"model"`
	Voice           string         `json:"voice,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	InitialMessages []call.Message `json:"initialMessages,omitempty"`
	SelectedTools   []selectedTool `json:"selectedTools,omitempty"`
}

type createCallResponse struct {
	CallID  string `json:"callId"`
	JoinURL string `json:"joinUrl"`
}

var toolDescriptions = map[string]string{
	"webSearch":    "Search the web for up-to-date information and return a short summary.",
	"staticAnswer": "Answer questions about what this assistant is and can do.",
}

// Initiate creates one Ultravox call and returns its join credentials. The
// tool names must match the locally registered executor so that every
// invocation the model makes has a handler.
func (c *Client) Initiate(ctx context.Context, req call.InitiateRequest, toolNames []string) (call.Credential, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return call.Credential{}, &call.AuthError{Provider: call.ProviderUltravox}
	}

	prompt := strings.TrimSpace(req.SystemPrompt)
	if prompt == "" {
		prompt = c.cfg.DefaultSystemPrompt
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.Model
	}
	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = c.cfg.Voice
	}

	body := createCallRequest{
		SystemPrompt: prompt,
		Model:        model,
		Voice:        voice,
		Temperature:  req.Temperature,
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		body.InitialMessages = append(body.InitialMessages, m)
	}
	for _, name := range toolNames {
		body.SelectedTools = append(body.SelectedTools, selectedTool{
			TemporaryTool: temporaryTool{
				ModelToolName: name,
				Description:   toolDescriptions[name],
				Client:        map[string]any{},
			},
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return call.Credential{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.APIBaseURL, "/")+"/api/calls", bytes.NewReader(payload))
	if err != nil {
		return call.Credential{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return call.Credential{}, fmt.Errorf("ultravox create call: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return call.Credential{}, &call.UpstreamError{
			Provider:   call.ProviderUltravox,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			Retryable:  reliability.IsRetryableHTTPStatus(res.StatusCode),
		}
	}

	var out createCallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return call.Credential{}, fmt.Errorf("decode ultravox response: %w", err)
	}
	return call.Credential{
		Provider: call.ProviderUltravox,
		CallID:   out.CallID,
		JoinURL:  out.JoinURL,
	}, nil
}

// Terminate best-effort deletes a call. Codes meaning "already gone" count
// as success since the client may have ended the call first.
func (c *Client) Terminate(ctx context.Context, callID string) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return &call.AuthError{Provider: call.ProviderUltravox}
	}
	if strings.TrimSpace(callID) == "" {
		return fmt.Errorf("callId is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		strings.TrimRight(c.cfg.APIBaseURL, "/")+"/api/calls/"+callID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("ultravox terminate call: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	if reliability.IsGoneHTTPStatus(res.StatusCode) {
		return nil
	}
	return &call.UpstreamError{
		Provider:   call.ProviderUltravox,
		StatusCode: res.StatusCode,
		Retryable:  reliability.IsRetryableHTTPStatus(res.StatusCode),
	}
}
