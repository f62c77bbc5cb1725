package vapi

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

// Config holds the Vapi credentials and assistant defaults. The assistant is
// assembled per call from the request, not pre-provisioned.
type Config struct {
	APIKey              string
	APIBaseURL          string
	Model               string
	Voice               string
	DefaultSystemPrompt string
	WebhookURL          string
	WebhookSecret       string
	HTTPClient          *http.Client
}

// Client creates and terminates Vapi web calls.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.vapi.ai"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{cfg: cfg}
}

type assistantModel struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Temperature *float64       `json:"temperature,omitempty"`
	Messages    []call.Message `json:"messages"`
}

type assistantVoice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type assistant struct {
	Model           assistantModel `json:"model"`
	Voice           assistantVoice `json:"voice"`
	ServerURL       string         `json:"serverUrl,omitempty"`
	ServerURLSecret string         `json:"serverUrlSecret,omitempty"`
}

type createCallRequest struct {
	Assistant assistant `json:"assistant"`
}

type createCallResponse struct {
	ID         string `json:"id"`
	WebCallURL string `json:"webCallUrl"`
}

// Initiate creates one web call with a dynamically assembled assistant. The
// system prompt is injected as the first message; prior history follows with
// empty-text messages dropped.
func (c *Client) Initiate(ctx context.Context, req call.InitiateRequest) (call.Credential, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return call.Credential{}, &call.AuthError{Provider: call.ProviderVapi}
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

	messages := []call.Message{{Role: "system", Content: prompt}}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m)
	}

	body := createCallRequest{
		Assistant: assistant{
			Model: assistantModel{
				Provider:    "openai",
				Model:       model,
				Temperature: req.Temperature,
				Messages:    messages,
			},
			Voice:           assistantVoice{Provider: "11labs", VoiceID: voice},
			ServerURL:       c.cfg.WebhookURL,
			ServerURLSecret: c.cfg.WebhookSecret,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return call.Credential{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.APIBaseURL, "/")+"/call/web", bytes.NewReader(payload))
	if err != nil {
		return call.Credential{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return call.Credential{}, fmt.Errorf("vapi create call: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return call.Credential{}, &call.UpstreamError{
			Provider:   call.ProviderVapi,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			Retryable:  reliability.IsRetryableHTTPStatus(res.StatusCode),
		}
	}

	var out createCallResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return call.Credential{}, fmt.Errorf("decode vapi response: %w", err)
	}
	return call.Credential{
		Provider: call.ProviderVapi,
		CallID:   out.ID,
		JoinURL:  out.WebCallURL,
	}, nil
}

// Terminate best-effort deletes a call; "already gone" statuses are success.
func (c *Client) Terminate(ctx context.Context, callID string) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return &call.AuthError{Provider: call.ProviderVapi}
	}
	if strings.TrimSpace(callID) == "" {
		return fmt.Errorf("callId is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		strings.TrimRight(c.cfg.APIBaseURL, "/")+"/call/"+callID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("vapi terminate call: %w", err)
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
		Provider:   call.ProviderVapi,
		StatusCode: res.StatusCode,
		Retryable:  reliability.IsRetryableHTTPStatus(res.StatusCode),
	}
}
