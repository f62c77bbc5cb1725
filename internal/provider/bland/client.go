package bland

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

// Config holds the Bland credentials. Bland calls run against a
// pre-provisioned agent; there is no runtime prompt, voice, or history.
type Config struct {
	APIKey     string
	AgentID    string
	APIBaseURL string
	WSBaseURL  string
	HTTPClient *http.Client
}

// Client creates and terminates Bland agent dial sessions.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.bland.ai"
	}
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://web.bland.ai"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{cfg: cfg}
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	DialID    string `json:"dial_id"`
	DialToken string `json:"dial_token"`
}

// Initiate authorizes one dial session against the configured agent and
// returns the session/dial/token triplet needed to open the channel.
func (c *Client) Initiate(ctx context.Context, req call.InitiateRequest) (call.Credential, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return call.Credential{}, &call.AuthError{Provider: call.ProviderBland}
	}
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		agentID = c.cfg.AgentID
	}
	if agentID == "" {
		return call.Credential{}, &call.InvalidRequestError{
			Provider: call.ProviderBland,
			Reason:   "agent id is required",
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.APIBaseURL, "/")+"/v1/agents/"+agentID+"/sessions",
		bytes.NewReader([]byte("{}")))
	if err != nil {
		return call.Credential{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return call.Credential{}, fmt.Errorf("bland create session: %w", err)
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return call.Credential{}, &call.UpstreamError{
			Provider:   call.ProviderBland,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			Retryable:  reliability.IsRetryableHTTPStatus(res.StatusCode),
		}
	}

	var out createSessionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return call.Credential{}, fmt.Errorf("decode bland response: %w", err)
	}
	return call.Credential{
		Provider:  call.ProviderBland,
		SessionID: out.SessionID,
		DialID:    out.DialID,
		DialToken: out.DialToken,
	}, nil
}

// DialURL builds the websocket endpoint for an authorized dial session.
func (c *Client) DialURL(cred call.Credential) string {
	return strings.TrimRight(c.cfg.WSBaseURL, "/") + "/v1/dial/" + cred.DialID +
		"?session=" + cred.SessionID + "&token=" + cred.DialToken
}

// Terminate best-effort ends a dial; "already gone" statuses are success.
func (c *Client) Terminate(ctx context.Context, dialID string) error {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return &call.AuthError{Provider: call.ProviderBland}
	}
	if strings.TrimSpace(dialID) == "" {
		return fmt.Errorf("dialId is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		strings.TrimRight(c.cfg.APIBaseURL, "/")+"/v1/dials/"+dialID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("bland terminate dial: %w", err)
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
		Provider:   call.ProviderBland,
		StatusCode: res.StatusCode,
		Retryable:  reliability.IsRetryableHTTPStatus(res.StatusCode),
	}
}
