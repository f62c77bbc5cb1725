package call

import (
	"fmt"
	"strings"
)

// Provider identifies one of the supported realtime voice platforms.
type Provider string

const (
	ProviderBland    Provider = "bland"
	ProviderVapi     Provider = "vapi"
	ProviderUltravox Provider = "ultravox"
)

// ParseProvider validates a provider name coming from a request or flag.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderBland:
		return ProviderBland, nil
	case ProviderVapi:
		return ProviderVapi, nil
	case ProviderUltravox:
		return ProviderUltravox, nil
	default:
		return "", fmt.Errorf("unknown provider: %q", s)
	}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TranscriptEntry is one normalized line of conversation, in arrival order.
type TranscriptEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Message is a {role, content} pair of prior conversation history handed to a
// provider at call creation time.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Credential is the short-lived bundle a provider issues for opening one live
// channel. Bland fills the session/dial triplet; Vapi and Ultravox fill
// callId + joinUrl. Never persisted, never reused across sessions.
type Credential struct {
	Provider  Provider `json:"provider"`
	SessionID string   `json:"sessionId,omitempty"`
	DialID    string   `json:"dialId,omitempty"`
	DialToken string   `json:"dialToken,omitempty"`
	CallID    string   `json:"callId,omitempty"`
	JoinURL   string   `json:"joinUrl,omitempty"`
}

// InitiateRequest carries the provider-agnostic call creation parameters.
// AgentID applies to providers with pre-provisioned agents (bland); the
// prompt/voice/model fields apply to providers configured at call time.
type InitiateRequest struct {
	AgentID      string
	SystemPrompt string
	Voice        string
	Model        string
	Temperature  *float64
	Messages     []Message
}

// ToolInvocation is one request from the remote model to run a local tool.
// It exists only for the duration of the call round trip.
type ToolInvocation struct {
	ToolName     string         `json:"toolName"`
	Parameters   map[string]any `json:"parameters"`
	InvocationID string         `json:"invocationId"`
}

// Snapshot is the controller's read-projection of the active call session.
// It is replaced wholesale on every update, never mutated in place.
type Snapshot struct {
	Provider     Provider          `json:"provider"`
	Status       Status            `json:"status"`
	StatusLabel  string            `json:"statusLabel"`
	IsConnecting bool              `json:"isConnecting"`
	IsConnected  bool              `json:"isConnected"`
	Muted        bool              `json:"muted"`
	Transcripts  []TranscriptEntry `json:"transcripts"`
	Err          string            `json:"error,omitempty"`
}

// NewSnapshot returns the initial state for a provider: disconnected, empty
// transcript, no error.
func NewSnapshot(p Provider) Snapshot {
	return Snapshot{
		Provider:    p,
		Status:      StatusDisconnected,
		StatusLabel: "Disconnected",
	}
}
