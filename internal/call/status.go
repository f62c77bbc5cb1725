package call

import "strings"

// Status is the canonical connection/activity state exposed to callers,
// independent of which provider is active.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusListening    Status = "listening"
	StatusThinking     Status = "thinking"
	StatusSpeaking     Status = "speaking"
	StatusError        Status = "error"
)

// StatusInfo pairs a canonical status with a human-readable label.
type StatusInfo struct {
	Status Status
	Label  string
}

// Live reports whether a status represents an open channel.
func (s Status) Live() bool {
	switch s {
	case StatusConnected, StatusListening, StatusThinking, StatusSpeaking:
		return true
	default:
		return false
	}
}

var blandStatuses = map[string]StatusInfo{
	"initializing":   {StatusConnecting, "Connecting"},
	"connecting":     {StatusConnecting, "Connecting"},
	"connected":      {StatusConnected, "Connected"},
	"idle":           {StatusConnected, "Connected"},
	"user_speaking":  {StatusListening, "Listening"},
	"processing":     {StatusThinking, "Thinking"},
	"agent_speaking": {StatusSpeaking, "Speaking"},
	"completed":      {StatusDisconnected, "Call ended"},
	"disconnected":   {StatusDisconnected, "Disconnected"},
	"error":          {StatusError, "Error"},
}

var vapiStatuses = map[string]StatusInfo{
	"queued":             {StatusConnecting, "Connecting"},
	"ringing":            {StatusConnecting, "Connecting"},
	"connecting":         {StatusConnecting, "Connecting"},
	"in-progress":        {StatusConnected, "Connected"},
	"call-start":         {StatusConnected, "Connected"},
	"speech-start":       {StatusListening, "Listening"},
	"speech-end":         {StatusThinking, "Thinking"},
	"assistant-speaking": {StatusSpeaking, "Speaking"},
	"forwarding":         {StatusConnected, "Connected"},
	"call-end":           {StatusDisconnected, "Call ended"},
	"ended":              {StatusDisconnected, "Call ended"},
	"error":              {StatusError, "Error"},
}

var ultravoxStatuses = map[string]StatusInfo{
	"disconnected":  {StatusDisconnected, "Disconnected"},
	"disconnecting": {StatusDisconnected, "Disconnecting"},
	"connecting":    {StatusConnecting, "Connecting"},
	"idle":          {StatusConnected, "Connected"},
	"listening":     {StatusListening, "Listening"},
	"thinking":      {StatusThinking, "Thinking"},
	"speaking":      {StatusSpeaking, "Speaking"},
	"error":         {StatusError, "Error"},
}

// NormalizeStatus maps a raw provider state token onto the canonical
// enumeration. The tables are total for every token the providers emit;
// anything unrecognized falls back to a connected/"Unknown status" pair
// rather than failing, since unknown tokens only show up mid-call.
func NormalizeStatus(p Provider, raw string) StatusInfo {
	key := strings.ToLower(strings.TrimSpace(raw))
	var table map[string]StatusInfo
	switch p {
	case ProviderBland:
		table = blandStatuses
	case ProviderVapi:
		table = vapiStatuses
	case ProviderUltravox:
		table = ultravoxStatuses
	}
	if info, ok := table[key]; ok {
		return info
	}
	return StatusInfo{StatusConnected, "Unknown status"}
}
