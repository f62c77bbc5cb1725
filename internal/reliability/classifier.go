package reliability

import "strings"

// IsRetryableHTTPStatus classifies retryable HTTP status codes. Nothing in
// the bridge retries automatically; this only labels upstream errors so the
// caller can decide.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsGoneHTTPStatus reports whether a terminate call hit a call that no longer
// exists or is not yet addressable. Best-effort termination treats these as
// success, since the client may have already hung up.
func IsGoneHTTPStatus(code int) bool {
	switch code {
	case 404, 410, 425:
		return true
	default:
		return false
	}
}

// Substrings of the dynamic-assistant provider's ordinary end-of-call signal,
// which it misroutes through the error event channel.
var benignTerminationMarkers = []string{
	"meeting has ended",
	"meeting ended",
	"call has ended",
	"ejection",
}

// IsBenignTermination reports whether an upstream error message is really a
// normal hangup. These must be swallowed, never surfaced as user errors.
func IsBenignTermination(detail string) bool {
	d := strings.ToLower(detail)
	for _, marker := range benignTerminationMarkers {
		if strings.Contains(d, marker) {
			return true
		}
	}
	return false
}
