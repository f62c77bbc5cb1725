package call

import "fmt"

// AuthError means the server-held secret for a provider is missing. Fatal,
// surfaced to the caller, never retried.
type AuthError struct {
	Provider Provider
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: server API key is not configured", e.Provider)
}

// InvalidRequestError is a caller mistake detected before any provider
// request is made, such as a required parameter that was never supplied.
type InvalidRequestError struct {
	Provider Provider
	Reason   string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Reason)
}

// UpstreamError is a non-2xx response from a provider or the search
// collaborator. The body is carried verbatim; the caller decides whether to
// try again (Retryable is a classification hint, not an instruction).
type UpstreamError struct {
	Provider   Provider
	StatusCode int
	Body       string
	Retryable  bool
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Body)
}
