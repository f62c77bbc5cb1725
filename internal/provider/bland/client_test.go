package bland

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/naurunnahansa/voicebridge/internal/call"
)

func TestInitiateReturnsTriplet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agents/agt-1/sessions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "sk-bland" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"session_id":"s1","dial_id":"d1","dial_token":"t1"}`))
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "sk-bland", APIBaseURL: ts.URL})
	cred, err := c.Initiate(context.Background(), call.InitiateRequest{AgentID: "agt-1"})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if cred.SessionID != "s1" || cred.DialID != "d1" || cred.DialToken != "t1" {
		t.Fatalf("cred = %+v", cred)
	}
	if cred.Provider != call.ProviderBland {
		t.Fatalf("provider = %v", cred.Provider)
	}
}

func TestInitiateMissingKeyIsAuthError(t *testing.T) {
	c := NewClient(Config{AgentID: "agt-1"})
	_, err := c.Initiate(context.Background(), call.InitiateRequest{})
	var authErr *call.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Initiate() error = %v, want AuthError", err)
	}
}

func TestInitiateMissingAgentIsInvalidRequest(t *testing.T) {
	c := NewClient(Config{APIKey: "sk-bland"})
	_, err := c.Initiate(context.Background(), call.InitiateRequest{})
	var invalidErr *call.InvalidRequestError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("Initiate() error = %v, want InvalidRequestError", err)
	}
}

func TestInitiateUpstreamErrorCarriesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "agent not found", http.StatusUnprocessableEntity)
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "sk-bland", APIBaseURL: ts.URL, AgentID: "agt-1"})
	_, err := c.Initiate(context.Background(), call.InitiateRequest{})
	var upErr *call.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("Initiate() error = %v, want UpstreamError", err)
	}
	if upErr.StatusCode != http.StatusUnprocessableEntity || upErr.Body != "agent not found" {
		t.Fatalf("upstream error = %+v", upErr)
	}
}

func TestTerminateToleratesGoneCall(t *testing.T) {
	for _, code := range []int{404, 410, 425} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		}))
		c := NewClient(Config{APIKey: "sk-bland", APIBaseURL: ts.URL})
		if err := c.Terminate(context.Background(), "d1"); err != nil {
			t.Errorf("Terminate() with %d = %v, want nil", code, err)
		}
		ts.Close()
	}
}

func TestTerminateSurfacesRealFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(Config{APIKey: "sk-bland", APIBaseURL: ts.URL})
	if err := c.Terminate(context.Background(), "d1"); err == nil {
		t.Fatalf("Terminate() expected error for 500")
	}
}
