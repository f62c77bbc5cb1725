package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/config"
	"github.com/naurunnahansa/voicebridge/internal/observability"
	"github.com/naurunnahansa/voicebridge/internal/registry"
	"github.com/naurunnahansa/voicebridge/internal/search"
)

type fakeInitiator struct {
	cred          call.Credential
	initiateErr   error
	terminateErr  error
	lastRequest   call.InitiateRequest
	terminatedIDs []string
}

func (f *fakeInitiator) Initiate(_ context.Context, req call.InitiateRequest) (call.Credential, error) {
	f.lastRequest = req
	if f.initiateErr != nil {
		return call.Credential{}, f.initiateErr
	}
	return f.cred, nil
}

func (f *fakeInitiator) Terminate(_ context.Context, id string) error {
	f.terminatedIDs = append(f.terminatedIDs, id)
	return f.terminateErr
}

type fakeSearcher struct {
	res search.Response
	err error
}

func (f *fakeSearcher) Search(_ context.Context, _ string) (search.Response, error) {
	if f.err != nil {
		return search.Response{}, f.err
	}
	return f.res, nil
}

func newTestServer(t *testing.T, cfg config.Config, init *fakeInitiator, searcher Searcher) (*Server, *registry.Manager) {
	t.Helper()
	calls := registry.NewManager(time.Minute)
	initiators := map[call.Provider]Initiator{}
	if init != nil {
		initiators[call.ProviderUltravox] = init
	}
	metrics := observability.NewMetrics("test_httpapi_" + strings.ReplaceAll(t.Name(), "/", "_"))
	return New(cfg, initiators, searcher, calls, metrics), calls
}

func TestCreateSession(t *testing.T) {
	init := &fakeInitiator{cred: call.Credential{CallID: "c-1", JoinURL: "wss://example.test/join"}}
	srv, calls := newTestServer(t, config.Config{}, init, nil)

	temp := 0.4
	body, _ := json.Marshal(createSessionRequest{
		Provider:     "ultravox",
		SystemPrompt: "be brief",
		Temperature:  &temp,
		Messages:     []call.Message{{Role: string(call.RoleUser), Content: "hi"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/session", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var cred call.Credential
	if err := json.NewDecoder(rec.Body).Decode(&cred); err != nil {
		t.Fatalf("decode credential: %v", err)
	}
	if cred.CallID != "c-1" || cred.JoinURL != "wss://example.test/join" {
		t.Errorf("credential = %+v, want passthrough of fake credential", cred)
	}
	if init.lastRequest.SystemPrompt != "be brief" {
		t.Errorf("systemPrompt = %q, want %q", init.lastRequest.SystemPrompt, "be brief")
	}
	if init.lastRequest.Temperature == nil || *init.lastRequest.Temperature != 0.4 {
		t.Errorf("temperature not forwarded: %+v", init.lastRequest.Temperature)
	}
	if calls.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", calls.ActiveCount())
	}
}

func TestCreateSessionUnknownProvider(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, &fakeInitiator{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"provider":"nope"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreateSessionInvalidRequest(t *testing.T) {
	init := &fakeInitiator{initiateErr: &call.InvalidRequestError{
		Provider: call.ProviderUltravox,
		Reason:   "agent id is required",
	}}
	srv, _ := newTestServer(t, config.Config{}, init, nil)

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"provider":"ultravox"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "invalid_request" {
		t.Errorf("code = %q, want %q", resp.Code, "invalid_request")
	}
}

func TestCreateSessionUpstreamError(t *testing.T) {
	init := &fakeInitiator{initiateErr: &call.UpstreamError{
		Provider:   call.ProviderUltravox,
		StatusCode: http.StatusBadGateway,
		Body:       `{"detail":"capacity exhausted"}`,
	}}
	srv, _ := newTestServer(t, config.Config{}, init, nil)

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"provider":"ultravox"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if !strings.Contains(resp.Error, "capacity exhausted") {
		t.Errorf("error = %q, want upstream body preserved", resp.Error)
	}
}

func TestAuthToken(t *testing.T) {
	cfg := config.Config{AuthToken: "secret"}
	init := &fakeInitiator{cred: call.Credential{CallID: "c-2"}}
	srv, _ := newTestServer(t, cfg, init, nil)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"provider":"ultravox"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"provider":"ultravox"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz should not require auth: status = %d", rec.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	init := &fakeInitiator{cred: call.Credential{CallID: "c-3"}}
	srv, calls := newTestServer(t, config.Config{}, init, nil)
	router := srv.Router()

	calls.Track(call.ProviderUltravox, "c-3")

	req := httptest.NewRequest(http.MethodDelete, "/session?provider=ultravox&callId=c-3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if len(init.terminatedIDs) != 1 || init.terminatedIDs[0] != "c-3" {
		t.Errorf("terminatedIDs = %v, want [c-3]", init.terminatedIDs)
	}
	if calls.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", calls.ActiveCount())
	}
}

func TestDeleteSessionMissingID(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, &fakeInitiator{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/session?provider=ultravox", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeleteSessionTerminateFailureStillEnds(t *testing.T) {
	init := &fakeInitiator{terminateErr: errors.New("upstream says no")}
	srv, calls := newTestServer(t, config.Config{}, init, nil)

	calls.Track(call.ProviderUltravox, "c-4")

	req := httptest.NewRequest(http.MethodDelete, "/session?provider=ultravox&callId=c-4", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if calls.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0 after failed terminate", calls.ActiveCount())
	}
}

func TestSearch(t *testing.T) {
	searcher := &fakeSearcher{res: search.Response{
		Summary: "the capital of France is Paris",
		Results: []search.Result{{Title: "Paris", URL: "https://example.test/paris"}},
	}}
	srv, _ := newTestServer(t, config.Config{}, nil, searcher)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"capital of France"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var res search.Response
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Summary != searcher.res.Summary {
		t.Errorf("summary = %q, want %q", res.Summary, searcher.res.Summary)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, nil, &fakeSearcher{})

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"  "}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSearchUpstreamFailure(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, nil, &fakeSearcher{err: errors.New("search backend down")})

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"anything"}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}
