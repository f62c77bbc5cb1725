package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/config"
	"github.com/naurunnahansa/voicebridge/internal/observability"
	"github.com/naurunnahansa/voicebridge/internal/policy"
	"github.com/naurunnahansa/voicebridge/internal/registry"
	"github.com/naurunnahansa/voicebridge/internal/search"
)

// Initiator is the per-provider session initiation surface the server
// dispatches to.
type Initiator interface {
	Initiate(ctx context.Context, req call.InitiateRequest) (call.Credential, error)
	Terminate(ctx context.Context, id string) error
}

// Searcher is the slice of the search collaborator the /search route needs.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Response, error)
}

type Server struct {
	cfg        config.Config
	initiators map[call.Provider]Initiator
	searcher   Searcher
	calls      *registry.Manager
	metrics    *observability.Metrics
}

func New(cfg config.Config, initiators map[call.Provider]Initiator, searcher Searcher, calls *registry.Manager, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		initiators: initiators,
		searcher:   searcher,
		calls:      calls,
		metrics:    metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/session", s.handleCreateSession)
		r.Delete("/session", s.handleDeleteSession)
		r.Post("/search", s.handleSearch)
	})

	return r
}

// requireAuth checks the shared bearer token when one is configured. Full
// user authentication lives outside this service.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AuthToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header != "Bearer "+s.cfg.AuthToken {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_calls": s.calls.ActiveCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	providers := make([]string, 0, len(s.initiators))
	for p := range s.initiators {
		providers = append(providers, string(p))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"providers": providers,
	})
}

type createSessionRequest struct {
	Provider     string         `json:"provider"`
	AgentID      string         `json:"agentId,omitempty"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Voice        string         `json:"voice,omitempty"`
	Model        string         `json:"model,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	Messages     []call.Message `json:"messages,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	provider, err := call.ParseProvider(req.Provider)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown_provider", err.Error())
		return
	}
	initiator, ok := s.initiators[provider]
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown_provider", "provider not configured")
		return
	}

	started := time.Now()
	cred, err := initiator.Initiate(r.Context(), call.InitiateRequest{
		AgentID:      req.AgentID,
		SystemPrompt: req.SystemPrompt,
		Voice:        req.Voice,
		Model:        req.Model,
		Temperature:  req.Temperature,
		Messages:     req.Messages,
	})
	s.metrics.ObserveInitiateLatency(string(provider), time.Since(started))
	if err != nil {
		var invalidErr *call.InvalidRequestError
		if errors.As(err, &invalidErr) {
			respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		var authErr *call.AuthError
		if errors.As(err, &authErr) {
			s.metrics.ProviderErrors.WithLabelValues(string(provider), "auth").Inc()
			respondError(w, http.StatusInternalServerError, "auth_error", err.Error())
			return
		}
		var upErr *call.UpstreamError
		if errors.As(err, &upErr) {
			s.metrics.ProviderErrors.WithLabelValues(string(provider), "upstream").Inc()
			log.Printf("initiate failed: provider=%s status=%d body=%s", provider, upErr.StatusCode, policy.RedactSecrets(upErr.Body))
			respondError(w, http.StatusInternalServerError, "upstream_error", upErr.Body)
			return
		}
		s.metrics.ProviderErrors.WithLabelValues(string(provider), "internal").Inc()
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	trackID := cred.CallID
	if trackID == "" {
		trackID = cred.DialID
	}
	s.calls.Track(provider, trackID)
	s.metrics.ActiveCalls.Set(float64(s.calls.ActiveCount()))
	s.metrics.CallEvents.WithLabelValues(string(provider), "created").Inc()

	respondJSON(w, http.StatusOK, cred)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	provider, err := call.ParseProvider(r.URL.Query().Get("provider"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown_provider", err.Error())
		return
	}
	initiator, ok := s.initiators[provider]
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown_provider", "provider not configured")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("callId"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("dialId"))
	}
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing_id", "callId or dialId is required")
		return
	}

	// Best-effort: "already gone" is success, and a real failure still ends
	// the ledger entry so nothing lingers as active.
	if err := initiator.Terminate(r.Context(), id); err != nil {
		s.metrics.ProviderErrors.WithLabelValues(string(provider), "terminate").Inc()
	}
	s.calls.EndByCallID(id)
	s.metrics.ActiveCalls.Set(float64(s.calls.ActiveCount()))
	s.metrics.CallEvents.WithLabelValues(string(provider), "ended").Inc()

	respondJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

type searchRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}

	res, err := s.searcher.Search(r.Context(), req.Query)
	if err != nil {
		s.metrics.SearchRequests.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "search_failed", err.Error())
		return
	}
	s.metrics.SearchRequests.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, res)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
