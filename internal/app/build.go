package app

import (
	"context"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/config"
	"github.com/naurunnahansa/voicebridge/internal/httpapi"
	"github.com/naurunnahansa/voicebridge/internal/observability"
	"github.com/naurunnahansa/voicebridge/internal/provider/bland"
	"github.com/naurunnahansa/voicebridge/internal/provider/ultravox"
	"github.com/naurunnahansa/voicebridge/internal/provider/vapi"
	"github.com/naurunnahansa/voicebridge/internal/registry"
	"github.com/naurunnahansa/voicebridge/internal/search"
	"github.com/naurunnahansa/voicebridge/internal/tools"
)

// BuildResult bundles the wired components for the server binary.
type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Calls    *registry.Manager
	Metrics  *observability.Metrics
	Executor *tools.Executor
}

// ultravoxInitiator pins the declared tool set at build time so every call
// created through the HTTP surface advertises the same tools.
type ultravoxInitiator struct {
	client *ultravox.Client
	tools  []string
}

func (u ultravoxInitiator) Initiate(ctx context.Context, req call.InitiateRequest) (call.Credential, error) {
	return u.client.Initiate(ctx, req, u.tools)
}

func (u ultravoxInitiator) Terminate(ctx context.Context, id string) error {
	return u.client.Terminate(ctx, id)
}

// Build wires config into provider clients, the tool executor, the call
// ledger and the HTTP surface. Providers without credentials are simply not
// registered; the API reports the configured set on /readyz.
func Build(cfg config.Config) *BuildResult {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	calls := registry.NewManager(cfg.CallInactivityTimeout)
	calls.SetExpireHook(func(e *registry.Entry) {
		metrics.CallEvents.WithLabelValues(string(e.Provider), "expired").Inc()
		metrics.ActiveCalls.Set(float64(calls.ActiveCount()))
	})

	searcher := search.NewClient(search.Config{
		BaseURL: cfg.SearchServiceURL,
		APIKey:  cfg.SearchAPIKey,
	})

	executor := tools.NewExecutor()
	executor.SetMetrics(metrics)
	tools.RegisterBuiltins(executor, searcher)

	initiators := map[call.Provider]httpapi.Initiator{}

	if cfg.BlandAPIKey != "" {
		initiators[call.ProviderBland] = bland.NewClient(bland.Config{
			APIKey:     cfg.BlandAPIKey,
			AgentID:    cfg.BlandAgentID,
			APIBaseURL: cfg.BlandAPIBaseURL,
			WSBaseURL:  cfg.BlandWSBaseURL,
		})
	}
	if cfg.VapiAPIKey != "" {
		initiators[call.ProviderVapi] = vapi.NewClient(vapi.Config{
			APIKey:              cfg.VapiAPIKey,
			APIBaseURL:          cfg.VapiAPIBaseURL,
			Model:               cfg.VapiModel,
			Voice:               cfg.VapiVoice,
			DefaultSystemPrompt: cfg.DefaultSystemPrompt,
			WebhookURL:          cfg.VapiWebhookURL,
			WebhookSecret:       cfg.VapiWebhookSecret,
		})
	}
	if cfg.UltravoxAPIKey != "" {
		initiators[call.ProviderUltravox] = ultravoxInitiator{
			client: ultravox.NewClient(ultravox.Config{
				APIKey:              cfg.UltravoxAPIKey,
				APIBaseURL:          cfg.UltravoxAPIBaseURL,
				Model:               cfg.UltravoxModel,
				Voice:               cfg.UltravoxVoice,
				DefaultSystemPrompt: cfg.DefaultSystemPrompt,
			}),
			tools: executor.Names(),
		}
	}

	api := httpapi.New(cfg, initiators, searcher, calls, metrics)

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Calls:    calls,
		Metrics:  metrics,
		Executor: executor,
	}
}
