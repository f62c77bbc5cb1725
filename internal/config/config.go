package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice bridge. Everything is
// read once at startup; there is no hot reload.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	// Optional shared bearer token for the inbound /session and /search
	// surface. Empty disables the check (local development).
	AuthToken string

	// Default provider used by clients that do not pick one explicitly.
	Provider string

	DefaultSystemPrompt string

	BlandAPIKey     string
	BlandAgentID    string
	BlandAPIBaseURL string
	BlandWSBaseURL  string

	VapiAPIKey        string
	VapiAPIBaseURL    string
	VapiModel         string
	VapiVoice         string
	VapiWebhookURL    string
	VapiWebhookSecret string

	UltravoxAPIKey     string
	UltravoxAPIBaseURL string
	UltravoxModel      string
	UltravoxVoice      string

	SearchServiceURL string
	SearchAPIKey     string

	CallInactivityTimeout time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "voicebridge"),
		AuthToken:        trimmedEnv("APP_AUTH_TOKEN"),
		Provider:         envOrDefault("VOICE_PROVIDER", "ultravox"),

		DefaultSystemPrompt: envOrDefault("DEFAULT_SYSTEM_PROMPT",
			"You are a friendly and helpful voice assistant. Keep your responses concise and conversational."),

		BlandAPIKey:     trimmedEnv("BLAND_API_KEY"),
		BlandAgentID:    trimmedEnv("BLAND_AGENT_ID"),
		BlandAPIBaseURL: envOrDefault("BLAND_API_BASE_URL", "https://api.bland.ai"),
		BlandWSBaseURL:  envOrDefault("BLAND_WS_BASE_URL", "wss://web.bland.ai"),

		VapiAPIKey:        trimmedEnv("VAPI_API_KEY"),
		VapiAPIBaseURL:    envOrDefault("VAPI_API_BASE_URL", "https://api.vapi.ai"),
		VapiModel:         envOrDefault("VAPI_MODEL", "gpt-4o-mini"),
		VapiVoice:         envOrDefault("VAPI_VOICE", "jennifer"),
		VapiWebhookURL:    trimmedEnv("VAPI_WEBHOOK_URL"),
		VapiWebhookSecret: trimmedEnv("VAPI_WEBHOOK_SECRET"),

		UltravoxAPIKey:     trimmedEnv("ULTRAVOX_API_KEY"),
		UltravoxAPIBaseURL: envOrDefault("ULTRAVOX_API_BASE_URL", "https://api.ultravox.ai"),
		UltravoxModel:      envOrDefault("ULTRAVOX_MODEL", "fixie-ai/ultravox"),
		UltravoxVoice:      envOrDefault("ULTRAVOX_VOICE", "Mark"),

		SearchServiceURL: trimmedEnv("SEARCH_SERVICE_URL"),
		SearchAPIKey:     trimmedEnv("SEARCH_API_KEY"),

		ShutdownTimeout:       15 * time.Second,
		CallInactivityTimeout: 5 * time.Minute,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CallInactivityTimeout, err = durationFromEnv("APP_CALL_INACTIVITY_TIMEOUT", cfg.CallInactivityTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.CallInactivityTimeout < 10*time.Second {
		return Config{}, fmt.Errorf("APP_CALL_INACTIVITY_TIMEOUT must be at least 10s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
