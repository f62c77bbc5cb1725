package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/config"
	"github.com/naurunnahansa/voicebridge/internal/controller"
	"github.com/naurunnahansa/voicebridge/internal/observability"
	"github.com/naurunnahansa/voicebridge/internal/policy"
	"github.com/naurunnahansa/voicebridge/internal/provider/bland"
	"github.com/naurunnahansa/voicebridge/internal/provider/ultravox"
	"github.com/naurunnahansa/voicebridge/internal/provider/vapi"
	"github.com/naurunnahansa/voicebridge/internal/search"
	"github.com/naurunnahansa/voicebridge/internal/tools"
)

type options struct {
	provider     string
	systemPrompt string
	voice        string
	model        string
	agentID      string
	redact       bool
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.provider, "provider", "", "voice provider (bland|vapi|ultravox); defaults to VOICE_PROVIDER")
	flag.StringVar(&opts.systemPrompt, "prompt", "", "system prompt override")
	flag.StringVar(&opts.voice, "voice", "", "voice id override")
	flag.StringVar(&opts.model, "model", "", "model override")
	flag.StringVar(&opts.agentID, "agent", "", "pre-provisioned agent id (bland)")
	flag.BoolVar(&opts.redact, "redact", false, "mask PII in printed transcripts")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	providerName := opts.provider
	if providerName == "" {
		providerName = cfg.Provider
	}
	provider, err := call.ParseProvider(providerName)
	if err != nil {
		log.Fatalf("%v", err)
	}

	systemPrompt := opts.systemPrompt
	if systemPrompt == "" {
		systemPrompt = cfg.DefaultSystemPrompt
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	searcher := search.NewClient(search.Config{
		BaseURL: cfg.SearchServiceURL,
		APIKey:  cfg.SearchAPIKey,
	})
	executor := tools.NewExecutor()
	executor.SetMetrics(metrics)
	tools.RegisterBuiltins(executor, searcher)

	ctrl := controller.New(provider, controller.DefaultFactory(controller.Config{
		Request: call.InitiateRequest{
			AgentID:      opts.agentID,
			SystemPrompt: systemPrompt,
			Voice:        opts.voice,
			Model:        opts.model,
		},
		Bland: bland.Config{
			APIKey:     cfg.BlandAPIKey,
			AgentID:    cfg.BlandAgentID,
			APIBaseURL: cfg.BlandAPIBaseURL,
			WSBaseURL:  cfg.BlandWSBaseURL,
		},
		Vapi: vapi.Config{
			APIKey:              cfg.VapiAPIKey,
			APIBaseURL:          cfg.VapiAPIBaseURL,
			Model:               cfg.VapiModel,
			Voice:               cfg.VapiVoice,
			DefaultSystemPrompt: cfg.DefaultSystemPrompt,
			WebhookURL:          cfg.VapiWebhookURL,
			WebhookSecret:       cfg.VapiWebhookSecret,
		},
		Ultravox: ultravox.Config{
			APIKey:              cfg.UltravoxAPIKey,
			APIBaseURL:          cfg.UltravoxAPIBaseURL,
			Model:               cfg.UltravoxModel,
			Voice:               cfg.UltravoxVoice,
			DefaultSystemPrompt: cfg.DefaultSystemPrompt,
		},
		Executor: executor,
	}))
	ctrl.SetMetrics(metrics)
	defer ctrl.Cleanup()

	snapshots, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	go printLoop(snapshots, opts.redact)

	ctx := context.Background()
	if err := ctrl.StartCall(ctx); err != nil {
		log.Fatalf("start call: %v", err)
	}

	fmt.Printf("provider: %s  (m = mute/unmute, q = quit)\n", provider)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-sigCh:
			ctrl.EndCall(ctx)
			return
		case line, ok := <-lines:
			if !ok {
				ctrl.EndCall(ctx)
				return
			}
			switch line {
			case "m":
				ctrl.ToggleMute()
			case "q":
				ctrl.EndCall(ctx)
				return
			}
		}
	}
}

// printLoop renders each snapshot delta: status line on changes, then any
// transcript entries not yet printed.
func printLoop(snapshots <-chan call.Snapshot, redact bool) {
	var lastStatus call.Status
	var lastLabel string
	printed := 0

	for snap := range snapshots {
		if snap.Status != lastStatus || snap.StatusLabel != lastLabel {
			lastStatus, lastLabel = snap.Status, snap.StatusLabel
			if snap.Err != "" {
				fmt.Printf("[%s] %s: %s\n", snap.Status, snap.StatusLabel, snap.Err)
			} else {
				fmt.Printf("[%s] %s\n", snap.Status, snap.StatusLabel)
			}
		}

		// Snapshot transcript models replace the whole list; start over when
		// it shrinks.
		if len(snap.Transcripts) < printed {
			printed = 0
		}
		for _, entry := range snap.Transcripts[printed:] {
			text := entry.Text
			if redact {
				text, _ = policy.RedactTranscript(text)
			}
			fmt.Printf("  %s: %s\n", entry.Role, text)
		}
		printed = len(snap.Transcripts)
	}
}
