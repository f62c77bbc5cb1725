package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/observability"
	"github.com/naurunnahansa/voicebridge/internal/policy"
)

// Handler runs one client-side tool invocation and returns the plain-text
// result handed back into the live session.
type Handler func(ctx context.Context, params map[string]any) (string, error)

// Executor is a registry of named callables the remote model may invoke
// mid-call. All registrations must complete before a live channel is opened;
// the adapters take the executor at construction so an invocation can never
// race the registry.
type Executor struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	metrics  *observability.Metrics
}

func NewExecutor() *Executor {
	return &Executor{handlers: make(map[string]Handler)}
}

// SetMetrics attaches the instrument set; each Execute outcome is counted.
func (e *Executor) SetMetrics(m *observability.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

func (e *Executor) count(tool, outcome string) {
	e.mu.RLock()
	m := e.metrics
	e.mu.RUnlock()
	if m != nil {
		m.ToolInvocations.WithLabelValues(tool, outcome).Inc()
	}
}

func (e *Executor) Register(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// Names returns the registered tool names in stable order, used to declare
// the tools at call creation time.
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches one invocation and always returns a string result. A
// handler error or panic is converted to a user-safe message; letting it
// propagate into the session would likely terminate the call.
func (e *Executor) Execute(ctx context.Context, inv call.ToolInvocation) (result string) {
	defer func() {
		if r := recover(); r != nil {
			e.count(inv.ToolName, "panic")
			result = fmt.Sprintf("The %s tool failed unexpectedly. Please try again.", inv.ToolName)
		}
	}()

	e.mu.RLock()
	h, ok := e.handlers[inv.ToolName]
	e.mu.RUnlock()
	if !ok {
		e.count(inv.ToolName, "unknown")
		return fmt.Sprintf("The tool %q is not available.", inv.ToolName)
	}

	if decision := policy.ScreenToolCall(inv.ToolName, inv.Parameters); decision.Blocked {
		e.count(inv.ToolName, "blocked")
		return decision.Reason
	}

	out, err := h(ctx, inv.Parameters)
	if err != nil {
		e.count(inv.ToolName, "error")
		return fmt.Sprintf("The %s tool failed. Please try again.", inv.ToolName)
	}
	e.count(inv.ToolName, "ok")
	return out
}
