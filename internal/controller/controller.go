package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/observability"
	"github.com/naurunnahansa/voicebridge/internal/provider/bland"
	"github.com/naurunnahansa/voicebridge/internal/provider/ultravox"
	"github.com/naurunnahansa/voicebridge/internal/provider/vapi"
	"github.com/naurunnahansa/voicebridge/internal/tools"
)

// AdapterFactory builds the session adapter for a provider, wiring its
// events into the given sink.
type AdapterFactory func(p call.Provider, sink call.Sink) (call.Adapter, error)

// Config assembles everything the default factory needs to build real
// provider adapters.
type Config struct {
	Request  call.InitiateRequest
	Bland    bland.Config
	Vapi     vapi.Config
	Ultravox ultravox.Config
	Executor *tools.Executor
}

// DefaultFactory builds live adapters against the real provider backends.
// The tool executor is handed to the tool-capable adapter at construction,
// before any channel can be opened.
func DefaultFactory(cfg Config) AdapterFactory {
	executor := cfg.Executor
	if executor == nil {
		executor = tools.NewExecutor()
	}
	return func(p call.Provider, sink call.Sink) (call.Adapter, error) {
		switch p {
		case call.ProviderBland:
			return bland.NewAdapter(bland.NewClient(cfg.Bland), cfg.Request, sink), nil
		case call.ProviderVapi:
			return vapi.NewAdapter(vapi.NewClient(cfg.Vapi), cfg.Request, sink), nil
		case call.ProviderUltravox:
			return ultravox.NewAdapter(ultravox.NewClient(cfg.Ultravox), executor, cfg.Request, sink), nil
		default:
			return nil, fmt.Errorf("unknown provider: %q", p)
		}
	}
}

// Controller is the single entry point presentation code uses. It selects
// the active adapter, forwards start/end/mute, and folds adapter events into
// one canonical snapshot. The snapshot is replaced wholesale on every update
// and fan-out happens from a dedicated dispatch goroutine, so observers are
// never notified from inside a state transition.
type Controller struct {
	factory AdapterFactory

	mu       sync.Mutex
	provider call.Provider
	adapters map[call.Provider]call.Adapter
	snap     call.Snapshot
	gens     map[call.Provider]uint64
	subs     map[int]chan call.Snapshot
	nextSub  int
	cleaned  bool
	metrics  *observability.Metrics

	updates chan call.Event
	done    chan struct{}
	once    sync.Once
}

func New(provider call.Provider, factory AdapterFactory) *Controller {
	c := &Controller{
		factory:  factory,
		provider: provider,
		adapters: make(map[call.Provider]call.Adapter),
		snap:     call.NewSnapshot(provider),
		gens:     make(map[call.Provider]uint64),
		subs:     make(map[int]chan call.Snapshot),
		updates:  make(chan call.Event, 256),
		done:     make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// StartCall delegates to the active adapter. The adapter enforces the
// idempotency guard; the controller only guarantees it never constructs a
// second adapter mid-call.
func (c *Controller) StartCall(ctx context.Context) error {
	c.mu.Lock()
	adapter, err := c.adapterLocked(c.provider)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	adapter.Start(ctx)
	return nil
}

// EndCall delegates teardown and then unconditionally resets the canonical
// state, so no stale connected UI state survives a failed hangup.
func (c *Controller) EndCall(ctx context.Context) {
	c.mu.Lock()
	adapter := c.adapters[c.provider]
	provider := c.provider
	c.mu.Unlock()
	if adapter != nil {
		adapter.End(ctx)
	}
	c.send(call.Event{Type: call.EventEnded, Provider: provider})
}

func (c *Controller) ToggleMute() {
	c.mu.Lock()
	adapter := c.adapters[c.provider]
	c.mu.Unlock()
	if adapter != nil {
		adapter.ToggleMute()
	}
}

// SetProvider switches the active backend. Ending the current call first is
// the caller's responsibility; switching mid-call is refused rather than
// silently handled.
func (c *Controller) SetProvider(p call.Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.IsConnecting || c.snap.IsConnected {
		return fmt.Errorf("end the active call before switching providers")
	}
	c.provider = p
	c.snap = call.NewSnapshot(p)
	return nil
}

// SetMetrics attaches the instrument set; folded transcript entries are
// counted by provider and role.
func (c *Controller) SetMetrics(m *observability.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

func (c *Controller) Provider() call.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.provider
}

// Snapshot returns a copy of the canonical state.
func (c *Controller) Snapshot() call.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSnapshot(c.snap)
}

// Subscribe registers a snapshot observer. The returned cancel func must be
// called when the observer goes away. Slow observers may miss intermediate
// snapshots; every delivered snapshot is complete, so that is safe.
func (c *Controller) Subscribe() (<-chan call.Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan call.Snapshot, 16)
	if c.cleaned {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Cleanup disposes the controller: every instantiated adapter is torn down,
// not just the active one, since adapters may hold open connections from a
// prior provider switch.
func (c *Controller) Cleanup() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		adapters := make([]call.Adapter, 0, len(c.adapters))
		for _, a := range c.adapters {
			adapters = append(adapters, a)
		}
		c.cleaned = true
		subs := c.subs
		c.subs = make(map[int]chan call.Snapshot)
		c.mu.Unlock()

		for _, a := range adapters {
			a.Cleanup()
		}
		for _, sub := range subs {
			close(sub)
		}
	})
}

func (c *Controller) adapterLocked(p call.Provider) (call.Adapter, error) {
	if a, ok := c.adapters[p]; ok {
		return a, nil
	}
	a, err := c.factory(p, c.send)
	if err != nil {
		return nil, err
	}
	c.adapters[p] = a
	return a, nil
}

// send is the sink handed to adapters; it crosses into the dispatch
// goroutine and never blocks past controller disposal.
func (c *Controller) send(ev call.Event) {
	select {
	case c.updates <- ev:
	case <-c.done:
	}
}

func (c *Controller) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.updates:
			c.apply(ev)
		}
	}
}

func (c *Controller) apply(ev call.Event) {
	c.mu.Lock()
	if ev.Provider != "" && ev.Provider != c.provider {
		// Stale event from a previously active adapter.
		c.mu.Unlock()
		return
	}
	if ev.Gen != 0 {
		// Adapter generations are monotonic; an event older than the newest
		// applied one raced a teardown and must not resurrect its session.
		if ev.Gen < c.gens[c.provider] {
			c.mu.Unlock()
			return
		}
		c.gens[c.provider] = ev.Gen
	}

	next := cloneSnapshot(c.snap)
	switch ev.Type {
	case call.EventStatus:
		next.Status = ev.Status
		next.StatusLabel = ev.StatusLabel
		next.IsConnecting = ev.Status == call.StatusConnecting
		next.IsConnected = ev.Status.Live()
		if ev.Status == call.StatusConnecting {
			next.Err = ""
		}
	case call.EventTranscriptAppend:
		c.countTranscripts(ev.Entries)
		next.Transcripts = append(next.Transcripts, ev.Entries...)
	case call.EventTranscriptReplace:
		// Replace carries the full authoritative array; only the tail beyond
		// the current snapshot is new.
		if len(ev.Entries) > len(next.Transcripts) {
			c.countTranscripts(ev.Entries[len(next.Transcripts):])
		}
		next.Transcripts = append([]call.TranscriptEntry(nil), ev.Entries...)
	case call.EventMuted:
		next.Muted = ev.Muted
	case call.EventError:
		next.Status = call.StatusError
		next.StatusLabel = "Error"
		next.IsConnecting = false
		next.IsConnected = false
		next.Err = ev.Err
	case call.EventEnded:
		next = call.NewSnapshot(c.provider)
	}
	c.snap = next

	for _, sub := range c.subs {
		select {
		case sub <- cloneSnapshot(next):
		default:
		}
	}
	c.mu.Unlock()
}

// countTranscripts is called with c.mu held.
func (c *Controller) countTranscripts(entries []call.TranscriptEntry) {
	if c.metrics == nil {
		return
	}
	for _, e := range entries {
		c.metrics.TranscriptEntries.WithLabelValues(string(c.provider), string(e.Role)).Inc()
	}
}

func cloneSnapshot(s call.Snapshot) call.Snapshot {
	out := s
	out.Transcripts = append([]call.TranscriptEntry(nil), s.Transcripts...)
	return out
}
