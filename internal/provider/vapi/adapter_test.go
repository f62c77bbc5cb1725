package vapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naurunnahansa/voicebridge/internal/call"
)

type recorder struct {
	mu     sync.Mutex
	events []call.Event
}

func (r *recorder) sink(ev call.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []call.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]call.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) wait(t *testing.T, pred func([]call.Event) bool) []call.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		evs := r.snapshot()
		if pred(evs) {
			return evs
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached; events = %+v", r.snapshot())
	return nil
}

// newCallHarness starts a fake Vapi REST API whose created call joins a local
// websocket endpoint running script.
func newCallHarness(t *testing.T, script func(*websocket.Conn)) (Config, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		script(conn)
	}))
	joinURL := "ws://" + strings.TrimPrefix(ws.URL, "http://")

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","webCallUrl":"` + joinURL + `"}`))
	}))

	return Config{APIKey: "sk-vapi", APIBaseURL: api.URL}, func() {
		api.Close()
		ws.Close()
	}
}

func TestPartialTranscriptsNeverSurface(t *testing.T) {
	cfg, done := newCallHarness(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"type": "status-update", "status": "in-progress"})
		conn.WriteJSON(map[string]any{"type": "transcript", "transcriptType": "partial", "role": "user", "transcript": "hel"})
		conn.WriteJSON(map[string]any{"type": "transcript", "transcriptType": "final", "role": "user", "transcript": "hello"})
		time.Sleep(500 * time.Millisecond)
		conn.Close()
	})
	defer done()

	rec := &recorder{}
	a := NewAdapter(NewClient(cfg), call.InitiateRequest{}, rec.sink)
	a.Start(context.Background())
	defer a.Cleanup()

	evs := rec.wait(t, func(evs []call.Event) bool {
		for _, ev := range evs {
			if ev.Type == call.EventTranscriptAppend {
				return true
			}
		}
		return false
	})

	var appended []call.TranscriptEntry
	for _, ev := range evs {
		if ev.Type == call.EventTranscriptAppend {
			appended = append(appended, ev.Entries...)
		}
	}
	if len(appended) != 1 {
		t.Fatalf("appended = %+v, want only the final transcript", appended)
	}
	want := call.TranscriptEntry{Role: call.RoleUser, Text: "hello"}
	if appended[0] != want {
		t.Fatalf("entry = %+v, want %+v", appended[0], want)
	}
}

func TestBenignTerminationIsSuppressed(t *testing.T) {
	cfg, done := newCallHarness(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"type": "status-update", "status": "in-progress"})
		conn.WriteJSON(map[string]any{"type": "error", "error": "Meeting has ended"})
		time.Sleep(500 * time.Millisecond)
		conn.Close()
	})
	defer done()

	rec := &recorder{}
	a := NewAdapter(NewClient(cfg), call.InitiateRequest{}, rec.sink)
	a.Start(context.Background())
	defer a.Cleanup()

	evs := rec.wait(t, func(evs []call.Event) bool {
		for _, ev := range evs {
			if ev.Type == call.EventEnded {
				return true
			}
		}
		return false
	})
	for _, ev := range evs {
		if ev.Type == call.EventError {
			t.Fatalf("benign termination surfaced as error: %+v", ev)
		}
	}
}

func TestRealErrorSurfaces(t *testing.T) {
	cfg, done := newCallHarness(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"type": "error", "errorMsg": "assistant model unavailable"})
		time.Sleep(500 * time.Millisecond)
		conn.Close()
	})
	defer done()

	rec := &recorder{}
	a := NewAdapter(NewClient(cfg), call.InitiateRequest{}, rec.sink)
	a.Start(context.Background())
	defer a.Cleanup()

	rec.wait(t, func(evs []call.Event) bool {
		for _, ev := range evs {
			if ev.Type == call.EventError && strings.Contains(ev.Err, "assistant model unavailable") {
				return true
			}
		}
		return false
	})
}

func TestSpeechUpdatesMapToActivityStates(t *testing.T) {
	cfg, done := newCallHarness(t, func(conn *websocket.Conn) {
		conn.WriteJSON(map[string]any{"type": "speech-update", "status": "started", "role": "user"})
		conn.WriteJSON(map[string]any{"type": "speech-update", "status": "stopped", "role": "user"})
		conn.WriteJSON(map[string]any{"type": "speech-update", "status": "started", "role": "assistant"})
		time.Sleep(500 * time.Millisecond)
		conn.Close()
	})
	defer done()

	rec := &recorder{}
	a := NewAdapter(NewClient(cfg), call.InitiateRequest{}, rec.sink)
	a.Start(context.Background())
	defer a.Cleanup()

	rec.wait(t, func(evs []call.Event) bool {
		seen := map[call.Status]bool{}
		for _, ev := range evs {
			if ev.Type == call.EventStatus {
				seen[ev.Status] = true
			}
		}
		return seen[call.StatusListening] && seen[call.StatusThinking] && seen[call.StatusSpeaking]
	})
}
