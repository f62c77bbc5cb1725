package registry

import (
	"testing"
	"time"

	"github.com/naurunnahansa/voicebridge/internal/call"
)

func TestTrackAndEnd(t *testing.T) {
	m := NewManager(time.Minute)
	e := m.Track(call.ProviderUltravox, "uc1")
	if e.ID == "" || e.Status != StatusActive {
		t.Fatalf("entry = %+v", e)
	}
	if got := m.ActiveCount(); got != 1 {
		t.Fatalf("ActiveCount = %d, want 1", got)
	}

	m.EndByCallID("uc1")
	if got := m.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount after end = %d, want 0", got)
	}

	got, err := m.Get(e.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("status = %v, want ended", got.Status)
	}
}

func TestEndUnknownCallIsNoop(t *testing.T) {
	m := NewManager(time.Minute)
	m.EndByCallID("never-tracked")
	if got := m.ActiveCount(); got != 0 {
		t.Fatalf("ActiveCount = %d, want 0", got)
	}
}

func TestExpireInactive(t *testing.T) {
	m := NewManager(time.Minute)
	expired := make(chan *Entry, 1)
	m.SetExpireHook(func(e *Entry) { expired <- e })

	e := m.Track(call.ProviderVapi, "c1")

	// Backdate the entry past the inactivity window.
	m.mu.Lock()
	m.entries[e.ID].LastSeenAt = time.Now().UTC().Add(-2 * time.Minute)
	m.mu.Unlock()

	m.expireInactive()
	select {
	case got := <-expired:
		if got.CallID != "c1" || got.Status != StatusEnded {
			t.Fatalf("expired entry = %+v", got)
		}
	default:
		t.Fatalf("expire hook not invoked")
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0", m.ActiveCount())
	}
}
