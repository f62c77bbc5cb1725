package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/naurunnahansa/voicebridge/internal/call"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("call not found")

// Entry is the server-side ledger record of one initiated call. The live
// session itself lives client-side; this only tracks what the bridge handed
// out, for observability and best-effort cleanup accounting.
type Entry struct {
	ID         string        `json:"id"`
	Provider   call.Provider `json:"provider"`
	CallID     string        `json:"call_id"`
	Status     Status        `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	LastSeenAt time.Time     `json:"last_seen_at"`
}

type Manager struct {
	mu                sync.RWMutex
	entries           map[string]*Entry
	byCallID          map[string]string
	inactivityTimeout time.Duration
	onExpire          func(*Entry)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 5 * time.Minute
	}
	return &Manager{
		entries:           make(map[string]*Entry),
		byCallID:          make(map[string]string),
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Entry)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Track records one freshly initiated call.
func (m *Manager) Track(provider call.Provider, callID string) *Entry {
	now := time.Now().UTC()
	e := &Entry{
		ID:         uuid.NewString(),
		Provider:   provider,
		CallID:     callID,
		Status:     StatusActive,
		StartedAt:  now,
		LastSeenAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	if callID != "" {
		m.byCallID[callID] = e.ID
	}
	return clone(e)
}

// EndByCallID marks a call ended by its provider-issued identifier. Unknown
// calls are not an error: termination is best-effort and the entry may have
// already expired.
func (m *Manager) EndByCallID(callID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCallID[callID]
	if !ok {
		return
	}
	e, ok := m.entries[id]
	if !ok {
		return
	}
	e.Status = StatusEnded
	e.LastSeenAt = time.Now().UTC()
	delete(m.byCallID, callID)
}

func (m *Manager) Get(id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.entries {
		if e.Status == StatusActive {
			count++
		}
	}
	return count
}

// StartJanitor expires entries whose calls were never explicitly ended.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Entry

	m.mu.Lock()
	for _, e := range m.entries {
		if e.Status != StatusActive {
			continue
		}
		if now.Sub(e.LastSeenAt) < m.inactivityTimeout {
			continue
		}
		e.Status = StatusEnded
		e.LastSeenAt = now
		expired = append(expired, clone(e))
		if e.CallID != "" {
			delete(m.byCallID, e.CallID)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, e := range expired {
			hook(e)
		}
	}
}

func clone(e *Entry) *Entry {
	c := *e
	return &c
}
