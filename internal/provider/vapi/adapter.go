package vapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/reliability"
)

// Adapter owns one live Vapi web call at a time. Vapi is the incremental
// family: only transcript events marked final are appended; partial
// recognition never surfaces. Its normal hangup arrives through the error
// channel ("Meeting has ended") and must be suppressed, not shown.
type Adapter struct {
	client  *Client
	sink    call.Sink
	request call.InitiateRequest

	mu      sync.Mutex
	writeMu sync.Mutex
	gen     uint64
	conn    *websocket.Conn
	callID  string
	muted   bool
	status  call.Status
}

func NewAdapter(client *Client, req call.InitiateRequest, sink call.Sink) *Adapter {
	return &Adapter{
		client:  client,
		sink:    sink,
		request: req,
		status:  call.StatusDisconnected,
	}
}

func (a *Adapter) Start(ctx context.Context) {
	a.mu.Lock()
	if a.status == call.StatusConnecting || a.status.Live() {
		a.mu.Unlock()
		return
	}
	a.gen++
	gen := a.gen
	a.status = call.StatusConnecting
	a.mu.Unlock()
	a.emit(gen, call.Event{Type: call.EventStatus, Status: call.StatusConnecting, StatusLabel: "Connecting"})

	cred, err := a.client.Initiate(ctx, a.request)
	if err != nil {
		a.fail(gen, err)
		return
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cred.JoinURL, nil)
	if err != nil {
		go a.terminate(cred.CallID)
		a.fail(gen, err)
		return
	}

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		conn.Close()
		go a.terminate(cred.CallID)
		return
	}
	a.conn = conn
	a.callID = cred.CallID
	a.status = call.StatusConnected
	a.mu.Unlock()

	a.emit(gen, call.Event{Type: call.EventStatus, Status: call.StatusConnected, StatusLabel: "Connected"})
	go a.readLoop(gen, conn)
}

func (a *Adapter) End(context.Context) {
	a.mu.Lock()
	conn := a.conn
	callID := a.callID
	active := conn != nil || a.status == call.StatusConnecting
	a.gen++
	gen := a.gen
	a.conn = nil
	a.callID = ""
	a.muted = false
	a.status = call.StatusDisconnected
	a.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !active {
		return
	}
	go a.terminate(callID)
	a.emit(gen, call.Event{Type: call.EventEnded, Status: call.StatusDisconnected, StatusLabel: "Disconnected"})
}

func (a *Adapter) ToggleMute() {
	a.mu.Lock()
	if a.conn == nil {
		a.mu.Unlock()
		return
	}
	a.muted = !a.muted
	muted := a.muted
	conn := a.conn
	gen := a.gen
	a.mu.Unlock()

	control := "unmute"
	if muted {
		control = "mute"
	}
	a.writeMu.Lock()
	_ = conn.WriteJSON(map[string]any{"type": "control", "control": control})
	a.writeMu.Unlock()
	a.emit(gen, call.Event{Type: call.EventMuted, Muted: muted})
}

func (a *Adapter) Cleanup() {
	a.mu.Lock()
	conn := a.conn
	a.gen++
	a.conn = nil
	a.callID = ""
	a.muted = false
	a.status = call.StatusDisconnected
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

type callMessage struct {
	Type           string `json:"type"`
	Status         string `json:"status,omitempty"`
	Role           string `json:"role,omitempty"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
	Error          string `json:"error,omitempty"`
	ErrorMsg       string `json:"errorMsg,omitempty"`
}

func (a *Adapter) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.remoteEnded(gen)
			return
		}
		var msg callMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "status-update":
			info := call.NormalizeStatus(call.ProviderVapi, msg.Status)
			a.setStatus(gen, info)
			if info.Status == call.StatusDisconnected {
				a.remoteEnded(gen)
				return
			}
		case "speech-update":
			a.setStatus(gen, call.NormalizeStatus(call.ProviderVapi, speechToken(msg)))
		case "transcript":
			entry, ok := call.NormalizeFinalTranscript(msg.TranscriptType, msg.Role, msg.Transcript)
			if !ok {
				continue
			}
			a.emit(gen, call.Event{Type: call.EventTranscriptAppend, Entries: []call.TranscriptEntry{entry}})
		case "error":
			detail := msg.Error
			if detail == "" {
				detail = msg.ErrorMsg
			}
			if reliability.IsBenignTermination(detail) {
				// An ordinary hangup misrouted through the error channel.
				a.remoteEnded(gen)
				return
			}
			a.emit(gen, call.Event{Type: call.EventError, Status: call.StatusError, StatusLabel: "Error", Err: detail})
		}
	}
}

// speechToken folds speech-update events onto the status vocabulary the
// normalizer table covers.
func speechToken(msg callMessage) string {
	speaking := msg.Status == "started"
	if msg.Role == "assistant" {
		if speaking {
			return "assistant-speaking"
		}
		return "in-progress"
	}
	if speaking {
		return "speech-start"
	}
	return "speech-end"
}

func (a *Adapter) setStatus(gen uint64, info call.StatusInfo) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.status = info.Status
	a.mu.Unlock()
	a.emit(gen, call.Event{Type: call.EventStatus, Status: info.Status, StatusLabel: info.Label})
}

func (a *Adapter) remoteEnded(gen uint64) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	conn := a.conn
	a.gen++
	next := a.gen
	a.conn = nil
	a.callID = ""
	a.muted = false
	a.status = call.StatusDisconnected
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	a.emit(next, call.Event{Type: call.EventEnded, Status: call.StatusDisconnected, StatusLabel: "Disconnected"})
}

func (a *Adapter) fail(gen uint64, err error) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	a.conn = nil
	a.callID = ""
	a.status = call.StatusError
	a.mu.Unlock()
	a.emit(gen, call.Event{Type: call.EventError, Status: call.StatusError, StatusLabel: "Error", Err: err.Error()})
}

func (a *Adapter) terminate(callID string) {
	if callID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.client.Terminate(ctx, callID)
}

func (a *Adapter) emit(gen uint64, ev call.Event) {
	a.mu.Lock()
	current := gen == a.gen
	a.mu.Unlock()
	if !current || a.sink == nil {
		return
	}
	ev.Provider = call.ProviderVapi
	ev.Gen = gen
	a.sink(ev)
}
