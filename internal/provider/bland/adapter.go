package bland

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naurunnahansa/voicebridge/internal/call"
)

// Adapter owns one live Bland dial at a time. Bland is the append family:
// each transcripts event carries new lines, speaker tags are matched
// case-insensitively, and blank lines are filtered before emission.
type Adapter struct {
	client  *Client
	sink    call.Sink
	request call.InitiateRequest

	mu      sync.Mutex
	writeMu sync.Mutex
	gen     uint64
	conn    *websocket.Conn
	dialID  string
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

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.client.DialURL(cred), nil)
	if err != nil {
		go a.terminate(cred.DialID)
		a.fail(gen, err)
		return
	}

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		conn.Close()
		go a.terminate(cred.DialID)
		return
	}
	a.conn = conn
	a.dialID = cred.DialID
	a.status = call.StatusConnected
	a.mu.Unlock()

	a.emit(gen, call.Event{Type: call.EventStatus, Status: call.StatusConnected, StatusLabel: "Connected"})
	go a.readLoop(gen, conn)
}

func (a *Adapter) End(context.Context) {
	a.mu.Lock()
	conn := a.conn
	dialID := a.dialID
	active := conn != nil || a.status == call.StatusConnecting
	a.gen++
	gen := a.gen
	a.conn = nil
	a.dialID = ""
	a.muted = false
	a.status = call.StatusDisconnected
	a.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !active {
		return
	}
	go a.terminate(dialID)
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

	a.writeMu.Lock()
	_ = conn.WriteJSON(map[string]any{"event": "mute", "muted": muted})
	a.writeMu.Unlock()
	a.emit(gen, call.Event{Type: call.EventMuted, Muted: muted})
}

func (a *Adapter) Cleanup() {
	a.mu.Lock()
	conn := a.conn
	a.gen++
	a.conn = nil
	a.dialID = ""
	a.muted = false
	a.status = call.StatusDisconnected
	a.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

type dialMessage struct {
	Event       string `json:"event"`
	Status      string `json:"status,omitempty"`
	Transcripts []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"transcripts,omitempty"`
	Message string `json:"message,omitempty"`
}

func (a *Adapter) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.remoteEnded(gen)
			return
		}
		var msg dialMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Event {
		case "status":
			info := call.NormalizeStatus(call.ProviderBland, msg.Status)
			a.setStatus(gen, info)
			if info.Status == call.StatusDisconnected {
				a.remoteEnded(gen)
				return
			}
		case "transcripts":
			raw := make([]call.RawTranscript, 0, len(msg.Transcripts))
			for _, t := range msg.Transcripts {
				raw = append(raw, call.RawTranscript{Speaker: t.Speaker, Text: t.Text})
			}
			entries := call.NormalizeAgentTranscripts(raw)
			if len(entries) == 0 {
				continue
			}
			a.emit(gen, call.Event{Type: call.EventTranscriptAppend, Entries: entries})
		case "error":
			a.emit(gen, call.Event{Type: call.EventError, Status: call.StatusError, StatusLabel: "Error", Err: msg.Message})
		}
	}
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
	a.dialID = ""
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
	a.dialID = ""
	a.status = call.StatusError
	a.mu.Unlock()
	a.emit(gen, call.Event{Type: call.EventError, Status: call.StatusError, StatusLabel: "Error", Err: err.Error()})
}

func (a *Adapter) terminate(dialID string) {
	if dialID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.client.Terminate(ctx, dialID)
}

func (a *Adapter) emit(gen uint64, ev call.Event) {
	a.mu.Lock()
	current := gen == a.gen
	a.mu.Unlock()
	if !current || a.sink == nil {
		return
	}
	ev.Provider = call.ProviderBland
	ev.Gen = gen
	a.sink(ev)
}
