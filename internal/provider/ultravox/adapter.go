package ultravox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/naurunnahansa/voicebridge/internal/call"
	"github.com/naurunnahansa/voicebridge/internal/tools"
)

// Adapter owns one live Ultravox data channel at a time. Ultravox is the
// tool-capable family: the executor is wired in at construction so every tool
// the remote model can invoke is registered before the channel is dialed.
// Its transcript model is a snapshot: every transcripts message carries the
// full authoritative array, which replaces local state wholesale.
type Adapter struct {
	client   *Client
	executor *tools.Executor
	sink     call.Sink
	request  call.InitiateRequest

	mu      sync.Mutex
	writeMu sync.Mutex
	gen     uint64
	conn    *websocket.Conn
	callID  string
	muted   bool
	status  call.Status
}

func NewAdapter(client *Client, executor *tools.Executor, req call.InitiateRequest, sink call.Sink) *Adapter {
	return &Adapter{
		client:   client,
		executor: executor,
		sink:     sink,
		request:  req,
		status:   call.StatusDisconnected,
	}
}

// Start obtains credentials, dials the data channel, and begins the read
// loop. No-op while already connecting or connected. Failures surface as an
// error event, never as a panic across this boundary.
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

	cred, err := a.client.Initiate(ctx, a.request, a.executor.Names())
	if err != nil {
		a.fail(gen, err)
		return
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cred.JoinURL, nil)
	if err != nil {
		// Credential is a single-use token; nothing to revoke server-side,
		// but the remote call record should still be closed.
		go a.terminate(cred.CallID)
		a.fail(gen, err)
		return
	}

	a.mu.Lock()
	if gen != a.gen {
		// Ended while the start sequence was in flight.
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

// End tears down the live channel and best-effort terminates the remote
// call. Safe to call with no active session, including mid-start.
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

// ToggleMute inverts the local mute flag and notifies the session. No-op
// without an active connection.
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
	_ = conn.WriteJSON(map[string]any{"type": "set_mic_muted", "muted": muted})
	a.writeMu.Unlock()
	a.emit(gen, call.Event{Type: call.EventMuted, Muted: muted})
}

// Cleanup forcefully releases the connection on owner disposal. Idempotent,
// emits nothing.
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

type dataMessage struct {
	Type        string          `json:"type"`
	State       string          `json:"state,omitempty"`
	Transcripts []struct {
		Speaker string `json:"speaker"`
		Text    string `json:"text"`
	} `json:"transcripts,omitempty"`
	ToolName     string          `json:"toolName,omitempty"`
	InvocationID string          `json:"invocationId,omitempty"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	Detail       string          `json:"detail,omitempty"`
}

func (a *Adapter) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.remoteEnded(gen)
			return
		}
		var msg dataMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "state":
			info := call.NormalizeStatus(call.ProviderUltravox, msg.State)
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
			a.emit(gen, call.Event{
				Type:    call.EventTranscriptReplace,
				Entries: call.NormalizeSnapshotTranscripts(raw),
			})
		case "client_tool_invocation":
			var params map[string]any
			if len(msg.Parameters) > 0 {
				_ = json.Unmarshal(msg.Parameters, &params)
			}
			inv := call.ToolInvocation{
				ToolName:     msg.ToolName,
				Parameters:   params,
				InvocationID: msg.InvocationID,
			}
			go a.runTool(gen, conn, inv)
		case "error":
			a.emit(gen, call.Event{Type: call.EventError, Status: call.StatusError, StatusLabel: "Error", Err: msg.Detail})
		}
	}
}

// runTool executes one client tool and writes its result back into the same
// session. The executor never lets a handler failure escape as an error.
func (a *Adapter) runTool(gen uint64, conn *websocket.Conn, inv call.ToolInvocation) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	result := a.executor.Execute(ctx, inv)

	a.mu.Lock()
	stale := gen != a.gen
	a.mu.Unlock()
	if stale {
		return
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	_ = conn.WriteJSON(map[string]any{
		"type":         "client_tool_result",
		"invocationId": inv.InvocationID,
		"result":       result,
	})
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

// remoteEnded handles the channel closing from the provider side.
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

// emit forwards an event to the controller unless the session that produced
// it has been torn down in the meantime.
func (a *Adapter) emit(gen uint64, ev call.Event) {
	a.mu.Lock()
	current := gen == a.gen
	a.mu.Unlock()
	if !current || a.sink == nil {
		return
	}
	ev.Provider = call.ProviderUltravox
	ev.Gen = gen
	a.sink(ev)
}
