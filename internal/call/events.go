package call

import "context"

// EventType discriminates adapter-to-controller events.
type EventType string

const (
	EventStatus            EventType = "status"
	EventTranscriptAppend  EventType = "transcript_append"
	EventTranscriptReplace EventType = "transcript_replace"
	EventMuted             EventType = "muted"
	EventError             EventType = "error"
	EventEnded             EventType = "ended"
)

// Event is one normalized state change emitted by an adapter. Events cross a
// message-passing boundary into the controller's dispatch loop so that
// observers are never notified synchronously from inside a transition.
type Event struct {
	Type        EventType
	Provider    Provider
	Status      Status
	StatusLabel string
	Entries     []TranscriptEntry
	Muted       bool
	Err         string

	// Gen is the adapter's session generation at the moment the event was
	// produced. Generations are monotonic per adapter; the consumer drops
	// any event older than the newest it has applied, which closes the gap
	// between an adapter's own generation check and delivery. Zero means
	// the event did not originate from an adapter session.
	Gen uint64
}

// Sink receives adapter events. Implementations must not block indefinitely.
type Sink func(Event)

// Adapter is the uniform surface every provider session variant implements.
// All four operations are safe to call in any state: Start is a no-op while
// connecting or connected, End and Cleanup are no-ops without a live session.
// Failures surface through the event stream as state, never as panics.
type Adapter interface {
	Start(ctx context.Context)
	End(ctx context.Context)
	ToggleMute()
	Cleanup()
}
