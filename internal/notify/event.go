package notify

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event being emitted to integrations.
type EventType string

const (
	EventComplete    EventType = "complete" // A turn finished
	EventConfirm     EventType = "confirm"  // An agent is waiting for the user
	EventDaemonStart EventType = "daemon_start"
	EventDaemonStop  EventType = "daemon_stop"
)

// Event is the unified event structure shared by webhooks, the event file,
// the unix socket, and the websocket stream.
type Event struct {
	Event            EventType      `json:"event"`
	Timestamp        time.Time      `json:"timestamp"`
	Source           string         `json:"source,omitempty"`
	Title            string         `json:"title,omitempty"`
	DurationMs       *int64         `json:"duration_ms,omitempty"` // nil when unknown
	Cwd              string         `json:"cwd,omitempty"`
	Output           string         `json:"output,omitempty"`
	UserMessage      string         `json:"user_message,omitempty"`
	AssistantMessage string         `json:"assistant_message,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(eventType EventType) *Event {
	return &Event{
		Event:     eventType,
		Timestamp: time.Now(),
	}
}

// NewEventFromNotification converts a Notification to an Event.
func NewEventFromNotification(n *Notification) *Event {
	e := &Event{
		Event:            EventTypeFor(n),
		Timestamp:        n.Time,
		Source:           n.Source,
		Title:            n.Title(),
		Cwd:              n.Cwd,
		Output:           n.OutputContent,
		UserMessage:      n.UserMessage,
		AssistantMessage: n.AssistantMessage,
	}
	if n.DurationMs >= 0 {
		dur := n.DurationMs
		e.DurationMs = &dur
	}
	return e
}

// EventTypeFor maps a notification kind to its event type.
func EventTypeFor(n *Notification) EventType {
	if n.Kind == KindConfirm {
		return EventConfirm
	}
	return EventComplete
}

// WithSource sets the source name and returns the event for chaining.
func (e *Event) WithSource(source string) *Event {
	e.Source = source
	return e
}

// WithTitle sets the title and returns the event for chaining.
func (e *Event) WithTitle(title string) *Event {
	e.Title = title
	return e
}

// WithMetadata adds a metadata key-value pair and returns the event for chaining.
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// JSON returns the event serialized as JSON bytes.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}
