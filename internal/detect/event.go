// Package detect decodes agent log records into normalized events and
// classifies confirmation prompts.
package detect

// EventKind identifies what a decoded log record represents.
type EventKind int

const (
	// KindNone marks records that carry no watch-relevant information.
	KindNone EventKind = iota
	// KindUserMessage is a user-originated message (starts a new turn).
	KindUserMessage
	// KindAssistantMessage is assistant output text.
	KindAssistantMessage
	// KindToolActivity is a tool/function/shell call by the assistant.
	KindToolActivity
	// KindTurnStarted is an explicit new-turn marker (Codex task_started).
	KindTurnStarted
	// KindTurnComplete is an explicit turn-finished marker (Codex task_complete).
	KindTurnComplete
	// KindInteractiveRequest is a structured ask-the-user tool call.
	KindInteractiveRequest
	// KindInteractiveResponse resolves a prior interactive request.
	KindInteractiveResponse
	// KindContextUpdate carries turn metadata (cwd, turn id, mode).
	KindContextUpdate
	// KindTokenCount is the legacy token-accounting corroboration signal.
	KindTokenCount
)

func (k EventKind) String() string {
	switch k {
	case KindUserMessage:
		return "user_message"
	case KindAssistantMessage:
		return "assistant_message"
	case KindToolActivity:
		return "tool_activity"
	case KindTurnStarted:
		return "turn_started"
	case KindTurnComplete:
		return "turn_complete"
	case KindInteractiveRequest:
		return "interactive_request"
	case KindInteractiveResponse:
		return "interactive_response"
	case KindContextUpdate:
		return "context_update"
	case KindTokenCount:
		return "token_count"
	default:
		return "none"
	}
}

// LogEvent is one decoded log record, normalized across sources.
// Timestamp is epoch milliseconds; 0 means the record carried none and the
// caller should substitute arrival time.
type LogEvent struct {
	Kind            EventKind
	Timestamp       int64
	Text            string
	TurnID          string
	RequestID       string
	Cwd             string
	Mode            string
	HasToolActivity bool
	Raw             map[string]any
}
