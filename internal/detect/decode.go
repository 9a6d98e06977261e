package detect

import (
	"encoding/json"
	"strings"
)

// interactiveRequestTool is the Codex tool name used for structured
// ask-the-user prompts (plan-mode option selection).
const interactiveRequestTool = "request_user_input"

// DecodeClaudeLine decodes one line of a Claude session JSONL file.
// Sidechain records and anything unparseable decode to KindNone.
func DecodeClaudeLine(line string) LogEvent {
	obj := ParseJSONLine(line)
	if obj == nil {
		return LogEvent{}
	}
	if sidechain, _ := obj["isSidechain"].(bool); sidechain {
		return LogEvent{}
	}

	ev := LogEvent{
		Timestamp: ParseTimestamp(obj["timestamp"]),
		Cwd:       stringField(obj, "cwd"),
		Raw:       obj,
	}

	message := obj["message"]
	switch stringField(obj, "type") {
	case "user":
		ev.Kind = KindUserMessage
		ev.Text = ExtractMessageText(message)
	case "assistant":
		ev.Kind = KindAssistantMessage
		ev.Text = ExtractMessageText(message)
		ev.HasToolActivity = HasContentType(message, "tool_use")
	default:
		if ev.Cwd != "" {
			ev.Kind = KindContextUpdate
		}
	}
	return ev
}

// DecodeCodexLine decodes one line of a Codex rollout JSONL file. Codex
// wraps every record in a {type, payload} envelope; the payload shape
// depends on the envelope type.
func DecodeCodexLine(line string) LogEvent {
	obj := ParseJSONLine(line)
	if obj == nil {
		return LogEvent{}
	}

	ev := LogEvent{
		Timestamp: ParseTimestamp(obj["timestamp"]),
		Raw:       obj,
	}
	payload := objectField(obj, "payload")

	switch stringField(obj, "type") {
	case "turn_context":
		if payload == nil {
			return LogEvent{}
		}
		ev.Kind = KindContextUpdate
		ev.Cwd = stringField(payload, "cwd")
		ev.TurnID = stringField(payload, "turn_id")
		if mode := objectField(payload, "collaboration_mode"); mode != nil {
			ev.Mode = stringField(mode, "mode")
		}
	case "response_item":
		if payload == nil {
			return LogEvent{}
		}
		decodeCodexResponseItem(payload, &ev)
	case "event_msg":
		if payload == nil {
			return LogEvent{}
		}
		decodeCodexEventMsg(payload, &ev)
	}
	return ev
}

func decodeCodexResponseItem(payload map[string]any, ev *LogEvent) {
	switch stringField(payload, "type") {
	case "message":
		switch stringField(payload, "role") {
		case "user":
			ev.Kind = KindUserMessage
			ev.Text = ExtractText(payload)
		case "assistant":
			ev.Kind = KindAssistantMessage
			ev.Text = ExtractText(payload)
		}
	case "function_call":
		if stringField(payload, "name") == interactiveRequestTool {
			ev.Kind = KindInteractiveRequest
			ev.RequestID = stringField(payload, "call_id")
			ev.Text = interactivePrompt(payload)
			return
		}
		ev.Kind = KindToolActivity
	case "function_call_output":
		ev.Kind = KindInteractiveResponse
		ev.RequestID = stringField(payload, "call_id")
	case "local_shell_call", "custom_tool_call", "command_execution",
		"file_change", "mcp_tool_call", "web_search_call":
		ev.Kind = KindToolActivity
	}
}

func decodeCodexEventMsg(payload map[string]any, ev *LogEvent) {
	switch stringField(payload, "type") {
	case "task_started", "turn_started":
		ev.Kind = KindTurnStarted
		ev.TurnID = stringField(payload, "turn_id")
		ev.Mode = stringField(payload, "collaboration_mode_kind")
	case "task_complete":
		ev.Kind = KindTurnComplete
		ev.TurnID = stringField(payload, "turn_id")
		ev.Text = stringField(payload, "last_agent_message")
	case "agent_message":
		ev.Kind = KindAssistantMessage
		ev.Text = ExtractText(payload)
	case "user_message":
		ev.Kind = KindUserMessage
		ev.Text = ExtractText(payload)
	case "token_count":
		ev.Kind = KindTokenCount
	case "tool_call":
		ev.Kind = KindToolActivity
	}
}

// interactivePrompt builds a human-readable prompt from a request_user_input
// call. The tool arguments arrive as a JSON string holding questions with
// option labels; fall back to a generic prompt when they cannot be parsed.
func interactivePrompt(payload map[string]any) string {
	raw := stringField(payload, "arguments")
	if raw == "" {
		return "Agent is waiting for your confirmation"
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return "Agent is waiting for your confirmation"
	}

	var out []string
	appendQuestion := func(q map[string]any) {
		text := stringField(q, "question")
		if text == "" {
			text = ExtractText(q)
		}
		if text != "" {
			out = append(out, text)
		}
		if opts, ok := q["options"].([]any); ok {
			for _, o := range opts {
				label := ""
				switch opt := o.(type) {
				case string:
					label = opt
				case map[string]any:
					label = stringField(opt, "label")
					if label == "" {
						label = ExtractText(opt)
					}
				}
				if label != "" {
					out = append(out, "- "+label)
				}
			}
		}
	}

	if questions, ok := args["questions"].([]any); ok {
		for _, item := range questions {
			if q, ok := item.(map[string]any); ok {
				appendQuestion(q)
			}
		}
	} else {
		appendQuestion(args)
	}

	if len(out) == 0 {
		return "Agent is waiting for your confirmation"
	}
	return TruncateText(strings.Join(out, "\n"), 600)
}

// GeminiMessage is one entry of a Gemini chat session document.
type GeminiMessage struct {
	Kind      EventKind
	Timestamp int64
	Text      string
}

// DecodeGeminiSession decodes a whole Gemini session file (a single JSON
// document with a messages array) into the ordered message list. Returns
// nil when the document does not parse or has no messages array.
func DecodeGeminiSession(data []byte) []GeminiMessage {
	obj := ParseJSONLine(string(data))
	if obj == nil {
		return nil
	}
	arr, ok := obj["messages"].([]any)
	if !ok {
		return nil
	}

	out := make([]GeminiMessage, 0, len(arr))
	for _, item := range arr {
		msg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		gm := GeminiMessage{Timestamp: ParseTimestamp(msg["timestamp"])}
		switch stringField(msg, "type") {
		case "user":
			gm.Kind = KindUserMessage
			gm.Text = ExtractMessageText(msg)
		case "gemini":
			gm.Kind = KindAssistantMessage
			gm.Text = geminiText(msg)
		default:
			continue
		}
		out = append(out, gm)
	}
	return out
}

// geminiText extracts output text from a gemini message, trying the content
// array/string, then parts[].text, then a bare text field.
func geminiText(msg map[string]any) string {
	if arr, ok := msg["content"].([]any); ok {
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	if s, ok := msg["content"].(string); ok && s != "" {
		return s
	}
	if arr, ok := msg["parts"].([]any); ok {
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			if part, ok := item.(map[string]any); ok {
				if s := stringField(part, "text"); s != "" {
					parts = append(parts, s)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	if s := stringField(msg, "text"); s != "" {
		return s
	}
	return ExtractMessageText(msg)
}
