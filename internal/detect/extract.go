package detect

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// epochMsThreshold separates epoch-second from epoch-millisecond values.
const epochMsThreshold = 1_000_000_000_000

// ParseJSONLine parses one log line into a generic JSON object.
// A UTF-8 BOM anywhere in the line is stripped first. Returns nil for
// anything that is not a JSON object.
func ParseJSONLine(line string) map[string]any {
	normalized := strings.ReplaceAll(line, "\uFEFF", "")
	var obj map[string]any
	if err := json.Unmarshal([]byte(normalized), &obj); err != nil {
		return nil
	}
	return obj
}

// ParseTimestamp converts a timestamp value of any of the shapes seen in
// agent logs (epoch seconds, epoch milliseconds, numeric strings, RFC 3339)
// to epoch milliseconds. Returns 0 when the value is absent or unparseable.
func ParseTimestamp(v any) int64 {
	switch t := v.(type) {
	case float64:
		n := int64(t)
		if n != 0 && n < epochMsThreshold {
			return int64(t * 1000)
		}
		return n
	case json.Number:
		if n, err := t.Int64(); err == nil {
			if n < epochMsThreshold {
				return n * 1000
			}
			return n
		}
		if f, err := t.Float64(); err == nil {
			return ParseTimestamp(f)
		}
		return 0
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return 0
		}
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			if n < epochMsThreshold {
				return n * 1000
			}
			return n
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			if f < float64(epochMsThreshold) {
				return int64(f * 1000)
			}
			return int64(f)
		}
		if ts, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
			return ts.UnixMilli()
		}
		if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
			return ts.UnixMilli()
		}
		return 0
	default:
		return 0
	}
}

// textFields is the precedence order for best-effort text extraction.
var textFields = []string{"text", "content", "message", "value", "data"}

// ExtractText pulls human-readable text out of an arbitrary JSON value.
// Strings pass through, arrays join their non-empty elements with newlines,
// and objects are probed by field precedence, recursing into arrays. Pure.
func ExtractText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := ExtractText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		for _, field := range textFields {
			inner, ok := t[field]
			if !ok {
				continue
			}
			if s, ok := inner.(string); ok {
				return s
			}
			if arr, ok := inner.([]any); ok {
				if s := ExtractText(arr); s != "" {
					return s
				}
			}
		}
		return ""
	default:
		return ""
	}
}

// ExtractMessageText extracts text from a message object, preferring its
// content array or string over the generic field walk.
func ExtractMessageText(message any) string {
	obj, ok := message.(map[string]any)
	if !ok {
		return ExtractText(message)
	}
	if arr, ok := obj["content"].([]any); ok {
		return ExtractText(arr)
	}
	if s, ok := obj["content"].(string); ok {
		return s
	}
	return ExtractText(message)
}

// HasContentType reports whether a message's content array contains a block
// of the given type (e.g. "tool_use").
func HasContentType(message any, contentType string) bool {
	obj, ok := message.(map[string]any)
	if !ok {
		return false
	}
	arr, ok := obj["content"].([]any)
	if !ok {
		return false
	}
	for _, item := range arr {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t == contentType {
			return true
		}
	}
	return false
}

// TruncateText caps text at max bytes, appending an ellipsis when cut.
func TruncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	// Back off to a rune boundary: strip continuation bytes, then a
	// dangling lead byte left when the cut landed inside a rune.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	if len(cut) > 0 && cut[len(cut)-1] >= 0xC0 {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func objectField(obj map[string]any, key string) map[string]any {
	m, _ := obj[key].(map[string]any)
	return m
}
