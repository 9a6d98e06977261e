package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEventFileNotifier_Send(t *testing.T) {
	tmpDir := t.TempDir()
	eventPath := filepath.Join(tmpDir, "events.jsonl")

	notifier, err := NewEventFileNotifier(eventPath, 0)
	if err != nil {
		t.Fatalf("NewEventFileNotifier failed: %v", err)
	}
	defer notifier.Close()

	notification := &Notification{
		Source:        "codex",
		Kind:          KindComplete,
		TaskInfo:      "Codex finished",
		DurationMs:    8900,
		Cwd:           "/home/dev/proj",
		OutputContent: "done",
		Time:          time.Now(),
	}

	if err := notifier.Send(context.Background(), notification); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	data, err := os.ReadFile(eventPath)
	if err != nil {
		t.Fatalf("Failed to read event file: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("Failed to unmarshal event: %v", err)
	}

	if event.Event != EventComplete {
		t.Errorf("Event type = %q, want %q", event.Event, EventComplete)
	}
	if event.Source != "codex" {
		t.Errorf("Source = %q, want codex", event.Source)
	}
	if event.DurationMs == nil || *event.DurationMs != 8900 {
		t.Errorf("DurationMs = %v, want 8900", event.DurationMs)
	}
}

func TestEventFileNotifier_UnknownDurationOmitted(t *testing.T) {
	tmpDir := t.TempDir()
	eventPath := filepath.Join(tmpDir, "events.jsonl")

	notifier, err := NewEventFileNotifier(eventPath, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer notifier.Close()

	n := &Notification{
		Source:     "codex",
		Kind:       KindConfirm,
		TaskInfo:   "Codex needs your input",
		DurationMs: -1,
		Time:       time.Now(),
	}
	if err := notifier.Send(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(eventPath)
	if strings.Contains(string(data), "duration_ms") {
		t.Errorf("unknown duration must be absent from JSON, got %s", data)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatal(err)
	}
	if event.Event != EventConfirm {
		t.Errorf("Event type = %q, want %q", event.Event, EventConfirm)
	}
}

func TestEventFileNotifier_WriteEvent(t *testing.T) {
	tmpDir := t.TempDir()
	eventPath := filepath.Join(tmpDir, "events.jsonl")

	notifier, err := NewEventFileNotifier(eventPath, 0)
	if err != nil {
		t.Fatalf("NewEventFileNotifier failed: %v", err)
	}
	defer notifier.Close()

	events := []*Event{
		NewEvent(EventDaemonStart).WithSource("aitify").WithTitle("Started"),
		NewEvent(EventComplete).WithSource("claude").WithTitle("Claude Code finished"),
		NewEvent(EventConfirm).WithSource("codex").WithTitle("Codex needs your input"),
	}

	for _, e := range events {
		if err := notifier.WriteEvent(e); err != nil {
			t.Fatalf("WriteEvent failed: %v", err)
		}
	}

	file, err := os.Open(eventPath)
	if err != nil {
		t.Fatalf("Failed to open event file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	i := 0
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("Failed to unmarshal line %d: %v", i, err)
		}
		if event.Event != events[i].Event {
			t.Errorf("Line %d: event type = %q, want %q", i, event.Event, events[i].Event)
		}
		i++
	}

	if i != len(events) {
		t.Errorf("Read %d events, want %d", i, len(events))
	}
}

func TestEventFileNotifier_Rotation(t *testing.T) {
	tmpDir := t.TempDir()
	eventPath := filepath.Join(tmpDir, "events.jsonl")

	// Small max size forces rotation quickly.
	notifier, err := NewEventFileNotifier(eventPath, 500)
	if err != nil {
		t.Fatalf("NewEventFileNotifier failed: %v", err)
	}
	defer notifier.Close()

	for i := 0; i < 20; i++ {
		event := NewEvent(EventComplete).
			WithSource("claude").
			WithTitle("This is a test headline that should fill up the file quickly")
		if err := notifier.WriteEvent(event); err != nil {
			t.Fatalf("WriteEvent failed on iteration %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read temp dir: %v", err)
	}

	rotatedFiles := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "events.jsonl.") {
			rotatedFiles++
		}
	}

	if rotatedFiles == 0 {
		t.Error("Expected at least one rotated file, found none")
	}
}

func TestEventFileNotifier_DefaultPath(t *testing.T) {
	notifier, err := NewEventFileNotifier("", 0)
	if err != nil {
		t.Fatalf("NewEventFileNotifier failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	expectedPath := filepath.Join(home, ".aitify", "events.jsonl")
	if notifier.Path() != expectedPath {
		t.Errorf("Path = %q, want %q", notifier.Path(), expectedPath)
	}
}

func TestEventFileNotifier_DaemonEvents(t *testing.T) {
	tmpDir := t.TempDir()
	eventPath := filepath.Join(tmpDir, "events.jsonl")

	notifier, err := NewEventFileNotifier(eventPath, 0)
	if err != nil {
		t.Fatalf("NewEventFileNotifier failed: %v", err)
	}

	if err := notifier.EmitDaemonStart(); err != nil {
		t.Fatalf("EmitDaemonStart failed: %v", err)
	}
	if err := notifier.EmitDaemonStop(); err != nil {
		t.Fatalf("EmitDaemonStop failed: %v", err)
	}

	notifier.Close()

	file, err := os.Open(eventPath)
	if err != nil {
		t.Fatalf("Failed to open event file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	if !scanner.Scan() {
		t.Fatal("Expected first line")
	}
	var startEvent Event
	if err := json.Unmarshal(scanner.Bytes(), &startEvent); err != nil {
		t.Fatalf("Failed to unmarshal start event: %v", err)
	}
	if startEvent.Event != EventDaemonStart {
		t.Errorf("First event = %q, want %q", startEvent.Event, EventDaemonStart)
	}

	if !scanner.Scan() {
		t.Fatal("Expected second line")
	}
	var stopEvent Event
	if err := json.Unmarshal(scanner.Bytes(), &stopEvent); err != nil {
		t.Fatalf("Failed to unmarshal stop event: %v", err)
	}
	if stopEvent.Event != EventDaemonStop {
		t.Errorf("Second event = %q, want %q", stopEvent.Event, EventDaemonStop)
	}
}

func TestEventTypeFor(t *testing.T) {
	tests := []struct {
		kind     string
		expected EventType
	}{
		{KindComplete, EventComplete},
		{KindConfirm, EventConfirm},
		{"", EventComplete},
	}

	for _, tt := range tests {
		n := &Notification{Kind: tt.kind}
		if got := EventTypeFor(n); got != tt.expected {
			t.Errorf("EventTypeFor(%q) = %q, want %q", tt.kind, got, tt.expected)
		}
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent(EventComplete).
		WithSource("gemini").
		WithTitle("Gemini finished").
		WithMetadata("session", "abc").
		WithMetadata("pid", 12345)

	if event.Event != EventComplete {
		t.Errorf("Event = %q, want %q", event.Event, EventComplete)
	}
	if event.Source != "gemini" {
		t.Errorf("Source = %q, want gemini", event.Source)
	}
	if event.Metadata["session"] != "abc" {
		t.Errorf("Metadata[session] = %v, want abc", event.Metadata["session"])
	}
	if event.Metadata["pid"] != 12345 {
		t.Errorf("Metadata[pid] = %v, want 12345", event.Metadata["pid"])
	}
}
