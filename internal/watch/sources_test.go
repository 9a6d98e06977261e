package watch

import (
	"reflect"
	"testing"
)

func TestNormalizeSources(t *testing.T) {
	all := []string{SourceClaude, SourceCodex, SourceGemini}

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty selects all", "", all},
		{"whitespace selects all", "   ", all},
		{"all keyword", "all", all},
		{"all wins over explicit names", "codex,all", all},
		{"single source", "codex", []string{SourceCodex}},
		{"order preserved", "gemini,claude", []string{SourceGemini, SourceClaude}},
		{"duplicates dropped", "codex, codex ,claude", []string{SourceCodex, SourceClaude}},
		{"case folded", "Claude,GEMINI", []string{SourceClaude, SourceGemini}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSources(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeSources(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetSource(t *testing.T) {
	if src := GetSource("Codex"); src == nil || src.Name != SourceCodex {
		t.Errorf("GetSource(Codex) = %v", src)
	}
	if src := GetSource("cursor"); src != nil {
		t.Errorf("GetSource(cursor) = %v, want nil", src)
	}
}

func TestSourceFileMatch(t *testing.T) {
	tests := []struct {
		source string
		path   string
		name   string
		want   bool
	}{
		{SourceClaude, "/h/.claude/projects/p/s.jsonl", "s.jsonl", true},
		{SourceClaude, "/h/.claude/projects/p/s.json", "s.json", false},
		{SourceCodex, "/h/.codex/sessions/2025/08/25/rollout.jsonl", "rollout.jsonl", true},
		{SourceGemini, "/h/.gemini/tmp/abc/chats/session-1.json", "session-1.json", true},
		{SourceGemini, "/h/.gemini/tmp/abc/session-1.json", "session-1.json", false},
		{SourceGemini, "/h/.gemini/tmp/abc/chats/notes.json", "notes.json", false},
	}
	for _, tt := range tests {
		src := Registry[tt.source]
		if got := src.FileMatch(tt.path, tt.name); got != tt.want {
			t.Errorf("%s FileMatch(%s) = %v, want %v", tt.source, tt.path, got, tt.want)
		}
	}
}
