package watch

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Source names form a closed set; each has its own state machine.
const (
	SourceClaude = "claude"
	SourceCodex  = "codex"
	SourceGemini = "gemini"
)

// Source describes one supported agent CLI and where it writes its logs.
type Source struct {
	Name         string   // Internal name (lowercase)
	DisplayName  string   // Human-readable name
	LogRoot      string   // Default log root (with ~ for home)
	FileMatch    func(path, name string) bool
	ProcessNames []string // Process names for PID detection
}

// Registry is the single source of truth for supported agents.
var Registry = map[string]Source{
	SourceClaude: {
		Name:        SourceClaude,
		DisplayName: "Claude Code",
		LogRoot:     "~/.claude/projects",
		FileMatch: func(path, name string) bool {
			return strings.HasSuffix(strings.ToLower(name), ".jsonl")
		},
		ProcessNames: []string{"claude", "claude-code"},
	},
	SourceCodex: {
		Name:        SourceCodex,
		DisplayName: "Codex",
		LogRoot:     "~/.codex/sessions",
		FileMatch: func(path, name string) bool {
			return strings.HasSuffix(strings.ToLower(name), ".jsonl")
		},
		ProcessNames: []string{"codex"},
	},
	SourceGemini: {
		Name:        SourceGemini,
		DisplayName: "Gemini",
		LogRoot:     "~/.gemini/tmp",
		FileMatch: func(path, name string) bool {
			lower := strings.ToLower(name)
			return strings.HasPrefix(lower, "session-") &&
				strings.HasSuffix(lower, ".json") &&
				strings.Contains(filepath.ToSlash(path), "/chats/")
		},
		ProcessNames: []string{"gemini"},
	},
}

// GetSource returns the source definition for the given name, or nil.
func GetSource(name string) *Source {
	if src, ok := Registry[strings.ToLower(name)]; ok {
		return &src
	}
	return nil
}

// NormalizeSources parses a comma-separated source list. Empty input or an
// "all" entry selects every supported source; duplicates are dropped and
// order is preserved.
func NormalizeSources(input string) []string {
	all := []string{SourceClaude, SourceCodex, SourceGemini}
	if strings.TrimSpace(input) == "" {
		return all
	}

	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(input, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if name == "all" {
			return all
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// DetectActiveSources scans the filesystem for sources with log activity
// within the given window. Used by the check command and setup wizard.
func DetectActiveSources(within time.Duration) []Source {
	var active []Source
	for _, name := range []string{SourceClaude, SourceCodex, SourceGemini} {
		src := Registry[name]
		root := ExpandPath(src.LogRoot)
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			continue
		}
		if hasRecentActivity(root, src.FileMatch, within) {
			active = append(active, src)
		}
	}
	return active
}

func hasRecentActivity(dir string, match func(path, name string) bool, within time.Duration) bool {
	var mostRecent time.Time

	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if match != nil && !match(path, info.Name()) {
			return nil
		}
		if info.ModTime().After(mostRecent) {
			mostRecent = info.ModTime()
		}
		if time.Since(mostRecent) < within {
			return filepath.SkipAll
		}
		return nil
	})

	return !mostRecent.IsZero() && time.Since(mostRecent) < within
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return home
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}
