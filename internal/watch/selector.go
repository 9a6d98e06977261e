package watch

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileEntry is a candidate log file with its modification time.
type FileEntry struct {
	Path    string
	ModTime time.Time
}

// FindRecentFiles walks root and returns up to limit matching files sorted
// newest-mtime-first. match receives the full path and base name; a nil
// match accepts everything. A missing root returns nil.
func FindRecentFiles(root string, match func(path, name string) bool, limit int) []FileEntry {
	info, err := os.Stat(root)
	if err != nil {
		return nil
	}
	if !info.IsDir() {
		if match == nil || match(root, filepath.Base(root)) {
			return []FileEntry{{Path: root, ModTime: info.ModTime()}}
		}
		return nil
	}

	var entries []FileEntry
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if match != nil && !match(path, info.Name()) {
			return nil
		}
		entries = append(entries, FileEntry{Path: path, ModTime: info.ModTime()})
		return nil
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// FindLatestFile returns the most recently modified matching file, or "".
func FindLatestFile(root string, match func(path, name string) bool) string {
	entries := FindRecentFiles(root, match, 1)
	if len(entries) == 0 {
		return ""
	}
	return entries[0].Path
}

// Selector tracks the top-N most-recently-modified session files under a
// root. Directory walks are cached for a short TTL so repeated polls stay
// cheap. Used by the Codex watcher, which follows several concurrent
// session files at once.
type Selector struct {
	root     string
	match    func(path, name string) bool
	limit    int
	current  []string
	lastScan time.Time
	scanTTL  time.Duration
}

// NewSelector creates a selector for up to limit files under root.
func NewSelector(root string, match func(path, name string) bool, limit int) *Selector {
	if limit <= 0 {
		limit = 1
	}
	return &Selector{
		root:    root,
		match:   match,
		limit:   limit,
		scanTTL: 5 * time.Second,
	}
}

// Refresh returns the current top-N set, rescanning only after the TTL has
// elapsed (or when forced).
func (s *Selector) Refresh(force bool) []string {
	if !force && time.Since(s.lastScan) < s.scanTTL {
		return s.current
	}

	entries := FindRecentFiles(s.root, s.match, s.limit)
	s.lastScan = time.Now()

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.Path)
	}
	s.current = paths
	return paths
}
