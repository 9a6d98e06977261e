package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lllll081926i/Aitify/internal/detect"
)

// Options configures a watch session.
type Options struct {
	// Sources selects which machines run; empty means all three.
	Sources []string
	// Roots overrides the default log root per source (for tests and
	// non-standard installs). Paths may use ~.
	Roots map[string]string
	// CodexMaxSessions bounds how many Codex session files are followed
	// concurrently.
	CodexMaxSessions int

	Timings  TurnTimings
	Detector *detect.ConfirmDetector
	Dispatch Dispatcher

	// Poll intervals per source; zero selects the default. Clamped to a
	// 500ms floor.
	ClaudeInterval time.Duration
	CodexInterval  time.Duration
	GeminiInterval time.Duration

	// ForcePolling disables the fsnotify fast path.
	ForcePolling bool

	// Logf receives watch lifecycle and dispatch-result lines. nil means
	// discard.
	Logf func(format string, args ...any)
}

// Session owns the per-source watchers for one watch run: explicit
// lifecycle, created on start and torn down on stop. All watcher state is
// touched only from the Run goroutine; dispatches are fired on their own
// goroutines and never block the loop.
type Session struct {
	opts     Options
	watchers []sourceWatcher
	logf     func(format string, args ...any)
}

const (
	defaultClaudeInterval = time.Second
	defaultCodexInterval  = time.Second
	defaultGeminiInterval = 1500 * time.Millisecond
	debounceSweepInterval = 250 * time.Millisecond
	minPollInterval       = 500 * time.Millisecond
)

// NewSession builds a session from options. The dispatcher is required.
func NewSession(opts Options) (*Session, error) {
	if opts.Dispatch == nil {
		return nil, fmt.Errorf("watch: dispatcher is required")
	}
	if opts.Detector == nil {
		opts.Detector = detect.NewConfirmDetector(nil, nil)
	}
	if opts.Timings == (TurnTimings{}) {
		opts.Timings = DefaultTimings()
	}
	if opts.CodexMaxSessions <= 0 {
		opts.CodexMaxSessions = 3
	}

	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	s := &Session{opts: opts, logf: logf}

	names := opts.Sources
	if len(names) == 0 {
		names = NormalizeSources("")
	}
	for _, name := range names {
		src := GetSource(name)
		if src == nil {
			return nil, fmt.Errorf("watch: unknown source %q", name)
		}
		root := opts.Roots[name]
		if root == "" {
			root = src.LogRoot
		}
		root = ExpandPath(root)

		switch name {
		case SourceClaude:
			s.watchers = append(s.watchers, newClaudeWatcher(root, opts.Timings, opts.Detector, opts.Dispatch, logf))
		case SourceCodex:
			s.watchers = append(s.watchers, newCodexWatcher(root, opts.CodexMaxSessions, opts.Timings, opts.Detector, opts.Dispatch, logf))
		case SourceGemini:
			s.watchers = append(s.watchers, newGeminiWatcher(root, opts.Timings, opts.Detector, opts.Dispatch, logf))
		}
	}
	if len(s.watchers) == 0 {
		return nil, fmt.Errorf("watch: no sources selected")
	}
	return s, nil
}

// Run drives the session until ctx is cancelled. All polling, decoding, and
// state transitions happen on this goroutine; fsnotify events only wake the
// owning source's poll early.
func (s *Session) Run(ctx context.Context) error {
	var fsw *fsnotify.Watcher
	if !s.opts.ForcePolling {
		var err error
		fsw, err = fsnotify.NewWatcher()
		if err != nil {
			s.logf("[watch] fsnotify unavailable, polling only: %v", err)
			fsw = nil
		} else {
			defer fsw.Close()
			for _, w := range s.watchers {
				s.addWatchTree(fsw, w.Root())
			}
		}
	}

	// The source set is closed, so each machine gets its own named ticker
	// channel; absent sources leave a nil channel that never fires.
	byName := make(map[string]sourceWatcher, len(s.watchers))
	var claudeTick, codexTick, geminiTick <-chan time.Time
	for _, w := range s.watchers {
		byName[w.Name()] = w
		t := time.NewTicker(s.pollInterval(w.Name()))
		defer t.Stop()
		switch w.Name() {
		case SourceClaude:
			claudeTick = t.C
		case SourceCodex:
			codexTick = t.C
		case SourceGemini:
			geminiTick = t.C
		}
	}

	sweep := time.NewTicker(debounceSweepInterval)
	defer sweep.Stop()

	// Initial poll so attaches happen before the first tick.
	for _, w := range s.watchers {
		w.Poll(nowMs())
	}

	var fsEvents chan fsnotify.Event
	var fsErrors chan error
	if fsw != nil {
		fsEvents = fsw.Events
		fsErrors = fsw.Errors
	}

	for {
		select {
		case <-ctx.Done():
			s.close()
			return ctx.Err()

		case event, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			s.handleFSEvent(fsw, event)

		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			s.logf("[watch] fsnotify error: %v", err)

		case <-sweep.C:
			now := nowMs()
			for _, w := range s.watchers {
				w.CheckDebounce(now)
			}

		case <-claudeTick:
			byName[SourceClaude].Poll(nowMs())

		case <-codexTick:
			byName[SourceCodex].Poll(nowMs())

		case <-geminiTick:
			byName[SourceGemini].Poll(nowMs())
		}
	}
}

func (s *Session) pollInterval(name string) time.Duration {
	var d time.Duration
	switch name {
	case SourceClaude:
		d = s.opts.ClaudeInterval
		if d == 0 {
			d = defaultClaudeInterval
		}
	case SourceCodex:
		d = s.opts.CodexInterval
		if d == 0 {
			d = defaultCodexInterval
		}
	case SourceGemini:
		d = s.opts.GeminiInterval
		if d == 0 {
			d = defaultGeminiInterval
		}
	}
	if d < minPollInterval {
		d = minPollInterval
	}
	return d
}

// handleFSEvent wakes the source owning the changed path.
func (s *Session) handleFSEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	// New directories need a watch too (Codex nests by date).
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			fsw.Add(event.Name)
		}
	}

	for _, w := range s.watchers {
		rel, err := filepath.Rel(w.Root(), event.Name)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		w.Poll(nowMs())
		return
	}
}

// addWatchTree registers root and its subdirectories with fsnotify. Missing
// roots are fine; polling covers them.
func (s *Session) addWatchTree(fsw *fsnotify.Watcher, root string) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return
	}
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		fsw.Add(path)
		return nil
	})
}

// close cancels every watcher's pending timers and followers.
func (s *Session) close() {
	for _, w := range s.watchers {
		w.Close()
	}
}
