package watch

import (
	"os"
	"time"

	"github.com/lllll081926i/Aitify/internal/detect"
)

// sourceWatcher is one source's poll unit. Poll and CheckDebounce are
// invoked from the session loop goroutine only.
type sourceWatcher interface {
	Name() string
	Root() string
	Poll(now int64)
	CheckDebounce(now int64)
	Close()
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// claudeWatcher follows the single most recent Claude session file.
type claudeWatcher struct {
	root     string
	timings  TurnTimings
	detector *detect.ConfirmDetector
	dispatch Dispatcher
	logf     func(format string, args ...any)

	selector *Selector
	follower *Follower
	turn     *claudeTurn
	busy     bool
}

func newClaudeWatcher(root string, timings TurnTimings, detector *detect.ConfirmDetector, dispatch Dispatcher, logf func(string, ...any)) *claudeWatcher {
	src := Registry[SourceClaude]
	return &claudeWatcher{
		root:     root,
		timings:  timings,
		detector: detector,
		dispatch: dispatch,
		logf:     logf,
		selector: NewSelector(root, src.FileMatch, 1),
	}
}

func (w *claudeWatcher) Name() string { return SourceClaude }
func (w *claudeWatcher) Root() string { return w.root }

func (w *claudeWatcher) Poll(now int64) {
	if w.busy {
		return
	}
	w.busy = true
	defer func() { w.busy = false }()

	if _, err := os.Stat(w.root); err != nil {
		return
	}
	paths := w.selector.Refresh(false)
	if len(paths) == 0 {
		return
	}
	latest := paths[0]

	handle := func(line string, seed bool) {
		ev := detect.DecodeClaudeLine(line)
		if ev.Kind == detect.KindNone && ev.Cwd == "" {
			return
		}
		w.turn.HandleEvent(ev, seed, nowMs())
	}

	if w.follower == nil || w.follower.Path() != latest {
		// Newer session file: discard the old turn state entirely.
		w.turn = newClaudeTurn(w.timings, w.detector, w.dispatch)
		w.follower = NewFollower(latest)
		if err := w.follower.Attach(handle); err != nil {
			w.follower = nil
			return
		}
		w.turn.FinishSeed(now)
		w.logf("[watch][claude] following %s", latest)
		return
	}

	w.follower.Poll(handle)
}

func (w *claudeWatcher) CheckDebounce(now int64) {
	if w.turn != nil {
		w.turn.CheckDebounce(now)
	}
}

func (w *claudeWatcher) Close() {
	if w.turn != nil {
		w.turn.Cancel()
	}
}

// codexFollower pairs one followed session file with its turn state.
type codexFollower struct {
	follower *Follower
	turn     *codexTurn
}

// codexWatcher follows the top-N most recent Codex session files at once.
type codexWatcher struct {
	root     string
	timings  TurnTimings
	detector *detect.ConfirmDetector
	dispatch Dispatcher
	logf     func(format string, args ...any)

	selector *Selector
	sessions map[string]*codexFollower
	busy     bool
}

func newCodexWatcher(root string, maxSessions int, timings TurnTimings, detector *detect.ConfirmDetector, dispatch Dispatcher, logf func(string, ...any)) *codexWatcher {
	src := Registry[SourceCodex]
	return &codexWatcher{
		root:     root,
		timings:  timings,
		detector: detector,
		dispatch: dispatch,
		logf:     logf,
		selector: NewSelector(root, src.FileMatch, maxSessions),
		sessions: make(map[string]*codexFollower),
	}
}

func (w *codexWatcher) Name() string { return SourceCodex }
func (w *codexWatcher) Root() string { return w.root }

func (w *codexWatcher) Poll(now int64) {
	if w.busy {
		return
	}
	w.busy = true
	defer func() { w.busy = false }()

	if _, err := os.Stat(w.root); err != nil {
		return
	}
	paths := w.selector.Refresh(false)

	desired := make(map[string]bool, len(paths))
	for _, path := range paths {
		desired[path] = true
	}

	// Sessions that fell out of the top-N lose their in-memory state;
	// re-entering later re-seeds from scratch.
	for path, sess := range w.sessions {
		if !desired[path] {
			sess.turn.Cancel()
			delete(w.sessions, path)
			w.logf("[watch][codex] detached %s", path)
		}
	}

	for _, path := range paths {
		sess, ok := w.sessions[path]
		if !ok {
			sess = &codexFollower{
				follower: NewFollower(path),
				turn:     newCodexTurn(w.timings, w.detector, w.dispatch),
			}
			handle := w.handler(sess.turn)
			if err := sess.follower.Attach(handle); err != nil {
				continue
			}
			w.sessions[path] = sess
			w.logf("[watch][codex] following %s", path)
			continue
		}
		sess.follower.Poll(w.handler(sess.turn))
	}
}

func (w *codexWatcher) handler(turn *codexTurn) LineFunc {
	return func(line string, seed bool) {
		ev := detect.DecodeCodexLine(line)
		if ev.Kind == detect.KindNone {
			return
		}
		turn.HandleEvent(ev, seed, nowMs())
	}
}

func (w *codexWatcher) CheckDebounce(now int64) {
	for _, sess := range w.sessions {
		sess.turn.CheckDebounce(now)
	}
}

func (w *codexWatcher) Close() {
	for path, sess := range w.sessions {
		sess.turn.Cancel()
		delete(w.sessions, path)
	}
}

// geminiWatcher re-reads the latest whole-file Gemini session on mtime
// change and feeds only the appended message suffix to the machine.
type geminiWatcher struct {
	root     string
	timings  TurnTimings
	detector *detect.ConfirmDetector
	dispatch Dispatcher
	logf     func(format string, args ...any)

	selector  *Selector
	turn      *geminiTurn
	current   string
	mtimeMs   int64
	lastCount int
	busy      bool
}

func newGeminiWatcher(root string, timings TurnTimings, detector *detect.ConfirmDetector, dispatch Dispatcher, logf func(string, ...any)) *geminiWatcher {
	src := Registry[SourceGemini]
	return &geminiWatcher{
		root:     root,
		timings:  timings,
		detector: detector,
		dispatch: dispatch,
		logf:     logf,
		selector: NewSelector(root, src.FileMatch, 1),
	}
}

func (w *geminiWatcher) Name() string { return SourceGemini }
func (w *geminiWatcher) Root() string { return w.root }

func (w *geminiWatcher) Poll(now int64) {
	if w.busy {
		return
	}
	w.busy = true
	defer func() { w.busy = false }()

	if _, err := os.Stat(w.root); err != nil {
		return
	}
	paths := w.selector.Refresh(false)
	if len(paths) == 0 {
		return
	}
	latest := paths[0]

	info, err := os.Stat(latest)
	if err != nil {
		return
	}
	mtime := info.ModTime().UnixMilli()

	if latest != w.current {
		data, err := os.ReadFile(latest)
		if err != nil {
			return
		}
		msgs := detect.DecodeGeminiSession(data)
		if msgs == nil {
			return
		}
		w.turn = newGeminiTurn(w.timings, w.detector, w.dispatch)
		w.turn.Seed(msgs)
		w.current = latest
		w.mtimeMs = mtime
		w.lastCount = len(msgs)
		w.logf("[watch][gemini] following %s", latest)
		return
	}

	if mtime <= w.mtimeMs {
		return
	}

	data, err := os.ReadFile(latest)
	if err != nil {
		return
	}
	msgs := detect.DecodeGeminiSession(data)
	if msgs == nil {
		// Mid-write partial document; mtime stays so the next poll retries.
		return
	}

	if len(msgs) <= w.lastCount {
		w.mtimeMs = mtime
		w.lastCount = len(msgs)
		return
	}

	for _, msg := range msgs[w.lastCount:] {
		w.turn.HandleMessage(msg, nowMs())
	}
	w.mtimeMs = mtime
	w.lastCount = len(msgs)
}

func (w *geminiWatcher) CheckDebounce(now int64) {
	if w.turn != nil {
		w.turn.CheckDebounce(now)
	}
}

func (w *geminiWatcher) Close() {
	if w.turn != nil {
		w.turn.Cancel()
	}
}
