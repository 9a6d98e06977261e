package watch

import (
	"github.com/lllll081926i/Aitify/internal/detect"
)

// codexTurn is the Codex turn state machine. Codex logs carry explicit
// task_started/task_complete markers, so completion is event-driven rather
// than quiet-driven; the complications are interactive requests (which block
// completion while outstanding) and the legacy token-count grace path.
type codexTurn struct {
	timings  TurnTimings
	detector *detect.ConfirmDetector
	dispatch Dispatcher

	currentTurnID     string
	collaborationMode string
	lastTaskStartedAt int64
	lastUserAt        int64
	lastUserText      string
	lastAssistantAt   int64
	lastAssistantText string
	lastAgentContent  string
	lastCwd           string

	lastNotifiedTurnID     string
	completedForTurn       bool
	confirmNotifiedForTurn bool
	lastConfirmKey         string
	lastConfirmAt          int64

	// openRequests tracks outstanding interactive requests by call id.
	// Completion is forbidden while the set is non-empty.
	openRequests map[string]struct{}
	// notifiedRequests dedupes confirm signals per request id, so a request
	// replayed by a seed-then-live double read fires exactly once.
	notifiedRequests map[string]struct{}
	lastRequestText  string

	// pendingToken is the tentative completion armed by a token_count
	// signal; any further activity clears it.
	pendingToken *debounceSlot
}

func newCodexTurn(timings TurnTimings, detector *detect.ConfirmDetector, dispatch Dispatcher) *codexTurn {
	return &codexTurn{
		timings:          timings,
		detector:         detector,
		dispatch:         dispatch,
		openRequests:     make(map[string]struct{}),
		notifiedRequests: make(map[string]struct{}),
	}
}

func (c *codexTurn) interactionRequired() bool {
	return len(c.openRequests) > 0
}

func (c *codexTurn) openRequestNotified() bool {
	for id := range c.openRequests {
		if _, ok := c.notifiedRequests[id]; ok {
			return true
		}
	}
	return false
}

// HandleEvent consumes one decoded event. now is epoch milliseconds.
func (c *codexTurn) HandleEvent(ev detect.LogEvent, seed bool, now int64) {
	switch ev.Kind {
	case detect.KindContextUpdate:
		c.onContext(ev)
	case detect.KindTurnStarted:
		c.onTurnStarted(ev, now)
	case detect.KindUserMessage:
		c.onUser(ev, seed, now)
	case detect.KindAssistantMessage:
		c.onAssistant(ev, seed, now)
	case detect.KindToolActivity:
		// Tool activity proves the assistant is still working.
		c.pendingToken = nil
	case detect.KindInteractiveRequest:
		c.onInteractiveRequest(ev, seed, now)
	case detect.KindInteractiveResponse:
		delete(c.openRequests, ev.RequestID)
	case detect.KindTokenCount:
		c.onTokenCount(ev, seed, now)
	case detect.KindTurnComplete:
		c.onTurnComplete(ev, seed, now)
	}
}

func (c *codexTurn) onContext(ev detect.LogEvent) {
	if ev.Cwd != "" {
		c.lastCwd = ev.Cwd
	}
	if ev.Mode != "" {
		c.collaborationMode = ev.Mode
	}
	if ev.TurnID != "" && ev.TurnID != c.currentTurnID {
		c.beginTurn(ev.TurnID)
	}
}

func (c *codexTurn) onTurnStarted(ev detect.LogEvent, now int64) {
	if ev.TurnID != "" {
		c.currentTurnID = ev.TurnID
	}
	if ev.Mode != "" {
		c.collaborationMode = ev.Mode
	}
	c.beginTurn(c.currentTurnID)
	c.lastTaskStartedAt = ev.Timestamp
	if c.lastTaskStartedAt == 0 {
		c.lastTaskStartedAt = now
	}
}

// beginTurn resets everything scoped to a single turn.
func (c *codexTurn) beginTurn(turnID string) {
	c.currentTurnID = turnID
	c.lastConfirmKey = ""
	c.confirmNotifiedForTurn = false
	c.completedForTurn = false
	c.openRequests = make(map[string]struct{})
	c.lastRequestText = ""
	c.pendingToken = nil
}

func (c *codexTurn) onUser(ev detect.LogEvent, seed bool, now int64) {
	if !seed {
		c.lastTaskStartedAt = 0
	}
	c.lastUserAt = ev.Timestamp
	if c.lastUserAt == 0 && !seed {
		c.lastUserAt = now
	}
	c.lastUserText = ev.Text
	c.lastConfirmKey = ""
	c.confirmNotifiedForTurn = false
	c.completedForTurn = false
	c.openRequests = make(map[string]struct{})
	c.lastRequestText = ""
	c.pendingToken = nil
}

func (c *codexTurn) onAssistant(ev detect.LogEvent, seed bool, now int64) {
	if seed {
		return
	}
	if ev.Text != "" {
		c.lastAssistantText = ev.Text
		c.lastAgentContent = ev.Text
	}
	c.lastAssistantAt = ev.Timestamp
	if c.lastAssistantAt == 0 {
		c.lastAssistantAt = now
	}
}

func (c *codexTurn) onInteractiveRequest(ev detect.LogEvent, seed bool, now int64) {
	if ev.RequestID == "" {
		return
	}
	c.openRequests[ev.RequestID] = struct{}{}
	if ev.Text != "" {
		c.lastRequestText = ev.Text
	}
	c.pendingToken = nil

	if !c.detector.Enabled() {
		return
	}
	if _, done := c.notifiedRequests[ev.RequestID]; done {
		return
	}
	c.notifiedRequests[ev.RequestID] = struct{}{}

	// A seed replay of a long-answered request should not ring now.
	if seed && ev.Timestamp != 0 && now-ev.Timestamp > 2*detect.ConfirmDedupeWindowMs {
		return
	}

	prompt := ev.Text
	if prompt == "" {
		prompt = "Codex is waiting for your confirmation"
	}
	// Per-request confirms deliberately leave confirmNotifiedForTurn
	// untouched: a later trailing-question confirm within the same turn is
	// still possible, while completion stays blocked by the open set.
	c.lastConfirmAt = now
	c.dispatch(Signal{
		Source:           SourceCodex,
		Kind:             KindConfirm,
		TaskInfo:         "Codex needs your input",
		DurationMs:       durationUnknown,
		Cwd:              c.lastCwd,
		OutputContent:    prompt,
		UserMessage:      c.lastUserText,
		AssistantMessage: c.lastAssistantText,
	})
}

func (c *codexTurn) onTokenCount(ev detect.LogEvent, seed bool, now int64) {
	if seed {
		return
	}
	// Legacy corroboration path: older rollouts never write task_complete,
	// so a token accounting record arms a short tentative-completion grace.
	if c.interactionRequired() || c.completedForTurn || c.confirmNotifiedForTurn {
		return
	}
	grace := c.timings.TokenGraceMs
	if grace <= 0 {
		return
	}
	c.pendingToken = &debounceSlot{dueAt: now + grace, capturedAt: c.lastAssistantAt}
}

func (c *codexTurn) onTurnComplete(ev detect.LogEvent, seed bool, now int64) {
	// The explicit signal supersedes any tentative completion.
	c.pendingToken = nil
	if seed {
		return
	}

	turnID := ev.TurnID
	if turnID != "" && turnID == c.lastNotifiedTurnID {
		return
	}

	completionAt := ev.Timestamp
	if completionAt == 0 {
		completionAt = now
	}
	if ev.Text != "" {
		c.lastAssistantText = ev.Text
		c.lastAgentContent = ev.Text
		c.lastAssistantAt = completionAt
	}

	if c.interactionRequired() {
		// The turn is waiting on the user, not finished. At most one
		// fallback confirm per turn, with the best prompt available, and
		// only if no open request already rang on arrival.
		if c.detector.Enabled() && !c.confirmNotifiedForTurn && !c.openRequestNotified() {
			prompt := c.lastRequestText
			if prompt == "" {
				prompt = "Codex is waiting for your confirmation"
			}
			c.confirmNotifiedForTurn = true
			c.lastConfirmAt = now
			c.dispatch(Signal{
				Source:           SourceCodex,
				Kind:             KindConfirm,
				TaskInfo:         "Codex needs your input",
				DurationMs:       durationUnknown,
				Cwd:              c.lastCwd,
				OutputContent:    prompt,
				UserMessage:      c.lastUserText,
				AssistantMessage: c.lastAssistantText,
			})
		}
		return
	}

	if c.confirmNotifiedForTurn || c.completedForTurn {
		return
	}

	// Last resort: the turn ended on a trailing question.
	if prompt := c.detector.TurnEndPrompt(c.lastAgentContent); prompt != "" {
		c.confirmNotifiedForTurn = true
		c.lastNotifiedTurnID = turnID
		c.lastConfirmAt = now
		c.dispatch(Signal{
			Source:           SourceCodex,
			Kind:             KindConfirm,
			TaskInfo:         "Codex needs your input",
			DurationMs:       durationUnknown,
			Cwd:              c.lastCwd,
			OutputContent:    prompt,
			UserMessage:      c.lastUserText,
			AssistantMessage: c.lastAssistantText,
		})
		return
	}

	c.emitComplete(turnID, completionAt)
}

func (c *codexTurn) emitComplete(turnID string, completionAt int64) {
	start := c.lastUserAt
	if start == 0 {
		start = c.lastTaskStartedAt
	}

	c.lastNotifiedTurnID = turnID
	c.completedForTurn = true
	c.confirmNotifiedForTurn = true

	c.dispatch(Signal{
		Source:           SourceCodex,
		Kind:             KindComplete,
		TaskInfo:         "Codex finished",
		DurationMs:       durationBetween(start, completionAt),
		Cwd:              c.lastCwd,
		OutputContent:    c.lastAgentContent,
		UserMessage:      c.lastUserText,
		AssistantMessage: c.lastAssistantText,
	})
}

// CheckDebounce fires the token-grace tentative completion if due and still
// corroborated: nothing newer moved the assistant timestamp, no interaction
// opened, and no real signal claimed the turn meanwhile.
func (c *codexTurn) CheckDebounce(now int64) {
	if c.pendingToken == nil || now < c.pendingToken.dueAt {
		return
	}
	slot := c.pendingToken
	c.pendingToken = nil

	if slot.capturedAt != c.lastAssistantAt {
		return
	}
	if c.interactionRequired() || c.completedForTurn || c.confirmNotifiedForTurn {
		return
	}

	completionAt := slot.capturedAt
	if completionAt == 0 {
		completionAt = now
	}
	c.emitComplete(c.currentTurnID, completionAt)
}

// Cancel drops any pending tentative completion (detach or teardown).
func (c *codexTurn) Cancel() {
	c.pendingToken = nil
}
