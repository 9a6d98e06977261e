package watch

import (
	"github.com/lllll081926i/Aitify/internal/detect"
)

// debounceSlot is a scheduled completion check. Each turn holds at most one;
// scheduling always replaces the previous slot, and the captured timestamp
// is re-checked at fire time so a slot scheduled against an older assistant
// chunk can never act on a newer turn state.
type debounceSlot struct {
	dueAt      int64 // wall-clock epoch ms when the quiet window elapses
	capturedAt int64 // assistant timestamp this slot was scheduled against
}

// TurnTimings holds the debounce policy shared by the machines.
type TurnTimings struct {
	QuietWithToolMs    int64 // quiet window after assistant output with tool use
	QuietWithoutToolMs int64 // quiet window without tool use, capped at 15s
	GeminiDebounceMs   int64 // fixed debounce for gemini messages
	TokenGraceMs       int64 // codex legacy token-count grace
}

// DefaultTimings returns the shipped debounce policy.
func DefaultTimings() TurnTimings {
	return TurnTimings{
		QuietWithToolMs:    60000,
		QuietWithoutToolMs: 15000,
		GeminiDebounceMs:   3000,
		TokenGraceMs:       2500,
	}
}

// quietWithoutToolCapMs bounds the no-tool quiet window: a turn whose final
// chunk has no tool use settles quickly regardless of configuration.
const quietWithoutToolCapMs = 15000

func (t TurnTimings) adaptiveQuiet(hasToolUse bool) int64 {
	if hasToolUse {
		return t.QuietWithToolMs
	}
	quiet := t.QuietWithoutToolMs
	if quiet > quietWithoutToolCapMs {
		quiet = quietWithoutToolCapMs
	}
	return quiet
}

// claudeTurn is the Claude turn state machine. A turn spans from one user
// message to the next; completion is inferred from assistant quiet time
// using a sliding debounce window.
type claudeTurn struct {
	timings  TurnTimings
	detector *detect.ConfirmDetector
	dispatch Dispatcher

	lastUserAt           int64
	lastUserText         string
	lastAssistantAt      int64
	lastAssistantText    string
	lastAssistantContent string
	lastAssistantToolUse bool
	lastCwd              string

	notifiedForTurn        bool
	confirmNotifiedForTurn bool
	lastConfirmKey         string
	lastConfirmAt          int64

	pending *debounceSlot
}

func newClaudeTurn(timings TurnTimings, detector *detect.ConfirmDetector, dispatch Dispatcher) *claudeTurn {
	return &claudeTurn{timings: timings, detector: detector, dispatch: dispatch}
}

// HandleEvent consumes one decoded event. now is epoch milliseconds and
// substitutes for missing event timestamps on live events.
func (c *claudeTurn) HandleEvent(ev detect.LogEvent, seed bool, now int64) {
	if ev.Cwd != "" {
		c.lastCwd = ev.Cwd
	}

	switch ev.Kind {
	case detect.KindUserMessage:
		c.onUser(ev, seed, now)
	case detect.KindAssistantMessage:
		c.onAssistant(ev, seed, now)
	}
}

func (c *claudeTurn) onUser(ev detect.LogEvent, seed bool, now int64) {
	// A user message starts a new turn: everything turn-scoped resets.
	c.lastUserText = ev.Text
	c.lastAssistantText = ""
	c.lastAssistantContent = ""
	c.lastAssistantToolUse = false
	c.lastConfirmKey = ""
	c.confirmNotifiedForTurn = false
	c.notifiedForTurn = false
	c.pending = nil

	switch {
	case ev.Timestamp != 0:
		c.lastUserAt = ev.Timestamp
	case !seed:
		c.lastUserAt = now
	}
}

func (c *claudeTurn) onAssistant(ev detect.LogEvent, seed bool, now int64) {
	if ev.Text != "" {
		c.lastAssistantText = ev.Text
		c.lastAssistantContent = ev.Text
	}
	c.lastAssistantToolUse = ev.HasToolActivity

	c.lastAssistantAt = ev.Timestamp
	if c.lastAssistantAt == 0 {
		c.lastAssistantAt = now
	}

	if seed {
		// Seed events only prime state; FinishSeed decides whether the
		// trailing turn deserves a catch-up debounce.
		return
	}

	if c.detector.Enabled() && !c.confirmNotifiedForTurn {
		if prompt := c.detector.Classify(ev.Text); prompt != "" {
			if c.emitConfirm(prompt, now) {
				return
			}
		}
	}

	if c.lastUserAt == 0 || c.notifiedForTurn || c.confirmNotifiedForTurn {
		return
	}

	// Sliding window: every assistant chunk replaces the pending slot, so
	// the quiet clock restarts from the latest chunk.
	quiet := c.timings.adaptiveQuiet(ev.HasToolActivity)
	c.pending = &debounceSlot{dueAt: now + quiet, capturedAt: c.lastAssistantAt}
}

// FinishSeed runs once after the attach replay. If the file ended mid-turn
// (assistant after user) recently enough, a debounce is scheduled as if the
// assistant chunk had just arrived, so a turn that settled moments before
// the watcher started is not silently lost.
func (c *claudeTurn) FinishSeed(now int64) {
	if c.lastAssistantAt == 0 || c.notifiedForTurn || c.confirmNotifiedForTurn {
		return
	}
	if c.lastUserAt == 0 || c.lastAssistantAt < c.lastUserAt {
		return
	}

	quiet := c.timings.adaptiveQuiet(c.lastAssistantToolUse)
	window := 2 * quiet
	if window < quietWithoutToolCapMs {
		window = quietWithoutToolCapMs
	}
	if now-c.lastAssistantAt > window {
		return
	}
	c.pending = &debounceSlot{dueAt: now + quiet, capturedAt: c.lastAssistantAt}
}

// CheckDebounce fires the pending slot if due. Stale slots (captured
// timestamp no longer current) are dropped without effect.
func (c *claudeTurn) CheckDebounce(now int64) {
	if c.pending == nil || now < c.pending.dueAt {
		return
	}
	slot := c.pending
	c.pending = nil

	if slot.capturedAt != c.lastAssistantAt {
		return
	}
	if c.notifiedForTurn || c.confirmNotifiedForTurn {
		return
	}

	c.notifiedForTurn = true
	output := c.lastAssistantContent
	if output == "" {
		output = c.lastAssistantText
	}
	c.dispatch(Signal{
		Source:           SourceClaude,
		Kind:             KindComplete,
		TaskInfo:         "Claude Code finished",
		DurationMs:       durationBetween(c.lastUserAt, c.lastAssistantAt),
		Cwd:              c.lastCwd,
		OutputContent:    output,
		UserMessage:      c.lastUserText,
		AssistantMessage: c.lastAssistantText,
	})
}

// emitConfirm sends a confirm signal unless an identical prompt fired
// within the dedupe window. Reports whether a signal was sent.
func (c *claudeTurn) emitConfirm(prompt string, now int64) bool {
	key := detect.TruncateText(prompt, 120)
	if key == c.lastConfirmKey && now-c.lastConfirmAt < detect.ConfirmDedupeWindowMs {
		return false
	}
	c.lastConfirmKey = key
	c.lastConfirmAt = now
	c.confirmNotifiedForTurn = true
	c.pending = nil

	c.dispatch(Signal{
		Source:           SourceClaude,
		Kind:             KindConfirm,
		TaskInfo:         "Claude Code needs confirmation",
		DurationMs:       durationUnknown,
		Cwd:              c.lastCwd,
		OutputContent:    prompt,
		UserMessage:      c.lastUserText,
		AssistantMessage: c.lastAssistantText,
	})
	return true
}

// Cancel drops any pending debounce (watch teardown or file switch).
func (c *claudeTurn) Cancel() {
	c.pending = nil
}
