package watch

import (
	"github.com/lllll081926i/Aitify/internal/detect"
)

// geminiTurn is the Gemini turn state machine. Gemini sessions are whole
// JSON documents re-read on change rather than appended lines; the watcher
// feeds this machine only the new suffix of the message array, so the
// machine itself looks just like the others: user resets the turn, an
// assistant message arms a short fixed debounce.
type geminiTurn struct {
	timings  TurnTimings
	detector *detect.ConfirmDetector
	dispatch Dispatcher

	lastUserAt        int64
	lastUserText      string
	lastGeminiAt      int64
	lastGeminiText    string
	lastGeminiContent string
	lastNotifiedAt    int64
	cwd               string

	confirmNotifiedForTurn bool
	lastConfirmKey         string
	lastConfirmAt          int64

	pending *debounceSlot
}

func newGeminiTurn(timings TurnTimings, detector *detect.ConfirmDetector, dispatch Dispatcher) *geminiTurn {
	return &geminiTurn{timings: timings, detector: detector, dispatch: dispatch}
}

// Seed primes state from a freshly attached session document. The trailing
// assistant message, whatever its age, is marked already-notified: seed
// content predates the watcher and must never ring on its own.
func (g *geminiTurn) Seed(msgs []detect.GeminiMessage) {
	g.lastUserAt = 0
	g.lastUserText = ""
	g.lastGeminiAt = 0
	g.lastGeminiText = ""
	g.lastGeminiContent = ""
	g.lastConfirmKey = ""
	g.confirmNotifiedForTurn = false
	g.pending = nil

	for _, msg := range msgs {
		switch msg.Kind {
		case detect.KindUserMessage:
			g.lastUserAt = msg.Timestamp
			g.lastUserText = msg.Text
		case detect.KindAssistantMessage:
			g.lastGeminiAt = msg.Timestamp
			g.lastGeminiText = msg.Text
		}
	}
	g.lastNotifiedAt = g.lastGeminiAt
}

// HandleMessage consumes one newly appended message.
func (g *geminiTurn) HandleMessage(msg detect.GeminiMessage, now int64) {
	switch msg.Kind {
	case detect.KindUserMessage:
		g.lastUserAt = msg.Timestamp
		if g.lastUserAt == 0 {
			g.lastUserAt = now
		}
		g.lastUserText = msg.Text
		g.lastGeminiAt = 0
		g.lastGeminiText = ""
		g.lastGeminiContent = ""
		g.lastNotifiedAt = 0
		g.lastConfirmKey = ""
		g.confirmNotifiedForTurn = false
		g.pending = nil

	case detect.KindAssistantMessage:
		g.lastGeminiAt = msg.Timestamp
		if g.lastGeminiAt == 0 {
			g.lastGeminiAt = now
		}
		if msg.Text != "" {
			g.lastGeminiText = msg.Text
			g.lastGeminiContent = msg.Text
		}

		if g.detector.Enabled() && !g.confirmNotifiedForTurn {
			if prompt := g.detector.Classify(msg.Text); prompt != "" {
				if g.emitConfirm(prompt, now) {
					return
				}
			}
		}

		if g.confirmNotifiedForTurn {
			return
		}
		debounce := g.timings.GeminiDebounceMs
		if debounce < 500 {
			debounce = 500
		}
		g.pending = &debounceSlot{dueAt: now + debounce, capturedAt: g.lastGeminiAt}
	}
}

// CheckDebounce fires the pending slot if due and not superseded: the
// captured assistant timestamp must still be current and unnotified.
func (g *geminiTurn) CheckDebounce(now int64) {
	if g.pending == nil || now < g.pending.dueAt {
		return
	}
	slot := g.pending
	g.pending = nil

	if slot.capturedAt != g.lastGeminiAt || g.lastNotifiedAt == slot.capturedAt {
		return
	}
	if g.confirmNotifiedForTurn {
		return
	}

	g.lastNotifiedAt = slot.capturedAt
	g.confirmNotifiedForTurn = true
	g.dispatch(Signal{
		Source:           SourceGemini,
		Kind:             KindComplete,
		TaskInfo:         "Gemini finished",
		DurationMs:       durationBetween(g.lastUserAt, slot.capturedAt),
		Cwd:              g.cwd,
		OutputContent:    g.lastGeminiContent,
		UserMessage:      g.lastUserText,
		AssistantMessage: g.lastGeminiText,
	})
}

func (g *geminiTurn) emitConfirm(prompt string, now int64) bool {
	key := detect.TruncateText(prompt, 120)
	if key == g.lastConfirmKey && now-g.lastConfirmAt < detect.ConfirmDedupeWindowMs {
		return false
	}
	g.lastConfirmKey = key
	g.lastConfirmAt = now
	g.confirmNotifiedForTurn = true
	g.pending = nil

	g.dispatch(Signal{
		Source:           SourceGemini,
		Kind:             KindConfirm,
		TaskInfo:         "Gemini needs confirmation",
		DurationMs:       durationUnknown,
		Cwd:              g.cwd,
		OutputContent:    prompt,
		UserMessage:      g.lastUserText,
		AssistantMessage: g.lastGeminiText,
	})
	return true
}

// Cancel drops any pending debounce.
func (g *geminiTurn) Cancel() {
	g.pending = nil
}
