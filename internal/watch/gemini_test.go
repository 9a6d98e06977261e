package watch

import (
	"testing"

	"github.com/lllll081926i/Aitify/internal/detect"
)

func newTestGeminiTurn(rec *sigRecorder) *geminiTurn {
	det := detect.NewConfirmDetector(func() bool { return true }, nil)
	return newGeminiTurn(testTimings(), det, rec.dispatch)
}

func geminiUser(text string, ts int64) detect.GeminiMessage {
	return detect.GeminiMessage{Kind: detect.KindUserMessage, Text: text, Timestamp: ts}
}

func geminiAssistant(text string, ts int64) detect.GeminiMessage {
	return detect.GeminiMessage{Kind: detect.KindAssistantMessage, Text: text, Timestamp: ts}
}

func TestGeminiSeed(t *testing.T) {
	t.Run("trailing assistant never rings", func(t *testing.T) {
		rec := &sigRecorder{}
		g := newTestGeminiTurn(rec)

		now := int64(1_700_000_000_000)
		g.Seed([]detect.GeminiMessage{
			geminiUser("summarize this", now-8000),
			geminiAssistant("here is the summary", now-2000),
		})

		g.CheckDebounce(now + 60000)
		if len(rec.signals) != 0 {
			t.Fatalf("got %v, want silence for seed content", rec.kinds())
		}
	})

	t.Run("live message after seed rings normally", func(t *testing.T) {
		rec := &sigRecorder{}
		g := newTestGeminiTurn(rec)

		now := int64(1_700_000_000_000)
		g.Seed([]detect.GeminiMessage{
			geminiUser("summarize this", now-8000),
			geminiAssistant("partial", now-2000),
		})

		g.HandleMessage(geminiAssistant("full summary", now), now)
		g.CheckDebounce(now + 3000)
		if len(rec.signals) != 1 || rec.signals[0].Kind != KindComplete {
			t.Fatalf("got %v, want one completion", rec.kinds())
		}
		if rec.signals[0].OutputContent != "full summary" {
			t.Errorf("OutputContent = %q", rec.signals[0].OutputContent)
		}
	})
}

func TestGeminiDebounce(t *testing.T) {
	t.Run("fires after the fixed window", func(t *testing.T) {
		rec := &sigRecorder{}
		g := newTestGeminiTurn(rec)

		t0 := int64(1_700_000_000_000)
		g.HandleMessage(geminiUser("go", t0), t0)
		g.HandleMessage(geminiAssistant("answer", t0+1000), t0+1000)

		g.CheckDebounce(t0 + 1000 + 2999)
		if len(rec.signals) != 0 {
			t.Fatal("fired before the debounce elapsed")
		}
		g.CheckDebounce(t0 + 1000 + 3000)
		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1", len(rec.signals))
		}
		if rec.signals[0].DurationMs != 1000 {
			t.Errorf("DurationMs = %d, want 1000", rec.signals[0].DurationMs)
		}
	})

	t.Run("newer message restarts the window", func(t *testing.T) {
		rec := &sigRecorder{}
		g := newTestGeminiTurn(rec)

		t0 := int64(1_700_000_000_000)
		g.HandleMessage(geminiUser("go", t0), t0)
		g.HandleMessage(geminiAssistant("chunk 1", t0+1000), t0+1000)
		g.HandleMessage(geminiAssistant("chunk 2", t0+3000), t0+3000)

		g.CheckDebounce(t0 + 1000 + 3000)
		if len(rec.signals) != 0 {
			t.Fatal("the first chunk's window is obsolete")
		}
		g.CheckDebounce(t0 + 3000 + 3000)
		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1", len(rec.signals))
		}
		if rec.signals[0].OutputContent != "chunk 2" {
			t.Errorf("OutputContent = %q, want the final chunk", rec.signals[0].OutputContent)
		}
	})

	t.Run("stale slot is dropped", func(t *testing.T) {
		rec := &sigRecorder{}
		g := newTestGeminiTurn(rec)

		t0 := int64(1_700_000_000_000)
		g.HandleMessage(geminiUser("go", t0), t0)
		g.HandleMessage(geminiAssistant("chunk 1", t0+1000), t0+1000)

		stale := &debounceSlot{dueAt: t0 + 1000 + 3000, capturedAt: t0 + 1000}
		g.HandleMessage(geminiAssistant("chunk 2", t0+2000), t0+2000)
		g.pending = stale

		g.CheckDebounce(t0 + 1000 + 3000)
		if len(rec.signals) != 0 {
			t.Fatal("stale slot must no-op on the timestamp mismatch")
		}
	})

	t.Run("at most one completion per turn", func(t *testing.T) {
		rec := &sigRecorder{}
		g := newTestGeminiTurn(rec)

		t0 := int64(1_700_000_000_000)
		g.HandleMessage(geminiUser("go", t0), t0)
		g.HandleMessage(geminiAssistant("answer", t0+1000), t0+1000)
		g.CheckDebounce(t0 + 1000 + 3000)
		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1", len(rec.signals))
		}

		// More assistant chatter inside the same turn stays silent.
		g.HandleMessage(geminiAssistant("ps: footnote", t0+10000), t0+10000)
		g.CheckDebounce(t0 + 10000 + 3000)
		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want still 1", len(rec.signals))
		}

		// A new user message opens the next turn.
		g.HandleMessage(geminiUser("another", t0+20000), t0+20000)
		g.HandleMessage(geminiAssistant("second answer", t0+21000), t0+21000)
		g.CheckDebounce(t0 + 21000 + 3000)
		if len(rec.signals) != 2 {
			t.Fatalf("signals = %d, want 2 after the next turn", len(rec.signals))
		}
	})

	t.Run("user message cancels a pending window", func(t *testing.T) {
		rec := &sigRecorder{}
		g := newTestGeminiTurn(rec)

		t0 := int64(1_700_000_000_000)
		g.HandleMessage(geminiUser("go", t0), t0)
		g.HandleMessage(geminiAssistant("answer", t0+1000), t0+1000)
		g.HandleMessage(geminiUser("wait, change it", t0+2000), t0+2000)

		g.CheckDebounce(t0 + 1000 + 3000)
		if len(rec.signals) != 0 {
			t.Fatal("a new user message must cancel the pending completion")
		}
	})

	t.Run("floor applies to tiny debounce values", func(t *testing.T) {
		rec := &sigRecorder{}
		det := detect.NewConfirmDetector(func() bool { return true }, nil)
		timings := testTimings()
		timings.GeminiDebounceMs = 10
		g := newGeminiTurn(timings, det, rec.dispatch)

		t0 := int64(1_700_000_000_000)
		g.HandleMessage(geminiUser("go", t0), t0)
		g.HandleMessage(geminiAssistant("answer", t0+100), t0+100)

		g.CheckDebounce(t0 + 100 + 499)
		if len(rec.signals) != 0 {
			t.Fatal("fired below the 500ms floor")
		}
		g.CheckDebounce(t0 + 100 + 500)
		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1", len(rec.signals))
		}
	})
}
