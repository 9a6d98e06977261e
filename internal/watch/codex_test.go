package watch

import (
	"testing"

	"github.com/lllll081926i/Aitify/internal/detect"
)

func newTestCodexTurn(rec *sigRecorder, enabled bool) *codexTurn {
	det := detect.NewConfirmDetector(func() bool { return enabled }, nil)
	return newCodexTurn(testTimings(), det, rec.dispatch)
}

func turnStarted(id string, ts int64) detect.LogEvent {
	return detect.LogEvent{Kind: detect.KindTurnStarted, TurnID: id, Timestamp: ts}
}

func turnComplete(id, text string, ts int64) detect.LogEvent {
	return detect.LogEvent{Kind: detect.KindTurnComplete, TurnID: id, Text: text, Timestamp: ts}
}

func interactiveRequest(id, prompt string, ts int64) detect.LogEvent {
	return detect.LogEvent{Kind: detect.KindInteractiveRequest, RequestID: id, Text: prompt, Timestamp: ts}
}

func interactiveResponse(id string) detect.LogEvent {
	return detect.LogEvent{Kind: detect.KindInteractiveResponse, RequestID: id}
}

func TestCodexCompletion(t *testing.T) {
	t.Run("task complete emits one completion", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(userEvent("do the thing", t0+100), false, t0+100)
		c.HandleEvent(turnComplete("t1", "all done", t0+9000), false, t0+9000)

		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1", len(rec.signals))
		}
		sig := rec.signals[0]
		if sig.Source != SourceCodex || sig.Kind != KindComplete {
			t.Errorf("got %s/%s", sig.Source, sig.Kind)
		}
		if sig.DurationMs != 8900 {
			t.Errorf("DurationMs = %d, want 8900", sig.DurationMs)
		}
		if sig.OutputContent != "all done" {
			t.Errorf("OutputContent = %q", sig.OutputContent)
		}
	})

	t.Run("duration falls back to task start", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(turnComplete("t1", "done", t0+4000), false, t0+4000)

		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1", len(rec.signals))
		}
		if rec.signals[0].DurationMs != 4000 {
			t.Errorf("DurationMs = %d, want 4000", rec.signals[0].DurationMs)
		}
	})

	t.Run("duplicate turn id is dropped", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(turnComplete("t1", "done", t0+1000), false, t0+1000)
		c.HandleEvent(turnComplete("t1", "done", t0+1100), false, t0+1100)

		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1 after replay", len(rec.signals))
		}
	})

	t.Run("seed task complete never rings", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0-5000), true, t0)
		c.HandleEvent(turnComplete("t1", "done", t0-1000), true, t0)

		if len(rec.signals) != 0 {
			t.Fatalf("seed events dispatched %v", rec.kinds())
		}
	})

	t.Run("trailing question turns completion into confirm", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(turnComplete("t1", "Patch ready. Should I apply it?", t0+2000), false, t0+2000)

		if len(rec.signals) != 1 || rec.signals[0].Kind != KindConfirm {
			t.Fatalf("got %v, want one confirm", rec.kinds())
		}
		// The confirm consumed the turn: a replayed complete stays silent.
		c.HandleEvent(turnComplete("t1", "Patch ready. Should I apply it?", t0+2100), false, t0+2100)
		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want still 1", len(rec.signals))
		}
	})
}

func TestCodexInteractiveRequests(t *testing.T) {
	t.Run("open request blocks completion and rings once", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(interactiveRequest("call_1", "Allow network access?", t0+1000), false, t0+1000)

		if len(rec.signals) != 1 || rec.signals[0].Kind != KindConfirm {
			t.Fatalf("got %v, want one confirm on arrival", rec.kinds())
		}
		if rec.signals[0].OutputContent != "Allow network access?" {
			t.Errorf("prompt = %q", rec.signals[0].OutputContent)
		}

		// task_complete with the request still open: no completion and no
		// second confirm.
		c.HandleEvent(turnComplete("t1", "waiting", t0+2000), false, t0+2000)
		if len(rec.signals) != 1 {
			t.Fatalf("got %v, want exactly one signal", rec.kinds())
		}

		// Once answered, the next complete goes through.
		c.HandleEvent(interactiveResponse("call_1"), false, t0+5000)
		c.HandleEvent(turnComplete("t1", "applied", t0+6000), false, t0+6000)
		if len(rec.signals) != 2 || rec.signals[1].Kind != KindComplete {
			t.Fatalf("got %v, want confirm then complete", rec.kinds())
		}
	})

	t.Run("replayed request rings once", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(interactiveRequest("call_1", "Proceed?", t0), false, t0)
		c.HandleEvent(interactiveRequest("call_1", "Proceed?", t0+50), false, t0+50)

		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1 for a repeated request id", len(rec.signals))
		}
	})

	t.Run("detector disabled still blocks completion", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, false)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(interactiveRequest("call_1", "Proceed?", t0+1000), false, t0+1000)
		c.HandleEvent(turnComplete("t1", "waiting", t0+2000), false, t0+2000)
		if len(rec.signals) != 0 {
			t.Fatalf("got %v, want silence with the detector off", rec.kinds())
		}

		c.HandleEvent(interactiveResponse("call_1"), false, t0+3000)
		c.HandleEvent(turnComplete("t1", "done", t0+4000), false, t0+4000)
		if len(rec.signals) != 1 || rec.signals[0].Kind != KindComplete {
			t.Fatalf("got %v, want one completion after the response", rec.kinds())
		}
	})

	t.Run("fallback confirm at complete when arrival stayed silent", func(t *testing.T) {
		rec := &sigRecorder{}
		enabled := false
		det := detect.NewConfirmDetector(func() bool { return enabled }, nil)
		c := newCodexTurn(testTimings(), det, rec.dispatch)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(interactiveRequest("call_1", "Proceed?", t0+1000), false, t0+1000)
		if len(rec.signals) != 0 {
			t.Fatal("arrival must not ring while disabled")
		}

		// Toggled on before the turn settles: the task_complete fallback
		// covers the missed arrival.
		enabled = true
		c.HandleEvent(turnComplete("t1", "waiting", t0+2000), false, t0+2000)
		if len(rec.signals) != 1 || rec.signals[0].Kind != KindConfirm {
			t.Fatalf("got %v, want one fallback confirm", rec.kinds())
		}
		if rec.signals[0].OutputContent != "Proceed?" {
			t.Errorf("prompt = %q, want the request text", rec.signals[0].OutputContent)
		}
	})

	t.Run("stale seed request is swallowed", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		now := int64(1_700_000_000_000)
		c.HandleEvent(interactiveRequest("call_1", "Proceed?", now-120000), true, now)
		if len(rec.signals) != 0 {
			t.Fatal("a long-stale replayed request must not ring")
		}
		// It still counts as handled: the live replay stays silent too.
		c.HandleEvent(interactiveRequest("call_1", "Proceed?", now), false, now)
		if len(rec.signals) != 0 {
			t.Fatal("handled request id must not ring again")
		}
	})

	t.Run("user message clears the open set", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, false)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(turnStarted("t1", t0), false, t0)
		c.HandleEvent(interactiveRequest("call_1", "Proceed?", t0+1000), false, t0+1000)

		// The user answered out of band; a fresh turn must not stay blocked
		// by the abandoned request.
		c.HandleEvent(userEvent("never mind, just finish", t0+5000), false, t0+5000)
		c.HandleEvent(turnComplete("t2", "done", t0+9000), false, t0+9000)
		if len(rec.signals) != 1 || rec.signals[0].Kind != KindComplete {
			t.Fatalf("got %v, want one completion", rec.kinds())
		}
	})
}

func TestCodexTokenGrace(t *testing.T) {
	tokenCount := func(ts int64) detect.LogEvent {
		return detect.LogEvent{Kind: detect.KindTokenCount, Timestamp: ts}
	}

	t.Run("token count completes after the grace", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(userEvent("go", t0), false, t0)
		c.HandleEvent(assistantEvent("done", t0+3000, false), false, t0+3000)
		c.HandleEvent(tokenCount(t0+3100), false, t0+3100)

		c.CheckDebounce(t0 + 3100 + 2499)
		if len(rec.signals) != 0 {
			t.Fatal("fired before the grace elapsed")
		}
		c.CheckDebounce(t0 + 3100 + 2500)
		if len(rec.signals) != 1 || rec.signals[0].Kind != KindComplete {
			t.Fatalf("got %v, want one completion", rec.kinds())
		}
		if rec.signals[0].DurationMs != 3000 {
			t.Errorf("DurationMs = %d, want 3000", rec.signals[0].DurationMs)
		}
	})

	t.Run("tool activity cancels the grace", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(userEvent("go", t0), false, t0)
		c.HandleEvent(assistantEvent("thinking", t0+1000, false), false, t0+1000)
		c.HandleEvent(tokenCount(t0+1100), false, t0+1100)
		c.HandleEvent(detect.LogEvent{Kind: detect.KindToolActivity, Timestamp: t0 + 1200}, false, t0+1200)

		c.CheckDebounce(t0 + 10000)
		if len(rec.signals) != 0 {
			t.Fatalf("got %v, want silence after tool activity", rec.kinds())
		}
	})

	t.Run("explicit complete supersedes the grace", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(userEvent("go", t0), false, t0)
		c.HandleEvent(assistantEvent("done", t0+1000, false), false, t0+1000)
		c.HandleEvent(tokenCount(t0+1100), false, t0+1100)
		c.HandleEvent(turnComplete("t1", "done", t0+1200), false, t0+1200)

		c.CheckDebounce(t0 + 10000)
		if len(rec.signals) != 1 {
			t.Fatalf("signals = %d, want 1 from the explicit complete only", len(rec.signals))
		}
	})

	t.Run("newer assistant output invalidates the slot", func(t *testing.T) {
		rec := &sigRecorder{}
		c := newTestCodexTurn(rec, true)

		t0 := int64(1_700_000_000_000)
		c.HandleEvent(userEvent("go", t0), false, t0)
		c.HandleEvent(assistantEvent("part 1", t0+1000, false), false, t0+1000)
		c.HandleEvent(tokenCount(t0+1100), false, t0+1100)
		c.HandleEvent(assistantEvent("part 2", t0+2000, false), false, t0+2000)

		c.CheckDebounce(t0 + 1100 + 2500)
		if len(rec.signals) != 0 {
			t.Fatal("slot captured against older output must not fire")
		}
	})
}
