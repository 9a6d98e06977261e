package detect

import (
	"strings"
	"testing"
)

func enabledDetector() *ConfirmDetector {
	return NewConfirmDetector(func() bool { return true }, nil)
}

func TestConfirmDetectorEnabled(t *testing.T) {
	t.Run("live toggle", func(t *testing.T) {
		enabled := true
		d := NewConfirmDetector(func() bool { return enabled }, nil)
		if !d.Enabled() {
			t.Error("should start enabled")
		}
		enabled = false
		if d.Enabled() {
			t.Error("toggle should take effect without recreating the detector")
		}
	})

	t.Run("nil func defaults to disabled", func(t *testing.T) {
		d := NewConfirmDetector(nil, nil)
		if d.Enabled() {
			t.Error("nil enabled func should mean disabled")
		}
	})
}

func TestClassifyFreeTextDisabled(t *testing.T) {
	d := enabledDetector()
	// Free-text classification is off even when the detector is enabled;
	// only structural signals count.
	for _, text := range []string{
		"Do you want me to proceed?",
		"请确认是否继续",
		"Should I apply these changes?",
	} {
		if got := d.Classify(text); got != "" {
			t.Errorf("Classify(%q) = %q, want empty", text, got)
		}
	}
}

func TestTurnEndPrompt(t *testing.T) {
	d := enabledDetector()

	t.Run("cue word in tail", func(t *testing.T) {
		text := "I analyzed the repo.\nHere is the plan.\nPlease confirm before I start."
		got := d.TurnEndPrompt(text)
		if got == "" {
			t.Fatal("expected a prompt match")
		}
		if !strings.Contains(got, "Please confirm") {
			t.Errorf("prompt should contain the matched tail, got %q", got)
		}
	})

	t.Run("cue word outside tail window ignored", func(t *testing.T) {
		lines := []string{"Should I proceed with this approach: first some context."}
		for i := 0; i < 8; i++ {
			lines = append(lines, "step detail without any prompt wording at all")
		}
		if got := d.TurnEndPrompt(strings.Join(lines, "\n")); got != "" {
			t.Errorf("cue buried above the tail should not match, got %q", got)
		}
	})

	t.Run("question mark plus action word", func(t *testing.T) {
		text := "The migration is ready to run.\nStart it now?"
		if got := d.TurnEndPrompt(text); got == "" {
			t.Error("trailing question with action word should match")
		}
	})

	t.Run("question without action word", func(t *testing.T) {
		text := "What a day?"
		if got := d.TurnEndPrompt(text); got != "" {
			t.Errorf("question without action word should not match, got %q", got)
		}
	})

	t.Run("disabled detector", func(t *testing.T) {
		d := NewConfirmDetector(func() bool { return false }, nil)
		if got := d.TurnEndPrompt("Please confirm"); got != "" {
			t.Error("disabled detector must not match")
		}
	})

	t.Run("long tail truncated", func(t *testing.T) {
		text := strings.Repeat("x", 2000) + "\nplease confirm"
		got := d.TurnEndPrompt(text)
		if got == "" {
			t.Fatal("expected match")
		}
		if len(got) > 610 {
			t.Errorf("prompt should be capped near 600 bytes, got %d", len(got))
		}
	})
}
