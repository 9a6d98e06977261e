package detect

import "strings"

// ConfirmDedupeWindowMs is how long an identical confirm prompt is
// suppressed after it fired once.
const ConfirmDedupeWindowMs = 15000

// defaultTurnEndCues are the shipped cue words for the turn-end prompt
// heuristic. The list is policy, not contract; callers may override it from
// configuration.
var defaultTurnEndCues = []string{
	"please confirm",
	"confirm",
	"approve",
	"approval",
	"proceed",
	"continue",
	"should i",
	"shall i",
	"do you want me",
	"would you like",
	"may i",
}

// turnEndActionWords pair with a trailing question mark as a weaker cue.
var turnEndActionWords = []string{"proceed", "execute", "run", "continue", "apply"}

// tailLines limits the turn-end heuristic to the end of the message; text
// earlier in a long turn is not reliable evidence of a pending question.
const tailLines = 6

// ConfirmDetector classifies confirmation prompts. Whether it is enabled is
// re-read on every call, so a config change takes effect without a restart.
type ConfirmDetector struct {
	enabled func() bool
	cues    []string
}

// NewConfirmDetector creates a detector whose enabled state is supplied by
// the given func. A nil cue list selects the shipped defaults.
func NewConfirmDetector(enabled func() bool, cues []string) *ConfirmDetector {
	if enabled == nil {
		enabled = func() bool { return false }
	}
	if cues == nil {
		cues = defaultTurnEndCues
	}
	return &ConfirmDetector{enabled: enabled, cues: cues}
}

// Enabled reports the current enabled state.
func (d *ConfirmDetector) Enabled() bool {
	return d.enabled()
}

// Classify asks whether free text represents a confirmation request.
// The shipped detector answers no for all free text: keyword and
// question-mark heuristics produced false positives that suppressed real
// completions, so only explicit structural interactive-request payloads
// (handled by the per-source machines) count. This remains the extension
// point for anyone who wants the heuristics back.
func (d *ConfirmDetector) Classify(text string) string {
	return ""
}

// TurnEndPrompt checks the tail of a finished turn's output for a pending
// question. Used by the Codex machine as a last resort at task_complete,
// after the structural signals. Returns the matched tail (capped at 600
// bytes) or "".
func (d *ConfirmDetector) TurnEndPrompt(text string) string {
	if !d.Enabled() || text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	start := len(lines) - tailLines
	if start < 0 {
		start = 0
	}
	tail := strings.Join(lines[start:], "\n")
	tailLower := strings.ToLower(tail)

	for _, cue := range d.cues {
		if strings.Contains(tailLower, strings.ToLower(cue)) {
			return TruncateText(tail, 600)
		}
	}

	last := strings.TrimSpace(lines[len(lines)-1])
	if strings.HasSuffix(last, "?") || strings.HasSuffix(last, "？") {
		textLower := strings.ToLower(text)
		for _, action := range turnEndActionWords {
			if strings.Contains(textLower, action) {
				return TruncateText(tail, 600)
			}
		}
	}
	return ""
}
