package notify

import (
	"context"
	"fmt"
	"io"
	"os"
)

// StdoutNotifier prints notifications to a writer (stdout by default).
type StdoutNotifier struct {
	out io.Writer
}

// NewStdoutNotifier creates a new stdout notifier.
func NewStdoutNotifier() *StdoutNotifier {
	return &StdoutNotifier{out: os.Stdout}
}

// NewWriterNotifier creates a stdout-style notifier writing to w.
func NewWriterNotifier(w io.Writer) *StdoutNotifier {
	return &StdoutNotifier{out: w}
}

// Name returns the notifier type.
func (s *StdoutNotifier) Name() string {
	return "stdout"
}

// Send prints a notification.
func (s *StdoutNotifier) Send(ctx context.Context, n *Notification) error {
	timestamp := n.Time.Format("15:04:05")

	header := fmt.Sprintf("[%s] %s | %s", timestamp, SourceDisplay(n.Source), n.Title())
	if dur := FormatDuration(n.DurationMs); dur != "" {
		header += fmt.Sprintf(" (%s)", dur)
	}
	fmt.Fprintln(s.out, header)

	if n.Cwd != "" {
		fmt.Fprintf(s.out, "  %s\n", n.Cwd)
	}
	if n.UserMessage != "" {
		fmt.Fprintf(s.out, "  > %s\n", truncate(n.UserMessage, 200))
	}

	if n.OutputContent != "" {
		fmt.Fprintln(s.out, "  ---")
		for _, line := range splitLines(truncate(n.OutputContent, 2000)) {
			fmt.Fprintf(s.out, "  %s\n", line)
		}
		fmt.Fprintln(s.out, "  ---")
	}

	fmt.Fprintln(s.out)
	return nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
