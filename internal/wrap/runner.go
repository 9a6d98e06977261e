package wrap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/lllll081926i/Aitify/internal/config"
	"github.com/lllll081926i/Aitify/internal/detect"
	"github.com/lllll081926i/Aitify/internal/notify"
)

// maxRecentLines bounds the output kept for the notification snippet and the
// prompt check at turn end.
const maxRecentLines = 40

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\a]*(\a|\x1b\\)`)

// Runner executes a command under a PTY and notifies when its output goes
// quiet: complete when the burst simply ends, confirm when the trailing
// output looks like a question waiting for the user.
type Runner struct {
	cfg      *config.Config
	notifier notify.Notifier
	detector *detect.ConfirmDetector
	name     string
}

// NewRunner creates a new command runner. name is the display name used in
// notifications; empty falls back to the wrapped command itself.
func NewRunner(cfg *config.Config, notifier notify.Notifier, name string) *Runner {
	detector := detect.NewConfirmDetector(
		func() bool { return cfg.Confirm.Enabled },
		cfg.Confirm.Cues,
	)

	return &Runner{
		cfg:      cfg,
		notifier: notifier,
		detector: detector,
		name:     name,
	}
}

// Run executes the command and monitors its output.
// Returns the command's exit code.
func (r *Runner) Run(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		return 1, fmt.Errorf("no command specified")
	}

	displayName := r.name
	if displayName == "" {
		displayName = args[0]
	}

	// Create PTY wrapper
	p := NewPTY(args[0], args[1:]...)

	// Start the command
	output, err := p.Start()
	if err != nil {
		return 1, fmt.Errorf("failed to start command: %w", err)
	}
	defer p.Close()

	// Create a pipe to tee output
	pr, pw := io.Pipe()

	// Tee output to both stdout and our monitor
	go func() {
		defer pw.Close()
		mw := io.MultiWriter(os.Stdout, pw)
		io.Copy(mw, output)
	}()

	// Monitor output in background
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.monitorOutput(ctx, pr, displayName)
	}()

	// Wait for the command, then let the monitor drain the remaining PTY
	// output (reads hit EIO once the buffer empties) before the deferred
	// Close releases the master.
	exitCode, err := p.Wait()
	<-done

	return exitCode, err
}

// monitorOutput reads output line by line and applies a quiet-window
// debounce: each line restarts the window, and the burst is reported once
// the window elapses with no further output.
func (r *Runner) monitorOutput(ctx context.Context, reader io.Reader, displayName string) {
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(reader)
		buf := make([]byte, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	quiet := time.Duration(r.cfg.Watch.QuietWithoutToolMS) * time.Millisecond
	if quiet <= 0 {
		quiet = 15 * time.Second
	}

	timer := time.NewTimer(quiet)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var recent []string
	var active bool
	var startedAt time.Time

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				// Command exited; report the trailing burst immediately.
				if active {
					r.report(ctx, displayName, recent, startedAt)
				}
				return
			}
			line = strings.TrimRight(ansiEscape.ReplaceAllString(line, ""), " \t\r")
			if line == "" {
				continue
			}
			if !active {
				active = true
				startedAt = time.Now()
			}
			recent = append(recent, line)
			if len(recent) > maxRecentLines {
				recent = recent[1:]
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(quiet)

		case <-timer.C:
			if active {
				r.report(ctx, displayName, recent, startedAt)
				active = false
				recent = nil
			}

		case <-ctx.Done():
			return
		}
	}
}

// report sends exactly one notification for a finished output burst:
// confirm when the tail ends on a pending question, complete otherwise.
func (r *Runner) report(ctx context.Context, displayName string, recent []string, startedAt time.Time) {
	tail := strings.Join(recent, "\n")
	prompt := r.detector.TurnEndPrompt(tail)

	n := &notify.Notification{
		Source:     "wrapped",
		Kind:       notify.KindComplete,
		TaskInfo:   displayName + " finished",
		DurationMs: time.Since(startedAt).Milliseconds(),
		Time:       time.Now(),
	}
	if prompt != "" {
		n.Kind = notify.KindConfirm
		n.TaskInfo = displayName + " is waiting for your input"
		n.AssistantMessage = prompt
	}
	if cwd, err := os.Getwd(); err == nil {
		n.Cwd = cwd
	}

	if r.cfg.Output.IncludeSnippets && len(recent) > 0 {
		snippetLines := 10
		if snippetLines > len(recent) {
			snippetLines = len(recent)
		}
		n.OutputContent = strings.Join(recent[len(recent)-snippetLines:], "\n")
	}

	if err := r.notifier.Send(ctx, n); err != nil {
		fmt.Fprintf(os.Stderr, "\n[aitify] Failed to send notification: %v\n", err)
	}
}
