// Package notify delivers turn signals to the configured destinations.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lllll081926i/Aitify/internal/config"
)

// Kind values for a notification.
const (
	KindComplete = "complete"
	KindConfirm  = "confirm"
)

// Notification is one delivered signal. The watch layer produces exactly one
// per turn; everything below here is formatting and transport.
type Notification struct {
	Source           string    // "claude", "codex", "gemini"
	Kind             string    // KindComplete or KindConfirm
	TaskInfo         string    // Short headline (e.g., "Codex finished")
	DurationMs       int64     // Turn duration; negative means unknown
	Cwd              string    // Working directory of the session, if known
	OutputContent    string    // Final assistant output or the pending prompt
	UserMessage      string    // The user message that opened the turn
	AssistantMessage string    // Last assistant text
	Time             time.Time // When this notification was created
}

// Notifier is the interface for sending notifications.
type Notifier interface {
	// Send delivers a notification.
	Send(ctx context.Context, n *Notification) error

	// Name returns the notifier type name.
	Name() string
}

// NewNotifier creates the appropriate notifier based on config. If event
// file or webhooks are enabled, returns a MultiNotifier that fans out to the
// primary plus the secondary notifiers.
func NewNotifier(cfg *config.Config) (Notifier, error) {
	return NewNotifierWithExtras(cfg, nil)
}

// NewNotifierWithExtras creates a notifier with optional extra secondary
// notifiers (like the socket or websocket broadcasters, which are not built
// from config alone).
func NewNotifierWithExtras(cfg *config.Config, extras []Notifier) (Notifier, error) {
	var primary Notifier
	switch cfg.Notify.Type {
	case "slack":
		if cfg.Notify.Slack.Webhook == "" {
			return nil, fmt.Errorf("slack webhook URL is required")
		}
		primary = NewSlackNotifier(cfg.Notify.Slack.Webhook)
	case "stdout":
		primary = NewStdoutNotifier()
	default:
		return nil, fmt.Errorf("unknown notification type: %s", cfg.Notify.Type)
	}

	var secondary []Notifier

	if cfg.Daemon.EventFile {
		eventFile, err := NewEventFileNotifier(cfg.Daemon.EventFilePath, cfg.Daemon.EventFileMaxSize)
		if err == nil {
			secondary = append(secondary, eventFile)
		}
		// Continue without the event file if it cannot be created.
	}

	if len(cfg.Notify.Webhooks) > 0 {
		webhookNotifier := NewWebhookNotifier(cfg.Notify.Webhooks)
		if webhookNotifier.EndpointCount() > 0 {
			secondary = append(secondary, webhookNotifier)
		}
	}

	secondary = append(secondary, extras...)

	if len(secondary) > 0 {
		return NewMultiNotifier(primary, secondary...), nil
	}

	return primary, nil
}

// Title returns the display headline for a notification.
func (n *Notification) Title() string {
	if n.TaskInfo != "" {
		return n.TaskInfo
	}
	switch n.Kind {
	case KindConfirm:
		return "Waiting for your input"
	default:
		return "Turn finished"
	}
}

// SourceDisplay maps internal source names to their display names.
func SourceDisplay(source string) string {
	switch source {
	case "claude":
		return "Claude Code"
	case "codex":
		return "Codex"
	case "gemini":
		return "Gemini"
	default:
		return source
	}
}

// FormatDuration renders a millisecond duration for humans; negative values
// (unknown) render empty.
func FormatDuration(ms int64) string {
	if ms < 0 {
		return ""
	}
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", ms)
	case d < time.Minute:
		return fmt.Sprintf("%.0fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// FormatNotification formats a notification body for display.
func FormatNotification(n *Notification, verbosity string, includeSnippet bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("*%s* | %s", SourceDisplay(n.Source), n.Title()))
	if dur := FormatDuration(n.DurationMs); dur != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", dur))
	}
	sb.WriteString("\n")

	if verbosity == "minimal" {
		return sb.String()
	}

	if n.Cwd != "" {
		sb.WriteString(n.Cwd)
		sb.WriteString("\n")
	}
	if n.UserMessage != "" {
		sb.WriteString("> ")
		sb.WriteString(truncate(n.UserMessage, 200))
		sb.WriteString("\n")
	}

	if includeSnippet && n.OutputContent != "" {
		limit := 500
		if verbosity == "verbose" {
			limit = 2000
		}
		sb.WriteString("```\n")
		sb.WriteString(truncate(n.OutputContent, limit))
		sb.WriteString("\n```")
	}

	return sb.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return s[:maxLen-3] + "..."
	}
	return s[:maxLen]
}
