// Package config provides configuration management for aitify.
// Config lives in a YAML file under ~/.aitify and can be edited while the
// watcher is running; the confirm toggle is re-read live.
package config

import (
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Version string        `yaml:"version" json:"version"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
	Sources SourcesConfig `yaml:"sources" json:"sources"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Confirm ConfirmConfig `yaml:"confirm" json:"confirm"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
}

// NotifyConfig defines notification destination and settings.
type NotifyConfig struct {
	Type     string          `yaml:"type" json:"type"` // "slack" or "stdout"
	Slack    SlackConfig     `yaml:"slack,omitempty" json:"slack,omitempty"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" json:"webhooks,omitempty"` // Additional webhook endpoints
}

// SlackConfig holds Slack-specific notification settings.
type SlackConfig struct {
	Webhook string `yaml:"webhook" json:"webhook"`
}

// WebhookConfig defines a webhook endpoint for notifications.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url"`
	Events  []string          `yaml:"events,omitempty" json:"events,omitempty"`   // Event types to send (empty = all)
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"` // Custom HTTP headers
	Timeout int               `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Timeout in seconds (default: 10)
}

// SourcesConfig defines which agent CLIs to watch and their log roots.
type SourcesConfig struct {
	Enabled          []string          `yaml:"enabled,omitempty" json:"enabled,omitempty"` // nil = all supported
	Paths            map[string]string `yaml:"paths,omitempty" json:"paths,omitempty"`     // Override default log roots
	CodexMaxSessions int               `yaml:"codex_max_sessions" json:"codex_max_sessions"`
}

// WatchConfig defines the polling and debounce policy.
type WatchConfig struct {
	PollIntervalMS       int  `yaml:"poll_interval_ms" json:"poll_interval_ms"`
	GeminiPollIntervalMS int  `yaml:"gemini_poll_interval_ms" json:"gemini_poll_interval_ms"`
	QuietWithToolMS      int  `yaml:"quiet_with_tool_ms" json:"quiet_with_tool_ms"`
	QuietWithoutToolMS   int  `yaml:"quiet_without_tool_ms" json:"quiet_without_tool_ms"`
	GeminiDebounceMS     int  `yaml:"gemini_debounce_ms" json:"gemini_debounce_ms"`
	TokenGraceMS         int  `yaml:"token_grace_ms" json:"token_grace_ms"`
	ForcePolling         bool `yaml:"force_polling" json:"force_polling"` // Use polling instead of fsnotify
}

// ConfirmConfig controls the confirmation-request detector. Enabled is
// re-read from disk while the watcher runs, so it can be toggled without a
// restart.
type ConfirmConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Cues    []string `yaml:"cues,omitempty" json:"cues,omitempty"` // Override turn-end cue words
}

// OutputConfig defines notification output formatting.
type OutputConfig struct {
	Verbosity       string `yaml:"verbosity" json:"verbosity"` // "minimal" | "normal" | "verbose"
	IncludeSnippets bool   `yaml:"include_snippets" json:"include_snippets"`
}

// DaemonConfig defines daemon mode settings.
type DaemonConfig struct {
	LogRetentionDays int `yaml:"log_retention_days" json:"log_retention_days"` // Days to keep logs (0 = forever)

	// Event file settings for external integrations
	EventFile        bool   `yaml:"event_file" json:"event_file"`
	EventFilePath    string `yaml:"event_file_path" json:"event_file_path"`         // default: ~/.aitify/events.jsonl
	EventFileMaxSize int64  `yaml:"event_file_max_size" json:"event_file_max_size"` // Max size in bytes before rotation (default: 10MB)

	// Unix socket settings for external integrations
	Socket     bool   `yaml:"socket" json:"socket"`
	SocketPath string `yaml:"socket_path" json:"socket_path"` // default: ~/.aitify/aitify.sock

	// WebSocket event stream for dashboards
	Stream     bool   `yaml:"stream" json:"stream"`
	StreamAddr string `yaml:"stream_addr" json:"stream_addr"` // default: 127.0.0.1:8377
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "1",
		Notify: NotifyConfig{
			Type: "stdout",
		},
		Sources: SourcesConfig{
			Enabled:          nil, // All supported sources
			CodexMaxSessions: 3,
		},
		Watch: WatchConfig{
			PollIntervalMS:       1000,
			GeminiPollIntervalMS: 1500,
			QuietWithToolMS:      60000,
			QuietWithoutToolMS:   15000,
			GeminiDebounceMS:     3000,
			TokenGraceMS:         2500,
		},
		Confirm: ConfirmConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			Verbosity:       "normal",
			IncludeSnippets: true,
		},
		Daemon: DaemonConfig{
			LogRetentionDays: 7,
			EventFile:        true,
			EventFileMaxSize: 10 * 1024 * 1024,
			Socket:           false,
			Stream:           false,
			StreamAddr:       "127.0.0.1:8377",
		},
	}
}

// PollInterval returns the configured poll interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Watch.PollIntervalMS) * time.Millisecond
}

// GeminiPollInterval returns the Gemini re-read interval as a time.Duration.
func (c *Config) GeminiPollInterval() time.Duration {
	return time.Duration(c.Watch.GeminiPollIntervalMS) * time.Millisecond
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Notify.Type != "slack" && c.Notify.Type != "stdout" {
		return &ValidationError{Field: "notify.type", Message: "must be 'slack' or 'stdout'"}
	}

	if c.Notify.Type == "slack" && c.Notify.Slack.Webhook == "" {
		return &ValidationError{Field: "notify.slack.webhook", Message: "Slack webhook URL is required when type is 'slack'"}
	}

	validVerbosity := map[string]bool{"minimal": true, "normal": true, "verbose": true}
	if !validVerbosity[c.Output.Verbosity] {
		return &ValidationError{Field: "output.verbosity", Message: "must be 'minimal', 'normal', or 'verbose'"}
	}

	if c.Watch.PollIntervalMS < 100 {
		return &ValidationError{Field: "watch.poll_interval_ms", Message: "must be at least 100ms"}
	}

	if c.Sources.CodexMaxSessions < 1 {
		return &ValidationError{Field: "sources.codex_max_sessions", Message: "must be at least 1"}
	}

	if c.Watch.QuietWithToolMS < 0 || c.Watch.QuietWithoutToolMS < 0 {
		return &ValidationError{Field: "watch.quiet_with_tool_ms", Message: "quiet windows cannot be negative"}
	}

	if c.Watch.GeminiDebounceMS < 0 {
		return &ValidationError{Field: "watch.gemini_debounce_ms", Message: "cannot be negative"}
	}

	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}
