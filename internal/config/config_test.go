package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != "1" {
		t.Errorf("Expected version '1', got '%s'", cfg.Version)
	}

	if cfg.Notify.Type != "stdout" {
		t.Errorf("Expected notify type 'stdout', got '%s'", cfg.Notify.Type)
	}

	if !cfg.Confirm.Enabled {
		t.Error("Expected confirm detection to be enabled by default")
	}

	if cfg.Sources.CodexMaxSessions != 3 {
		t.Errorf("Expected codex_max_sessions 3, got %d", cfg.Sources.CodexMaxSessions)
	}

	if cfg.Watch.QuietWithToolMS != 60000 || cfg.Watch.QuietWithoutToolMS != 15000 {
		t.Errorf("Unexpected quiet windows: %d/%d", cfg.Watch.QuietWithToolMS, cfg.Watch.QuietWithoutToolMS)
	}

	if cfg.Watch.GeminiDebounceMS != 3000 {
		t.Errorf("Expected gemini debounce 3000ms, got %d", cfg.Watch.GeminiDebounceMS)
	}

	if cfg.Output.Verbosity != "normal" {
		t.Errorf("Expected verbosity 'normal', got '%s'", cfg.Output.Verbosity)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "invalid notify type",
			mutate:  func(c *Config) { c.Notify.Type = "pager" },
			wantErr: "notify.type",
		},
		{
			name: "missing slack webhook",
			mutate: func(c *Config) {
				c.Notify.Type = "slack"
				c.Notify.Slack.Webhook = ""
			},
			wantErr: "webhook",
		},
		{
			name:    "invalid verbosity",
			mutate:  func(c *Config) { c.Output.Verbosity = "loud" },
			wantErr: "verbosity",
		},
		{
			name:    "poll interval too low",
			mutate:  func(c *Config) { c.Watch.PollIntervalMS = 50 },
			wantErr: "poll_interval",
		},
		{
			name:    "codex_max_sessions too low",
			mutate:  func(c *Config) { c.Sources.CodexMaxSessions = 0 },
			wantErr: "codex_max_sessions",
		},
		{
			name:    "negative quiet window",
			mutate:  func(c *Config) { c.Watch.QuietWithoutToolMS = -1 },
			wantErr: "quiet",
		},
		{
			name:    "negative gemini debounce",
			mutate:  func(c *Config) { c.Watch.GeminiDebounceMS = -1 },
			wantErr: "gemini_debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != (tt.wantErr != "") {
				t.Fatalf("Validate() error = %v, wantErr %q", err, tt.wantErr)
			}
			if err != nil {
				verr, ok := err.(*ValidationError)
				if !ok {
					t.Fatalf("error type = %T, want *ValidationError", err)
				}
				if !strings.Contains(verr.Field, tt.wantErr) {
					t.Errorf("error field = %q, want it to contain %q", verr.Field, tt.wantErr)
				}
			}
		})
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Notify.Type = "slack"
	cfg.Notify.Slack.Webhook = "https://hooks.slack.com/services/T/B/X"
	cfg.Sources.Enabled = []string{"codex"}
	cfg.Confirm.Enabled = false
	cfg.Watch.TokenGraceMS = 0

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Notify.Slack.Webhook != cfg.Notify.Slack.Webhook {
		t.Errorf("webhook = %q", loaded.Notify.Slack.Webhook)
	}
	if len(loaded.Sources.Enabled) != 1 || loaded.Sources.Enabled[0] != "codex" {
		t.Errorf("sources = %v", loaded.Sources.Enabled)
	}
	if loaded.Confirm.Enabled {
		t.Error("confirm.enabled should survive the roundtrip as false")
	}
	if loaded.Watch.TokenGraceMS != 0 {
		t.Errorf("token_grace_ms = %d, want 0", loaded.Watch.TokenGraceMS)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notify.Type != "stdout" {
		t.Errorf("expected defaults, got notify type %q", cfg.Notify.Type)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("notify:\n  type: pager\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected a validation error for bad notify type")
	}
}

func TestLiveConfirmEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Confirm.Enabled = false
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}

	enabled := LiveConfirmEnabled(path, true)
	if enabled() {
		t.Error("first call must pick up the on-disk value (false)")
	}

	// Missing file keeps the last known value.
	gone := LiveConfirmEnabled(filepath.Join(dir, "nope.yaml"), true)
	if !gone() {
		t.Error("missing file must keep the initial value")
	}
}

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	tests := []struct {
		name   string
		args   []string
		verify func(t *testing.T, f *Flags)
	}{
		{
			name: "default flags",
			args: []string{"aitify"},
			verify: func(t *testing.T, f *Flags) {
				if f.ConfigPath != "" {
					t.Errorf("Expected empty ConfigPath, got %q", f.ConfigPath)
				}
				if f.Setup || f.Check || f.Stdout || f.Version {
					t.Error("Expected default bool flags to be false")
				}
			},
		},
		{
			name: "with config flag",
			args: []string{"aitify", "--config", "/path/to/config.yaml"},
			verify: func(t *testing.T, f *Flags) {
				if f.ConfigPath != "/path/to/config.yaml" {
					t.Errorf("Expected ConfigPath=/path/to/config.yaml, got %q", f.ConfigPath)
				}
			},
		},
		{
			name: "with sources flag",
			args: []string{"aitify", "--sources", "claude,codex"},
			verify: func(t *testing.T, f *Flags) {
				if f.Sources != "claude,codex" {
					t.Errorf("Expected Sources=claude,codex, got %q", f.Sources)
				}
			},
		},
		{
			name: "start subcommand",
			args: []string{"aitify", "start"},
			verify: func(t *testing.T, f *Flags) {
				if !f.DaemonStart {
					t.Error("Expected DaemonStart to be true")
				}
			},
		},
		{
			name: "start subcommand with sources",
			args: []string{"aitify", "start", "--sources", "gemini"},
			verify: func(t *testing.T, f *Flags) {
				if !f.DaemonStart || f.Sources != "gemini" {
					t.Errorf("got start=%v sources=%q", f.DaemonStart, f.Sources)
				}
			},
		},
		{
			name: "stop subcommand",
			args: []string{"aitify", "stop"},
			verify: func(t *testing.T, f *Flags) {
				if !f.DaemonStop {
					t.Error("Expected DaemonStop to be true")
				}
			},
		},
		{
			name: "restart subcommand",
			args: []string{"aitify", "restart"},
			verify: func(t *testing.T, f *Flags) {
				if !f.DaemonRestart {
					t.Error("Expected DaemonRestart to be true")
				}
			},
		},
		{
			name: "status subcommand",
			args: []string{"aitify", "status"},
			verify: func(t *testing.T, f *Flags) {
				if !f.DaemonStatus {
					t.Error("Expected DaemonStatus to be true")
				}
			},
		},
		{
			name: "logs subcommand with follow",
			args: []string{"aitify", "logs", "-f"},
			verify: func(t *testing.T, f *Flags) {
				if !f.DaemonLogs || !f.DaemonFollow {
					t.Errorf("got logs=%v follow=%v", f.DaemonLogs, f.DaemonFollow)
				}
			},
		},
		{
			name: "wrap subcommand with command",
			args: []string{"aitify", "wrap", "--", "claude"},
			verify: func(t *testing.T, f *Flags) {
				if !f.Wrap {
					t.Error("Expected Wrap to be true")
				}
				if len(f.WrapArgs) != 1 || f.WrapArgs[0] != "claude" {
					t.Errorf("Expected WrapArgs=[claude], got %v", f.WrapArgs)
				}
				if f.WrapName != "claude" {
					t.Errorf("Expected default WrapName=claude, got %q", f.WrapName)
				}
			},
		},
		{
			name: "wrap subcommand with name flag",
			args: []string{"aitify", "wrap", "--name", "MyAI", "--", "claude"},
			verify: func(t *testing.T, f *Flags) {
				if !f.Wrap || f.WrapName != "MyAI" {
					t.Errorf("got wrap=%v name=%q", f.Wrap, f.WrapName)
				}
			},
		},
		{
			name: "wrap subcommand without -- separator",
			args: []string{"aitify", "wrap", "claude"},
			verify: func(t *testing.T, f *Flags) {
				if !f.Wrap {
					t.Error("Expected Wrap to be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			os.Args = tt.args
			f := ParseFlags()
			tt.verify(t, f)
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:   "test.field",
		Message: "test error message",
	}

	if err.Error() == "" {
		t.Error("Expected Error() to return non-empty string")
	}
	if !strings.Contains(err.Error(), "test.field") {
		t.Errorf("Error() = %q, want it to name the field", err.Error())
	}
}
