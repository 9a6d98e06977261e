package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aitify", "config.yaml")
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aitify")
}

// Load loads configuration from the specified path. If path is empty the
// default location is used; a missing file yields the default config.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = "1"
	}

	if verr := cfg.Validate(); verr != nil {
		return nil, verr
	}
	return cfg, nil
}

// Save writes the configuration to the specified path in YAML format.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// liveReloadTTL bounds how often the confirm toggle re-stats the file.
const liveReloadTTL = 2 * time.Second

// LiveConfirmEnabled returns a func that reports the current confirm.enabled
// value, re-reading the file when it changes on disk. Toggling the flag in
// the config file takes effect on the running watcher without a restart.
// Read errors keep the last known value.
func LiveConfirmEnabled(path string, initial bool) func() bool {
	if path == "" {
		path = DefaultConfigPath()
	}

	var mu sync.Mutex
	value := initial
	var mtime time.Time
	var checkedAt time.Time

	return func() bool {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if now.Sub(checkedAt) < liveReloadTTL {
			return value
		}
		checkedAt = now

		info, err := os.Stat(path)
		if err != nil {
			return value
		}
		if info.ModTime().Equal(mtime) {
			return value
		}
		mtime = info.ModTime()

		cfg, err := Load(path)
		if err != nil {
			return value
		}
		value = cfg.Confirm.Enabled
		return value
	}
}
