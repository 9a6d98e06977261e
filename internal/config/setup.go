package config

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SourceInfo holds basic source information for the setup wizard. This
// avoids importing the watch package.
type SourceInfo struct {
	Name        string
	DisplayName string
	LogRoot     string
}

// SetupSourceProvider is a function type for getting source information.
type SetupSourceProvider func() []SourceInfo

// SetupWebhookTester is a function type for testing webhooks.
type SetupWebhookTester func(webhook string) error

// SetupOptions configures the setup wizard.
type SetupOptions struct {
	GetSources  SetupSourceProvider
	TestWebhook SetupWebhookTester
}

// SetupWizard runs the interactive configuration wizard.
func SetupWizard(opts SetupOptions) error {
	fmt.Println()
	fmt.Printf("Welcome to aitify %s setup!\n", Version)
	fmt.Println()

	cfg := DefaultConfig()
	reader := bufio.NewReader(os.Stdin)

	if err := setupNotification(reader, cfg, opts.TestWebhook); err != nil {
		return err
	}

	if err := setupSources(reader, cfg, opts.GetSources); err != nil {
		return err
	}

	if err := setupConfirm(reader, cfg); err != nil {
		return err
	}

	if err := setupVerbosity(reader, cfg); err != nil {
		return err
	}

	configPath := DefaultConfigPath()
	if err := ensureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to %s\n", configPath)
	fmt.Println()
	fmt.Println("Run 'aitify' to start watching!")
	fmt.Println()

	return nil
}

// setupNotification configures notification settings.
func setupNotification(reader *bufio.Reader, cfg *Config, testWebhook SetupWebhookTester) error {
	fmt.Println("[1/4] Notification destination")
	fmt.Println("  1. Slack webhook")
	fmt.Println("  2. Stdout (testing)")
	fmt.Println()

	choice := promptChoice(reader, "Choice", 1, 2)

	switch choice {
	case 1:
		cfg.Notify.Type = "slack"
		fmt.Println()
		webhook := promptString(reader, "Enter Slack webhook URL")
		cfg.Notify.Slack.Webhook = webhook

		if testWebhook != nil {
			fmt.Print("Testing webhook... ")
			if err := testWebhook(webhook); err != nil {
				fmt.Println("FAILED")
				fmt.Printf("  Error: %v\n", err)
				fmt.Println("  You can edit the webhook URL later in the config file.")
			} else {
				fmt.Println("Success!")
			}
		}

	default:
		cfg.Notify.Type = "stdout"
		fmt.Println("  Notifications will be printed to stdout.")
	}

	fmt.Println()
	return nil
}

// setupSources configures which agent CLIs to watch.
func setupSources(reader *bufio.Reader, cfg *Config, getSources SetupSourceProvider) error {
	fmt.Println("[2/4] Which agent CLIs to watch?")
	fmt.Println()

	var sources []SourceInfo
	if getSources != nil {
		sources = getSources()
	}

	if len(sources) == 0 {
		fmt.Println("  No sources registered.")
		cfg.Sources.Enabled = nil
		fmt.Println()
		return nil
	}

	var activeNames []string
	fmt.Println("  Detected log roots:")
	for _, src := range sources {
		expanded := expandPath(src.LogRoot)
		info, err := os.Stat(expanded)

		if err != nil {
			fmt.Printf("    ✗ %s (not found)\n", src.DisplayName)
		} else {
			activeNames = append(activeNames, src.Name)
			age := ""
			if !info.ModTime().IsZero() {
				since := time.Since(info.ModTime())
				if since < time.Hour {
					age = fmt.Sprintf("%dm ago", int(since.Minutes()))
				} else if since < 24*time.Hour {
					age = fmt.Sprintf("%dh ago", int(since.Hours()))
				} else {
					age = fmt.Sprintf("%dd ago", int(since.Hours()/24))
				}
			}
			fmt.Printf("    ✓ %s (%s - %s)\n", src.DisplayName, expanded, age)
		}
	}
	fmt.Println()

	if len(activeNames) > 0 {
		fmt.Print("Watch all supported sources? [Y/n]: ")
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))

		if response == "" || response == "y" || response == "yes" {
			cfg.Sources.Enabled = nil
		} else {
			cfg.Sources.Enabled = selectSources(reader, sources)
		}
	} else {
		fmt.Println("No log roots detected. Please select sources to watch:")
		cfg.Sources.Enabled = selectSources(reader, sources)
	}

	fmt.Println()
	return nil
}

// selectSources prompts user to select sources from a list.
func selectSources(reader *bufio.Reader, sources []SourceInfo) []string {
	fmt.Println()
	for i, src := range sources {
		fmt.Printf("  %d. %s\n", i+1, src.DisplayName)
	}
	fmt.Println()

	fmt.Print("Enter source numbers (comma-separated, e.g., 1,2): ")
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(response)

	var selected []string
	for _, part := range strings.Split(response, ",") {
		part = strings.TrimSpace(part)
		if idx, err := strconv.Atoi(part); err == nil && idx >= 1 && idx <= len(sources) {
			selected = append(selected, sources[idx-1].Name)
		}
	}

	if len(selected) == 0 {
		for _, s := range sources {
			selected = append(selected, s.Name)
		}
	}
	return selected
}

// setupConfirm configures the confirmation-request detector.
func setupConfirm(reader *bufio.Reader, cfg *Config) error {
	fmt.Println("[3/4] Confirmation alerts")
	fmt.Print("Notify when an agent is waiting for your approval? [Y/n]: ")

	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))

	cfg.Confirm.Enabled = response == "" || response == "y" || response == "yes"

	if cfg.Confirm.Enabled {
		fmt.Println("  Confirmation alerts enabled.")
	} else {
		fmt.Println("  Confirmation alerts disabled (edit confirm.enabled to re-enable).")
	}

	fmt.Println()
	return nil
}

// setupVerbosity configures output verbosity.
func setupVerbosity(reader *bufio.Reader, cfg *Config) error {
	fmt.Println("[4/4] Output verbosity")
	fmt.Println("  1. Minimal (title only)")
	fmt.Println("  2. Normal (title + message) [default]")
	fmt.Println("  3. Verbose (title + message + output snippets)")
	fmt.Println()

	choice := promptChoice(reader, "Choice", 1, 3)

	switch choice {
	case 1:
		cfg.Output.Verbosity = "minimal"
		cfg.Output.IncludeSnippets = false
	case 3:
		cfg.Output.Verbosity = "verbose"
		cfg.Output.IncludeSnippets = true
	default:
		cfg.Output.Verbosity = "normal"
		cfg.Output.IncludeSnippets = true
	}

	return nil
}

// promptChoice prompts for a numeric choice within a range.
func promptChoice(reader *bufio.Reader, prompt string, min, max int) int {
	for {
		fmt.Printf("%s [%d-%d]: ", prompt, min, max)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(input)

		if input == "" {
			return 0 // Default
		}

		choice, err := strconv.Atoi(input)
		if err != nil || choice < min || choice > max {
			fmt.Printf("  Please enter a number between %d and %d\n", min, max)
			continue
		}
		return choice
	}
}

// promptString prompts for a string value.
func promptString(reader *bufio.Reader, prompt string) string {
	fmt.Printf("%s: ", prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// ensureConfigDir creates the config directory if it doesn't exist.
func ensureConfigDir() error {
	dir := filepath.Dir(DefaultConfigPath())
	return os.MkdirAll(dir, 0755)
}

// DefaultTestWebhook provides a default webhook tester.
func DefaultTestWebhook(webhook string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload := fmt.Sprintf(`{"text":"aitify %s - Test notification"}`, Version)
	req, err := http.NewRequestWithContext(ctx, "POST", webhook, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
