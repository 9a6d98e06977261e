// Package main implements the aitify CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lllll081926i/Aitify/internal/config"
	"github.com/lllll081926i/Aitify/internal/daemon"
	"github.com/lllll081926i/Aitify/internal/detect"
	"github.com/lllll081926i/Aitify/internal/notify"
	"github.com/lllll081926i/Aitify/internal/stream"
	"github.com/lllll081926i/Aitify/internal/watch"
	"github.com/lllll081926i/Aitify/internal/wrap"
)

func main() {
	// Parse command-line flags
	flags := config.ParseFlags()

	// Handle special commands
	if flags.Version {
		fmt.Printf("aitify %s\n", config.Version)
		return
	}

	if flags.Setup {
		runSetup(flags)
		return
	}

	if flags.Check {
		runHealthCheck(flags)
		return
	}

	if flags.Wrap {
		runWrap(flags)
		return
	}

	// Handle daemon commands
	if flags.DaemonStart {
		runDaemonStart(flags)
		return
	}

	if flags.DaemonStop {
		runDaemonStop()
		return
	}

	if flags.DaemonRestart {
		runDaemonRestart(flags)
		return
	}

	if flags.DaemonStatus {
		runDaemonStatus()
		return
	}

	if flags.DaemonLogs {
		runDaemonLogs(flags)
		return
	}

	// Load configuration
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'aitify --setup' to configure")
		os.Exit(1)
	}

	// Override config with flags
	if flags.Stdout {
		cfg.Notify.Type = "stdout"
	}

	sources, err := selectSources(flags, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Fprintln(os.Stderr, "Supported sources: claude, codex, gemini")
		os.Exit(1)
	}

	// Run the watcher
	if err := runWatch(flags, cfg, sources); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// selectSources resolves the source list: --sources flag first, then the
// config's enabled list, then all supported sources.
func selectSources(flags *config.Flags, cfg *config.Config) ([]string, error) {
	var names []string
	if flags.Sources != "" {
		names = watch.NormalizeSources(flags.Sources)
	} else if len(cfg.Sources.Enabled) > 0 {
		names = cfg.Sources.Enabled
	} else {
		names = watch.NormalizeSources("")
	}

	for _, name := range names {
		if watch.GetSource(name) == nil {
			return nil, fmt.Errorf("unknown source: %s", name)
		}
	}
	return names, nil
}

// configPathInUse returns the config path the watcher should re-read for
// live toggles.
func configPathInUse(flags *config.Flags) string {
	if flags.ConfigPath != "" {
		return flags.ConfigPath
	}
	return config.DefaultConfigPath()
}

// runSetup runs the interactive configuration wizard.
func runSetup(flags *config.Flags) {
	opts := config.SetupOptions{
		GetSources: func() []config.SourceInfo {
			var sources []config.SourceInfo
			for _, name := range watch.NormalizeSources("") {
				src := watch.GetSource(name)
				if src != nil {
					sources = append(sources, config.SourceInfo{
						Name:        src.Name,
						DisplayName: src.DisplayName,
						LogRoot:     src.LogRoot,
					})
				}
			}
			return sources
		},
		TestWebhook: config.DefaultTestWebhook,
	}

	if err := config.SetupWizard(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		os.Exit(1)
	}
}

// runHealthCheck shows the status of all supported sources.
func runHealthCheck(flags *config.Flags) {
	fmt.Println("aitify - Health Check")
	fmt.Println()

	// Check config
	configPath := configPathInUse(flags)
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config:  %s\n", configPath)
	} else {
		fmt.Printf("Config:  Not configured (run 'aitify --setup')\n")
	}
	fmt.Println()

	// Check sources
	fmt.Println("Sources:")
	activeCount := 0
	for _, name := range watch.NormalizeSources("") {
		src := watch.GetSource(name)
		if src == nil {
			continue
		}

		expanded := watch.ExpandPath(src.LogRoot)
		info, err := os.Stat(expanded)

		var status, detail string
		if err != nil {
			status = "✗"
			detail = "no logs found"
		} else {
			activeCount++
			status = "✓"
			age := formatAge(info.ModTime())
			count := countLogFiles(expanded, src.FileMatch)
			detail = fmt.Sprintf("%d log file(s), %s", count, age)
		}

		if pid := watch.NewProcessMonitor(src.ProcessNames).GetPID(); pid > 0 {
			detail += fmt.Sprintf(", running (PID %d)", pid)
		}

		fmt.Printf("  %-14s %s %s\n", src.DisplayName, status, detail)
	}
	fmt.Println()

	// Summary
	if activeCount > 0 {
		fmt.Printf("Found %d source(s) with logs.\n", activeCount)
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  aitify                  Watch all sources in the foreground")
		fmt.Println("  aitify --sources codex  Watch specific sources")
		fmt.Println("  aitify start            Run as a background daemon")
		fmt.Println("  aitify --setup          Configure notifications")
	} else {
		fmt.Println("No source logs found.")
		fmt.Println()
		fmt.Println("Start an agent CLI (Claude Code, Codex, Gemini) to generate logs.")
	}
}

// formatAge formats a time as a human-readable age string.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "unknown age"
	}
	since := time.Since(t)
	switch {
	case since < time.Minute:
		return "just now"
	case since < time.Hour:
		return fmt.Sprintf("%dm ago", int(since.Minutes()))
	case since < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(since.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(since.Hours()/24))
	}
}

// countLogFiles counts files under dir that match the source's log shape.
func countLogFiles(dir string, match func(path, name string) bool) int {
	count := 0
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if match == nil || match(path, info.Name()) {
			count++
		}
		return nil
	})
	return count
}

// runWatch starts the main watch loop.
func runWatch(flags *config.Flags, cfg *config.Config, sources []string) error {
	dir := config.DefaultConfigDir()
	isDaemon := daemon.IsDaemon()
	var lock *daemon.Lock
	var logger *daemon.Logger

	// If running as daemon, acquire lock and setup logging
	if isDaemon {
		lock = daemon.NewLock(dir)
		if err := lock.TryLock(); err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		defer lock.Unlock()

		// Run log cleanup
		daemon.CleanupOnStart(dir, cfg.Daemon.LogRetentionDays)

		// Setup logger
		var err error
		logger, err = daemon.NewLogger(dir)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer logger.Close()

		logger.Info("aitify daemon starting")
		logger.Info("Config: %s", configPathInUse(flags))
	}

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional local integrations ride along as extra notifiers.
	var extras []notify.Notifier

	if cfg.Daemon.Socket {
		sockServer, err := daemon.NewSocketServer(cfg.Daemon.SocketPath)
		if err != nil {
			return fmt.Errorf("failed to create socket server: %w", err)
		}
		sockServer.Start(ctx)
		extras = append(extras, daemon.NewSocketNotifier(sockServer))
	}

	if cfg.Daemon.Stream {
		addr := cfg.Daemon.StreamAddr
		if addr == "" {
			addr = "127.0.0.1:8377"
		}
		streamServer := stream.NewServer(addr)
		if err := streamServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start stream server: %w", err)
		}
		extras = append(extras, stream.NewNotifier(streamServer))
	}

	// Create notifier
	notifier, err := notify.NewNotifierWithExtras(cfg, extras)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	defer func() {
		if closer, ok := notifier.(interface{ Close() error }); ok {
			closer.Close()
		}
	}()

	// Watcher lifecycle markers land in the event file alongside turn events.
	if eventFile := findEventFile(notifier); eventFile != nil {
		eventFile.EmitDaemonStart()
		defer eventFile.EmitDaemonStop()
	}

	// The detector's enabled state is re-read from the config file, so the
	// confirm feature can be toggled without restarting the watcher.
	detector := detect.NewConfirmDetector(
		config.LiveConfirmEnabled(configPathInUse(flags), cfg.Confirm.Enabled),
		cfg.Confirm.Cues,
	)

	logf := func(format string, args ...any) {
		if isDaemon {
			logger.Info(format, args...)
		}
	}

	// The dispatch boundary: one Signal in, one Notification out. Sends run
	// on their own goroutine, so a slow webhook never delays detection; only
	// the outcome is logged.
	dispatch := func(sig watch.Signal) {
		n := notificationFromSignal(sig)
		go func() {
			err := notifier.Send(ctx, n)
			switch {
			case err != nil && isDaemon:
				logger.Error("notification failed: %v", err)
			case err != nil:
				fmt.Fprintf(os.Stderr, "[aitify] notification failed: %v\n", err)
			case isDaemon:
				logger.LogEvent(daemon.LevelInfo, sig.Source, string(sig.Kind), n.Title(), "")
			}
		}()
	}

	session, err := watch.NewSession(watch.Options{
		Sources:          sources,
		Roots:            cfg.Sources.Paths,
		CodexMaxSessions: cfg.Sources.CodexMaxSessions,
		Timings: watch.TurnTimings{
			QuietWithToolMs:    int64(cfg.Watch.QuietWithToolMS),
			QuietWithoutToolMs: int64(cfg.Watch.QuietWithoutToolMS),
			GeminiDebounceMs:   int64(cfg.Watch.GeminiDebounceMS),
			TokenGraceMs:       int64(cfg.Watch.TokenGraceMS),
		},
		Detector:       detector,
		Dispatch:       dispatch,
		ClaudeInterval: time.Duration(cfg.Watch.PollIntervalMS) * time.Millisecond,
		CodexInterval:  time.Duration(cfg.Watch.PollIntervalMS) * time.Millisecond,
		GeminiInterval: time.Duration(cfg.Watch.GeminiPollIntervalMS) * time.Millisecond,
		ForcePolling:   cfg.Watch.ForcePolling,
		Logf:           logf,
	})
	if err != nil {
		return fmt.Errorf("failed to create watch session: %w", err)
	}

	// Print startup info
	displayNames := make([]string, 0, len(sources))
	for _, name := range sources {
		if src := watch.GetSource(name); src != nil {
			displayNames = append(displayNames, src.DisplayName)
		}
	}
	if isDaemon {
		logger.Info("Notify: %s", notifier.Name())
		logger.Info("Sources: %s", strings.Join(displayNames, ", "))
		logger.Info("Watching started")
	} else {
		fmt.Println("aitify - Watching agent turns...")
		fmt.Printf("  Config:  %s\n", configPathInUse(flags))
		fmt.Printf("  Notify:  %s\n", notifier.Name())
		fmt.Printf("  Sources: %s\n", strings.Join(displayNames, ", "))
		fmt.Println()
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		if isDaemon {
			logger.Info("Received shutdown signal")
		} else {
			fmt.Println("\nShutting down...")
		}
		cancel()
	}()

	runErr := session.Run(ctx)
	if runErr == context.Canceled {
		runErr = nil
	}

	if isDaemon {
		logger.Info("Daemon stopped")
	}

	return runErr
}

// findEventFile digs the event-file notifier out of a multi notifier, if one
// was configured.
func findEventFile(n notify.Notifier) *notify.EventFileNotifier {
	multi, ok := n.(*notify.MultiNotifier)
	if !ok {
		return nil
	}
	for _, sec := range multi.Secondary() {
		if ef, ok := sec.(*notify.EventFileNotifier); ok {
			return ef
		}
	}
	return nil
}

// notificationFromSignal converts a turn signal into a notification at the
// delivery boundary.
func notificationFromSignal(sig watch.Signal) *notify.Notification {
	return &notify.Notification{
		Source:           sig.Source,
		Kind:             string(sig.Kind),
		TaskInfo:         sig.TaskInfo,
		DurationMs:       sig.DurationMs,
		Cwd:              sig.Cwd,
		OutputContent:    sig.OutputContent,
		UserMessage:      sig.UserMessage,
		AssistantMessage: sig.AssistantMessage,
		Time:             time.Now(),
	}
}

// runWrap runs a command under a PTY with output watching.
func runWrap(flags *config.Flags) {
	if len(flags.WrapArgs) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no command specified")
		fmt.Fprintln(os.Stderr, "Usage: aitify wrap -- <command> [args...]")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'aitify --setup' to configure")
		os.Exit(1)
	}

	// Override config with flags
	if flags.Stdout {
		cfg.Notify.Type = "stdout"
	}

	// Create notifier
	notifier, err := notify.NewNotifier(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating notifier: %v\n", err)
		os.Exit(1)
	}

	// Create runner
	runner := wrap.NewRunner(cfg, notifier, flags.WrapName)

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Run the wrapped command
	exitCode, err := runner.Run(ctx, flags.WrapArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n[aitify] Error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(exitCode)
}

// daemonArgs builds the argument list passed to the re-exec'd daemon child.
func daemonArgs(flags *config.Flags) []string {
	args := []string{}
	if flags.ConfigPath != "" {
		args = append(args, "--config", flags.ConfigPath)
	}
	if flags.Sources != "" {
		args = append(args, "--sources", flags.Sources)
	}
	return args
}

// runDaemonStart starts the daemon in the background.
func runDaemonStart(flags *config.Flags) {
	dir := config.DefaultConfigDir()
	d := daemon.NewDaemon(dir)

	if err := d.Start(daemonArgs(flags)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runDaemonStop stops the running daemon.
func runDaemonStop() {
	dir := config.DefaultConfigDir()
	d := daemon.NewDaemon(dir)

	if err := d.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runDaemonRestart restarts the daemon.
func runDaemonRestart(flags *config.Flags) {
	dir := config.DefaultConfigDir()
	d := daemon.NewDaemon(dir)

	if err := d.Restart(daemonArgs(flags)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runDaemonStatus shows the daemon status.
func runDaemonStatus() {
	dir := config.DefaultConfigDir()
	d := daemon.NewDaemon(dir)

	running, pid, uptime := d.Status()

	fmt.Println("aitify daemon status")
	fmt.Println()

	if running {
		fmt.Printf("  Status:  running\n")
		fmt.Printf("  PID:     %d\n", pid)
		fmt.Printf("  Uptime:  %s\n", formatDuration(uptime))
	} else {
		fmt.Printf("  Status:  stopped\n")
	}

	// Show log info
	logDir := filepath.Join(dir, "logs")
	logs, err := daemon.GetLogFiles(logDir)
	if err == nil && len(logs) > 0 {
		fmt.Println()
		fmt.Printf("  Logs:    %d file(s) in %s\n", len(logs), logDir)
		totalSize, _ := daemon.TotalLogSize(logDir)
		fmt.Printf("  Size:    %s\n", formatBytes(totalSize))
	}
}

// runDaemonLogs shows or follows the daemon logs.
func runDaemonLogs(flags *config.Flags) {
	dir := config.DefaultConfigDir()
	logDir := filepath.Join(dir, "logs")

	// Find most recent log file
	logs, err := daemon.GetLogFiles(logDir)
	if err != nil || len(logs) == 0 {
		fmt.Fprintln(os.Stderr, "No log files found")
		fmt.Fprintf(os.Stderr, "Log directory: %s\n", logDir)
		os.Exit(1)
	}

	logPath := logs[0].Path

	if flags.DaemonFollow {
		// Follow mode (tail -f)
		fmt.Printf("Following %s (Ctrl+C to stop)\n\n", logPath)
		if err := tailFollow(logPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else {
		// Print last N lines
		if err := tailFile(logPath, 50); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// tailFile prints the last n lines of a file.
func tailFile(path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Read all lines (simple approach)
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	// Print last n lines
	start := len(lines) - n
	if start < 0 {
		start = 0
	}
	for _, line := range lines[start:] {
		fmt.Println(line)
	}

	return scanner.Err()
}

// tailFollow follows a file like tail -f.
func tailFollow(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Seek to end
	f.Seek(0, io.SeekEnd)

	// Handle interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reader := bufio.NewReader(f)
	for {
		select {
		case <-sigCh:
			fmt.Println()
			return nil
		default:
			line, err := reader.ReadString('\n')
			if err == io.EOF {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			if err != nil {
				return err
			}
			fmt.Print(line)
		}
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// formatBytes formats bytes for display.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
