package config

import (
	"flag"
	"fmt"
	"os"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Flags holds parsed command-line flags.
type Flags struct {
	ConfigPath string
	Setup      bool
	Check      bool
	Sources    string
	Stdout     bool
	Version    bool
	Wrap       bool     // Wrap a command
	WrapArgs   []string // Command and arguments to wrap
	WrapName   string   // Display name for wrapped command

	// Daemon subcommands
	DaemonStart   bool // Start daemon
	DaemonStop    bool // Stop daemon
	DaemonRestart bool // Restart daemon
	DaemonStatus  bool // Show daemon status
	DaemonLogs    bool // Show/tail logs
	DaemonFollow  bool // Follow log output (-f)
}

// ParseFlags parses command-line flags and returns the result.
func ParseFlags() *Flags {
	flags := &Flags{}

	// Check for subcommands first
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "wrap":
			return parseWrapFlags(flags)
		case "start":
			return parseDaemonFlags(flags, "start")
		case "stop":
			return parseDaemonFlags(flags, "stop")
		case "restart":
			return parseDaemonFlags(flags, "restart")
		case "status":
			return parseDaemonFlags(flags, "status")
		case "logs":
			return parseDaemonFlags(flags, "logs")
		}
	}

	flag.StringVar(&flags.ConfigPath, "config", "", "Config file path (default: ~/.aitify/config.yaml)")
	flag.BoolVar(&flags.Setup, "setup", false, "Run interactive configuration wizard")
	flag.BoolVar(&flags.Check, "check", false, "Run health check and exit")
	flag.StringVar(&flags.Sources, "sources", "", "Comma-separated sources to watch (claude,codex,gemini or all)")
	flag.BoolVar(&flags.Stdout, "stdout", false, "Output to stdout instead of Slack (for testing)")
	flag.BoolVar(&flags.Version, "version", false, "Print version and exit")

	flag.Usage = customUsage
	flag.Parse()

	return flags
}

// parseWrapFlags parses flags for the wrap subcommand.
func parseWrapFlags(flags *Flags) *Flags {
	flags.Wrap = true

	wrapFlags := flag.NewFlagSet("wrap", flag.ExitOnError)
	wrapFlags.StringVar(&flags.ConfigPath, "config", "", "Config file path")
	wrapFlags.StringVar(&flags.WrapName, "name", "", "Display name for the wrapped command")
	wrapFlags.BoolVar(&flags.Stdout, "stdout", false, "Output notifications to stdout")

	wrapFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, `aitify wrap - Run a command under a pty and watch alongside it

USAGE:
  aitify wrap [flags] -- <command> [args...]

FLAGS:
  --config PATH    Config file (default: ~/.aitify/config.yaml)
  --name NAME      Display name for notifications (default: command name)
  --stdout         Output notifications to stdout instead of Slack

EXAMPLES:
  # Wrap Claude Code
  aitify wrap -- claude

  # Wrap with custom name
  aitify wrap --name "My Claude" -- claude --debug

  # Wrap with stdout notifications
  aitify wrap --stdout -- codex

`)
	}

	// Find the "--" separator
	dashIdx := -1
	for i, arg := range os.Args[2:] {
		if arg == "--" {
			dashIdx = i + 2
			break
		}
	}

	if dashIdx == -1 {
		wrapFlags.Parse(os.Args[2:])
		flags.WrapArgs = wrapFlags.Args()
	} else {
		wrapFlags.Parse(os.Args[2:dashIdx])
		flags.WrapArgs = os.Args[dashIdx+1:]
	}

	if flags.WrapName == "" && len(flags.WrapArgs) > 0 {
		flags.WrapName = flags.WrapArgs[0]
	}

	return flags
}

// parseDaemonFlags parses flags for daemon subcommands.
func parseDaemonFlags(flags *Flags, cmd string) *Flags {
	switch cmd {
	case "start":
		flags.DaemonStart = true
	case "stop":
		flags.DaemonStop = true
	case "restart":
		flags.DaemonRestart = true
	case "status":
		flags.DaemonStatus = true
	case "logs":
		flags.DaemonLogs = true
	}

	daemonFlags := flag.NewFlagSet(cmd, flag.ExitOnError)
	daemonFlags.StringVar(&flags.ConfigPath, "config", "", "Config file path")

	if cmd == "logs" {
		daemonFlags.BoolVar(&flags.DaemonFollow, "f", false, "Follow log output")
	}

	if cmd == "start" || cmd == "restart" {
		daemonFlags.StringVar(&flags.Sources, "sources", "", "Comma-separated sources to watch")
	}

	daemonFlags.Usage = func() {
		switch cmd {
		case "start":
			fmt.Fprintf(os.Stderr, `aitify start - Start the watcher daemon

USAGE:
  aitify start [flags]

FLAGS:
  --config PATH      Config file (default: ~/.aitify/config.yaml)
  --sources LIST     Sources to watch (claude,codex,gemini or all)

EXAMPLES:
  aitify start
  aitify start --sources claude

`)
		case "stop":
			fmt.Fprintf(os.Stderr, `aitify stop - Stop the running daemon

USAGE:
  aitify stop

`)
		case "restart":
			fmt.Fprintf(os.Stderr, `aitify restart - Restart the daemon

USAGE:
  aitify restart [flags]

FLAGS:
  --config PATH      Config file (default: ~/.aitify/config.yaml)
  --sources LIST     Sources to watch

`)
		case "status":
			fmt.Fprintf(os.Stderr, `aitify status - Show daemon status

USAGE:
  aitify status

`)
		case "logs":
			fmt.Fprintf(os.Stderr, `aitify logs - View daemon logs

USAGE:
  aitify logs [flags]

FLAGS:
  -f               Follow log output (like tail -f)

EXAMPLES:
  aitify logs
  aitify logs -f

`)
		}
	}

	daemonFlags.Parse(os.Args[2:])
	return flags
}

// customUsage provides user-friendly help text.
func customUsage() {
	fmt.Fprintf(os.Stderr, `aitify - Turn-completion notifier for AI CLI sessions

USAGE:
  aitify [flags]                              Run in foreground
  aitify start                                Start daemon in background
  aitify stop                                 Stop running daemon
  aitify restart                              Restart daemon
  aitify status                               Show daemon status
  aitify logs [-f]                            View daemon logs
  aitify wrap [flags] -- <command> [args...]  Wrap a command

GETTING STARTED:
  aitify --setup     Run interactive configuration wizard
  aitify --check     Verify log paths and show status
  aitify --stdout    Test without Slack (prints to terminal)

DAEMON COMMANDS:
  start               Start watcher daemon in background
  stop                Stop running daemon
  restart             Restart daemon
  status              Show daemon status (running/stopped, PID, uptime)
  logs                View daemon log file (use -f to follow)

FLAGS:
  --config PATH       Config file (default: ~/.aitify/config.yaml)
  --setup             Interactive configuration wizard
  --check             Health check and exit
  --sources LIST      Sources to watch: claude, codex, gemini (or all)
  --stdout            Output to stdout instead of Slack (for testing)
  --version           Print version and exit

EXAMPLES:
  # First-time setup
  aitify --setup

  # Run in foreground
  aitify --stdout

  # Start daemon in background
  aitify start
  aitify start --sources claude,codex

  # Check daemon status
  aitify status

  # Stop daemon
  aitify stop

CONFIGURATION:
  Config file: ~/.aitify/config.yaml
  Edit confirm.enabled to toggle confirmation alerts; the running watcher
  picks the change up without a restart.

  To reconfigure, run: aitify --setup

`)
}
