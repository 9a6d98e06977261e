package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DaemonEnvVar marks the re-executed child so it knows to run the watch
// loop in daemon mode instead of spawning again.
const DaemonEnvVar = "AITIFY_DAEMON"

// Daemon manages the background watcher process: starting a detached
// child, stopping it, and reporting its status.
type Daemon struct {
	dir    string
	lock   *Lock
	logger *Logger
}

// NewDaemon creates a daemon manager rooted at the state directory
// (normally ~/.aitify).
func NewDaemon(dir string) *Daemon {
	return &Daemon{
		dir:  dir,
		lock: NewLock(dir),
	}
}

// Start re-executes the current binary with args as a detached session
// leader, with stdout/stderr redirected to the dated log file. The child
// sees DaemonEnvVar=1 and takes the singleton lock itself.
func (d *Daemon) Start(args []string) error {
	if running, pid := d.lock.IsRunning(); running {
		return fmt.Errorf("aitify is already running (PID %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	logDir := filepath.Join(d.dir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("aitify-%s.log", time.Now().Format("2006-01-02")))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), DaemonEnvVar+"=1")
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Give the child a moment to crash on startup errors before we claim
	// success. Signal 0 only probes for existence.
	time.Sleep(100 * time.Millisecond)
	if cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.Signal(0)); err != nil {
			return fmt.Errorf("daemon exited immediately, see %s", logPath)
		}
	}

	fmt.Printf("aitify daemon started (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("Logging to %s\n", logPath)

	return nil
}

// Stop terminates the running daemon: SIGTERM first, SIGKILL if it has
// not exited after five seconds.
func (d *Daemon) Stop() error {
	running, pid := d.lock.IsRunning()
	if !running {
		return fmt.Errorf("aitify daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if err := process.Signal(syscall.Signal(0)); err != nil {
			fmt.Printf("aitify daemon stopped (was PID %d)\n", pid)
			return nil
		}
	}

	if err := process.Signal(syscall.SIGKILL); err == nil {
		fmt.Printf("aitify daemon killed (was PID %d)\n", pid)
		return nil
	}

	return fmt.Errorf("daemon did not stop (PID %d)", pid)
}

// Restart stops the daemon if running, then starts it with args.
func (d *Daemon) Restart(args []string) error {
	if running, _ := d.lock.IsRunning(); running {
		if err := d.Stop(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		// Let the old process release the lock file.
		time.Sleep(200 * time.Millisecond)
	}

	return d.Start(args)
}

// Status reports whether the daemon is running, its PID, and its uptime.
// Uptime is best-effort from /proc and zero when unavailable.
func (d *Daemon) Status() (running bool, pid int, uptime time.Duration) {
	running, pid = d.lock.IsRunning()
	if !running {
		return false, 0, 0
	}
	return running, pid, d.processUptime(pid)
}

// processUptime derives a process's uptime from its /proc stat entry:
// starttime (field 22, clock ticks since boot) plus the system boot time.
func (d *Daemon) processUptime(pid int) time.Duration {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0
	}

	fields := splitStatFields(string(data))
	if len(fields) < 22 {
		return 0
	}

	startTicks, err := strconv.ParseInt(fields[21], 10, 64)
	if err != nil {
		return 0
	}

	bootTime := readBootTime()
	if bootTime == 0 {
		return 0
	}

	// USER_HZ is 100 on every Linux we target.
	const clockTicks = 100
	started := time.Unix(bootTime+startTicks/clockTicks, 0)
	return time.Since(started)
}

// splitStatFields tokenizes /proc/[pid]/stat. The comm field (field 2) is
// parenthesized and may itself contain spaces, so it needs special casing.
func splitStatFields(stat string) []string {
	open := strings.Index(stat, "(")
	closing := strings.LastIndex(stat, ")")
	if open < 1 || closing < open {
		return nil
	}

	fields := []string{
		strings.TrimSpace(stat[:open]),
		stat[open+1 : closing],
	}
	return append(fields, strings.Fields(stat[closing+1:])...)
}

// readBootTime returns the system boot time (btime from /proc/stat) in
// seconds since epoch, or 0 when it cannot be read.
func readBootTime() int64 {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "btime ") {
			t, _ := strconv.ParseInt(strings.TrimSpace(line[len("btime "):]), 10, 64)
			return t
		}
	}
	return 0
}

// IsDaemon reports whether this process is the re-executed daemon child.
func IsDaemon() bool {
	return os.Getenv(DaemonEnvVar) == "1"
}

// Lock returns the daemon's singleton lock.
func (d *Daemon) Lock() *Lock {
	return d.lock
}

// Dir returns the daemon state directory.
func (d *Daemon) Dir() string {
	return d.dir
}
