package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// Lock is the flock-based singleton guard in the aitify state directory.
// Only one watcher instance may hold it; the holder's PID is written into
// the file so status and error messages can name it.
type Lock struct {
	path string
	file *os.File
}

// NewLock creates a lock rooted at dir. Nothing is acquired until TryLock.
func NewLock(dir string) *Lock {
	return &Lock{
		path: filepath.Join(dir, "aitify.lock"),
	}
}

// TryLock acquires the lock without blocking. When another instance holds
// it, the error names that instance's PID if it can be read.
func (l *Lock) TryLock() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			if pid := l.readPID(f); pid > 0 {
				return fmt.Errorf("another aitify instance is running (PID %d)", pid)
			}
			return fmt.Errorf("another aitify instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		l.unlock(f)
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		l.unlock(f)
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		l.unlock(f)
		return fmt.Errorf("failed to write PID: %w", err)
	}
	if err := f.Sync(); err != nil {
		l.unlock(f)
		return fmt.Errorf("failed to sync lock file: %w", err)
	}

	l.file = f
	return nil
}

// Unlock releases the lock and removes the lock file.
func (l *Lock) Unlock() error {
	if l.file == nil {
		return nil
	}
	return l.unlock(l.file)
}

func (l *Lock) unlock(f *os.File) error {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
	l.file = nil
	os.Remove(l.path)
	return nil
}

func (l *Lock) readPID(f *os.File) int {
	f.Seek(0, 0)
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// IsRunning probes whether another process holds the lock. The probe
// itself takes and immediately releases the flock when nobody holds it,
// so it never leaves the lock in a different state.
func (l *Lock) IsRunning() (bool, int) {
	f, err := os.Open(l.path)
	if err != nil {
		return false, 0
	}
	defer f.Close()

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == syscall.EWOULDBLOCK {
		return true, l.readPID(f)
	}
	if err == nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}
	return false, 0
}

// GetPID returns the lock holder's PID, or 0 when nothing holds it.
func (l *Lock) GetPID() int {
	if running, pid := l.IsRunning(); running {
		return pid
	}
	return 0
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}
