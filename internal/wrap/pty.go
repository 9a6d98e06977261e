// Package wrap runs an agent CLI under a pseudo-terminal and watches its
// output directly, for agents that do not write log files.
package wrap

import (
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// PTY runs one command on a pseudo-terminal, forwarding the caller's stdin
// and window size so the wrapped agent behaves as if run directly.
type PTY struct {
	cmd      *exec.Cmd
	pty      *os.File
	oldState *term.State
}

// NewPTY prepares a PTY for the given command. Nothing runs until Start.
func NewPTY(name string, args ...string) *PTY {
	cmd := exec.Command(name, args...)
	return &PTY{cmd: cmd}
}

// Start launches the command on a fresh PTY and returns the master side as
// the command's combined output stream. Stdin is switched to raw mode when
// it is a terminal, and SIGWINCH keeps the child's window size in sync.
func (p *PTY) Start() (io.Reader, error) {
	ptmx, err := pty.Start(p.cmd)
	if err != nil {
		return nil, err
	}
	p.pty = ptmx

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGWINCH)
	go func() {
		for range ch {
			// Resize failures leave the child at its previous size.
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	ch <- syscall.SIGWINCH

	if term.IsTerminal(int(os.Stdin.Fd())) {
		if oldState, err := term.MakeRaw(int(os.Stdin.Fd())); err == nil {
			p.oldState = oldState
		}
	}

	go func() {
		io.Copy(ptmx, os.Stdin)
	}()

	return ptmx, nil
}

// Wait waits for the command to finish and returns its exit code. The
// master side stays open so readers can drain buffered output; Close
// releases it once they are done.
func (p *PTY) Wait() (int, error) {
	err := p.cmd.Wait()

	if p.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), p.oldState)
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, err
	}
	return 0, nil
}

// Close restores the terminal and closes the PTY master. Safe after Wait.
func (p *PTY) Close() {
	if p.oldState != nil {
		term.Restore(int(os.Stdin.Fd()), p.oldState)
	}
	if p.pty != nil {
		p.pty.Close()
	}
}
