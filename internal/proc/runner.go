// SPDX-License-Identifier: MIT

// Package proc spawns and supervises transcoder subprocesses. A Process is
// exclusively owned by the manager that started it; exits are delivered as a
// single typed event instead of scattered callbacks.
package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/tvgate/tvgate/internal/log"
	"github.com/tvgate/tvgate/internal/procgroup"
)

// ErrSpawnFailed wraps any failure to start the external binary.
var ErrSpawnFailed = errors.New("spawn failed")

// stderrTailChars bounds the stderr excerpt retained for error messages.
const stderrTailChars = 1000

// ExitEvent is the single notification a supervisor receives when its
// process terminates, whatever the cause.
type ExitEvent struct {
	Code       int    // exit code; -1 when killed by signal before exiting
	StderrTail string // bounded tail of captured stderr
	Err        error  // raw Wait error, nil on clean exit
}

// Process is a running subprocess with captured stderr and an owned stdout.
type Process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	ring   *LineRing
	done   chan ExitEvent
	reaped chan struct{} // closed once Wait returns; safe to select from many goroutines

	killTimeout time.Duration
}

// Runner spawns subprocesses from argument vectors.
type Runner struct {
	killTimeout time.Duration
}

// NewRunner creates a Runner. killTimeout is the grace between a graceful
// signal and the group SIGKILL.
func NewRunner(killTimeout time.Duration) *Runner {
	if killTimeout <= 0 {
		killTimeout = 5 * time.Second
	}
	return &Runner{killTimeout: killTimeout}
}

// Start launches argv[0] with the remaining arguments in a fresh process
// group. The returned Process exposes stdout and exactly one ExitEvent.
func (r *Runner) Start(ctx context.Context, argv []string) (*Process, error) {
	if len(argv) == 0 {
		startTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: empty argument vector", ErrSpawnFailed)
	}

	logger := log.WithComponent("proc")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) // #nosec G204 -- argv built from operator-authored templates
	procgroup.Set(cmd)

	// Stdout goes through a manually managed pipe: exec.Cmd.Wait would close
	// a StdoutPipe on exit while consumers may still be draining it.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		startTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
	}
	cmd.Stdout = stdoutW

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		startTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawnFailed, err)
	}

	p := &Process{
		cmd:         cmd,
		stdout:      stdoutR,
		ring:        NewLineRing(256),
		done:        make(chan ExitEvent, 1),
		reaped:      make(chan struct{}),
		killTimeout: r.killTimeout,
	}

	if err := cmd.Start(); err != nil {
		_ = stdoutR.Close()
		_ = stdoutW.Close()
		startTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	// The child holds its own copy of the write end; EOF on stdoutR arrives
	// when the child exits.
	_ = stdoutW.Close()
	startTotal.WithLabelValues("ok").Inc()

	logger.Info().
		Int(log.FieldPID, cmd.Process.Pid).
		Str("command", cmd.String()).
		Msg("process started")

	// Drain stderr into the ring, then reap.
	go func() {
		_, _ = io.Copy(p.ring, stderr)

		waitErr := cmd.Wait()
		code := 0
		reason := "clean"
		if waitErr != nil {
			code = -1
			reason = "error"
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				code = exitErr.ExitCode()
			}
		}

		exitTotal.WithLabelValues(reason).Inc()
		logger.Debug().
			Int(log.FieldPID, cmd.Process.Pid).
			Int(log.FieldExitCode, code).
			Msg("process exited")

		close(p.reaped)
		p.done <- ExitEvent{Code: code, StderrTail: p.ring.Tail(stderrTailChars), Err: waitErr}
		close(p.done)
	}()

	return p, nil
}

// Stdout returns the process output stream. The caller owns draining it;
// an undrained pipe eventually stalls the subprocess.
func (p *Process) Stdout() io.ReadCloser { return p.stdout }

// PID returns the subprocess id.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Exited yields exactly one ExitEvent, then is closed.
func (p *Process) Exited() <-chan ExitEvent { return p.done }

// StderrTail returns the bounded tail of captured stderr so far.
func (p *Process) StderrTail() string { return p.ring.Tail(stderrTailChars) }

// Interrupt requests a cooperative stop (SIGINT to the group) and arranges a
// group SIGKILL after the kill timeout if the process lingers. Signalling a
// dead process is not an error.
func (p *Process) Interrupt() error {
	if err := procgroup.Kill(p.cmd, syscall.SIGINT); err != nil {
		return err
	}
	go func() {
		select {
		case <-p.reaped:
		case <-time.After(p.killTimeout):
			_ = procgroup.Kill(p.cmd, syscall.SIGKILL)
		}
	}()
	return nil
}

// Kill forcefully terminates the process group.
func (p *Process) Kill() error {
	return procgroup.Kill(p.cmd, syscall.SIGKILL)
}
