// Package executor runs external diagnostic tools (such as the system ping
// binary) with a sanitized environment, capped output and a hard deadline.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrNotFound is returned when the tool binary cannot be located.
	ErrNotFound = errors.New("tool not found")
	// ErrTimeout is returned when the tool did not exit before its ceiling.
	ErrTimeout = errors.New("tool timed out")
)

// RawOutput captures the stdout/stderr from an external tool.
type RawOutput struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool // true if output was capped
	PID       int  // OS process ID of the spawned tool
}

// Runner runs external tools and captures their output.
type Runner interface {
	// Run executes tool with args and kills it once ceiling elapses.
	// A non-zero exit status is not an error; it is reported in ExitCode.
	Run(ctx context.Context, tool string, args []string, ceiling time.Duration) (*RawOutput, error)
	Available(tool string) bool
}

// ExecRunner runs tools found through a SecurityChecker.
type ExecRunner struct {
	security       *SecurityChecker
	maxOutputBytes int64
	debugf         func(format string, args ...interface{})
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithSecurity replaces the default SecurityChecker.
func WithSecurity(sc *SecurityChecker) Option {
	return func(r *ExecRunner) { r.security = sc }
}

// WithMaxOutput caps captured stdout at n bytes.
func WithMaxOutput(n int64) Option {
	return func(r *ExecRunner) { r.maxOutputBytes = n }
}

// WithDebug routes audit and diagnostic lines to fn.
func WithDebug(fn func(format string, args ...interface{})) Option {
	return func(r *ExecRunner) { r.debugf = fn }
}

// NewExecRunner creates an ExecRunner with default security controls.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		security:       NewSecurityChecker(),
		maxOutputBytes: 1024 * 1024, // 1MB
		debugf:         func(string, ...interface{}) {},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// gracefulShutdownTimeout is how long we wait after SIGINT before sending SIGKILL.
const gracefulShutdownTimeout = 500 * time.Millisecond

// Run executes a tool with security verification and output capping.
// When the ceiling elapses or ctx is cancelled, SIGINT is sent to the
// process group first so ping can print its partial statistics; SIGKILL
// follows after gracefulShutdownTimeout.
func (r *ExecRunner) Run(ctx context.Context, tool string, args []string, ceiling time.Duration) (*RawOutput, error) {
	start := time.Now()

	binPath, err := r.security.ResolveBinary(tool)
	if err != nil {
		return nil, err
	}
	if err := r.security.VerifyBinary(binPath); err != nil {
		return nil, fmt.Errorf("binary verification for %q: %w", binPath, err)
	}

	runCtx := ctx
	if ceiling > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, ceiling)
		defer cancel()
	}

	// exec.Command (not CommandContext) so we control the signal sequence.
	cmd := exec.Command(binPath, args...)
	cmd.Env = r.security.SanitizeEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	lw := &LimitedWriter{W: &stdout, N: r.maxOutputBytes}
	cmd.Stdout = lw
	cmd.Stderr = &LimitedWriter{W: &stderr, N: r.maxOutputBytes}

	r.debugf("exec: %s %s (ceiling %s)", binPath, strings.Join(args, " "), ceiling)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", tool, err)
	}

	raw := &RawOutput{PID: cmd.Process.Pid}

	// exited is closed once done has been written so the signal goroutine can
	// observe exit without consuming the error value.
	done := make(chan error, 1)
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		done <- err
		close(exited)
	}()

	go func() {
		select {
		case <-runCtx.Done():
			pgid := cmd.Process.Pid
			if err := syscall.Kill(-pgid, syscall.SIGINT); err != nil {
				_ = cmd.Process.Signal(syscall.SIGINT)
			}
			select {
			case <-exited:
			case <-time.After(gracefulShutdownTimeout):
				_ = syscall.Kill(-pgid, syscall.SIGKILL)
				_ = cmd.Process.Signal(os.Kill)
			}
		case <-exited:
		}
	}()

	waitErr := <-done

	raw.Stdout = stdout.String()
	raw.Stderr = stderr.String()
	raw.Duration = time.Since(start)
	raw.Truncated = lw.Truncated
	if cmd.ProcessState != nil {
		raw.ExitCode = cmd.ProcessState.ExitCode()
	}

	if len(raw.Stdout) == 0 && len(raw.Stderr) > 0 {
		r.debugf("%s: stdout empty, stderr=%q", tool, strings.TrimSpace(raw.Stderr))
	}

	// Parent cancellation wins over our own ceiling.
	if ctx.Err() != nil {
		return raw, ctx.Err()
	}
	if runCtx.Err() != nil {
		return raw, fmt.Errorf("%s after %s: %w", tool, ceiling, ErrTimeout)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return raw, nil
		}
		return nil, fmt.Errorf("execute %s: %w", tool, waitErr)
	}

	return raw, nil
}

// Available checks if a tool binary exists in allowed paths.
func (r *ExecRunner) Available(tool string) bool {
	_, err := r.security.ResolveBinary(tool)
	return err == nil
}

// LimitedWriter wraps a writer with a byte limit.
type LimitedWriter struct {
	W         *bytes.Buffer
	N         int64
	written   int64
	Truncated bool
}

func (lw *LimitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.N {
		lw.Truncated = true
		// exec.Cmd expects all bytes consumed.
		return len(p), nil
	}
	remaining := lw.N - lw.written
	if int64(len(p)) > remaining {
		n, err := lw.W.Write(p[:remaining])
		lw.written += int64(n)
		lw.Truncated = true
		return len(p), err
	}
	n, err := lw.W.Write(p)
	lw.written += int64(n)
	return n, err
}
