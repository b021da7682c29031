// Package runner executes test scripts as child processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kernhell/kernhell-go/internal/domain"
	"github.com/kernhell/kernhell-go/internal/ports"
)

const (
	timeoutMessage  = "TimeoutError: Test took too long to execute."
	notFoundMessage = "File not found."

	waitDelay = 2 * time.Second
)

// ProcessRunner runs `<interpreter> <file>` with a wall-clock bound.
type ProcessRunner struct {
	interpreter string
	timeout     time.Duration
	logger      ports.Logger
}

// New builds a runner. An empty interpreter defaults to python.
func New(interpreter string, timeout time.Duration, logger ports.Logger) *ProcessRunner {
	if interpreter == "" {
		interpreter = domain.DefaultInterpreter
	}
	if timeout <= 0 {
		timeout = domain.DefaultTestTimeout
	}
	return &ProcessRunner{interpreter: interpreter, timeout: timeout, logger: logger}
}

// Interpreter reports the configured interpreter command.
func (r *ProcessRunner) Interpreter() string {
	return r.interpreter
}

// Run executes the script once. A non-zero exit, a timeout, or a start failure is a failed run.
func (r *ProcessRunner) Run(ctx context.Context, path string) domain.RunResult {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if _, err := os.Stat(abs); err != nil {
		return domain.RunResult{ExitCode: -1, Stderr: notFoundMessage}
	}

	if r.logger != nil {
		r.logger.Debug("running test", map[string]interface{}{"file": abs, "interpreter": r.interpreter})
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, r.interpreter, abs)
	c.Dir = filepath.Dir(abs)
	// browsers spawned by the test can keep the pipes open after the kill
	c.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err = c.Run()
	result := domain.RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		if r.logger != nil {
			r.logger.Warn("test timed out", map[string]interface{}{"file": abs, "timeout": r.timeout.String()})
		}
		result.TimedOut = true
		result.ExitCode = -1
		result.Stdout = ""
		result.Stderr = timeoutMessage
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Passed = true
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		if result.Stderr == "" {
			result.Stderr = err.Error()
		}
	}
	return result
}

var _ ports.TestRunner = (*ProcessRunner)(nil)
