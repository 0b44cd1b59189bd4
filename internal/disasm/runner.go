package disasm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds a single tool run.
const DefaultTimeout = time.Hour

// Output is what a tool run produced.
type Output struct {
	Stdout   []byte
	ExitCode int
}

// Runner executes external commands with a bounded wait.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands with os/exec. A command that outlives Timeout
// is killed.
type ExecRunner struct {
	Timeout time.Duration
	// MergeStderr captures stderr into Stdout, as the verbose perf
	// diagnostics need.
	MergeStderr bool
}

// NewExecRunner returns a runner with the given ceiling; zero means DefaultTimeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ExecRunner{Timeout: timeout}
}

// Merged returns a copy of r that also captures stderr.
func (r *ExecRunner) Merged() *ExecRunner {
	cp := *r
	cp.MergeStderr = true
	return &cp
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.WaitDelay = time.Second

	var stdout bytes.Buffer
	c.Stdout = &stdout
	if r.MergeStderr {
		c.Stderr = &stdout
	}

	if err := c.Start(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Output{}, ctxErr
		}
		return Output{}, fmt.Errorf("%w: start %s: %v", ErrToolNotFound, cmd.Name, err)
	}

	err := c.Wait()
	out := Output{Stdout: stdout.Bytes()}
	if c.ProcessState != nil {
		out.ExitCode = c.ProcessState.ExitCode()
	}
	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return out, fmt.Errorf("%w after %s", ErrToolTimedOut, timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return out, fmt.Errorf("wait %s: %w", cmd.Name, err)
	}
	// A non-zero exit still leaves whatever the tool printed usable.
	return out, nil
}

// MergingRunner is implemented by runners that can also capture stderr.
type MergingRunner interface {
	Runner
	Merged() Runner
}

// merged returns a stderr-capturing variant of r when it offers one.
func merged(r Runner) Runner {
	switch rr := r.(type) {
	case *ExecRunner:
		return rr.Merged()
	case MergingRunner:
		return rr.Merged()
	}
	return r
}
