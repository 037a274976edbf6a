package hostops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
)

// Run executes the command with bounded output. A timeout kills the
// process and returns the partial result with TimedOut set; it is not
// an error here, the dispatcher decides how to report it.
func (o *Operations) Run(ctx context.Context, spec ports.ExecSpec) (ports.ExecResult, error) {
	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
	}
	defer cancel()

	//nolint:gosec // G204: the policy engine decides which commands run
	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}

	// The child never inherits the host environment. An empty slice,
	// not nil: nil means "inherit" to os/exec.
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	} else {
		cmd.Env = []string{}
	}

	// Grandchildren holding the output pipes open must not stall Wait
	// after the child is killed.
	cmd.WaitDelay = o.waitDelay

	stdout := newBoundedBuffer(o.maxOutput)
	stderr := newBoundedBuffer(o.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := ports.ExecResult{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
		Duration:        duration,
	}

	if stdout.truncated || stderr.truncated {
		o.logger.WarnContext(ctx, "command output truncated",
			"command", spec.Command,
			"stdout_truncated", stdout.truncated,
			"stderr_truncated", stderr.truncated)
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("starting %s: %w", spec.Command, err)
	}

	o.logger.DebugContext(ctx, "executed command",
		"command", spec.Command,
		"exit_code", result.ExitCode,
		"duration", duration)
	return result, nil
}

// boundedBuffer caps written data at a limit while satisfying the
// io.Writer contract by reporting full writes.
type boundedBuffer struct {
	buffer    bytes.Buffer
	limit     int
	truncated bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if b.buffer.Len() >= b.limit {
		b.truncated = true
		return len(p), nil
	}

	remaining := b.limit - b.buffer.Len()
	if len(p) > remaining {
		b.truncated = true
		if _, err := b.buffer.Write(p[:remaining]); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return b.buffer.Write(p)
}

func (b *boundedBuffer) String() string {
	return b.buffer.String()
}
