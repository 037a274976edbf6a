package hostfuncs

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/wireformat"
)

// hostExec serves host_exec: a policy-decided process execution. The
// dispatcher owns timeout clamping and output bounding; a timed-out
// command still returns its partial output alongside the error.
func (h *Host) hostExec(ctx context.Context, mod api.Module, stack []uint64) {
	var req wireformat.ExecRequest
	if err := readRequest(mod, stack[0], &req); err != nil {
		h.logger.ErrorContext(ctx, "unreadable host_exec request", "module", mod.Name(), "error", err)
		stack[0] = h.writeResponse(ctx, mod, wireformat.ExecResponse{Error: toErrorDetail(err)})
		return
	}

	caller, ok := CallerFromContext(ctx)
	if !ok {
		stack[0] = h.writeResponse(ctx, mod, wireformat.ExecResponse{Error: anonymousCaller()})
		return
	}

	callCtx, cancel := contextFromWire(ctx, req.Context)
	defer cancel()

	result, err := h.dispatcher.Dispatch(callCtx, caller, services.Hostcall{
		Operation: services.OpExec,
		CallID:    callIDFromWire(req.Context),
		Exec: ports.ExecSpec{
			Command: req.Command,
			Args:    req.Args,
			Dir:     req.Dir,
			Timeout: time.Duration(req.TimeoutMs) * time.Millisecond,
		},
	})

	response := wireformat.ExecResponse{
		Stdout:          result.Exec.Stdout,
		Stderr:          result.Exec.Stderr,
		ExitCode:        result.Exec.ExitCode,
		StdoutTruncated: result.Exec.StdoutTruncated,
		StderrTruncated: result.Exec.StderrTruncated,
		TimedOut:        result.Exec.TimedOut,
		DurationMs:      result.Exec.Duration.Milliseconds(),
	}
	if err != nil {
		response.Error = toErrorDetail(err)
	}
	stack[0] = h.writeResponse(ctx, mod, response)
}
