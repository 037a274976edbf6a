package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/wireformat"
)

// hostEnv serves host_env: a policy-decided read of one host
// environment variable. Nothing is injected at instantiation, so
// every variable an extension ever sees leaves an audit record.
func (h *Host) hostEnv(ctx context.Context, mod api.Module, stack []uint64) {
	var req wireformat.EnvRequest
	if err := readRequest(mod, stack[0], &req); err != nil {
		h.logger.ErrorContext(ctx, "unreadable host_env request", "module", mod.Name(), "error", err)
		stack[0] = h.writeResponse(ctx, mod, wireformat.EnvResponse{Error: toErrorDetail(err)})
		return
	}

	caller, ok := CallerFromContext(ctx)
	if !ok {
		stack[0] = h.writeResponse(ctx, mod, wireformat.EnvResponse{Error: anonymousCaller()})
		return
	}

	callCtx, cancel := contextFromWire(ctx, req.Context)
	defer cancel()

	result, err := h.dispatcher.Dispatch(callCtx, caller, services.Hostcall{
		Operation: services.OpEnvGet,
		CallID:    callIDFromWire(req.Context),
		EnvName:   req.Name,
	})
	if err != nil {
		stack[0] = h.writeResponse(ctx, mod, wireformat.EnvResponse{Error: toErrorDetail(err)})
		return
	}

	stack[0] = h.writeResponse(ctx, mod, wireformat.EnvResponse{
		Value: result.EnvValue,
		Found: result.EnvFound,
	})
}
