package hostfuncs

import (
	"context"
	"encoding/base64"

	"github.com/tetratelabs/wazero/api"

	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/wireformat"
)

// hostRead serves host_read: a policy-decided file read confined to
// the caller's extension root.
func (h *Host) hostRead(ctx context.Context, mod api.Module, stack []uint64) {
	var req wireformat.ReadRequest
	if err := readRequest(mod, stack[0], &req); err != nil {
		h.logger.ErrorContext(ctx, "unreadable host_read request", "module", mod.Name(), "error", err)
		stack[0] = h.writeResponse(ctx, mod, wireformat.ReadResponse{Error: toErrorDetail(err)})
		return
	}

	caller, ok := CallerFromContext(ctx)
	if !ok {
		stack[0] = h.writeResponse(ctx, mod, wireformat.ReadResponse{Error: anonymousCaller()})
		return
	}

	callCtx, cancel := contextFromWire(ctx, req.Context)
	defer cancel()

	result, err := h.dispatcher.Dispatch(callCtx, caller, services.Hostcall{
		Operation: services.OpReadFile,
		CallID:    callIDFromWire(req.Context),
		Path:      req.Path,
	})
	if err != nil {
		stack[0] = h.writeResponse(ctx, mod, wireformat.ReadResponse{Error: toErrorDetail(err)})
		return
	}

	stack[0] = h.writeResponse(ctx, mod, wireformat.ReadResponse{
		Content:   base64.StdEncoding.EncodeToString(result.Data),
		Truncated: result.Truncated,
	})
}

// hostWrite serves host_write: a policy-decided file write confined to
// the caller's extension root.
func (h *Host) hostWrite(ctx context.Context, mod api.Module, stack []uint64) {
	var req wireformat.WriteRequest
	if err := readRequest(mod, stack[0], &req); err != nil {
		h.logger.ErrorContext(ctx, "unreadable host_write request", "module", mod.Name(), "error", err)
		stack[0] = h.writeResponse(ctx, mod, wireformat.WriteResponse{Error: toErrorDetail(err)})
		return
	}

	caller, ok := CallerFromContext(ctx)
	if !ok {
		stack[0] = h.writeResponse(ctx, mod, wireformat.WriteResponse{Error: anonymousCaller()})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Content)
	if err != nil {
		stack[0] = h.writeResponse(ctx, mod, wireformat.WriteResponse{
			Error: &wireformat.ErrorDetail{
				Message: "content is not valid base64: " + err.Error(),
				Type:    "validation",
			},
		})
		return
	}

	callCtx, cancel := contextFromWire(ctx, req.Context)
	defer cancel()

	result, err := h.dispatcher.Dispatch(callCtx, caller, services.Hostcall{
		Operation: services.OpWriteFile,
		CallID:    callIDFromWire(req.Context),
		Path:      req.Path,
		Data:      data,
	})
	if err != nil {
		stack[0] = h.writeResponse(ctx, mod, wireformat.WriteResponse{Error: toErrorDetail(err)})
		return
	}

	stack[0] = h.writeResponse(ctx, mod, wireformat.WriteResponse{
		BytesWritten: result.Written,
	})
}
