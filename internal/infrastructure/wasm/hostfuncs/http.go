package hostfuncs

import (
	"context"
	"encoding/base64"

	"github.com/tetratelabs/wazero/api"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/wireformat"
)

// hostHTTP serves host_http: an outbound HTTP request the host
// performs on the guest's behalf. Policy decides on the request host;
// the dispatcher bounds the response body.
func (h *Host) hostHTTP(ctx context.Context, mod api.Module, stack []uint64) {
	var req wireformat.HTTPRequest
	if err := readRequest(mod, stack[0], &req); err != nil {
		h.logger.ErrorContext(ctx, "unreadable host_http request", "module", mod.Name(), "error", err)
		stack[0] = h.writeResponse(ctx, mod, wireformat.HTTPResponse{Error: toErrorDetail(err)})
		return
	}

	caller, ok := CallerFromContext(ctx)
	if !ok {
		stack[0] = h.writeResponse(ctx, mod, wireformat.HTTPResponse{Error: anonymousCaller()})
		return
	}

	var body []byte
	if req.Body != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			stack[0] = h.writeResponse(ctx, mod, wireformat.HTTPResponse{
				Error: &wireformat.ErrorDetail{
					Message: "body is not valid base64: " + err.Error(),
					Type:    "validation",
				},
			})
			return
		}
		body = decoded
	}

	callCtx, cancel := contextFromWire(ctx, req.Context)
	defer cancel()

	result, err := h.dispatcher.Dispatch(callCtx, caller, services.Hostcall{
		Operation: services.OpHTTP,
		CallID:    callIDFromWire(req.Context),
		HTTP: ports.HTTPSpec{
			Method:  req.Method,
			URL:     req.URL,
			Headers: req.Headers,
			Body:    body,
		},
	})
	if err != nil {
		stack[0] = h.writeResponse(ctx, mod, wireformat.HTTPResponse{Error: toErrorDetail(err)})
		return
	}

	stack[0] = h.writeResponse(ctx, mod, wireformat.HTTPResponse{
		StatusCode:    result.HTTP.StatusCode,
		Headers:       result.HTTP.Headers,
		Body:          base64.StdEncoding.EncodeToString(result.HTTP.Body),
		BodyTruncated: result.HTTP.BodyTruncated,
	})
}
