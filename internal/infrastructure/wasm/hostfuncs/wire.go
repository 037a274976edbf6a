package hostfuncs

import (
	"context"
	"errors"
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
	"github.com/portcullis-dev/portcullis/wireformat"
)

// contextFromWire rebuilds a Go context from the guest's call context.
// Cancellation and deadlines cross the boundary as data and are
// re-armed here.
func contextFromWire(parent context.Context, wire wireformat.CallContext) (context.Context, context.CancelFunc) {
	if wire.Cancelled {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		return ctx, cancel
	}
	if wire.Deadline != nil && !wire.Deadline.IsZero() {
		return context.WithDeadline(parent, *wire.Deadline)
	}
	if wire.TimeoutMs > 0 {
		return context.WithTimeout(parent, time.Duration(wire.TimeoutMs)*time.Millisecond)
	}
	return context.WithCancel(parent)
}

// callIDFromWire parses the guest-supplied call id, minting a fresh
// one when the guest sent none or sent garbage. Every hostcall audits
// under a real id.
func callIDFromWire(wire wireformat.CallContext) values.CallID {
	if wire.CallID == "" {
		return values.NewCallID()
	}
	id, err := values.ParseCallID(wire.CallID)
	if err != nil {
		return values.NewCallID()
	}
	return id
}

// toErrorDetail maps host-side errors onto the structured wire error
// every response embeds.
func toErrorDetail(err error) *wireformat.ErrorDetail {
	if err == nil {
		return nil
	}

	var denied *entities.CapabilityDeniedError
	if errors.As(err, &denied) {
		return &wireformat.ErrorDetail{
			Message: denied.Error(),
			Type:    "capability",
			Code:    "CAPABILITY_DENIED",
		}
	}

	var escape *entities.PathEscapeError
	if errors.As(err, &escape) {
		return &wireformat.ErrorDetail{
			Message: escape.Error(),
			Type:    "path",
			Code:    "PATH_ESCAPE",
		}
	}

	var timeout *entities.HostcallTimeoutError
	if errors.As(err, &timeout) {
		return &wireformat.ErrorDetail{
			Message: timeout.Error(),
			Type:    "timeout",
			Code:    "ETIMEDOUT",
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &wireformat.ErrorDetail{
			Message: err.Error(),
			Type:    "timeout",
			Code:    "ETIMEDOUT",
		}
	}

	return &wireformat.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// anonymousCaller is the response error for a hostcall arriving on a
// context without extension identity. It indicates a host bug, not a
// guest one.
func anonymousCaller() *wireformat.ErrorDetail {
	return &wireformat.ErrorDetail{
		Message: "hostcall arrived without caller identity",
		Type:    "internal",
	}
}
