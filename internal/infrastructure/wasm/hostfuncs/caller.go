package hostfuncs

import (
	"context"

	"github.com/portcullis-dev/portcullis/internal/application/services"
)

type contextKey struct {
	name string
}

var callerKey = &contextKey{name: "caller"}

// WithCaller binds the calling extension's identity to the context.
// The instance sets it before every guest entry, so hostcalls are
// attributed by the host and never by the guest's say-so.
func WithCaller(ctx context.Context, info services.ExtensionInfo) context.Context {
	return context.WithValue(ctx, callerKey, info)
}

// CallerFromContext retrieves the calling extension's identity.
func CallerFromContext(ctx context.Context) (services.ExtensionInfo, bool) {
	info, ok := ctx.Value(callerKey).(services.ExtensionInfo)
	return info, ok
}
