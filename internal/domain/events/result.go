package events

import (
	"encoding/json"

	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// Registration associates one extension handler with an event name.
// Order is assigned by the dispatcher at registration time and fixes
// delivery order for the handler's lifetime.
type Registration struct {
	Event     string
	Extension values.ExtensionName
	Order     int
}

// HandlerError records a handler that failed during delivery. Errors do
// not stop the chain; they ride along on the dispatch result.
type HandlerError struct {
	Extension values.ExtensionName
	Err       error
}

// DispatchResult is the accumulated outcome of delivering one event to
// its handler chain.
type DispatchResult struct {
	Event string
	// Result is the winning handler result under the event's strategy,
	// empty when no handler produced one.
	Result json.RawMessage
	// Stopped is true when delivery short-circuited, either by a
	// first-result rule or a stop flag.
	Stopped bool
	// StoppedBy names the extension whose result stopped delivery.
	StoppedBy values.ExtensionName
	// HandlersRun counts handlers actually invoked, which is fewer than
	// registered when delivery stopped early.
	HandlersRun int
	Errors      []HandlerError
}

// Blocked reports whether a stop-on-flag event was vetoed. Callers use
// this to abort the operation the event announced.
func (r DispatchResult) Blocked() bool {
	return r.Stopped && !IsEmptyResult(r.Result)
}
