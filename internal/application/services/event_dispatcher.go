package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/events"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// EventHandler delivers one event payload to an extension and returns
// its result. An empty or null result means the handler passed.
type EventHandler func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)

type eventRegistration struct {
	events.Registration
	handler EventHandler
}

// EventDispatcher delivers events to registered handlers in
// registration order, each awaited before the next, applying the rule
// table's short-circuit strategy for the event's family.
type EventDispatcher struct {
	table  events.RuleTable
	budget time.Duration
	logger *slog.Logger

	mu        sync.RWMutex
	handlers  map[string][]eventRegistration
	nextOrder int
}

// NewEventDispatcher builds a dispatcher. budget bounds one emission's
// total handler time; zero means unbounded. The budget cancels the
// context between handlers; a handler already running is awaited, not
// preempted.
func NewEventDispatcher(table events.RuleTable, budget time.Duration, logger *slog.Logger) *EventDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventDispatcher{
		table:    table,
		budget:   budget,
		logger:   logger,
		handlers: make(map[string][]eventRegistration),
	}
}

// Register appends a handler for an event. Delivery order is
// registration order and never changes for the handler's lifetime.
func (d *EventDispatcher) Register(event string, ext values.ExtensionName, handler EventHandler) events.Registration {
	d.mu.Lock()
	defer d.mu.Unlock()

	reg := events.Registration{
		Event:     event,
		Extension: ext,
		Order:     d.nextOrder,
	}
	d.nextOrder++
	d.handlers[event] = append(d.handlers[event], eventRegistration{Registration: reg, handler: handler})
	return reg
}

// Unregister drops every handler the extension registered. Called when
// an extension unloads; handlers are owned by their extension and do
// not outlive it.
func (d *EventDispatcher) Unregister(ext values.ExtensionName) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for event, regs := range d.handlers {
		kept := regs[:0]
		for _, reg := range regs {
			if !reg.Extension.Equals(ext) {
				kept = append(kept, reg)
			}
		}
		if len(kept) == 0 {
			delete(d.handlers, event)
		} else {
			d.handlers[event] = kept
		}
	}
}

// Registrations returns the handlers for an event in delivery order.
func (d *EventDispatcher) Registrations(event string) []events.Registration {
	d.mu.RLock()
	defer d.mu.RUnlock()

	regs := make([]events.Registration, 0, len(d.handlers[event]))
	for _, reg := range d.handlers[event] {
		regs = append(regs, reg.Registration)
	}
	return regs
}

// Emit delivers one event to its handler chain. Handler errors are
// recorded on the result and do not stop later handlers; only a
// strategy short-circuit or an exhausted context stops the chain.
func (d *EventDispatcher) Emit(ctx context.Context, event string, payload json.RawMessage) (events.DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return events.DispatchResult{Event: event}, err
	}

	d.mu.RLock()
	chain := make([]eventRegistration, len(d.handlers[event]))
	copy(chain, d.handlers[event])
	d.mu.RUnlock()

	rule := d.table.RuleFor(event)
	result := events.DispatchResult{Event: event}

	emitCtx := ctx
	if d.budget > 0 {
		var cancel context.CancelFunc
		emitCtx, cancel = context.WithTimeout(ctx, d.budget)
		defer cancel()
	}

	for _, reg := range chain {
		if emitCtx.Err() != nil {
			d.logger.WarnContext(ctx, "event delivery stopped, budget exhausted",
				"event", event,
				"handlers_run", result.HandlersRun,
				"handlers_total", len(chain))
			break
		}

		out, err := reg.handler(emitCtx, payload)
		result.HandlersRun++
		if err != nil {
			result.Errors = append(result.Errors, events.HandlerError{Extension: reg.Extension, Err: err})
			d.logger.WarnContext(ctx, "event handler failed",
				"event", event,
				"extension", reg.Extension.String(),
				"error", err)
			continue
		}
		if events.IsEmptyResult(out) {
			continue
		}

		switch rule.Strategy {
		case events.StrategyFirstResult:
			result.Result = out
			result.Stopped = true
			result.StoppedBy = reg.Extension
			return result, nil

		case events.StrategyStopOnFlag:
			result.Result = out
			if events.StopFlag(out, rule.FlagKeys) {
				result.Stopped = true
				result.StoppedBy = reg.Extension
				return result, nil
			}

		default:
			result.Result = out
		}
	}
	return result, nil
}
