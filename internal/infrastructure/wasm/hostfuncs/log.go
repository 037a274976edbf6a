package hostfuncs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/portcullis-dev/portcullis/internal/application/services"
	"github.com/portcullis-dev/portcullis/wireformat"
)

// hostLog serves host_log: guest log lines enter the host's structured
// logger once policy allows the extension to emit at all. A denied or
// unreadable line is dropped; log delivery has no response channel.
func (h *Host) hostLog(ctx context.Context, mod api.Module, stack []uint64) {
	var msg wireformat.LogMessage
	if err := readRequest(mod, stack[0], &msg); err != nil {
		h.logger.ErrorContext(ctx, "unreadable host_log request", "module", mod.Name(), "error", err)
		return
	}

	caller, ok := CallerFromContext(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "host_log arrived without caller identity", "module", mod.Name())
		return
	}

	if _, err := h.dispatcher.Dispatch(ctx, caller, services.Hostcall{
		Operation: services.OpLog,
		CallID:    callIDFromWire(msg.Context),
	}); err != nil {
		h.logger.DebugContext(ctx, "dropped extension log line",
			"extension", caller.Name.String(), "error", err)
		return
	}

	attrs := make([]slog.Attr, 0, len(msg.Attrs)+1)
	attrs = append(attrs, slog.String("extension", caller.Name.String()))
	for _, attr := range msg.Attrs {
		attrs = append(attrs, convertAttr(attr))
	}

	h.logger.LogAttrs(ctx, parseLogLevel(msg.Level), msg.Message, attrs...)
}

// parseLogLevel converts a wire level token to slog.Level, defaulting
// to info for tokens slog does not know.
func parseLogLevel(token string) slog.Level {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(token)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// convertAttr maps a wire attribute onto a typed slog attribute,
// falling back to the raw string when the value does not parse.
func convertAttr(attr wireformat.LogAttr) slog.Attr {
	switch attr.Type {
	case "string":
		return slog.String(attr.Key, attr.Value)
	case "int64":
		if v, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
			return slog.Int64(attr.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(attr.Value); err == nil {
			return slog.Bool(attr.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(attr.Value, 64); err == nil {
			return slog.Float64(attr.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, attr.Value); err == nil {
			return slog.Time(attr.Key, v)
		}
	case "error":
		return slog.Any(attr.Key, errors.New(attr.Value))
	}
	return slog.Any(attr.Key, attr.Value)
}
