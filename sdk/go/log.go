package sdk

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/portcullis-dev/portcullis/wireformat"
)

// Logger returns a structured logger whose records travel to the host
// over the log hostcall. The host stamps every line with the extension
// name and drops lines the policy denies, so guests should treat logging
// as best-effort.
func Logger() *slog.Logger {
	return slog.New(&hostHandler{})
}

// hostHandler ships slog records over host_log.
type hostHandler struct {
	attrs  []wireformat.LogAttr
	groups []string
}

func (h *hostHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *hostHandler) Handle(ctx context.Context, record slog.Record) error {
	msg := wireformat.LogMessage{
		Context:   callContext(ctx),
		Level:     strings.ToLower(record.Level.String()),
		Message:   record.Message,
		Timestamp: record.Time,
		Attrs:     append([]wireformat.LogAttr(nil), h.attrs...),
	}
	record.Attrs(func(attr slog.Attr) bool {
		msg.Attrs = append(msg.Attrs, h.wireAttr(attr))
		return true
	})
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	size := uint32(len(data))
	ptr := Allocate(size)
	if ptr == 0 {
		return nil
	}
	defer Deallocate(ptr, size)
	copyToMemory(ptr, data)
	hostLog(packPtrLen(ptr, size))
	return nil
}

func (h *hostHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &hostHandler{
		attrs:  append([]wireformat.LogAttr(nil), h.attrs...),
		groups: h.groups,
	}
	for _, attr := range attrs {
		next.attrs = append(next.attrs, h.wireAttr(attr))
	}
	return next
}

func (h *hostHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &hostHandler{
		attrs:  append([]wireformat.LogAttr(nil), h.attrs...),
		groups: append(append([]string(nil), h.groups...), name),
	}
}

// wireAttr flattens a slog attribute to the wire's typed string form.
// Group prefixes join with dots.
func (h *hostHandler) wireAttr(attr slog.Attr) wireformat.LogAttr {
	key := attr.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + key
	}
	value := attr.Value.Resolve()
	switch value.Kind() {
	case slog.KindInt64:
		return wireformat.LogAttr{Key: key, Type: "int64", Value: strconv.FormatInt(value.Int64(), 10)}
	case slog.KindUint64:
		return wireformat.LogAttr{Key: key, Type: "int64", Value: strconv.FormatUint(value.Uint64(), 10)}
	case slog.KindBool:
		return wireformat.LogAttr{Key: key, Type: "bool", Value: strconv.FormatBool(value.Bool())}
	case slog.KindFloat64:
		return wireformat.LogAttr{Key: key, Type: "float64", Value: strconv.FormatFloat(value.Float64(), 'g', -1, 64)}
	case slog.KindTime:
		return wireformat.LogAttr{Key: key, Type: "time", Value: value.Time().Format(time.RFC3339Nano)}
	case slog.KindDuration:
		return wireformat.LogAttr{Key: key, Type: "string", Value: value.Duration().String()}
	case slog.KindString:
		return wireformat.LogAttr{Key: key, Type: "string", Value: value.String()}
	default:
		if err, ok := value.Any().(error); ok {
			return wireformat.LogAttr{Key: key, Type: "error", Value: err.Error()}
		}
		return wireformat.LogAttr{Key: key, Type: "string", Value: value.String()}
	}
}
