package sdk

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireAttr(t *testing.T) {
	handler := &hostHandler{}
	when := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name string
		attr slog.Attr
		want string
		typ  string
	}{
		{name: "string", attr: slog.String("user", "ada"), want: "ada", typ: "string"},
		{name: "int", attr: slog.Int("count", -3), want: "-3", typ: "int64"},
		{name: "uint64", attr: slog.Uint64("size", 7), want: "7", typ: "int64"},
		{name: "bool", attr: slog.Bool("ok", true), want: "true", typ: "bool"},
		{name: "float", attr: slog.Float64("ratio", 0.5), want: "0.5", typ: "float64"},
		{name: "duration", attr: slog.Duration("took", 1500*time.Millisecond), want: "1.5s", typ: "string"},
		{name: "time", attr: slog.Time("at", when), want: "2026-03-14T09:26:53Z", typ: "time"},
		{name: "error", attr: slog.Any("err", errors.New("boom")), want: "boom", typ: "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := handler.wireAttr(tt.attr)
			assert.Equal(t, tt.attr.Key, attr.Key)
			assert.Equal(t, tt.typ, attr.Type)
			assert.Equal(t, tt.want, attr.Value)
		})
	}
}

func TestWireAttrGroupPrefix(t *testing.T) {
	handler := &hostHandler{groups: []string{"req", "auth"}}

	attr := handler.wireAttr(slog.String("user", "ada"))
	assert.Equal(t, "req.auth.user", attr.Key)
}

func TestWithAttrsAccumulates(t *testing.T) {
	handler, ok := (&hostHandler{}).WithAttrs([]slog.Attr{slog.String("a", "1")}).(*hostHandler)
	require.True(t, ok)
	require.Len(t, handler.attrs, 1)
	assert.Equal(t, "a", handler.attrs[0].Key)

	// The original handler is untouched.
	assert.Empty(t, (&hostHandler{}).attrs)
}

func TestWithGroupPrefixesLaterAttrs(t *testing.T) {
	grouped, ok := (&hostHandler{}).WithGroup("db").(*hostHandler)
	require.True(t, ok)

	attr := grouped.wireAttr(slog.String("query", "select 1"))
	assert.Equal(t, "db.query", attr.Key)
}

func TestLoggerOffSandbox(t *testing.T) {
	// The stub import swallows the record; this just has to not panic.
	Logger().Info("hello", "n", 1, "ok", true)
}
