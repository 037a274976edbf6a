package hostfuncs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
	"github.com/portcullis-dev/portcullis/wireformat"
)

func TestContextFromWire_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := contextFromWire(context.Background(), wireformat.CallContext{Cancelled: true})
	defer cancel()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestContextFromWire_Deadline(t *testing.T) {
	t.Parallel()

	deadline := time.Now().Add(5 * time.Minute)
	ctx, cancel := contextFromWire(context.Background(), wireformat.CallContext{Deadline: &deadline})
	defer cancel()

	got, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, deadline, got, time.Millisecond)
	assert.NoError(t, ctx.Err())
}

func TestContextFromWire_Timeout(t *testing.T) {
	t.Parallel()

	before := time.Now()
	ctx, cancel := contextFromWire(context.Background(), wireformat.CallContext{TimeoutMs: 30_000})
	defer cancel()

	got, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, got.After(before))
	assert.True(t, got.Before(before.Add(31*time.Second)))
}

func TestContextFromWire_Default(t *testing.T) {
	t.Parallel()

	ctx, cancel := contextFromWire(context.Background(), wireformat.CallContext{})

	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	assert.NoError(t, ctx.Err())

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCallIDFromWire(t *testing.T) {
	t.Parallel()

	known := values.NewCallID()

	tests := []struct {
		name      string
		wire      string
		wantKnown bool
	}{
		{"valid id round-trips", known.String(), true},
		{"empty id mints fresh", "", false},
		{"garbage id mints fresh", "not-a-uuid", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := callIDFromWire(wireformat.CallContext{CallID: tt.wire})
			assert.False(t, got.IsZero())
			if tt.wantKnown {
				assert.Equal(t, known.String(), got.String())
			} else {
				assert.NotEqual(t, tt.wire, got.String())
			}
		})
	}
}

func TestToErrorDetail(t *testing.T) {
	t.Parallel()

	denied := &entities.CapabilityDeniedError{
		Extension:  values.MustNewExtensionName("demo"),
		Capability: capabilities.Capability{Kind: capabilities.KindRead, Pattern: "notes.txt"},
		Reason:     policy.ReasonNoGrant,
	}
	escape := &entities.PathEscapeError{Root: "/work/ext", Requested: "../../etc/passwd"}
	timeout := &entities.HostcallTimeoutError{
		Extension: values.MustNewExtensionName("demo"),
		Operation: "git",
		Timeout:   30 * time.Second,
	}

	tests := []struct {
		name     string
		err      error
		wantType string
		wantCode string
	}{
		{"capability denial", denied, "capability", "CAPABILITY_DENIED"},
		{"wrapped capability denial", fmt.Errorf("dispatch: %w", denied), "capability", "CAPABILITY_DENIED"},
		{"path escape", escape, "path", "PATH_ESCAPE"},
		{"hostcall timeout", timeout, "timeout", "ETIMEDOUT"},
		{"context deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), "timeout", "ETIMEDOUT"},
		{"plain error", errors.New("disk on fire"), "internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			detail := toErrorDetail(tt.err)
			require.NotNil(t, detail)
			assert.Equal(t, tt.wantType, detail.Type)
			assert.Equal(t, tt.wantCode, detail.Code)
			assert.Contains(t, detail.Message, tt.err.Error())
		})
	}
}

func TestToErrorDetail_Nil(t *testing.T) {
	t.Parallel()

	assert.Nil(t, toErrorDetail(nil))
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		token string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run("token "+tt.token, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, parseLogLevel(tt.token))
		})
	}
}

func TestConvertAttr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr wireformat.LogAttr
		want slog.Attr
	}{
		{
			"string",
			wireformat.LogAttr{Key: "path", Type: "string", Value: "a.txt"},
			slog.String("path", "a.txt"),
		},
		{
			"int64",
			wireformat.LogAttr{Key: "count", Type: "int64", Value: "42"},
			slog.Int64("count", 42),
		},
		{
			"bool",
			wireformat.LogAttr{Key: "ok", Type: "bool", Value: "true"},
			slog.Bool("ok", true),
		},
		{
			"float64",
			wireformat.LogAttr{Key: "ratio", Type: "float64", Value: "0.5"},
			slog.Float64("ratio", 0.5),
		},
		{
			"unparseable int falls back to string",
			wireformat.LogAttr{Key: "count", Type: "int64", Value: "many"},
			slog.Any("count", "many"),
		},
		{
			"unknown type falls back to string",
			wireformat.LogAttr{Key: "blob", Type: "bytes", Value: "xx"},
			slog.Any("blob", "xx"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := convertAttr(tt.attr)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestConvertAttr_Time(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := convertAttr(wireformat.LogAttr{
		Key:   "at",
		Type:  "time",
		Value: stamp.Format(time.RFC3339Nano),
	})

	assert.Equal(t, "at", got.Key)
	assert.True(t, got.Value.Time().Equal(stamp))
}
