package artifacts

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRepository_ParsesReference(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(Config{}, quietLogger())

	repo, parsed, err := reg.repository("ghcr.io/acme/hello:1.0.0")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, "ghcr.io", parsed.Registry)
	assert.Equal(t, "acme/hello", parsed.Repository)
	assert.Equal(t, "1.0.0", parsed.Reference)
	assert.False(t, repo.PlainHTTP)
	assert.NotNil(t, repo.Client)
}

func TestRepository_PlainHTTP(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(Config{PlainHTTP: true, Username: "dev", Password: "hunter2"}, quietLogger())

	repo, _, err := reg.repository("localhost:5000/hello:latest")
	require.NoError(t, err)
	assert.True(t, repo.PlainHTTP)
}

func TestRepository_InvalidReference(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(Config{}, quietLogger())

	tests := []struct {
		name string
		ref  string
	}{
		{name: "empty", ref: ""},
		{name: "spaces", ref: "not a reference"},
		{name: "missing repository", ref: "ghcr.io"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := reg.repository(tt.ref)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid artifact reference")
		})
	}
}

func TestPull_InvalidReference(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(Config{}, quietLogger())

	_, err := reg.Pull(context.Background(), ":::", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid artifact reference")
}

func TestResolve_InvalidReference(t *testing.T) {
	t.Parallel()
	reg := NewRegistry(Config{}, quietLogger())

	_, err := reg.Resolve(context.Background(), ":::")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid artifact reference")
}
