package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

func testDigest(t *testing.T, fill string) values.Digest {
	t.Helper()
	return values.MustParseDigest("sha256:" + strings.Repeat(fill, 64))
}

func mustCap(t *testing.T, token string) capabilities.Capability {
	t.Helper()
	c, err := capabilities.ParseToken(token)
	require.NoError(t, err)
	return c
}

func TestFileFeedbackStore_MissingFile(t *testing.T) {
	t.Parallel()

	store := NewFileFeedbackStore(filepath.Join(t.TempDir(), "feedback.yaml"))

	n, err := store.Downgrades(context.Background(), testDigest(t, "a"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileFeedbackStore_RecordAndCount(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feedback.yaml")
	store := NewFileFeedbackStore(path)
	ctx := context.Background()
	digest := testDigest(t, "a")

	require.NoError(t, store.RecordDenial(ctx, digest, mustCap(t, "exec:rm")))
	require.NoError(t, store.RecordDenial(ctx, digest, mustCap(t, "read:/etc/passwd")))

	n, err := store.Downgrades(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	expectedContent := `denials:
  - digest: ` + digest.String() + `
    capabilities:
      - exec:rm
      - read:/etc/passwd
`
	assert.Equal(t, expectedContent, string(content))
}

func TestFileFeedbackStore_RepeatDenialIsNoOp(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feedback.yaml")
	store := NewFileFeedbackStore(path)
	ctx := context.Background()
	digest := testDigest(t, "b")

	require.NoError(t, store.RecordDenial(ctx, digest, mustCap(t, "exec:rm")))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, store.RecordDenial(ctx, digest, mustCap(t, "exec:rm")))
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(before), string(after), "a repeated denial rewrites nothing")

	n, err := store.Downgrades(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "retrying one capability cannot walk the tier down")
}

func TestFileFeedbackStore_DigestsAreIndependent(t *testing.T) {
	t.Parallel()

	store := NewFileFeedbackStore(filepath.Join(t.TempDir(), "feedback.yaml"))
	ctx := context.Background()
	first := testDigest(t, "1")
	second := testDigest(t, "2")

	require.NoError(t, store.RecordDenial(ctx, first, mustCap(t, "exec:rm")))
	require.NoError(t, store.RecordDenial(ctx, second, mustCap(t, "exec:rm")))
	require.NoError(t, store.RecordDenial(ctx, second, mustCap(t, "http:evil.example.com")))

	n, err := store.Downgrades(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.Downgrades(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Downgrades(ctx, testDigest(t, "3"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileFeedbackStore_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "feedback.yaml")
	require.NoError(t, os.WriteFile(path, []byte("denials: [not: valid: yaml"), 0o600))
	store := NewFileFeedbackStore(path)

	_, err := store.Downgrades(context.Background(), testDigest(t, "a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse feedback store")

	err = store.RecordDenial(context.Background(), testDigest(t, "a"), mustCap(t, "exec:rm"))
	require.Error(t, err)
}

func TestFileFeedbackStore_DirectoryCreation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "scanner", "feedback.yaml")
	store := NewFileFeedbackStore(path)

	require.NoError(t, store.RecordDenial(context.Background(), testDigest(t, "c"), mustCap(t, "exec:rm")))
	assert.FileExists(t, path)
}

func TestFileFeedbackStore_CanceledContext(t *testing.T) {
	t.Parallel()

	store := NewFileFeedbackStore(filepath.Join(t.TempDir(), "feedback.yaml"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.RecordDenial(ctx, testDigest(t, "a"), mustCap(t, "exec:rm")), context.Canceled)
	_, err := store.Downgrades(ctx, testDigest(t, "a"))
	require.ErrorIs(t, err, context.Canceled)
}
