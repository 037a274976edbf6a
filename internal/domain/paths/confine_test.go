package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
)

// sandboxDirs builds a root with a file, a nested directory, an in-root
// symlink, and an escape symlink pointing outside the root.
func sandboxDirs(t *testing.T) (root, outside string) {
	t.Helper()
	base := t.TempDir()
	root = filepath.Join(base, "root")
	outside = filepath.Join(base, "outside")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "nested"), 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.txt"), []byte("in"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("out"), 0o644))

	require.NoError(t, os.Symlink(filepath.Join(root, "nested"), filepath.Join(root, "inlink")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	return root, outside
}

func Test_Confine_AllowsPathsInsideRoot(t *testing.T) {
	root, _ := sandboxDirs(t)
	rootReal, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{"existing file", "data.txt", filepath.Join(rootReal, "data.txt")},
		{"nested directory", "nested", filepath.Join(rootReal, "nested")},
		{"root itself", ".", rootReal},
		{"new file for writing", "nested/new-output.json", filepath.Join(rootReal, "nested", "new-output.json")},
		{"new file in new directory", "reports/2024/out.txt", filepath.Join(rootReal, "reports", "2024", "out.txt")},
		{"redundant segments", "./nested/../data.txt", filepath.Join(rootReal, "data.txt")},
		{"in-root symlink resolves to target", "inlink", filepath.Join(rootReal, "nested")},
		{"absolute path under root", filepath.Join(rootReal, "data.txt"), filepath.Join(rootReal, "data.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Confine(root, tt.requested)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Confine_DeniesEscapes(t *testing.T) {
	root, outside := sandboxDirs(t)

	tests := []struct {
		name      string
		requested string
	}{
		{"textual parent traversal", "../outside/secret.txt"},
		{"deep traversal", "nested/../../outside/secret.txt"},
		{"symlink to outside directory", "escape"},
		{"file through escape symlink", "escape/secret.txt"},
		{"new file through escape symlink", "escape/new.txt"},
		{"traversal through in-root symlink", "inlink/../../outside/secret.txt"},
		{"absolute path outside root", filepath.Join(outside, "secret.txt")},
		{"absolute root escape", "/etc/passwd"},
		{"null byte", "data\x00.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Confine(root, tt.requested)
			require.Error(t, err)

			var escapeErr *entities.PathEscapeError
			assert.ErrorAs(t, err, &escapeErr, "escapes must be reported as PathEscapeError")
		})
	}
}

// The resolved form of "inlink/../.." follows the symlink target first,
// so the traversal runs from the real directory, exactly as the kernel
// would resolve it. A textual check would collapse the ".." first and
// miss the real destination.
func Test_Confine_SymlinkResolvedBeforeTraversal(t *testing.T) {
	root, _ := sandboxDirs(t)

	// inlink -> root/nested; inlink/.. is root, so this stays inside.
	got, err := Confine(root, "inlink/../data.txt")
	require.NoError(t, err)

	rootReal, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rootReal, "data.txt"), got)
}

func Test_Confine_SymlinkChain(t *testing.T) {
	root, outside := sandboxDirs(t)
	outsideReal, err := filepath.EvalSymlinks(outside)
	require.NoError(t, err)

	// hop -> escape -> outside. Resolution must follow the whole chain.
	require.NoError(t, os.Symlink(filepath.Join(root, "escape"), filepath.Join(root, "hop")))

	_, err = Confine(root, "hop/secret.txt")
	require.Error(t, err)

	var escapeErr *entities.PathEscapeError
	require.ErrorAs(t, err, &escapeErr)
	assert.Equal(t, filepath.Join(outsideReal, "secret.txt"), escapeErr.Resolved)
}

// A symlink whose target does not exist yet still redirects whatever
// operation follows, so confinement must chase the target instead of
// keeping the link path. The write case is the dangerous one: the
// target springs into existence outside the root on first use.
func Test_Confine_DanglingSymlinkEscapes(t *testing.T) {
	root, outside := sandboxDirs(t)

	require.NoError(t, os.Symlink(filepath.Join(outside, "evil.txt"), filepath.Join(root, "dangling")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "newdir"), filepath.Join(root, "dangling-dir")))
	require.NoError(t, os.Symlink("../outside/evil.txt", filepath.Join(root, "dangling-rel")))

	tests := []struct {
		name      string
		requested string
	}{
		{"final component links to missing outside file", "dangling"},
		{"intermediate component links to missing outside directory", "dangling-dir/out.txt"},
		{"relative link target escapes", "dangling-rel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Confine(root, tt.requested)
			require.Error(t, err)

			var escapeErr *entities.PathEscapeError
			assert.ErrorAs(t, err, &escapeErr)
		})
	}
}

// A dangling link that stays inside the root is legitimate: resolution
// lands on the in-root target, and writing creates that target.
func Test_Confine_DanglingSymlinkInsideRootAllowed(t *testing.T) {
	root, _ := sandboxDirs(t)
	rootReal, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	require.NoError(t, os.Symlink("notyet.txt", filepath.Join(root, "pending")))

	got, err := Confine(root, "pending")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rootReal, "notyet.txt"), got,
		"confinement must return the link target, not the link")
}

// A dangling link whose target walks back into itself would splice
// forever; the hop bound turns that into an error instead.
func Test_Confine_DanglingSymlinkLoopBounded(t *testing.T) {
	root, _ := sandboxDirs(t)

	require.NoError(t, os.Symlink("missing/../loop", filepath.Join(root, "loop")))

	_, err := Confine(root, "loop")
	require.Error(t, err)
}

func Test_Confine_MissingRoot(t *testing.T) {
	_, err := Confine(filepath.Join(t.TempDir(), "does-not-exist"), "file")
	require.Error(t, err)

	var escapeErr *entities.PathEscapeError
	assert.False(t, errors.As(err, &escapeErr),
		"a missing root is a configuration error, not a path escape")
}

func Test_Within(t *testing.T) {
	root, _ := sandboxDirs(t)

	assert.True(t, Within(root, "data.txt"))
	assert.False(t, Within(root, "escape/secret.txt"))
}
