// Package paths confines extension-supplied filesystem paths to a root
// directory. Confinement is checked on the fully resolved path, after
// symlinks, so a link inside the root cannot smuggle access outside it.
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
)

// maxLinkHops bounds symlink indirection during resolution, matching
// the kernel's ELOOP limit.
const maxLinkHops = 40

// Confine resolves requested against root and returns the canonical
// path, or a PathEscapeError when the resolved path leaves the root.
//
// Resolution walks the path one component at a time, resolving symlinks
// as it goes, so ".." applies to the real parent rather than the
// textual one. Components that do not exist yet, such as a write
// target, are appended textually, after checking that the component is
// not a dangling symlink: a link whose target does not exist still
// redirects the eventual operation, so the walk follows its target and
// confines that. Callers must operate on the returned path, never on
// the original request.
func Confine(root, requested string) (string, error) {
	if strings.ContainsRune(requested, 0) {
		return "", &entities.PathEscapeError{Root: root, Requested: requested}
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root %q: %w", root, err)
	}
	rootReal, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", fmt.Errorf("resolving root %q: %w", root, err)
	}

	// Absolute requests are taken as-is and must land under the root;
	// relative requests are interpreted from the root.
	start := rootReal
	walk := requested
	if filepath.IsAbs(requested) {
		start = string(filepath.Separator)
		walk = requested[1:]
	}

	resolved, err := resolveComponents(start, walk)
	if err != nil {
		// A path that cannot be fully resolved cannot be shown to stay
		// inside the root, so it is treated as an escape.
		return "", &entities.PathEscapeError{Root: rootReal, Requested: requested}
	}

	if !isDescendant(rootReal, resolved) {
		return "", &entities.PathEscapeError{Root: rootReal, Requested: requested, Resolved: resolved}
	}
	return resolved, nil
}

// Within reports whether requested confines successfully under root.
func Within(root, requested string) bool {
	_, err := Confine(root, requested)
	return err == nil
}

// View maps a confined canonical path back to the extension's own view
// of it: "/" for the root, "/sub/file" below it. Policy patterns and
// audit records use this form so they are stable across host layouts.
func View(root, canonical string) (string, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root %q: %w", root, err)
	}
	rootReal, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		return "", fmt.Errorf("resolving root %q: %w", root, err)
	}
	if !isDescendant(rootReal, canonical) {
		return "", &entities.PathEscapeError{Root: rootReal, Requested: canonical, Resolved: canonical}
	}
	rel, err := filepath.Rel(rootReal, canonical)
	if err != nil {
		return "", fmt.Errorf("relativizing %q: %w", canonical, err)
	}
	if rel == "." {
		return string(filepath.Separator), nil
	}
	return string(filepath.Separator) + rel, nil
}

// resolveComponents walks relPath from start, resolving each component
// through the filesystem as it goes. Components that do not exist are
// appended textually; ".." is applied to the resolved prefix so it
// steps over the real parent, not the textual one. A component that
// resolution reports missing may still be a symlink to a missing
// target; the walk splices the link target in and keeps going, so a
// dangling link redirecting outside the root fails the descendant
// check instead of slipping past it.
func resolveComponents(start, relPath string) (string, error) {
	resolved := start
	comps := strings.Split(relPath, string(filepath.Separator))
	hops := 0

	for i := 0; i < len(comps); i++ {
		switch comps[i] {
		case "", ".":
			continue
		case "..":
			resolved = filepath.Dir(resolved)
			continue
		}

		next := filepath.Join(resolved, comps[i])
		real, err := filepath.EvalSymlinks(next)
		switch {
		case err == nil:
			resolved = real
		case errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR):
			target, isLink, lerr := danglingLinkTarget(next)
			if lerr != nil {
				return "", lerr
			}
			if !isLink {
				resolved = next
				continue
			}
			hops++
			if hops > maxLinkHops {
				return "", fmt.Errorf("too many symlink hops at %q", next)
			}
			if filepath.IsAbs(target) {
				resolved = string(filepath.Separator)
			}
			comps = append(strings.Split(target, string(filepath.Separator)), comps[i+1:]...)
			i = -1
		default:
			return "", err
		}
	}
	return resolved, nil
}

// danglingLinkTarget reports whether path is a symlink whose target
// resolution failed, and returns the raw target when it is. Lstat sees
// the link itself, so a link to a missing file is still visible here.
func danglingLinkTarget(path string) (target string, isLink bool, err error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", false, nil
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", false, nil
	}
	target, err = os.Readlink(path)
	if err != nil {
		return "", false, err
	}
	return target, true, nil
}

// isDescendant reports whether path is root or inside root. Both
// arguments must already be canonical.
func isDescendant(root, path string) bool {
	if path == root {
		return true
	}
	if root == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
