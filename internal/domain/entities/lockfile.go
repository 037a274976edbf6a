package entities

import (
	"fmt"
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// LockfileVersion is the current pin file format version.
const LockfileVersion = 1

// Lockfile pins pulled artifact references to the content digest they
// resolved to, so a registry tag that moves is caught on the next pull
// instead of silently swapping the code that runs.
//
// Invariants Enforced:
// - Version must be the current format version
// - Every pin must carry a canonical sha256 digest
// - Re-pinning a reference with a different digest is refused
type Lockfile struct {
	Version   int                    `yaml:"lockfile_version"`
	Generated time.Time              `yaml:"generated"`
	Artifacts map[string]ArtifactPin `yaml:"artifacts"`
}

// ArtifactPin records what one reference resolved to at pull time.
// Immutable after creation; a fresh pull of the same reference only
// refreshes the Pulled timestamp.
type ArtifactPin struct {
	Digest string    `yaml:"sha256"`
	Dest   string    `yaml:"dest,omitempty"`
	Pulled time.Time `yaml:"pulled,omitempty"`
}

// NewLockfile creates an empty lockfile at the current format version.
func NewLockfile() *Lockfile {
	return &Lockfile{
		Version:   LockfileVersion,
		Generated: time.Now().UTC(),
		Artifacts: make(map[string]ArtifactPin),
	}
}

// Pin records the digest a reference resolved to. A reference seen for
// the first time is added. A reference pinned before must resolve to
// the same digest; drift returns an *IntegrityError carrying both
// digests and leaves the lockfile unchanged.
func (l *Lockfile) Pin(ref string, digest values.Digest, dest string) error {
	if ref == "" {
		return fmt.Errorf("artifact reference is required")
	}
	if digest.IsZero() {
		return fmt.Errorf("artifact %q: digest is required", ref)
	}
	if existing, ok := l.Artifacts[ref]; ok {
		pinned, err := values.ParseDigest(existing.Digest)
		if err != nil {
			return fmt.Errorf("artifact %q: stored pin is corrupt: %w", ref, err)
		}
		if !pinned.Equals(digest) {
			return &IntegrityError{Expected: pinned, Actual: digest}
		}
	}
	if l.Artifacts == nil {
		l.Artifacts = make(map[string]ArtifactPin)
	}
	now := time.Now().UTC()
	l.Artifacts[ref] = ArtifactPin{
		Digest: digest.String(),
		Dest:   dest,
		Pulled: now,
	}
	l.Generated = now
	return nil
}

// Repin replaces the pin for a reference regardless of what was
// stored before. Use only when the operator explicitly accepts that a
// tag moved. A failed repin leaves the existing pin in place.
func (l *Lockfile) Repin(ref string, digest values.Digest, dest string) error {
	if ref == "" {
		return fmt.Errorf("artifact reference is required")
	}
	if digest.IsZero() {
		return fmt.Errorf("artifact %q: digest is required", ref)
	}
	delete(l.Artifacts, ref)
	return l.Pin(ref, digest, dest)
}

// Lookup retrieves the pin for a reference. Returns nil if the
// reference was never pulled.
func (l *Lockfile) Lookup(ref string) *ArtifactPin {
	if l.Artifacts == nil {
		return nil
	}
	if pin, ok := l.Artifacts[ref]; ok {
		return &pin
	}
	return nil
}

// Validate checks lockfile invariants after decoding a stored file.
func (l *Lockfile) Validate() error {
	if l.Version != LockfileVersion {
		return fmt.Errorf("unsupported lockfile version: %d", l.Version)
	}
	if l.PinCount() > 0 && l.Generated.IsZero() {
		return fmt.Errorf("generated timestamp is required")
	}
	for ref, pin := range l.Artifacts {
		if _, err := values.ParseDigest(pin.Digest); err != nil {
			return fmt.Errorf("artifact %q: %w", ref, err)
		}
	}
	return nil
}

// PinCount returns the number of pinned references.
func (l *Lockfile) PinCount() int {
	return len(l.Artifacts)
}
