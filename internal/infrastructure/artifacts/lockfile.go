package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// LockfileName is the pin file kept alongside the pull cache.
const LockfileName = "portcullis.lock"

// PinFile persists the artifact lockfile. Every operation reads the
// file fresh, so edits made by hand between pulls are honored.
type PinFile struct {
	mu   sync.Mutex
	path string
}

// NewPinFile creates a pin file backed by the file at path.
func NewPinFile(path string) *PinFile {
	return &PinFile{path: path}
}

// Path returns the backing file path.
func (p *PinFile) Path() string {
	return p.path
}

// Load reads the lockfile. A missing or empty file is an empty
// lockfile; a file that decodes but fails validation is an error, so a
// corrupt pin cannot silently wave a drifted artifact through.
func (p *PinFile) Load(_ context.Context) (*entities.Lockfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

// Pin records the digest a reference resolved to and persists the
// updated lockfile. Digest drift against an existing pin surfaces the
// lockfile's *IntegrityError and leaves the file untouched.
func (p *PinFile) Pin(_ context.Context, ref string, digest values.Digest, dest string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, err := p.load()
	if err != nil {
		return err
	}
	if err := lock.Pin(ref, digest, dest); err != nil {
		return err
	}
	return p.save(lock)
}

// Repin replaces the pin for a reference, accepting a moved tag.
func (p *PinFile) Repin(_ context.Context, ref string, digest values.Digest, dest string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, err := p.load()
	if err != nil {
		return err
	}
	if err := lock.Repin(ref, digest, dest); err != nil {
		return err
	}
	return p.save(lock)
}

func (p *PinFile) load() (*entities.Lockfile, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return entities.NewLockfile(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lockfile: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return entities.NewLockfile(), nil
	}

	var lock entities.Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lockfile %s: %w", p.path, err)
	}
	if err := lock.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lockfile %s: %w", p.path, err)
	}
	return &lock, nil
}

func (p *PinFile) save(lock *entities.Lockfile) error {
	dir := filepath.Dir(p.path)
	//nolint:gosec // G301: 0o755 is standard for user config directories
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create lockfile directory: %w", err)
	}

	data, err := yaml.MarshalWithOptions(lock, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("failed to marshal lockfile: %w", err)
	}
	return os.WriteFile(p.path, data, 0o600)
}
