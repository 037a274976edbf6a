// Package secrets resolves operator-named secret values from
// environment variables and files so the redaction layer can scrub
// them out of everything the host writes.
package secrets

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ValueSink receives every resolved secret value. The redaction
// scrubber implements it.
type ValueSink interface {
	Track(value string)
}

// Sources maps secret names to where their values live. A name may
// appear in only one map; lookups check Inline, then Env, then Files.
type Sources struct {
	// Inline holds literal values. Development use only; real secrets
	// belong in Env or Files.
	Inline map[string]string `yaml:"inline" mapstructure:"inline"`
	// Env maps a secret name to the environment variable holding it.
	Env map[string]string `yaml:"env" mapstructure:"env"`
	// Files maps a secret name to a file whose trimmed content is the
	// value. Paths are operator-controlled, never extension-controlled.
	Files map[string]string `yaml:"files" mapstructure:"files"`
}

// Empty reports whether no secrets are named.
func (s Sources) Empty() bool {
	return len(s.Inline) == 0 && len(s.Env) == 0 && len(s.Files) == 0
}

// Names returns every named secret, sorted.
func (s Sources) Names() []string {
	names := make([]string, 0, len(s.Inline)+len(s.Env)+len(s.Files))
	for name := range s.Inline {
		names = append(names, name)
	}
	for name := range s.Env {
		names = append(names, name)
	}
	for name := range s.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver resolves named secrets and registers every resolved value
// with the sink so it can never appear in logs or audit records.
type Resolver struct {
	sources Sources
	sink    ValueSink
	cache   map[string]string
	mu      sync.RWMutex
}

// NewResolver creates a resolver over the configured sources. The sink
// may be nil when resolution is needed without redaction tracking.
func NewResolver(sources Sources, sink ValueSink) *Resolver {
	return &Resolver{
		sources: sources,
		sink:    sink,
		cache:   make(map[string]string),
	}
}

// Resolve returns the value of one named secret, checking Inline, then
// Env, then Files. Resolved values are cached and tracked with the
// sink exactly once.
func (r *Resolver) Resolve(name string) (string, error) {
	r.mu.RLock()
	if value, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return value, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if value, ok := r.cache[name]; ok {
		return value, nil
	}

	value, err := r.resolveFromSources(name)
	if err != nil {
		return "", err
	}

	r.cache[name] = value
	if r.sink != nil {
		r.sink.Track(value)
	}
	return value, nil
}

// ResolveAll resolves every named secret. Failures are joined into one
// error; secrets that did resolve are still cached and tracked, so a
// single bad entry does not leave the others unprotected.
func (r *Resolver) ResolveAll() error {
	var errs []error
	for _, name := range r.sources.Names() {
		if _, err := r.Resolve(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Resolver) resolveFromSources(name string) (string, error) {
	if value, ok := r.sources.Inline[name]; ok {
		return value, nil
	}

	if envVar, ok := r.sources.Env[name]; ok {
		value := os.Getenv(envVar)
		if value == "" {
			return "", fmt.Errorf("secret %q: env var %q is not set", name, envVar)
		}
		return value, nil
	}

	if filePath, ok := r.sources.Files[name]; ok {
		return readSecretFile(name, filePath)
	}

	return "", fmt.Errorf("secret %q not found in inline, env, or files", name)
}

// readSecretFile reads a secret file through os.OpenRoot so a symlink
// inside the configured directory cannot pull in a file elsewhere.
func readSecretFile(name, filePath string) (string, error) {
	dir := filepath.Dir(filePath)
	base := filepath.Base(filePath)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return "", fmt.Errorf("secret %q: failed to open directory %q: %w", name, dir, err)
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(base)
	if err != nil {
		return "", fmt.Errorf("secret %q: failed to open file %q: %w", name, base, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("secret %q: reading file %q: %w", name, filePath, err)
	}
	return strings.TrimSpace(string(data)), nil
}
