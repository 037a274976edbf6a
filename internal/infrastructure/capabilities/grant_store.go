// Package capabilities persists durable prompt answers and asks the
// operator for new ones.
package capabilities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// FileGrantStore keeps durable prompt answers in one YAML file. Every
// operation reads the file fresh, so edits made by hand between calls
// are honored.
type FileGrantStore struct {
	mu   sync.Mutex
	path string
}

// NewFileGrantStore creates a store backed by the file at path.
func NewFileGrantStore(path string) *FileGrantStore {
	return &FileGrantStore{path: path}
}

// Path returns the backing file path.
func (s *FileGrantStore) Path() string {
	return s.path
}

// answersFile is the YAML layout of the durable answer store.
type answersFile struct {
	Answers []storedAnswer `yaml:"answers"`
}

type storedAnswer struct {
	Extension  string `yaml:"extension"`
	Capability string `yaml:"capability"`
	Allow      bool   `yaml:"allow"`
}

// Lookup returns the stored answer covering the request. When several
// stored patterns cover the same request, the one recorded last wins.
func (s *FileGrantStore) Lookup(_ context.Context, ext values.ExtensionName, c capabilities.Capability) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return false, false, err
	}

	var allowed, found bool
	for _, answer := range cfg.Answers {
		if answer.Extension != ext.String() {
			continue
		}
		stored, err := capabilities.ParseToken(answer.Capability)
		if err != nil {
			return false, false, fmt.Errorf("stored answer for %s has invalid capability %q: %w", answer.Extension, answer.Capability, err)
		}
		if capabilities.Matches(c, stored) {
			allowed = answer.Allow
			found = true
		}
	}
	return allowed, found, nil
}

// SaveAllow records a durable grant.
func (s *FileGrantStore) SaveAllow(_ context.Context, ext values.ExtensionName, c capabilities.Capability) error {
	return s.upsert(ext, c, true)
}

// SaveDeny records a durable denial.
func (s *FileGrantStore) SaveDeny(_ context.Context, ext values.ExtensionName, c capabilities.Capability) error {
	return s.upsert(ext, c, false)
}

// All returns every stored answer in file order.
func (s *FileGrantStore) All(_ context.Context) ([]ports.StoredAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return nil, err
	}

	answers := make([]ports.StoredAnswer, 0, len(cfg.Answers))
	for _, answer := range cfg.Answers {
		stored, err := capabilities.ParseToken(answer.Capability)
		if err != nil {
			return nil, fmt.Errorf("stored answer for %s has invalid capability %q: %w", answer.Extension, answer.Capability, err)
		}
		answers = append(answers, ports.StoredAnswer{
			Extension:  answer.Extension,
			Capability: stored,
			Allowed:    answer.Allow,
		})
	}
	return answers, nil
}

// upsert replaces an existing answer for the exact same extension and
// capability token, or appends a new one.
func (s *FileGrantStore) upsert(ext values.ExtensionName, c capabilities.Capability, allow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.load()
	if err != nil {
		return err
	}

	entry := storedAnswer{Extension: ext.String(), Capability: c.String(), Allow: allow}
	replaced := false
	for i, answer := range cfg.Answers {
		if answer.Extension == entry.Extension && answer.Capability == entry.Capability {
			cfg.Answers[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Answers = append(cfg.Answers, entry)
	}
	return s.save(cfg)
}

// load reads the answer file. A missing file is an empty store.
func (s *FileGrantStore) load() (answersFile, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return answersFile{}, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return answersFile{}, fmt.Errorf("failed to read answer store: %w", err)
	}

	var cfg answersFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return answersFile{}, fmt.Errorf("failed to parse answer store: %w", err)
	}
	return cfg, nil
}

func (s *FileGrantStore) save(cfg answersFile) error {
	dir := filepath.Dir(s.path)
	//nolint:gosec // G301: 0o755 is standard for user config directories
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create answer store directory: %w", err)
	}

	data, err := yaml.MarshalWithOptions(cfg, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("failed to marshal answer store: %w", err)
	}
	return os.WriteFile(s.path, data, 0o600)
}
