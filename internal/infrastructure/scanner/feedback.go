package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// FileFeedbackStore persists runtime denial feedback as one YAML file,
// keyed by artifact digest. Each digest accumulates the distinct
// capability tokens that were denied; the count of those tokens is the
// number of tier steps the artifact has earned toward Blocked.
//
// The file is read fresh on every operation, so an operator can clear
// an artifact's history by deleting its entry.
type FileFeedbackStore struct {
	mu   sync.Mutex
	path string
}

// NewFileFeedbackStore creates a store backed by the file at path. The
// file and its directory are created on first write.
func NewFileFeedbackStore(path string) *FileFeedbackStore {
	return &FileFeedbackStore{path: path}
}

type feedbackFile struct {
	Denials []deniedArtifact `yaml:"denials"`
}

type deniedArtifact struct {
	Digest       string   `yaml:"digest"`
	Capabilities []string `yaml:"capabilities"`
}

// RecordDenial adds the capability to the digest's denial set. A
// capability already recorded is a no-op, so a retry loop cannot walk
// an artifact from Compatible to Blocked on its own.
func (s *FileFeedbackStore) RecordDenial(ctx context.Context, digest values.Digest, capability capabilities.Capability) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}

	token := capability.String()
	for i := range file.Denials {
		if file.Denials[i].Digest != digest.String() {
			continue
		}
		for _, existing := range file.Denials[i].Capabilities {
			if existing == token {
				return nil
			}
		}
		file.Denials[i].Capabilities = append(file.Denials[i].Capabilities, token)
		return s.save(file)
	}

	file.Denials = append(file.Denials, deniedArtifact{
		Digest:       digest.String(),
		Capabilities: []string{token},
	})
	return s.save(file)
}

// Downgrades returns the number of distinct denied capabilities
// recorded against the digest.
func (s *FileFeedbackStore) Downgrades(ctx context.Context, digest values.Digest) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return 0, err
	}
	for _, entry := range file.Denials {
		if entry.Digest == digest.String() {
			return len(entry.Capabilities), nil
		}
	}
	return 0, nil
}

func (s *FileFeedbackStore) load() (feedbackFile, error) {
	var file feedbackFile
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return file, nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return file, fmt.Errorf("failed to read feedback store: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("failed to parse feedback store: %w", err)
	}
	return file, nil
}

func (s *FileFeedbackStore) save(file feedbackFile) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		//nolint:gosec // G301: the state directory is operator-browsable
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create feedback store directory: %w", err)
		}
	}
	data, err := yaml.MarshalWithOptions(file, yaml.IndentSequence(true))
	if err != nil {
		return fmt.Errorf("failed to marshal feedback store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write feedback store: %w", err)
	}
	return nil
}
