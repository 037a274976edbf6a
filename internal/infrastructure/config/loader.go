package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
)

// Loader reads and compiles policy files.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a policy loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load reads and compiles the policy file at path. A missing file is
// not an error: the host runs strict with zero grants, which is the
// same posture an empty file produces.
func (l *Loader) Load(path string) (HostConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return PolicyFile{}.Compile(l.logger)
	}

	// Security: open through the containing directory so a crafted
	// path cannot traverse during the open itself.
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return HostConfig{}, fmt.Errorf("failed to open policy directory: %w", err)
	}
	defer func() {
		_ = root.Close() // Best-effort cleanup
	}()

	file, err := root.Open(base)
	if err != nil {
		return HostConfig{}, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer func() {
		_ = file.Close() // Best-effort cleanup
	}()

	return l.LoadFromReader(file)
}

// LoadFromReader parses a policy document from an io.Reader. Unknown
// fields and duplicate keys are rejected so a typo never silently
// weakens the policy.
func (l *Loader) LoadFromReader(r io.Reader) (HostConfig, error) {
	var f PolicyFile

	decoder := yaml.NewDecoder(r, yaml.Strict())
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return PolicyFile{}.Compile(l.logger)
		}
		return HostConfig{}, &entities.PolicyConfigError{
			Field: "policy",
			Err:   fmt.Errorf("failed to decode policy YAML: %w", err),
		}
	}

	return f.Compile(l.logger)
}
