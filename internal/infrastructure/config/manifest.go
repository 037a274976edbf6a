package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
)

// ManifestFileName is the manifest every artifact directory carries.
const ManifestFileName = "extension.yaml"

// LoadManifest reads and validates one extension manifest.
func LoadManifest(path string) (entities.Manifest, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	root, err := os.OpenRoot(dir)
	if err != nil {
		return entities.Manifest{}, fmt.Errorf("failed to open artifact directory: %w", err)
	}
	defer func() {
		_ = root.Close() // Best-effort cleanup
	}()

	file, err := root.Open(base)
	if err != nil {
		return entities.Manifest{}, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() {
		_ = file.Close() // Best-effort cleanup
	}()

	return LoadManifestFromReader(file)
}

// LoadManifestFromReader parses a manifest document. Unknown fields are
// rejected so a typo in a capability list never loads silently.
func LoadManifestFromReader(r io.Reader) (entities.Manifest, error) {
	var m entities.Manifest

	decoder := yaml.NewDecoder(r, yaml.Strict())
	if err := decoder.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return entities.Manifest{}, &entities.ManifestError{
				Field: "manifest",
				Err:   fmt.Errorf("manifest is empty"),
			}
		}
		return entities.Manifest{}, &entities.ManifestError{
			Field: "manifest",
			Err:   fmt.Errorf("failed to decode manifest YAML: %w", err),
		}
	}
	if err := m.Validate(); err != nil {
		return entities.Manifest{}, err
	}
	return m, nil
}

// Artifact pairs a parsed manifest with the directory it came from.
type Artifact struct {
	Manifest entities.Manifest
	Root     string
}

// DiscoverArtifacts finds every artifact directory under dir: the
// directory itself when it carries a manifest, otherwise each immediate
// subdirectory that does. Directories without a manifest are skipped;
// a directory with a malformed manifest is an error, because silently
// skipping it would hide a broken artifact from the operator.
func DiscoverArtifacts(dir string) ([]Artifact, error) {
	if manifestPath := filepath.Join(dir, ManifestFileName); fileExists(manifestPath) {
		m, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", dir, err)
		}
		return []Artifact{{Manifest: m, Root: dir}}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var artifacts []Artifact
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		root := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(root, ManifestFileName)
		if !fileExists(manifestPath) {
			continue
		}
		m, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", root, err)
		}
		artifacts = append(artifacts, Artifact{Manifest: m, Root: root})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Manifest.Name < artifacts[j].Manifest.Name
	})
	return artifacts, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
