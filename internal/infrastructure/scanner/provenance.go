package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ProvenanceSchema identifies the provenance manifest format.
const ProvenanceSchema = "portcullis.ext.artifact_provenance.v1"

// ProvenanceFileName is where an artifact carries its own provenance
// manifest. The file is excluded from artifact digests so a manifest
// can live inside the artifact it describes.
const ProvenanceFileName = "provenance.json"

// ProvenanceFile is one file's identity inside a provenance manifest.
type ProvenanceFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Provenance pins an artifact's exact contents: the artifact digest
// plus a per-file inventory. A consumer that verifies a downloaded
// artifact against its provenance knows it runs the bytes that were
// scanned.
type Provenance struct {
	Schema         string           `json:"schema"`
	ArtifactDigest string           `json:"artifact_digest"`
	Files          []ProvenanceFile `json:"files"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// BuildProvenance inventories the artifact directory.
func BuildProvenance(dir string) (Provenance, error) {
	digest, files, err := digestArtifact(dir)
	if err != nil {
		return Provenance{}, err
	}
	manifest := Provenance{
		Schema:         ProvenanceSchema,
		ArtifactDigest: digest.String(),
		Files:          make([]ProvenanceFile, 0, len(files)),
		GeneratedAt:    time.Now().UTC(),
	}
	for _, f := range files {
		manifest.Files = append(manifest.Files, ProvenanceFile{
			Path:   f.rel,
			SHA256: f.sha256,
			Size:   f.size,
		})
	}
	return manifest, nil
}

// WriteProvenance stores the manifest at the artifact's reserved
// provenance path.
func WriteProvenance(dir string, manifest Provenance) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding provenance: %w", err)
	}
	data = append(data, '\n')
	path := filepath.Join(dir, ProvenanceFileName)
	//nolint:gosec // G306: provenance manifests are meant to be read
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing provenance: %w", err)
	}
	return nil
}

// ReadProvenance loads the provenance manifest an artifact ships with.
// ok is false when the artifact carries none.
func ReadProvenance(dir string) (Provenance, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, ProvenanceFileName))
	if errors.Is(err, os.ErrNotExist) {
		return Provenance{}, false, nil
	}
	if err != nil {
		return Provenance{}, false, fmt.Errorf("reading provenance: %w", err)
	}
	var manifest Provenance
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Provenance{}, false, fmt.Errorf("decoding provenance: %w", err)
	}
	return manifest, true, nil
}

// VerifyProvenance recomputes the artifact's contents and compares them
// against the manifest. Per-file checks run first so a mismatch names
// the diverging path instead of just reporting a different digest.
func VerifyProvenance(dir string, manifest Provenance) error {
	if manifest.Schema != ProvenanceSchema {
		return fmt.Errorf("unsupported provenance schema %q", manifest.Schema)
	}

	digest, files, err := digestArtifact(dir)
	if err != nil {
		return err
	}

	byPath := make(map[string]artifactFile, len(files))
	for _, f := range files {
		byPath[f.rel] = f
	}
	for _, want := range manifest.Files {
		got, ok := byPath[want.Path]
		if !ok {
			return fmt.Errorf("provenance file %q is missing from the artifact", want.Path)
		}
		if got.sha256 != want.SHA256 {
			return fmt.Errorf("provenance mismatch for %q: hash differs", want.Path)
		}
		if got.size != want.Size {
			return fmt.Errorf("provenance mismatch for %q: size %d, manifest says %d", want.Path, got.size, want.Size)
		}
		delete(byPath, want.Path)
	}
	if len(byPath) > 0 {
		extras := make([]string, 0, len(byPath))
		for rel := range byPath {
			extras = append(extras, rel)
		}
		sort.Strings(extras)
		return fmt.Errorf("artifact contains file %q not covered by provenance", extras[0])
	}

	if digest.String() != manifest.ArtifactDigest {
		return fmt.Errorf("artifact digest mismatch: computed %s, manifest says %s",
			digest, manifest.ArtifactDigest)
	}
	return nil
}
