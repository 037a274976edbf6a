// Package artifacts fetches extension artifacts from OCI registries
// into the local artifact cache. Transport integrity ends here; content
// trust (tree digest, provenance manifest) is checked by the caller
// against the unpacked directory.
package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// ArtifactType marks an OCI manifest as a packaged extension.
const ArtifactType = "application/vnd.portcullis.extension.v1"

// Config adjusts registry access. The zero value means anonymous HTTPS.
type Config struct {
	// PlainHTTP permits http registries. Local development only.
	PlainHTTP bool
	Username  string
	Password  string
}

// Registry implements ports.ArtifactRegistry over OCI distribution.
type Registry struct {
	cfg    Config
	logger *slog.Logger
}

// NewRegistry builds a client for pulling extension artifacts.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{cfg: cfg, logger: logger}
}

// Resolve returns the manifest digest for ref without downloading it.
func (r *Registry) Resolve(ctx context.Context, ref string) (values.Digest, error) {
	repo, parsed, err := r.repository(ref)
	if err != nil {
		return values.Digest{}, err
	}
	desc, err := repo.Resolve(ctx, parsed.Reference)
	if err != nil {
		return values.Digest{}, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	digest, err := values.ParseDigest(desc.Digest.String())
	if err != nil {
		return values.Digest{}, fmt.Errorf("registry served an unusable digest for %s: %w", ref, err)
	}
	return digest, nil
}

// Pull downloads the artifact at ref into destDir and returns the
// manifest digest the registry served. Files land under the names
// recorded in the artifact manifest.
func (r *Registry) Pull(ctx context.Context, ref string, destDir string) (values.Digest, error) {
	repo, parsed, err := r.repository(ref)
	if err != nil {
		return values.Digest{}, err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return values.Digest{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	store, err := file.New(destDir)
	if err != nil {
		return values.Digest{}, fmt.Errorf("failed to open artifact directory: %w", err)
	}
	defer store.Close()

	desc, err := oras.Copy(ctx, repo, parsed.Reference, store, parsed.Reference, oras.DefaultCopyOptions)
	if err != nil {
		return values.Digest{}, fmt.Errorf("failed to pull %s: %w", ref, err)
	}
	if desc.MediaType != ocispec.MediaTypeImageManifest && desc.MediaType != ocispec.MediaTypeImageIndex {
		r.logger.WarnContext(ctx, "unexpected artifact media type",
			"ref", ref,
			"media_type", desc.MediaType,
		)
	}
	digest, err := values.ParseDigest(desc.Digest.String())
	if err != nil {
		return values.Digest{}, fmt.Errorf("registry served an unusable digest for %s: %w", ref, err)
	}
	r.logger.InfoContext(ctx, "artifact pulled",
		"ref", ref,
		"digest", digest.Short(),
		"size", desc.Size,
	)
	return digest, nil
}

// repository builds an authenticated client for one reference.
func (r *Registry) repository(ref string) (*remote.Repository, registry.Reference, error) {
	parsed, err := registry.ParseReference(ref)
	if err != nil {
		return nil, registry.Reference{}, fmt.Errorf("invalid artifact reference %q: %w", ref, err)
	}
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, registry.Reference{}, fmt.Errorf("failed to open repository for %s: %w", ref, err)
	}
	repo.PlainHTTP = r.cfg.PlainHTTP
	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}
	if r.cfg.Username != "" {
		client.Credential = auth.StaticCredential(parsed.Registry, auth.Credential{
			Username: r.cfg.Username,
			Password: r.cfg.Password,
		})
	}
	repo.Client = client
	return repo, parsed, nil
}
