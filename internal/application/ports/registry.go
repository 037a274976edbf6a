package ports

import (
	"context"

	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// ArtifactRegistry pulls extension artifacts from OCI registries.
type ArtifactRegistry interface {
	// Pull downloads the artifact at ref into destDir and returns its
	// content digest.
	Pull(ctx context.Context, ref string, destDir string) (values.Digest, error)

	// Resolve returns the content digest for a reference without
	// downloading it.
	Resolve(ctx context.Context, ref string) (values.Digest, error)
}
