package ports

import (
	"context"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// ScanRequest describes one artifact to classify.
type ScanRequest struct {
	// Dir is the directory holding the scannable source.
	Dir string
	// Extension is the manifest name, carried into the report.
	Extension string
	// Declared lists the manifest's capability declarations. Imports
	// implying a capability outside this set produce mismatch findings.
	Declared capabilities.Grant
}

// Scanner classifies an extension artifact into a compatibility tier.
type Scanner interface {
	// Classify scans the artifact and returns the report. Results are
	// cached by content digest plus scanner version.
	Classify(ctx context.Context, req ScanRequest) (compat.Report, error)
}

// ScanCache stores scan reports keyed by digest and scanner version.
type ScanCache interface {
	Get(ctx context.Context, key string) (compat.Report, bool, error)
	Put(ctx context.Context, key string, report compat.Report) error
}

// FeedbackStore accumulates runtime policy denials per artifact digest.
// Each distinct denied capability downgrades the artifact's future
// classification one step toward Blocked; retrying the same capability
// does not compound.
type FeedbackStore interface {
	RecordDenial(ctx context.Context, digest values.Digest, capability capabilities.Capability) error

	// Downgrades returns how many tier steps the digest has accumulated.
	Downgrades(ctx context.Context, digest values.Digest) (int, error)
}
