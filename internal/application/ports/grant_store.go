package ports

import (
	"context"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// StoredAnswer is one durable prompt answer.
type StoredAnswer struct {
	Extension  string
	Capability capabilities.Capability
	Allowed    bool
}

// GrantStore persists durable prompt answers across sessions. Lookups
// use capability matching, so a stored "read:/workspace/*" answer
// covers "read:/workspace/data.json".
type GrantStore interface {
	// Lookup returns the stored answer covering the request, if any.
	Lookup(ctx context.Context, ext values.ExtensionName, c capabilities.Capability) (allowed bool, found bool, err error)

	// SaveAllow records a durable grant.
	SaveAllow(ctx context.Context, ext values.ExtensionName, c capabilities.Capability) error

	// SaveDeny records a durable denial.
	SaveDeny(ctx context.Context, ext values.ExtensionName, c capabilities.Capability) error

	// All returns every stored answer, for explain output.
	All(ctx context.Context) ([]StoredAnswer, error)
}
