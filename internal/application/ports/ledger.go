package ports

import (
	"context"

	"github.com/portcullis-dev/portcullis/internal/domain/audit"
)

// Ledger is the append-only audit log. Implementations must serialize
// appends so the sequence is a single total order no matter how many
// extensions decide concurrently.
type Ledger interface {
	// Append seals the record into the chain and returns it with its
	// assigned sequence number, timestamp, and hashes. An error means
	// the record was not durably written; callers must treat the
	// decision as denied.
	Append(ctx context.Context, record audit.Record) (audit.Record, error)

	// Head returns the most recent record, or false when the ledger is
	// empty.
	Head(ctx context.Context) (audit.Record, bool, error)

	// Range returns records with from <= Seq < to, in sequence order.
	// A to of zero means "through the end".
	Range(ctx context.Context, from, to uint64) ([]audit.Record, error)

	// Verify rewalks the chain and reports the first inconsistency.
	Verify(ctx context.Context) error
}
