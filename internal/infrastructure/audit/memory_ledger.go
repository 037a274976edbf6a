package audit

import (
	"context"
	"sync"
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/audit"
)

// MemoryLedger keeps the chain in memory. It backs tests and the
// explain path, where decisions must still be sequenced but nothing
// should touch disk.
type MemoryLedger struct {
	mu      sync.Mutex
	records []audit.Record
	now     func() time.Time
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{now: time.Now}
}

// Append seals the record onto the in-memory chain.
func (l *MemoryLedger) Append(_ context.Context, record audit.Record) (audit.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := audit.GenesisHash
	if n := len(l.records); n > 0 {
		prev = l.records[n-1].Hash
	}
	record.Seq = uint64(len(l.records) + 1)
	record.Timestamp = l.now().UTC()

	sealed, err := audit.Seal(record, prev)
	if err != nil {
		return audit.Record{}, err
	}
	l.records = append(l.records, sealed)
	return sealed, nil
}

// Head returns the most recent record.
func (l *MemoryLedger) Head(_ context.Context) (audit.Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return audit.Record{}, false, nil
	}
	return l.records[len(l.records)-1], true, nil
}

// Range returns records with from <= Seq < to. A to of zero means
// through the end.
func (l *MemoryLedger) Range(_ context.Context, from, to uint64) ([]audit.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []audit.Record
	for _, record := range l.records {
		if record.Seq < from {
			continue
		}
		if to != 0 && record.Seq >= to {
			break
		}
		out = append(out, record)
	}
	return out, nil
}

// Verify rewalks the in-memory chain.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return audit.VerifyChain(l.records)
}
