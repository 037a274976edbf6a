package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/portcullis-dev/portcullis/internal/application/ports"
	"github.com/portcullis-dev/portcullis/internal/domain/audit"
	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLedger seals records into an in-memory chain, or fails every
// append when failErr is set.
type fakeLedger struct {
	mu      sync.Mutex
	records []audit.Record
	failErr error
}

func (l *fakeLedger) Append(ctx context.Context, record audit.Record) (audit.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failErr != nil {
		return audit.Record{}, l.failErr
	}

	record.Seq = uint64(len(l.records)) + 1
	record.Timestamp = time.Now().UTC()
	prev := audit.GenesisHash
	if n := len(l.records); n > 0 {
		prev = l.records[n-1].Hash
	}
	sealed, err := audit.Seal(record, prev)
	if err != nil {
		return audit.Record{}, err
	}
	l.records = append(l.records, sealed)
	return sealed, nil
}

func (l *fakeLedger) Head(ctx context.Context) (audit.Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) == 0 {
		return audit.Record{}, false, nil
	}
	return l.records[len(l.records)-1], true, nil
}

func (l *fakeLedger) Range(ctx context.Context, from, to uint64) ([]audit.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []audit.Record
	for _, r := range l.records {
		if r.Seq < from {
			continue
		}
		if to != 0 && r.Seq >= to {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *fakeLedger) Verify(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return audit.VerifyChain(l.records)
}

func (l *fakeLedger) all() []audit.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]audit.Record(nil), l.records...)
}

func (l *fakeLedger) last() audit.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records[len(l.records)-1]
}

// fakeGrantStore keeps durable answers in memory and records every save.
type fakeGrantStore struct {
	answers   []ports.StoredAnswer
	saves     []ports.StoredAnswer
	lookupErr error
}

func (s *fakeGrantStore) Lookup(ctx context.Context, ext values.ExtensionName, c capabilities.Capability) (bool, bool, error) {
	if s.lookupErr != nil {
		return false, false, s.lookupErr
	}
	for _, a := range s.answers {
		if a.Extension == ext.String() && capabilities.Matches(c, a.Capability) {
			return a.Allowed, true, nil
		}
	}
	return false, false, nil
}

func (s *fakeGrantStore) SaveAllow(ctx context.Context, ext values.ExtensionName, c capabilities.Capability) error {
	answer := ports.StoredAnswer{Extension: ext.String(), Capability: c, Allowed: true}
	s.answers = append(s.answers, answer)
	s.saves = append(s.saves, answer)
	return nil
}

func (s *fakeGrantStore) SaveDeny(ctx context.Context, ext values.ExtensionName, c capabilities.Capability) error {
	answer := ports.StoredAnswer{Extension: ext.String(), Capability: c, Allowed: false}
	s.answers = append(s.answers, answer)
	s.saves = append(s.saves, answer)
	return nil
}

func (s *fakeGrantStore) All(ctx context.Context) ([]ports.StoredAnswer, error) {
	return append([]ports.StoredAnswer(nil), s.answers...), nil
}

// fakeChannel answers every prompt the same way and counts the asks.
type fakeChannel struct {
	available bool
	answer    ports.PromptAnswer
	askErr    error
	asked     []ports.PromptRequest
}

func (c *fakeChannel) Available() bool { return c.available }

func (c *fakeChannel) Ask(ctx context.Context, req ports.PromptRequest) (ports.PromptAnswer, error) {
	c.asked = append(c.asked, req)
	if c.askErr != nil {
		return ports.AnswerDenyOnce, c.askErr
	}
	return c.answer, nil
}

// fakeFeedback counts distinct denied capabilities per digest.
type fakeFeedback struct {
	denials map[string]map[string]bool
}

func newFakeFeedback() *fakeFeedback {
	return &fakeFeedback{denials: make(map[string]map[string]bool)}
}

func (f *fakeFeedback) RecordDenial(ctx context.Context, digest values.Digest, capability capabilities.Capability) error {
	caps := f.denials[digest.String()]
	if caps == nil {
		caps = make(map[string]bool)
		f.denials[digest.String()] = caps
	}
	caps[capability.String()] = true
	return nil
}

func (f *fakeFeedback) Downgrades(ctx context.Context, digest values.Digest) (int, error) {
	return len(f.denials[digest.String()]), nil
}

// fakeHostOps returns canned results and records every invocation.
type fakeHostOps struct {
	readData   []byte
	readErr    error
	reads      []string
	readLimits []int64

	writes   map[string][]byte
	writeErr error

	execResult ports.ExecResult
	execErr    error
	runs       []ports.ExecSpec

	httpResult ports.HTTPResult
	httpErr    error
	fetches    []ports.HTTPSpec

	env map[string]string
}

func (o *fakeHostOps) ReadFile(ctx context.Context, path string, limit int64) ([]byte, bool, error) {
	o.reads = append(o.reads, path)
	o.readLimits = append(o.readLimits, limit)
	if o.readErr != nil {
		return nil, false, o.readErr
	}
	return o.readData, false, nil
}

func (o *fakeHostOps) WriteFile(ctx context.Context, path string, data []byte) (int, error) {
	if o.writeErr != nil {
		return 0, o.writeErr
	}
	if o.writes == nil {
		o.writes = make(map[string][]byte)
	}
	o.writes[path] = append([]byte(nil), data...)
	return len(data), nil
}

func (o *fakeHostOps) Run(ctx context.Context, spec ports.ExecSpec) (ports.ExecResult, error) {
	o.runs = append(o.runs, spec)
	if o.execErr != nil {
		return ports.ExecResult{}, o.execErr
	}
	return o.execResult, nil
}

func (o *fakeHostOps) Fetch(ctx context.Context, spec ports.HTTPSpec) (ports.HTTPResult, error) {
	o.fetches = append(o.fetches, spec)
	if o.httpErr != nil {
		return ports.HTTPResult{}, o.httpErr
	}
	return o.httpResult, nil
}

func (o *fakeHostOps) Getenv(name string) (string, bool) {
	value, ok := o.env[name]
	return value, ok
}
