// Package audit persists decision records as an append-only JSONL
// file. Each line is one sealed record; the hash chain is computed
// over the sanitized values actually written, so the file verifies
// against itself.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/audit"
	"github.com/portcullis-dev/portcullis/internal/infrastructure/truncation"
)

const (
	// DefaultFieldLimit bounds the path and command fields of a record
	// before sealing. Oversized values are head/tail truncated.
	DefaultFieldLimit = 512

	initialLineBuffer = 64 * 1024
	maxLineBytes      = 4 * 1024 * 1024
)

// FileLedger implements the audit ledger on a single JSONL file.
// Appends are serialized under one mutex so concurrent decisions
// collapse into a single total order.
type FileLedger struct {
	mu   sync.Mutex
	file *os.File
	path string

	seq     uint64
	head    string
	last    audit.Record
	hasLast bool

	now      func() time.Time
	sanitize func(string) string
}

// Option adjusts ledger construction.
type Option func(*FileLedger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *FileLedger) { l.now = now }
}

// WithSanitizer replaces the field sanitizer applied to the capability,
// path, and command values before sealing. The sanitizer runs before
// hashing, so the chain covers the sanitized text.
func WithSanitizer(fn func(string) string) Option {
	return func(l *FileLedger) { l.sanitize = fn }
}

func defaultSanitize(s string) string {
	out, _ := truncation.Bytes(s, DefaultFieldLimit)
	return out
}

// OpenFileLedger opens the ledger at path, recovering the chain head
// from any existing records, and prepares it for appends. A file with
// an undecodable line is rejected; the operator must repair or rotate
// it before the host will record decisions.
func OpenFileLedger(path string, opts ...Option) (*FileLedger, error) {
	l := &FileLedger{
		path:     path,
		head:     audit.GenesisHash,
		now:      time.Now,
		sanitize: defaultSanitize,
	}
	for _, opt := range opts {
		opt(l)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating audit ledger directory: %w", err)
		}
	}
	if err := l.recoverState(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit ledger: %w", err)
	}
	l.file = file
	return l, nil
}

// recoverState replays the existing file to restore the sequence
// counter and chain head.
func (l *FileLedger) recoverState() error {
	file, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading audit ledger: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record audit.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("audit ledger %s line %d is not a valid record: %w", l.path, line, err)
		}
		l.seq = record.Seq
		l.head = record.Hash
		l.last = record
		l.hasLast = true
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading audit ledger: %w", err)
	}
	return nil
}

// Append seals the record into the chain and writes it as one line.
// The capability, path, and command fields can carry request-supplied
// text, so all three are sanitized first and the stored bytes are what
// the hash covers.
func (l *FileLedger) Append(_ context.Context, record audit.Record) (audit.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return audit.Record{}, errors.New("audit ledger is closed")
	}

	record.Seq = l.seq + 1
	record.Timestamp = l.now().UTC()
	record.Capability = l.sanitize(record.Capability)
	record.Path = l.sanitize(record.Path)
	record.Command = l.sanitize(record.Command)

	sealed, err := audit.Seal(record, l.head)
	if err != nil {
		return audit.Record{}, err
	}

	line, err := json.Marshal(sealed)
	if err != nil {
		return audit.Record{}, fmt.Errorf("encoding audit record: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return audit.Record{}, fmt.Errorf("writing audit record: %w", err)
	}

	l.seq = sealed.Seq
	l.head = sealed.Hash
	l.last = sealed
	l.hasLast = true
	return sealed, nil
}

// Head returns the most recent record without touching the file.
func (l *FileLedger) Head(_ context.Context) (audit.Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last, l.hasLast, nil
}

// Range streams records with from <= Seq < to from the file. A to of
// zero means through the end. Records appended after the call starts
// are not included.
func (l *FileLedger) Range(ctx context.Context, from, to uint64) ([]audit.Record, error) {
	l.mu.Lock()
	limit := l.seq
	l.mu.Unlock()
	if limit == 0 {
		return nil, nil
	}

	var records []audit.Record
	err := l.scan(ctx, func(record audit.Record) (bool, error) {
		if record.Seq >= from && (to == 0 || record.Seq < to) {
			records = append(records, record)
		}
		if record.Seq >= limit || (to != 0 && record.Seq >= to) {
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Verify rewalks the chain from genesis and reports the first record
// that does not hash or link correctly.
func (l *FileLedger) Verify(ctx context.Context) error {
	l.mu.Lock()
	limit := l.seq
	l.mu.Unlock()

	prevHash := audit.GenesisHash
	var prevSeq uint64
	return l.scan(ctx, func(record audit.Record) (bool, error) {
		if record.Seq != prevSeq+1 {
			return false, fmt.Errorf("audit ledger: sequence %d does not follow %d", record.Seq, prevSeq)
		}
		if record.PrevHash != prevHash {
			return false, fmt.Errorf("audit ledger: record %d previous hash mismatch", record.Seq)
		}
		expected, err := audit.ComputeHash(record)
		if err != nil {
			return false, err
		}
		if record.Hash != expected {
			return false, fmt.Errorf("audit ledger: record %d hash mismatch", record.Seq)
		}
		prevHash = record.Hash
		prevSeq = record.Seq
		return record.Seq < limit, nil
	})
}

// scan decodes records line by line until fn returns false or the file
// ends. It reads through a separate handle so a racing append never
// disturbs the stream.
func (l *FileLedger) scan(ctx context.Context, fn func(audit.Record) (bool, error)) error {
	file, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading audit ledger: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineBytes)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var record audit.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return fmt.Errorf("audit ledger %s line %d is not a valid record: %w", l.path, line, err)
		}
		keep, err := fn(record)
		if err != nil {
			return err
		}
		if !keep {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading audit ledger: %w", err)
	}
	return nil
}

// Close flushes and releases the append handle. The ledger rejects
// further appends afterwards.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	if syncErr != nil {
		return fmt.Errorf("flushing audit ledger: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing audit ledger: %w", closeErr)
	}
	return nil
}
