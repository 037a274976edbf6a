// Package audit defines the append-only decision record and its hash
// chain. Every capability decision produces exactly one record; the
// chain makes after-the-fact tampering detectable.
package audit

import (
	"time"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
	"github.com/portcullis-dev/portcullis/internal/domain/policy"
	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// GenesisHash seeds the chain before any record exists.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Record is one audit ledger entry. Seq, PrevHash, and Hash are
// assigned by the ledger at append time; everything else is fixed by
// the decision being recorded.
type Record struct {
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"ts"`
	Extension  string    `json:"extension"`
	Capability string    `json:"capability"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	Tier       string    `json:"tier"`
	Warning    bool      `json:"warning,omitempty"`

	// Path and Command carry request context for filesystem and exec
	// decisions. They are redacted before the record is appended.
	Path    string `json:"path,omitempty"`
	Command string `json:"command,omitempty"`
	CallID  string `json:"call_id,omitempty"`

	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// NewRecord builds an unsequenced record from a decision and its
// request context. The ledger assigns Seq, Timestamp, and the chain
// hashes when the record is appended.
func NewRecord(ext values.ExtensionName, cap capabilities.Capability, decision policy.Decision) Record {
	return Record{
		Extension:  ext.String(),
		Capability: cap.String(),
		Outcome:    decision.Outcome.String(),
		Reason:     string(decision.Reason),
		Tier:       decision.Tier.String(),
		Warning:    decision.Warning,
	}
}

// WithPath attaches the confinement-checked or requested path.
func (r Record) WithPath(path string) Record {
	r.Path = path
	return r
}

// WithCommand attaches the requested command line.
func (r Record) WithCommand(command string) Record {
	r.Command = command
	return r
}

// WithCallID correlates the record with a protocol call.
func (r Record) WithCallID(id values.CallID) Record {
	if !id.IsZero() {
		r.CallID = id.String()
	}
	return r
}

// Denied reports whether the recorded outcome was a denial.
func (r Record) Denied() bool {
	return r.Outcome == policy.OutcomeDeny.String()
}

// TierValue parses the recorded tier, defaulting to Compatible for
// records written before tiers existed.
func (r Record) TierValue() compat.Tier {
	t, err := compat.ParseTier(r.Tier)
	if err != nil {
		return compat.TierCompatible
	}
	return t
}
