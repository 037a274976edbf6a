package audit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/portcullis-dev/portcullis/internal/domain/values"
)

// hashEnvelope is the canonical byte layout hashed for each record. The
// record's own Hash field is excluded; PrevHash links the chain.
type hashEnvelope struct {
	Seq        uint64 `json:"seq"`
	Timestamp  int64  `json:"ts"`
	Extension  string `json:"extension"`
	Capability string `json:"capability"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason"`
	Tier       string `json:"tier"`
	Warning    bool   `json:"warning"`
	Path       string `json:"path"`
	Command    string `json:"command"`
	CallID     string `json:"call_id"`
	PrevHash   string `json:"prev_hash"`
}

// ComputeHash returns the chain hash for a record with Seq, Timestamp,
// and PrevHash already assigned.
func ComputeHash(r Record) (string, error) {
	payload, err := json.Marshal(hashEnvelope{
		Seq:        r.Seq,
		Timestamp:  r.Timestamp.UnixNano(),
		Extension:  r.Extension,
		Capability: r.Capability,
		Outcome:    r.Outcome,
		Reason:     r.Reason,
		Tier:       r.Tier,
		Warning:    r.Warning,
		Path:       r.Path,
		Command:    r.Command,
		CallID:     r.CallID,
		PrevHash:   r.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("hashing audit record %d: %w", r.Seq, err)
	}
	return values.NewDigestFromSum(sha256.Sum256(payload)).String(), nil
}

// Seal assigns the chain fields to a record that already carries its
// sequence number and timestamp.
func Seal(r Record, prevHash string) (Record, error) {
	r.PrevHash = prevHash
	hash, err := ComputeHash(r)
	if err != nil {
		return Record{}, err
	}
	r.Hash = hash
	return r, nil
}

// VerifyChain checks that records form an unbroken, correctly hashed
// chain with strictly increasing sequence numbers starting at 1.
func VerifyChain(records []Record) error {
	prevHash := GenesisHash
	var prevSeq uint64

	for i, r := range records {
		if r.Seq != prevSeq+1 {
			return fmt.Errorf("record %d: sequence %d does not follow %d", i, r.Seq, prevSeq)
		}
		if r.PrevHash != prevHash {
			return fmt.Errorf("record %d (seq %d): previous hash mismatch", i, r.Seq)
		}
		expected, err := ComputeHash(r)
		if err != nil {
			return err
		}
		if r.Hash != expected {
			return fmt.Errorf("record %d (seq %d): hash mismatch", i, r.Seq)
		}
		prevHash = r.Hash
		prevSeq = r.Seq
	}
	return nil
}
