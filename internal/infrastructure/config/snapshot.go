package config

import (
	"sync/atomic"

	"github.com/portcullis-dev/portcullis/internal/domain/policy"
)

// Store holds the active policy snapshot. Reads never see a
// half-applied reload: Swap publishes a complete ruleset or nothing.
type Store struct {
	current atomic.Pointer[policy.Ruleset]
}

// NewStore creates a store holding the initial ruleset.
func NewStore(rs policy.Ruleset) *Store {
	s := &Store{}
	s.current.Store(&rs)
	return s
}

// Snapshot returns the active ruleset. The result is a value the
// caller owns; a concurrent Swap does not mutate it.
func (s *Store) Snapshot() policy.Ruleset {
	return *s.current.Load()
}

// Swap publishes a new ruleset atomically.
func (s *Store) Swap(rs policy.Ruleset) {
	s.current.Store(&rs)
}
