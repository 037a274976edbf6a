// Package compat defines compatibility classification for extensions:
// the tier an extension runs at and the scan findings that produced it.
package compat

import "fmt"

// Tier is an extension's compatibility classification. It is computed by
// static scanning, can only move toward Blocked at runtime, and gates
// capability decisions: a Blocked extension is denied everything.
type Tier int

const (
	// TierCompatible extensions run with normal policy resolution.
	TierCompatible Tier = iota
	// TierWarning extensions run, but the tier is recorded on every
	// decision so operators can see degraded trust.
	TierWarning
	// TierBlocked extensions are denied every capability.
	TierBlocked
)

var tierNames = map[Tier]string{
	TierCompatible: "compatible",
	TierWarning:    "warning",
	TierBlocked:    "blocked",
}

var tierTokens = map[string]Tier{
	"compatible": TierCompatible,
	"warning":    TierWarning,
	"blocked":    TierBlocked,
}

// ParseTier converts a stored token into a Tier.
func ParseTier(token string) (Tier, error) {
	t, ok := tierTokens[token]
	if !ok {
		return 0, fmt.Errorf("unknown compatibility tier %q", token)
	}
	return t, nil
}

// String returns the storage token for the tier.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Downgrade returns the next tier toward Blocked. Blocked stays Blocked.
// Runtime policy denials feed back through this: a tier never improves
// without a fresh scan.
func (t Tier) Downgrade() Tier {
	switch t {
	case TierCompatible:
		return TierWarning
	case TierWarning:
		return TierBlocked
	default:
		return TierBlocked
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	name, ok := tierNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown compatibility tier %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
