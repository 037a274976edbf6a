package values

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

const digestPrefix = "sha256:"

// Digest is a content hash identifying an extension artifact. The
// canonical form is "sha256:" followed by 64 lowercase hex characters.
type Digest struct {
	value string
}

// NewDigestFromSum wraps a raw SHA-256 sum in its canonical form.
func NewDigestFromSum(sum [sha256.Size]byte) Digest {
	return Digest{value: digestPrefix + hex.EncodeToString(sum[:])}
}

// ParseDigest validates and wraps a stored digest string.
func ParseDigest(s string) (Digest, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, digestPrefix) {
		return Digest{}, fmt.Errorf("digest must start with %q, got %q", digestPrefix, s)
	}
	hexPart := strings.TrimPrefix(s, digestPrefix)
	if len(hexPart) != sha256.Size*2 {
		return Digest{}, fmt.Errorf("digest must have %d hex characters, got %d", sha256.Size*2, len(hexPart))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return Digest{value: strings.ToLower(s)}, nil
}

// MustParseDigest panics on an invalid digest. Use only for literals.
func MustParseDigest(s string) Digest {
	d, err := ParseDigest(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the canonical digest string.
func (d Digest) String() string {
	return d.value
}

// Short returns a 12-character abbreviation for display.
func (d Digest) Short() string {
	hexPart := strings.TrimPrefix(d.value, digestPrefix)
	if len(hexPart) < 12 {
		return hexPart
	}
	return hexPart[:12]
}

// IsZero returns true if this is the zero value.
func (d Digest) IsZero() bool {
	return d.value == ""
}

// Equals checks equality with another digest.
func (d Digest) Equals(other Digest) bool {
	return d.value == other.value
}

// MarshalJSON implements json.Marshaler.
func (d Digest) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Digest) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDigest(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
