// Package capabilities defines domain types for capability management.
package capabilities

import "fmt"

// Kind is the closed set of operation categories an extension can request.
// Decisions are made on Kind values derived from the operation itself, never
// on caller-supplied labels, so a mislabeled request cannot slip past policy.
type Kind int

const (
	// KindRead covers file reads under the extension's confinement root.
	KindRead Kind = iota
	// KindWrite covers file writes under the extension's confinement root.
	KindWrite
	// KindExec covers spawning external processes.
	KindExec
	// KindHTTP covers outbound HTTP requests.
	KindHTTP
	// KindEnv covers host environment variable access.
	KindEnv
	// KindLog covers structured log emission through the host.
	KindLog
)

var kindNames = map[Kind]string{
	KindRead:  "read",
	KindWrite: "write",
	KindExec:  "exec",
	KindHTTP:  "http",
	KindEnv:   "env",
	KindLog:   "log",
}

var kindTokens = map[string]Kind{
	"read":  KindRead,
	"write": KindWrite,
	"exec":  KindExec,
	"http":  KindHTTP,
	"env":   KindEnv,
	"log":   KindLog,
}

// ParseKind converts a configuration or manifest token into a Kind.
// Unknown tokens are an error; callers decide whether that is fatal
// (configuration) or merely rejects one extension (manifest).
func ParseKind(token string) (Kind, error) {
	k, ok := kindTokens[token]
	if !ok {
		return 0, fmt.Errorf("unknown capability kind %q", token)
	}
	return k, nil
}

// AllKinds returns every kind in stable declaration order.
func AllKinds() []Kind {
	return []Kind{KindRead, KindWrite, KindExec, KindHTTP, KindEnv, KindLog}
}

// String returns the configuration token for the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler so kinds round-trip through
// JSON and YAML as their tokens.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown capability kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
