// Package policy implements capability decision rules. Evaluation is a
// pure function over an immutable ruleset snapshot; persistence and
// prompting live behind ports in the application layer.
package policy

import "fmt"

// Mode selects how capabilities not covered by an explicit grant or deny
// are resolved.
type Mode int

const (
	// ModeStrict denies everything that is not explicitly granted.
	ModeStrict Mode = iota
	// ModePrompt asks the operator and remembers durable answers.
	ModePrompt
	// ModePermissive allows by default, flagging ungranted use.
	ModePermissive
)

var modeNames = map[Mode]string{
	ModeStrict:     "strict",
	ModePrompt:     "prompt",
	ModePermissive: "permissive",
}

var modeTokens = map[string]Mode{
	"strict":     ModeStrict,
	"prompt":     ModePrompt,
	"permissive": ModePermissive,
}

// ParseMode converts a configuration token into a Mode. Callers must
// treat an error as strict-with-no-grants, never as a default allow.
func ParseMode(token string) (Mode, error) {
	m, ok := modeTokens[token]
	if !ok {
		return ModeStrict, fmt.Errorf("unknown policy mode %q", token)
	}
	return m, nil
}

// String returns the configuration token for the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	name, ok := modeNames[m]
	if !ok {
		return nil, fmt.Errorf("unknown policy mode %d", int(m))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
