// Package values contains domain value objects that encapsulate
// primitive types with validation and such.
package values

import (
	"fmt"
	"regexp"
	"strings"
)

// Extension names appear in file paths (artifact cache, grant store) so the
// character set is restricted to prevent traversal through a crafted name.
var extensionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// ExtensionName represents a validated extension identifier.
type ExtensionName struct {
	value string
}

// NewExtensionName creates an ExtensionName with validation
func NewExtensionName(name string) (ExtensionName, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ExtensionName{}, fmt.Errorf("extension name cannot be empty")
	}
	if !extensionNamePattern.MatchString(name) {
		return ExtensionName{}, fmt.Errorf("extension name %q contains invalid characters", name)
	}
	return ExtensionName{value: name}, nil
}

// MustNewExtensionName creates an ExtensionName or panics
func MustNewExtensionName(name string) ExtensionName {
	en, err := NewExtensionName(name)
	if err != nil {
		panic(err)
	}
	return en
}

// String returns the string representation
func (e ExtensionName) String() string {
	return e.value
}

// IsEmpty returns true if this is the zero value
func (e ExtensionName) IsEmpty() bool {
	return e.value == ""
}

// Equals checks if two extension names are equal
func (e ExtensionName) Equals(other ExtensionName) bool {
	return e.value == other.value
}

// MarshalJSON implements json.Marshaler
func (e ExtensionName) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (e *ExtensionName) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 {
		return fmt.Errorf("invalid extension name JSON")
	}
	s = s[1 : len(s)-1]

	name, err := NewExtensionName(s)
	if err != nil {
		return err
	}
	*e = name
	return nil
}
