package values

import (
	"fmt"

	"github.com/google/uuid"
)

// CallID correlates a tool_call, slash_command, or hostcall with its result.
// Opaque to extensions; the host generates one per dispatched call.
type CallID struct {
	value uuid.UUID
}

// NewCallID creates a new random call ID
func NewCallID() CallID {
	return CallID{value: uuid.New()}
}

// ParseCallID parses a string into a CallID
func ParseCallID(s string) (CallID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CallID{}, fmt.Errorf("invalid call ID: %w", err)
	}
	return CallID{value: id}, nil
}

// String returns the string representation
func (c CallID) String() string {
	return c.value.String()
}

// IsZero returns true if this is the zero value
func (c CallID) IsZero() bool {
	return c.value == uuid.Nil
}

// MarshalJSON implements json.Marshaler
func (c CallID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.value.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *CallID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 {
		return fmt.Errorf("invalid call ID JSON")
	}
	s = s[1 : len(s)-1]

	id, err := ParseCallID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}
