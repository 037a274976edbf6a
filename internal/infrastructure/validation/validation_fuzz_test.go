package validation

import (
	"encoding/json"
	"strings"
	"testing"
)

// FuzzRegisterValidator feeds hostile register payloads to the schema
// validator. Guests control these bytes entirely, so the validator must
// return an error or nil, never panic.
func FuzzRegisterValidator(f *testing.F) {
	seeds := []string{
		`{"name": "hello", "version": "1.0.0", "api_version": "1.0.0"}`,
		`{"name": "hello"`,
		`null`,
		`[]`,
		`{"name": 42, "version": {}, "api_version": []}`,
		`{"name": "` + strings.Repeat("a", 10000) + `", "version": "1.0.0", "api_version": "1.0.0"}`,
		strings.Repeat(`{"tools":[`, 100),
		`{"name": "hello", "version": "1.0.0", "api_version": "1.0.0", "capabilities": ["` + strings.Repeat("read:", 500) + `"]}`,
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	validator, err := NewRegisterValidator()
	if err != nil {
		f.Fatalf("compiling register schema: %v", err)
	}

	f.Fuzz(func(t *testing.T, payload string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("PANIC on payload %q: %v", payload, r)
			}
		}()
		_ = validator.Validate([]byte(payload))
	})
}

// FuzzToolInputSchema feeds hostile announced schemas to the tool input
// validator. A guest announcing a broken schema must fail that tool,
// not the host.
func FuzzToolInputSchema(f *testing.F) {
	seeds := []string{
		`{"type": "object"}`,
		`true`,
		`false`,
		`{"type": "not-a-type"}`,
		`{"$ref": "#/nowhere"}`,
		strings.Repeat(`{"type":"object","properties":{"x":`, 50) + `{"type":"string"}` + strings.Repeat(`}}`, 50),
		`{"pattern": "("}`,
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, schema string) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("PANIC on schema %q: %v", schema, r)
			}
		}()
		v := NewToolInputValidator()
		_ = v.Validate("fuzz", "tool", json.RawMessage(schema), json.RawMessage(`{}`))
	})
}
