package config

import (
	"bytes"
	"strings"
	"testing"
)

// FuzzPolicyLoading fuzzes policy YAML parsing for panics and
// pathological documents. Every input must produce either a ruleset or
// an error, never a panic.
func FuzzPolicyLoading(f *testing.F) {
	seeds := []string{
		// Valid policy
		`mode: strict
default_caps:
  - log
extensions:
  hello:
    grant:
      - exec:git`,

		// Deeply nested
		strings.Repeat("nested:\n  ", 1000) + "value: 1",

		// Large document
		"extensions:\n" + strings.Repeat("  ext:\n    grant: [log]\n", 5000),

		// Invalid UTF-8
		"mode: \xff\xfe",

		// Anchor cycle
		`mode: &anchor
  ref: *anchor`,

		// Null bytes
		"mode: strict\x00null",

		// Empty
		"",

		// Only whitespace
		"   \n\t  \n",

		// Malformed indentation
		"mode: strict\n    deny_caps: []",

		// Very long keys
		strings.Repeat("x", 100000) + ": value",

		// Very long values
		"mode: " + strings.Repeat("x", 100000),
	}
	for _, seed := range seeds {
		f.Add([]byte(seed))
	}

	f.Fuzz(func(t *testing.T, yamlData []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Errorf("PANIC on input (len=%d): %v", len(yamlData), r)
			}
		}()

		loader := NewLoader(nil)
		_, err := loader.LoadFromReader(bytes.NewReader(yamlData))
		_ = err
	})
}
