package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolInputValidator validates tool call input against the input
// schema the tool announced at registration. Compiled schemas are
// cached by schema content, so a re-registration with a changed schema
// never sees a stale compile. A tool without a schema accepts any
// input.
type ToolInputValidator struct {
	mu    sync.Mutex
	cache map[string]*jsonschema.Schema
}

// NewToolInputValidator creates an empty validator.
func NewToolInputValidator() *ToolInputValidator {
	return &ToolInputValidator{cache: make(map[string]*jsonschema.Schema)}
}

// Validate checks input against the tool's announced schema. Empty
// input validates as JSON null, so a schema requiring an object still
// rejects a call that sent nothing.
func (v *ToolInputValidator) Validate(extension, tool string, schemaBytes, input json.RawMessage) error {
	if len(schemaBytes) == 0 {
		return nil
	}
	schema, err := v.compiled(extension, tool, schemaBytes)
	if err != nil {
		return err
	}

	if len(input) == 0 {
		input = []byte("null")
	}
	var value interface{}
	if err := json.Unmarshal(input, &value); err != nil {
		return fmt.Errorf("tool %s input is not valid JSON: %w", tool, err)
	}
	if err := schema.Validate(value); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("tool %s input rejected: %w", tool, flattenValidationError(validationErr))
		}
		return fmt.Errorf("tool %s input rejected: %w", tool, err)
	}
	return nil
}

func (v *ToolInputValidator) compiled(extension, tool string, schemaBytes json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.Lock()
	if schema, ok := v.cache[key]; ok {
		v.mu.Unlock()
		return schema, nil
	}
	v.mu.Unlock()

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	name := fmt.Sprintf("%s/%s.json", extension, tool)
	if err := compiler.AddResource(name, bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("tool %s announced an unusable input schema: %w", tool, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("tool %s announced an invalid input schema: %w", tool, err)
	}

	v.mu.Lock()
	v.cache[key] = schema
	v.mu.Unlock()
	return schema, nil
}
