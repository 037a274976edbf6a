// Package validation checks wire payloads against JSON Schemas before
// they reach the domain.
package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/portcullis-dev/portcullis/internal/domain/entities"
)

//go:embed register_schema.json
var registerSchemaJSON []byte

// RegisterValidator checks a guest's register payload against the
// embedded schema. A payload that fails here is a malformed manifest:
// that extension is skipped while others proceed.
type RegisterValidator struct {
	schema *jsonschema.Schema
}

// NewRegisterValidator compiles the embedded register schema once.
func NewRegisterValidator() (*RegisterValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("register.json", bytes.NewReader(registerSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add register schema resource: %w", err)
	}
	schema, err := compiler.Compile("register.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile register schema: %w", err)
	}
	return &RegisterValidator{schema: schema}, nil
}

// Validate checks raw register payload bytes. Failures come back as a
// *entities.ManifestError naming every offending location.
func (v *RegisterValidator) Validate(payload []byte) error {
	var value interface{}
	if err := json.Unmarshal(payload, &value); err != nil {
		return &entities.ManifestError{
			Field: "register",
			Err:   fmt.Errorf("payload is not valid JSON: %w", err),
		}
	}
	if err := v.schema.Validate(value); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return &entities.ManifestError{Field: "register", Err: flattenValidationError(validationErr)}
		}
		return &entities.ManifestError{Field: "register", Err: err}
	}
	return nil
}

// flattenValidationError folds the cause tree into one readable list.
func flattenValidationError(err *jsonschema.ValidationError) error {
	var messages []string

	var collect func(*jsonschema.ValidationError)
	collect = func(e *jsonschema.ValidationError) {
		if e.Message != "" {
			location := e.InstanceLocation
			if location == "" {
				location = "(root)"
			}
			messages = append(messages, fmt.Sprintf("%s: %s", location, e.Message))
		}
		for _, cause := range e.Causes {
			collect(cause)
		}
	}
	collect(err)

	if len(messages) == 0 {
		return fmt.Errorf("schema validation failed")
	}
	return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(messages, "\n  - "))
}
