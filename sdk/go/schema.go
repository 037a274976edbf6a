package sdk

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"github.com/portcullis-dev/portcullis/wireformat"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// GenerateSchema reflects a JSON Schema from a tool's input struct. Use
// jsonschema struct tags for descriptions and validate tags for the
// constraints DecodeInput enforces at call time.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	return json.Marshal(reflector.Reflect(v))
}

// DecodeInput unmarshals a tool input into out and runs its validate
// tags. Failures come back as validation errors the host relays to the
// caller verbatim, so messages should make sense to whoever invoked the
// tool.
func DecodeInput(input json.RawMessage, out any) error {
	if len(input) == 0 {
		input = []byte("{}")
	}
	if err := json.Unmarshal(input, out); err != nil {
		return &wireformat.ErrorDetail{Message: "malformed input: " + err.Error(), Type: "validation"}
	}
	if err := validate.Struct(out); err != nil {
		return &wireformat.ErrorDetail{Message: "invalid input: " + err.Error(), Type: "validation"}
	}
	return nil
}
