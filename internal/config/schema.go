package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	dserrors "github.com/systmms/tierup/internal/errors"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON schema tierup.yaml is validated against.
func Schema() []byte {
	return schemaJSON
}

// validateSchema checks a decoded YAML document against the embedded schema.
func validateSchema(doc interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration cannot be represented as JSON: %v", err),
			Suggestion: "Use string keys only",
		}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	return dserrors.ConfigError{
		Field:      result.Errors()[0].Field(),
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "Run 'tierup validate --print-schema' to see the accepted keys",
	}
}
