// Package schema loads, generates and enforces the JSON schemas that model
// responses must follow.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/oljefondvakt/fundwatch/internal/domain"
)

// ErrValidation is returned when an instance does not match its schema.
var ErrValidation = errors.New("schema validation failed")

// ErrInvalidSchema is returned when a schema cannot be read or compiled.
var ErrInvalidSchema = errors.New("invalid schema")

// Load reads a JSON schema document from path.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidSchema, path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalidSchema, path, err)
	}
	return m, nil
}

// Reflect derives a closed JSON schema from the Go type of v, with every
// definition inlined.
func Reflect(v any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	data, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return m, nil
}

// ShallowBatch is the built-in schema for a shallow batch response: an array
// of shallow reports, one per requested company.
func ShallowBatch() (map[string]any, error) {
	return Reflect([]domain.ShallowReport{})
}

// ForModel returns a copy of s without the top-level keys the model API
// rejects.
func ForModel(s map[string]any) map[string]any {
	if s == nil {
		return nil
	}
	out := maps.Clone(s)
	delete(out, "$schema")
	delete(out, "$id")
	return out
}
