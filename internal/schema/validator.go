package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resourceURL = "schema.json"

// Validator checks decoded JSON values against one compiled schema.
// It is safe for concurrent use.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles s.
func NewValidator(s map[string]any) (*Validator, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal schema: %w", ErrInvalidSchema, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceURL, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("%w: add schema: %w", ErrInvalidSchema, err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: compile schema: %w", ErrInvalidSchema, err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks an instance produced by json.Unmarshal into any.
func (v *Validator) Validate(instance any) error {
	if err := v.compiled.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
