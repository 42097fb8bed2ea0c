// Package validation checks shape collection documents before they reach
// the local store.
package validation

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tamos/tamos-client-go/internal/models"
)

// ErrMalformedCollection marks input that is not a well-formed shape
// collection document
var ErrMalformedCollection = errors.New("malformed shape collection")

const schemaURL = "https://tamos.local/schemas/shape-collection.json"

//go:embed shapes.schema.json
var shapeSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func shapeSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, bytes.NewReader(shapeSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// ParseShapeCollection decodes and validates a raw collection document
func ParseShapeCollection(raw []byte) (models.ShapeCollection, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCollection, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var shapes models.ShapeCollection
	if err := json.Unmarshal(raw, &shapes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCollection, err)
	}
	if err := CheckCollection(shapes); err != nil {
		return nil, err
	}
	return shapes, nil
}

// ValidateDocument checks an already-decoded JSON document against the
// collection schema
func ValidateDocument(doc any) error {
	s, err := shapeSchema()
	if err != nil {
		return fmt.Errorf("compile shape schema: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCollection, err)
	}
	return nil
}

// CheckCollection enforces the rules the schema cannot express, ids are
// non-empty and unique and documents are valid JSON, and repeats the style
// rule for collections that did not come through ParseShapeCollection
func CheckCollection(shapes models.ShapeCollection) error {
	seen := make(map[string]struct{}, len(shapes))
	for i, s := range shapes {
		if s.ID == "" {
			return fmt.Errorf("%w: shape %d has empty id", ErrMalformedCollection, i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrMalformedCollection, s.ID)
		}
		seen[s.ID] = struct{}{}

		if len(s.Geometry) > 0 && !json.Valid(s.Geometry) {
			return fmt.Errorf("%w: shape %q geometry is not valid JSON", ErrMalformedCollection, s.ID)
		}
		if len(s.Style) > 0 && !json.Valid(s.Style) {
			return fmt.Errorf("%w: shape %q style is not valid JSON", ErrMalformedCollection, s.ID)
		}
		if !styleAllowed(s.Style) {
			return fmt.Errorf("%w: shape %q style must be an object or null", ErrMalformedCollection, s.ID)
		}
	}
	return nil
}

func styleAllowed(style json.RawMessage) bool {
	v := bytes.TrimSpace(style)
	return len(v) == 0 || v[0] == '{' || bytes.Equal(v, []byte("null"))
}
