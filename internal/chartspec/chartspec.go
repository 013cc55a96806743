// Package chartspec validates the JSON found inside a completed ```json block and
// turns it into a renderable Vega-Lite specification.
package chartspec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// SchemaURI is set as "$schema" when a declaration does not name one.
	SchemaURI = "https://vega.github.io/schema/vega-lite/v5.json"

	DefaultWidth  = 500
	DefaultHeight = 350
)

var (
	// ErrMalformed reports inner block content that is not a single JSON object.
	ErrMalformed = errors.New("malformed chart block")
	// ErrInvalidSpec reports a JSON object that is not a minimal chart declaration.
	ErrInvalidSpec = errors.New("invalid chart specification")
)

// declarationSchema is the minimal shape a block must have to be rendered.
const declarationSchema = `{
  "type": "object",
  "required": ["mark", "encoding"],
  "properties": {
    "mark": {
      "oneOf": [
        {"type": "string", "minLength": 1},
        {
          "type": "object",
          "required": ["type"],
          "properties": {"type": {"type": "string", "minLength": 1}}
        }
      ]
    },
    "encoding": {"type": "object"}
  }
}`

var (
	schema     *gojsonschema.Schema
	schemaErr  error
	schemaOnce sync.Once
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(declarationSchema))
	})
	return schema, schemaErr
}

// FallbackData returns the built-in dataset used when a declaration carries no
// "data". It stands in for data the producing side should eventually supply.
func FallbackData() map[string]any {
	return map[string]any{
		"values": []any{
			map[string]any{"region": "Almaty", "revenue": 120},
			map[string]any{"region": "Astana", "revenue": 90},
			map[string]any{"region": "Shymkent", "revenue": 70},
		},
	}
}

// Normalize parses rawInner, checks it declares a mark and an encoding, and fills
// in "$schema", "data", "width" and "height" when they are absent. Keys the
// declaration already sets are never overwritten or removed.
func Normalize(rawInner string) (Spec, error) {
	doc, err := decodeObject(rawInner)
	if err != nil {
		return nil, err
	}

	if err := validate(rawInner); err != nil {
		return nil, err
	}

	spec := make(Spec, len(doc)+4)
	for k, v := range doc {
		spec[k] = v
	}
	setDefault(spec, "$schema", SchemaURI)
	setDefault(spec, "data", FallbackData())
	setDefault(spec, "width", DefaultWidth)
	setDefault(spec, "height", DefaultHeight)

	return spec, nil
}

// setDefault treats an explicit null the same as a missing key.
func setDefault(spec Spec, key string, value any) {
	if v, ok := spec[key]; ok && v != nil {
		return
	}
	spec[key] = value
}

func decodeObject(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after JSON document", ErrMalformed)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrMalformed, v)
	}
	return obj, nil
}

func validate(raw string) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile declaration schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if result.Valid() {
		return nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidSpec, strings.Join(reasons, "; "))
}
