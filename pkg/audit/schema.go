package audit

import (
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrUnknownEventType is returned when an event type is outside the taxonomy.
var ErrUnknownEventType = errors.New("audit: unknown event type")

// metadataSchemas holds the JSON Schema source for event types whose
// metadata payload has a required shape. Types not listed accept any
// object-shaped metadata.
var metadataSchemas = map[EventType]string{
	EventDataExport: `{
		"type": "object",
		"required": ["format"],
		"properties": {
			"format":    {"type": "string", "enum": ["csv", "json", "pdf"]},
			"row_count": {"type": "integer", "minimum": 0}
		}
	}`,
	EventRunStart: `{
		"type": "object",
		"required": ["instrument_id"],
		"properties": {
			"instrument_id": {"type": "string", "minLength": 1},
			"protocol":      {"type": "string"}
		}
	}`,
	EventRunComplete: `{
		"type": "object",
		"required": ["instrument_id"],
		"properties": {
			"instrument_id":    {"type": "string", "minLength": 1},
			"duration_seconds": {"type": "number", "minimum": 0}
		}
	}`,
	EventConfigChange: `{
		"type": "object",
		"required": ["setting"],
		"properties": {
			"setting":   {"type": "string", "minLength": 1},
			"old_value": {},
			"new_value": {}
		}
	}`,
}

// Registry validates event metadata against the per-type schemas.
type Registry struct {
	compiled map[EventType]*jsonschema.Schema
}

// NewRegistry compiles the built-in metadata schemas.
func NewRegistry() (*Registry, error) {
	r := &Registry{compiled: make(map[EventType]*jsonschema.Schema, len(metadataSchemas))}
	for et, src := range metadataSchemas {
		schema, err := jsonschema.CompileString(string(et)+".json", src)
		if err != nil {
			return nil, fmt.Errorf("audit: compile schema for %s: %w", et, err)
		}
		r.compiled[et] = schema
	}
	return r, nil
}

// Validate checks the event type against the taxonomy and, when a schema
// exists for the type, validates the metadata payload against it.
func (r *Registry) Validate(et EventType, metadata map[string]interface{}) error {
	if !et.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, et)
	}

	schema, ok := r.compiled[et]
	if !ok {
		return nil
	}

	// jsonschema validates decoded JSON values; metadata maps qualify as-is.
	var doc interface{} = map[string]interface{}{}
	if metadata != nil {
		doc = normalize(metadata)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("audit: metadata for %s rejected: %w", et, err)
	}
	return nil
}

// normalize converts Go-native numbers into the types the validator
// expects for decoded JSON (int -> int64 passthrough is handled by the
// library; this keeps nested maps as plain interfaces).
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
