// Package schema validates JSON values against Draft-07 JSON Schemas and
// reports violations as (path, message) pairs suitable for error envelopes.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is a single schema violation: a path into the offending
// value (object keys and array indices) plus a human-readable message.
type ValidationError struct {
	Path    []interface{} `json:"path"`
	Message string        `json:"message"`
}

const compiledCacheSize = 128

// Validator validates values against JSON Schema documents. Compiled
// schemas are cached by their canonical serialization, so repeated
// invocations against the same agent definition compile once.
type Validator struct {
	cache *lru.Cache[string, *gojsonschema.Schema]
}

// NewValidator creates a validator with a bounded compiled-schema cache.
func NewValidator() *Validator {
	cache, _ := lru.New[string, *gojsonschema.Schema](compiledCacheSize)
	return &Validator{cache: cache}
}

// CheckSchema verifies that the document is a well-formed JSON Schema.
// Malformed schemas are load-time errors, so callers (registry, preset
// loading) reject them before any request can reference them.
func (v *Validator) CheckSchema(schemaDoc map[string]interface{}) error {
	_, err := v.compile(schemaDoc)
	return err
}

// Validate checks value against the schema. It returns an empty slice
// when the value conforms, one entry per violation otherwise. The error
// return is reserved for schema compilation failures; it never fires for
// schemas that passed CheckSchema. Neither argument is mutated.
func (v *Validator) Validate(value interface{}, schemaDoc map[string]interface{}) ([]ValidationError, error) {
	compiled, err := v.compile(schemaDoc)
	if err != nil {
		return nil, err
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return []ValidationError{}, nil
	}

	violations := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		violations = append(violations, ValidationError{
			Path:    fieldPath(re.Field()),
			Message: re.Description(),
		})
	}
	return violations, nil
}

func (v *Validator) compile(schemaDoc map[string]interface{}) (*gojsonschema.Schema, error) {
	key, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("schema is not serializable: %w", err)
	}

	if compiled, ok := v.cache.Get(string(key)); ok {
		return compiled, nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaDoc))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}
	v.cache.Add(string(key), compiled)
	return compiled, nil
}

// fieldPath converts gojsonschema's dotted field notation ("items.2.name",
// "(root)") into a path of keys and indices.
func fieldPath(field string) []interface{} {
	if field == "" || field == gojsonschema.STRING_CONTEXT_ROOT {
		return []interface{}{}
	}
	segments := strings.Split(field, ".")
	path := make([]interface{}, 0, len(segments))
	for _, seg := range segments {
		if seg == gojsonschema.STRING_CONTEXT_ROOT {
			continue
		}
		if idx, err := strconv.Atoi(seg); err == nil {
			path = append(path, idx)
			continue
		}
		path = append(path, seg)
	}
	return path
}
