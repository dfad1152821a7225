package backend

import (
	"context"
	"encoding/json"
	"strings"
)

// Stub is a deterministic backend that fabricates JSON conforming to the
// requested output schema. It needs no credentials and is the default.
//
// The generator is intentionally small but schema-aware enough for the
// bundled preset schemas.
type Stub struct{}

// NewStub returns the stub backend.
func NewStub() *Stub {
	return &Stub{}
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Complete(_ context.Context, _ string, outputSchema map[string]interface{}) (*Result, error) {
	value := generateFromSchema(outputSchema)
	parsed, ok := value.(map[string]interface{})
	if !ok {
		parsed = map[string]interface{}{}
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return &Result{Parsed: parsed, RawText: string(raw)}, nil
}

// generateFromSchema walks a Draft-07-style schema and emits a
// deterministic value for it.
func generateFromSchema(schemaDoc map[string]interface{}) interface{} {
	if schemaDoc == nil {
		return nil
	}

	schemaType, _ := schemaDoc["type"].(string)

	switch schemaType {
	case "object":
		result := map[string]interface{}{}
		if props, ok := schemaDoc["properties"].(map[string]interface{}); ok {
			for name, sub := range props {
				subDoc, _ := sub.(map[string]interface{})
				result[name] = generateFromSchema(subDoc)
			}
		}
		// Required keys outside properties still need a value.
		if required, ok := schemaDoc["required"].([]interface{}); ok {
			for _, name := range required {
				key, ok := name.(string)
				if !ok {
					continue
				}
				if _, present := result[key]; !present {
					result[key] = nil
				}
			}
		}
		return result

	case "array":
		itemsDoc, _ := schemaDoc["items"].(map[string]interface{})
		// One element keeps payloads small but non-empty.
		return []interface{}{generateFromSchema(itemsDoc)}

	case "string":
		return stubString(schemaDoc)

	case "number":
		// Prefer a value inside [0, 1] when that is the stated range.
		if numberEquals(schemaDoc["minimum"], 0) && numberEquals(schemaDoc["maximum"], 1) {
			return 0.5
		}
		return 1.0

	case "integer":
		return 1

	case "boolean":
		return false
	}

	// Schemas without an explicit type: treat a properties block as an object.
	if _, ok := schemaDoc["properties"]; ok {
		merged := map[string]interface{}{"type": "object"}
		for k, v := range schemaDoc {
			merged[k] = v
		}
		merged["type"] = "object"
		return generateFromSchema(merged)
	}

	return nil
}

func stubString(schemaDoc map[string]interface{}) string {
	title, _ := schemaDoc["title"].(string)
	title = strings.ToLower(title)
	if strings.Contains(title, "summary") {
		return "stub summary"
	}
	if strings.Contains(title, "bullet") {
		return "stub bullet"
	}
	if format, _ := schemaDoc["format"].(string); format == "date" {
		return "2099-01-01"
	}
	return "stub"
}

func numberEquals(value interface{}, target float64) bool {
	switch v := value.(type) {
	case float64:
		return v == target
	case int:
		return float64(v) == target
	}
	return false
}
