// Package agent defines the agent definition model: a versioned contract
// of prompt template plus input/output JSON Schemas, with normalization
// and validation applied wherever definitions enter the system.
package agent

import (
	"encoding/json"
	"fmt"
	"regexp"

	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
	"github.com/agentgate-oss/agentgate/internal/memory"
	"github.com/agentgate-oss/agentgate/internal/schema"
)

// Definition is an immutable agent contract. The pipeline receives it by
// value per invocation and never mutates it.
type Definition struct {
	ID             string                 `yaml:"id" json:"id"`
	Version        string                 `yaml:"version" json:"version"`
	Name           string                 `yaml:"name" json:"name"`
	Description    string                 `yaml:"description" json:"description"`
	Primitive      string                 `yaml:"primitive" json:"primitive"`
	InputSchema    map[string]interface{} `yaml:"input_schema" json:"input_schema"`
	OutputSchema   map[string]interface{} `yaml:"output_schema" json:"output_schema"`
	Prompt         string                 `yaml:"prompt" json:"prompt"`
	SupportsMemory bool                   `yaml:"supports_memory" json:"supports_memory"`
	MemoryPolicy   *memory.Policy         `yaml:"memory_policy,omitempty" json:"memory_policy,omitempty"`
	Tags           []string               `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// KnowledgeItem is an optional retrieval-augmented context fragment
// supplied inline per request.
type KnowledgeItem struct {
	ID      string                 `json:"id,omitempty"`
	Content string                 `json:"content"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Spec size and shape limits enforced at registration time.
const (
	maxSpecBytes   = 300_000
	maxPromptChars = 20_000
	maxSchemaBytes = 200_000
	maxSchemaDepth = 50
	maxVersionLen  = 32
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,62}$`)

// NormalizeSpec validates a raw agent spec and returns the normalized
// Definition. Every error is AGENT_SPEC_INVALID with a description of
// the first failing constraint.
func NormalizeSpec(raw map[string]interface{}, validator *schema.Validator) (*Definition, error) {
	if raw == nil {
		return nil, specInvalid("spec must be an object", nil)
	}
	if jsonSizeBytes(raw) > maxSpecBytes {
		return nil, specInvalid("spec is too large", nil)
	}

	id, err := requiredString(raw, "id")
	if err != nil {
		return nil, err
	}
	version, err := requiredString(raw, "version")
	if err != nil {
		return nil, err
	}
	primitive, err := requiredString(raw, "primitive")
	if err != nil {
		return nil, err
	}
	prompt, err := requiredString(raw, "prompt")
	if err != nil {
		return nil, err
	}

	if !idPattern.MatchString(id) {
		return nil, specInvalid("agent id must match ^[a-z0-9][a-z0-9_-]{1,62}$", nil)
	}
	if len(version) > maxVersionLen {
		return nil, specInvalid(fmt.Sprintf("version too long (max %d chars)", maxVersionLen), nil)
	}
	if len(prompt) > maxPromptChars {
		return nil, specInvalid("prompt too long", nil)
	}

	inputSchema, err := checkSchemaField(raw["input_schema"], "input_schema", validator)
	if err != nil {
		return nil, err
	}
	outputSchema, err := checkSchemaField(raw["output_schema"], "output_schema", validator)
	if err != nil {
		return nil, err
	}
	if jsonSizeBytes(inputSchema)+jsonSizeBytes(outputSchema) > maxSchemaBytes {
		return nil, specInvalid("combined schema size too large", nil)
	}

	def := &Definition{
		ID:           id,
		Version:      version,
		Name:         optionalString(raw, "name", id),
		Description:  optionalString(raw, "description", ""),
		Primitive:    primitive,
		InputSchema:  inputSchema,
		OutputSchema: outputSchema,
		Prompt:       prompt,
	}

	if v, ok := raw["supports_memory"].(bool); ok {
		def.SupportsMemory = v
	}

	if mp, present := raw["memory_policy"]; present && mp != nil {
		mpMap, ok := mp.(map[string]interface{})
		if !ok {
			return nil, specInvalid("memory_policy must be an object when provided", nil)
		}
		def.MemoryPolicy = coerceMemoryPolicy(mpMap)
	}

	if tags, present := raw["tags"]; present && tags != nil {
		list, ok := tags.([]interface{})
		if !ok {
			return nil, specInvalid("tags must be a list of strings when provided", nil)
		}
		for _, tag := range list {
			def.Tags = append(def.Tags, fmt.Sprintf("%v", tag))
		}
	}

	return def, nil
}

// checkSchemaField validates that a schema field is an object-rooted,
// bounded-depth, well-formed JSON Schema.
func checkSchemaField(value interface{}, fieldName string, validator *schema.Validator) (map[string]interface{}, error) {
	doc, ok := value.(map[string]interface{})
	if !ok {
		return nil, specInvalid(fieldName+" must be a JSON object", nil)
	}
	if doc["type"] != "object" {
		return nil, specInvalid(fieldName+" root type must be 'object'", nil)
	}
	if maxDepth(doc, 0) > maxSchemaDepth {
		return nil, specInvalid(fieldName+" is too deep", nil)
	}
	if err := validator.CheckSchema(doc); err != nil {
		return nil, specInvalid(fieldName+" is not a valid JSON schema", map[string]interface{}{"message": err.Error()})
	}
	return doc, nil
}

// coerceMemoryPolicy fills defaults for missing or negative fields.
func coerceMemoryPolicy(raw map[string]interface{}) *memory.Policy {
	policy := memory.DefaultPolicy()
	if mode, ok := raw["mode"].(string); ok && mode != "" {
		policy.Mode = mode
	}
	if n, ok := numericField(raw, "max_messages"); ok && n >= 0 {
		policy.MaxMessages = n
	}
	if n, ok := numericField(raw, "max_chars"); ok && n >= 0 {
		policy.MaxChars = n
	}
	return &policy
}

func numericField(raw map[string]interface{}, key string) (int, bool) {
	switch v := raw[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func requiredString(raw map[string]interface{}, key string) (string, error) {
	v, present := raw[key]
	if !present || v == nil {
		return "", specInvalid("spec missing required field: "+key, nil)
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	return s, nil
}

func optionalString(raw map[string]interface{}, key, fallback string) string {
	if v, ok := raw[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func jsonSizeBytes(value interface{}) int {
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return len(data)
}

func maxDepth(value interface{}, depth int) int {
	switch v := value.(type) {
	case map[string]interface{}:
		deepest := depth
		for _, child := range v {
			if d := maxDepth(child, depth+1); d > deepest {
				deepest = d
			}
		}
		return deepest
	case []interface{}:
		deepest := depth
		for _, child := range v {
			if d := maxDepth(child, depth+1); d > deepest {
				deepest = d
			}
		}
		return deepest
	default:
		return depth
	}
}

func specInvalid(message string, details interface{}) error {
	err := gateErrors.New(gateErrors.CodeAgentSpecInvalid, message)
	if details != nil {
		err = err.WithDetails(details)
	}
	return err
}
