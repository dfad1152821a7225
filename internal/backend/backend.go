// Package backend abstracts the text-completion services that agent
// invocations run against. Every backend takes a fully assembled prompt
// plus the agent's output schema and returns a normalized result; the
// stub backend keeps the gateway fully functional without credentials.
package backend

import (
	"context"
	"encoding/json"

	"github.com/agentgate-oss/agentgate/internal/config"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

// systemPrompt instructs hosted models to emit schema-conforming JSON only.
const systemPrompt = "You are a JSON-only API. Respond with strictly valid JSON that matches the provided JSON Schema."

// Result is the normalized output of a completion call.
type Result struct {
	// Parsed is the decoded JSON object. Never nil: when the raw text is
	// not a JSON object, Parsed is an empty map and validation downstream
	// reports the mismatch.
	Parsed map[string]interface{} `json:"parsed_json"`

	// RawText is the verbatim model output, kept for repair prompts.
	RawText string `json:"raw_text"`
}

// Backend is the completion interface the engine invokes agents against.
type Backend interface {
	// Name returns the backend name ("stub", "openai", ...).
	Name() string

	// Complete sends the prompt and returns a normalized result. The
	// output schema is advisory: backends that support structured output
	// pass it through, others embed it in the request.
	Complete(ctx context.Context, prompt string, outputSchema map[string]interface{}) (*Result, error)
}

// parseResult builds a Result from raw model text. Non-JSON or non-object
// output yields an empty Parsed map rather than an error so the engine's
// output validation owns the failure.
func parseResult(raw string) *Result {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed == nil {
		parsed = map[string]interface{}{}
	}
	return &Result{Parsed: parsed, RawText: raw}
}

// New builds the backend selected by cfg. Hosted backends without an API
// key fall back to the stub so local development works out of the box;
// the fallback is logged once at startup.
func New(cfg config.BackendConfig, log *telemetry.Logger) Backend {
	switch cfg.Name {
	case "openai":
		if cfg.APIKey == "" {
			log.Warn("backend API key missing, falling back to stub", "backend", cfg.Name)
			return NewStub()
		}
		return NewRetryBackend(NewOpenAI(cfg), DefaultRetryConfig())
	case "openrouter":
		if cfg.APIKey == "" {
			log.Warn("backend API key missing, falling back to stub", "backend", cfg.Name)
			return NewStub()
		}
		return NewRetryBackend(NewOpenRouter(cfg), DefaultRetryConfig())
	case "anthropic":
		if cfg.APIKey == "" {
			log.Warn("backend API key missing, falling back to stub", "backend", cfg.Name)
			return NewStub()
		}
		return NewRetryBackend(NewAnthropic(cfg), DefaultRetryConfig())
	default:
		return NewStub()
	}
}
