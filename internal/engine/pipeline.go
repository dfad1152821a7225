package engine

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/agentgate-oss/agentgate/internal/agent"
	"github.com/agentgate-oss/agentgate/internal/backend"
	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
	"github.com/agentgate-oss/agentgate/internal/memory"
	"github.com/agentgate-oss/agentgate/internal/schema"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

// Engine executes invocations end to end.
type Engine struct {
	validator *schema.Validator
	backend   backend.Backend
	sessions  memory.SessionStore
	metrics   *telemetry.Metrics
	log       *telemetry.Logger
}

// New assembles an engine from its collaborators.
func New(validator *schema.Validator, b backend.Backend, sessions memory.SessionStore, metrics *telemetry.Metrics, log *telemetry.Logger) *Engine {
	return &Engine{
		validator: validator,
		backend:   b,
		sessions:  sessions,
		metrics:   metrics,
		log:       log,
	}
}

// Backend exposes the configured backend, mainly for health reporting.
func (e *Engine) Backend() backend.Backend {
	return e.backend
}

// invokeContext is the optional per-request context block.
type invokeContext struct {
	sessionID string
	memory    []interface{}
	knowledge []interface{}
}

// Invoke runs the invocation pipeline for an already-resolved agent
// against a raw request body. It is total: every outcome, success or
// failure, comes back as an HTTP status plus an envelope body.
func (e *Engine) Invoke(ctx context.Context, def *agent.Definition, body []byte) (int, map[string]interface{}) {
	requestID := NewRequestID()
	start := time.Now()
	e.metrics.IncInvocationsStarted()

	result, err := e.run(ctx, def, body)
	latencyMS := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		status, envelope := ErrorEnvelope(requestID, def, err)
		e.metrics.IncInvocationsFailed()
		e.logInvoke(requestID, def, status, latencyMS)
		return status, envelope
	}

	e.metrics.IncInvocationsSucceeded()
	e.metrics.RecordLatency(time.Since(start))
	envelope := successEnvelope(result.output, requestID, def, latencyMS, result.sessionID, result.memoryUsed)
	e.logInvoke(requestID, def, 200, latencyMS)
	return 200, envelope
}

// Reject produces an enveloped failure for errors raised before the
// pipeline runs (auth, unreadable body, unresolved agent). def may be nil.
func (e *Engine) Reject(def *agent.Definition, err error) (int, map[string]interface{}) {
	requestID := NewRequestID()
	status, envelope := ErrorEnvelope(requestID, def, err)
	e.metrics.IncInvocationsFailed()
	e.logInvoke(requestID, def, status, 0)
	return status, envelope
}

type invokeResult struct {
	output     map[string]interface{}
	sessionID  string
	memoryUsed int
}

func (e *Engine) run(ctx context.Context, def *agent.Definition, body []byte) (*invokeResult, error) {
	// Body must decode as UTF-8 text. json.Unmarshal would silently
	// substitute U+FFFD for invalid bytes inside string literals.
	if !utf8.Valid(body) {
		return nil, gateErrors.New(gateErrors.CodeMalformedRequest, "Request body must be valid UTF-8")
	}

	// Body must be valid JSON.
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, gateErrors.New(gateErrors.CodeMalformedRequest, "Request body must be valid JSON").
			WithDetails(map[string]interface{}{"message": err.Error()})
	}

	// Top-level input key is mandatory.
	payload, _ := decoded.(map[string]interface{})
	input, hasInput := payload["input"]
	if !hasInput {
		return nil, gateErrors.New(gateErrors.CodeInputValidationError, "Request body must have top-level 'input' object").
			WithDetails([]schema.ValidationError{{Path: []interface{}{}, Message: "Missing 'input' field"}})
	}

	// Optional context block; invalid shapes are ignored, not rejected.
	reqCtx := resolveContext(payload["context"])

	// Merge stored session events with inline memory under the agent's policy.
	merged, memoryUsed := e.resolveMemory(def, reqCtx)

	// Input validation.
	violations, err := e.validator.Validate(input, def.InputSchema)
	if err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeInternalError, "input schema validation failed", err)
	}
	if len(violations) > 0 {
		return nil, gateErrors.New(gateErrors.CodeInputValidationError, "Input failed validation against agent input_schema").
			WithDetails(violations)
	}

	// Generation.
	e.metrics.IncBackendCalls()
	prompt := BuildPrompt(def, input, merged, reqCtx.knowledge)
	initial, err := e.backend.Complete(ctx, prompt, def.OutputSchema)
	if err != nil {
		return nil, gateErrors.New(gateErrors.CodeInternalError, "Backend failure").
			WithDetails(map[string]interface{}{"message": err.Error()})
	}

	// Output validation with at most one repair attempt.
	output, err := e.validateWithRepair(ctx, def, input, initial)
	if err != nil {
		return nil, err
	}

	// Memory persistence is best effort: a failed append never fails the
	// invocation.
	if reqCtx.sessionID != "" && def.SupportsMemory {
		e.persistTurn(reqCtx.sessionID, def, input, initial, output)
	}

	return &invokeResult{output: output, sessionID: reqCtx.sessionID, memoryUsed: memoryUsed}, nil
}

// resolveContext pulls session_id, memory, and knowledge out of the raw
// context value. Wrong-typed fields are dropped.
func resolveContext(raw interface{}) invokeContext {
	var out invokeContext
	ctxMap, ok := raw.(map[string]interface{})
	if !ok {
		return out
	}
	if sid, ok := ctxMap["session_id"].(string); ok {
		out.sessionID = sid
	}
	if mem, ok := ctxMap["memory"].([]interface{}); ok {
		out.memory = mem
	}
	if know, ok := ctxMap["knowledge"].([]interface{}); ok {
		out.knowledge = know
	}
	return out
}

// resolveMemory loads stored events for the session (an unknown session
// logs a warning and contributes nothing), merges inline memory, and
// applies the agent's policy. memoryUsed is reported only when the
// request engaged memory at all.
func (e *Engine) resolveMemory(def *agent.Definition, reqCtx invokeContext) ([]memory.Event, int) {
	if reqCtx.sessionID == "" && len(reqCtx.memory) == 0 {
		return nil, 0
	}

	var stored []memory.Event
	if reqCtx.sessionID != "" {
		session, err := e.sessions.GetSession(reqCtx.sessionID)
		switch {
		case err != nil:
			e.log.Warn("session lookup failed, using empty stored events", "session_id", reqCtx.sessionID, "error", err)
		case session == nil:
			e.log.Warn("session not found, using empty stored events", "session_id", reqCtx.sessionID)
		default:
			stored = session.Events
		}
	}

	inline := make([]memory.Event, 0, len(reqCtx.memory))
	for _, raw := range reqCtx.memory {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		ev := memory.Event{}
		if role, ok := entry["role"].(string); ok {
			ev.Role = role
		}
		if content, ok := entry["content"].(string); ok {
			ev.Content = content
		}
		inline = append(inline, ev)
	}

	policy := def.MemoryPolicy
	if policy == nil {
		p := memory.DefaultPolicy()
		policy = &p
	}
	merged := memory.Merge(stored, inline, policy)
	return merged, len(merged)
}

// persistTurn appends the user input and assistant output to the session.
func (e *Engine) persistTurn(sessionID string, def *agent.Definition, input interface{}, initial *backend.Result, output map[string]interface{}) {
	userSummary := "invoke"
	if input != nil {
		if raw, err := json.Marshal(input); err == nil {
			userSummary = truncate(string(raw), 500)
		}
	}

	assistantContent := initial.RawText
	if assistantContent == "" {
		if raw, err := json.Marshal(output); err == nil {
			assistantContent = string(raw)
		}
	}
	assistantContent = truncate(assistantContent, 2000)

	events := []memory.Event{
		{Role: "user", Content: userSummary, Meta: map[string]interface{}{"input": input, "agent": def.ID}},
		{Role: "assistant", Content: assistantContent, Meta: map[string]interface{}{"output": output}},
	}
	if _, err := e.sessions.AppendEvents(sessionID, events); err != nil {
		e.log.Warn("append events failed", "session_id", sessionID, "error", err)
	}
}

func (e *Engine) logInvoke(requestID string, def *agent.Definition, status int, latencyMS float64) {
	agentID := "unknown"
	if def != nil {
		agentID = def.ID
	}
	e.log.Info("invoke",
		"request_id", requestID,
		"agent", agentID,
		"backend", e.backend.Name(),
		"status", status,
		"latency_ms", latencyMS,
	)
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
