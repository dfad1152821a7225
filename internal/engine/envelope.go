package engine

import (
	"github.com/google/uuid"

	"github.com/agentgate-oss/agentgate/internal/agent"
	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
)

// NewRequestID mints the per-request correlation id.
func NewRequestID() string {
	return uuid.NewString()
}

// successEnvelope builds the uniform success body. session_id and
// memory_used_count appear only when the request referenced a session.
func successEnvelope(output map[string]interface{}, requestID string, def *agent.Definition, latencyMS float64, sessionID string, memoryUsed int) map[string]interface{} {
	meta := map[string]interface{}{
		"request_id": requestID,
		"agent":      def.ID,
		"version":    def.Version,
		"latency_ms": latencyMS,
	}
	if sessionID != "" {
		meta["session_id"] = sessionID
		meta["memory_used_count"] = memoryUsed
	}
	return map[string]interface{}{
		"output": output,
		"meta":   meta,
	}
}

// ErrorEnvelope builds the uniform error body for a failed invocation.
// When the agent could not be resolved, def is nil and the meta reports
// "unknown". The status comes from the error code.
func ErrorEnvelope(requestID string, def *agent.Definition, err error) (int, map[string]interface{}) {
	gerr := gateErrors.AsGateError(err)

	agentID, version := "unknown", "unknown"
	if def != nil {
		agentID, version = def.ID, def.Version
	}

	body := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    gerr.Code,
			"message": gerr.Message,
			"details": gerr.Details,
		},
		"meta": map[string]interface{}{
			"request_id": requestID,
			"agent":      agentID,
			"version":    version,
		},
	}
	return gateErrors.HTTPStatus(gerr.Code), body
}
