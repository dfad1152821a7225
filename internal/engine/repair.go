package engine

import (
	"context"
	"strings"

	"github.com/agentgate-oss/agentgate/internal/agent"
	"github.com/agentgate-oss/agentgate/internal/backend"
	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
	"github.com/agentgate-oss/agentgate/internal/schema"
)

// buildRepairPrompt asks the backend for a second attempt: it names the
// violations, shows the previous raw output, and restates the output
// schema in canonical form.
func buildRepairPrompt(def *agent.Definition, violations []schema.ValidationError, previousRaw string) string {
	messages := make([]string, 0, len(violations))
	for _, v := range violations {
		messages = append(messages, v.Message)
	}

	return "The previous JSON output did not validate against the required output_schema.\n" +
		"Validation errors: " + strings.Join(messages, "; ") + "\n\n" +
		"Previous raw output:\n" +
		previousRaw + "\n\n" +
		"Please respond again with ONLY a valid JSON object that matches the following output_schema:\n" +
		canonicalJSON(def.OutputSchema)
}

// validateWithRepair checks the initial backend result against the
// output schema and performs at most one repair attempt. Invocations
// therefore make at most two backend calls. A backend failure during
// repair surfaces as INTERNAL_ERROR; output that is still invalid after
// the repair surfaces as OUTPUT_VALIDATION_ERROR.
func (e *Engine) validateWithRepair(ctx context.Context, def *agent.Definition, input interface{}, initial *backend.Result) (map[string]interface{}, error) {
	violations, err := e.validator.Validate(initial.Parsed, def.OutputSchema)
	if err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeInternalError, "output schema validation failed", err)
	}
	if len(violations) == 0 {
		return postprocessOutput(def, input, initial.Parsed), nil
	}

	e.metrics.IncRepairAttempts()
	e.metrics.IncBackendCalls()
	repairResult, err := e.backend.Complete(ctx, buildRepairPrompt(def, violations, initial.RawText), def.OutputSchema)
	if err != nil {
		return nil, gateErrors.New(gateErrors.CodeInternalError, "Backend failure").
			WithDetails(map[string]interface{}{"message": err.Error()})
	}

	repairViolations, err := e.validator.Validate(repairResult.Parsed, def.OutputSchema)
	if err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeInternalError, "output schema validation failed", err)
	}
	if len(repairViolations) == 0 {
		return postprocessOutput(def, input, repairResult.Parsed), nil
	}

	return nil, gateErrors.New(gateErrors.CodeOutputValidationError,
		"Backend output did not validate against output_schema after one repair attempt").
		WithDetails(repairViolations)
}
