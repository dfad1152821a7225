// Package engine runs agent invocations: it assembles the prompt,
// calls the backend, validates and repairs the output, persists session
// memory, and wraps everything in uniform response envelopes.
package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentgate-oss/agentgate/internal/agent"
	"github.com/agentgate-oss/agentgate/internal/memory"
)

// canonicalJSON renders a value as 2-space-indented JSON with sorted
// object keys, so identical inputs always produce identical prompt text.
func canonicalJSON(value interface{}) string {
	raw, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(raw)
}

// memorySegment formats merged memory events for the prompt.
func memorySegment(events []memory.Event) string {
	if len(events) == 0 {
		return ""
	}
	lines := []string{"# Memory (recent context):"}
	for _, e := range events {
		role := e.Role
		if role == "" {
			role = "user"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, strings.TrimSpace(e.Content)))
	}
	return strings.Join(lines, "\n") + "\n\n"
}

// BuildPrompt assembles the deterministic invocation prompt: the agent's
// instructions, the primitive marker, merged memory, knowledge items,
// the canonical input JSON, and the JSON-only response instruction.
func BuildPrompt(def *agent.Definition, input interface{}, memoryEvents []memory.Event, knowledge []interface{}) string {
	parts := []string{
		strings.TrimSpace(def.Prompt),
		"",
		fmt.Sprintf("# Primitive: %s", def.Primitive),
	}

	if len(memoryEvents) > 0 {
		parts = append(parts, memorySegment(memoryEvents))
	}
	if len(knowledge) > 0 {
		parts = append(parts, "# Knowledge:\n"+canonicalJSON(knowledge)+"\n\n")
	}
	parts = append(parts, fmt.Sprintf("# Input JSON:\n%s\n\n", canonicalJSON(input)))
	parts = append(parts, "Respond ONLY with a single JSON object that matches the provided output_schema.")

	return strings.Join(parts, "\n")
}
