package engine

import (
	"strings"
	"testing"

	"github.com/agentgate-oss/agentgate/internal/agent"
	"github.com/agentgate-oss/agentgate/internal/memory"
)

func promptDef() *agent.Definition {
	return &agent.Definition{
		ID:        "summarizer",
		Version:   "0.1.0",
		Primitive: "transform",
		Prompt:    "Summarize the input text.  ",
		OutputSchema: map[string]interface{}{
			"type": "object",
		},
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	def := promptDef()
	input := map[string]interface{}{"b": 2, "a": 1, "text": "hello"}

	first := BuildPrompt(def, input, nil, nil)
	second := BuildPrompt(def, input, nil, nil)
	if first != second {
		t.Error("identical inputs must produce identical prompts")
	}
}

func TestBuildPrompt_Sections(t *testing.T) {
	def := promptDef()
	input := map[string]interface{}{"text": "hello"}

	prompt := BuildPrompt(def, input, nil, nil)

	if !strings.HasPrefix(prompt, "Summarize the input text.") {
		t.Errorf("prompt should start with trimmed instructions:\n%s", prompt)
	}
	if !strings.Contains(prompt, "# Primitive: transform") {
		t.Error("missing primitive marker")
	}
	if !strings.Contains(prompt, "# Input JSON:\n{\n  \"text\": \"hello\"\n}") {
		t.Errorf("missing canonical input JSON:\n%s", prompt)
	}
	if !strings.HasSuffix(prompt, "Respond ONLY with a single JSON object that matches the provided output_schema.") {
		t.Error("missing response instruction")
	}
	if strings.Contains(prompt, "# Memory") {
		t.Error("memory section should be absent without events")
	}
	if strings.Contains(prompt, "# Knowledge") {
		t.Error("knowledge section should be absent without items")
	}
}

func TestBuildPrompt_MemorySection(t *testing.T) {
	def := promptDef()
	events := []memory.Event{
		{Role: "user", Content: "  earlier question  "},
		{Role: "assistant", Content: "earlier answer"},
	}

	prompt := BuildPrompt(def, map[string]interface{}{}, events, nil)

	if !strings.Contains(prompt, "# Memory (recent context):") {
		t.Fatalf("missing memory section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "user: earlier question") {
		t.Error("memory content should be trimmed")
	}
	if !strings.Contains(prompt, "assistant: earlier answer") {
		t.Error("missing assistant event")
	}

	memIdx := strings.Index(prompt, "# Memory")
	inputIdx := strings.Index(prompt, "# Input JSON:")
	if memIdx > inputIdx {
		t.Error("memory section must precede input JSON")
	}
}

func TestBuildPrompt_KnowledgeSection(t *testing.T) {
	def := promptDef()
	knowledge := []interface{}{
		map[string]interface{}{"id": "k1", "content": "fact one"},
	}

	prompt := BuildPrompt(def, map[string]interface{}{}, nil, knowledge)

	if !strings.Contains(prompt, "# Knowledge:") {
		t.Fatalf("missing knowledge section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "fact one") {
		t.Error("knowledge content should be rendered")
	}
}

func TestBuildPrompt_SortedInputKeys(t *testing.T) {
	def := promptDef()
	input := map[string]interface{}{"zeta": 1, "alpha": 2}

	prompt := BuildPrompt(def, input, nil, nil)

	alphaIdx := strings.Index(prompt, "\"alpha\"")
	zetaIdx := strings.Index(prompt, "\"zeta\"")
	if alphaIdx == -1 || zetaIdx == -1 || alphaIdx > zetaIdx {
		t.Errorf("input keys should serialize sorted:\n%s", prompt)
	}
}
