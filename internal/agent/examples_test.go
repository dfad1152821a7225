package agent

import "testing"

func TestExample_KnownAgents(t *testing.T) {
	for _, id := range []string{"summarizer", "extractor", "classifier"} {
		example := Example(id)
		if example == nil {
			t.Errorf("expected bundled example for %s", id)
			continue
		}
		if _, ok := example["input"].(map[string]interface{}); !ok {
			t.Errorf("%s example missing input object", id)
		}
		if _, ok := example["output"].(map[string]interface{}); !ok {
			t.Errorf("%s example missing output object", id)
		}
	}
}

func TestExample_UnknownAgent(t *testing.T) {
	if Example("no-such-agent") != nil {
		t.Error("unknown agent should have no example")
	}
}
