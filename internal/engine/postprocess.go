package engine

import (
	"github.com/agentgate-oss/agentgate/internal/agent"
)

// postprocessOutput applies small contract-driven fixups after a valid
// completion.
//
// Extractor agents promise a data key for every field named in the
// input's schema map. The output schema cannot enforce that (the field
// names are request-specific), so missing fields are filled with "".
func postprocessOutput(def *agent.Definition, input interface{}, output map[string]interface{}) map[string]interface{} {
	if def.ID != "extractor" {
		return output
	}

	inputMap, ok := input.(map[string]interface{})
	if !ok {
		return output
	}
	schemaMap, ok := inputMap["schema"].(map[string]interface{})
	if !ok {
		return output
	}

	data, ok := output["data"].(map[string]interface{})
	if !ok {
		data = map[string]interface{}{}
		output["data"] = data
	}

	for fieldName := range schemaMap {
		if _, present := data[fieldName]; !present {
			data[fieldName] = ""
		}
	}

	return output
}
