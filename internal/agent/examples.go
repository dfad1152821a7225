package agent

import (
	_ "embed"
	"encoding/json"
	"sync"
)

//go:embed examples.json
var examplesJSON []byte

var (
	examplesOnce sync.Once
	examples     map[string]map[string]interface{}
)

// Example returns the bundled plug-and-play request/response example for
// an agent id, or nil when none is shipped. Examples are documentation
// for preset-backed agents; custom registrations have none.
func Example(agentID string) map[string]interface{} {
	examplesOnce.Do(func() {
		if err := json.Unmarshal(examplesJSON, &examples); err != nil {
			examples = map[string]map[string]interface{}{}
		}
	})
	return examples[agentID]
}
