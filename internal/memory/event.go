// Package memory holds conversational memory: the event model, the
// merge/truncation policy applied before prompt assembly, and the
// session store that persists events between invocations.
package memory

// Event is a single turn in conversation memory, either persisted in a
// session or supplied inline by the caller.
type Event struct {
	Role    string                 `json:"role"` // user, assistant, system
	Content string                 `json:"content"`
	TS      string                 `json:"ts,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// Policy bounds how much session memory feeds into a prompt.
// Both bounds apply; the narrower one wins.
type Policy struct {
	Mode        string `yaml:"mode" json:"mode"` // last_n
	MaxMessages int    `yaml:"max_messages" json:"max_messages"`
	MaxChars    int    `yaml:"max_chars" json:"max_chars"`
}

// DefaultPolicy returns the policy used when an agent declares none.
func DefaultPolicy() Policy {
	return Policy{Mode: "last_n", MaxMessages: 10, MaxChars: 8000}
}
