package memory

// Session is a stored conversation with its ordered events.
type Session struct {
	SessionID string  `json:"session_id"`
	AgentID   string  `json:"agent_id"`
	CreatedAt string  `json:"created_at"`
	Events    []Event `json:"events"`
}

// SessionStore persists sessions and their events.
//
// GetSession returns (nil, nil) for unknown session ids so a stale
// session reference degrades to empty history instead of failing the
// invocation. AppendEvents must serialize appends per session id.
type SessionStore interface {
	CreateSession(agentID string) (string, error)
	GetSession(sessionID string) (*Session, error)
	AppendEvents(sessionID string, events []Event) (int, error)
	Close() error
}
