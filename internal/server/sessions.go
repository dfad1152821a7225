package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
	"github.com/agentgate-oss/agentgate/internal/memory"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	def, err := s.activeAgent()
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}

	sessionID, err := s.sessions.CreateSession(def.ID)
	if err != nil {
		s.errorResponse(w, def, err)
		return
	}
	jsonResponse(w, http.StatusCreated, map[string]interface{}{"session_id": sessionID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	if session == nil {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeNotFound, fmt.Sprintf("Session not found: %s", sessionID)))
		return
	}
	jsonResponse(w, http.StatusOK, session)
}

// handleAppendEvents appends caller-supplied conversation events to an
// existing session.
func (s *Server) handleAppendEvents(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeMalformedRequest, "Request body must be valid JSON"))
		return
	}
	defer r.Body.Close()

	rawEvents, present := payload["events"]
	if !present {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeMalformedRequest, "Request body must include 'events' array").
			WithDetails([]map[string]interface{}{{"message": "Missing 'events' field"}}))
		return
	}
	list, ok := rawEvents.([]interface{})
	if !ok {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeMalformedRequest, "'events' must be an array"))
		return
	}

	sessionID := r.PathValue("id")
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	if session == nil {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeNotFound, fmt.Sprintf("Session not found: %s", sessionID)))
		return
	}

	events := make([]memory.Event, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		event := memory.Event{}
		if role, ok := m["role"].(string); ok {
			event.Role = role
		}
		if content, ok := m["content"].(string); ok {
			event.Content = content
		}
		if ts, ok := m["ts"].(string); ok {
			event.TS = ts
		}
		if meta, ok := m["meta"].(map[string]interface{}); ok {
			event.Meta = meta
		}
		events = append(events, event)
	}

	appended, err := s.sessions.AppendEvents(sessionID, events)
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"session_id": sessionID,
		"appended":   appended,
	})
}
