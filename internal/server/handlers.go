package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/agentgate-oss/agentgate/internal/agent"
	"github.com/agentgate-oss/agentgate/internal/engine"
	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
)

// --- Helpers ---

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorResponse writes a uniform error envelope. def may be nil when
// no agent could be resolved.
func (s *Server) errorResponse(w http.ResponseWriter, def *agent.Definition, err error) {
	status, body := engine.ErrorEnvelope(engine.NewRequestID(), def, err)
	jsonResponse(w, status, body)
}

// activeAgent resolves the configured active agent from the registry.
func (s *Server) activeAgent() (*agent.Definition, error) {
	record, err := s.registry.Get(s.cfg.ActiveAgent, "")
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, gateErrors.New(gateErrors.CodeInternalError,
			fmt.Sprintf("active agent not registered: %s", s.cfg.ActiveAgent))
	}
	return record.Definition, nil
}

func clientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// --- Service metadata ---

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	def, err := s.activeAgent()
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"service": s.cfg.Service,
		"agent":   def.ID,
		"version": def.Version,
		"schema":  "/schema",
		"health":  "/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	def, err := s.activeAgent()
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"agent":   def.ID,
		"version": def.Version,
		"backend": s.engine.Backend().Name(),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	def, err := s.activeAgent()
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	jsonResponse(w, http.StatusOK, schemaView(def))
}

func schemaView(def *agent.Definition) map[string]interface{} {
	return map[string]interface{}{
		"agent":         def.ID,
		"version":       def.Version,
		"primitive":     def.Primitive,
		"input_schema":  def.InputSchema,
		"output_schema": def.OutputSchema,
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, s.metrics.GetSummary())
}

// --- Invocation ---

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	def, err := s.activeAgent()
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	s.invokeAgent(w, r, def)
}

// invokeAgent runs the shared invocation path for an already-resolved
// agent: auth, rate limit, body read, then the engine pipeline.
func (s *Server) invokeAgent(w http.ResponseWriter, r *http.Request, def *agent.Definition) {
	if err := s.gate.Check(r); err != nil {
		status, body := s.engine.Reject(def, err)
		jsonResponse(w, status, body)
		return
	}
	if !s.limiter.Allow("invoke", clientID(r)) {
		status, body := s.engine.Reject(def, gateErrors.New(gateErrors.CodeRateLimited, "Too many requests"))
		jsonResponse(w, status, body)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		status, envelope := s.engine.Reject(def, gateErrors.New(gateErrors.CodeMalformedRequest, "Failed to read request body"))
		jsonResponse(w, status, envelope)
		return
	}
	defer r.Body.Close()

	status, envelope := s.engine.Invoke(r.Context(), def, body)
	jsonResponse(w, status, envelope)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	def, _ := s.activeAgent()
	s.rejectNotImplemented(w, r, def)
}

// rejectNotImplemented enforces auth, then reports the streaming
// endpoint as unimplemented.
func (s *Server) rejectNotImplemented(w http.ResponseWriter, r *http.Request, def *agent.Definition) {
	if err := s.gate.Check(r); err != nil {
		s.errorResponse(w, def, err)
		return
	}
	s.errorResponse(w, def, gateErrors.New(gateErrors.CodeNotImplemented, "Streaming endpoint is not implemented"))
}
