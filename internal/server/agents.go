package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentgate-oss/agentgate/internal/agent"
	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
	"github.com/agentgate-oss/agentgate/internal/registry"
)

func parseBool(value string) *bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		v := true
		return &v
	case "false", "0", "no":
		v := false
		return &v
	}
	return nil
}

// handleRegisterAgent registers a spec supplied either as a YAML string
// or an inline JSON object under the "spec" key.
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Check(r); err != nil {
		s.errorResponse(w, nil, err)
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeMalformedRequest, "Request body must be valid JSON"))
		return
	}
	defer r.Body.Close()

	rawSpec, present := payload["spec"]
	if !present {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeAgentSpecInvalid, "Missing 'spec' field"))
		return
	}

	var spec map[string]interface{}
	switch v := rawSpec.(type) {
	case string:
		if err := yaml.Unmarshal([]byte(v), &spec); err != nil {
			s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeAgentSpecInvalid, "Spec must be valid YAML").
				WithDetails(map[string]interface{}{"message": err.Error()}))
			return
		}
	case map[string]interface{}:
		spec = v
	default:
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeAgentSpecInvalid, "Spec must be a YAML string or JSON object"))
		return
	}

	def, err := s.registry.Register(spec)
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"agent_id": def.ID,
		"version":  def.Version,
		"status":   "registered",
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := registry.ListFilter{
		Query:          query.Get("q"),
		Primitive:      query.Get("primitive"),
		SupportsMemory: parseBool(query.Get("supports_memory")),
		LatestOnly:     true,
	}
	if v := parseBool(query.Get("latest_only")); v != nil {
		filter.LatestOnly = *v
	}
	if v := parseBool(query.Get("include_archived")); v != nil {
		filter.IncludeArchived = *v
	}

	agents, err := s.registry.List(filter)
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{"agents": agents})
}

// resolveAgent fetches an agent record by path id and optional
// ?version=; a missing agent writes AGENT_NOT_FOUND and returns nil.
func (s *Server) resolveAgent(w http.ResponseWriter, r *http.Request) *registry.Record {
	id := r.PathValue("id")
	record, err := s.registry.Get(id, r.URL.Query().Get("version"))
	if err != nil {
		s.errorResponse(w, nil, err)
		return nil
	}
	if record == nil {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeAgentNotFound, fmt.Sprintf("Agent not found: %s", id)))
		return nil
	}
	return record
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	record := s.resolveAgent(w, r)
	if record == nil {
		return
	}

	def := record.Definition
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"id":              def.ID,
		"version":         def.Version,
		"name":            def.Name,
		"description":     def.Description,
		"primitive":       def.Primitive,
		"prompt":          def.Prompt,
		"input_schema":    def.InputSchema,
		"output_schema":   def.OutputSchema,
		"supports_memory": def.SupportsMemory,
		"memory_policy":   def.MemoryPolicy,
		"tags":            def.Tags,
		"created_at":      record.CreatedAt,
		"archived":        record.Archived,
	})
}

func (s *Server) handleAgentSchema(w http.ResponseWriter, r *http.Request) {
	record := s.resolveAgent(w, r)
	if record == nil {
		return
	}
	jsonResponse(w, http.StatusOK, schemaView(record.Definition))
}

// handleAgentExamples serves the bundled request/response example for
// preset-backed agents. Custom registrations have no example; the
// lookup is by id alone and does not consult the registry.
func (s *Server) handleAgentExamples(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	example := agent.Example(id)
	if example == nil {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeExampleNotFound, fmt.Sprintf("No example found for agent: %s", id)))
		return
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"agent":   id,
		"example": example,
	})
}

func (s *Server) handleArchiveAgent(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, true)
}

func (s *Server) handleUnarchiveAgent(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, false)
}

func (s *Server) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	if err := s.gate.Check(r); err != nil {
		s.errorResponse(w, nil, err)
		return
	}

	id := r.PathValue("id")
	version := r.URL.Query().Get("version")

	var err error
	status := "active"
	if archived {
		err = s.registry.Archive(id, version)
		status = "archived"
	} else {
		err = s.registry.Unarchive(id, version)
	}
	if err != nil {
		s.errorResponse(w, nil, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"agent_id": id,
		"version":  version,
		"status":   status,
	})
}

func (s *Server) handleInvokeAgent(w http.ResponseWriter, r *http.Request) {
	record := s.resolveAgent(w, r)
	if record == nil {
		return
	}
	s.invokeAgent(w, r, record.Definition)
}

func (s *Server) handleStreamAgent(w http.ResponseWriter, r *http.Request) {
	record := s.resolveAgent(w, r)
	if record == nil {
		return
	}
	s.rejectNotImplemented(w, r, record.Definition)
}

const (
	updatesWaitTimeout = 15 * time.Second
)

// handleAgentUpdates streams registry changes as server-sent events.
// Clients get a comment on connect, an agent_created event per change,
// and keepalive comments while idle.
func (s *Server) handleAgentUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, nil, gateErrors.New(gateErrors.CodeInternalError, "streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	notifier := s.registry.Notifier()
	lastSeen := notifier.Version()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		version := notifier.Wait(r.Context(), lastSeen, updatesWaitTimeout)
		if r.Context().Err() != nil {
			return
		}
		if version != lastSeen {
			lastSeen = version
			payload, _ := json.Marshal(map[string]interface{}{"version": version})
			fmt.Fprintf(w, "event: agent_created\ndata: %s\n\n", payload)
		} else {
			fmt.Fprint(w, ": keepalive\n\n")
		}
		flusher.Flush()
	}
}
