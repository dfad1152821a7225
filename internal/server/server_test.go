package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/agentgate-oss/agentgate/internal/backend"
	"github.com/agentgate-oss/agentgate/internal/config"
	"github.com/agentgate-oss/agentgate/internal/engine"
	"github.com/agentgate-oss/agentgate/internal/memory"
	"github.com/agentgate-oss/agentgate/internal/registry"
	"github.com/agentgate-oss/agentgate/internal/schema"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

func testAgentSpec(id, version string) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"version":     version,
		"name":        "Agent " + id,
		"description": "test agent",
		"primitive":   "transform",
		"prompt":      "Transform the input.",
		"input_schema": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"text"},
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
		},
		"output_schema": map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"result"},
			"properties": map[string]interface{}{
				"result": map[string]interface{}{"type": "string"},
			},
		},
	}
}

func newTestServer(t *testing.T, authToken string) *Server {
	t.Helper()

	dir := t.TempDir()
	validator := schema.NewValidator()

	store, err := registry.Open(filepath.Join(dir, "registry.db"), validator)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	sessions, err := memory.NewSQLiteSessionStore(filepath.Join(dir, "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sessions.Close() })

	if _, err := store.Register(testAgentSpec("summarizer", "0.1.0")); err != nil {
		t.Fatal(err)
	}

	logger := telemetry.NewLogger("text", false)
	metrics := telemetry.NewMetrics()
	eng := engine.New(validator, backend.NewStub(), sessions, metrics, logger)

	cfg := &config.Config{
		Service:     "agentgate",
		ActiveAgent: "summarizer",
		AuthToken:   authToken,
		CORSOrigins: "*",
		Backend:     config.BackendConfig{Name: "stub"},
	}
	return New(cfg, eng, store, sessions, metrics, logger)
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}, header map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response body is not JSON: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, decoded
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestHealthAndRoot(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if body["status"] != "ok" || body["agent"] != "summarizer" {
		t.Errorf("unexpected health body %v", body)
	}

	rec, body = doRequest(t, s, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("root status = %d", rec.Code)
	}
	if body["agent"] != "summarizer" {
		t.Errorf("unexpected root body %v", body)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodGet, "/schema", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["agent"] != "summarizer" || body["primitive"] != "transform" {
		t.Errorf("unexpected schema view %v", body)
	}
	if _, ok := body["input_schema"].(map[string]interface{}); !ok {
		t.Error("missing input_schema")
	}
}

func TestInvokeActiveAgent(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodPost, "/invoke",
		map[string]interface{}{"input": map[string]interface{}{"text": "hello"}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	output, ok := body["output"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected output object, got %v", body)
	}
	if output["result"] != "stub" {
		t.Errorf("unexpected output %v", output)
	}
	meta, _ := body["meta"].(map[string]interface{})
	if meta["agent"] != "summarizer" || meta["version"] != "0.1.0" {
		t.Errorf("unexpected meta %v", meta)
	}
}

func TestInvokeMalformedBody(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodPost, "/invoke", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, body); code != "MALFORMED_REQUEST" {
		t.Errorf("code = %q", code)
	}
}

func TestInvokeRequiresAuth(t *testing.T) {
	s := newTestServer(t, "secret")

	rec, body := doRequest(t, s, http.MethodPost, "/invoke",
		map[string]interface{}{"input": map[string]interface{}{"text": "hi"}}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "UNAUTHORIZED" {
		t.Errorf("code = %q", code)
	}

	rec, _ = doRequest(t, s, http.MethodPost, "/invoke",
		map[string]interface{}{"input": map[string]interface{}{"text": "hi"}},
		map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("authorized status = %d", rec.Code)
	}
}

func TestStreamNotImplemented(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodPost, "/stream", map[string]interface{}{}, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "NOT_IMPLEMENTED" {
		t.Errorf("code = %q", code)
	}
}

func TestRegisterAgentJSONSpec(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodPost, "/agents/register",
		map[string]interface{}{"spec": testAgentSpec("classifier", "1.0.0")}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["ok"] != true || body["agent_id"] != "classifier" || body["status"] != "registered" {
		t.Errorf("unexpected body %v", body)
	}

	rec, body = doRequest(t, s, http.MethodGet, "/agents/classifier", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if body["version"] != "1.0.0" || body["primitive"] != "transform" {
		t.Errorf("unexpected agent body %v", body)
	}
}

func TestRegisterAgentYAMLSpec(t *testing.T) {
	s := newTestServer(t, "")

	spec := "id: labeler\nversion: 0.1.0\nname: Labeler\nprimitive: classify\nprompt: Label it.\n" +
		"input_schema:\n  type: object\noutput_schema:\n  type: object\n"
	rec, body := doRequest(t, s, http.MethodPost, "/agents/register",
		map[string]interface{}{"spec": spec}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["agent_id"] != "labeler" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestRegisterAgentErrors(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodPost, "/agents/register",
		map[string]interface{}{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing spec status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "AGENT_SPEC_INVALID" {
		t.Errorf("code = %q", code)
	}

	rec, body = doRequest(t, s, http.MethodPost, "/agents/register",
		map[string]interface{}{"spec": "id: [unclosed"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad yaml status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "AGENT_SPEC_INVALID" {
		t.Errorf("code = %q", code)
	}

	rec, body = doRequest(t, s, http.MethodPost, "/agents/register",
		map[string]interface{}{"spec": 42}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "AGENT_SPEC_INVALID" {
		t.Errorf("code = %q", code)
	}

	rec, body = doRequest(t, s, http.MethodPost, "/agents/register",
		map[string]interface{}{"spec": testAgentSpec("summarizer", "0.1.0")}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "AGENT_VERSION_EXISTS" {
		t.Errorf("code = %q", code)
	}
}

func TestListAgents(t *testing.T) {
	s := newTestServer(t, "")

	if _, body := doRequest(t, s, http.MethodPost, "/agents/register",
		map[string]interface{}{"spec": testAgentSpec("summarizer", "0.2.0")}, nil); body["ok"] != true {
		t.Fatalf("register failed: %v", body)
	}

	rec, body := doRequest(t, s, http.MethodGet, "/agents", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	agents, ok := body["agents"].([]interface{})
	if !ok || len(agents) != 1 {
		t.Fatalf("expected one latest agent, got %v", body)
	}
	first, _ := agents[0].(map[string]interface{})
	if first["version"] != "0.2.0" {
		t.Errorf("expected latest version, got %v", first)
	}

	rec, body = doRequest(t, s, http.MethodGet, "/agents?latest_only=false", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if agents, _ := body["agents"].([]interface{}); len(agents) != 2 {
		t.Errorf("expected both versions, got %v", body)
	}
}

func TestGetAgentNotFound(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodGet, "/agents/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "AGENT_NOT_FOUND" {
		t.Errorf("code = %q", code)
	}
}

func TestAgentExamples(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodGet, "/agents/summarizer/examples", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	if body["agent"] != "summarizer" {
		t.Errorf("unexpected body %v", body)
	}
	example, ok := body["example"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected example object, got %v", body)
	}
	if _, ok := example["input"].(map[string]interface{}); !ok {
		t.Error("example missing input object")
	}

	rec, body = doRequest(t, s, http.MethodGet, "/agents/missing/examples", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing example status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "EXAMPLE_NOT_FOUND" {
		t.Errorf("code = %q", code)
	}
}

func TestArchiveLifecycle(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodPost, "/agents/summarizer/archive", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d, body %v", rec.Code, body)
	}
	if body["status"] != "archived" {
		t.Errorf("unexpected body %v", body)
	}

	_, body = doRequest(t, s, http.MethodGet, "/agents", nil, nil)
	if agents, _ := body["agents"].([]interface{}); len(agents) != 0 {
		t.Errorf("archived agent listed: %v", body)
	}

	rec, body = doRequest(t, s, http.MethodPost, "/agents/summarizer/unarchive", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unarchive status = %d", rec.Code)
	}
	if body["status"] != "active" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestInvokeRegisteredAgentByID(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodPost, "/agents/summarizer/invoke",
		map[string]interface{}{"input": map[string]interface{}{"text": "hello"}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", rec.Code, body)
	}
	meta, _ := body["meta"].(map[string]interface{})
	if meta["agent"] != "summarizer" {
		t.Errorf("unexpected meta %v", meta)
	}

	rec, body = doRequest(t, s, http.MethodPost, "/agents/missing/invoke",
		map[string]interface{}{"input": map[string]interface{}{}}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing agent status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "AGENT_NOT_FOUND" {
		t.Errorf("code = %q", code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodPost, "/sessions", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", rec.Code, body)
	}
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" {
		t.Fatal("missing session_id")
	}

	rec, body = doRequest(t, s, http.MethodPost, "/sessions/"+sessionID+"/events",
		map[string]interface{}{"events": []interface{}{
			map[string]interface{}{"role": "user", "content": "hi"},
			map[string]interface{}{"role": "assistant", "content": "hello"},
		}}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("append status = %d, body %v", rec.Code, body)
	}
	if body["appended"] != float64(2) {
		t.Errorf("unexpected append body %v", body)
	}

	rec, body = doRequest(t, s, http.MethodGet, "/sessions/"+sessionID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if body["agent_id"] != "summarizer" {
		t.Errorf("unexpected session %v", body)
	}
	if events, _ := body["events"].([]interface{}); len(events) != 2 {
		t.Errorf("expected two events, got %v", body)
	}
}

func TestSessionErrors(t *testing.T) {
	s := newTestServer(t, "")

	rec, body := doRequest(t, s, http.MethodGet, "/sessions/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "NOT_FOUND" {
		t.Errorf("code = %q", code)
	}

	rec, body = doRequest(t, s, http.MethodPost, "/sessions/nope/events",
		map[string]interface{}{"events": []interface{}{}}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	_, created := doRequest(t, s, http.MethodPost, "/sessions", nil, nil)
	sessionID, _ := created["session_id"].(string)

	rec, body = doRequest(t, s, http.MethodPost, "/sessions/"+sessionID+"/events",
		map[string]interface{}{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing events status = %d", rec.Code)
	}
	if code := errorCode(t, body); code != "MALFORMED_REQUEST" {
		t.Errorf("code = %q", code)
	}

	rec, _ = doRequest(t, s, http.MethodPost, "/sessions/"+sessionID+"/events",
		map[string]interface{}{"events": "nope"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-array events status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/invoke", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Errorf("allow origin = %q", got)
	}
}
