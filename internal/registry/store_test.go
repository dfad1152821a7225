package registry

import (
	"os"
	"path/filepath"
	"testing"

	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
	"github.com/agentgate-oss/agentgate/internal/schema"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "registry.db"), schema.NewValidator())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSpec(id, version string) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"version":     version,
		"name":        "Agent " + id,
		"description": "test agent",
		"primitive":   "transform",
		"prompt":      "Do the thing.",
		"input_schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
		},
		"output_schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"result": map[string]interface{}{"type": "string"},
			},
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	store := openTestStore(t)

	def, err := store.Register(testSpec("summarizer", "0.1.0"))
	if err != nil {
		t.Fatal(err)
	}
	if def.ID != "summarizer" {
		t.Errorf("unexpected id %q", def.ID)
	}

	record, err := store.Get("summarizer", "")
	if err != nil {
		t.Fatal(err)
	}
	if record == nil {
		t.Fatal("expected record")
	}
	if record.Definition.Version != "0.1.0" {
		t.Errorf("unexpected version %q", record.Definition.Version)
	}
	if record.Archived {
		t.Error("new agents should not be archived")
	}
}

func TestRegister_DuplicateVersion(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Register(testSpec("summarizer", "0.1.0")); err != nil {
		t.Fatal(err)
	}
	_, err := store.Register(testSpec("summarizer", "0.1.0"))
	if gateErrors.AsCode(err) != gateErrors.CodeAgentVersionExists {
		t.Errorf("expected AGENT_VERSION_EXISTS, got %v", err)
	}
}

func TestRegister_InvalidSpec(t *testing.T) {
	store := openTestStore(t)

	spec := testSpec("summarizer", "0.1.0")
	delete(spec, "prompt")
	_, err := store.Register(spec)
	if gateErrors.AsCode(err) != gateErrors.CodeAgentSpecInvalid {
		t.Errorf("expected AGENT_SPEC_INVALID, got %v", err)
	}
}

func TestGet_LatestVersion(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Register(testSpec("summarizer", "0.1.0")); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Register(testSpec("summarizer", "0.2.0")); err != nil {
		t.Fatal(err)
	}

	record, err := store.Get("summarizer", "")
	if err != nil {
		t.Fatal(err)
	}
	if record.Definition.Version != "0.2.0" {
		t.Errorf("expected latest version 0.2.0, got %q", record.Definition.Version)
	}

	record, err = store.Get("summarizer", "0.1.0")
	if err != nil {
		t.Fatal(err)
	}
	if record.Definition.Version != "0.1.0" {
		t.Errorf("expected exact version 0.1.0, got %q", record.Definition.Version)
	}
}

func TestGet_Missing(t *testing.T) {
	store := openTestStore(t)

	record, err := store.Get("absent", "")
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Errorf("expected nil for missing agent, got %+v", record)
	}
}

func TestList_LatestOnly(t *testing.T) {
	store := openTestStore(t)

	for _, v := range []string{"0.1.0", "0.2.0"} {
		if _, err := store.Register(testSpec("summarizer", v)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Register(testSpec("classifier", "1.0.0")); err != nil {
		t.Fatal(err)
	}

	summaries, err := store.List(ListFilter{LatestOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 latest agents, got %d", len(summaries))
	}
	// Sorted by id.
	if summaries[0].ID != "classifier" || summaries[1].ID != "summarizer" {
		t.Errorf("unexpected order: %v, %v", summaries[0].ID, summaries[1].ID)
	}
	if summaries[1].Version != "0.2.0" {
		t.Errorf("expected newest version, got %q", summaries[1].Version)
	}

	all, err := store.List(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 versions without latest_only, got %d", len(all))
	}
}

func TestList_Filters(t *testing.T) {
	store := openTestStore(t)

	memSpec := testSpec("rememberer", "1.0.0")
	memSpec["supports_memory"] = true
	memSpec["primitive"] = "chat"
	if _, err := store.Register(memSpec); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Register(testSpec("summarizer", "1.0.0")); err != nil {
		t.Fatal(err)
	}

	byQuery, err := store.List(ListFilter{Query: "SUMMA", LatestOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(byQuery) != 1 || byQuery[0].ID != "summarizer" {
		t.Errorf("query filter failed: %v", byQuery)
	}

	byPrimitive, err := store.List(ListFilter{Primitive: "chat", LatestOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(byPrimitive) != 1 || byPrimitive[0].ID != "rememberer" {
		t.Errorf("primitive filter failed: %v", byPrimitive)
	}

	yes := true
	byMemory, err := store.List(ListFilter{SupportsMemory: &yes, LatestOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(byMemory) != 1 || byMemory[0].ID != "rememberer" {
		t.Errorf("supports_memory filter failed: %v", byMemory)
	}
}

func TestArchiveUnarchive(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.Register(testSpec("summarizer", "0.1.0")); err != nil {
		t.Fatal(err)
	}

	if err := store.Archive("summarizer", ""); err != nil {
		t.Fatal(err)
	}

	live, err := store.List(ListFilter{LatestOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 0 {
		t.Errorf("archived agents should not list by default, got %v", live)
	}

	withArchived, err := store.List(ListFilter{LatestOnly: true, IncludeArchived: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(withArchived) != 1 || !withArchived[0].Archived {
		t.Errorf("expected archived agent in listing, got %v", withArchived)
	}

	if err := store.Unarchive("summarizer", ""); err != nil {
		t.Fatal(err)
	}
	live, err = store.List(ListFilter{LatestOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 {
		t.Errorf("unarchived agent should list again, got %v", live)
	}
}

func TestArchive_NotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.Archive("absent", "")
	if gateErrors.AsCode(err) != gateErrors.CodeAgentNotFound {
		t.Errorf("expected AGENT_NOT_FOUND, got %v", err)
	}
}

func TestRegister_BumpsNotifier(t *testing.T) {
	store := openTestStore(t)

	before := store.Notifier().Version()
	if _, err := store.Register(testSpec("summarizer", "0.1.0")); err != nil {
		t.Fatal(err)
	}
	if store.Notifier().Version() != before+1 {
		t.Error("register should bump the change version")
	}
}

func TestSeedFromPresets(t *testing.T) {
	store := openTestStore(t)
	log := telemetry.NewLogger("text", false)

	dir := t.TempDir()
	preset := `id: summarizer
version: 0.1.0
name: Summarizer
description: Summarizes text
primitive: transform
prompt: Summarize the input text.
input_schema:
  type: object
output_schema:
  type: object
`
	if err := os.WriteFile(filepath.Join(dir, "summarizer.yaml"), []byte(preset), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("id: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}

	seeded, err := store.SeedFromPresets(dir, log)
	if err != nil {
		t.Fatal(err)
	}
	if seeded != 1 {
		t.Errorf("expected 1 seeded agent, got %d", seeded)
	}

	// A non-empty registry is never reseeded.
	seeded, err = store.SeedFromPresets(dir, log)
	if err != nil {
		t.Fatal(err)
	}
	if seeded != 0 {
		t.Errorf("expected no reseed, got %d", seeded)
	}
}
