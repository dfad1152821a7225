// Package registry persists versioned agent definitions in SQLite and
// notifies listeners on every change.
package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentgate-oss/agentgate/internal/agent"
	gateErrors "github.com/agentgate-oss/agentgate/internal/errors"
	"github.com/agentgate-oss/agentgate/internal/schema"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

// Summary is the list-view projection of a registered agent version.
type Summary struct {
	ID             string   `json:"id"`
	Version        string   `json:"version"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Primitive      string   `json:"primitive"`
	SupportsMemory bool     `json:"supports_memory"`
	Tags           []string `json:"tags,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	Archived       bool     `json:"archived"`
}

// Record is a full registered agent version.
type Record struct {
	Definition *agent.Definition
	CreatedAt  int64
	Archived   bool
}

// ListFilter narrows List results. The zero value lists every live
// version of every agent.
type ListFilter struct {
	Query           string
	Primitive       string
	SupportsMemory  *bool
	LatestOnly      bool
	IncludeArchived bool
}

// Store is a SQLite-backed agent registry. Writes go through the
// validator so only well-formed specs are ever persisted.
type Store struct {
	db        *sql.DB
	validator *schema.Validator
	notifier  *Notifier
}

// Open opens (or creates) the registry database at path.
func Open(path string, validator *schema.Validator) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	s := &Store{db: db, validator: validator, notifier: NewNotifier()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate registry database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=3000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return err
		}
	}

	ddl := `
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT NOT NULL,
		version TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		primitive TEXT NOT NULL,
		supports_memory INTEGER NOT NULL,
		tags TEXT,
		spec_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_agents_id ON agents (id);
	CREATE INDEX IF NOT EXISTS idx_agents_primitive ON agents (primitive);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Notifier exposes the change broadcaster for watch endpoints.
func (s *Store) Notifier() *Notifier {
	return s.notifier
}

// Register validates a raw spec and stores it as a new agent version.
// A duplicate (id, version) pair is AGENT_VERSION_EXISTS.
func (s *Store) Register(spec map[string]interface{}) (*agent.Definition, error) {
	def, err := agent.NormalizeSpec(spec, s.validator)
	if err != nil {
		return nil, err
	}

	var exists int
	err = s.db.QueryRow("SELECT 1 FROM agents WHERE id = ? AND version = ?", def.ID, def.Version).Scan(&exists)
	switch {
	case err == nil:
		return nil, gateErrors.New(gateErrors.CodeAgentVersionExists,
			fmt.Sprintf("agent version already exists: %s@%s", def.ID, def.Version))
	case err != sql.ErrNoRows:
		return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "registry lookup failed", err)
	}

	specJSON, err := json.Marshal(def)
	if err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "failed to serialize spec", err)
	}
	var tagsJSON interface{}
	if def.Tags != nil {
		raw, err := json.Marshal(def.Tags)
		if err != nil {
			return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "failed to serialize tags", err)
		}
		tagsJSON = string(raw)
	}

	_, err = s.db.Exec(`
		INSERT INTO agents (id, version, name, description, primitive, supports_memory, tags, spec_json, created_at, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		def.ID, def.Version, def.Name, def.Description, def.Primitive,
		boolToInt(def.SupportsMemory), tagsJSON, string(specJSON), time.Now().UnixNano(),
	)
	if err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "failed to insert agent", err)
	}

	s.notifier.Notify()
	return def, nil
}

// List returns agent summaries matching the filter. With LatestOnly,
// only the newest version per agent id is returned.
func (s *Store) List(filter ListFilter) ([]Summary, error) {
	var clauses []string
	var params []interface{}

	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(id) LIKE ?)")
		params = append(params, like, like, like)
	}
	if filter.Primitive != "" {
		clauses = append(clauses, "primitive = ?")
		params = append(params, filter.Primitive)
	}
	if filter.SupportsMemory != nil {
		clauses = append(clauses, "supports_memory = ?")
		params = append(params, boolToInt(*filter.SupportsMemory))
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "archived = 0")
	}

	whereSQL := ""
	if len(clauses) > 0 {
		whereSQL = "WHERE " + strings.Join(clauses, " AND ")
	}

	var query string
	if filter.LatestOnly {
		query = fmt.Sprintf(`
			SELECT id, version, name, description, primitive, supports_memory, tags, created_at, archived
			FROM (
				SELECT a.*, ROW_NUMBER() OVER (
					PARTITION BY a.id
					ORDER BY a.created_at DESC, a.rowid DESC
				) AS rn
				FROM agents a
				%s
			)
			WHERE rn = 1
			ORDER BY id`, whereSQL)
	} else {
		query = fmt.Sprintf(`
			SELECT id, version, name, description, primitive, supports_memory, tags, created_at, archived
			FROM agents
			%s
			ORDER BY id, created_at DESC, rowid DESC`, whereSQL)
	}

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "registry query failed", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sum Summary
		var supportsMemory int
		var archived int
		var tagsJSON sql.NullString
		if err := rows.Scan(&sum.ID, &sum.Version, &sum.Name, &sum.Description, &sum.Primitive,
			&supportsMemory, &tagsJSON, &sum.CreatedAt, &archived); err != nil {
			return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "registry scan failed", err)
		}
		sum.SupportsMemory = supportsMemory != 0
		sum.Archived = archived != 0
		if tagsJSON.Valid && tagsJSON.String != "" {
			// Unparseable tags degrade to none rather than failing the listing.
			_ = json.Unmarshal([]byte(tagsJSON.String), &sum.Tags)
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Get returns the agent record for id, at the exact version when given,
// otherwise the newest version. Missing agents return (nil, nil).
func (s *Store) Get(id, version string) (*Record, error) {
	var row *sql.Row
	if version != "" {
		row = s.db.QueryRow(
			"SELECT spec_json, created_at, archived FROM agents WHERE id = ? AND version = ?",
			id, version)
	} else {
		row = s.db.QueryRow(
			"SELECT spec_json, created_at, archived FROM agents WHERE id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1",
			id)
	}

	var specJSON string
	var createdAt int64
	var archived int
	err := row.Scan(&specJSON, &createdAt, &archived)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "registry lookup failed", err)
	}

	var def agent.Definition
	if err := json.Unmarshal([]byte(specJSON), &def); err != nil {
		return nil, gateErrors.Wrap(gateErrors.CodeRegistryError, "corrupt stored spec", err)
	}

	return &Record{Definition: &def, CreatedAt: createdAt, Archived: archived != 0}, nil
}

// Archive marks an agent (all versions, or one) archived.
func (s *Store) Archive(id, version string) error {
	return s.setArchived(id, version, true)
}

// Unarchive restores an archived agent.
func (s *Store) Unarchive(id, version string) error {
	return s.setArchived(id, version, false)
}

func (s *Store) setArchived(id, version string, archived bool) error {
	var res sql.Result
	var err error
	if version != "" {
		res, err = s.db.Exec("UPDATE agents SET archived = ? WHERE id = ? AND version = ?",
			boolToInt(archived), id, version)
	} else {
		res, err = s.db.Exec("UPDATE agents SET archived = ? WHERE id = ?", boolToInt(archived), id)
	}
	if err != nil {
		return gateErrors.Wrap(gateErrors.CodeRegistryError, "registry update failed", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return gateErrors.Wrap(gateErrors.CodeRegistryError, "registry update failed", err)
	}
	if affected == 0 {
		return gateErrors.New(gateErrors.CodeAgentNotFound, fmt.Sprintf("agent not found: %s", id))
	}

	s.notifier.Notify()
	return nil
}

// Count returns the total number of stored agent versions.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM agents").Scan(&count); err != nil {
		return 0, gateErrors.Wrap(gateErrors.CodeRegistryError, "registry count failed", err)
	}
	return count, nil
}

// SeedFromPresets registers every preset in dir when the registry is
// empty. Invalid presets are skipped with a warning; duplicates are
// ignored. Returns the number of seeded agents.
func (s *Store) SeedFromPresets(dir string, log *telemetry.Logger) (int, error) {
	count, err := s.Count()
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	paths, err := agent.ListPresetFiles(dir)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for _, path := range paths {
		def, err := agent.LoadPresetFile(path, s.validator)
		if err != nil {
			log.Warn("skipping preset", "path", path, "error", err)
			continue
		}
		spec := map[string]interface{}{}
		raw, err := json.Marshal(def)
		if err == nil {
			err = json.Unmarshal(raw, &spec)
		}
		if err != nil {
			log.Warn("skipping preset", "path", path, "error", err)
			continue
		}
		if _, err := s.Register(spec); err != nil {
			if gateErrors.AsCode(err) == gateErrors.CodeAgentVersionExists {
				continue
			}
			log.Warn("skipping preset", "path", path, "error", err)
			continue
		}
		seeded++
	}
	return seeded, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
