package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSessionStore persists sessions and events in a SQLite database.
type SQLiteSessionStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-session append serialization
}

// NewSQLiteSessionStore opens (or creates) the SQLite database at path.
func NewSQLiteSessionStore(path string) (*SQLiteSessionStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	s := &SQLiteSessionStore{db: db, locks: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session database: %w", err)
	}

	return s, nil
}

func (s *SQLiteSessionStore) migrate() error {
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

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		ts TEXT,
		meta TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// sessionLock returns the append mutex for a session id.
func (s *SQLiteSessionStore) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// CreateSession creates a new session and returns its id.
func (s *SQLiteSessionStore) CreateSession(agentID string) (string, error) {
	sessionID := uuid.NewString()
	createdAt := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, agent_id, created_at) VALUES (?, ?, ?)",
		sessionID, agentID, createdAt,
	)
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// GetSession returns the session with its events in insertion order,
// or (nil, nil) when the session does not exist.
func (s *SQLiteSessionStore) GetSession(sessionID string) (*Session, error) {
	row := s.db.QueryRow(
		"SELECT id, agent_id, created_at FROM sessions WHERE id = ?",
		sessionID,
	)

	var sess Session
	if err := row.Scan(&sess.SessionID, &sess.AgentID, &sess.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sess.Events = []Event{}

	rows, err := s.db.Query(
		"SELECT role, content, ts, meta FROM events WHERE session_id = ? ORDER BY id",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e Event
		var ts, meta sql.NullString
		if err := rows.Scan(&e.Role, &e.Content, &ts, &meta); err != nil {
			return nil, err
		}
		if ts.Valid {
			e.TS = ts.String
		}
		if meta.Valid && meta.String != "" {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(meta.String), &m); err == nil {
				e.Meta = m
			}
		}
		sess.Events = append(sess.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &sess, nil
}

// AppendEvents appends events to an existing session and returns the
// number appended. Appends for the same session are serialized so
// concurrent invocations keep per-session insertion order.
func (s *SQLiteSessionStore) AppendEvents(sessionID string, events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	var exists int
	err := s.db.QueryRow("SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&exists)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}

	appended := 0
	for _, e := range events {
		role := e.Role
		if role == "" {
			role = "user"
		}
		ts := e.TS
		if ts == "" {
			ts = time.Now().UTC().Format("2006-01-02T15:04:05Z")
		}
		var meta *string
		if e.Meta != nil {
			data, err := json.Marshal(e.Meta)
			if err == nil {
				str := string(data)
				meta = &str
			}
		}
		if _, err := tx.Exec(
			"INSERT INTO events (session_id, role, content, ts, meta) VALUES (?, ?, ?, ?, ?)",
			sessionID, role, e.Content, ts, meta,
		); err != nil {
			tx.Rollback()
			return 0, err
		}
		appended++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return appended, nil
}

// Close closes the database connection.
func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}
