package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLiteStore is the per-agent key/value store backed by a local sqlite
// file. One store belongs to exactly one agent process; nothing in the
// system shares a database. Values are JSON documents.
//
// A single connection guarded by a mutex is enough here: every agent
// serializes its own state mutations anyway.
type SQLiteStore struct {
	mu   sync.Mutex
	conn *sqlite.Conn
}

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// Open creates or opens the agent's store file. Use ":memory:" in tests.
func Open(path string) (*SQLiteStore, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create store schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

// Get loads the JSON value under key into the given struct. Returns
// false when the key has never been written.
func (s *SQLiteStore) Get(key string, into any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	found := false
	err := sqlitex.Execute(s.conn, `SELECT value FROM kv WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			raw = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return true, fmt.Errorf("failed to decode value for key %s: %w", key, err)
	}
	return true, nil
}

// Put stores a value under key, replacing any previous one.
func (s *SQLiteStore) Put(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = sqlitex.Execute(s.conn,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{key, string(raw)}})
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// EnsureDefaults writes each default value only if its key has never
// been set, mirroring the storage initials applied on first agent start.
func (s *SQLiteStore) EnsureDefaults(defaults map[string]any) error {
	for key, value := range defaults {
		var probe json.RawMessage
		found, err := s.Get(key, &probe)
		if err != nil {
			return err
		}
		if found {
			continue
		}
		if err := s.Put(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
