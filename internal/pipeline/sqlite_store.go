package pipeline

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"nlq/internal/intent"
)

// SQLiteStore persists suspended pipelines in a local SQLite database so
// clarifications survive a process restart. Expiry is an expires_at column;
// expired rows are purged lazily on access.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the state database at path.
// ttl <= 0 means DefaultStateTTL.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS pipeline_states (
		request_id          TEXT PRIMARY KEY,
		original_query      TEXT NOT NULL,
		intent_json         TEXT NOT NULL,
		missing_fields_json TEXT NOT NULL,
		expires_at          INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state schema: %w", err)
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Save upserts a state with a fresh TTL and sweeps any expired rows.
func (s *SQLiteStore) Save(state State) error {
	intentJSON, err := json.Marshal(state.Intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	missingJSON, err := json.Marshal(state.MissingFields)
	if err != nil {
		return fmt.Errorf("failed to marshal missing fields: %w", err)
	}

	nowUnix := s.now().Unix()
	if _, err := s.db.Exec(`DELETE FROM pipeline_states WHERE expires_at <= ?`, nowUnix); err != nil {
		return fmt.Errorf("failed to purge expired states: %w", err)
	}

	_, err = s.db.Exec(`INSERT OR REPLACE INTO pipeline_states
		(request_id, original_query, intent_json, missing_fields_json, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		state.RequestID, state.OriginalQuery, string(intentJSON), string(missingJSON),
		nowUnix+int64(s.ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load returns a saved state, or ErrStateNotFound if absent or expired.
// Expired rows are deleted on the way out.
func (s *SQLiteStore) Load(requestID string) (State, error) {
	var (
		state       State
		intentJSON  string
		missingJSON string
		expiresAt   int64
	)
	err := s.db.QueryRow(`SELECT request_id, original_query, intent_json, missing_fields_json, expires_at
		FROM pipeline_states WHERE request_id = ?`, requestID).
		Scan(&state.RequestID, &state.OriginalQuery, &intentJSON, &missingJSON, &expiresAt)
	if err == sql.ErrNoRows {
		return State{}, ErrStateNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load state: %w", err)
	}

	if s.now().Unix() >= expiresAt {
		s.db.Exec(`DELETE FROM pipeline_states WHERE request_id = ?`, requestID)
		return State{}, ErrStateNotFound
	}

	var raw intent.RawIntent
	if err := json.Unmarshal([]byte(intentJSON), &raw); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal stored intent: %w", err)
	}
	state.Intent = raw
	if err := json.Unmarshal([]byte(missingJSON), &state.MissingFields); err != nil {
		return State{}, fmt.Errorf("failed to unmarshal stored missing fields: %w", err)
	}
	return state, nil
}

// Delete removes a state. Deleting an absent state is not an error.
func (s *SQLiteStore) Delete(requestID string) error {
	if _, err := s.db.Exec(`DELETE FROM pipeline_states WHERE request_id = ?`, requestID); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
