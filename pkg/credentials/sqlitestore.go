package credentials

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore persists pool state as a single-row wholesale snapshot in a
// SQLite database. It carries the same semantics as FileStore with the
// durability characteristics of WAL-mode SQLite, and suits deployments
// that already keep other state in a database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and prepares
// the snapshot table.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		dbPath, int((5 * time.Second).Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	schema := `
	CREATE TABLE IF NOT EXISTS credential_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save rewrites the snapshot row wholesale.
func (s *SQLiteStore) Save(state State) error {
	state.normalize()

	data, err := json.Marshal(&state)
	if err != nil {
		return fmt.Errorf("failed to encode credential state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO credential_state (id, state, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential state: %w", err)
	}
	return nil
}

// Load reads the snapshot row. An empty database yields an empty state
// with no error; an undecodable row yields an empty state and the decode
// error.
func (s *SQLiteStore) Load() (State, error) {
	var data string
	err := s.db.QueryRow(`SELECT state FROM credential_state WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load credential state: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return State{}, fmt.Errorf("corrupt credential state row: %w", err)
	}
	return state, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
