package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists pool state as a single JSON document, rewritten
// atomically (write to a temp file, then rename) on every Save.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path. The parent directory
// is created if it does not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Save rewrites the state file wholesale.
func (s *FileStore) Save(state State) error {
	state.normalize()

	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credential state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace credential state: %w", err)
	}
	return nil
}

// Load reads the last saved state. A missing file yields an empty state
// with no error; an unreadable or corrupt file yields an empty state and
// the decode error, which the pool logs and ignores.
func (s *FileStore) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("failed to read credential state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("corrupt credential state file %q: %w", s.path, err)
	}
	return state, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
