// Package store persists the current session identifier across runs.
package store

import (
	"os"
	"path/filepath"
	"strings"
)

// Store resolves and persists the session id. Resolution order on load is
// the explicit override first (flag or environment, standing in for a deep
// link), then the state file, else absent. No expiry or invalidation logic
// lives here; a stale id is handed to the backend and its rejection is the
// controller's problem.
type Store struct {
	path     string
	override string
}

func New(path, override string) *Store {
	return &Store{path: path, override: strings.TrimSpace(override)}
}

// Load returns the persisted session id, if any.
func (s *Store) Load() (string, bool) {
	if s.override != "" {
		return s.override, true
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	id := strings.TrimSpace(string(raw))
	if id == "" {
		return "", false
	}
	return id, true
}

// Save writes the session id, overwriting any previous value. Called once,
// immediately after a successful session start.
func (s *Store) Save(id string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, []byte(id+"\n"), 0o600)
}
