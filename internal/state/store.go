// Package state persists the per-calendar sync tokens between runs.
package state

import (
	"encoding/json"
	"fmt"
	"os"
)

// Store holds the opaque sync token for each tracked calendar. Tokens are the
// only state the pipeline carries across runs; event bodies are never
// persisted.
type Store struct {
	Path   string
	tokens map[string]string
}

// Open loads the token state from the file at path.
// A missing file is not an error: it reads as empty state, which makes every
// calendar fall back to a full listing on the next fetch.
func Open(path string) (*Store, error) {
	store := &Store{
		Path:   path,
		tokens: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, &store.tokens); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return store, nil
}

// Token returns the stored sync token for a calendar, or "" if none is known.
func (s *Store) Token(calendarID string) string {
	return s.tokens[calendarID]
}

// SetToken records a new sync token for a calendar and writes the state file.
// An empty token clears the cursor, forcing a full resync next time.
func (s *Store) SetToken(calendarID, token string) error {
	if token == "" {
		delete(s.tokens, calendarID)
	} else {
		s.tokens[calendarID] = token
	}
	return s.save()
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(s.Path, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	return nil
}
