package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists a single small JSON document to disk, versioned by a schema
// number recorded alongside the data. Writes go through a temp file and
// rename so a crash mid-save never leaves a truncated document behind.
type Store struct {
	path    string
	version int
}

type document struct {
	Version int            `json:"version"`
	Data    map[string]any `json:"data"`
}

// New creates a store backed by the file at path.
func New(path string, version int) *Store {
	return &Store{path: path, version: version}
}

// Load reads the previously saved document. A missing file is not an error;
// it returns (nil, nil) so callers can start from scratch.
func (s *Store) Load() (map[string]any, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc.Version != s.version {
		// Unknown schema, treat as no prior data.
		return nil, nil
	}
	return doc.Data, nil
}

// Save writes the document to disk atomically.
func (s *Store) Save(data map[string]any) error {
	raw, err := json.MarshalIndent(document{Version: s.version, Data: data}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.path, err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
