package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Store persists the snapshot document as a single JSON file. Writes go
// through a temp file and rename so readers never observe a partial
// document.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Write(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// ReadRaw returns the persisted document verbatim. The dashboard serves
// these bytes without re-encoding.
func (s *Store) ReadRaw() ([]byte, error) {
	return os.ReadFile(s.path)
}

func (s *Store) Read() (*Snapshot, error) {
	data, err := s.ReadRaw()
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

// ModTime reports when the snapshot was last written.
func (s *Store) ModTime() (time.Time, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
