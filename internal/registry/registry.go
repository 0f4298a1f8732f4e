// Package registry keeps the durable set of signer identities that have
// completed a submission. The backing store is a flat JSON array of
// normalized names, loaded in full and rewritten in full on every mutation.
// One process owns the file; a process-level mutex serializes the
// read-modify-write cycle across concurrent requests.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// ErrOutOfRange is returned by Update and Remove for an invalid entry index.
var ErrOutOfRange = errors.New("registry entry index out of range")

// Normalize derives the registry key from a user-entered full name:
// surrounding whitespace trimmed, then lower-cased. Normalize is idempotent.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FileStore persists signer identities in a JSON file. A missing file reads
// as an empty registry.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by the JSON file at path. The file is
// created on the first recorded identity.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Contains reports whether a normalized-equal entry is already recorded.
func (s *FileStore) Contains(identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}
	key := Normalize(identity)
	for _, e := range entries {
		if e == key {
			return true, nil
		}
	}
	return false, nil
}

// Record appends the normalized identity and rewrites the file. Record is
// not idempotent: calling it twice appends twice. The signing pipeline is
// responsible for guarding with Contains first.
func (s *FileStore) Record(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	return s.save(append(entries, Normalize(identity)))
}

// List returns all recorded identities in submission order.
func (s *FileStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update replaces the entry at index with the normalized replacement name.
func (s *FileStore) Update(index int, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return ErrOutOfRange
	}
	entries[index] = Normalize(identity)
	return s.save(entries)
}

// Remove deletes the entry at index.
func (s *FileStore) Remove(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return ErrOutOfRange
	}
	return s.save(append(entries[:index], entries[index+1:]...))
}

func (s *FileStore) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}

	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}
	return entries, nil
}

func (s *FileStore) save(entries []string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write registry file: %w", err)
	}
	return nil
}
