package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jadylc/inviter-scout/internal/domain"
)

// Package store provides the persisted result document and the probe cache.

// Results maps site display name to the last extracted inviter record.
type Results map[string]domain.InviterRecord

// ResultStore persists Results as a single flat JSON document. Saves are
// read-modify-write: entries for sites not touched by the current run are
// preserved, and the document is replaced atomically so a record is either
// the previous value or a fully assembled new one.
type ResultStore struct {
	mu   sync.Mutex
	path string
}

// NewResultStore creates a store writing to the given file path.
func NewResultStore(path string) (*ResultStore, error) {
	if path == "" {
		return nil, fmt.Errorf("result store requires a path")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &ResultStore{path: path}, nil
}

// Load reads the stored document. A missing file yields an empty map.
func (s *ResultStore) Load() (Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *ResultStore) loadLocked() (Results, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Results{}, nil
		}
		return nil, fmt.Errorf("read result store: %w", err)
	}
	if len(raw) == 0 {
		return Results{}, nil
	}

	var out Results
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode result store: %w", err)
	}
	if out == nil {
		out = Results{}
	}
	return out, nil
}

// Put merges a single record into the stored document and writes it back.
func (s *ResultStore) Put(siteName string, rec domain.InviterRecord) error {
	if siteName == "" {
		return fmt.Errorf("result store requires a site name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadLocked()
	if err != nil {
		return err
	}
	current[siteName] = rec
	return s.writeLocked(current)
}

// writeLocked replaces the document via temp-file rename.
func (s *ResultStore) writeLocked(results Results) error {
	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write result store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace result store: %w", err)
	}
	return nil
}
