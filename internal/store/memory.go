package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when nothing was ever written at a path.
	ErrNotFound = errors.New("no object at path")
	// ErrExists is returned by Write with overwrite=false on an existing path.
	ErrExists = errors.New("object already exists")
)

// Version is one write of an object.
type Version struct {
	Data      []byte
	WrittenAt time.Time
}

// objectHistory holds the time-ordered writes for a path.
type objectHistory struct {
	versions []Version
}

// MemoryStore is a concurrency-safe in-memory object store with the same
// Write/Read surface as the WebHDFS client. It backs local runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	// key: object path
	data map[string]*objectHistory

	// max number of versions kept per path (<= 0 means unlimited)
	maxHistory int
}

// NewMemoryStore creates a MemoryStore keeping at most maxHistory versions
// per path.
func NewMemoryStore(maxHistory int) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*objectHistory),
		maxHistory: maxHistory,
	}
}

// Write appends a new version for path and enforces retention.
func (s *MemoryStore) Write(_ context.Context, path string, data []byte, overwrite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[path]
	if ok && !overwrite {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}
	if !ok {
		history = &objectHistory{}
		s.data[path] = history
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	history.versions = append(history.versions, Version{Data: buf, WrittenAt: time.Now().UTC()})

	if s.maxHistory > 0 && len(history.versions) > s.maxHistory {
		over := len(history.versions) - s.maxHistory
		history.versions = history.versions[over:]
	}
	return nil
}

// Read returns the most recent version stored at path.
func (s *MemoryStore) Read(_ context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[path]
	if !ok || len(history.versions) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	latest := history.versions[len(history.versions)-1].Data
	out := make([]byte, len(latest))
	copy(out, latest)
	return out, nil
}

// History returns every retained version for path, oldest first.
func (s *MemoryStore) History(path string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[path]
	if !ok || len(history.versions) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	out := make([]Version, len(history.versions))
	copy(out, history.versions)
	return out, nil
}

// Paths lists every path that has been written.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for p := range s.data {
		out = append(out, p)
	}
	return out
}
