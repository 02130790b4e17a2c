package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-run pipelines.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]byte),
	}
}

// Put stores a value under key, replacing any previous value.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("cannot store entry with empty key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy so later caller mutations don't reach the store
	buf := make([]byte, len(value))
	copy(buf, value)
	s.entries[key] = buf
	return nil
}

// Get retrieves the value for key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound{Key: key}
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, nil
}

// Has checks if a key exists.
func (s *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries[key]
	return ok, nil
}

// Len returns the number of entries in the store.
func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
