package cache

import "context"

// Store defines the interface for persisting and retrieving cached values.
// Put replaces any previous value for the same key, so callers never need
// to check Has first; identical material produces identical keys and is
// stored once.
type Store interface {
	// Put stores a value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Get retrieves the value for key. Returns ErrNotFound if the key
	// doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Has checks if a key exists.
	Has(ctx context.Context, key string) (bool, error)

	// Len returns the number of entries in the store.
	Len(ctx context.Context) (int, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ErrNotFound is returned when a key doesn't exist in the store.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	if e.Key == "" {
		return "cache entry not found"
	}

	return "cache entry not found: " + e.Key
}
