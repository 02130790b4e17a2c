package vector

import "context"

// Index defines the interface for similarity search over a vector store.
// Implementations own the store-specific wiring; the semantics are shared:
// Upsert replaces by ID, Search returns hits ordered by ascending score,
// and malformed input fails before the store is touched.
type Index interface {
	// Ensure creates the index in the backing store if it doesn't exist.
	Ensure(ctx context.Context) error

	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to query.K hits ordered by ascending score.
	Search(ctx context.Context, query Query) ([]Hit, error)

	// Count returns the number of records in the index.
	Count(ctx context.Context) (int, error)

	// Drop removes the index and its records from the backing store.
	Drop(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}
