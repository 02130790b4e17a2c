// Package inmemory is an exact, brute-force vector index for tests and
// small offline runs. Every search scans every record, so its results are
// the reference the store-backed implementations should agree with.
package inmemory

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/stovetop/galley/pkg/vector"
)

// Index is a brute-force in-memory vector.Index.
type Index struct {
	mu      sync.RWMutex
	schema  vector.Schema
	records map[string]vector.Record
}

// New creates an empty in-memory index for the schema.
func New(schema vector.Schema) (*Index, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	return &Index{
		schema:  schema,
		records: make(map[string]vector.Record),
	}, nil
}

// Ensure is a no-op; the index exists once constructed.
func (i *Index) Ensure(ctx context.Context) error {
	return nil
}

// Upsert stores records, replacing any with the same ID. Nothing is written
// unless every record validates.
func (i *Index) Upsert(ctx context.Context, records []vector.Record) error {
	for _, record := range records {
		if err := vector.ValidateRecord(i.schema, record); err != nil {
			return err
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, record := range records {
		stored := vector.Record{
			ID:     record.ID,
			Vector: append([]float32(nil), record.Vector...),
			Fields: make(map[string]string, len(record.Fields)),
		}
		for name, value := range record.Fields {
			stored.Fields[name] = value
		}
		i.records[record.ID] = stored
	}

	return nil
}

// Search scans every record and returns the K nearest, ordered by ascending
// score with ties broken by ID.
func (i *Index) Search(ctx context.Context, query vector.Query) ([]vector.Hit, error) {
	if err := vector.ValidateQuery(i.schema, query); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	returned := vector.ReturnFields(i.schema, query)

	hits := make([]vector.Hit, 0, len(i.records))
	for _, record := range i.records {
		if query.Filter != nil && !i.matches(*query.Filter, record) {
			continue
		}

		fields := make(map[string]string, len(returned))
		for _, name := range returned {
			if value, ok := record.Fields[name]; ok {
				fields[name] = value
			}
		}

		hits = append(hits, vector.Hit{
			ID:     record.ID,
			Score:  distance(i.schema.Metric, query.Vector, record.Vector),
			Fields: fields,
		})
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score < hits[b].Score
		}
		return hits[a].ID < hits[b].ID
	})

	if len(hits) > query.K {
		hits = hits[:query.K]
	}

	return hits, nil
}

// Count returns the number of stored records.
func (i *Index) Count(ctx context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.records), nil
}

// Drop removes every record.
func (i *Index) Drop(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.records = make(map[string]vector.Record)
	return nil
}

// Close is a no-op.
func (i *Index) Close() error {
	return nil
}

// matches evaluates a validated filter against one record. Records missing
// the field, or carrying a non-numeric value in a numeric field, match only
// a negated predicate.
func (i *Index) matches(filter vector.Filter, record vector.Record) bool {
	field, _ := i.schema.Field(filter.Field)
	value, ok := record.Fields[filter.Field]

	switch field.Type {
	case vector.FieldTag:
		if filter.Op == vector.OpEq {
			return ok && value == filter.Value
		}
		return !ok || value != filter.Value

	case vector.FieldNumeric:
		want, _ := strconv.ParseFloat(filter.Value, 64)
		have, err := strconv.ParseFloat(value, 64)
		if !ok || err != nil {
			return filter.Op == vector.OpNe
		}

		switch filter.Op {
		case vector.OpEq:
			return have == want
		case vector.OpNe:
			return have != want
		case vector.OpGt:
			return have > want
		case vector.OpGe:
			return have >= want
		case vector.OpLt:
			return have < want
		case vector.OpLe:
			return have <= want
		}
	}

	return false
}

// distance computes the score under the metric; smaller means closer.
func distance(metric vector.Metric, a, b []float32) float64 {
	switch metric {
	case vector.MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)

	case vector.MetricCosine:
		var dot, normA, normB float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			normA += float64(a[i]) * float64(a[i])
			normB += float64(b[i]) * float64(b[i])
		}
		if normA == 0 || normB == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))

	case vector.MetricIP:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return 1 - dot
	}

	return math.Inf(1)
}
