// Package vector defines a backend-neutral contract for similarity search
// over embedding vectors. Backends implement Index over an external or
// embedded store; callers describe what they want with a Schema and a Query
// and get back an ordered sequence of scored records.
package vector

import (
	"fmt"
	"regexp"
)

// Metric selects how distance between vectors is computed.
type Metric string

const (
	// MetricL2 is euclidean distance.
	MetricL2 Metric = "l2"

	// MetricCosine is cosine distance (1 - cosine similarity).
	MetricCosine Metric = "cosine"

	// MetricIP is inner-product distance (1 - dot product).
	MetricIP Metric = "ip"
)

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricL2, MetricCosine, MetricIP:
		return true
	}
	return false
}

// FieldType describes a scalar field stored alongside a vector.
type FieldType string

const (
	// FieldTag holds exact-match labels, filterable with == and !=.
	FieldTag FieldType = "tag"

	// FieldNumeric holds numbers, filterable with the full comparison set.
	FieldNumeric FieldType = "numeric"

	// FieldText holds free text. Retrievable but not filterable.
	FieldText FieldType = "text"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTag, FieldNumeric, FieldText:
		return true
	}
	return false
}

// Field is one scalar attribute in an index schema.
type Field struct {
	Name string
	Type FieldType
}

// Schema describes an index: where records live, the vector shape, the
// distance metric, and the scalar fields stored with each vector.
type Schema struct {
	// Name identifies the index in the backing store.
	Name string

	// Prefix namespaces record keys in shared stores. Empty means the
	// backend derives one from Name.
	Prefix string

	// Dim is the vector dimension. Every record must match it.
	Dim int

	// Metric ranks search hits.
	Metric Metric

	// Fields are the scalar attributes stored alongside each vector.
	Fields []Field
}

// identPattern keeps names safe to splice into index definitions and
// generated statements.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedFields are names the backends claim for their own columns.
var reservedFields = map[string]bool{
	"id":        true,
	"key":       true,
	"rowid":     true,
	"vector":    true,
	"embedding": true,
	"score":     true,
	"distance":  true,
}

// Validate checks the schema is complete and its names are safe.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema has no name")
	}
	if !identPattern.MatchString(s.Name) {
		return fmt.Errorf("schema name %q is not a valid identifier", s.Name)
	}
	if s.Dim <= 0 {
		return fmt.Errorf("schema %q has dimension %d, want > 0", s.Name, s.Dim)
	}
	if !s.Metric.Valid() {
		return fmt.Errorf("schema %q has unknown metric %q", s.Name, s.Metric)
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, field := range s.Fields {
		if !identPattern.MatchString(field.Name) {
			return fmt.Errorf("field name %q is not a valid identifier", field.Name)
		}
		if reservedFields[field.Name] {
			return fmt.Errorf("field name %q is reserved", field.Name)
		}
		if !field.Type.Valid() {
			return fmt.Errorf("field %q has unknown type %q", field.Name, field.Type)
		}
		if seen[field.Name] {
			return fmt.Errorf("field %q declared twice", field.Name)
		}
		seen[field.Name] = true
	}

	return nil
}

// Field looks up a schema field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// KeyPrefix returns the configured prefix, or one derived from the name.
func (s Schema) KeyPrefix() string {
	if s.Prefix != "" {
		return s.Prefix
	}
	return s.Name + ":"
}

// Record is one vector plus its scalar fields, addressed by ID.
type Record struct {
	ID     string
	Vector []float32
	Fields map[string]string
}

// ValidateRecord checks a record fits the schema before it reaches a
// backend: non-empty ID, matching dimension, only declared fields.
func ValidateRecord(schema Schema, record Record) error {
	if record.ID == "" {
		return fmt.Errorf("record has no id")
	}
	if len(record.Vector) != schema.Dim {
		return fmt.Errorf("record %q has dimension %d, index %q has %d",
			record.ID, len(record.Vector), schema.Name, schema.Dim)
	}
	for name := range record.Fields {
		if _, ok := schema.Field(name); !ok {
			return fmt.Errorf("record %q has undeclared field %q", record.ID, name)
		}
	}
	return nil
}
