package vector

import (
	"fmt"
	"strconv"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpGe Op = ">="
	OpLt Op = "<"
	OpLe Op = "<="
)

// parseOrder lists operators with two-character ones first, so ">=" never
// parses as ">".
var parseOrder = []Op{OpEq, OpNe, OpGe, OpLe, OpGt, OpLt}

// Filter is a single scalar predicate narrowing a search. Tag fields accept
// == and !=; numeric fields accept the full comparison set; text fields are
// not filterable.
type Filter struct {
	Field string
	Op    Op
	Value string
}

// ParseFilter parses a predicate like "genre == jazz" or "year >= 1990".
// An empty expression means no filter.
func ParseFilter(expr string) (*Filter, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, nil
	}

	for _, op := range parseOrder {
		at := strings.Index(trimmed, string(op))
		if at < 0 {
			continue
		}

		field := strings.TrimSpace(trimmed[:at])
		value := strings.TrimSpace(trimmed[at+len(op):])
		if field == "" {
			return nil, fmt.Errorf("filter %q has no field", expr)
		}
		if value == "" {
			return nil, fmt.Errorf("filter %q has no value", expr)
		}

		return &Filter{Field: field, Op: op, Value: value}, nil
	}

	return nil, fmt.Errorf("filter %q has no operator (want ==, !=, >, >=, < or <=)", expr)
}

// Query asks for the K nearest records to Vector, optionally narrowed by a
// scalar filter, returning the named fields with each hit.
type Query struct {
	Vector []float32
	K      int
	Filter *Filter

	// Return names the fields to include with each hit. Empty means all
	// schema fields.
	Return []string
}

// ValidateQuery checks a query against the schema it will run under. Every
// backend applies the same rules, so a malformed query fails identically
// everywhere, before any store is touched.
func ValidateQuery(schema Schema, query Query) error {
	if query.K <= 0 {
		return fmt.Errorf("k must be positive, got %d", query.K)
	}
	if len(query.Vector) != schema.Dim {
		return fmt.Errorf("query vector has dimension %d, index %q has %d",
			len(query.Vector), schema.Name, schema.Dim)
	}

	if query.Filter != nil {
		field, ok := schema.Field(query.Filter.Field)
		if !ok {
			return fmt.Errorf("filter field %q is not in index %q", query.Filter.Field, schema.Name)
		}
		switch field.Type {
		case FieldText:
			return fmt.Errorf("text field %q cannot be filtered", field.Name)
		case FieldTag:
			if query.Filter.Op != OpEq && query.Filter.Op != OpNe {
				return fmt.Errorf("tag field %q only supports == and !=", field.Name)
			}
		case FieldNumeric:
			if _, err := strconv.ParseFloat(query.Filter.Value, 64); err != nil {
				return fmt.Errorf("filter value %q is not numeric", query.Filter.Value)
			}
		}
	}

	for _, name := range query.Return {
		if _, ok := schema.Field(name); !ok {
			return fmt.Errorf("return field %q is not in index %q", name, schema.Name)
		}
	}

	return nil
}

// Hit is one scored search result. Score is the distance under the index
// metric; smaller means closer. Fields holds the returned scalar values,
// omitting any the record never had.
type Hit struct {
	ID     string
	Score  float64
	Fields map[string]string
}

// ReturnFields resolves a query's return set against the schema: the
// requested names, or every schema field when none were named.
func ReturnFields(schema Schema, query Query) []string {
	if len(query.Return) > 0 {
		return query.Return
	}

	names := make([]string, len(schema.Fields))
	for i, field := range schema.Fields {
		names[i] = field.Name
	}
	return names
}
