// Package sqlitevec implements vector.Index on an embedded SQLite database
// through the sqlite-vec extension, so tutorials run without an external
// vector store. Vectors live in a vec0 virtual table keyed by rowid; scalar
// fields live in a companion table joined on that rowid.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/stovetop/galley/pkg/vector"
)

// filterOverfetch widens the KNN candidate set when a scalar filter is
// present, since the filter runs after the nearest-neighbour scan.
const filterOverfetch = 10

// registerOnce loads the vec0 extension into the sqlite3 driver.
var registerOnce sync.Once

// Index implements vector.Index on a local SQLite database.
type Index struct {
	db     *sql.DB
	schema vector.Schema
	logger *zap.Logger

	vecTable  string
	metaTable string
}

// New opens (creating if needed) the database at path and returns a handle
// for the schema's index. Use ":memory:" for an ephemeral index. The tables
// themselves are created by Ensure. Inner-product distance is not supported
// by vec0, so MetricIP is rejected here.
func New(path string, schema vector.Schema, logger *zap.Logger) (*Index, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if schema.Metric == vector.MetricIP {
		return nil, fmt.Errorf("metric %q is not supported by the sqlite-vec backend", schema.Metric)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registerOnce.Do(sqlite_vec.Auto)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	// One pooled connection keeps :memory: databases from vanishing
	// between calls; sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	return &Index{
		db:        db,
		schema:    schema,
		logger:    logger,
		vecTable:  schema.Name + "_vec",
		metaTable: schema.Name + "_meta",
	}, nil
}

// Ensure creates the vector and companion tables if they don't exist.
func (i *Index) Ensure(ctx context.Context) error {
	cols := []string{"id INTEGER PRIMARY KEY", "key TEXT NOT NULL UNIQUE"}
	for _, field := range i.schema.Fields {
		affinity := "TEXT"
		if field.Type == vector.FieldNumeric {
			affinity = "REAL"
		}
		cols = append(cols, field.Name+" "+affinity)
	}

	meta := "CREATE TABLE IF NOT EXISTS " + i.metaTable + " (" + strings.Join(cols, ", ") + ")"
	if _, err := i.db.ExecContext(ctx, meta); err != nil {
		return fmt.Errorf("failed to create table %s: %w", i.metaTable, err)
	}

	embedding := fmt.Sprintf("embedding float[%d]", i.schema.Dim)
	if i.schema.Metric == vector.MetricCosine {
		embedding += " distance_metric=cosine"
	}
	vec := "CREATE VIRTUAL TABLE IF NOT EXISTS " + i.vecTable + " USING vec0(" + embedding + ")"
	if _, err := i.db.ExecContext(ctx, vec); err != nil {
		return fmt.Errorf("failed to create table %s: %w", i.vecTable, err)
	}

	i.logger.Info("ensured vector index",
		zap.String("index", i.schema.Name),
		zap.Int("dim", i.schema.Dim),
		zap.String("metric", string(i.schema.Metric)),
	)

	return nil
}

// Upsert writes records, replacing any with the same ID. Nothing is written
// unless every record validates.
func (i *Index) Upsert(ctx context.Context, records []vector.Record) error {
	for _, record := range records {
		if err := vector.ValidateRecord(i.schema, record); err != nil {
			return err
		}
	}

	for _, record := range records {
		if err := i.upsertOne(ctx, record); err != nil {
			return fmt.Errorf("failed to upsert record %q: %w", record.ID, err)
		}
	}

	i.logger.Debug("upserted records",
		zap.String("index", i.schema.Name),
		zap.Int("count", len(records)),
	)

	return nil
}

func (i *Index) upsertOne(ctx context.Context, record vector.Record) error {
	cols := []string{"key"}
	args := []any{record.ID}
	var updates []string
	for _, field := range i.schema.Fields {
		cols = append(cols, field.Name)
		args = append(args, fieldArg(field, record.Fields))
		updates = append(updates, field.Name+" = excluded."+field.Name)
	}

	upsert := "INSERT INTO " + i.metaTable + " (" + strings.Join(cols, ", ") + ")" +
		" VALUES (" + placeholders(len(cols)) + ")"
	if len(updates) > 0 {
		upsert += " ON CONFLICT(key) DO UPDATE SET " + strings.Join(updates, ", ")
	} else {
		upsert += " ON CONFLICT(key) DO NOTHING"
	}
	if _, err := i.db.ExecContext(ctx, upsert, args...); err != nil {
		return err
	}

	var rowid int64
	row := i.db.QueryRowContext(ctx, "SELECT id FROM "+i.metaTable+" WHERE key = ?", record.ID)
	if err := row.Scan(&rowid); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(record.Vector)
	if err != nil {
		return err
	}

	// vec0 has no conflict handling, so replace by delete + insert
	if _, err := i.db.ExecContext(ctx, "DELETE FROM "+i.vecTable+" WHERE rowid = ?", rowid); err != nil {
		return err
	}
	_, err = i.db.ExecContext(ctx,
		"INSERT INTO "+i.vecTable+" (rowid, embedding) VALUES (?, ?)", rowid, blob)
	return err
}

// Search runs a KNN scan, joins the companion table for scalar fields, and
// applies the filter predicate in SQL. With a filter present the KNN stage
// over-fetches so near misses don't starve the result.
func (i *Index) Search(ctx context.Context, query vector.Query) ([]vector.Hit, error) {
	if err := vector.ValidateQuery(i.schema, query); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(query.Vector)
	if err != nil {
		return nil, err
	}

	kFetch := query.K
	if query.Filter != nil {
		kFetch = query.K * filterOverfetch
	}

	returned := vector.ReturnFields(i.schema, query)
	cols := []string{"m.key", "knn.distance"}
	for _, name := range returned {
		cols = append(cols, "m."+name)
	}

	stmt := "SELECT " + strings.Join(cols, ", ") +
		" FROM (SELECT rowid, distance FROM " + i.vecTable +
		" WHERE embedding MATCH ? AND k = ? ORDER BY distance) AS knn" +
		" JOIN " + i.metaTable + " m ON m.id = knn.rowid"
	args := []any{blob, kFetch}

	if query.Filter != nil {
		clause, filterArgs := i.predicate(*query.Filter)
		stmt += " WHERE " + clause
		args = append(args, filterArgs...)
	}

	stmt += " ORDER BY knn.distance LIMIT ?"
	args = append(args, query.K)

	rows, err := i.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search on index %q failed: %w", i.schema.Name, err)
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var (
			key      string
			distance float64
		)
		values := make([]sql.NullString, len(returned))

		dests := make([]any, 0, len(returned)+2)
		dests = append(dests, &key, &distance)
		for j := range values {
			dests = append(dests, &values[j])
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}

		fields := make(map[string]string, len(returned))
		for j, name := range returned {
			if values[j].Valid {
				fields[name] = values[j].String
			}
		}

		hits = append(hits, vector.Hit{ID: key, Score: distance, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search on index %q failed: %w", i.schema.Name, err)
	}

	return hits, nil
}

// Count returns the number of records in the index.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+i.metaTable).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records in %q: %w", i.schema.Name, err)
	}
	return n, nil
}

// Drop removes both tables.
func (i *Index) Drop(ctx context.Context) error {
	if _, err := i.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+i.vecTable); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", i.vecTable, err)
	}
	if _, err := i.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+i.metaTable); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", i.metaTable, err)
	}
	return nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

// predicate renders a validated filter as a SQL clause plus its arguments.
// Negated predicates keep rows where the field is NULL, matching the other
// backends' treatment of missing fields.
func (i *Index) predicate(filter vector.Filter) (string, []any) {
	field, _ := i.schema.Field(filter.Field)
	col := "m." + field.Name

	var value any = filter.Value
	if field.Type == vector.FieldNumeric {
		value, _ = strconv.ParseFloat(filter.Value, 64)
	}

	switch filter.Op {
	case vector.OpNe:
		return "(" + col + " <> ? OR " + col + " IS NULL)", []any{value}
	case vector.OpEq:
		return col + " = ?", []any{value}
	default:
		return col + " " + string(filter.Op) + " ?", []any{value}
	}
}

// fieldArg resolves a record's value for one schema field into a bind
// argument. Numeric fields bind as floats; a missing or unparseable value
// binds NULL so it behaves as absent.
func fieldArg(field vector.Field, fields map[string]string) any {
	value, ok := fields[field.Name]
	if !ok {
		return nil
	}
	if field.Type == vector.FieldNumeric {
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil
		}
		return n
	}
	return value
}

// placeholders renders n comma-separated binding marks.
func placeholders(n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = "?"
	}
	return strings.Join(marks, ", ")
}
