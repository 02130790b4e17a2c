// Package redisearch implements vector.Index on an external Redis server
// with the RediSearch module, through go-redis's typed search commands.
package redisearch

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stovetop/galley/pkg/vector"
)

const (
	// vectorField is the hash field holding the raw vector blob and
	// scoreAlias the KNN distance alias in search replies. Both are
	// reserved names in vector.Schema.
	vectorField = "vector"
	scoreAlias  = "score"

	connectTimeout = 5 * time.Second
)

// Config holds the backend configuration.
type Config struct {
	// URL is a redis connection string, e.g. redis://localhost:6379/0
	URL string
}

// Index implements vector.Index on a RediSearch index over hashes.
type Index struct {
	client *redis.Client
	schema vector.Schema
	logger *zap.Logger
}

// New connects to Redis and returns a handle for the schema's index. The
// index itself is created by Ensure.
func New(config Config, schema vector.Schema, logger *zap.Logger) (*Index, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opt, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Index{
		client: client,
		schema: schema,
		logger: logger,
	}, nil
}

// Ensure creates the index if it doesn't exist.
func (i *Index) Ensure(ctx context.Context) error {
	if _, err := i.client.FTInfo(ctx, i.schema.Name).Result(); err == nil {
		return nil
	}

	metric, err := redisMetric(i.schema.Metric)
	if err != nil {
		return err
	}

	fields := []*redis.FieldSchema{{
		FieldName: vectorField,
		FieldType: redis.SearchFieldTypeVector,
		VectorArgs: &redis.FTVectorArgs{
			FlatOptions: &redis.FTFlatOptions{
				Type:           "FLOAT32",
				Dim:            i.schema.Dim,
				DistanceMetric: metric,
			},
		},
	}}
	for _, field := range i.schema.Fields {
		fields = append(fields, &redis.FieldSchema{
			FieldName: field.Name,
			FieldType: searchFieldType(field.Type),
		})
	}

	err = i.client.FTCreate(ctx, i.schema.Name,
		&redis.FTCreateOptions{
			OnHash: true,
			Prefix: []any{i.schema.KeyPrefix()},
		},
		fields...,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to create index %q: %w", i.schema.Name, err)
	}

	i.logger.Info("created vector index",
		zap.String("index", i.schema.Name),
		zap.Int("dim", i.schema.Dim),
		zap.String("metric", string(i.schema.Metric)),
	)

	return nil
}

// Upsert writes records as hashes under the index prefix, replacing any
// with the same ID. Nothing is written unless every record validates.
func (i *Index) Upsert(ctx context.Context, records []vector.Record) error {
	for _, record := range records {
		if err := vector.ValidateRecord(i.schema, record); err != nil {
			return err
		}
	}

	pipe := i.client.Pipeline()
	for _, record := range records {
		values := map[string]any{vectorField: vector.EncodeVector(record.Vector)}
		for name, value := range record.Fields {
			values[name] = value
		}
		pipe.HSet(ctx, i.schema.KeyPrefix()+record.ID, values)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to upsert records: %w", err)
	}

	i.logger.Debug("upserted records",
		zap.String("index", i.schema.Name),
		zap.Int("count", len(records)),
	)

	return nil
}

// Search runs a KNN query, pre-filtered when the query carries a predicate,
// and returns hits ordered by ascending score.
func (i *Index) Search(ctx context.Context, query vector.Query) ([]vector.Hit, error) {
	if err := vector.ValidateQuery(i.schema, query); err != nil {
		return nil, err
	}

	expr := "*"
	if query.Filter != nil {
		expr = "(" + i.predicate(*query.Filter) + ")"
	}
	raw := expr + "=>[KNN $k @" + vectorField + " $blob AS " + scoreAlias + "]"

	returned := vector.ReturnFields(i.schema, query)
	returns := make([]redis.FTSearchReturn, 0, len(returned)+1)
	returns = append(returns, redis.FTSearchReturn{FieldName: scoreAlias})
	for _, name := range returned {
		returns = append(returns, redis.FTSearchReturn{FieldName: name})
	}

	res, err := i.client.FTSearchWithArgs(ctx, i.schema.Name, raw, &redis.FTSearchOptions{
		Params: map[string]any{
			"k":    query.K,
			"blob": vector.EncodeVector(query.Vector),
		},
		SortBy:         []redis.FTSearchSortBy{{FieldName: scoreAlias, Asc: true}},
		Return:         returns,
		LimitOffset:    0,
		Limit:          query.K,
		DialectVersion: 2,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("search on index %q failed: %w", i.schema.Name, err)
	}

	prefix := i.schema.KeyPrefix()
	hits := make([]vector.Hit, 0, len(res.Docs))
	for _, doc := range res.Docs {
		hit := vector.Hit{
			ID:     strings.TrimPrefix(doc.ID, prefix),
			Fields: make(map[string]string, len(returned)),
		}

		if value, ok := doc.Fields[scoreAlias]; ok {
			score, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("malformed score %q for %q", value, doc.ID)
			}
			hit.Score = score
		}

		for _, name := range returned {
			if value, ok := doc.Fields[name]; ok {
				hit.Fields[name] = value
			}
		}

		hits = append(hits, hit)
	}

	return hits, nil
}

// Count returns the number of records the index covers.
func (i *Index) Count(ctx context.Context) (int, error) {
	res, err := i.client.FTSearchWithArgs(ctx, i.schema.Name, "*", &redis.FTSearchOptions{
		LimitOffset: 0,
		Limit:       1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count records in %q: %w", i.schema.Name, err)
	}

	return int(res.Total), nil
}

// Drop removes the index and its records.
func (i *Index) Drop(ctx context.Context) error {
	err := i.client.FTDropIndexWithArgs(ctx, i.schema.Name, &redis.FTDropIndexOptions{
		DeleteDocs: true,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to drop index %q: %w", i.schema.Name, err)
	}

	return nil
}

// Close closes the redis connection.
func (i *Index) Close() error {
	return i.client.Close()
}

// predicate renders a validated filter in RediSearch query syntax.
func (i *Index) predicate(filter vector.Filter) string {
	field, _ := i.schema.Field(filter.Field)

	switch field.Type {
	case vector.FieldTag:
		clause := "@" + field.Name + ":{" + escapeTag(filter.Value) + "}"
		if filter.Op == vector.OpNe {
			return "-" + clause
		}
		return clause

	case vector.FieldNumeric:
		v := filter.Value
		switch filter.Op {
		case vector.OpEq:
			return "@" + field.Name + ":[" + v + " " + v + "]"
		case vector.OpNe:
			return "-@" + field.Name + ":[" + v + " " + v + "]"
		case vector.OpGt:
			return "@" + field.Name + ":[(" + v + " +inf]"
		case vector.OpGe:
			return "@" + field.Name + ":[" + v + " +inf]"
		case vector.OpLt:
			return "@" + field.Name + ":[-inf (" + v + "]"
		case vector.OpLe:
			return "@" + field.Name + ":[-inf " + v + "]"
		}
	}

	return ""
}

// escapeTag backslash-escapes punctuation and spaces, which the query
// syntax would otherwise treat as separators.
func escapeTag(value string) string {
	var b strings.Builder
	for _, r := range value {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// redisMetric maps a metric to its DISTANCE_METRIC name.
func redisMetric(metric vector.Metric) (string, error) {
	switch metric {
	case vector.MetricL2:
		return "L2", nil
	case vector.MetricCosine:
		return "COSINE", nil
	case vector.MetricIP:
		return "IP", nil
	}
	return "", fmt.Errorf("unknown metric %q", metric)
}

// searchFieldType maps a schema field type to its index field type.
func searchFieldType(t vector.FieldType) redis.SearchFieldType {
	switch t {
	case vector.FieldTag:
		return redis.SearchFieldTypeTag
	case vector.FieldNumeric:
		return redis.SearchFieldTypeNumeric
	default:
		return redis.SearchFieldTypeText
	}
}
