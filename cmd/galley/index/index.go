package indexcmder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stovetop/galley/cmd/galley/setup"
	"github.com/stovetop/galley/pkg/compose"
	"github.com/stovetop/galley/pkg/tabular"
	"github.com/stovetop/galley/pkg/vector"
)

const indexLongDesc string = `Embed CSV records and upsert them into the vector index.

Each record becomes one document over the columns named by --fields,
embedded and stored together with the record's other column values.
Document columns are stored as text (retrievable, not filterable);
remaining columns become numeric fields when every non-empty value
parses as a number, and tag fields otherwise. The resulting schema is
saved in the working directory so later searches reopen the index the
same way.

Examples:
  galley index --csv tracks.csv --fields title,artist --id-field id
  galley index --csv tracks.csv --fields title --index tracks --backend inmemory
  galley index --csv tracks.csv --fields title,artist --metric l2`

const indexShortDesc string = "Embed CSV records into the vector index"

type indexCommander struct {
	csvPath string
	fields  []string
	idField string
	backend string
	index   string
	metric  string
}

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.csvPath, "csv", "", "CSV file to index")
	cmd.Flags().StringSliceVarP(&cmder.fields, "fields", "f", nil, "Columns composed into each document")
	cmd.Flags().StringVar(&cmder.idField, "id-field", "", "Column used as the record id")
	cmd.Flags().StringVar(&cmder.backend, "backend", "", "Vector backend override (inmemory, sqlitevec, redisearch)")
	cmd.Flags().StringVar(&cmder.index, "index", "", "Index name override")
	cmd.Flags().StringVar(&cmder.metric, "metric", "", "Distance metric override (l2, cosine, ip)")

	return cmd
}

func (c *indexCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := setup.FromCommand(cmd)
	if err != nil {
		return err
	}
	applyOverrides(env, c.backend, c.index, c.metric)

	if c.csvPath == "" {
		return fmt.Errorf("--csv is required")
	}
	if len(c.fields) == 0 {
		return fmt.Errorf("--fields is required")
	}

	f, err := os.Open(c.csvPath)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", c.csvPath, err)
	}
	defer f.Close()

	rows, err := tabular.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", c.csvPath, err)
	}
	if rows.Len() == 0 {
		return fmt.Errorf("%s has no records", c.csvPath)
	}

	docs, err := compose.Documents(rows, c.fields)
	if err != nil {
		return err
	}
	ids, err := compose.RecordIDs(rows, c.idField)
	if err != nil {
		return err
	}

	embedder, closeCache, err := env.Embedder()
	if err != nil {
		return err
	}
	defer closeCache()

	vectors, err := embedder.Embed(ctx, docs)
	if err != nil {
		return fmt.Errorf("could not embed %d documents: %w", len(docs), err)
	}

	schema := vector.Schema{
		Name:   env.Config.Vector.Index,
		Dim:    len(vectors[0]),
		Metric: env.Config.Vector.Metric,
		Fields: schemaFields(rows, c.fields, c.idField),
	}
	if err := schema.Validate(); err != nil {
		return err
	}

	records := make([]vector.Record, len(ids))
	for i := range ids {
		records[i] = vector.Record{
			ID:     ids[i],
			Vector: vectors[i],
			Fields: recordFields(rows.Record(i), schema),
		}
	}

	index, err := env.OpenIndex(schema)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.Ensure(ctx); err != nil {
		return fmt.Errorf("could not ensure index %q: %w", schema.Name, err)
	}
	if err := index.Upsert(ctx, records); err != nil {
		return fmt.Errorf("could not upsert %d records: %w", len(records), err)
	}
	if err := env.SaveSchema(schema); err != nil {
		return err
	}

	count, err := index.Count(ctx)
	if err != nil {
		return fmt.Errorf("could not count index %q: %w", schema.Name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d records into %q (%d total, dim %d, %s)\n",
		len(records), schema.Name, count, schema.Dim, schema.Metric)

	return nil
}

// applyOverrides lays the index flags over the loaded configuration.
func applyOverrides(env *setup.Env, backend, index, metric string) {
	if backend != "" {
		env.Config.Vector.Backend = backend
	}
	if index != "" {
		env.Config.Vector.Index = index
	}
	if metric != "" {
		env.Config.Vector.Metric = vector.Metric(metric)
	}
}

// schemaFields types every column except the id. Document columns are
// stored as text; the rest are numeric when every non-empty value parses
// as a number, tag otherwise.
func schemaFields(rows *tabular.Rows, docFields []string, idField string) []vector.Field {
	isDoc := make(map[string]bool, len(docFields))
	for _, name := range docFields {
		isDoc[name] = true
	}

	var fields []vector.Field
	for _, col := range rows.Columns {
		if col == idField {
			continue
		}
		switch {
		case isDoc[col]:
			fields = append(fields, vector.Field{Name: col, Type: vector.FieldText})
		case numericColumn(rows, col):
			fields = append(fields, vector.Field{Name: col, Type: vector.FieldNumeric})
		default:
			fields = append(fields, vector.Field{Name: col, Type: vector.FieldTag})
		}
	}
	return fields
}

// numericColumn reports whether every non-empty value of col is a number.
// A column with no values at all is not numeric.
func numericColumn(rows *tabular.Rows, col string) bool {
	seen := false
	for i := 0; i < rows.Len(); i++ {
		value, _ := rows.Value(i, col)
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// recordFields keeps the schema fields a record actually has a value for.
func recordFields(record map[string]string, schema vector.Schema) map[string]string {
	fields := make(map[string]string, len(schema.Fields))
	for _, field := range schema.Fields {
		if value := record[field.Name]; strings.TrimSpace(value) != "" {
			fields[field.Name] = value
		}
	}
	return fields
}
