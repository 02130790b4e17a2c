package embedcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stovetop/galley/cmd/galley/setup"
	"github.com/stovetop/galley/pkg/compose"
	"github.com/stovetop/galley/pkg/present"
	"github.com/stovetop/galley/pkg/tabular"
)

const embedLongDesc string = `Embed text into vectors and write them out as a CSV artifact.

Inputs are either literal --text values or the records of a CSV file,
where each record becomes one "field: value" document over the columns
named by --fields. Vectors are cached by content, so re-embedding the
same text is free.

The output CSV has two columns: id (from --id-field, or the record
position) and embedding (the vector as a JSON array).

Examples:
  galley embed --text "smoky, slow-cooked brisket"
  galley embed --csv tracks.csv --fields title,artist --id-field id
  galley embed --csv tracks.csv --fields title --out /tmp/vectors.csv`

const embedShortDesc string = "Embed text or CSV records into vectors"

type embedCommander struct {
	texts   []string
	csvPath string
	fields  []string
	idField string
	outPath string
}

func NewEmbedCmd() *cobra.Command {
	cmder := &embedCommander{}

	cmd := &cobra.Command{
		Use:   "embed",
		Short: embedShortDesc,
		Long:  embedLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&cmder.texts, "text", "t", nil, "Text to embed (repeatable)")
	cmd.Flags().StringVar(&cmder.csvPath, "csv", "", "CSV file whose records become documents")
	cmd.Flags().StringSliceVarP(&cmder.fields, "fields", "f", nil, "Columns composed into each document")
	cmd.Flags().StringVar(&cmder.idField, "id-field", "", "Column used as the document id")
	cmd.Flags().StringVarP(&cmder.outPath, "out", "o", "", "Output CSV path (default <artifacts>/embeddings.csv)")

	return cmd
}

func (c *embedCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := setup.FromCommand(cmd)
	if err != nil {
		return err
	}

	ids, docs, err := c.documents()
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

	rows := tabular.New("id", "embedding")
	for i, vec := range vectors {
		encoded, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("could not encode vector %d: %w", i, err)
		}
		if err := rows.Append(ids[i], string(encoded)); err != nil {
			return err
		}
	}

	dir, name := env.Config.Artifacts.Dir, "embeddings.csv"
	if c.outPath != "" {
		dir, name = filepath.Dir(c.outPath), filepath.Base(c.outPath)
	}
	path, err := present.CSVFile(dir, name, rows)
	if err != nil {
		return err
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Embedded %d documents (%d dimensions) into %s\n", len(vectors), dim, path)

	return nil
}

// documents resolves the (id, text) pairs to embed from the flags.
func (c *embedCommander) documents() ([]string, []string, error) {
	if len(c.texts) > 0 && c.csvPath != "" {
		return nil, nil, fmt.Errorf("--text and --csv are mutually exclusive")
	}

	if len(c.texts) > 0 {
		ids := make([]string, len(c.texts))
		for i := range c.texts {
			ids[i] = fmt.Sprintf("%d", i+1)
		}
		return ids, c.texts, nil
	}

	if c.csvPath == "" {
		return nil, nil, fmt.Errorf("nothing to embed: pass --text or --csv")
	}
	if len(c.fields) == 0 {
		return nil, nil, fmt.Errorf("--csv requires --fields")
	}

	f, err := os.Open(c.csvPath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open %s: %w", c.csvPath, err)
	}
	defer f.Close()

	rows, err := tabular.ReadCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("could not read %s: %w", c.csvPath, err)
	}

	docs, err := compose.Documents(rows, c.fields)
	if err != nil {
		return nil, nil, err
	}

	ids, err := compose.RecordIDs(rows, c.idField)
	if err != nil {
		return nil, nil, err
	}

	return ids, docs, nil
}
