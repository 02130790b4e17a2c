package searchcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stovetop/galley/cmd/galley/setup"
	"github.com/stovetop/galley/pkg/compose"
	"github.com/stovetop/galley/pkg/present"
	"github.com/stovetop/galley/pkg/vector"
)

const searchLongDesc string = `Search the vector index for records similar to a text query.

The query text is embedded through the cache, then the K nearest
records come back ordered by ascending distance. --filter narrows the
candidates with one scalar predicate; --return picks the fields shown
with each hit.

Examples:
  galley search "cool late-night jazz"
  galley search "driving rock" --k 3 --filter "genre == rock"
  galley search "older standards" --filter "year < 1970" --return title,artist
  galley search "anything" --index tracks --backend inmemory`

const searchShortDesc string = "Search the vector index"

type searchCommander struct {
	k       int
	filter  string
	returns []string
	backend string
	index   string
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().IntVar(&cmder.k, "k", 5, "How many hits to return")
	cmd.Flags().StringVar(&cmder.filter, "filter", "", `Scalar predicate, e.g. "genre == jazz"`)
	cmd.Flags().StringSliceVarP(&cmder.returns, "return", "r", nil, "Fields to show with each hit (default all)")
	cmd.Flags().StringVar(&cmder.backend, "backend", "", "Vector backend override (inmemory, sqlitevec, redisearch)")
	cmd.Flags().StringVar(&cmder.index, "index", "", "Index name override")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	env, err := setup.FromCommand(cmd)
	if err != nil {
		return err
	}
	if c.backend != "" {
		env.Config.Vector.Backend = c.backend
	}
	if c.index != "" {
		env.Config.Vector.Index = c.index
	}

	schema, err := env.LoadSchema(env.Config.Vector.Index)
	if err != nil {
		return err
	}

	embedder, closeCache, err := env.Embedder()
	if err != nil {
		return err
	}
	defer closeCache()

	vectors, err := embedder.Embed(ctx, []string{strings.Join(args, " ")})
	if err != nil {
		return fmt.Errorf("could not embed query: %w", err)
	}

	query, err := compose.VectorQuery(vectors[0], c.k, c.filter, c.returns)
	if err != nil {
		return err
	}

	index, err := env.OpenIndex(schema)
	if err != nil {
		return err
	}
	defer index.Close()

	hits, err := index.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("could not search index %q: %w", schema.Name, err)
	}

	renderer := present.New(present.Detect())
	fmt.Fprint(cmd.OutOrStdout(), renderer.Hits(hits, vector.ReturnFields(schema, query)))

	return nil
}
