package askcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stovetop/galley/cmd/galley/setup"
	"github.com/stovetop/galley/pkg/compose"
	"github.com/stovetop/galley/pkg/present"
)

const askLongDesc string = `Run one read-only SQL statement through the action gateway.

The gateway accepts a single SELECT over its allowed tables, runs it,
and answers with rows in the column order of the statement. With
--file the result comes back as a base64 CSV envelope instead, saved
under the artifacts directory.

Examples:
  galley ask "SELECT title, artist FROM tracks WHERE genre = 'jazz'"
  galley ask "SELECT COUNT(*) AS n FROM tracks"
  galley ask --file "SELECT * FROM tracks" --out /tmp/exports`

const askShortDesc string = "Run a read-only SQL query through the gateway"

type askCommander struct {
	file bool
	out  string
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().BoolVar(&cmder.file, "file", false, "Ask for a CSV file envelope instead of rows")
	cmd.Flags().StringVarP(&cmder.out, "out", "o", "", "Directory for the saved envelope (default <artifacts>)")

	return cmd
}

func (c *askCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	env, err := setup.FromCommand(cmd)
	if err != nil {
		return err
	}

	req, err := compose.SQLRequest(strings.Join(args, " "), c.file)
	if err != nil {
		return err
	}

	resp, err := env.ActionsClient().Query(ctx, req)
	if err != nil {
		return fmt.Errorf("could not query gateway: %w", err)
	}

	if resp.File != nil {
		dir := env.Config.Artifacts.Dir
		if c.out != "" {
			dir = c.out
		}
		path, err := present.SaveEnvelope(dir, *resp.File)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s) to %s\n", resp.File.Name, resp.File.MimeType, path)
		return nil
	}

	rows, err := resp.Tabular()
	if err != nil {
		return err
	}

	renderer := present.New(present.Detect())
	fmt.Fprint(cmd.OutOrStdout(), renderer.Table(rows))

	return nil
}
