package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/stovetop/galley/cmd/galley/ask"
	"github.com/stovetop/galley/cmd/galley/chat"
	"github.com/stovetop/galley/cmd/galley/embed"
	"github.com/stovetop/galley/cmd/galley/index"
	"github.com/stovetop/galley/cmd/galley/search"
	"github.com/stovetop/galley/cmd/galley/tui"
)

const galleyLongDesc string = `Galley glues chat models, embeddings and a SQL action gateway into
one command line. Prompts go out as structured messages, tabular data
comes back as rows or CSV artifacts, and anything embedded can be
searched by vector similarity.

Configuration lives in <workdir>/config.toml (default ~/.galley),
overridable with GALLEY_* environment variables and flags.`

func main() {
	root := &cobra.Command{
		Use:          "galley",
		Short:        "Chat, embed, index, search and query from one CLI",
		Long:         galleyLongDesc,
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Path to a TOML config file")
	root.PersistentFlags().String("workdir", "", "Working directory (default $GALLEY_HOME or ~/.galley)")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(
		chatcmder.NewChatCmd(),
		embedcmder.NewEmbedCmd(),
		indexcmder.NewIndexCmd(),
		searchcmder.NewSearchCmd(),
		askcmder.NewAskCmd(),
		tuicmder.NewTUICmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
