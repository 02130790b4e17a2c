package tuicmder

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/stovetop/galley/cmd/galley/setup"
)

const tuiLongDesc string = `Chat with the completion service in a full-screen terminal REPL.

Every turn sends the whole conversation, so the model keeps context
across questions. Assistant replies render as markdown. Ctrl+C or Esc
leaves.

Examples:
  galley tui
  galley tui --system "You are a terse sous-chef"
  galley tui --model llama3.2-vision`

const tuiShortDesc string = "Chat in a terminal REPL"

type tuiCommander struct {
	system string
	model  string
}

func NewTUICmd() *cobra.Command {
	cmder := &tuiCommander{}

	cmd := &cobra.Command{
		Use:   "tui",
		Short: tuiShortDesc,
		Long:  tuiLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System message for the whole session")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model override")

	return cmd
}

func (c *tuiCommander) run(ctx context.Context, cmd *cobra.Command) error {
	env, err := setup.FromCommand(cmd)
	if err != nil {
		return err
	}

	program := tea.NewProgram(
		newModel(env.ChatClient(), c.system, c.model),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("could not run the chat ui: %w", err)
	}

	return nil
}
