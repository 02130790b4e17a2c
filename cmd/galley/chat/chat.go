package chatcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stovetop/galley/cmd/galley/setup"
	"github.com/stovetop/galley/pkg/chat"
	"github.com/stovetop/galley/pkg/compose"
	"github.com/stovetop/galley/pkg/present"
)

const chatLongDesc string = `Send one prompt to the completion service and print the reply.

The prompt becomes a user message; --system prepends a system message
and each --image attaches a base64-encoded image to the user turn.
Replies render as markdown on color terminals, with token usage on a
trailing line.

Examples:
  galley chat "three uses for leftover rice"
  galley chat --system "Answer in French" "what is a roux?"
  galley chat --image plate.jpg "what dish is this?"
  galley chat --json "list three pasta shapes" > reply.json`

const chatShortDesc string = "Send a prompt to the completion service"

type chatCommander struct {
	system      string
	images      []string
	model       string
	temperature float64
	jsonOut     bool
	outPath     string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System message to prepend")
	cmd.Flags().StringArrayVarP(&cmder.images, "image", "i", nil, "Image file to attach (repeatable)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model override")
	cmd.Flags().Float64VarP(&cmder.temperature, "temperature", "t", 0, "Sampling temperature (0 uses the service default)")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw response as JSON")
	cmd.Flags().StringVarP(&cmder.outPath, "out", "o", "", "Also write the reply text to a file")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	env, err := setup.FromCommand(cmd)
	if err != nil {
		return err
	}

	messages, err := compose.Messages(c.system, strings.Join(args, " "), c.images)
	if err != nil {
		return err
	}

	req := &chat.Request{
		Model:    c.model,
		Messages: messages,
	}
	if c.temperature > 0 {
		req.Options = &chat.Options{Temperature: &c.temperature}
	}

	resp, err := env.ChatClient().Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("could not complete chat: %w", err)
	}

	if c.outPath != "" {
		if err := os.WriteFile(c.outPath, []byte(resp.Text()), 0o644); err != nil {
			return fmt.Errorf("could not write reply to %s: %w", c.outPath, err)
		}
	}

	if c.jsonOut {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("could not marshal response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	renderer := present.New(present.Detect())
	reply := renderer.Markdown(resp.Text())
	fmt.Fprint(cmd.OutOrStdout(), reply)
	if !strings.HasSuffix(reply, "\n") {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	fmt.Fprint(cmd.OutOrStdout(), renderer.Usage(resp.Usage()))

	return nil
}
