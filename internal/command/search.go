package command

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <channel> <query...>",
		Short: "Search messages in a channel, most recent first",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			channelID := args[0]
			if err := ctx.Open(cmd.Context(), channelID); err != nil {
				return writeCommandError(cmd, err)
			}
			view, err := ctx.Sync.Search(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return writeMessages(cmd.OutOrStdout(), ctx.JSONMode, view.Results, ctx.Self)
		},
	}

	return cmd
}
