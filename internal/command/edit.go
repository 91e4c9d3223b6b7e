package command

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewEditCmd creates the edit command.
func NewEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <channel> <message> <text...>",
		Short: "Edit the text of a message",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			channelID := args[0]
			id, err := parseMessageID(args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Open(cmd.Context(), channelID); err != nil {
				return writeCommandError(cmd, err)
			}

			msg, err := ctx.Sync.EditText(cmd.Context(), channelID, id, strings.Join(args[2:], " "))
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := requireLocal(msg, channelID, id); err != nil {
				return writeCommandError(cmd, err)
			}
			return writeMessage(cmd.OutOrStdout(), ctx.JSONMode, "Edited", msg, ctx.Self)
		},
	}

	return cmd
}
