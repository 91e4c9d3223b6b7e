package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewRmCmd creates the rm command.
func NewRmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <channel> <message>",
		Short: "Delete a message",
		Args:  cobra.ExactArgs(2),
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
			before := len(ctx.Sync.Messages(channelID))
			if err := ctx.Sync.DeleteMessage(cmd.Context(), channelID, id); err != nil {
				return writeCommandError(cmd, err)
			}
			if len(ctx.Sync.Messages(channelID)) == before {
				return writeCommandError(cmd, notLocal(channelID, id))
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"channel_id": channelID,
					"message_id": id,
					"deleted":    true,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d\n", id)
			return nil
		},
	}

	return cmd
}
