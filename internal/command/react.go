package command

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/types"
)

// NewReactCmd creates the react command.
func NewReactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "react <channel> <message> <reaction>",
		Short: "Toggle a reaction on a message",
		Long:  "Toggle your reaction on a message. Use --add or --remove to force one direction. Reactions can be emoji or :shortcodes:.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			add, _ := cmd.Flags().GetBool("add")
			remove, _ := cmd.Flags().GetBool("remove")
			if add && remove {
				return writeCommandError(cmd, fmt.Errorf("--add and --remove are mutually exclusive"))
			}

			channelID := args[0]
			id, err := parseMessageID(args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := ctx.Open(cmd.Context(), channelID); err != nil {
				return writeCommandError(cmd, err)
			}

			var msg types.Message
			switch {
			case add:
				msg, err = ctx.Sync.AddReaction(cmd.Context(), channelID, id, args[2])
			case remove:
				msg, err = ctx.Sync.RemoveReaction(cmd.Context(), channelID, id, args[2])
			default:
				msg, err = ctx.Sync.ToggleReaction(cmd.Context(), channelID, id, args[2])
			}
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if err := requireLocal(msg, channelID, id); err != nil {
				return writeCommandError(cmd, err)
			}

			groups := ctx.Sync.Reactions(channelID, id)
			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"message_id": id,
					"reactions":  groups,
				})
			}
			out := cmd.OutOrStdout()
			if len(groups) == 0 {
				fmt.Fprintf(out, "#%d has no reactions\n", id)
				return nil
			}
			fmt.Fprintf(out, "#%d %s\n", id, formatReactions(msg.Reactions))
			return nil
		},
	}

	cmd.Flags().Bool("add", false, "add the reaction even if already present")
	cmd.Flags().Bool("remove", false, "remove the reaction")

	return cmd
}
