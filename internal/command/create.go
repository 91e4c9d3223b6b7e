package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewCreateCmd creates the create command.
func NewCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <member>...",
		Short: "Create a channel with the given members",
		Long:  "Create a channel. You are always a member; pass the other members' user ids.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			members := make([]string, 0, len(args))
			for _, arg := range args {
				members = append(members, strings.TrimPrefix(arg, "@"))
			}
			ch, err := ctx.Sync.CreateChannel(cmd.Context(), members)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(ch)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s with %s\n", ch.ID, strings.Join(ch.Members, ", "))
			return nil
		},
	}

	return cmd
}
