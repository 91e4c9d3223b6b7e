package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/chat"
	"github.com/adamavenir/pairchat/internal/types"
)

// NewChannelsCmd creates the channels command.
func NewChannelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List channels, most recent first",
		Long:  "Refresh the channel directory from the server and list it. Falls back to the cached directory when offline.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			pattern, _ := cmd.Flags().GetString("match")

			if err := ctx.Sync.RefreshChannels(cmd.Context()); err != nil {
				if len(ctx.Sync.Channels()) == 0 {
					return writeCommandError(cmd, err)
				}
				ctx.Logger.Warn("showing cached channels", "error", err)
			}

			rows, err := ctx.Sync.ChannelRows(cmd.Context(), ctx.Profiles)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if pattern != "" {
				matched, err := ctx.Sync.MatchChannels(pattern)
				if err != nil {
					return writeCommandError(cmd, fmt.Errorf("invalid --match pattern: %w", err))
				}
				rows = filterRows(rows, matched)
			}

			if ctx.JSONMode {
				channels := make([]types.Channel, 0, len(rows))
				for _, row := range rows {
					channels = append(channels, row.Channel)
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(channels)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No channels")
				return nil
			}
			now := time.Now()
			for _, row := range rows {
				fmt.Fprintln(out, formatChannelRow(row, now))
			}
			return nil
		},
	}

	cmd.Flags().String("match", "", "only list channels whose id or name matches a glob")

	return cmd
}

func filterRows(rows []chat.ChannelRow, keep []types.Channel) []chat.ChannelRow {
	ids := make(map[string]struct{}, len(keep))
	for _, ch := range keep {
		ids[ch.ID] = struct{}{}
	}
	out := rows[:0]
	for _, row := range rows {
		if _, ok := ids[row.Channel.ID]; ok {
			out = append(out, row)
		}
	}
	return out
}
