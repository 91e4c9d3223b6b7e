package command

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

const maxSincePages = 50

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <channel>",
		Short: "Show recent messages in a channel",
		Long:  "Show recent messages. --pages loads that many pages; --since keeps loading older pages until the given time is covered.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			pages, _ := cmd.Flags().GetInt("pages")
			sinceExpr, _ := cmd.Flags().GetString("since")
			channelID := args[0]

			var since time.Time
			if sinceExpr != "" {
				since, err = core.ParseSince(sinceExpr, time.Now())
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if !cmd.Flags().Changed("pages") {
					pages = maxSincePages
				}
			}
			if pages < 1 {
				return writeCommandError(cmd, fmt.Errorf("--pages must be at least 1"))
			}

			if err := ctx.Open(cmd.Context(), channelID); err != nil {
				return writeCommandError(cmd, err)
			}
			for page := 1; page < pages; page++ {
				if !since.IsZero() && coversSince(ctx.Sync.Messages(channelID), since) {
					break
				}
				added, err := ctx.Sync.LoadOlder(cmd.Context())
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if added == 0 {
					break
				}
			}
			ctx.Sync.MarkRead(channelID)

			msgs := ctx.Sync.Messages(channelID)
			if !since.IsZero() {
				msgs = messagesSince(msgs, since)
			}
			return writeMessages(cmd.OutOrStdout(), ctx.JSONMode, msgs, ctx.Self)
		},
	}

	cmd.Flags().Int("pages", 1, "number of pages to load, newest first")
	cmd.Flags().String("since", "", "only show messages since 30m, 2h, 3d, 1w, today, yesterday or an RFC 3339 time")

	return cmd
}

// coversSince reports whether the oldest loaded message is at or before since.
func coversSince(msgs []types.Message, since time.Time) bool {
	for _, msg := range msgs {
		if msg.Confirmed() {
			return !time.UnixMilli(msg.TS).After(since)
		}
	}
	return false
}

func messagesSince(msgs []types.Message, since time.Time) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.Confirmed() || !time.UnixMilli(msg.TS).Before(since) {
			out = append(out, msg)
		}
	}
	return out
}
