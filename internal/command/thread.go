package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/chat"
	"github.com/adamavenir/pairchat/internal/types"
)

// NewThreadCmd creates the thread command.
func NewThreadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread <channel> <message>",
		Short: "Show a thread, optionally posting a reply",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			replyText, _ := cmd.Flags().GetString("reply")
			replyFile, _ := cmd.Flags().GetString("file")
			if replyText != "" && replyFile != "" {
				return writeCommandError(cmd, fmt.Errorf("reply with either --reply or --file, not both"))
			}

			channelID := args[0]
			parentID, err := parseMessageID(args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}

			view, err := ctx.Sync.EnterThread(cmd.Context(), channelID, parentID)
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if replyText != "" || replyFile != "" {
				content := types.ReplyContent{Text: replyText}
				if replyFile != "" {
					file, err := readUpload(replyFile)
					if err != nil {
						return writeCommandError(cmd, err)
					}
					content = types.ReplyContent{File: &file}
				}
				if _, err := ctx.Sync.SendThreadReply(cmd.Context(), content); err != nil {
					return writeCommandError(cmd, err)
				}
				view, _ = ctx.Sync.Thread()
			}
			ctx.Sync.ExitThread()

			return writeThread(cmd, ctx, view)
		},
	}

	cmd.Flags().String("reply", "", "reply text to post in the thread")
	cmd.Flags().String("file", "", "file to post as a reply")

	return cmd
}

func writeThread(cmd *cobra.Command, ctx *CommandContext, view chat.ThreadView) error {
	if ctx.JSONMode {
		replies := view.Replies
		if replies == nil {
			replies = []types.Message{}
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"parent":  view.Parent,
			"replies": replies,
		})
	}
	out := cmd.OutOrStdout()
	now := time.Now()
	fmt.Fprintln(out, formatMessage(view.Parent, ctx.Self, now))
	for _, reply := range view.Replies {
		fmt.Fprintln(out, "  "+formatMessage(reply, ctx.Self, now))
	}
	return nil
}
