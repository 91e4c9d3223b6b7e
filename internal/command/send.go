package command

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/types"
)

// NewSendCmd creates the send command.
func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <channel> [text...]",
		Short: "Send a text message or files to a channel",
		Long:  "Send a text message. Use --file (repeatable) to upload files instead; all files are checked before any is sent.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			channelID := args[0]
			text := strings.Join(args[1:], " ")
			paths, _ := cmd.Flags().GetStringSlice("file")

			if len(paths) > 0 && strings.TrimSpace(text) != "" {
				return writeCommandError(cmd, fmt.Errorf("send either text or --file, not both"))
			}

			if len(paths) == 0 {
				msg, err := ctx.Sync.SendText(cmd.Context(), channelID, text)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				return writeMessage(cmd.OutOrStdout(), ctx.JSONMode, "Sent", msg, ctx.Self)
			}

			files := make([]types.FileUpload, 0, len(paths))
			for _, path := range paths {
				file, err := readUpload(path)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				files = append(files, file)
			}
			sent, err := ctx.Sync.SendFiles(cmd.Context(), channelID, files)
			if ctx.JSONMode {
				if encodeErr := json.NewEncoder(cmd.OutOrStdout()).Encode(sent); encodeErr != nil {
					return encodeErr
				}
			} else {
				now := time.Now()
				for _, msg := range sent {
					fmt.Fprintln(cmd.OutOrStdout(), "Sent "+formatMessage(msg, ctx.Self, now))
				}
			}
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("file", nil, "file to upload (repeatable)")

	return cmd
}
