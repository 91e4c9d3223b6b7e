package command

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/core"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective sync configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")
			path := flagOrEnv(cmd, "config", envConfig)

			cfg := core.DefaultConfig()
			if path != "" {
				loaded, err := core.LoadConfig(path)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				cfg = loaded
			}

			if jsonMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"messagePageSize":   cfg.MessagePageSize,
					"channelPageSize":   cfg.ChannelPageSize,
					"threadPageSize":    cfg.ThreadPageSize,
					"searchPageSize":    cfg.SearchPageSize,
					"maxFileSize":       cfg.MaxFileSize,
					"typingIdleMs":      cfg.TypingIdle.Milliseconds(),
					"maxThreadContexts": cfg.MaxThreadContexts,
				})
			}

			out := cmd.OutOrStdout()
			if path != "" {
				fmt.Fprintf(out, "%s\n", render(metaStyle, "# "+path))
			}
			fmt.Fprintf(out, "messagePageSize:   %d\n", cfg.MessagePageSize)
			fmt.Fprintf(out, "channelPageSize:   %d\n", cfg.ChannelPageSize)
			fmt.Fprintf(out, "threadPageSize:    %d\n", cfg.ThreadPageSize)
			fmt.Fprintf(out, "searchPageSize:    %d\n", cfg.SearchPageSize)
			fmt.Fprintf(out, "maxFileSize:       %s\n", humanize.IBytes(uint64(cfg.MaxFileSize)))
			fmt.Fprintf(out, "typingIdle:        %s\n", cfg.TypingIdle)
			fmt.Fprintf(out, "maxThreadContexts: %d\n", cfg.MaxThreadContexts)
			return nil
		},
	}

	return cmd
}
