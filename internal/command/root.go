package command

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const AppName = "pairchat"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

const (
	envServer = "PAIRCHAT_SERVER"
	envToken  = "PAIRCHAT_TOKEN"
	envUser   = "PAIRCHAT_USER"
	envConfig = "PAIRCHAT_CONFIG"
)

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Pairchat - keep a local view of a hosted chat in sync",
		Long:          "Pairchat talks to a hosted chat backend and keeps channels, messages, threads, reactions and typing state in sync locally.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("server", "", "chat API base url (env "+envServer+")")
	cmd.PersistentFlags().String("token", "", "bearer token (env "+envToken+")")
	cmd.PersistentFlags().String("as", "", "user id to act as (env "+envUser+")")
	cmd.PersistentFlags().String("config", "", "config file, JSON or YAML (env "+envConfig+")")
	cmd.PersistentFlags().String("cache", "", "local cache database path")
	cmd.PersistentFlags().Bool("no-cache", false, "do not read or write the local cache")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	cmd.AddCommand(
		NewChannelsCmd(),
		NewCreateCmd(),
		NewHistoryCmd(),
		NewSendCmd(),
		NewEditCmd(),
		NewRmCmd(),
		NewReactCmd(),
		NewThreadCmd(),
		NewSearchCmd(),
		NewWatchCmd(),
		NewConfigCmd(),
	)

	return cmd
}

func Execute() error {
	_ = godotenv.Load(".env")
	return NewRootCmd(Version).Execute()
}
