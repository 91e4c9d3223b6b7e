package command

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/core"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	switch {
	case errors.Is(err, core.ErrNotConnected):
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: check --server and --token, or that the token has not expired.")
	case errors.Is(err, core.ErrNotFound):
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: only messages in recent history can be changed. Try 'pairchat history --pages 3'.")
	}

	return err
}
