package main

import (
	"fmt"

	"pitboss/internal/appversion"

	"github.com/spf13/cobra"
)

// newRootCmd creates the root pitboss command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pitboss",
		Short:         "Pitboss operations core",
		Long:          "pitboss runs the platform operations core:\nthe autonomous task dispatcher and the real-time balance ledger.",
		Version:       fmt.Sprintf("pitboss %s", appversion.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newInitCmd(),
		newServeCmd(),
		newStatusCmd(),
	)

	return cmd
}
