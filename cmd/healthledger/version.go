package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"healthledger/api/server"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the node and API version",
	// No config needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "healthledger %s (api %s)\n", server.NodeVersion(), server.APIVersion())
	},
}
