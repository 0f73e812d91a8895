package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/asset-sync/internal/version"
)

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and User-Agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "asset-sync %s\n", version.GetVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "User-Agent: %s\n", version.GetUserAgent())
			return nil
		},
	}
}
