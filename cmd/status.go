package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether a running aegisrt instance is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkServerRunning(endpoint); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "aegisrt is running")
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", defaultEndpoint, "aegisrt status server endpoint")
	return cmd
}
