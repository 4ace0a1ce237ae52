package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aegisrt/internal/report"
)

func newSnapshotCmd() *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the running instance's service/alert table",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := fetchSnapshot(endpoint)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.FormatSnapshot(snap))
			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", defaultEndpoint, "aegisrt status server endpoint")
	return cmd
}
