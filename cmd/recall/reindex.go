package main

import (
	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the queue from every indexable file under the workspace root",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Shutdown(cmd.Context())

	report, err := eng.ReindexWorkspace(cmd.Context())
	if err != nil {
		return err
	}

	for eng.Stats().QueueLength > 0 {
		if err := eng.DrainOnce(cmd.Context()); err != nil {
			return err
		}
	}

	cmd.Printf("Queued %d files, %d errors (%d documents total)\n",
		report.Indexed, report.Errors, eng.Stats().DocumentCount)
	return nil
}
