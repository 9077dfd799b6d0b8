package main

import (
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and queue statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Shutdown(cmd.Context())

	stats := eng.Stats()
	if statsJSON {
		return printJSON(cmd, stats)
	}
	cmd.Printf("Documents:  %d\n", stats.DocumentCount)
	cmd.Printf("Queued:     %d\n", stats.QueueLength)
	cmd.Printf("Processing: %v\n", stats.IsProcessing)
	return nil
}
