package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [file ...]",
	Short: "Index files into the local memory store",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Shutdown(cmd.Context())

	queued := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
			continue
		}
		if _, err := eng.IndexFile(path, string(data)); err != nil {
			return err
		}
		queued++
	}

	// One-shot invocation: drain synchronously instead of waiting for the
	// background ticker.
	for eng.Stats().QueueLength > 0 {
		if err := eng.DrainOnce(cmd.Context()); err != nil {
			return err
		}
	}

	stats := eng.Stats()
	cmd.Printf("Indexed %d files (%d documents total)\n", queued, stats.DocumentCount)
	return nil
}
