package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var (
	searchTopK int
	searchJSON bool
	searchRaw  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the local memory store",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "n", 0, "maximum number of results (0 uses the configured default)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchRaw, "raw", false, "skip the retrieval gate, dedup and cache")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	eng, err := buildEngine(cmd)
	if err != nil {
		return err
	}
	defer eng.Shutdown(cmd.Context())

	if searchRaw {
		hits, err := eng.Search(cmd.Context(), query, searchTopK)
		if err != nil {
			return err
		}
		if searchJSON {
			return printJSON(cmd, hits)
		}
		if len(hits) == 0 {
			cmd.Println("No results.")
			return nil
		}
		for i, hit := range hits {
			cmd.Printf("[%d] id=%d distance=%.4f source=%s\n    %s\n", i+1, hit.ID, hit.Distance, hit.Source, hit.Text)
		}
		return nil
	}

	if !eng.ShouldRetrieve(query) {
		cmd.Println("Query rejected by the retrieval gate.")
		return nil
	}
	result, err := eng.Retrieve(cmd.Context(), query, searchTopK)
	if err != nil {
		return err
	}
	if result == nil {
		cmd.Println("No relevant memory.")
		return nil
	}
	if searchJSON {
		return printJSON(cmd, result)
	}
	cmd.Println(result.FormattedText)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
