package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/memindex/pkg/memory"
	"github.com/spf13/cobra"
)

var (
	queryThreshold float64
	queryLimit     int
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text...>",
	Short: "Search notes by the meaning of their descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().Float64Var(&queryThreshold, "threshold", -2, "minimum cosine similarity (default from config)")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := memory.SearchOptions{
		Threshold:  a.cfg.Search.Threshold,
		MaxResults: a.cfg.Search.MaxResults,
	}
	if cmd.Flags().Changed("threshold") {
		opts.Threshold = queryThreshold
	}
	if cmd.Flags().Changed("limit") {
		opts.MaxResults = queryLimit
	}

	query := strings.Join(args, " ")
	results, err := a.searchEngine().Search(commandContext(cmd), query, opts)
	if err != nil {
		if errors.Is(err, memory.ErrNoIndex) {
			return fmt.Errorf("memory index not found at %s; run `memindex rebuild --embed` first", a.cfg.Storage.Path)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if queryJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printSearchResults(out, query, results)
	return nil
}
