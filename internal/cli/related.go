package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harun/memindex/pkg/memory"
	"github.com/spf13/cobra"
)

var (
	relatedLimit int
	relatedJSON  bool
)

var relatedCmd = &cobra.Command{
	Use:   "related <file>",
	Short: "List notes sharing tags or description keywords with a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelated,
}

func init() {
	relatedCmd.Flags().IntVar(&relatedLimit, "limit", 0, "maximum number of matches (default from config)")
	relatedCmd.Flags().BoolVar(&relatedJSON, "json", false, "print matches as JSON")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := a.source.ResolvePath(args[0])
	if err != nil {
		return err
	}

	limit := a.cfg.Related.MaxResults
	if cmd.Flags().Changed("limit") {
		limit = relatedLimit
	}

	matches, err := a.store.Related(commandContext(cmd), path, memory.RelatedOptions{MaxResults: limit})
	if err != nil {
		if errors.Is(err, memory.ErrNoIndex) {
			return fmt.Errorf("memory index not found at %s; run `memindex rebuild` first", a.cfg.Storage.Path)
		}
		return fmt.Errorf("related lookup failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if relatedJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}
	printRelated(out, path, matches)
	return nil
}
