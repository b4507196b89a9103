package cli

import (
	"errors"
	"fmt"

	"github.com/harun/memindex/pkg/memory"
	"github.com/harun/memindex/pkg/notes"
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove index entries whose notes no longer exist",
	Args:  cobra.NoArgs,
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.store.Prune(commandContext(cmd), func(path string) bool {
		ok, err := notes.FileExists(path)
		// keep entries we cannot check
		return ok || err != nil
	})
	if err != nil {
		if errors.Is(err, memory.ErrNoIndex) {
			return fmt.Errorf("memory index not found at %s", a.cfg.Storage.Path)
		}
		return fmt.Errorf("prune failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, path := range removed {
		fmt.Fprintf(out, "removed %s\n", path)
	}
	fmt.Fprintf(out, "Pruned %d entries\n", len(removed))
	return nil
}
