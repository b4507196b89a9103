package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/harun/memindex/pkg/memory"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Notes: %s\n", a.cfg.NotesDir)
	fmt.Fprintf(out, "Index: %s (%s)\n", a.cfg.Storage.Path, a.cfg.Storage.Backend)
	fmt.Fprintf(out, "Embedding provider: %s\n", a.cfg.Embedding.Provider)

	idx, err := a.store.Load(commandContext(cmd))
	if err != nil {
		if errors.Is(err, memory.ErrIndexNotFound) {
			fmt.Fprintln(out, warningStyle.Render("Status: no index (run `memindex rebuild`)"))
			return nil
		}
		return fmt.Errorf("failed to load index: %w", err)
	}

	fmt.Fprintf(out, "Version: %d\n", idx.Version)
	fmt.Fprintf(out, "Entries: %d\n", len(idx.Entries))
	fmt.Fprintf(out, "Embedded: %d\n", idx.EmbeddedCount())
	if !idx.LastFullScanAt.IsZero() {
		fmt.Fprintf(out, "Last scan: %s (%s ago, took %dms)\n",
			idx.LastFullScanAt.Local().Format(time.RFC3339),
			formatDuration(time.Since(idx.LastFullScanAt)),
			idx.Stats.LastScanDurationMs)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
