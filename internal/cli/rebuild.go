package cli

import (
	"fmt"
	"time"

	"github.com/harun/memindex/pkg/memory"
	"github.com/spf13/cobra"
)

var rebuildEmbed bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from every note",
	Long: `Scan the notes directory, parse the frontmatter of every markdown note and
replace the persisted index. Notes without a valid frontmatter header are skipped.
With --embed, a description embedding is generated for every accepted note.`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildEmbed, "embed", false, "generate description embeddings")
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	embedder, err := a.optionalEmbedder(rebuildEmbed)
	if err != nil {
		return err
	}

	summary, err := a.store.Rebuild(commandContext(cmd), memory.RebuildOptions{Embedder: embedder})
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d notes (%d skipped) in %s\n",
		summary.Accepted, summary.Skipped, summary.Duration.Round(time.Millisecond))
	if embedder != nil {
		fmt.Fprintf(out, "Embedded %d notes", summary.Embedded)
		if summary.EmbedFailures > 0 {
			fmt.Fprint(out, warningStyle.Render(fmt.Sprintf(" (%d embedding failures)", summary.EmbedFailures)))
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Index: %s\n", a.cfg.Storage.Path)
	return nil
}
