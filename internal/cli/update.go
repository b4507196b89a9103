package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harun/memindex/pkg/memory"
	"github.com/spf13/cobra"
)

const keywordPreview = 5

var updateEmbed bool

var updateCmd = &cobra.Command{
	Use:   "update <file>",
	Short: "Re-index a single note",
	Long: `Parse the frontmatter of one note and insert or replace its index entry.
The rest of the index is left untouched. If no index exists yet, a new one is created.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateEmbed, "embed", false, "generate a description embedding")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	path, err := a.source.ResolvePath(args[0])
	if err != nil {
		return err
	}

	embedder, err := a.optionalEmbedder(updateEmbed)
	if err != nil {
		return err
	}

	entry, err := a.store.Upsert(commandContext(cmd), path, memory.UpsertOptions{Embedder: embedder})
	if err != nil {
		if errors.Is(err, memory.ErrNoMetadata) {
			return fmt.Errorf("no valid frontmatter in %s", path)
		}
		return fmt.Errorf("update failed: %w", err)
	}

	keywords := entry.DescriptionKeywords
	if len(keywords) > keywordPreview {
		keywords = keywords[:keywordPreview]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Updated %s\n", pathStyle.Render(path))
	fmt.Fprintf(out, "  Tags: %s\n", strings.Join(entry.Tags, ", "))
	fmt.Fprintf(out, "  Keywords: %s\n", strings.Join(keywords, ", "))
	if entry.Embedding.Present() {
		fmt.Fprintf(out, "  Embedding: %d dimensions\n", entry.Embedding.Len())
	}
	return nil
}
