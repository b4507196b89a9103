package cli

import (
	"context"
	"errors"
	"os"

	"github.com/harun/memindex/pkg/mcptools"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the memory tools over MCP stdio",
	Long: `Run an MCP server on stdin/stdout exposing memory_search, memory_related and
memory_update. Logs go to stderr so they never corrupt the protocol stream.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := mcptools.NewServer(mcptools.Deps{
		Store:             a.store,
		Search:            a.searchEngine(),
		Source:            a.source,
		Embedder:          a.embedder,
		Threshold:         a.cfg.Search.Threshold,
		MaxResults:        a.cfg.Search.MaxResults,
		RelatedMaxResults: a.cfg.Related.MaxResults,
		Logger:            a.logger,
	}, version)

	a.logger.Info().Str("notes_dir", a.cfg.NotesDir).Msg("MCP server started (stdio transport)")

	stdio := server.NewStdioServer(srv)
	if err := stdio.Listen(commandContext(cmd), os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
