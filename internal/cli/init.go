package cli

import (
	"fmt"

	"github.com/harun/memindex/internal/config"
	"github.com/harun/memindex/pkg/notes"
	"github.com/spf13/cobra"
)

var (
	initNotesDir string
	initProvider string
	initBackend  string
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file with default settings. The notes directory is
created when it does not exist yet.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initNotesDir, "notes-dir", "", "notes directory (default ~/.agents/brain)")
	initCmd.Flags().StringVar(&initProvider, "provider", "", "embedding provider (ollama, openai, hash, none)")
	initCmd.Flags().StringVar(&initBackend, "backend", "", "index backend (json, sqlite)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	configPath, err := loader.GetConfigPath()
	if err != nil {
		return err
	}

	exists, err := notes.FileExists(configPath)
	if err != nil {
		return err
	}
	if exists && !initForce {
		return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.DefaultConfig()
	if initNotesDir != "" {
		cfg.NotesDir = initNotesDir
	}
	if initProvider != "" {
		cfg.Embedding.Provider = initProvider
	}
	if initBackend != "" {
		cfg.Storage.Backend = initBackend
	}
	if err := cfg.ResolvePaths(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := notes.EnsureDirectory(cfg.NotesDir); err != nil {
		return err
	}
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
	fmt.Fprintf(out, "Notes directory: %s\n", cfg.NotesDir)
	fmt.Fprintln(out, "\nBuild the index with: memindex rebuild --embed")
	return nil
}
