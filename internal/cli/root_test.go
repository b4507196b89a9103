package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns its output.
// Flag values are reset first since commands share the package-level rootCmd.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// setupWorkspace writes a notes tree and a config using the hash provider.
func setupWorkspace(t *testing.T) (configPath, notesDir string) {
	t.Helper()

	dir := t.TempDir()
	notesDir = filepath.Join(dir, "brain")
	writeTestNote(t, notesDir, "ops/deploy.md", "---\ndescription: kubernetes deployment rollback\ntags: [ops, deploy]\n---\n")
	writeTestNote(t, notesDir, "ops/oncall.md", "---\ndescription: kubernetes pager rotation\ntags: [ops, deploy]\n---\n")
	writeTestNote(t, notesDir, "home/bread.md", "---\ndescription: sourdough bread recipe\ntags: [cooking]\n---\n")
	writeTestNote(t, notesDir, "scratch.md", "no frontmatter")

	cfg := map[string]any{
		"notes_dir": notesDir,
		"embedding": map[string]any{"provider": "hash", "dimension": 64, "rate_limit": 0},
		"logging":   map[string]any{"level": "error", "pretty": false},
	}
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	configPath = filepath.Join(dir, "memindex.json")
	require.NoError(t, os.WriteFile(configPath, data, 0644))
	return configPath, notesDir
}

func writeTestNote(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, err := executeCommand(t, "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "memindex version")
		assert.Contains(t, output, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := executeCommand(t, "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "markdown notes")
		for _, name := range []string{"rebuild", "query", "update", "related", "prune", "status", "watch", "mcp", "init"} {
			assert.Contains(t, output, name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("invalid log level", func(t *testing.T) {
		configPath, _ := setupWorkspace(t)
		_, err := executeCommand(t, "--config", configPath, "--log-level", "loud", "status")
		assert.Error(t, err)
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}
