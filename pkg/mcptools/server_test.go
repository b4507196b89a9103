package mcptools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/memindex/pkg/embedding"
	"github.com/harun/memindex/pkg/memory"
	"github.com/harun/memindex/pkg/notes"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T) (Deps, string) {
	t.Helper()

	root := t.TempDir()
	logger := zerolog.Nop()

	source := notes.NewSource(root, logger)
	repo := memory.NewFileRepository(filepath.Join(root, ".memory-index.json"), logger)
	embedder := embedding.NewHashProvider(32)

	store, err := memory.NewStore(memory.StoreConfig{
		Repository: repo,
		Source:     source,
		Logger:     logger,
		Dimension:  32,
	})
	require.NoError(t, err)

	return Deps{
		Store:             store,
		Search:            memory.NewSearchEngine(repo, embedder, logger),
		Source:            source,
		Embedder:          embedder,
		Threshold:         memory.DefaultThreshold,
		MaxResults:        memory.DefaultMaxResults,
		RelatedMaxResults: 5,
		Logger:            logger,
	}, root
}

func writeNote(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestNewServer_ListsTools(t *testing.T) {
	deps, _ := newTestDeps(t)
	s := NewServer(deps, "test")

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	for _, name := range []string{"memory_search", "memory_related", "memory_update"} {
		assert.Contains(t, string(raw), name)
	}
}

func TestMemoryUpdate(t *testing.T) {
	deps, root := newTestDeps(t)
	handler := memoryUpdate(deps)
	path := writeNote(t, root, "ops/deploy.md", "---\ndescription: Blue green deployment runbook\ntags: [ops, deploy]\n---\n")

	result, err := handler(context.Background(), makeCallToolRequest("memory_update", map[string]interface{}{
		"path": "ops/deploy.md",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp UpdateResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	assert.Equal(t, path, resp.Path)
	assert.Equal(t, []string{"ops", "deploy"}, resp.Tags)
	assert.Equal(t, []string{"blue", "green", "deployment", "runbook"}, resp.Keywords)
	assert.True(t, resp.Embedded)

	t.Run("embedding disabled", func(t *testing.T) {
		result, err := handler(context.Background(), makeCallToolRequest("memory_update", map[string]interface{}{
			"path":  path,
			"embed": false,
		}))
		require.NoError(t, err)

		var resp UpdateResponse
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
		assert.False(t, resp.Embedded)
	})
}

func TestMemoryUpdate_Errors(t *testing.T) {
	deps, root := newTestDeps(t)
	handler := memoryUpdate(deps)
	writeNote(t, root, "plain.md", "no header here")
	outside := writeNote(t, t.TempDir(), "outside.md", "---\ntags: [x]\n---\n")

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing path", map[string]interface{}{}, "path is required"},
		{"not found", map[string]interface{}{"path": "nope.md"}, "file not found"},
		{"no frontmatter", map[string]interface{}{"path": "plain.md"}, "no valid frontmatter"},
		{"outside notes dir", map[string]interface{}{"path": outside}, "escapes notes directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeCallToolRequest("memory_update", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestMemorySearch(t *testing.T) {
	deps, root := newTestDeps(t)
	writeNote(t, root, "ops/deploy.md", "---\ndescription: kubernetes deployment rollback\ntags: [ops]\n---\n")
	writeNote(t, root, "home/bread.md", "---\ndescription: sourdough bread recipe\ntags: [cooking]\n---\n")

	_, err := deps.Store.Rebuild(context.Background(), memory.RebuildOptions{Embedder: deps.Embedder})
	require.NoError(t, err)

	handler := memorySearch(deps)
	result, err := handler(context.Background(), makeCallToolRequest("memory_search", map[string]interface{}{
		"query":     "kubernetes deployment rollback",
		"threshold": 0.9,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp SearchResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "ops", resp.Results[0].GroupName)
	assert.Equal(t, "deploy.md", resp.Results[0].FileName)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-5)
}

func TestMemorySearch_Errors(t *testing.T) {
	deps, _ := newTestDeps(t)
	handler := memorySearch(deps)

	result, err := handler(context.Background(), makeCallToolRequest("memory_search", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "query is required")

	result, err = handler(context.Background(), makeCallToolRequest("memory_search", map[string]interface{}{
		"query": "anything",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "memindex rebuild --embed")
}

func TestMemoryRelated(t *testing.T) {
	deps, root := newTestDeps(t)
	writeNote(t, root, "go/a.md", "---\ndescription: goroutine leak detection\ntags: [go, concurrency]\n---\n")
	writeNote(t, root, "go/b.md", "---\ndescription: channel patterns\ntags: [go, concurrency]\n---\n")
	writeNote(t, root, "ops/c.md", "---\ndescription: pager rotation\ntags: [ops]\n---\n")

	_, err := deps.Store.Rebuild(context.Background(), memory.RebuildOptions{})
	require.NoError(t, err)

	result, err := memoryRelated(deps)(context.Background(), makeCallToolRequest("memory_related", map[string]interface{}{
		"path": "go/a.md",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var resp RelatedResponse
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, filepath.Join(root, "go", "b.md"), resp.Matches[0].Path)
	assert.Equal(t, []string{"go", "concurrency"}, resp.Matches[0].SharedTags)
}

func TestInstrument(t *testing.T) {
	deps, _ := newTestDeps(t)
	called := false
	handler := instrument("memory_search", deps.Logger, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		called = true
		return toolText("ok"), nil
	})

	result, err := handler(context.Background(), makeCallToolRequest("memory_search", nil))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resultText(t, result))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 5, clampLimit(5))
	assert.Equal(t, maxToolResults, clampLimit(500))
}
