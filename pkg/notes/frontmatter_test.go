package notes

import (
	"testing"

	"github.com/harun/memindex/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Frontmatter
	}{
		{
			name:    "list tags",
			content: "---\ndescription: Rollback procedure for the API\ntags: [ops, deploy]\n---\n# Body\n",
			want:    Frontmatter{Tags: []string{"ops", "deploy"}, Description: "Rollback procedure for the API"},
		},
		{
			name:    "block list tags",
			content: "---\ntags:\n  - go\n  - testing\n---\n",
			want:    Frontmatter{Tags: []string{"go", "testing"}},
		},
		{
			name:    "comma separated tags",
			content: "---\ntags: go, testing ci\ndescription: x\n---\n",
			want:    Frontmatter{Tags: []string{"go", "testing", "ci"}, Description: "x"},
		},
		{
			name:    "scalar values are stringified",
			content: "---\ntags: [2024, true]\ndescription: 42\n---\n",
			want:    Frontmatter{Tags: []string{"2024", "true"}, Description: "42"},
		},
		{
			name:    "crlf and bom",
			content: "\ufeff---\r\ndescription: windows note\r\n---\r\nbody",
			want:    Frontmatter{Tags: []string{}, Description: "windows note"},
		},
		{
			name:    "mapping without known keys",
			content: "---\ntitle: hello\n---\n",
			want:    Frontmatter{Tags: []string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFrontmatter([]byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrontmatter_NoMetadata(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no header", "# Just a heading\n"},
		{"empty file", ""},
		{"unterminated", "---\ndescription: x\n"},
		{"header not on first line", "\n---\ndescription: x\n---\n"},
		{"invalid yaml", "---\ndescription: [unclosed\n---\n"},
		{"not a mapping", "---\n- a\n- b\n---\n"},
		{"empty header", "---\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrontmatter([]byte(tt.content))
			assert.ErrorIs(t, err, memory.ErrNoMetadata)
		})
	}
}
