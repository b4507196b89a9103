package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRelated(t *testing.T) {
	entries := []Entry{
		{Path: "/n/self.md", Tags: []string{"go", "testing"}, DescriptionKeywords: []string{"table", "driven"}},
		{Path: "/n/b.md", Tags: []string{"go", "testing", "ci"}},
		{Path: "/n/a.md", Tags: []string{"go", "testing"}},
		{Path: "/n/kw.md", Tags: []string{"go"}, DescriptionKeywords: []string{"table", "driven", "tests"}},
		{Path: "/n/one.md", Tags: []string{"go"}, DescriptionKeywords: []string{"table"}},
	}

	matches := MatchRelated(Reference{
		Tags:        []string{"go", "testing"},
		Keywords:    []string{"table", "driven"},
		ExcludePath: "/n/self.md",
	}, entries)

	require.Len(t, matches, 3)

	// equal scores fall back to path order
	assert.Equal(t, "/n/a.md", matches[0].Path)
	assert.Equal(t, 4, matches[0].Score)
	assert.Equal(t, "/n/b.md", matches[1].Path)
	assert.Equal(t, 4, matches[1].Score)
	assert.Equal(t, []string{"go", "testing"}, matches[1].SharedTags)

	assert.Equal(t, "/n/kw.md", matches[2].Path)
	assert.Equal(t, 4, matches[2].Score)
	assert.Equal(t, 1, matches[2].TagOverlap)
	assert.Equal(t, 2, matches[2].KeywordOverlap)
}

func TestMatchRelated_Threshold(t *testing.T) {
	entries := []Entry{
		{Path: "/n/x.md", Tags: []string{"go"}, DescriptionKeywords: []string{"cache"}},
	}
	matches := MatchRelated(Reference{Tags: []string{"go"}, Keywords: []string{"cache"}}, entries)
	assert.Empty(t, matches)
	assert.NotNil(t, matches)
}

func TestMatchRelated_MaxResults(t *testing.T) {
	entries := []Entry{
		{Path: "/n/1.md", Tags: []string{"a", "b", "c"}},
		{Path: "/n/2.md", Tags: []string{"a", "b"}},
		{Path: "/n/3.md", Tags: []string{"a", "b"}},
	}
	matches := MatchRelated(Reference{Tags: []string{"a", "b", "c"}, MaxResults: 2}, entries)
	require.Len(t, matches, 2)
	assert.Equal(t, "/n/1.md", matches[0].Path)
	assert.Equal(t, 6, matches[0].Score)
	assert.Equal(t, "/n/2.md", matches[1].Path)
}

func TestMatchRelated_DuplicateReferenceTerms(t *testing.T) {
	entries := []Entry{{Path: "/n/1.md", Tags: []string{"go"}}}
	matches := MatchRelated(Reference{Tags: []string{"go", "go"}}, entries)
	assert.Empty(t, matches)
}
