package memory

import (
	"sort"
)

const (
	// MinOverlap is how many shared tags or shared keywords an entry needs to count as related.
	MinOverlap = 2

	tagWeight     = 2
	keywordWeight = 1
)

// Reference describes the note that related entries are matched against.
type Reference struct {
	Tags        []string
	Keywords    []string
	ExcludePath string // usually the reference note itself
	MaxResults  int    // 0 keeps every match
}

// RelatedMatch is an entry that shares enough terms with the reference.
type RelatedMatch struct {
	Entry          Entry    `json:"-"`
	Path           string   `json:"path"`
	Score          int      `json:"score"`
	TagOverlap     int      `json:"tag_overlap"`
	KeywordOverlap int      `json:"keyword_overlap"`
	SharedTags     []string `json:"shared_tags"`
	SharedKeywords []string `json:"shared_keywords"`
}

// MatchRelated scores entries by shared tags (weight 2) and shared description
// keywords (weight 1). Entries with fewer than MinOverlap shared tags and fewer
// than MinOverlap shared keywords are dropped. Results are ordered by score,
// then by path.
func MatchRelated(ref Reference, entries []Entry) []RelatedMatch {
	refTags := uniqueOrdered(ref.Tags)
	refKeywords := uniqueOrdered(ref.Keywords)

	matches := make([]RelatedMatch, 0)
	for _, entry := range entries {
		if ref.ExcludePath != "" && entry.Path == ref.ExcludePath {
			continue
		}

		sharedTags := intersectOrdered(refTags, entry.Tags)
		sharedKeywords := intersectOrdered(refKeywords, entry.DescriptionKeywords)

		if len(sharedTags) < MinOverlap && len(sharedKeywords) < MinOverlap {
			continue
		}

		matches = append(matches, RelatedMatch{
			Entry:          entry,
			Path:           entry.Path,
			Score:          len(sharedTags)*tagWeight + len(sharedKeywords)*keywordWeight,
			TagOverlap:     len(sharedTags),
			KeywordOverlap: len(sharedKeywords),
			SharedTags:     sharedTags,
			SharedKeywords: sharedKeywords,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Path < matches[j].Path
	})

	if ref.MaxResults > 0 && len(matches) > ref.MaxResults {
		matches = matches[:ref.MaxResults]
	}

	return matches
}

// intersectOrdered returns the members of ref found in candidates, in ref order.
func intersectOrdered(ref, candidates []string) []string {
	present := toSet(candidates)
	shared := make([]string, 0)
	for _, term := range ref {
		if _, ok := present[term]; ok {
			shared = append(shared, term)
		}
	}
	return shared
}

func uniqueOrdered(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
