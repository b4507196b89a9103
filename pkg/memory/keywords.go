package memory

import (
	"regexp"
	"strings"
)

// MaxKeywords bounds the keywords kept per description.
const MaxKeywords = 10

const boundaryPunctuation = `.,!?;:()[]{}"'`

var (
	plainWord  = regexp.MustCompile(`^[a-z]+$`)
	hyphenWord = regexp.MustCompile(`^[a-z]+-[a-z-]+$`)
)

var stopwords = toSet([]string{
	"the", "a", "an", "is", "was", "were", "are", "with", "for", "from",
	"to", "of", "in", "on", "at", "by", "this", "that", "be", "been",
	"has", "have", "had", "do", "does", "did", "will", "would", "could",
	"should", "may", "might", "can", "about", "into", "through", "during",
	"before", "after", "above", "below", "between", "under", "again",
	"further", "then", "once", "here", "there", "when", "where", "why",
	"how", "all", "both", "each", "few", "more", "most", "other", "some",
	"such", "no", "nor", "not", "only", "own", "same", "so", "than", "too",
	"very", "just", "but", "or", "and", "if", "as", "what", "which", "who",
	"whom", "whose", "these", "those", "am", "being", "any", "every", "many",
})

// IsStopword reports whether word is ignored by ExtractKeywords.
func IsStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}

// ExtractKeywords returns up to MaxKeywords distinct lowercase keywords from a
// description, in order of first appearance.
func ExtractKeywords(description string) []string {
	keywords := make([]string, 0, MaxKeywords)
	seen := make(map[string]struct{})

	for _, word := range strings.Fields(strings.ToLower(description)) {
		cleaned := strings.Trim(word, boundaryPunctuation)
		if len(cleaned) < 3 || IsStopword(cleaned) {
			continue
		}
		// alphabetic or hyphen-joined terms such as "ci-cd"
		if !plainWord.MatchString(cleaned) && !hyphenWord.MatchString(cleaned) {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		keywords = append(keywords, cleaned)
		if len(keywords) == MaxKeywords {
			break
		}
	}

	return keywords
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
