package learn

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// stopwords are filler words excluded from pattern triggers.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "up": {}, "about": {}, "into": {},
	"through": {}, "during": {}, "before": {}, "after": {}, "above": {},
	"below": {}, "between": {}, "among": {}, "throughout": {}, "instead": {},
}

// Keywords extracts a request's trigger tokens: lowercase words with
// stopwords and tokens shorter than three characters removed, deduplicated
// in order of first appearance.
func Keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]struct{}, len(words))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}

// Jaccard returns the similarity of two keyword slices treated as sets:
// |a ∩ b| / |a ∪ b|. Two empty sets are dissimilar, not identical.
func Jaccard(a, b []string) float64 {
	inA := make(map[string]struct{}, len(a))
	for _, w := range a {
		inA[w] = struct{}{}
	}

	union := len(inA)
	intersection := 0
	seen := make(map[string]struct{}, len(b))
	for _, w := range b {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := inA[w]; ok {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// sameSet reports whether two keyword slices contain exactly the same
// tokens, ignoring order and repetition.
func sameSet(a, b []string) bool {
	return len(a) > 0 && Jaccard(a, b) == 1
}
