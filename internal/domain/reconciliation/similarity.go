package reconciliation

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// ReferenceSimilarity compares two free-text references in [0,1].
// It is the larger of the token overlap (Jaccard) ratio and the normalized
// edit-distance similarity of the normalized strings, so "INV-4471" and
// "inv 4471" score 1 and "INV-4471" and "INV-4417" still score highly.
// Either side empty scores 0.
func ReferenceSimilarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	return clamp01(max(tokenOverlap(ta, tb), editSimilarity(strings.Join(ta, ""), strings.Join(tb, ""))))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenOverlap(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	intersection := 0
	for _, t := range b {
		if _, dup := setB[t]; dup {
			continue
		}
		setB[t] = struct{}{}
		if _, ok := setA[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func editSimilarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}
