package chatbot

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// SearchText normalizes text for matching: lower case, collapsed
// whitespace, surrounding punctuation removed.
func SearchText(text string) string {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// Similarity returns the Levenshtein similarity ratio of a and b in [0, 1]:
// 1 - distance / length of the longer string, counted in runes.
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
