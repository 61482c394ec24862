package document

import (
	"strings"
	"unicode/utf8"
)

// EstimateTokens approximates the token count of text as one token per four
// runes, rounded up. Leading and trailing whitespace is not counted.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return (n + 3) / 4
}
