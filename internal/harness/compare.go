package harness

import (
	"strings"
	"unicode"
)

// normalize drops trailing whitespace only. Leading whitespace and inner blank lines are significant.
func normalize(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

func outputsMatch(actual, expected string) bool {
	return normalize(actual) == normalize(expected)
}
