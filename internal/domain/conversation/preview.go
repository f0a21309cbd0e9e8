package conversation

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "…"

// Truncate keeps at most max runes of s and appends an ellipsis when something was cut.
// It never splits a multi-byte sequence.
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	count := 0
	for i := range s {
		if count == max {
			return strings.TrimRight(s[:i], " ") + ellipsis
		}
		count++
	}
	return s
}
