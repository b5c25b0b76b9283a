package text

import (
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most max runes, appending "..." when cut. Inner
// whitespace runs collapse to one space so multi-line bodies fit a log line.
func Truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
