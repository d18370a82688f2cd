package ui

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// Truncate shortens s to at most width runes, marking the cut with "...".
func Truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	if width <= len(ellipsis) {
		return ellipsis[:max(width, 0)]
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:width-len(ellipsis)]), " ") + ellipsis
}

// FirstLine returns the first line of s, truncated to width, with "..." when
// further lines were dropped.
func FirstLine(s string, width int) string {
	line, rest, found := strings.Cut(s, "\n")
	if found && strings.TrimSpace(rest) != "" {
		return Truncate(line+" "+ellipsis, width)
	}
	return Truncate(line, width)
}

// Indent prefixes every line after the first with prefix, for continuing a
// multi-line value under a list item.
func Indent(s, prefix string) string {
	return strings.ReplaceAll(s, "\n", "\n"+prefix)
}
