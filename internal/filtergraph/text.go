package filtergraph

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// EscapeText prepares s for a single-quoted drawtext option value. Backslash,
// single quote, colon, and percent are escaped in that order.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `'\''`)
	s = strings.ReplaceAll(s, `:`, `\:`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return s
}

// WrapText breaks s into lines no wider than columns display cells. Words
// wider than columns get a line of their own. columns <= 0 disables wrapping.
func WrapText(s string, columns int) string {
	words := strings.Fields(s)
	if columns <= 0 || len(words) == 0 {
		return strings.Join(words, " ")
	}
	var (
		lines []string
		cur   []string
		width int
	)
	for _, word := range words {
		w := runewidth.StringWidth(word)
		if len(cur) > 0 && width+1+w > columns {
			lines = append(lines, strings.Join(cur, " "))
			cur, width = nil, 0
		}
		if len(cur) > 0 {
			width++
		}
		cur = append(cur, word)
		width += w
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	return strings.Join(lines, "\n")
}
