package prompt

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "..."

// Truncate shortens text to at most maxRunes code points plus Ellipsis.
// It prefers a paragraph, sentence or word boundary when one lies in the
// last fifth of the window and otherwise cuts hard. maxRunes <= 0 means
// unlimited.
func Truncate(text string, maxRunes int) string {
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	candidate := runes[:maxRunes]
	cut := findCut(candidate)
	if cut*5 <= maxRunes*4 {
		cut = maxRunes
	}
	return strings.TrimRightFunc(string(candidate[:cut]), unicode.IsSpace) + Ellipsis
}

// Clamp is Truncate with Ellipsis counted against maxRunes, so the result
// never exceeds maxRunes code points. maxRunes <= 0 means unlimited.
func Clamp(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	window := maxRunes - utf8.RuneCountInString(Ellipsis)
	if window <= 0 {
		return string([]rune(text)[:maxRunes])
	}
	return Truncate(text, window)
}

// findCut returns the rune index of the best boundary inside candidate, or 0.
func findCut(candidate []rune) int {
	s := string(candidate)
	if idx := strings.LastIndex(s, "\n\n"); idx > 0 {
		return len([]rune(s[:idx]))
	}
	for i := len(candidate) - 2; i > 0; i-- {
		r := candidate[i]
		if (r == '.' || r == '!' || r == '?') && unicode.IsSpace(candidate[i+1]) {
			return i + 1
		}
	}
	for i := len(candidate) - 1; i > 0; i-- {
		if unicode.IsSpace(candidate[i]) {
			return i
		}
	}
	return 0
}
