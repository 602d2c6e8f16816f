// Package placeholder shields code and links in interview notes from being
// rewritten. Protected spans are replaced by [KEEPn] markers before the text
// goes to the model and put back afterwards.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]+`")
	urlRe        = regexp.MustCompile(`https?://[^\s<>"']+`)
	markerRe     = regexp.MustCompile(`\[KEEP(\d+)\]`)
)

// Set holds the spans captured by Protect, indexed by marker number.
type Set struct {
	spans []string
}

// Protect replaces fenced code, inline code and URLs with numbered markers
// in order of appearance. Longer constructs are matched first so a URL
// inside a code span stays part of that span.
func Protect(text string) (string, *Set) {
	s := &Set{}
	replace := func(match string) string {
		marker := fmt.Sprintf("[KEEP%d]", len(s.spans))
		s.spans = append(s.spans, match)
		return marker
	}

	text = fencedCodeRe.ReplaceAllStringFunc(text, replace)
	text = inlineCodeRe.ReplaceAllStringFunc(text, replace)
	text = urlRe.ReplaceAllStringFunc(text, replace)
	return text, s
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.spans)
}

// Restore puts the captured spans back. Markers with an unknown number are
// left as they are.
func (s *Set) Restore(text string) string {
	if s.Len() == 0 {
		return text
	}
	return markerRe.ReplaceAllStringFunc(text, func(match string) string {
		n, err := strconv.Atoi(markerRe.FindStringSubmatch(match)[1])
		if err != nil || n >= len(s.spans) {
			return match
		}
		return s.spans[n]
	})
}

// Missing returns the marker numbers absent from text.
func (s *Set) Missing(text string) []int {
	var missing []int
	for i := 0; i < s.Len(); i++ {
		if !strings.Contains(text, fmt.Sprintf("[KEEP%d]", i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Hint is appended to an instruction when the text carries markers.
func Hint(lang string) string {
	if lang == "en" {
		return "Keep every [KEEPn] marker exactly as written. Each one stands for code or a link."
	}
	return "[KEEPn] 표시는 코드나 링크를 나타내므로 수정하거나 삭제하지 말고 그대로 유지해 주세요."
}
