// Package validator checks generated text before it is accepted as a cell
// value.
package validator

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the rune count below which MinLength reports a
// response as too short.
const DefaultMinLength = 3

// ErrEmpty is returned for blank generated text.
var ErrEmpty = errors.New("Response is empty")

// Rule is a single check over generated text. Message is reported when
// Check returns false.
type Rule struct {
	Check   func(text string) bool
	Message string
}

// MinLength rejects text shorter than n runes after trimming.
func MinLength(n int) Rule {
	return Rule{
		Check: func(text string) bool {
			return utf8.RuneCountInString(strings.TrimSpace(text)) >= n
		},
		Message: "Response is too short",
	}
}

// ValidationError lists every failed rule.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// Validate returns ErrEmpty for blank text and a *ValidationError when any
// rule fails. Rules are not evaluated for blank text.
func Validate(text string, rules ...Rule) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}

	var msgs []string
	for _, r := range rules {
		if r.Check != nil && !r.Check(text) {
			msgs = append(msgs, r.Message)
		}
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}
