// Package postprocess removes common LLM artifacts from generated text.
//
// It is applied to the raw text returned by every generator provider before
// the text is written back into a spreadsheet cell.
package postprocess

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Clean removes LLM artifacts from text and returns the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Code fence unwrapping
//  3. Preamble echo removal ("Here is the refined answer:")
//  4. Quote wrapping removal
//  5. NFC normalization, so decomposed Hangul jamo compose into syllables
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = unwrapCodeFence(text)
	text = removePreambles(text)
	text = removeQuoteWrapping(text)
	return norm.NFC.String(strings.TrimSpace(text))
}

// --- thinking blocks ---

// Each tag variant is listed explicitly because RE2 has no backreferences.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- code fences ---

var codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n(.*?)\n?```$")

// unwrapCodeFence strips a fence that wraps the whole output. Fences inside
// the text are left alone.
func unwrapCodeFence(text string) string {
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// --- preambles ---

// preamblePatterns match introductory phrases models prepend even when told
// not to. Each is anchored to the start and requires a colon.
var preamblePatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [refined|revised|corrected] answer|text|feedback:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| your)? (?:refined |revised |corrected |polished )?(?:answer|text|feedback|version)\s*:`),
	// "Certainly / Sure / Of course[,] here is ...:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the| your)? (?:refined |revised |corrected |polished )?(?:answer|text|feedback|version)\s*:`),
	// "[The] refined answer:" / "Feedback:"
	regexp.MustCompile(`(?i)^(?:the )?(?:refined|revised|corrected) (?:answer|text)\s*:`),
	// "수정된 텍스트:", "수정된 답변:", "정제된 답변:"
	regexp.MustCompile(`^(?:수정된|정제된|교정된) (?:텍스트|답변)\s*:`),
}

func removePreambles(text string) string {
	for _, re := range preamblePatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- quote wrapping ---

// removeQuoteWrapping strips a matching pair of outer quotes when the entire
// text is wrapped in them. Supported pairs:
//
//	"…"  '…'  «…»  “…”  ‘…’  「…」
func removeQuoteWrapping(text string) string {
	runes := []rune(text)
	n := len(runes)
	if n < 2 {
		return text
	}
	first, last := runes[0], runes[n-1]
	if (first == '"' && last == '"') ||
		(first == '\'' && last == '\'') ||
		(first == '«' && last == '»') ||
		(first == '“' && last == '”') ||
		(first == '‘' && last == '’') ||
		(first == '「' && last == '」') {
		inner := string(runes[1 : n-1])
		// "a" and "b" is not a wrapped string.
		if strings.ContainsRune(inner, first) || strings.ContainsRune(inner, last) {
			return text
		}
		return strings.TrimSpace(inner)
	}
	return text
}
