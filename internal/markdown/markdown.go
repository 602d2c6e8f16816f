// Package markdown flattens model-written markdown into plain text that reads
// well inside a single spreadsheet cell.
package markdown

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// Report formats accepted by Format.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// ToPlainText drops markdown syntax while keeping the layout: headings and
// paragraphs become lines separated by a blank line, list items keep a
// "- " or "N. " prefix and code is kept verbatim.
func ToPlainText(md string) string {
	doc := markdown.Parse([]byte(md), parser.NewWithExtensions(parser.CommonExtensions))

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.Code:
			if entering {
				b.Write(n.Literal)
			}
		case *ast.CodeBlock:
			if entering {
				startBlock(&b)
				b.Write(bytes.TrimRight(n.Literal, "\n"))
				b.WriteString("\n")
			}
		case *ast.Softbreak, *ast.Hardbreak:
			if entering {
				b.WriteString("\n")
			}
		case *ast.Heading, *ast.Paragraph:
			if entering {
				if !inListItem(n) {
					startBlock(&b)
				}
			} else {
				endLine(&b)
			}
		case *ast.List:
			if entering && !inListItem(n) {
				startBlock(&b)
			}
		case *ast.ListItem:
			if entering {
				endLine(&b)
				b.WriteString(itemPrefix(n))
			}
		case *ast.HTMLSpan, *ast.HTMLBlock:
			return ast.SkipChildren
		}
		return ast.GoToNext
	})

	out := blankLinesRe.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

// Format renders text for a report cell. FormatText flattens markdown; any
// other format returns text unchanged.
func Format(text, format string) string {
	if strings.EqualFold(format, FormatText) {
		return ToPlainText(text)
	}
	return text
}

// startBlock separates a new block from preceding output with a blank line.
func startBlock(b *strings.Builder) {
	s := b.String()
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		b.WriteString("\n")
	default:
		b.WriteString("\n\n")
	}
}

func endLine(b *strings.Builder) {
	if s := b.String(); s != "" && !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
}

func inListItem(n ast.Node) bool {
	for p := n.GetParent(); p != nil; p = p.GetParent() {
		if _, ok := p.(*ast.ListItem); ok {
			return true
		}
	}
	return false
}

func itemPrefix(item *ast.ListItem) string {
	list, ok := item.GetParent().(*ast.List)
	if !ok || list.ListFlags&ast.ListTypeOrdered == 0 {
		return "- "
	}
	n := list.Start
	if n <= 0 {
		n = 1
	}
	for _, sibling := range list.GetChildren() {
		if sibling == ast.Node(item) {
			break
		}
		n++
	}
	return strconv.Itoa(n) + ". "
}
