package markdown

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SnippetLimit is the number of characters kept before the ellipsis.
const SnippetLimit = 500

const ellipsis = "…"

var (
	fencedBlock   = regexp.MustCompile("(?s)```.*?(```|$)")
	inlineSpan    = regexp.MustCompile("`[^`]*`")
	imageSyntax   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkLabel     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	quoteMarker   = regexp.MustCompile(`(?m)^\s*>+\s?`)
	headingMarker = regexp.MustCompile(`(?m)^\s*#{1,6}\s*`)
	listMarker    = regexp.MustCompile(`(?m)^\s*(?:[-+]|\d+\.)\s+`)
	punctuation   = regexp.MustCompile("[`*_~#]+")
	whitespace    = regexp.MustCompile(`\s+`)
)

// PlainText strips Markdown syntax and collapses whitespace. Code blocks,
// inline code and images are dropped; link labels are kept.
func PlainText(md string) string {
	if md == "" {
		return ""
	}
	s := fencedBlock.ReplaceAllString(md, " ")
	s = inlineSpan.ReplaceAllString(s, " ")
	s = imageSyntax.ReplaceAllString(s, " ")
	s = linkLabel.ReplaceAllString(s, "$1")
	s = quoteMarker.ReplaceAllString(s, "")
	s = headingMarker.ReplaceAllString(s, "")
	s = listMarker.ReplaceAllString(s, "")
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Snippet is PlainText capped at SnippetLimit characters, with an ellipsis
// appended when the text was cut.
func Snippet(md string) string {
	s := PlainText(md)
	if utf8.RuneCountInString(s) <= SnippetLimit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:SnippetLimit]), " ") + ellipsis
}
