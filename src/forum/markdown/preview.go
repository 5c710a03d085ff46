package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	headingLine = regexp.MustCompile(`^(#{1,3}) (.*)$`)
	bulletLine  = regexp.MustCompile(`^[-*+] (.*)$`)
	orderedLine = regexp.MustCompile(`^\d+\. (.*)$`)
	quoteLine   = regexp.MustCompile(`^> ?(.*)$`)

	inlineCode = regexp.MustCompile("`((?:\\\\`|[^`])+)`")
	boldStar   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnder  = regexp.MustCompile(`__(.+?)__`)
	italStar   = regexp.MustCompile(`\*(.+?)\*`)
	italUnder  = regexp.MustCompile(`\b_(.+?)_\b`)
	strike     = regexp.MustCompile(`~~(.+?)~~`)
	linkSyntax = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

// ToHTML renders Markdown into preview markup. It is display only and does
// not round-trip. Content is emitted verbatim: callers serving the result to
// a browser must run it through their own sanitizer.
func ToHTML(md string) string {
	if md == "" {
		return ""
	}
	r := previewRenderer{}
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			r.closeAll()
			var code []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				code = append(code, lines[i])
			}
			r.out.WriteString("<pre><code>")
			r.out.WriteString(strings.Join(code, "\n"))
			r.out.WriteString("</code></pre>")
			continue
		}
		if trimmed == "" {
			r.closeAll()
			continue
		}
		if m := headingLine.FindStringSubmatch(trimmed); m != nil {
			r.closeAll()
			tag := "h" + strconv.Itoa(len(m[1]))
			r.out.WriteString("<" + tag + ">" + inlineHTML(m[2]) + "</" + tag + ">")
			continue
		}
		if m := quoteLine.FindStringSubmatch(trimmed); m != nil {
			r.open(blockQuote)
			r.lineInBlock(m[1])
			continue
		}
		if m := bulletLine.FindStringSubmatch(trimmed); m != nil {
			r.open(blockBullets)
			r.out.WriteString("<li>" + inlineHTML(m[1]) + "</li>")
			continue
		}
		if m := orderedLine.FindStringSubmatch(trimmed); m != nil {
			r.open(blockNumbers)
			r.out.WriteString("<li>" + inlineHTML(m[1]) + "</li>")
			continue
		}
		r.open(blockPara)
		r.lineInBlock(line)
	}
	r.closeAll()
	return r.out.String()
}

type openBlock uint8

const (
	blockNone openBlock = iota
	blockPara
	blockQuote
	blockBullets
	blockNumbers
)

var blockTags = map[openBlock][2]string{
	blockPara:    {"<p>", "</p>"},
	blockQuote:   {"<blockquote>", "</blockquote>"},
	blockBullets: {"<ul>", "</ul>"},
	blockNumbers: {"<ol>", "</ol>"},
}

type previewRenderer struct {
	out     strings.Builder
	current openBlock
	lines   int
}

func (r *previewRenderer) open(b openBlock) {
	if r.current == b {
		return
	}
	r.closeAll()
	r.current = b
	r.lines = 0
	r.out.WriteString(blockTags[b][0])
}

func (r *previewRenderer) lineInBlock(text string) {
	if r.lines > 0 {
		r.out.WriteString("<br>")
	}
	r.lines++
	r.out.WriteString(inlineHTML(strings.TrimSpace(text)))
}

func (r *previewRenderer) closeAll() {
	if r.current == blockNone {
		return
	}
	r.out.WriteString(blockTags[r.current][1])
	r.current = blockNone
}

// inlineHTML converts inline markers. Code spans are cut out first so their
// contents are not touched by the emphasis rules.
func inlineHTML(s string) string {
	var spans []string
	s = inlineCode.ReplaceAllStringFunc(s, func(m string) string {
		inner := inlineCode.FindStringSubmatch(m)[1]
		spans = append(spans, strings.ReplaceAll(inner, "\\`", "`"))
		return "\x00" + strconv.Itoa(len(spans)-1) + "\x00"
	})
	s = linkSyntax.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = boldStar.ReplaceAllString(s, "<strong>$1</strong>")
	s = boldUnder.ReplaceAllString(s, "<strong>$1</strong>")
	s = italStar.ReplaceAllString(s, "<em>$1</em>")
	s = italUnder.ReplaceAllString(s, "<em>$1</em>")
	s = strike.ReplaceAllString(s, "<del>$1</del>")
	for i, code := range spans {
		s = strings.Replace(s, "\x00"+strconv.Itoa(i)+"\x00", "<code>"+code+"</code>", 1)
	}
	return s
}
