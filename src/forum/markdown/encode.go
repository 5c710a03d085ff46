package markdown

import (
	"strconv"
	"strings"
)

// ToMarkdown flattens a rich-text document into the Markdown subset stored
// on the ledger. Runs of blank lines outside code fences collapse to one
// and the result is trimmed.
func ToMarkdown(doc *Node) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	switch {
	case doc.Kind == KindDocument || doc.Kind == KindListItem:
		writeBlocks(&b, doc.Children)
	case isBlock(doc.Kind):
		writeBlock(&b, doc)
	default:
		b.WriteString(renderInline([]*Node{doc}))
	}
	return strings.TrimSpace(collapseBlankRuns(b.String()))
}

// collapseBlankRuns keeps at most one empty line in a row. Lines inside
// ``` fences are left alone.
func collapseBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	inFence, blank := false, 0
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
		}
		if !inFence && line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// writeBlocks renders children, wrapping stray inline nodes in implicit
// paragraphs.
func writeBlocks(b *strings.Builder, nodes []*Node) {
	var pending []*Node
	flush := func() {
		if len(pending) == 0 {
			return
		}
		writeBlock(b, Paragraph(pending...))
		pending = nil
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if isBlock(n.Kind) {
			flush()
			writeBlock(b, n)
			continue
		}
		pending = append(pending, n)
	}
	flush()
}

func writeBlock(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindHeading:
		text := strings.TrimSpace(renderInline(n.Children))
		if text == "" {
			return
		}
		b.WriteString(strings.Repeat("#", n.Level))
		b.WriteByte(' ')
		b.WriteString(text)
		b.WriteString("\n\n")
	case KindParagraph:
		text := strings.TrimSpace(renderInline(n.Children))
		if text == "" {
			return
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	case KindCodeBlock:
		b.WriteString("```\n")
		b.WriteString(strings.TrimSuffix(n.Text, "\n"))
		b.WriteString("\n```\n\n")
	case KindList:
		num := 0
		for _, item := range n.Children {
			if item == nil {
				continue
			}
			text := strings.TrimSpace(renderItem(item))
			if n.Ordered {
				num++
				b.WriteString(strconv.Itoa(num))
				b.WriteString(". ")
			} else {
				b.WriteString("- ")
			}
			b.WriteString(text)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	case KindBlockquote:
		var inner strings.Builder
		writeBlocks(&inner, n.Children)
		body := strings.TrimSpace(collapseBlankRuns(inner.String()))
		if body == "" {
			return
		}
		for _, line := range strings.Split(body, "\n") {
			if line == "" {
				b.WriteString(">\n")
				continue
			}
			b.WriteString("> ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
}

// renderItem renders a list item on a single logical line. Block children
// (paragraphs, nested lists) are flattened into their inline text.
func renderItem(item *Node) string {
	if item.Kind != KindListItem {
		return renderInline([]*Node{item})
	}
	var parts []string
	var pending []*Node
	flush := func() {
		if len(pending) > 0 {
			parts = append(parts, strings.TrimSpace(renderInline(pending)))
			pending = nil
		}
	}
	for _, c := range item.Children {
		if c == nil {
			continue
		}
		if isBlock(c.Kind) {
			flush()
			parts = append(parts, strings.TrimSpace(renderInline(inlineOf(c))))
			continue
		}
		pending = append(pending, c)
	}
	flush()
	return strings.Join(nonEmpty(parts), " ")
}

func inlineOf(n *Node) []*Node {
	if n.Kind == KindCodeBlock {
		return []*Node{Styled(n.Text, MarkCode)}
	}
	if !isBlock(n.Kind) && n.Kind != KindListItem {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		out = append(out, inlineOf(c)...)
	}
	return out
}

func renderInline(nodes []*Node) string {
	var b strings.Builder
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		if n == nil {
			continue
		}
		switch n.Kind {
		case KindText:
			// adjacent runs with identical marks render as one span
			text := n.Text
			for i+1 < len(nodes) && nodes[i+1] != nil && nodes[i+1].Kind == KindText && nodes[i+1].Marks == n.Marks {
				i++
				text += nodes[i].Text
			}
			b.WriteString(wrapMarks(text, n.Marks))
		case KindLineBreak:
			b.WriteByte('\n')
		case KindLink:
			label := strings.TrimSpace(renderInline(n.Children))
			if label == "" {
				label = n.Href
			}
			b.WriteByte('[')
			b.WriteString(label)
			b.WriteString("](")
			b.WriteString(n.Href)
			b.WriteByte(')')
		default:
			b.WriteString(renderInline(inlineOf(n)))
		}
	}
	return b.String()
}

// wrapMarks applies inline markers to a text run, keeping surrounding
// whitespace outside the markers so they stay valid Markdown.
func wrapMarks(text string, marks Mark) string {
	if marks == 0 || strings.TrimSpace(text) == "" {
		return text
	}
	core := strings.TrimSpace(text)
	lead := text[:strings.Index(text, core)]
	trail := text[len(lead)+len(core):]

	if marks.Has(MarkCode) {
		core = "`" + strings.ReplaceAll(core, "`", "\\`") + "`"
	}
	if marks.Has(MarkStrike) {
		core = "~~" + core + "~~"
	}
	if marks.Has(MarkItalic) {
		core = "*" + core + "*"
	}
	if marks.Has(MarkBold) {
		core = "**" + core + "**"
	}
	return lead + core + trail
}

func nonEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
