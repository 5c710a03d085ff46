package markdown

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var htmlSpace = regexp.MustCompile(`[ \t\r\n\f]+`)

// ParseHTML builds a document from the markup emitted by the browser
// editor. Unknown elements are transparent: their children are kept.
func ParseHTML(src string) (*Node, error) {
	if strings.TrimSpace(src) == "" {
		return Doc(), nil
	}
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse editor html: %w", err)
	}
	body := findBody(root)
	if body == nil {
		return Doc(), nil
	}
	return Doc(blocksOf(body)...), nil
}

// HTMLToMarkdown is ParseHTML followed by ToMarkdown.
func HTMLToMarkdown(src string) (string, error) {
	doc, err := ParseHTML(src)
	if err != nil {
		return "", err
	}
	return ToMarkdown(doc), nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func isBlockElement(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.P, atom.Div, atom.Pre, atom.Ul, atom.Ol, atom.Blockquote:
		return true
	}
	return false
}

func blocksOf(parent *html.Node) []*Node {
	var out, pending []*Node
	flush := func() {
		if hasVisibleText(pending) {
			out = append(out, Paragraph(pending...))
		}
		pending = nil
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if isBlockElement(c) {
			flush()
			if b := blockOf(c); b != nil {
				out = append(out, b)
			}
			continue
		}
		pending = append(pending, inlinesOf(c, 0)...)
	}
	flush()
	return out
}

func blockOf(n *html.Node) *Node {
	switch n.DataAtom {
	case atom.H1:
		return Heading(1, inlineChildren(n, 0)...)
	case atom.H2:
		return Heading(2, inlineChildren(n, 0)...)
	case atom.H3, atom.H4, atom.H5, atom.H6:
		return Heading(3, inlineChildren(n, 0)...)
	case atom.Pre:
		return CodeBlock(textContent(n))
	case atom.Ul, atom.Ol:
		ordered := n.DataAtom == atom.Ol
		var items []*Node
		for li := n.FirstChild; li != nil; li = li.NextSibling {
			if li.Type != html.ElementNode || li.DataAtom != atom.Li {
				continue
			}
			// the editor marks bullet items inside <ol> with data-list
			if attr(li, "data-list") == "bullet" {
				ordered = false
			}
			items = append(items, Item(inlineChildren(li, 0)...))
		}
		if len(items) == 0 {
			return nil
		}
		return List(ordered, items...)
	case atom.Blockquote:
		inner := blocksOf(n)
		if len(inner) == 0 {
			return nil
		}
		return Blockquote(inner...)
	}
	inline := inlineChildren(n, 0)
	if !hasVisibleText(inline) {
		return nil
	}
	return Paragraph(inline...)
}

func inlineChildren(n *html.Node, marks Mark) []*Node {
	var out []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, inlinesOf(c, marks)...)
	}
	return out
}

func inlinesOf(n *html.Node, marks Mark) []*Node {
	switch n.Type {
	case html.TextNode:
		text := htmlSpace.ReplaceAllString(n.Data, " ")
		if text == "" {
			return nil
		}
		return []*Node{Styled(text, marks)}
	case html.ElementNode:
	default:
		return nil
	}
	switch n.DataAtom {
	case atom.Br:
		return []*Node{LineBreak()}
	case atom.Strong, atom.B:
		return inlineChildren(n, marks|MarkBold)
	case atom.Em, atom.I:
		return inlineChildren(n, marks|MarkItalic)
	case atom.U:
		return inlineChildren(n, marks|MarkUnderline)
	case atom.S, atom.Del:
		return inlineChildren(n, marks|MarkStrike)
	case atom.Code:
		return []*Node{Styled(textContent(n), marks|MarkCode)}
	case atom.A:
		return []*Node{Link(attr(n, "href"), inlineChildren(n, marks)...)}
	case atom.Script, atom.Style:
		return nil
	}
	if n.Data == "strike" {
		return inlineChildren(n, marks|MarkStrike)
	}
	inner := inlineChildren(n, marks)
	if isBlockElement(n) && len(inner) > 0 {
		// block content nested in an inline context (e.g. <p> inside <li>)
		inner = append([]*Node{Text(" ")}, inner...)
	}
	return inner
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			b.WriteByte('\n')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasVisibleText(nodes []*Node) bool {
	for _, n := range nodes {
		switch n.Kind {
		case KindText:
			if strings.TrimSpace(n.Text) != "" {
				return true
			}
		case KindLink:
			return true
		}
	}
	return false
}
