// Package markdown converts proposal bodies between the rich-text document
// produced by the editor, the flat Markdown string stored on the ledger and
// a display-only HTML preview. It also owns the title/author envelope that
// prefixes every stored proposal body.
package markdown

// Kind identifies the type of a document node.
type Kind uint8

const (
	KindDocument Kind = iota
	KindHeading
	KindParagraph
	KindText
	KindCodeBlock
	KindList
	KindListItem
	KindBlockquote
	KindLink
	KindLineBreak
)

// Mark is a bit set of inline formatting applied to a text run.
type Mark uint8

const (
	MarkBold Mark = 1 << iota
	MarkItalic
	MarkCode
	MarkUnderline
	MarkStrike
)

// Has reports whether every bit of o is set in m.
func (m Mark) Has(o Mark) bool { return m&o == o }

// Node is one element of a rich-text document. Which fields are meaningful
// depends on Kind: Level for headings, Ordered for lists, Text and Marks for
// text runs, Text for code blocks, Href for links.
type Node struct {
	Kind     Kind
	Level    int
	Ordered  bool
	Text     string
	Marks    Mark
	Href     string
	Children []*Node
}

func Doc(blocks ...*Node) *Node {
	return &Node{Kind: KindDocument, Children: blocks}
}

// Heading builds a heading block; levels outside 1..3 are clamped.
func Heading(level int, inline ...*Node) *Node {
	if level < 1 {
		level = 1
	}
	if level > 3 {
		level = 3
	}
	return &Node{Kind: KindHeading, Level: level, Children: inline}
}

func Paragraph(inline ...*Node) *Node {
	return &Node{Kind: KindParagraph, Children: inline}
}

func Text(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

func Styled(s string, marks Mark) *Node {
	return &Node{Kind: KindText, Text: s, Marks: marks}
}

func CodeBlock(code string) *Node {
	return &Node{Kind: KindCodeBlock, Text: code}
}

func List(ordered bool, items ...*Node) *Node {
	return &Node{Kind: KindList, Ordered: ordered, Children: items}
}

func Item(inline ...*Node) *Node {
	return &Node{Kind: KindListItem, Children: inline}
}

func Blockquote(blocks ...*Node) *Node {
	return &Node{Kind: KindBlockquote, Children: blocks}
}

func Link(href string, inline ...*Node) *Node {
	return &Node{Kind: KindLink, Href: href, Children: inline}
}

func LineBreak() *Node {
	return &Node{Kind: KindLineBreak}
}

func isBlock(k Kind) bool {
	switch k {
	case KindHeading, KindParagraph, KindCodeBlock, KindList, KindBlockquote:
		return true
	}
	return false
}
