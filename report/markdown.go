package report

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// RenderMarkdown typesets a Markdown document to PDF.
func (r *Renderer) RenderMarkdown(source []byte) ([]byte, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	e := newEngine(r.cfg.Font)
	walkMarkdown(e, doc, source)
	e.ensurePage()
	return e.bytes()
}

func walkMarkdown(e *engine, node ast.Node, source []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Heading:
			e.heading(string(n.Text(source)), n.Level)
		case *ast.Paragraph:
			e.paragraph(paragraphText(n, source))
		case *ast.List:
			walkMarkdown(e, n, source)
		case *ast.ListItem:
			e.listItem(string(n.Text(source)))
		}
	}
}

// paragraphText concatenates the inline runs of a paragraph, treating soft
// line breaks as spaces.
func paragraphText(n *ast.Paragraph, source []byte) string {
	var sb strings.Builder
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			continue
		}
		sb.Write(child.Text(source))
	}
	return sb.String()
}
