package layout

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// RenderMarkdown parses source with goldmark and lays it out.
func (e *Engine) RenderMarkdown(source string) error {
	md := goldmark.New()
	src := []byte(source)
	doc := md.Parser().Parse(text.NewReader(src))
	e.walkMarkdown(doc, src, block{})
	return e.finish()
}

func (e *Engine) walkMarkdown(node ast.Node, src []byte, b block) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if e.err != nil {
			return
		}
		switch n := child.(type) {
		case *ast.Heading:
			size := e.headingSize(n.Level)
			spans := e.markdownInline(n, src, inline{bold: true, size: size, color: b.color})
			e.renderSpans(spans, e.Margins.Left+b.indent, size*e.LineHeight)
		case *ast.Paragraph:
			e.renderSpans(e.markdownInline(n, src, inline{color: b.color}), e.Margins.Left+b.indent, e.DefaultFontSize*e.LineHeight)
			if _, inList := node.(*ast.ListItem); !inList {
				e.paragraphSpacing()
			}
		case *ast.TextBlock:
			e.renderSpans(e.markdownInline(n, src, inline{color: b.color}), e.Margins.Left+b.indent, e.DefaultFontSize*e.LineHeight)
		case *ast.List:
			i := 0
			for item := n.FirstChild(); item != nil; item = item.NextSibling() {
				marker := "•"
				if n.IsOrdered() {
					marker = strconv.Itoa(n.Start+i) + "."
				}
				e.marker(marker, e.Margins.Left+b.indent, b.color)
				e.walkMarkdown(item, src, block{indent: b.indent + listIndent, color: b.color})
				i++
			}
		case *ast.FencedCodeBlock:
			e.codeLines(n.Lines(), src, b)
		case *ast.CodeBlock:
			e.codeLines(n.Lines(), src, b)
		case *ast.Blockquote:
			e.walkMarkdown(n, src, block{indent: b.indent + listIndent, color: quoteColor})
		case *ast.ThematicBreak:
			e.rule(b.indent)
		default:
			e.walkMarkdown(child, src, b)
		}
	}
}

func (e *Engine) codeLines(lines *text.Segments, src []byte, b block) {
	lineHeight := e.DefaultFontSize * e.LineHeight
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(src)), "\r\n")
		if strings.TrimSpace(line) == "" {
			e.blankLine(lineHeight)
			continue
		}
		e.renderSpans([]TextSpan{e.span(line, inline{code: true, color: b.color})}, e.Margins.Left+b.indent, lineHeight)
	}
	e.paragraphSpacing()
}

// markdownInline flattens the inline children of node into styled spans.
func (e *Engine) markdownInline(node ast.Node, src []byte, base inline) []TextSpan {
	var out []TextSpan
	var walk func(n ast.Node, st inline)
	walk = func(n ast.Node, st inline) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch v := c.(type) {
			case *ast.Text:
				s := string(v.Segment.Value(src))
				switch {
				case v.HardLineBreak():
					s += "\n"
				case v.SoftLineBreak():
					s += " "
				}
				out = append(out, e.span(s, st))
			case *ast.String:
				out = append(out, e.span(string(v.Value), st))
			case *ast.CodeSpan:
				cs := st
				cs.code = true
				walk(v, cs)
			case *ast.Emphasis:
				es := st
				if v.Level >= 2 {
					es.bold = true
				} else {
					es.italic = true
				}
				walk(v, es)
			case *ast.Link:
				ls := st
				ls.underline = true
				ls.color = linkColor
				walk(v, ls)
			case *ast.AutoLink:
				ls := st
				ls.underline = true
				ls.color = linkColor
				out = append(out, e.span(string(v.Label(src)), ls))
			case *ast.RawHTML:
			default:
				walk(c, st)
			}
		}
	}
	walk(node, base)
	return out
}
