package layout

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RenderHTML parses source as an HTML fragment or document and lays out
// its block elements.
func (e *Engine) RenderHTML(source string) error {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return err
	}
	e.walkHTML(doc, block{})
	return e.finish()
}

func (e *Engine) walkHTML(n *html.Node, b block) {
	if e.err != nil {
		return
	}
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			level, _ := strconv.Atoi(n.Data[1:])
			size := e.headingSize(level)
			spans := e.htmlInline(n, inline{bold: true, size: size, color: b.color})
			e.renderSpans(spans, e.Margins.Left+b.indent, size*e.LineHeight)
			return
		case atom.P:
			e.renderSpans(e.htmlInline(n, inline{color: b.color}), e.Margins.Left+b.indent, e.DefaultFontSize*e.LineHeight)
			e.paragraphSpacing()
			return
		case atom.Ul, atom.Ol:
			e.htmlList(n, b)
			return
		case atom.Pre:
			lineHeight := e.DefaultFontSize * e.LineHeight
			body := strings.TrimPrefix(textOf(n), "\n")
			for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
				if strings.TrimSpace(line) == "" {
					e.blankLine(lineHeight)
					continue
				}
				e.renderSpans([]TextSpan{e.span(line, inline{code: true, color: b.color})}, e.Margins.Left+b.indent, lineHeight)
			}
			e.paragraphSpacing()
			return
		case atom.Blockquote:
			b = block{indent: b.indent + listIndent, color: quoteColor}
		case atom.Hr:
			e.rule(b.indent)
			return
		case atom.Head, atom.Script, atom.Style, atom.Template:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walkHTML(c, b)
	}
}

func (e *Engine) htmlList(n *html.Node, b block) {
	ordered := n.DataAtom == atom.Ol
	num := 1
	if ordered {
		if v, err := strconv.Atoi(attr(n, "start")); err == nil {
			num = v
		}
	}
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		marker := "•"
		if ordered {
			marker = strconv.Itoa(num) + "."
			num++
		}
		e.marker(marker, e.Margins.Left+b.indent, b.color)
		inner := block{indent: b.indent + listIndent, color: b.color}
		spans := e.htmlInline(li, inline{color: b.color})
		if hasText(spans) {
			e.renderSpans(spans, e.Margins.Left+inner.indent, e.DefaultFontSize*e.LineHeight)
		} else {
			e.cursorY -= e.DefaultFontSize * e.LineHeight
		}
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				e.htmlList(c, inner)
			}
		}
	}
}

// htmlInline flattens n's inline content into styled spans. Nested lists
// are left to the caller.
func (e *Engine) htmlInline(n *html.Node, base inline) []TextSpan {
	var out []TextSpan
	var walk func(n *html.Node, st inline)
	walk = func(n *html.Node, st inline) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				out = append(out, e.span(collapseSpace(c.Data), st))
			case html.ElementNode:
				s := st
				switch c.DataAtom {
				case atom.B, atom.Strong:
					s.bold = true
				case atom.I, atom.Em:
					s.italic = true
				case atom.Code, atom.Tt, atom.Kbd, atom.Samp:
					s.code = true
				case atom.U, atom.Ins:
					s.underline = true
				case atom.S, atom.Del, atom.Strike:
					s.strike = true
				case atom.A:
					s.underline = true
					s.color = linkColor
				case atom.Br:
					out = append(out, e.span("\n", st))
					continue
				case atom.Ul, atom.Ol, atom.Script, atom.Style:
					continue
				}
				walk(c, s)
			}
		}
	}
	walk(n, base)
	return out
}

func hasText(spans []TextSpan) bool {
	for _, s := range spans {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// collapseSpace folds each run of white space into one space.
func collapseSpace(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
