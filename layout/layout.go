// Package layout flows structured text (Markdown, HTML) onto PDF pages:
// word wrapping with standard font metrics, headings, lists, code blocks
// and page breaks.
package layout

import (
	"fmt"
	"strings"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/fonts"
)

// Surface supplies pages and text metrics to an Engine.
type Surface interface {
	NewPage(width, height float64) (Page, error)
	MeasureText(text string, fontSize float64, font string) float64
}

// Page receives positioned text and rules. Coordinates are PDF user space
// with the origin at the bottom-left; y is the text baseline.
type Page interface {
	DrawText(text string, x, y float64, opts TextOptions) error
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) error
}

type TextOptions struct {
	Font     string
	FontSize float64
	Color    document.Color
}

type LineOptions struct {
	Color document.Color
	Width float64
}

// Engine handles the layout of structured content into pages.
type Engine struct {
	s Surface

	DefaultFont     string
	DefaultFontSize float64
	LineHeight      float64 // multiplier of the font size
	Margins         Margins

	currentPage Page
	pages       int
	cursorX     float64
	cursorY     float64
	pageWidth   float64
	pageHeight  float64
	err         error
}

// Margins defines page margins in points.
type Margins struct {
	Top, Bottom, Left, Right float64
}

type Option func(*Engine)

func WithDefaultFont(font string) Option {
	return func(e *Engine) { e.DefaultFont = font }
}

func WithDefaultFontSize(size float64) Option {
	return func(e *Engine) { e.DefaultFontSize = size }
}

// WithLineHeight sets the line height multiplier.
func WithLineHeight(height float64) Option {
	return func(e *Engine) { e.LineHeight = height }
}

func WithMargins(margins Margins) Option {
	return func(e *Engine) { e.Margins = margins }
}

// WithPageSize sets the size of pages the engine starts.
func WithPageSize(width, height float64) Option {
	return func(e *Engine) {
		e.pageWidth = width
		e.pageHeight = height
	}
}

// NewEngine creates a layout engine writing to s. Unknown font names fall
// back to Helvetica.
func NewEngine(s Surface, opts ...Option) *Engine {
	e := &Engine{
		s:               s,
		DefaultFont:     fonts.DefaultFont,
		DefaultFontSize: 12,
		LineHeight:      1.2,
		Margins:         Margins{Top: 50, Bottom: 50, Left: 50, Right: 50},
		pageWidth:       document.A4[0],
		pageHeight:      document.A4[1],
	}
	for _, opt := range opts {
		opt(e)
	}
	if name, ok := fonts.Canonical(e.DefaultFont); ok {
		e.DefaultFont = name
	} else {
		e.DefaultFont = fonts.DefaultFont
	}
	if e.DefaultFontSize <= 0 {
		e.DefaultFontSize = 12
	}
	if e.LineHeight <= 0 {
		e.LineHeight = 1.2
	}
	return e
}

// Pages reports how many pages the engine has started.
func (e *Engine) Pages() int { return e.pages }

func (e *Engine) fail(err error) {
	if e.err == nil && err != nil {
		e.err = err
	}
}

// finish returns and clears the first error recorded since the last call.
func (e *Engine) finish() error {
	err := e.err
	e.err = nil
	return err
}

func (e *Engine) ensurePage() {
	if e.currentPage == nil {
		e.newPage()
	}
}

func (e *Engine) newPage() {
	p, err := e.s.NewPage(e.pageWidth, e.pageHeight)
	if err != nil {
		e.fail(fmt.Errorf("new page: %w", err))
		return
	}
	e.currentPage = p
	e.pages++
	e.cursorX = e.Margins.Left
	e.cursorY = e.pageHeight - e.Margins.Top
}

// checkPageBreak starts a new page unless height fits above the bottom
// margin.
func (e *Engine) checkPageBreak(height float64) {
	if e.currentPage == nil {
		e.newPage()
		return
	}
	if e.cursorY-height < e.Margins.Bottom {
		e.newPage()
	}
}

func (e *Engine) drawText(text string, x, y float64, opts TextOptions) {
	if e.currentPage == nil {
		return
	}
	e.fail(e.currentPage.DrawText(text, x, y, opts))
}

func (e *Engine) drawLine(x1, y1, x2, y2 float64, opts LineOptions) {
	if e.currentPage == nil {
		return
	}
	e.fail(e.currentPage.DrawLine(x1, y1, x2, y2, opts))
}

// TextSpan is a run of text with one style.
type TextSpan struct {
	Text          string
	Font          string
	FontSize      float64
	Color         document.Color
	Underline     bool
	Strikethrough bool
}

// inline is the style state while walking inline markup.
type inline struct {
	bold, italic, code bool
	underline, strike  bool
	size               float64
	color              document.Color
}

const listIndent = 15.0

// block carries the indentation and colour of the enclosing container.
type block struct {
	indent float64
	color  document.Color
}

var (
	linkColor  = document.RGB(0, 0, 0.8)
	quoteColor = document.RGB(0.35, 0.35, 0.35)
)

func (e *Engine) span(text string, st inline) TextSpan {
	font := e.DefaultFont
	if st.code {
		font = "Courier"
	}
	size := st.size
	if size <= 0 {
		size = e.DefaultFontSize
	}
	return TextSpan{
		Text:          text,
		Font:          variant(font, st.bold, st.italic),
		FontSize:      size,
		Color:         st.color,
		Underline:     st.underline,
		Strikethrough: st.strike,
	}
}

// variant picks the bold and/or italic face of font's family.
func variant(font string, bold, italic bool) string {
	var base, b, i, bi string
	switch {
	case strings.HasPrefix(font, "Times"):
		base, b, i, bi = "Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic"
	case strings.HasPrefix(font, "Courier"):
		base, b, i, bi = "Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique"
	case strings.HasPrefix(font, "Helvetica"):
		base, b, i, bi = "Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique"
	default:
		return font
	}
	switch {
	case bold && italic:
		return bi
	case bold:
		return b
	case italic:
		return i
	}
	return base
}

func (e *Engine) headingSize(level int) float64 {
	switch {
	case level <= 1:
		return e.DefaultFontSize * 2
	case level == 2:
		return e.DefaultFontSize * 1.5
	}
	return e.DefaultFontSize * 1.25
}

func (e *Engine) paragraphSpacing() {
	if e.currentPage != nil {
		e.cursorY -= e.DefaultFontSize * e.LineHeight / 2
	}
}

// blankLine advances the cursor by one line.
func (e *Engine) blankLine(lineHeight float64) {
	e.checkPageBreak(lineHeight)
	e.cursorY -= lineHeight
}

// rule draws a horizontal line across the text column.
func (e *Engine) rule(indent float64) {
	lineHeight := e.DefaultFontSize * e.LineHeight
	e.checkPageBreak(lineHeight)
	y := e.cursorY - lineHeight/2
	e.drawLine(e.Margins.Left+indent, y, e.pageWidth-e.Margins.Right, y, LineOptions{Color: quoteColor, Width: 1})
	e.cursorY -= lineHeight
}

// marker draws a list bullet or number on the current line without moving
// the cursor.
func (e *Engine) marker(text string, x float64, color document.Color) {
	size := e.DefaultFontSize
	e.checkPageBreak(size * e.LineHeight)
	e.drawText(text, x, e.cursorY-size, TextOptions{Font: e.DefaultFont, FontSize: size, Color: color})
}

// renderSpans wraps spans into lines no wider than the text column and
// draws them, breaking pages as needed. A "\n" in a span forces a break.
func (e *Engine) renderSpans(spans []TextSpan, x, lineHeight float64) {
	if len(spans) == 0 {
		return
	}
	e.ensurePage()
	maxWidth := e.pageWidth - e.Margins.Right - x

	type wordSpan struct {
		text  string
		span  TextSpan
		width float64
	}

	var currentLine []wordSpan
	currentLineWidth := 0.0

	flushLine := func() {
		if len(currentLine) == 0 {
			return
		}
		for len(currentLine) > 0 && currentLine[len(currentLine)-1].text == " " {
			currentLine = currentLine[:len(currentLine)-1]
		}
		e.checkPageBreak(lineHeight)
		curX := x
		for _, ws := range currentLine {
			baseline := e.cursorY - ws.span.FontSize
			if ws.text != " " {
				e.drawText(ws.text, curX, baseline, TextOptions{Font: ws.span.Font, FontSize: ws.span.FontSize, Color: ws.span.Color})
			}
			if ws.span.Underline {
				e.drawLine(curX, baseline-2, curX+ws.width, baseline-2, LineOptions{Color: ws.span.Color, Width: 1})
			}
			if ws.span.Strikethrough {
				mid := baseline + ws.span.FontSize/3
				e.drawLine(curX, mid, curX+ws.width, mid, LineOptions{Color: ws.span.Color, Width: 1})
			}
			curX += ws.width
		}
		e.cursorY -= lineHeight
		currentLine = nil
		currentLineWidth = 0
	}

	for _, span := range spans {
		if span.Text == "" {
			continue
		}
		if span.Font == "" {
			span.Font = e.DefaultFont
		}
		if span.FontSize <= 0 {
			span.FontSize = e.DefaultFontSize
		}
		spaceW := e.s.MeasureText(" ", span.FontSize, span.Font)

		var tokens []string
		var tok strings.Builder
		for _, r := range span.Text {
			switch r {
			case ' ', '\t', '\r', '\n':
				if tok.Len() > 0 {
					tokens = append(tokens, tok.String())
					tok.Reset()
				}
				if r == '\n' {
					tokens = append(tokens, "\n")
				} else {
					tokens = append(tokens, " ")
				}
			default:
				tok.WriteRune(r)
			}
		}
		if tok.Len() > 0 {
			tokens = append(tokens, tok.String())
		}

		for _, token := range tokens {
			switch token {
			case "\n":
				if len(currentLine) == 0 {
					e.blankLine(lineHeight)
				}
				flushLine()
				continue
			case " ":
				if len(currentLine) == 0 {
					continue
				}
				if currentLineWidth+spaceW > maxWidth {
					flushLine()
				} else {
					currentLine = append(currentLine, wordSpan{text: " ", span: span, width: spaceW})
					currentLineWidth += spaceW
				}
				continue
			}

			w := e.s.MeasureText(token, span.FontSize, span.Font)
			switch {
			case currentLineWidth+w <= maxWidth:
				currentLine = append(currentLine, wordSpan{text: token, span: span, width: w})
				currentLineWidth += w
			case w > maxWidth:
				// Longer than a whole line: break between characters.
				flushLine()
				var sub strings.Builder
				subWidth := 0.0
				for _, r := range token {
					rw := e.s.MeasureText(string(r), span.FontSize, span.Font)
					if subWidth+rw > maxWidth && sub.Len() > 0 {
						currentLine = append(currentLine, wordSpan{text: sub.String(), span: span, width: subWidth})
						flushLine()
						sub.Reset()
						subWidth = 0
					}
					sub.WriteRune(r)
					subWidth += rw
				}
				if sub.Len() > 0 {
					currentLine = append(currentLine, wordSpan{text: sub.String(), span: span, width: subWidth})
					currentLineWidth = subWidth
				}
			default:
				flushLine()
				currentLine = append(currentLine, wordSpan{text: token, span: span, width: w})
				currentLineWidth = w
			}
		}
	}
	flushLine()
}

// DocumentSurface lays out onto a document with the standard fonts.
type DocumentSurface struct {
	Doc *document.Document
}

func (s DocumentSurface) NewPage(width, height float64) (Page, error) {
	return &documentPage{doc: s.Doc, page: s.Doc.AddPage(width, height)}, nil
}

func (s DocumentSurface) MeasureText(text string, fontSize float64, font string) float64 {
	return fonts.TextWidth(font, text, fontSize)
}

type documentPage struct {
	doc  *document.Document
	page *document.Page
}

func (p *documentPage) DrawText(text string, x, y float64, opts TextOptions) error {
	f, err := p.doc.EmbedFont(opts.Font)
	if err != nil {
		return err
	}
	return p.page.DrawText(text, document.TextOptions{X: x, Y: y, Size: opts.FontSize, Font: f, Color: opts.Color})
}

func (p *documentPage) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) error {
	p.page.DrawLine(document.LineOptions{
		Start:     coords.Point{X: x1, Y: y1},
		End:       coords.Point{X: x2, Y: y2},
		Thickness: opts.Width,
		Color:     opts.Color,
	})
	return nil
}
