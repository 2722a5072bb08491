package layout

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/wudi/pdfstudio/document"
)

// --- Mocks ---

type DrawnText struct {
	Page int
	Text string
	X, Y float64
	Opts TextOptions
}

type DrawnLine struct {
	Page           int
	X1, Y1, X2, Y2 float64
}

type MockSurface struct {
	Pages []*MockPage
	Texts []DrawnText
	Lines []DrawnLine
}

type MockPage struct {
	s     *MockSurface
	index int
	w, h  float64
}

func (m *MockSurface) NewPage(width, height float64) (Page, error) {
	p := &MockPage{s: m, index: len(m.Pages), w: width, h: height}
	m.Pages = append(m.Pages, p)
	return p, nil
}

func (m *MockSurface) MeasureText(text string, fontSize float64, font string) float64 {
	return float64(len([]rune(text))) * fontSize * 0.5
}

func (p *MockPage) DrawText(text string, x, y float64, opts TextOptions) error {
	p.s.Texts = append(p.s.Texts, DrawnText{Page: p.index, Text: text, X: x, Y: y, Opts: opts})
	return nil
}

func (p *MockPage) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) error {
	p.s.Lines = append(p.s.Lines, DrawnLine{Page: p.index, X1: x1, Y1: y1, X2: x2, Y2: y2})
	return nil
}

func (m *MockSurface) find(text string) (DrawnText, bool) {
	for _, dt := range m.Texts {
		if dt.Text == text {
			return dt, true
		}
	}
	return DrawnText{}, false
}

func TestEngineConfiguration(t *testing.T) {
	ms := &MockSurface{}

	t.Run("Default Configuration", func(t *testing.T) {
		e := NewEngine(ms)
		if e.DefaultFont != "Helvetica" {
			t.Errorf("Expected default font Helvetica, got %s", e.DefaultFont)
		}
		if e.DefaultFontSize != 12 {
			t.Errorf("Expected default font size 12, got %f", e.DefaultFontSize)
		}
		if e.pageWidth != 595.28 {
			t.Errorf("Expected default page width 595.28, got %f", e.pageWidth)
		}
	})

	t.Run("Custom Configuration", func(t *testing.T) {
		e := NewEngine(ms,
			WithDefaultFont("times new roman"),
			WithDefaultFontSize(14),
			WithLineHeight(1.5),
			WithMargins(Margins{Top: 20, Bottom: 20, Left: 20, Right: 20}),
			WithPageSize(1000, 1000),
		)
		if e.DefaultFont != "Times-Roman" {
			t.Errorf("Expected font Times-Roman, got %s", e.DefaultFont)
		}
		if e.DefaultFontSize != 14 || e.LineHeight != 1.5 || e.Margins.Top != 20 || e.pageWidth != 1000 {
			t.Errorf("options not applied: %+v", e)
		}
	})

	t.Run("Unknown font", func(t *testing.T) {
		if e := NewEngine(ms, WithDefaultFont("Comic Sans")); e.DefaultFont != "Helvetica" {
			t.Errorf("Expected fallback to Helvetica, got %s", e.DefaultFont)
		}
	})
}

func TestVariant(t *testing.T) {
	tests := []struct {
		font         string
		bold, italic bool
		want         string
	}{
		{"Helvetica", false, false, "Helvetica"},
		{"Helvetica", true, false, "Helvetica-Bold"},
		{"Helvetica-Bold", false, true, "Helvetica-Oblique"},
		{"Times-Roman", true, true, "Times-BoldItalic"},
		{"Times-Roman", false, true, "Times-Italic"},
		{"Courier", true, false, "Courier-Bold"},
		{"Symbol", true, true, "Symbol"},
	}
	for _, tt := range tests {
		if got := variant(tt.font, tt.bold, tt.italic); got != tt.want {
			t.Errorf("variant(%q, %v, %v) = %q, want %q", tt.font, tt.bold, tt.italic, got, tt.want)
		}
	}
}

func TestRenderSpansWraps(t *testing.T) {
	ms := &MockSurface{}
	// Column is 100pt wide; at size 10 each rune is 5pt.
	e := NewEngine(ms, WithPageSize(200, 400), WithMargins(Margins{Top: 10, Bottom: 10, Left: 50, Right: 50}), WithDefaultFontSize(10))
	e.renderSpans([]TextSpan{{Text: "aaaa bbbb cccc dddd eeee"}}, 50, 12)
	if err := e.finish(); err != nil {
		t.Fatalf("render: %v", err)
	}

	// "aaaa bbbb cccc dddd" is 95pt; "eeee" wraps.
	e1, ok := ms.find("eeee")
	if !ok {
		t.Fatalf("eeee not drawn: %+v", ms.Texts)
	}
	a, _ := ms.find("aaaa")
	if a.Y != 400-10-10 {
		t.Fatalf("first baseline = %v", a.Y)
	}
	if e1.Y != a.Y-12 || e1.X != 50 {
		t.Fatalf("wrapped word at (%v,%v)", e1.X, e1.Y)
	}
	d, _ := ms.find("dddd")
	if d.X != 50+15*5 {
		t.Fatalf("dddd x = %v", d.X)
	}
}

func TestRenderSpansBreaksLongWords(t *testing.T) {
	ms := &MockSurface{}
	e := NewEngine(ms, WithPageSize(200, 400), WithMargins(Margins{Top: 10, Bottom: 10, Left: 50, Right: 50}), WithDefaultFontSize(10))
	e.renderSpans([]TextSpan{{Text: strings.Repeat("x", 30)}}, 50, 12)
	if len(ms.Texts) != 2 {
		t.Fatalf("texts = %+v", ms.Texts)
	}
	if len(ms.Texts[0].Text) != 20 || len(ms.Texts[1].Text) != 10 {
		t.Fatalf("split = %q / %q", ms.Texts[0].Text, ms.Texts[1].Text)
	}
}

func TestPageBreaks(t *testing.T) {
	ms := &MockSurface{}
	e := NewEngine(ms, WithPageSize(200, 100), WithMargins(Margins{Top: 10, Bottom: 10, Left: 10, Right: 10}), WithDefaultFontSize(10))
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, "line")
	}
	e.renderSpans([]TextSpan{{Text: strings.Join(lines, "\n")}}, 10, 20)
	// 80pt of usable height at 20pt per line.
	if e.Pages() != 3 || len(ms.Pages) != 3 {
		t.Fatalf("pages = %d", e.Pages())
	}
	for _, dt := range ms.Texts {
		if dt.Y < 10 {
			t.Fatalf("text below the bottom margin: %+v", dt)
		}
	}
	if ms.Texts[4].Page != 1 || ms.Texts[8].Page != 2 {
		t.Fatalf("page assignment: %+v", ms.Texts)
	}
}

func TestDocumentSurface(t *testing.T) {
	doc := document.New()
	e := NewEngine(DocumentSurface{Doc: doc})
	if err := e.RenderMarkdown("# Title\n\nSome *styled* text.\n"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.PageCount() != 1 {
		t.Fatalf("pages = %d", doc.PageCount())
	}
	p, _ := doc.Page(0)
	content, err := p.ContentBytes(context.Background())
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	for _, want := range []string{"(Title)", "(styled)", "(text.)"} {
		if !bytes.Contains(content, []byte(want)) {
			t.Fatalf("content missing %s:\n%s", want, content)
		}
	}
	if _, err := doc.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
}
