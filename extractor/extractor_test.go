package extractor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/ir/raw"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func roundTrip(t *testing.T, d *document.Document) *document.Document {
	t.Helper()
	data, err := d.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := document.Load(context.Background(), data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return out
}

func newExtractor(t *testing.T, d *document.Document) *Extractor {
	t.Helper()
	e, err := New(d, Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return e
}

// withContent gives a fresh page the literal content stream and fonts.
func withContent(t *testing.T, content string, fontsDict *raw.DictObj) *document.Document {
	t.Helper()
	d := document.New()
	p := d.AddPage(200, 200)
	if fontsDict != nil {
		p.Resources().Set("Font", fontsDict)
	}
	p.Dict().Set("Contents", d.Raw().Add(raw.NewStream(raw.Dict(), []byte(content))))
	return roundTrip(t, d)
}

func TestTextItemsPositionAndWidth(t *testing.T) {
	d := document.New()
	p := d.AddPage(300, 400)
	if err := p.DrawText("Hello World", document.TextOptions{X: 40, Y: 300, Size: 18}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	if err := p.DrawText("Second", document.TextOptions{X: 40, Y: 250, Size: 10}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	items, err := newExtractor(t, roundTrip(t, d)).TextItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	first := items[0]
	if first.Str != "Hello World" || first.FontName != "Helvetica" {
		t.Fatalf("first = %+v", first)
	}
	if !near(first.Transform[4], 40) || !near(first.Transform[5], 300) || !near(math.Abs(first.Transform[3]), 18) {
		t.Fatalf("transform = %v", first.Transform)
	}
	if want := fonts.TextWidth("Helvetica", "Hello World", 18); !near(first.Width, want) {
		t.Fatalf("width = %v, want %v", first.Width, want)
	}
	if !near(first.Height, 18) {
		t.Fatalf("height = %v", first.Height)
	}
	if items[1].Str != "Second" || !near(items[1].Transform[5], 250) {
		t.Fatalf("second = %+v", items[1])
	}
}

func TestMultiLineTextUsesLeading(t *testing.T) {
	d := document.New()
	p := d.AddPage(300, 400)
	if err := p.DrawText("one\ntwo", document.TextOptions{X: 10, Y: 100, Size: 10, LineHeight: 15}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	items, err := newExtractor(t, roundTrip(t, d)).TextItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 2 || !near(items[1].Transform[5], 85) || !near(items[1].Transform[4], 10) {
		t.Fatalf("items = %+v", items)
	}
	if got := PlainText(items); got != "one\ntwo" {
		t.Fatalf("plain text = %q", got)
	}
}

func TestMatrixAndScaling(t *testing.T) {
	fontsDict := raw.Dict()
	f := raw.Dict()
	f.Set("Type", raw.NameLiteral("Font"))
	f.Set("Subtype", raw.NameLiteral("Type1"))
	f.Set("BaseFont", raw.NameLiteral("Helvetica"))
	fontsDict.Set("F1", f)
	content := "q 2 0 0 2 10 10 cm BT /F1 10 Tf 50 Tz 1 0 0 1 5 6 Tm (ab) Tj ET Q"
	items, err := newExtractor(t, withContent(t, content, fontsDict)).TextItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	it := items[0]
	if !near(it.Transform[4], 20) || !near(it.Transform[5], 22) {
		t.Fatalf("origin = %v", it.Transform)
	}
	if !near(it.Transform[3], 20) || !near(it.Transform[0], 10) {
		t.Fatalf("scale = %v", it.Transform)
	}
	// Both glyphs are 556 units; horizontal scaling halves the advance,
	// and the CTM doubles it.
	want := 2 * 0.556 * 10 * 0.5 * 2
	if !near(it.Width, want) {
		t.Fatalf("width = %v, want %v", it.Width, want)
	}
}

func TestTJKerningAndSpaces(t *testing.T) {
	content := "BT /F1 10 Tf 0 0 Td [(A) -300 (B) 50 (C)] TJ ET"
	items, err := newExtractor(t, withContent(t, content, nil)).TextItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 || items[0].Str != "A BC" {
		t.Fatalf("items = %+v", items)
	}
	a, b, c := fonts.GlyphWidth("Helvetica", 'A'), fonts.GlyphWidth("Helvetica", 'B'), fonts.GlyphWidth("Helvetica", 'C')
	want := float64(a+b+c)/1000*10 + 3 - 0.5
	if !near(items[0].Width, want) {
		t.Fatalf("width = %v, want %v", items[0].Width, want)
	}
}

const testCMap = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
2 beginbfchar
<0001> <0048>
<0002> <0069>
endbfchar
1 beginbfrange
<0010> <0012> <0061>
endbfrange
endcmap
end end`

func TestToUnicodeCMap(t *testing.T) {
	m := parseToUnicode([]byte(testCMap))
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte{0, 1}, "H"},
		{[]byte{0, 2}, "i"},
		{[]byte{0, 0x11}, "b"},
		{[]byte{0, 0x12}, "c"},
	}
	for _, tc := range cases {
		got, n, ok := m.next(tc.in)
		if !ok || n != 2 || got != tc.want {
			t.Fatalf("next(%x) = %q %d %v, want %q", tc.in, got, n, ok, tc.want)
		}
	}
	if _, _, ok := m.next([]byte{0, 0x20}); ok {
		t.Fatalf("unmapped code decoded")
	}
}

func TestType0FontWithToUnicode(t *testing.T) {
	d := document.New()
	p := d.AddPage(200, 200)
	cmap := d.Raw().Add(raw.NewStream(raw.Dict(), []byte(testCMap)))
	cid := raw.Dict()
	cid.Set("Type", raw.NameLiteral("Font"))
	cid.Set("Subtype", raw.NameLiteral("CIDFontType2"))
	cid.Set("DW", raw.NumberInt(600))
	cid.Set("W", raw.NewArray(raw.NumberInt(1), raw.NewArray(raw.NumberInt(700), raw.NumberInt(250))))
	f := raw.Dict()
	f.Set("Type", raw.NameLiteral("Font"))
	f.Set("Subtype", raw.NameLiteral("Type0"))
	f.Set("BaseFont", raw.NameLiteral("ABCDEF+Custom"))
	f.Set("Encoding", raw.NameLiteral("Identity-H"))
	f.Set("DescendantFonts", raw.NewArray(d.Raw().Add(cid)))
	f.Set("ToUnicode", cmap)
	fontsDict := raw.Dict()
	fontsDict.Set("C0", d.Raw().Add(f))
	p.Resources().Set("Font", fontsDict)
	p.Dict().Set("Contents", d.Raw().Add(raw.NewStream(raw.Dict(), []byte("BT /C0 10 Tf 0 0 Td <000100020010> Tj ET"))))

	e := newExtractor(t, roundTrip(t, d))
	items, err := e.TextItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 || items[0].Str != "Hia" || items[0].FontName != "ABCDEF+Custom" {
		t.Fatalf("items = %+v", items)
	}
	if want := (700.0 + 250 + 600) / 1000 * 10; !near(items[0].Width, want) {
		t.Fatalf("width = %v, want %v", items[0].Width, want)
	}
	fi := e.ExtractFonts()
	if len(fi) != 1 || fi[0].Subtype != "Type0" || !fi[0].HasToUnicode || fi[0].Encoding != "Identity-H" {
		t.Fatalf("fonts = %+v", fi)
	}
}

func TestDifferencesEncoding(t *testing.T) {
	enc := raw.Dict()
	enc.Set("Differences", raw.NewArray(raw.NumberInt(65), raw.NameLiteral("bullet"), raw.NameLiteral("uni00E9")))
	f := raw.Dict()
	f.Set("Type", raw.NameLiteral("Font"))
	f.Set("Subtype", raw.NameLiteral("Type1"))
	f.Set("BaseFont", raw.NameLiteral("Times-Roman"))
	f.Set("Encoding", enc)
	fontsDict := raw.Dict()
	fontsDict.Set("T", f)
	items, err := newExtractor(t, withContent(t, "BT /T 12 Tf (ABC) Tj ET", fontsDict)).TextItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 || items[0].Str != "•éC" {
		t.Fatalf("items = %+v", items)
	}
}

func TestFormXObjectText(t *testing.T) {
	d := document.New()
	p := d.AddPage(200, 200)
	formDict := raw.Dict()
	formDict.Set("Type", raw.NameLiteral("XObject"))
	formDict.Set("Subtype", raw.NameLiteral("Form"))
	formDict.Set("BBox", raw.Rect(0, 0, 100, 100))
	formDict.Set("Matrix", raw.NewArray(raw.NumberInt(1), raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(1), raw.NumberInt(30), raw.NumberInt(40)))
	xobjs := raw.Dict()
	xobjs.Set("X1", d.Raw().Add(raw.NewStream(formDict, []byte("BT /F1 9 Tf 1 2 Td (inner) Tj ET"))))
	p.Resources().Set("XObject", xobjs)
	p.Dict().Set("Contents", d.Raw().Add(raw.NewStream(raw.Dict(), []byte("q 1 0 0 1 5 5 cm /X1 Do Q"))))

	items, err := newExtractor(t, roundTrip(t, d)).TextItems(context.Background(), 0)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 || items[0].Str != "inner" || !near(items[0].Transform[4], 36) || !near(items[0].Transform[5], 47) {
		t.Fatalf("items = %+v", items)
	}
}

func TestExtractTextSkipsEmptyPages(t *testing.T) {
	d := document.New()
	d.AddPage(0, 0)
	p := d.AddPage(0, 0)
	_ = p.DrawText("Only page two", document.TextOptions{X: 50, Y: 700})
	pages, err := newExtractor(t, roundTrip(t, d)).ExtractText(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(pages) != 1 || pages[0].Page != 1 || !strings.Contains(pages[0].Content, "Only page two") {
		t.Fatalf("pages = %+v", pages)
	}
}

func TestTextItemsPageIndex(t *testing.T) {
	d := document.New()
	d.AddPage(0, 0)
	if _, err := newExtractor(t, d).TextItems(context.Background(), 3); err == nil {
		t.Fatalf("expected page index error")
	}
	if _, err := New(nil, Config{}); err == nil {
		t.Fatalf("expected nil document error")
	}
}

func TestImagesReportsPlacement(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := document.New()
	p := d.AddPage(300, 300)
	xo, err := d.EmbedImage(buf.Bytes())
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := p.DrawImage(xo, document.ImageOptions{X: 10, Y: 20, Width: 40, Height: 20}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	images, err := newExtractor(t, roundTrip(t, d)).Images(context.Background(), 0)
	if err != nil {
		t.Fatalf("images: %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("images = %+v", images)
	}
	b := images[0].Bounds()
	if !near(b.X, 10) || !near(b.Y, 20) || !near(b.Width, 40) || !near(b.Height, 20) {
		t.Fatalf("bounds = %+v", b)
	}
	if w, _ := images[0].Stream.Dict.Int("Width"); w != 4 {
		t.Fatalf("width = %d", w)
	}
}
