package editor

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/wudi/pdfstudio/canvas"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
)

type call struct {
	op       string
	page     int
	text     string
	textOpts document.TextOptions
	rect     document.RectOptions
	circ     document.CircleOptions
	img      document.ImageOptions
}

// recordingTarget captures drawing calls in order.
type recordingTarget struct {
	pages int
	calls []call
	fonts []string
	saves int
	err   error
}

func (r *recordingTarget) PageCount() int { return r.pages }

func (r *recordingTarget) EmbedFont(name string) (*document.Font, error) {
	r.fonts = append(r.fonts, name)
	return &document.Font{}, nil
}

func (r *recordingTarget) DrawText(page int, text string, opts document.TextOptions) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, call{op: "text", page: page, text: text, textOpts: opts})
	return nil
}

func (r *recordingTarget) DrawRectangle(page int, opts document.RectOptions) error {
	r.calls = append(r.calls, call{op: "rect", page: page, rect: opts})
	return nil
}

func (r *recordingTarget) DrawCircle(page int, opts document.CircleOptions) error {
	r.calls = append(r.calls, call{op: "circle", page: page, circ: opts})
	return nil
}

func (r *recordingTarget) DrawImage(page int, data []byte, opts document.ImageOptions) error {
	r.calls = append(r.calls, call{op: "image", page: page, img: opts})
	return nil
}

func (r *recordingTarget) Save(context.Context) ([]byte, error) {
	r.saves++
	return []byte("%PDF-saved"), nil
}

func TestExportTextCoordinates(t *testing.T) {
	s := NewScene(20)
	e := &Element{Kind: KindText, X: 50, Y: 50, Text: "a", FontSize: 12, Color: "#000000"}
	s.Add(e)
	if err := s.ApplyProperties(Patch{Text: ptr("Hello")}, sixPerRune, 1.2); err != nil {
		t.Fatalf("apply: %v", err)
	}
	target := &recordingTarget{pages: 1}
	x := &Exporter{Space: coords.Space{Scale: 1.5, PageHeight: 900}, Scene: s}
	res, err := x.Export(context.Background(), target)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(target.calls) != 1 || target.calls[0].op != "text" {
		t.Fatalf("calls = %+v", target.calls)
	}
	got := target.calls[0].textOpts
	if !near(got.X, 50/1.5) {
		t.Fatalf("x = %v", got.X)
	}
	if want := (900 - 50 - e.Height) / 1.5; !near(got.Y, want) {
		t.Fatalf("y = %v, want %v", got.Y, want)
	}
	if got.Size != 12 || target.calls[0].text != "Hello" {
		t.Fatalf("size %v text %q", got.Size, target.calls[0].text)
	}
	if len(target.fonts) != 1 || target.fonts[0] != "Helvetica" {
		t.Fatalf("fonts = %v", target.fonts)
	}
	if res.Texts != 1 || string(res.Data) != "%PDF-saved" || target.saves != 1 {
		t.Fatalf("result = %+v saves=%d", res, target.saves)
	}
}

func TestExportMasksBeforeElements(t *testing.T) {
	runs := []TextRun{
		{ID: "extracted_0", X: 30, Y: 30, Width: 80, Height: 14},
		{ID: "extracted_1", X: 0, Y: 0, Width: 10, Height: 10},
	}
	s := NewScene(20)
	s.Add(&Element{Kind: KindShape, Shape: ShapeRectangle, X: 0, Y: 0, Width: 30, Height: 15, FillColor: "#ff0000", BorderColor: "bogus"})
	s.Add(&Element{Kind: KindText, X: 30, Y: 30, Width: 80, Height: 14, FontSize: 14, Text: "x", IsReplacement: true, ReplacesID: "extracted_0"})
	s.Mask("extracted_0")

	target := &recordingTarget{pages: 3}
	x := &Exporter{
		Space:   coords.Space{Scale: 1.5, PageHeight: 900},
		Scene:   s,
		Runs:    runs,
		Options: ExportOptions{PageIndex: 2},
	}
	res, err := x.Export(context.Background(), target)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	ops := []string{}
	for _, c := range target.calls {
		ops = append(ops, c.op)
		if c.page != 2 {
			t.Fatalf("drew on page %d", c.page)
		}
	}
	if len(ops) != 3 || ops[0] != "rect" || ops[1] != "rect" || ops[2] != "text" {
		t.Fatalf("ops = %v", ops)
	}
	mask := target.calls[0].rect
	if !near(mask.X, 20) || !near(mask.Y, (900-30-14)/1.5) || !near(mask.Width, 84/1.5) || !near(mask.Height, 18/1.5) {
		t.Fatalf("mask = %+v", mask)
	}
	if mask.Color == nil || *mask.Color != document.RGB(1, 1, 1) || mask.BorderColor != nil {
		t.Fatalf("mask paint = %+v", mask)
	}
	shape := target.calls[1].rect
	if shape.BorderWidth != 2 || *shape.Color != document.RGB(1, 0, 0) || *shape.BorderColor != (document.Color{}) {
		t.Fatalf("shape = %+v", shape)
	}
	if !near(shape.Y, (900-0-15)/1.5) || !near(shape.Width, 20) || !near(shape.Height, 10) {
		t.Fatalf("shape box = %+v", shape)
	}
	if res.Masks != 1 || res.Shapes != 1 || res.Texts != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExportSkipsCirclesAndImagesByDefault(t *testing.T) {
	s := NewScene(20)
	s.Add(&Element{Kind: KindShape, Shape: ShapeCircle, X: 0, Y: 0, Width: 30, Height: 60, FillColor: "#000000", BorderColor: "#000000"})
	s.Add(&Element{Kind: KindImage, X: 0, Y: 0, Width: 4, Height: 4, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))})

	target := &recordingTarget{pages: 1}
	x := &Exporter{Space: coords.Space{Scale: 1, PageHeight: 100}, Scene: s}
	res, err := x.Export(context.Background(), target)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(target.calls) != 0 || res.Skipped != 2 {
		t.Fatalf("calls = %+v result = %+v", target.calls, res)
	}

	target = &recordingTarget{pages: 1}
	x.Options = ExportOptions{IncludeCircles: true, IncludeImages: true}
	res, err = x.Export(context.Background(), target)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(target.calls) != 2 || target.calls[0].op != "circle" || target.calls[1].op != "image" {
		t.Fatalf("calls = %+v", target.calls)
	}
	c := target.calls[0].circ
	if c.X != 15 || c.Y != 70 || c.Size != 15 || c.BorderWidth != 2 {
		t.Fatalf("circle = %+v", c)
	}
	if img := target.calls[1].img; img.Y != 96 || img.Width != 4 {
		t.Fatalf("image = %+v", img)
	}
	if res.Shapes != 1 || res.Images != 1 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExportEmptySceneOnlySaves(t *testing.T) {
	target := &recordingTarget{pages: 1}
	x := &Exporter{Space: coords.Space{Scale: 1.5, PageHeight: 900}, Scene: NewScene(20)}
	res, err := x.Export(context.Background(), target)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(target.calls) != 0 || len(target.fonts) != 0 || target.saves != 1 || res.Data == nil {
		t.Fatalf("calls=%v fonts=%v saves=%d", target.calls, target.fonts, target.saves)
	}
}

func TestExportPropagatesTargetErrors(t *testing.T) {
	boom := errors.New("boom")
	s := NewScene(20)
	s.Add(&Element{Kind: KindText, Text: "x", FontSize: 10})
	target := &recordingTarget{pages: 1, err: boom}
	x := &Exporter{Space: coords.Space{Scale: 1, PageHeight: 100}, Scene: s}
	if _, err := x.Export(context.Background(), target); err != boom {
		t.Fatalf("err = %v, want the target's error unchanged", err)
	}
	if target.saves != 0 {
		t.Fatalf("saved after a failed draw")
	}

	x.Options.PageIndex = 1
	if _, err := x.Export(context.Background(), &recordingTarget{pages: 1}); !errors.Is(err, document.ErrPageIndex) {
		t.Fatalf("expected ErrPageIndex, got %v", err)
	}
}

func TestExportUnencodableTextFails(t *testing.T) {
	d := document.New()
	d.AddPage(200, 100)
	s := NewScene(20)
	s.Add(&Element{Kind: KindText, Text: "日本", FontSize: 10, Color: "#000000"})
	x := &Exporter{Space: coords.Space{Scale: 1, PageHeight: 100}, Scene: s}
	if _, err := x.Export(context.Background(), DocumentTarget{Doc: d}); !errors.Is(err, document.ErrUnencodable) {
		t.Fatalf("expected ErrUnencodable, got %v", err)
	}
}

func TestPainterMasksInflatedRun(t *testing.T) {
	cv, err := canvas.New(200, 100, nil)
	if err != nil {
		t.Fatalf("canvas: %v", err)
	}
	bg := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for i := range bg.Pix {
		bg.Pix[i] = 0
		if i%4 == 3 {
			bg.Pix[i] = 0xff
		}
	}
	s := NewScene(20)
	runs := []TextRun{{ID: "extracted_0", X: 30, Y: 30, Width: 80, Height: 14}}
	s.Mask("extracted_0")

	p := Painter{MaskMargin: 2, SelectionMargin: 2}
	p.Redraw(cv, bg, s, runs)

	white := color.RGBA{0xff, 0xff, 0xff, 0xff}
	black := color.RGBA{0, 0, 0, 0xff}
	probes := []struct {
		x, y int
		want color.RGBA
	}{
		{28, 28, white},
		{111, 45, white},
		{70, 37, white},
		{27, 28, black},
		{28, 27, black},
		{112, 45, black},
		{111, 46, black},
	}
	for _, pr := range probes {
		if got := cv.At(pr.x, pr.y); got != pr.want {
			t.Fatalf("pixel (%d,%d) = %v, want %v", pr.x, pr.y, got, pr.want)
		}
	}
}

func TestPainterSelectionAndShapes(t *testing.T) {
	cv, err := canvas.New(200, 200, nil)
	if err != nil {
		t.Fatalf("canvas: %v", err)
	}
	s := NewScene(20)
	s.Add(&Element{Kind: KindShape, Shape: ShapeRectangle, X: 50, Y: 50, Width: 100, Height: 50, FillColor: "#3498db", BorderColor: "#2c3e50"})

	Painter{MaskMargin: 2, SelectionMargin: 2}.Redraw(cv, nil, s, nil)

	if got := cv.At(100, 75); got != (color.RGBA{0x34, 0x98, 0xdb, 0xff}) {
		t.Fatalf("fill = %v", got)
	}
	if got := cv.At(50, 75); got != (color.RGBA{0x2c, 0x3e, 0x50, 0xff}) {
		t.Fatalf("border = %v", got)
	}
	// The selection outline runs 2px outside the box; its first dash
	// starts at the top-left corner.
	if got := cv.At(49, 47); got != selectionColor {
		t.Fatalf("selection = %v", got)
	}
	if got := cv.At(10, 10); got != (color.RGBA{0xff, 0xff, 0xff, 0xff}) {
		t.Fatalf("background = %v", got)
	}
}
