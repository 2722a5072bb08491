package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/wudi/pdfstudio/contentstream"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/ir/raw"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func openDoc(t *testing.T, build func(d *document.Document)) *Document {
	t.Helper()
	d := document.New()
	build(d)
	data, err := d.Save(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := Open(context.Background(), data, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return out
}

func TestPageIsOneBased(t *testing.T) {
	doc := openDoc(t, func(d *document.Document) { d.AddPage(100, 100); d.AddPage(100, 100) })
	if doc.NumPages() != 2 {
		t.Fatalf("pages = %d", doc.NumPages())
	}
	if p, err := doc.Page(2); err != nil || p.Number() != 2 {
		t.Fatalf("page 2: %v", err)
	}
	for _, n := range []int{0, 3} {
		if _, err := doc.Page(n); !errors.Is(err, ErrPageNumber) {
			t.Fatalf("page %d: expected ErrPageNumber, got %v", n, err)
		}
	}
}

func TestViewportScalesAndRotates(t *testing.T) {
	doc := openDoc(t, func(d *document.Document) {
		d.AddPage(200, 100)
		p := d.AddPage(200, 100)
		p.Dict().Set("Rotate", raw.NumberInt(90))
	})
	p1, _ := doc.Page(1)
	vp := p1.Viewport(1.5)
	if vp.Width != 300 || vp.Height != 150 {
		t.Fatalf("viewport = %vx%v", vp.Width, vp.Height)
	}
	if w, h := vp.PixelSize(); w != 300 || h != 150 {
		t.Fatalf("pixels = %dx%d", w, h)
	}
	// The top-left corner of the page lands on the canvas origin.
	if pt := vp.CanvasTransform().Transform(coords.Point{X: 0, Y: 100}); !near(pt.X, 0) || !near(pt.Y, 0) {
		t.Fatalf("top-left maps to %+v", pt)
	}
	if pt := vp.CanvasTransform().Transform(coords.Point{X: 200, Y: 0}); !near(pt.X, 300) || !near(pt.Y, 150) {
		t.Fatalf("bottom-right maps to %+v", pt)
	}

	p2, _ := doc.Page(2)
	rv := p2.Viewport(1)
	if rv.Width != 100 || rv.Height != 200 || rv.Rotation != 90 {
		t.Fatalf("rotated viewport = %+v", rv)
	}
}

func TestTextContentIsScaled(t *testing.T) {
	doc := openDoc(t, func(d *document.Document) {
		p := d.AddPage(400, 600)
		_ = p.DrawText("Hello", document.TextOptions{X: 50, Y: 500, Size: 12})
	})
	page, _ := doc.Page(1)
	vp := page.Viewport(1.5)
	items, err := page.TextContent(context.Background(), vp)
	if err != nil {
		t.Fatalf("text content: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	it := items[0]
	if !near(it.Transform[4], 75) || !near(it.Transform[5], 750) || !near(it.Transform[3], 18) {
		t.Fatalf("transform = %v", it.Transform)
	}
	unscaled, _ := page.TextContent(context.Background(), page.Viewport(1))
	if !near(it.Width, unscaled[0].Width*1.5) {
		t.Fatalf("width = %v vs %v", it.Width, unscaled[0].Width)
	}
}

func TestRenderPaintsBackgroundAndText(t *testing.T) {
	doc := openDoc(t, func(d *document.Document) {
		p := d.AddPage(200, 100)
		_ = p.DrawText("MMMM", document.TextOptions{X: 10, Y: 50, Size: 30})
	})
	page, _ := doc.Page(1)
	vp := page.Viewport(1)
	c, err := doc.NewCanvas(vp)
	if err != nil {
		t.Fatalf("canvas: %v", err)
	}
	if err := page.Render(context.Background(), c, vp); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := c.At(190, 5); got.R != 255 || got.G != 255 || got.B != 255 {
		t.Fatalf("background = %v", got)
	}
	dark := 0
	// Glyphs sit just above the baseline at canvas y = 100 - 50.
	for y := 25; y < 50; y++ {
		for x := 10; x < 80; x++ {
			if c.At(x, y).R < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatalf("text layer not drawn")
	}
}

func TestRenderSkipsInvisibleText(t *testing.T) {
	doc := openDoc(t, func(d *document.Document) {
		p := d.AddPage(200, 100)
		_ = p.DrawText("MMMM", document.TextOptions{X: 10, Y: 50, Size: 30, RenderMode: contentstream.TextInvisible})
	})
	page, _ := doc.Page(1)
	vp := page.Viewport(1)
	items, err := page.TextContent(context.Background(), vp)
	if err != nil || len(items) != 1 || items[0].Str != "MMMM" {
		t.Fatalf("items = %+v, %v", items, err)
	}
	c, err := doc.NewCanvas(vp)
	if err != nil {
		t.Fatalf("canvas: %v", err)
	}
	if err := page.Render(context.Background(), c, vp); err != nil {
		t.Fatalf("render: %v", err)
	}
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			if c.At(x, y).R < 128 {
				t.Fatalf("ink at %d,%d", x, y)
			}
		}
	}
}

func TestRenderNilCanvas(t *testing.T) {
	doc := openDoc(t, func(d *document.Document) { d.AddPage(0, 0) })
	page, _ := doc.Page(1)
	if err := page.Render(context.Background(), nil, page.Viewport(1)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRenderPaintsImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	doc := openDoc(t, func(d *document.Document) {
		p := d.AddPage(100, 100)
		img, err := d.EmbedImage(buf.Bytes())
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		if err := p.DrawImage(img, document.ImageOptions{X: 10, Y: 10, Width: 40, Height: 40}); err != nil {
			t.Fatalf("draw: %v", err)
		}
	})
	page, _ := doc.Page(1)
	vp := page.Viewport(2)
	c, err := doc.NewCanvas(vp)
	if err != nil {
		t.Fatalf("canvas: %v", err)
	}
	if err := page.Render(context.Background(), c, vp); err != nil {
		t.Fatalf("render: %v", err)
	}
	// Document box (10,10)-(50,50) lands on canvas (20,100)-(100,180).
	if got := c.At(60, 140); got.B < 240 || got.R > 15 {
		t.Fatalf("image pixel = %v", got)
	}
	if got := c.At(150, 20); got.R != 255 || got.B != 255 {
		t.Fatalf("background = %v", got)
	}
}

// cmykImage swaps an embedded image's XObject for raw CMYK samples of
// one colour.
func cmykImage(d *document.Document, img *document.Image, c, m, y, k byte, colorSpace raw.Object) {
	for _, ref := range d.Raw().Refs() {
		stm, ok := d.Raw().Objects[ref].(*raw.StreamObj)
		if !ok {
			continue
		}
		if st, _ := stm.Dict.Name("Subtype"); st != "Image" {
			continue
		}
		dict := raw.Dict()
		dict.Set("Type", raw.NameLiteral("XObject"))
		dict.Set("Subtype", raw.NameLiteral("Image"))
		dict.Set("Width", raw.NumberInt(int64(img.Width)))
		dict.Set("Height", raw.NumberInt(int64(img.Height)))
		dict.Set("BitsPerComponent", raw.NumberInt(8))
		dict.Set("ColorSpace", colorSpace)
		data := make([]byte, 0, img.Width*img.Height*4)
		for i := 0; i < img.Width*img.Height; i++ {
			data = append(data, c, m, y, k)
		}
		d.Raw().Set(ref, raw.NewStream(dict, data))
	}
}

func TestRenderConvertsCMYKImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	tests := map[string]func(d *document.Document) raw.Object{
		"device": func(*document.Document) raw.Object { return raw.NameLiteral("DeviceCMYK") },
		"icc fallback": func(d *document.Document) raw.Object {
			profile := raw.Dict()
			profile.Set("N", raw.NumberInt(4))
			ref := d.Raw().Add(raw.NewStream(profile, []byte("not an icc profile")))
			return raw.NewArray(raw.NameLiteral("ICCBased"), ref)
		},
	}
	for name, space := range tests {
		t.Run(name, func(t *testing.T) {
			doc := openDoc(t, func(d *document.Document) {
				p := d.AddPage(100, 100)
				img, err := d.EmbedImage(buf.Bytes())
				if err != nil {
					t.Fatalf("embed: %v", err)
				}
				if err := p.DrawImage(img, document.ImageOptions{X: 10, Y: 10, Width: 40, Height: 40}); err != nil {
					t.Fatalf("draw: %v", err)
				}
				cmykImage(d, img, 0, 255, 255, 0, space(d))
			})
			page, _ := doc.Page(1)
			vp := page.Viewport(1)
			c, err := doc.NewCanvas(vp)
			if err != nil {
				t.Fatalf("canvas: %v", err)
			}
			if err := page.Render(context.Background(), c, vp); err != nil {
				t.Fatalf("render: %v", err)
			}
			if got := c.At(30, 70); got.R < 240 || got.G > 15 || got.B > 15 {
				t.Fatalf("image pixel = %v", got)
			}
		})
	}
}

func TestUnsupportedColorSpace(t *testing.T) {
	doc := openDoc(t, func(d *document.Document) { d.AddPage(10, 10) })
	_, _, err := doc.colorConverter(context.Background(), raw.NewArray(raw.NameLiteral("Indexed")))
	if !errors.Is(err, errImageUnsupported) {
		t.Fatalf("err = %v", err)
	}
}
