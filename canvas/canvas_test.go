package canvas

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/wudi/pdfstudio/coords"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
)

func newCanvas(t *testing.T, w, h int) *Canvas {
	t.Helper()
	c, err := New(w, h, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c.Clear(white)
	return c
}

func TestFillRect(t *testing.T) {
	c := newCanvas(t, 40, 40)
	c.FillRect(coords.Rect{X: 10, Y: 10, Width: 10, Height: 10}, red)
	if got := c.At(15, 15); got != red {
		t.Fatalf("inside = %v", got)
	}
	if got := c.At(25, 25); got != white {
		t.Fatalf("outside = %v", got)
	}
}

func TestStrokeRectLeavesInteriorClear(t *testing.T) {
	c := newCanvas(t, 60, 60)
	c.StrokeRect(coords.Rect{X: 10, Y: 10, Width: 40, Height: 40}, red, 2, nil)
	if got := c.At(10, 30); got != red {
		t.Fatalf("edge = %v", got)
	}
	if got := c.At(30, 30); got != white {
		t.Fatalf("interior = %v", got)
	}
}

func TestDashedStrokeHasGaps(t *testing.T) {
	c := newCanvas(t, 60, 20)
	c.StrokeRect(coords.Rect{X: 0, Y: 10, Width: 50, Height: 5}, red, 2, []float64{5, 5})
	// Top edge runs along y=10: on for x in [0,5), off for [5,10).
	if got := c.At(2, 10); got != red {
		t.Fatalf("dash = %v", got)
	}
	if got := c.At(7, 10); got != white {
		t.Fatalf("gap = %v", got)
	}
}

func TestCircle(t *testing.T) {
	c := newCanvas(t, 40, 40)
	c.FillCircle(20, 20, 10, red)
	if got := c.At(20, 20); got != red {
		t.Fatalf("centre = %v", got)
	}
	if got := c.At(2, 2); got != white {
		t.Fatalf("corner = %v", got)
	}
	c.Clear(white)
	c.StrokeCircle(20, 20, 10, red, 2)
	if got := c.At(20, 20); got != white {
		t.Fatalf("ring centre = %v", got)
	}
	if got := c.At(30, 20); got != red {
		t.Fatalf("ring edge = %v", got)
	}
}

func TestDrawTextMarksPixels(t *testing.T) {
	c := newCanvas(t, 100, 40)
	if err := c.DrawText("Hi", 10, 30, 24, color.Black); err != nil {
		t.Fatalf("text: %v", err)
	}
	dark := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 100; x++ {
			if c.At(x, y).R < 128 {
				dark++
			}
		}
	}
	if dark == 0 {
		t.Fatalf("no glyph pixels drawn")
	}
	if w := c.MeasureText("Hi", 24); w <= 0 {
		t.Fatalf("measure = %v", w)
	}
}

func TestDecodeAndScaleImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.Set(x, y, red)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, format, err := DecodeImage(buf.Bytes())
	if err != nil || format != "png" {
		t.Fatalf("decode = %q %v", format, err)
	}
	c := newCanvas(t, 40, 40)
	c.DrawImage(img, coords.Rect{X: 10, Y: 10, Width: 20, Height: 20})
	if got := c.At(20, 20); got.R < 240 || got.G > 15 {
		t.Fatalf("scaled pixel = %v", got)
	}
	if _, _, err := DecodeImage([]byte("nope")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New(0, 10, nil); err == nil {
		t.Fatalf("expected size error")
	}
}
