package editor

import (
	"image"
	"image/color"
	"math"

	"github.com/wudi/pdfstudio/canvas"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
)

var (
	selectionColor = color.RGBA{R: 0x63, G: 0x66, B: 0xf1, A: 0xff}
	selectionDash  = []float64{5, 5}
)

const (
	selectionWidth = 2
	shapeBorder    = 2
)

// Painter redraws a page: the rendered page, then white masks over
// converted runs, then the elements in paint order and finally the
// selection outline.
type Painter struct {
	MaskMargin      float64
	SelectionMargin float64
	Logger          observability.Logger
}

// Redraw repaints dst from scratch.
func (p Painter) Redraw(dst *canvas.Canvas, background image.Image, scene *Scene, runs []TextRun) {
	dst.Clear(color.White)
	if background != nil {
		dst.Blit(background)
	}
	if scene == nil {
		return
	}
	for _, r := range runs {
		if scene.IsMasked(r.ID) {
			dst.FillRect(r.Rect().Inflate(p.MaskMargin), color.White)
		}
	}
	for _, e := range scene.Elements() {
		p.drawElement(dst, e)
	}
	if sel := scene.Selected(); sel != nil {
		dst.StrokeRect(sel.Rect().Inflate(p.SelectionMargin), selectionColor, selectionWidth, selectionDash)
	}
}

func (p Painter) drawElement(dst *canvas.Canvas, e *Element) {
	switch e.Kind {
	case KindText:
		if err := dst.DrawText(e.Text, e.X, e.Y+e.FontSize, e.FontSize, hexColor(e.Color, color.Black)); err != nil {
			observability.OrNop(p.Logger).Warn("text not drawn", observability.Int64("id", e.ID), observability.Error("error", err))
		}
	case KindImage:
		if e.Image != nil {
			dst.DrawImage(e.Image, e.Rect())
		}
	case KindShape:
		fill := hexColor(e.FillColor, color.Black)
		border := hexColor(e.BorderColor, color.Black)
		if e.Shape == ShapeCircle {
			r := math.Min(e.Width, e.Height) / 2
			cx, cy := e.X+e.Width/2, e.Y+e.Height/2
			dst.FillCircle(cx, cy, r, fill)
			dst.StrokeCircle(cx, cy, r, border, shapeBorder)
			return
		}
		dst.FillRect(e.Rect(), fill)
		dst.StrokeRect(e.Rect(), border, shapeBorder, nil)
	}
}

func hexColor(s string, fallback color.Color) color.Color {
	c, err := document.ParseHexColor(s)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: channel(c.R), G: channel(c.G), B: channel(c.B), A: 0xff}
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
