// Package canvas is the raster surface the page renderer and the editor
// paint on. Coordinates are pixels with the origin at the top-left.
package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	// Decoders for image elements.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	_ "golang.org/x/image/webp"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/fonts"
)

const kappa = 0.5522847498

// Canvas wraps an RGBA image with the drawing calls the editor needs.
type Canvas struct {
	img   *image.RGBA
	faces *fonts.FaceCache
}

// New allocates a width×height canvas. A nil faces selects Go Regular.
func New(width, height int, faces *fonts.FaceCache) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("canvas size %dx%d", width, height)
	}
	if faces == nil {
		var err error
		faces, err = fonts.NewFaceCache(nil)
		if err != nil {
			return nil, err
		}
	}
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height)), faces: faces}, nil
}

// Image exposes the backing pixels.
func (c *Canvas) Image() *image.RGBA { return c.img }

func (c *Canvas) Width() int  { return c.img.Bounds().Dx() }
func (c *Canvas) Height() int { return c.img.Bounds().Dy() }

// Clear fills the whole surface with col.
func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// Blit copies src unscaled onto the canvas at the origin.
func (c *Canvas) Blit(src image.Image) {
	if src == nil {
		return
	}
	draw.Draw(c.img, src.Bounds().Sub(src.Bounds().Min), src, src.Bounds().Min, draw.Over)
}

// DrawImage scales src into r.
func (c *Canvas) DrawImage(src image.Image, r coords.Rect) {
	if src == nil || r.Width <= 0 || r.Height <= 0 {
		return
	}
	dst := image.Rect(round(r.X), round(r.Y), round(r.X+r.Width), round(r.Y+r.Height))
	xdraw.CatmullRom.Scale(c.img, dst, src, src.Bounds(), xdraw.Over, nil)
}

// FillRect paints r with col.
func (c *Canvas) FillRect(r coords.Rect, col color.Color) {
	z := c.rasterizer()
	rectPath(z, r, false)
	c.paint(z, col)
}

// StrokeRect outlines r with a line of the given width centred on its
// edges. A non-empty dash alternates on/off lengths along the perimeter.
func (c *Canvas) StrokeRect(r coords.Rect, col color.Color, width float64, dash []float64) {
	if width <= 0 {
		return
	}
	z := c.rasterizer()
	if len(dash) == 0 {
		rectPath(z, r.Inflate(width/2), false)
		if inner := r.Inflate(-width / 2); inner.Width > 0 && inner.Height > 0 {
			rectPath(z, inner, true)
		}
		c.paint(z, col)
		return
	}
	corners := []coords.Point{
		{X: r.X, Y: r.Y}, {X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height}, {X: r.X, Y: r.Y + r.Height},
	}
	d := newDasher(dash)
	for i := range corners {
		a, b := corners[i], corners[(i+1)%4]
		d.segment(a, b, func(p, q coords.Point) { segmentPath(z, p, q, width) })
	}
	c.paint(z, col)
}

// FillCircle paints a disc.
func (c *Canvas) FillCircle(cx, cy, radius float64, col color.Color) {
	if radius <= 0 {
		return
	}
	z := c.rasterizer()
	circlePath(z, cx, cy, radius, false)
	c.paint(z, col)
}

// StrokeCircle paints a ring of the given width centred on the circle.
func (c *Canvas) StrokeCircle(cx, cy, radius float64, col color.Color, width float64) {
	if radius <= 0 || width <= 0 {
		return
	}
	z := c.rasterizer()
	circlePath(z, cx, cy, radius+width/2, false)
	if inner := radius - width/2; inner > 0 {
		circlePath(z, cx, cy, inner, true)
	}
	c.paint(z, col)
}

// DrawText draws s with its baseline starting at (x, baseline), size
// pixels per em.
func (c *Canvas) DrawText(s string, x, baseline, size float64, col color.Color) error {
	if s == "" || size <= 0 {
		return nil
	}
	face, err := c.faces.Face(size)
	if err != nil {
		return err
	}
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(baseline * 64)},
	}
	d.DrawString(s)
	return nil
}

// MeasureText returns the advance of s at size using the canvas face.
func (c *Canvas) MeasureText(s string, size float64) float64 {
	face, err := c.faces.Face(size)
	if err != nil {
		return 0
	}
	return float64(font.MeasureString(face, s)) / 64
}

// At reports the colour of one pixel, for callers probing the result.
func (c *Canvas) At(x, y int) color.RGBA { return c.img.RGBAAt(x, y) }

// DecodeImage decodes PNG, JPEG, WebP or BMP data.
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

func (c *Canvas) rasterizer() *vector.Rasterizer {
	b := c.img.Bounds()
	return vector.NewRasterizer(b.Dx(), b.Dy())
}

func (c *Canvas) paint(z *vector.Rasterizer, col color.Color) {
	z.DrawOp = draw.Over
	z.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
}

// rectPath adds r as a closed contour. The rasterizer accumulates signed
// coverage, so a reversed contour cuts a hole.
func rectPath(z *vector.Rasterizer, r coords.Rect, reverse bool) {
	pts := []coords.Point{
		{X: r.X, Y: r.Y}, {X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height}, {X: r.X, Y: r.Y + r.Height},
	}
	if reverse {
		pts[1], pts[3] = pts[3], pts[1]
	}
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

// segmentPath adds a line of the given width from p to q with butt ends.
func segmentPath(z *vector.Rasterizer, p, q coords.Point, width float64) {
	dx, dy := q.X-p.X, q.Y-p.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2
	z.MoveTo(float32(p.X+nx), float32(p.Y+ny))
	z.LineTo(float32(q.X+nx), float32(q.Y+ny))
	z.LineTo(float32(q.X-nx), float32(q.Y-ny))
	z.LineTo(float32(p.X-nx), float32(p.Y-ny))
	z.ClosePath()
}

func circlePath(z *vector.Rasterizer, cx, cy, r float64, reverse bool) {
	k := r * kappa
	s := 1.0
	if reverse {
		s = -1
	}
	f := func(v float64) float32 { return float32(v) }
	z.MoveTo(f(cx+r), f(cy))
	z.CubeTo(f(cx+r), f(cy+s*k), f(cx+k), f(cy+s*r), f(cx), f(cy+s*r))
	z.CubeTo(f(cx-k), f(cy+s*r), f(cx-r), f(cy+s*k), f(cx-r), f(cy))
	z.CubeTo(f(cx-r), f(cy-s*k), f(cx-k), f(cy-s*r), f(cx), f(cy-s*r))
	z.CubeTo(f(cx+k), f(cy-s*r), f(cx+r), f(cy-s*k), f(cx+r), f(cy))
	z.ClosePath()
}

func round(v float64) int { return int(math.Round(v)) }
