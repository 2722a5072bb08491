// Package render turns document pages into canvas pixels and positioned
// text. Rasterisation covers the page surface, image XObjects and the text
// layer; vector paths are not painted.
package render

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/wudi/pdfstudio/canvas"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/extractor"
	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/recovery"
)

var ErrPageNumber = errors.New("page number out of range")

type Options struct {
	Logger   observability.Logger
	Recovery recovery.Strategy
	// Faces rasterises the text layer. Defaults to Go Regular.
	Faces *fonts.FaceCache
	// Background fills the page before text is drawn. Defaults to white.
	Background color.Color
	SkipImages bool
	SkipText   bool
}

// Document is a parsed PDF ready for rendering.
type Document struct {
	doc  *document.Document
	ext  *extractor.Extractor
	pipe *filters.Pipeline
	opts Options
	log  observability.Logger
}

// Open parses data.
func Open(ctx context.Context, data []byte, opts Options) (*Document, error) {
	opts.Logger = observability.OrNop(opts.Logger)
	doc, err := document.LoadWithOptions(ctx, data, document.Options{Recovery: opts.Recovery, Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return FromDocument(doc, opts)
}

// FromDocument renders an already loaded document.
func FromDocument(doc *document.Document, opts Options) (*Document, error) {
	opts.Logger = observability.OrNop(opts.Logger)
	if opts.Background == nil {
		opts.Background = color.White
	}
	ext, err := extractor.New(doc, extractor.Config{Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return &Document{doc: doc, ext: ext, pipe: filters.Default(), opts: opts, log: opts.Logger}, nil
}

func (d *Document) NumPages() int { return d.doc.PageCount() }

// Source returns the underlying document.
func (d *Document) Source() *document.Document { return d.doc }

// Page returns page n, counting from 1.
func (d *Document) Page(n int) (*Page, error) {
	p, err := d.doc.Page(n - 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageNumber, n, d.doc.PageCount())
	}
	return &Page{doc: d, page: p, number: n}, nil
}

type Page struct {
	doc    *Document
	page   *document.Page
	number int
}

func (p *Page) Number() int { return p.number }

// Viewport maps the page into canvas pixels at scale.
func (p *Page) Viewport(scale float64) Viewport {
	if scale <= 0 {
		scale = 1
	}
	box := p.page.MediaBox()
	rot := p.page.Rotation()
	w, h := box.Width, box.Height
	// Move the box to the origin and apply the page rotation (clockwise).
	m := coords.Translate(-box.X, -box.Y)
	switch rot {
	case 90:
		m = m.Multiply(coords.Matrix{0, -1, 1, 0, 0, w})
		w, h = h, w
	case 180:
		m = m.Multiply(coords.Matrix{-1, 0, 0, -1, w, h})
	case 270:
		m = m.Multiply(coords.Matrix{0, 1, -1, 0, h, 0})
		w, h = h, w
	}
	m = m.Multiply(coords.Scale(scale, scale))
	return Viewport{Scale: scale, Width: w * scale, Height: h * scale, Rotation: rot, base: m}
}

// Viewport is a page placed on a canvas: Width×Height pixels at Scale.
type Viewport struct {
	Scale         float64
	Width, Height float64
	Rotation      int
	base          coords.Matrix
}

// Transform maps default user space into scaled space with the origin at
// the bottom-left of the viewport.
func (v Viewport) Transform() coords.Matrix { return v.base }

// CanvasTransform maps default user space into canvas pixels (origin
// top-left).
func (v Viewport) CanvasTransform() coords.Matrix {
	return v.base.Multiply(coords.Matrix{1, 0, 0, -1, 0, v.Height})
}

// PixelSize rounds the viewport up to whole pixels.
func (v Viewport) PixelSize() (int, int) {
	return int(math.Ceil(v.Width - 1e-9)), int(math.Ceil(v.Height - 1e-9))
}

// TextContent returns the page's text items with transforms and widths in
// the viewport's scaled space. The origin stays bottom-left.
func (p *Page) TextContent(ctx context.Context, vp Viewport) ([]extractor.TextItem, error) {
	items, err := p.doc.ext.TextItems(ctx, p.number-1)
	if err != nil {
		return nil, err
	}
	m := vp.Transform()
	for i := range items {
		items[i].Transform = items[i].Transform.Multiply(m)
		items[i].Width *= vp.Scale
		items[i].Height *= vp.Scale
	}
	return items, nil
}

// Render paints the page onto dst: the background over the viewport, the
// page's images, then each text item at its baseline.
func (p *Page) Render(ctx context.Context, dst *canvas.Canvas, vp Viewport) error {
	if dst == nil {
		return errors.New("render: nil canvas")
	}
	dst.FillRect(coords.Rect{Width: vp.Width, Height: vp.Height}, p.doc.opts.Background)
	m := vp.CanvasTransform()
	if !p.doc.opts.SkipImages {
		if err := p.paintImages(ctx, dst, m); err != nil {
			return fmt.Errorf("render page %d: %w", p.number, err)
		}
	}
	if p.doc.opts.SkipText {
		return nil
	}
	items, err := p.doc.ext.TextItems(ctx, p.number-1)
	if err != nil {
		return fmt.Errorf("render page %d: %w", p.number, err)
	}
	drawn := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		trm := it.Transform.Multiply(m)
		size := math.Hypot(trm[2], trm[3])
		if size < 0.5 || it.Str == "" || !it.RenderMode.Paints() {
			continue
		}
		if err := dst.DrawText(it.Str, trm[4], trm[5], size, color.Black); err != nil {
			return fmt.Errorf("render page %d: %w", p.number, err)
		}
		drawn++
	}
	p.doc.log.Debug("page rendered",
		observability.Int("page", p.number),
		observability.Float("scale", vp.Scale),
		observability.Int("text_items", drawn))
	return nil
}

// NewCanvas allocates a canvas sized to vp using the document's faces.
func (d *Document) NewCanvas(vp Viewport) (*canvas.Canvas, error) {
	w, h := vp.PixelSize()
	return canvas.New(w, h, d.opts.Faces)
}
