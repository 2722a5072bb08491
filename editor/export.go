package editor

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"math"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/observability"
)

// PageTarget is the document side of an export: drawing calls addressed
// to a page index, then serialisation.
type PageTarget interface {
	PageCount() int
	EmbedFont(name string) (*document.Font, error)
	DrawText(page int, text string, opts document.TextOptions) error
	DrawRectangle(page int, opts document.RectOptions) error
	DrawCircle(page int, opts document.CircleOptions) error
	DrawImage(page int, data []byte, opts document.ImageOptions) error
	Save(ctx context.Context) ([]byte, error)
}

// DocumentTarget draws into a document.Document.
type DocumentTarget struct {
	Doc *document.Document
}

func (t DocumentTarget) PageCount() int { return t.Doc.PageCount() }

func (t DocumentTarget) EmbedFont(name string) (*document.Font, error) { return t.Doc.EmbedFont(name) }

func (t DocumentTarget) DrawText(page int, text string, opts document.TextOptions) error {
	p, err := t.Doc.Page(page)
	if err != nil {
		return err
	}
	return p.DrawText(text, opts)
}

func (t DocumentTarget) DrawRectangle(page int, opts document.RectOptions) error {
	p, err := t.Doc.Page(page)
	if err != nil {
		return err
	}
	p.DrawRectangle(opts)
	return nil
}

func (t DocumentTarget) DrawCircle(page int, opts document.CircleOptions) error {
	p, err := t.Doc.Page(page)
	if err != nil {
		return err
	}
	p.DrawCircle(opts)
	return nil
}

func (t DocumentTarget) DrawImage(page int, data []byte, opts document.ImageOptions) error {
	p, err := t.Doc.Page(page)
	if err != nil {
		return err
	}
	img, err := t.Doc.EmbedImage(data)
	if err != nil {
		return err
	}
	return p.DrawImage(img, opts)
}

func (t DocumentTarget) Save(ctx context.Context) ([]byte, error) { return t.Doc.Save(ctx) }

// ExportOptions tunes what the exporter writes.
type ExportOptions struct {
	// PageIndex is the zero-based page receiving the scene.
	PageIndex int
	// Circles and images are not exported unless asked for.
	IncludeCircles bool
	IncludeImages  bool
	// Font is the standard font used for text elements. Defaults to
	// Helvetica.
	Font string
}

// ExportResult is the saved document plus what went into it.
type ExportResult struct {
	Data    []byte
	Masks   int
	Texts   int
	Shapes  int
	Images  int
	Skipped int
}

// Exporter writes a scene and its masks back into a page. Space maps the
// canvas the scene was edited on to the page.
type Exporter struct {
	Space   coords.Space
	Scene   *Scene
	Runs    []TextRun
	Options ExportOptions
	Logger  observability.Logger
}

const exportBorderWidth = 2

// Export draws masks first so they sit beneath the new content, then the
// elements in paint order, and saves. Errors from the target are returned
// as they are.
func (x *Exporter) Export(ctx context.Context, target PageTarget) (*ExportResult, error) {
	log := observability.OrNop(x.Logger)
	opts := x.Options
	if opts.Font == "" {
		opts.Font = fonts.DefaultFont
	}
	res := &ExportResult{}
	page := opts.PageIndex
	if page < 0 || page >= target.PageCount() {
		return nil, fmt.Errorf("%w: export page %d of %d", document.ErrPageIndex, page, target.PageCount())
	}

	byID := make(map[string]TextRun, len(x.Runs))
	for _, r := range x.Runs {
		byID[r.ID] = r
	}
	var elements []*Element
	if x.Scene != nil {
		for _, id := range x.Scene.MaskedIDs() {
			run, ok := byID[id]
			if !ok {
				continue
			}
			if err := target.DrawRectangle(page, x.maskOptions(run)); err != nil {
				return nil, err
			}
			res.Masks++
		}
		elements = x.Scene.Elements()
	}

	var font *document.Font
	for _, e := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		box := x.Space.ToDocument(e.Rect())
		switch {
		case e.Kind == KindText:
			if font == nil {
				f, err := target.EmbedFont(opts.Font)
				if err != nil {
					return nil, err
				}
				font = f
			}
			err := target.DrawText(page, e.Text, document.TextOptions{
				X: box.X, Y: box.Y, Size: e.FontSize, Font: font, Color: colorOr(e.Color, document.Color{}),
			})
			if err != nil {
				return nil, err
			}
			res.Texts++
		case e.Kind == KindShape && e.Shape == ShapeRectangle:
			fill, border := colorOr(e.FillColor, document.Color{}), colorOr(e.BorderColor, document.Color{})
			if err := target.DrawRectangle(page, document.RectOptions{
				X: box.X, Y: box.Y, Width: box.Width, Height: box.Height,
				Color: &fill, BorderColor: &border, BorderWidth: exportBorderWidth,
			}); err != nil {
				return nil, err
			}
			res.Shapes++
		case e.Kind == KindShape && e.Shape == ShapeCircle && opts.IncludeCircles:
			fill, border := colorOr(e.FillColor, document.Color{}), colorOr(e.BorderColor, document.Color{})
			if err := target.DrawCircle(page, document.CircleOptions{
				X: box.X + box.Width/2, Y: box.Y + box.Height/2, Size: math.Min(box.Width, box.Height) / 2,
				Color: &fill, BorderColor: &border, BorderWidth: exportBorderWidth,
			}); err != nil {
				return nil, err
			}
			res.Shapes++
		case e.Kind == KindImage && opts.IncludeImages:
			data, err := exportableImage(e)
			if err != nil {
				return nil, err
			}
			if err := target.DrawImage(page, data, document.ImageOptions{X: box.X, Y: box.Y, Width: box.Width, Height: box.Height}); err != nil {
				return nil, err
			}
			res.Images++
		default:
			res.Skipped++
			log.Info("element not exported", observability.Int64("id", e.ID), observability.String("kind", string(e.Kind)), observability.String("shape", string(e.Shape)))
		}
	}

	data, err := target.Save(ctx)
	if err != nil {
		return nil, err
	}
	res.Data = data
	log.Debug("scene exported",
		observability.Int("page", page),
		observability.Int("masks", res.Masks),
		observability.Int("texts", res.Texts),
		observability.Int("shapes", res.Shapes),
		observability.Int("images", res.Images),
		observability.Int("skipped", res.Skipped))
	return res, nil
}

// maskOptions covers a run with white, sized as the canvas mask is but
// anchored at the run's own corner.
func (x *Exporter) maskOptions(r TextRun) document.RectOptions {
	box := x.Space.ToDocument(r.Rect())
	white := document.RGB(1, 1, 1)
	return document.RectOptions{
		X:      box.X,
		Y:      box.Y,
		Width:  x.Space.Length(r.Width + 4),
		Height: x.Space.Length(r.Height + 4),
		Color:  &white,
	}
}

func colorOr(hex string, fallback document.Color) document.Color {
	c, err := document.ParseHexColor(hex)
	if err != nil {
		return fallback
	}
	return c
}

// exportableImage returns PNG or JPEG bytes for an image element,
// re-encoding other formats as PNG.
func exportableImage(e *Element) ([]byte, error) {
	if _, err := document.DetectImageFormat(e.ImageData); err == nil {
		return e.ImageData, nil
	}
	if e.Image == nil {
		return nil, fmt.Errorf("image element %d: %w", e.ID, document.ErrUnsupportedImage)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, e.Image); err != nil {
		return nil, fmt.Errorf("image element %d: %w", e.ID, err)
	}
	return buf.Bytes(), nil
}
