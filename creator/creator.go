// Package creator builds new PDF documents: a single page from element
// specs, AcroForms, and flowed Markdown or HTML.
package creator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wudi/pdfstudio/contentstream"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/writer"
)

var (
	ErrEmptyText  = errors.New("text is empty")
	ErrNoFields   = errors.New("form has no fields")
	ErrShapeKind  = errors.New("unknown shape")
	ErrFieldKind  = errors.New("unknown form field kind")
	ErrNoOptions  = errors.New("field needs at least one option")
	ErrNoImageSrc = errors.New("image has no data")
)

// Metadata defaults for created documents.
const (
	DefaultTitle   = "My Document"
	DefaultAuthor  = "pdfstudio"
	DefaultSubject = "Created with pdfstudio"
)

type Options struct {
	Logger observability.Logger
	// Now stamps creation dates. Defaults to time.Now.
	Now    func() time.Time
	Writer writer.Config
}

// Creator produces PDF bytes. It keeps no state between calls.
type Creator struct {
	opts Options
	log  observability.Logger
}

func New(opts Options) *Creator {
	opts.Logger = observability.OrNop(opts.Logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Creator{opts: opts, log: opts.Logger}
}

func (c *Creator) newDocument() *document.Document {
	return document.NewWithOptions(document.Options{Writer: c.opts.Writer, Logger: c.log, Now: c.opts.Now})
}

// Spec describes a one-page document.
type Spec struct {
	// PageWidth and PageHeight default to A4.
	PageWidth, PageHeight float64
	Title                 string
	Author                string
	Subject               string
	Texts                 []Text
	Images                []Image
	Shapes                []Shape
}

// Text is drawn with its baseline origin at X, Y.
type Text struct {
	Text  string
	X, Y  float64
	Size  float64 // default 12
	Font  string  // standard font or alias; default Helvetica
	Color string  // "#rrggbb"; default black
}

// Image is a PNG or JPEG placed in the box at X, Y. Zero sizes use the
// image's pixel size.
type Image struct {
	Data                []byte
	X, Y, Width, Height float64
}

type ShapeKind string

const (
	Rectangle ShapeKind = "rectangle"
	Circle    ShapeKind = "circle"
	Line      ShapeKind = "line"
)

// Shape is a rectangle, a circle inscribed in the box, or a line from the
// box's lower-left to its upper-right corner. Lines use the border colour.
type Shape struct {
	Kind                ShapeKind
	X, Y, Width, Height float64
	Fill                string
	Border              string
}

const shapeBorderWidth = 2

// Create validates spec and renders it. Nothing is drawn when any element
// is invalid.
func (c *Creator) Create(ctx context.Context, spec Spec) ([]byte, error) {
	if err := validate(spec); err != nil {
		return nil, err
	}
	doc := c.newDocument()
	now := c.opts.Now()
	doc.SetInfo(document.Info{
		Title:        or(spec.Title, DefaultTitle),
		Author:       or(spec.Author, DefaultAuthor),
		Subject:      or(spec.Subject, DefaultSubject),
		Creator:      DefaultAuthor,
		Producer:     DefaultAuthor,
		CreationDate: now,
		ModDate:      now,
	})
	page := doc.AddPage(spec.PageWidth, spec.PageHeight)

	for i, t := range spec.Texts {
		font, err := doc.EmbedFont(or(t.Font, "Helvetica"))
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		col, _ := parseColor(t.Color, document.RGB(0, 0, 0))
		err = page.DrawText(t.Text, document.TextOptions{X: t.X, Y: t.Y, Size: t.Size, Font: font, Color: col})
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	for i, im := range spec.Images {
		img, err := doc.EmbedImage(im.Data)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		err = page.DrawImage(img, document.ImageOptions{X: im.X, Y: im.Y, Width: im.Width, Height: im.Height})
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
	}
	for _, s := range spec.Shapes {
		drawShape(page, s)
	}

	out, err := doc.Save(ctx)
	if err != nil {
		return nil, err
	}
	c.log.Info("document created",
		observability.Int("texts", len(spec.Texts)),
		observability.Int("images", len(spec.Images)),
		observability.Int("shapes", len(spec.Shapes)),
		observability.Int("bytes", len(out)))
	return out, nil
}

func validate(spec Spec) error {
	for i, t := range spec.Texts {
		if strings.TrimSpace(t.Text) == "" {
			return fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
		if _, err := parseColor(t.Color, document.Color{}); err != nil {
			return fmt.Errorf("text %d: %w", i, err)
		}
	}
	for i, im := range spec.Images {
		if len(im.Data) == 0 {
			return fmt.Errorf("image %d: %w", i, ErrNoImageSrc)
		}
		if _, err := document.DetectImageFormat(im.Data); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
	}
	for i, s := range spec.Shapes {
		switch s.Kind {
		case Rectangle, Circle, Line:
		default:
			return fmt.Errorf("shape %d: %w %q", i, ErrShapeKind, s.Kind)
		}
		if _, err := parseColor(s.Fill, document.Color{}); err != nil {
			return fmt.Errorf("shape %d fill: %w", i, err)
		}
		if _, err := parseColor(s.Border, document.Color{}); err != nil {
			return fmt.Errorf("shape %d border: %w", i, err)
		}
	}
	return nil
}

func drawShape(page *document.Page, s Shape) {
	fill, _ := parseColor(s.Fill, document.RGB(0, 0, 0))
	border, _ := parseColor(s.Border, document.RGB(0, 0, 0))
	switch s.Kind {
	case Rectangle:
		page.DrawRectangle(document.RectOptions{
			X: s.X, Y: s.Y, Width: s.Width, Height: s.Height,
			Color: &fill, BorderColor: &border, BorderWidth: shapeBorderWidth,
		})
	case Circle:
		page.DrawCircle(document.CircleOptions{
			X:     s.X + s.Width/2,
			Y:     s.Y + s.Height/2,
			Size:  math.Min(s.Width, s.Height) / 2,
			Color: &fill, BorderColor: &border, BorderWidth: shapeBorderWidth,
		})
	case Line:
		page.DrawLine(document.LineOptions{
			Start:     coords.Point{X: s.X, Y: s.Y},
			End:       coords.Point{X: s.X + s.Width, Y: s.Y + s.Height},
			Color:     border,
			Thickness: shapeBorderWidth,
			Cap:       contentstream.LineCapRound,
		})
	}
}

// parseColor reads "#rrggbb"; an empty string yields fallback.
func parseColor(s string, fallback document.Color) (document.Color, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return document.ParseHexColor(s)
}

func or(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
