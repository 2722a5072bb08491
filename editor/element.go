package editor

import (
	"image"

	"github.com/wudi/pdfstudio/coords"
)

// Kind is the variant of an Element.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindShape Kind = "shape"
)

// ShapeKind selects the outline of a shape element.
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
)

// Element is one user-placed item on the canvas. Position and size are
// canvas pixels with the origin top-left. Only the fields of its Kind are
// meaningful.
type Element struct {
	ID            int64
	Kind          Kind
	X, Y          float64
	Width, Height float64
	// IsReplacement marks text created from an extracted run; ReplacesID
	// names that run.
	IsReplacement bool
	ReplacesID    string

	Text     string
	FontSize float64
	Color    string

	// Image is the decoded raster and is never mutated after decoding.
	Image         image.Image
	ImageData     []byte
	NaturalWidth  int
	NaturalHeight int

	Shape       ShapeKind
	FillColor   string
	BorderColor string
}

func (e *Element) Rect() coords.Rect {
	return coords.Rect{X: e.X, Y: e.Y, Width: e.Width, Height: e.Height}
}

// Contains reports whether (x, y) is inside the element's closed box.
func (e *Element) Contains(x, y float64) bool { return e.Rect().Contains(x, y) }

// Clone returns a copy that shares nothing mutable with e.
func (e *Element) Clone() *Element {
	c := *e
	if e.ImageData != nil {
		c.ImageData = append([]byte(nil), e.ImageData...)
	}
	return &c
}
