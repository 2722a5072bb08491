package fonts

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FaceCache hands out rasterisation faces of one TrueType font by size.
type FaceCache struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[float64]font.Face
}

// NewFaceCache parses ttf. A nil slice selects Go Regular, the face the
// default measurer shapes with.
func NewFaceCache(ttf []byte) (*FaceCache, error) {
	if ttf == nil {
		ttf = goregular.TTF
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &FaceCache{font: f, faces: make(map[float64]font.Face)}, nil
}

// Face returns a face rendering size pixels per em.
func (c *FaceCache) Face(size float64) (font.Face, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(c.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("face at %v: %w", size, err)
	}
	c.faces[size] = f
	return f, nil
}
