package editor

import (
	"sort"
	"time"

	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/fonts"
)

// Scene is the ordered element list of one page plus selection, masked
// runs and the clipboard. Paint order is slice order; later is on top.
type Scene struct {
	elements    []*Element
	masked      map[string]bool
	selected    *Element
	clipboard   *Element
	pasteOffset float64
	now         func() time.Time
	lastID      int64
}

// NewScene returns an empty scene whose pastes land offset pixels right of
// and below the copied element.
func NewScene(offset float64) *Scene {
	return &Scene{masked: make(map[string]bool), pasteOffset: offset, now: time.Now}
}

// NewID returns an identity derived from the clock, strictly increasing
// within the scene.
func (s *Scene) NewID() int64 {
	id := s.now().UnixNano()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// Elements returns the elements in paint order.
func (s *Scene) Elements() []*Element { return append([]*Element(nil), s.elements...) }

func (s *Scene) Len() int { return len(s.elements) }

func (s *Scene) Selected() *Element { return s.selected }

// Select makes e the selection. e must belong to the scene; nil clears it.
func (s *Scene) Select(e *Element) {
	if e != nil && s.index(e) < 0 {
		return
	}
	s.selected = e
}

// Add appends e, assigning an identity if it has none, and selects it.
func (s *Scene) Add(e *Element) {
	if e.ID == 0 {
		e.ID = s.NewID()
	}
	s.elements = append(s.elements, e)
	s.selected = e
}

// ElementAt returns the top-most element whose box contains (x, y).
func (s *Scene) ElementAt(x, y float64) *Element {
	for i := len(s.elements) - 1; i >= 0; i-- {
		if s.elements[i].Contains(x, y) {
			return s.elements[i]
		}
	}
	return nil
}

// SelectAt selects the element under (x, y), or clears the selection.
func (s *Scene) SelectAt(x, y float64) *Element {
	s.selected = s.ElementAt(x, y)
	return s.selected
}

// DeleteSelected removes the selected element and returns it. Removing a
// text replacement unmasks the run it covered.
func (s *Scene) DeleteSelected() *Element {
	e := s.selected
	if e == nil {
		return nil
	}
	i := s.index(e)
	if i < 0 {
		s.selected = nil
		return nil
	}
	s.elements = append(s.elements[:i], s.elements[i+1:]...)
	if e.IsReplacement && e.ReplacesID != "" && !s.replaced(e.ReplacesID) {
		delete(s.masked, e.ReplacesID)
	}
	s.selected = nil
	return e
}

// replaced reports whether an element in the scene still replaces runID.
func (s *Scene) replaced(runID string) bool {
	for _, e := range s.elements {
		if e.IsReplacement && e.ReplacesID == runID {
			return true
		}
	}
	return false
}

// CopySelected snapshots the selection into the clipboard.
func (s *Scene) CopySelected() bool {
	if s.selected == nil {
		return false
	}
	s.clipboard = s.selected.Clone()
	return true
}

func (s *Scene) HasClipboard() bool { return s.clipboard != nil }

// Paste adds a copy of the clipboard with a new identity, offset from the
// copied position, and selects it. It returns nil when the clipboard is
// empty.
func (s *Scene) Paste() *Element {
	if s.clipboard == nil {
		return nil
	}
	e := s.clipboard.Clone()
	e.ID = s.NewID()
	e.X += s.pasteOffset
	e.Y += s.pasteOffset
	s.Add(e)
	return e
}

func (s *Scene) Mask(runID string)          { s.masked[runID] = true }
func (s *Scene) Unmask(runID string)        { delete(s.masked, runID) }
func (s *Scene) IsMasked(runID string) bool { return s.masked[runID] }

// MaskedIDs returns the masked run identities in sorted order.
func (s *Scene) MaskedIDs() []string {
	out := make([]string, 0, len(s.masked))
	for id := range s.masked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset drops elements, masks and selection. The clipboard survives so
// elements can be pasted onto another page.
func (s *Scene) Reset() {
	s.elements = nil
	s.masked = make(map[string]bool)
	s.selected = nil
}

func (s *Scene) index(e *Element) int {
	for i, el := range s.elements {
		if el == e {
			return i
		}
	}
	return -1
}

// Patch holds property edits. Nil fields are left alone.
type Patch struct {
	X, Y        *float64
	Text        *string
	FontSize    *float64
	Color       *string
	Width       *float64
	Height      *float64
	FillColor   *string
	BorderColor *string
}

// ApplyProperties writes p into the selected element. Text elements get
// their box recomputed from m: the advance as width and lineHeight times
// the font size as height. All input is validated before anything
// changes.
func (s *Scene) ApplyProperties(p Patch, m fonts.Measurer, lineHeight float64) error {
	e := s.selected
	if e == nil {
		return nil
	}
	if err := validatePatch(e, p); err != nil {
		return err
	}
	if p.X != nil {
		e.X = *p.X
	}
	if p.Y != nil {
		e.Y = *p.Y
	}
	switch e.Kind {
	case KindText:
		if p.Text != nil {
			e.Text = *p.Text
		}
		if p.FontSize != nil {
			e.FontSize = *p.FontSize
		}
		if p.Color != nil {
			e.Color = *p.Color
		}
		e.Width = m.Measure(e.Text, e.FontSize)
		e.Height = e.FontSize * lineHeight
	case KindImage:
		setSize(e, p)
	case KindShape:
		setSize(e, p)
		if p.FillColor != nil {
			e.FillColor = *p.FillColor
		}
		if p.BorderColor != nil {
			e.BorderColor = *p.BorderColor
		}
	}
	return nil
}

func setSize(e *Element, p Patch) {
	if p.Width != nil {
		e.Width = *p.Width
	}
	if p.Height != nil {
		e.Height = *p.Height
	}
}

func validatePatch(e *Element, p Patch) error {
	switch e.Kind {
	case KindText:
		if p.FontSize != nil && *p.FontSize <= 0 {
			return invalid("font size", "must be positive, got %v", *p.FontSize)
		}
		if p.Color != nil {
			if _, err := document.ParseHexColor(*p.Color); err != nil {
				return invalid("text color", "%v", err)
			}
		}
	case KindImage, KindShape:
		if p.Width != nil && *p.Width < 0 {
			return invalid("width", "must not be negative, got %v", *p.Width)
		}
		if p.Height != nil && *p.Height < 0 {
			return invalid("height", "must not be negative, got %v", *p.Height)
		}
		if e.Kind != KindShape {
			return nil
		}
		for _, c := range []struct {
			name string
			val  *string
		}{{"fill color", p.FillColor}, {"border color", p.BorderColor}} {
			if c.val == nil {
				continue
			}
			if _, err := document.ParseHexColor(*c.val); err != nil {
				return invalid(c.name, "%v", err)
			}
		}
	}
	return nil
}
