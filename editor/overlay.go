package editor

import (
	"fmt"
	"sort"

	"github.com/wudi/pdfstudio/coords"
)

// Tool is the active editor mode. Exactly one is active at a time.
type Tool string

const (
	ToolSelect   Tool = "select"
	ToolText     Tool = "text"
	ToolShape    Tool = "shape"
	ToolImage    Tool = "image"
	ToolEditText Tool = "edit-text"
)

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	switch t := Tool(s); t {
	case ToolSelect, ToolText, ToolShape, ToolImage, ToolEditText:
		return t, nil
	}
	return "", invalid("tool", "unknown tool %q", s)
}

// HitRegion is an invisible target over one unmasked text run, placed in
// container space (canvas position plus the container offset).
type HitRegion struct {
	RunID   string
	Rect    coords.Rect
	Hovered bool
}

// Overlay keeps hit regions in step with the runs while edit-text mode is
// active. Regions are indexed by a quadtree over the canvas; regions
// hanging off the canvas are kept aside and scanned linearly.
type Overlay struct {
	offset  coords.Point
	regions []HitRegion
	index   *QuadTree
	outside []int
	hovered int
}

func NewOverlay(offset coords.Point) *Overlay {
	return &Overlay{offset: offset, hovered: -1}
}

// Sync rebuilds one region per run that is not masked. bounds is the
// canvas area in canvas pixels.
func (o *Overlay) Sync(runs []TextRun, masked func(string) bool, bounds coords.Rect) {
	o.Clear()
	o.index = NewQuadTree(bounds.Offset(o.offset.X, o.offset.Y), 8)
	for _, r := range runs {
		if masked(r.ID) {
			continue
		}
		rect := r.Rect().Offset(o.offset.X, o.offset.Y)
		o.regions = append(o.regions, HitRegion{RunID: r.ID, Rect: rect})
		i := len(o.regions) - 1
		if !contains(o.index.Bounds, rect) || !o.index.Insert(rect, i) {
			o.outside = append(o.outside, i)
		}
	}
}

// Clear tears every region down.
func (o *Overlay) Clear() {
	o.regions = nil
	o.index = nil
	o.outside = nil
	o.hovered = -1
}

// Active reports whether any regions exist.
func (o *Overlay) Active() bool { return len(o.regions) > 0 }

// Regions returns a copy of the current regions.
func (o *Overlay) Regions() []HitRegion { return append([]HitRegion(nil), o.regions...) }

// RegionAt returns the region under the container point (x, y). Later
// regions sit on top of earlier ones.
func (o *Overlay) RegionAt(x, y float64) (HitRegion, bool) {
	i := o.find(x, y)
	if i < 0 {
		return HitRegion{}, false
	}
	return o.regions[i], true
}

// Hover marks the region under (x, y) as the single hovered one and
// returns its run ID, or "" when the point hits nothing.
func (o *Overlay) Hover(x, y float64) string {
	if o.hovered >= 0 && o.hovered < len(o.regions) {
		o.regions[o.hovered].Hovered = false
	}
	o.hovered = o.find(x, y)
	if o.hovered < 0 {
		return ""
	}
	o.regions[o.hovered].Hovered = true
	return o.regions[o.hovered].RunID
}

// ToContainer maps a canvas point into the space regions live in.
func (o *Overlay) ToContainer(x, y float64) (float64, float64) {
	return x + o.offset.X, y + o.offset.Y
}

func (o *Overlay) find(x, y float64) int {
	if o.index == nil {
		return -1
	}
	hits := o.index.QueryPoint(x, y)
	cands := make([]int, 0, len(hits)+len(o.outside))
	cands = append(append(cands, hits...), o.outside...)
	sort.Sort(sort.Reverse(sort.IntSlice(cands)))
	for _, i := range cands {
		if o.regions[i].Rect.Contains(x, y) {
			return i
		}
	}
	return -1
}

func (r HitRegion) String() string {
	return fmt.Sprintf("%s@(%.1f,%.1f %.1fx%.1f)", r.RunID, r.Rect.X, r.Rect.Y, r.Rect.Width, r.Rect.Height)
}
