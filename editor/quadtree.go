package editor

import "github.com/wudi/pdfstudio/coords"

// QuadTree indexes rectangles for point and range queries.
type QuadTree struct {
	Bounds   coords.Rect
	Capacity int
	Points   []PointData
	Nodes    []*QuadTree
}

type PointData struct {
	Rect  coords.Rect
	Index int
}

func NewQuadTree(bounds coords.Rect, capacity int) *QuadTree {
	if capacity <= 0 {
		capacity = 8
	}
	return &QuadTree{
		Bounds:   bounds,
		Capacity: capacity,
		Points:   make([]PointData, 0, capacity),
	}
}

// Insert adds rect under index. It reports false when rect lies outside
// the tree bounds.
func (qt *QuadTree) Insert(rect coords.Rect, index int) bool {
	if !intersects(qt.Bounds, rect) {
		return false
	}

	if qt.Nodes != nil {
		for _, node := range qt.Nodes {
			if contains(node.Bounds, rect) {
				if node.Insert(rect, index) {
					return true
				}
			}
		}
	}

	if qt.Nodes == nil {
		if len(qt.Points) < qt.Capacity || qt.Bounds.Width < 1 || qt.Bounds.Height < 1 {
			qt.Points = append(qt.Points, PointData{Rect: rect, Index: index})
			return true
		}
		qt.subdivide()
		old := qt.Points
		qt.Points = make([]PointData, 0, qt.Capacity)
		for _, p := range old {
			qt.Insert(p.Rect, p.Index)
		}
		return qt.Insert(rect, index)
	}

	// Straddles the children, so it stays on this node.
	qt.Points = append(qt.Points, PointData{Rect: rect, Index: index})
	return true
}

func (qt *QuadTree) subdivide() {
	b := qt.Bounds
	hw, hh := b.Width/2, b.Height/2
	qt.Nodes = []*QuadTree{
		NewQuadTree(coords.Rect{X: b.X, Y: b.Y, Width: hw, Height: hh}, qt.Capacity),
		NewQuadTree(coords.Rect{X: b.X + hw, Y: b.Y, Width: hw, Height: hh}, qt.Capacity),
		NewQuadTree(coords.Rect{X: b.X, Y: b.Y + hh, Width: hw, Height: hh}, qt.Capacity),
		NewQuadTree(coords.Rect{X: b.X + hw, Y: b.Y + hh, Width: hw, Height: hh}, qt.Capacity),
	}
}

// Query returns the indices of rectangles touching area, in no particular
// order.
func (qt *QuadTree) Query(area coords.Rect) []int {
	var found []int
	if !intersects(qt.Bounds, area) {
		return found
	}
	for _, p := range qt.Points {
		if intersects(p.Rect, area) {
			found = append(found, p.Index)
		}
	}
	for _, node := range qt.Nodes {
		found = append(found, node.Query(area)...)
	}
	return found
}

// QueryPoint returns the indices of rectangles containing (x, y).
func (qt *QuadTree) QueryPoint(x, y float64) []int {
	return qt.Query(coords.Rect{X: x, Y: y})
}

func intersects(a, b coords.Rect) bool {
	return !(b.X > a.X+a.Width || b.X+b.Width < a.X || b.Y > a.Y+a.Height || b.Y+b.Height < a.Y)
}

func contains(outer, inner coords.Rect) bool {
	return inner.X >= outer.X && inner.X+inner.Width <= outer.X+outer.Width &&
		inner.Y >= outer.Y && inner.Y+inner.Height <= outer.Y+outer.Height
}
