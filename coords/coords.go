// Package coords holds the affine and rectangle math shared by the renderer,
// the editor and the export path.
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF affine transform [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns m × o (apply m first, then o).
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rect is an axis-aligned box with a top-left origin in canvas space and a
// bottom-left origin in document space.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Contains reports whether (x, y) lies in the closed box.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Inflate grows the box by margin on every side.
func (r Rect) Inflate(margin float64) Rect {
	return Rect{X: r.X - margin, Y: r.Y - margin, Width: r.Width + 2*margin, Height: r.Height + 2*margin}
}

func (r Rect) Offset(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Space maps between canvas pixels (origin top-left, scaled by the render
// viewport factor) and document space (origin bottom-left, unscaled).
// PageHeight is the canvas page height in pixels.
type Space struct {
	Scale      float64
	PageHeight float64
}

func (s Space) scale() float64 {
	if s.Scale == 0 {
		return 1
	}
	return s.Scale
}

// ToDocument converts a canvas box into document space. The returned Y is the
// bottom edge of the box.
func (s Space) ToDocument(r Rect) Rect {
	k := s.scale()
	return Rect{
		X:      r.X / k,
		Y:      (s.PageHeight - r.Y - r.Height) / k,
		Width:  r.Width / k,
		Height: r.Height / k,
	}
}

// ToCanvas is the inverse of ToDocument.
func (s Space) ToCanvas(r Rect) Rect {
	k := s.scale()
	return Rect{
		X:      r.X * k,
		Y:      s.PageHeight - r.Y*k - r.Height*k,
		Width:  r.Width * k,
		Height: r.Height * k,
	}
}

// Length converts a canvas distance into document units.
func (s Space) Length(v float64) float64 { return v / s.scale() }

// Matrix returns the document-to-canvas transform for this space.
func (s Space) Matrix() Matrix {
	k := s.scale()
	return Matrix{k, 0, 0, -k, 0, s.PageHeight}
}
