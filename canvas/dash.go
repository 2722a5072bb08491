package canvas

import (
	"math"

	"github.com/wudi/pdfstudio/coords"
)

// dasher walks a polyline handing out the "on" pieces of a dash pattern.
// The phase carries over between segments so corners do not restart it.
type dasher struct {
	pattern []float64
	index   int
	left    float64
	on      bool
}

func newDasher(pattern []float64) *dasher {
	var clean []float64
	for _, v := range pattern {
		if v > 0 {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		clean = []float64{math.MaxFloat64}
	}
	if len(clean)%2 == 1 {
		clean = append(clean, clean...)
	}
	return &dasher{pattern: clean, left: clean[0], on: true}
}

func (d *dasher) segment(a, b coords.Point, emit func(p, q coords.Point)) {
	length := math.Hypot(b.X-a.X, b.Y-a.Y)
	if length == 0 {
		return
	}
	ux, uy := (b.X-a.X)/length, (b.Y-a.Y)/length
	pos := 0.0
	for pos < length {
		step := math.Min(d.left, length-pos)
		if d.on {
			emit(coords.Point{X: a.X + ux*pos, Y: a.Y + uy*pos}, coords.Point{X: a.X + ux*(pos+step), Y: a.Y + uy*(pos+step)})
		}
		pos += step
		d.left -= step
		if d.left <= 0 {
			d.index = (d.index + 1) % len(d.pattern)
			d.left = d.pattern[d.index]
			d.on = !d.on
		}
	}
}
