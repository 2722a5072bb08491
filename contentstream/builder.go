package contentstream

import (
	"math"

	"github.com/wudi/pdfstudio/ir/raw"
)

// kappa places cubic Bézier control points for a quarter circle.
const kappa = 0.5522847498

// Builder accumulates drawing operations.
type Builder struct {
	ops []Operation
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Operations() []Operation { return b.ops }

func (b *Builder) Bytes() []byte { return Serialize(b.ops) }

func (b *Builder) op(name string, operands ...raw.Object) *Builder {
	b.ops = append(b.ops, Operation{Operator: name, Operands: operands})
	return b
}

func nums(vals ...float64) []raw.Object {
	out := make([]raw.Object, len(vals))
	for i, v := range vals {
		out[i] = raw.Number(round(v))
	}
	return out
}

// round keeps serialised coordinates short and stable.
func round(v float64) float64 { return math.Round(v*10000) / 10000 }

func (b *Builder) SaveState() *Builder    { return b.op("q") }
func (b *Builder) RestoreState() *Builder { return b.op("Q") }

func (b *Builder) Concat(a, bb, c, d, e, f float64) *Builder {
	return b.op("cm", nums(a, bb, c, d, e, f)...)
}

func (b *Builder) SetFillRGB(c RGB) *Builder   { return b.op("rg", nums(c.R, c.G, c.B)...) }
func (b *Builder) SetStrokeRGB(c RGB) *Builder { return b.op("RG", nums(c.R, c.G, c.B)...) }
func (b *Builder) SetLineWidth(w float64) *Builder {
	return b.op("w", nums(w)...)
}
func (b *Builder) SetLineCap(c LineCap) *Builder   { return b.op("J", raw.NumberInt(int64(c))) }
func (b *Builder) SetLineJoin(j LineJoin) *Builder { return b.op("j", raw.NumberInt(int64(j))) }

// SetDash sets the dash pattern; an empty pattern means a solid line.
func (b *Builder) SetDash(pattern []float64, phase float64) *Builder {
	arr := raw.NewArray(nums(pattern...)...)
	return b.op("d", arr, raw.Number(phase))
}

func (b *Builder) MoveTo(x, y float64) *Builder { return b.op("m", nums(x, y)...) }
func (b *Builder) LineTo(x, y float64) *Builder { return b.op("l", nums(x, y)...) }
func (b *Builder) CurveTo(x1, y1, x2, y2, x3, y3 float64) *Builder {
	return b.op("c", nums(x1, y1, x2, y2, x3, y3)...)
}
func (b *Builder) ClosePath() *Builder { return b.op("h") }
func (b *Builder) Rectangle(x, y, w, h float64) *Builder {
	return b.op("re", nums(x, y, w, h)...)
}

// Ellipse appends a closed ellipse centred on (cx, cy) made of four curves.
func (b *Builder) Ellipse(cx, cy, rx, ry float64) *Builder {
	ox, oy := rx*kappa, ry*kappa
	b.MoveTo(cx+rx, cy)
	b.CurveTo(cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry)
	b.CurveTo(cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy)
	b.CurveTo(cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry)
	b.CurveTo(cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy)
	return b.ClosePath()
}

func (b *Builder) Fill() *Builder       { return b.op("f") }
func (b *Builder) Stroke() *Builder     { return b.op("S") }
func (b *Builder) FillStroke() *Builder { return b.op("B") }

func (b *Builder) BeginText() *Builder { return b.op("BT") }
func (b *Builder) EndText() *Builder   { return b.op("ET") }
func (b *Builder) SetFont(resource string, size float64) *Builder {
	return b.op("Tf", raw.NameLiteral(resource), raw.Number(round(size)))
}
func (b *Builder) MoveText(tx, ty float64) *Builder { return b.op("Td", nums(tx, ty)...) }
func (b *Builder) SetLeading(l float64) *Builder    { return b.op("TL", nums(l)...) }
func (b *Builder) NextLine() *Builder               { return b.op("T*") }

func (b *Builder) SetTextRenderMode(m TextRenderMode) *Builder {
	return b.op("Tr", raw.NumberInt(int64(m)))
}

// ShowText shows already-encoded string bytes.
func (b *Builder) ShowText(encoded []byte) *Builder {
	return b.op("Tj", raw.Str(encoded))
}

// DrawXObject paints the named XObject scaled to w×h at (x, y).
func (b *Builder) DrawXObject(resource string, x, y, w, h float64) *Builder {
	b.SaveState()
	b.Concat(w, 0, 0, h, x, y)
	b.op("Do", raw.NameLiteral(resource))
	return b.RestoreState()
}
