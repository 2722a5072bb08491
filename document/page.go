package document

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wudi/pdfstudio/contentstream"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/ir/raw"
)

// Color is an RGB colour with components in [0, 1].
type Color = contentstream.RGB

func RGB(r, g, b float64) Color { return Color{R: r, G: g, B: b} }

// ParseHexColor reads "#rrggbb" (the leading '#' is optional).
func ParseHexColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q", s)
	}
	return Color{
		R: float64(v>>16&0xff) / 255,
		G: float64(v>>8&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

// HexColor formats c as "#rrggbb".
func HexColor(c Color) string {
	clamp := func(f float64) int {
		v := int(f*255 + 0.5)
		if v < 0 {
			return 0
		}
		if v > 255 {
			return 255
		}
		return v
	}
	return fmt.Sprintf("#%02x%02x%02x", clamp(c.R), clamp(c.G), clamp(c.B))
}

// TextOptions places a text string. X, Y is the baseline origin of the
// first line.
type TextOptions struct {
	X, Y  float64
	Size  float64 // default 12
	Font  *Font   // default Helvetica
	Color Color
	// LineHeight separates lines of multi-line text. Defaults to Size × 1.2.
	LineHeight float64
	// RenderMode TextInvisible keeps the text extractable without painting
	// it, as for an OCR layer over a scan.
	RenderMode contentstream.TextRenderMode
}

// RectOptions draws a rectangle with its lower-left corner at X, Y. A nil
// Color leaves it unfilled; a nil BorderColor leaves it unstroked.
type RectOptions struct {
	X, Y, Width, Height float64
	Color               *Color
	BorderColor         *Color
	BorderWidth         float64 // default 1 when BorderColor is set
}

// CircleOptions draws a circle centred on X, Y.
type CircleOptions struct {
	X, Y        float64
	Size        float64 // radius
	Color       *Color
	BorderColor *Color
	BorderWidth float64
}

type LineOptions struct {
	Start, End coords.Point
	Thickness  float64 // default 1
	Color      Color
	Dash       []float64
	Cap        contentstream.LineCap
	Join       contentstream.LineJoin
}

// ImageOptions scales an image into the box at X, Y. Zero sizes use the
// image's pixel size.
type ImageOptions struct {
	X, Y, Width, Height float64
}

// Page is one page of a Document. Drawing calls accumulate in memory and
// become a new content stream on Save.
type Page struct {
	doc     *Document
	ref     raw.ObjectRef
	dict    *raw.DictObj
	pending *contentstream.Builder
	names   map[raw.ObjectRef]string
	wrapped bool
}

func (p *Page) Ref() raw.ObjectRef { return p.ref }

// Dict is the page dictionary.
func (p *Page) Dict() *raw.DictObj { return p.dict }

// Document returns the owning document.
func (p *Page) Document() *Document { return p.doc }

// MediaBox returns the page box in default user space.
func (p *Page) MediaBox() coords.Rect {
	arr, _ := p.doc.raw.ResolveArray(p.getOr("MediaBox"))
	if arr == nil || arr.Len() != 4 {
		return coords.Rect{Width: Letter[0], Height: Letter[1]}
	}
	v := make([]float64, 4)
	for i, it := range arr.Items {
		v[i], _ = raw.ToFloat(p.doc.raw.Resolve(it))
	}
	x1, x2 := min(v[0], v[2]), max(v[0], v[2])
	y1, y2 := min(v[1], v[3]), max(v[1], v[3])
	return coords.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Size returns the page width and height.
func (p *Page) Size() (float64, float64) {
	b := p.MediaBox()
	return b.Width, b.Height
}

func (p *Page) Rotation() int {
	v, _ := raw.ToFloat(p.doc.raw.Resolve(p.getOr("Rotate")))
	r := int(v) % 360
	if r < 0 {
		r += 360
	}
	return r
}

func (p *Page) getOr(key string) raw.Object {
	v, ok := p.dict.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}

// Resources returns the page resource dictionary, creating an empty one
// when the page has none.
func (p *Page) Resources() *raw.DictObj {
	if res, ok := p.doc.raw.ResolveDict(p.getOr("Resources")); ok {
		return res
	}
	res := raw.Dict()
	p.dict.Set("Resources", res)
	return res
}

// ownResources makes the resource dictionary private to this page so new
// entries do not leak into pages sharing it.
func (p *Page) ownResources() *raw.DictObj {
	v, ok := p.dict.Get("Resources")
	if ok {
		if _, isRef := v.(raw.RefObj); !isRef {
			if d, ok := v.(*raw.DictObj); ok {
				return d
			}
		}
	}
	res := raw.Clone(p.Resources()).(*raw.DictObj)
	p.dict.Set("Resources", res)
	return res
}

// resourceName returns the name under which ref is listed in the page's
// category subdictionary, adding it with prefix+n if absent.
func (p *Page) resourceName(category, prefix string, ref raw.RefObj) string {
	if p.names == nil {
		p.names = make(map[raw.ObjectRef]string)
	}
	if n, ok := p.names[ref.R]; ok {
		return n
	}
	res := p.ownResources()
	sub, ok := p.doc.raw.ResolveDict(resGet(res, category))
	if !ok {
		sub = raw.Dict()
	} else {
		sub = raw.Clone(sub).(*raw.DictObj)
	}
	res.Set(category, sub)
	for _, k := range sub.Keys() {
		if v, _ := sub.Get(k); isRef(v, ref.R) {
			p.names[ref.R] = k
			return k
		}
	}
	name := ""
	for i := 1; ; i++ {
		name = prefix + strconv.Itoa(i)
		if _, taken := sub.Get(name); !taken {
			break
		}
	}
	sub.Set(name, ref)
	p.names[ref.R] = name
	return name
}

func isRef(o raw.Object, ref raw.ObjectRef) bool {
	r, ok := o.(raw.RefObj)
	return ok && r.R == ref
}

func resGet(d *raw.DictObj, key string) raw.Object {
	v, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}

func (p *Page) builder() *contentstream.Builder {
	if p.pending == nil {
		p.pending = contentstream.NewBuilder()
	}
	return p.pending
}

// DrawText draws text, one line per '\n'. Text outside WinAnsi fails with
// ErrUnencodable before anything is drawn.
func (p *Page) DrawText(text string, opts TextOptions) error {
	var lines [][]byte
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		enc, err := fonts.EncodeWinAnsi(line)
		if err != nil {
			return fmt.Errorf("draw text: %w", err)
		}
		lines = append(lines, enc)
	}
	if opts.Size <= 0 {
		opts.Size = 12
	}
	if opts.Font == nil {
		f, err := p.doc.EmbedFont(fonts.DefaultFont)
		if err != nil {
			return err
		}
		opts.Font = f
	}
	if opts.LineHeight <= 0 {
		opts.LineHeight = opts.Size * 1.2
	}
	name := p.resourceName("Font", "F", opts.Font.ref)
	b := p.builder()
	b.SaveState().SetFillRGB(opts.Color).BeginText().SetFont(name, opts.Size).SetLeading(opts.LineHeight).MoveText(opts.X, opts.Y)
	if opts.RenderMode != contentstream.TextFill {
		b.SetTextRenderMode(opts.RenderMode)
	}
	for i, line := range lines {
		if i > 0 {
			b.NextLine()
		}
		b.ShowText(line)
	}
	b.EndText().RestoreState()
	return nil
}

func (p *Page) paint(b *contentstream.Builder, fill, stroke *Color, width float64) {
	switch {
	case fill != nil && stroke != nil && width > 0:
		b.FillStroke()
	case fill != nil:
		b.Fill()
	case stroke != nil && width > 0:
		b.Stroke()
	default:
		b.Fill()
	}
}

func (p *Page) styles(b *contentstream.Builder, fill, stroke *Color, width float64) {
	if fill != nil {
		b.SetFillRGB(*fill)
	}
	if stroke != nil && width > 0 {
		b.SetStrokeRGB(*stroke).SetLineWidth(width)
	}
}

// DrawRectangle draws a filled and/or stroked rectangle. With neither
// colour set it fills black.
func (p *Page) DrawRectangle(opts RectOptions) {
	if opts.BorderColor != nil && opts.BorderWidth == 0 {
		opts.BorderWidth = 1
	}
	b := p.builder()
	b.SaveState()
	p.styles(b, opts.Color, opts.BorderColor, opts.BorderWidth)
	b.Rectangle(opts.X, opts.Y, opts.Width, opts.Height)
	p.paint(b, opts.Color, opts.BorderColor, opts.BorderWidth)
	b.RestoreState()
}

func (p *Page) DrawCircle(opts CircleOptions) {
	if opts.BorderColor != nil && opts.BorderWidth == 0 {
		opts.BorderWidth = 1
	}
	if opts.Size <= 0 {
		opts.Size = 100
	}
	b := p.builder()
	b.SaveState()
	p.styles(b, opts.Color, opts.BorderColor, opts.BorderWidth)
	b.Ellipse(opts.X, opts.Y, opts.Size, opts.Size)
	p.paint(b, opts.Color, opts.BorderColor, opts.BorderWidth)
	b.RestoreState()
}

func (p *Page) DrawLine(opts LineOptions) {
	if opts.Thickness <= 0 {
		opts.Thickness = 1
	}
	b := p.builder()
	b.SaveState().SetStrokeRGB(opts.Color).SetLineWidth(opts.Thickness)
	if len(opts.Dash) > 0 {
		b.SetDash(opts.Dash, 0)
	}
	if opts.Cap != contentstream.LineCapButt {
		b.SetLineCap(opts.Cap)
	}
	if opts.Join != contentstream.LineJoinMiter {
		b.SetLineJoin(opts.Join)
	}
	b.MoveTo(opts.Start.X, opts.Start.Y).LineTo(opts.End.X, opts.End.Y).Stroke().RestoreState()
}

func (p *Page) DrawImage(img *Image, opts ImageOptions) error {
	if img == nil || img.doc != p.doc {
		return fmt.Errorf("image not embedded in this document")
	}
	if opts.Width <= 0 {
		opts.Width = float64(img.Width)
	}
	if opts.Height <= 0 {
		opts.Height = float64(img.Height)
	}
	name := p.resourceName("XObject", "Im", img.ref)
	p.builder().DrawXObject(name, opts.X, opts.Y, opts.Width, opts.Height)
	return nil
}

// flush turns pending drawing into a content stream. Existing content is
// bracketed by q/Q so its graphics state cannot leak into the new stream.
func (p *Page) flush() {
	if p.pending == nil || len(p.pending.Operations()) == 0 {
		return
	}
	data := p.pending.Bytes()
	p.pending = nil
	added := p.doc.raw.Add(raw.NewStream(nil, data))

	var existing []raw.Object
	switch c := p.getOr("Contents").(type) {
	case raw.RefObj:
		if arr, ok := p.doc.raw.ResolveArray(c); ok {
			existing = append(existing, arr.Items...)
		} else {
			existing = append(existing, c)
		}
	case *raw.ArrayObj:
		existing = append(existing, c.Items...)
	}
	if len(existing) == 0 {
		p.dict.Set("Contents", added)
		return
	}
	if !p.wrapped {
		open := p.doc.raw.Add(raw.NewStream(nil, []byte("q\n")))
		closing := p.doc.raw.Add(raw.NewStream(nil, []byte("\nQ\n")))
		existing = append([]raw.Object{open}, existing...)
		existing = append(existing, closing)
		p.wrapped = true
	}
	existing = append(existing, added)
	p.dict.Set("Contents", raw.NewArray(existing...))
}

// ContentBytes returns the page's decoded content streams concatenated,
// including drawing not yet saved.
func (p *Page) ContentBytes(ctx context.Context) ([]byte, error) {
	p.flush()
	var streams []raw.Object
	switch c := p.doc.raw.Resolve(p.getOr("Contents")).(type) {
	case *raw.StreamObj:
		streams = []raw.Object{c}
	case *raw.ArrayObj:
		streams = c.Items
	}
	pipe := filters.Default()
	var out []byte
	for i, s := range streams {
		stm, ok := p.doc.raw.Resolve(s).(*raw.StreamObj)
		if !ok {
			continue
		}
		data, err := pipe.DecodeStream(ctx, stm)
		if err != nil {
			return nil, fmt.Errorf("content stream %d: %w", i, err)
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, data...)
	}
	return out, nil
}
