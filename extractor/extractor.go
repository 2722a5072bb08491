// Package extractor pulls positioned text runs and font usage out of
// document pages.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wudi/pdfstudio/contentstream"
	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/document"
	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/observability"
)

// TextItem is one shown string. Transform is the text rendering matrix at
// the start of the string in default user space (origin bottom-left), so
// Transform[4], Transform[5] is the baseline origin and |Transform[3]| the
// effective font size. Width is the advance in the same space.
type TextItem struct {
	Str       string
	Transform coords.Matrix
	Width     float64
	Height    float64
	FontName  string
	// RenderMode is the Tr mode in effect when the text was shown.
	RenderMode contentstream.TextRenderMode
}

type Config struct {
	Logger observability.Logger
	// MaxFormDepth bounds nesting of form XObjects. Defaults to 8.
	MaxFormDepth int
}

// Extractor reads text from the pages of one document. It caches parsed
// fonts and is not safe for concurrent use.
type Extractor struct {
	doc       *document.Document
	raw       *raw.Document
	pipe      *filters.Pipeline
	fontCache map[raw.ObjectRef]*fontModel
	cfg       Config
	log       observability.Logger
}

func New(doc *document.Document, cfg Config) (*Extractor, error) {
	if doc == nil {
		return nil, errors.New("document is required")
	}
	if cfg.MaxFormDepth <= 0 {
		cfg.MaxFormDepth = 8
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &Extractor{
		doc:       doc,
		raw:       doc.Raw(),
		pipe:      filters.Default(),
		fontCache: make(map[raw.ObjectRef]*fontModel),
		cfg:       cfg,
		log:       cfg.Logger,
	}, nil
}

// TextItems returns the strings shown on the page at index, in content
// stream order.
func (e *Extractor) TextItems(ctx context.Context, index int) ([]TextItem, error) {
	w, err := e.walk(ctx, index)
	if err != nil {
		return nil, err
	}
	return w.items, nil
}

// ImagePlacement is an image XObject painted by a page. CTM maps the unit
// square onto the page in default user space.
type ImagePlacement struct {
	Name   string
	Stream *raw.StreamObj
	CTM    coords.Matrix
}

// Bounds is the axis-aligned page box the image covers, origin bottom-left.
func (p ImagePlacement) Bounds() coords.Rect {
	xs, ys := make([]float64, 0, 4), make([]float64, 0, 4)
	for _, c := range []coords.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}} {
		pt := p.CTM.Transform(c)
		xs, ys = append(xs, pt.X), append(ys, pt.Y)
	}
	x0, x1 := min(xs[0], xs[1], xs[2], xs[3]), max(xs[0], xs[1], xs[2], xs[3])
	y0, y1 := min(ys[0], ys[1], ys[2], ys[3]), max(ys[0], ys[1], ys[2], ys[3])
	return coords.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Images returns the image XObjects the page at index paints, including
// those inside form XObjects.
func (e *Extractor) Images(ctx context.Context, index int) ([]ImagePlacement, error) {
	w, err := e.walk(ctx, index)
	if err != nil {
		return nil, err
	}
	return w.images, nil
}

func (e *Extractor) walk(ctx context.Context, index int) (*walker, error) {
	page, err := e.doc.Page(index)
	if err != nil {
		return nil, err
	}
	data, err := page.ContentBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	w := &walker{e: e, ctx: ctx}
	if err := w.run(data, page.Resources(), coords.Identity(), 0); err != nil {
		return nil, fmt.Errorf("page %d: %w", index, err)
	}
	e.log.Debug("page walked", observability.Int("page", index),
		observability.Int("items", len(w.items)), observability.Int("images", len(w.images)))
	return w, nil
}

// PageText is the plain text of one page.
type PageText struct {
	Page    int
	Content string
}

// ExtractText returns the plain text of every page that has any.
func (e *Extractor) ExtractText(ctx context.Context) ([]PageText, error) {
	var out []PageText
	for i := 0; i < e.doc.PageCount(); i++ {
		items, err := e.TextItems(ctx, i)
		if err != nil {
			return out, err
		}
		if txt := strings.TrimSpace(PlainText(items)); txt != "" {
			out = append(out, PageText{Page: i, Content: txt})
		}
	}
	return out, nil
}

// PlainText joins items, breaking lines where the baseline moves by more
// than half the item height.
func PlainText(items []TextItem) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			prev := items[i-1]
			dy := math.Abs(it.Transform[5] - prev.Transform[5])
			switch {
			case dy > math.Max(prev.Height, it.Height)/2:
				b.WriteByte('\n')
			case it.Transform[4] > prev.Transform[4]+prev.Width+prev.Height*0.15:
				b.WriteByte(' ')
			}
		}
		b.WriteString(it.Str)
	}
	return b.String()
}

type walker struct {
	e      *Extractor
	ctx    context.Context
	items  []TextItem
	images []ImagePlacement
}

type textFont struct {
	model *fontModel
	name  string
}

func (w *walker) run(data []byte, resources *raw.DictObj, base coords.Matrix, depth int) error {
	ops, err := contentstream.Parse(data)
	if err != nil {
		// Keep whatever parsed before the damage.
		w.e.log.Warn("content stream truncated", observability.Error("err", err), observability.Int("ops", len(ops)))
	}
	gs := contentstream.NewGraphicsState()
	gs.CTM = base
	ts := contentstream.NewTextState()
	type saved struct {
		ts   contentstream.TextState
		font textFont
	}
	var textStack []saved
	font := textFont{model: helveticaModel}

	fontsDict, _ := w.e.raw.ResolveDict(get(resources, "Font"))
	for i, op := range ops {
		if i%512 == 0 {
			if err := w.ctx.Err(); err != nil {
				return err
			}
		}
		switch op.Operator {
		case "q":
			gs.Save()
			textStack = append(textStack, saved{ts: *ts, font: font})
		case "Q":
			if gs.Restore() == nil && len(textStack) > 0 {
				top := textStack[len(textStack)-1]
				textStack = textStack[:len(textStack)-1]
				// Text matrices are not part of the graphics state.
				prev := top.ts
				prev.TextMatrix, prev.TextLineMatrix = ts.TextMatrix, ts.TextLineMatrix
				*ts = prev
				font = top.font
			}
		case "cm":
			if v, ok := contentstream.Floats(op, 6); ok {
				gs.Concat(coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]})
			}
		case "BT":
			ts.BeginText()
		case "Tf":
			if len(op.Operands) == 2 {
				name, _ := op.Operands[0].(raw.NameObj)
				size, _ := raw.ToFloat(op.Operands[1])
				ts.FontName, ts.FontSize = name.Val, size
				font = textFont{model: helveticaModel, name: name.Val}
				if fontsDict != nil {
					if obj, ok := fontsDict.Get(name.Val); ok {
						font.model = w.e.font(w.ctx, obj)
					}
				}
			}
		case "Tc":
			if v, ok := contentstream.Floats(op, 1); ok {
				ts.CharSpacing = v[0]
			}
		case "Tw":
			if v, ok := contentstream.Floats(op, 1); ok {
				ts.WordSpacing = v[0]
			}
		case "Tz":
			if v, ok := contentstream.Floats(op, 1); ok {
				ts.HScale = v[0]
			}
		case "TL":
			if v, ok := contentstream.Floats(op, 1); ok {
				ts.Leading = v[0]
			}
		case "Ts":
			if v, ok := contentstream.Floats(op, 1); ok {
				ts.Rise = v[0]
			}
		case "Tr":
			if v, ok := contentstream.Floats(op, 1); ok {
				ts.RenderMode = contentstream.TextRenderMode(v[0])
			}
		case "Td":
			if v, ok := contentstream.Floats(op, 2); ok {
				ts.MoveLine(v[0], v[1])
			}
		case "TD":
			if v, ok := contentstream.Floats(op, 2); ok {
				ts.Leading = -v[1]
				ts.MoveLine(v[0], v[1])
			}
		case "Tm":
			if v, ok := contentstream.Floats(op, 6); ok {
				ts.SetMatrix(coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]})
			}
		case "T*":
			ts.NextLine()
		case "Tj":
			if len(op.Operands) == 1 {
				w.show(ts, gs, font, []raw.Object{op.Operands[0]})
			}
		case "'":
			if len(op.Operands) == 1 {
				ts.NextLine()
				w.show(ts, gs, font, []raw.Object{op.Operands[0]})
			}
		case "\"":
			if len(op.Operands) == 3 {
				ts.WordSpacing, _ = raw.ToFloat(op.Operands[0])
				ts.CharSpacing, _ = raw.ToFloat(op.Operands[1])
				ts.NextLine()
				w.show(ts, gs, font, []raw.Object{op.Operands[2]})
			}
		case "TJ":
			if len(op.Operands) == 1 {
				if arr, ok := op.Operands[0].(*raw.ArrayObj); ok {
					w.show(ts, gs, font, arr.Items)
				}
			}
		case "Do":
			if len(op.Operands) == 1 {
				if name, ok := op.Operands[0].(raw.NameObj); ok {
					if err := w.xobject(resources, name.Val, gs.CTM, depth); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// show advances the text matrix over parts (strings and TJ adjustments)
// and records one TextItem for them.
func (w *walker) show(ts *contentstream.TextState, gs *contentstream.GraphicsState, font textFont, parts []raw.Object) {
	start := ts.RenderMatrix(gs.CTM)
	line := ts.TextMatrix.Multiply(gs.CTM)
	lineScale := math.Hypot(line[0], line[1])
	hscale := ts.HScale / 100
	var text strings.Builder
	advance := 0.0
	for _, part := range parts {
		switch v := part.(type) {
		case raw.StringObj:
			for _, g := range font.model.glyphs(v.Bytes) {
				tx := g.width/1000*ts.FontSize + ts.CharSpacing
				if g.space {
					tx += ts.WordSpacing
				}
				tx *= hscale
				ts.Advance(tx)
				advance += tx
				text.WriteString(g.text)
			}
		case raw.NumberObj:
			tx := -v.Float() / 1000 * ts.FontSize * hscale
			ts.Advance(tx)
			advance += tx
			if v.Float() < -200 {
				// A wide negative kern stands in for a space.
				text.WriteByte(' ')
			}
		}
	}
	name := font.model.base
	if name == "" {
		name = font.name
	}
	w.items = append(w.items, TextItem{
		Str:        text.String(),
		Transform:  start,
		Width:      advance * lineScale,
		Height:     math.Hypot(start[2], start[3]),
		FontName:   name,
		RenderMode: ts.RenderMode,
	})
}

func (w *walker) xobject(resources *raw.DictObj, name string, ctm coords.Matrix, depth int) error {
	xobjs, ok := w.e.raw.ResolveDict(get(resources, "XObject"))
	if !ok {
		return nil
	}
	obj, ok := xobjs.Get(name)
	if !ok {
		return nil
	}
	stm, ok := w.e.raw.Resolve(obj).(*raw.StreamObj)
	if !ok {
		return nil
	}
	switch st, _ := stm.Dict.Name("Subtype"); st {
	case "Image":
		w.images = append(w.images, ImagePlacement{Name: name, Stream: stm, CTM: ctm})
		return nil
	case "Form":
		if depth >= w.e.cfg.MaxFormDepth {
			return nil
		}
	default:
		return nil
	}
	data, err := w.e.pipe.DecodeStream(w.ctx, stm)
	if err != nil {
		w.e.log.Warn("form xobject undecodable", observability.String("name", name), fieldErr(err))
		return nil
	}
	m := coords.Identity()
	if arr, ok := w.e.raw.ResolveArray(get(stm.Dict, "Matrix")); ok {
		if v := arr.Floats(); len(v) == 6 {
			m = coords.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
		}
	}
	inner, ok := w.e.raw.ResolveDict(get(stm.Dict, "Resources"))
	if !ok {
		inner = resources
	}
	return w.run(data, inner, m.Multiply(ctm), depth+1)
}

func get(d *raw.DictObj, key string) raw.Object {
	if d == nil {
		return raw.NullObj{}
	}
	v, ok := d.Get(key)
	if !ok {
		return raw.NullObj{}
	}
	return v
}

func fieldErr(err error) observability.Field { return observability.Error("err", err) }
