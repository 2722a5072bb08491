// Package tesseract recognises rendered pages with the Tesseract library
// through gosseract. Importing it registers the engine as ocr's default.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/ocr"
)

func init() {
	ocr.SetDefaultEngine(New(Config{}))
}

type Config struct {
	// Languages apply when an input names none. Empty leaves Tesseract's
	// own default ("eng").
	Languages []string
	Logger    observability.Logger
}

// Engine implements ocr.Engine. Each input gets a fresh client because
// gosseract keeps languages and variables between images.
type Engine struct {
	cfg       Config
	log       observability.Logger
	newClient func() *gosseract.Client
}

func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, log: observability.OrNop(cfg.Logger), newClient: gosseract.NewClient}
}

func (e *Engine) Name() string { return "tesseract" }

func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	data, err := crop(in.Image, in.Region)
	if err != nil {
		return ocr.Result{}, err
	}
	c := e.newClient()
	defer c.Close()

	langs := in.Languages
	if len(langs) == 0 {
		langs = e.cfg.Languages
	}
	if err := configure(c, langs, in); err != nil {
		return ocr.Result{}, err
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize %s: %w", in.ID, err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		e.log.Warn("tesseract word boxes", observability.String("input", in.ID), observability.Error("error", err))
	}

	words := make([]ocr.TextWord, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		r := ocr.Region{
			X:      float64(b.Box.Min.X),
			Y:      float64(b.Box.Min.Y),
			Width:  float64(b.Box.Dx()),
			Height: float64(b.Box.Dy()),
		}
		if in.Region != nil {
			r.X += math.Round(in.Region.X)
			r.Y += math.Round(in.Region.Y)
		}
		words = append(words, ocr.TextWord{Text: b.Word, Bounds: r, Confidence: b.Confidence / 100})
	}
	lines := groupLines(words)
	plain := strings.TrimSpace(text)
	e.log.Debug("tesseract recognised",
		observability.String("input", in.ID),
		observability.Int("words", len(words)),
		observability.Int("lines", len(lines)))

	res := ocr.Result{InputID: in.ID, PlainText: plain}
	if len(langs) > 0 {
		res.Language = langs[0]
	}
	if len(lines) > 0 {
		res.Blocks = []ocr.TextBlock{{
			Text:       plain,
			Bounds:     union(words),
			Lines:      lines,
			Confidence: meanConfidence(words),
		}}
	}
	return res, nil
}

// configure applies languages, DPI and pass-through variables. Variables
// are set in key order so failures are reproducible.
func configure(c *gosseract.Client, langs []string, in ocr.Input) error {
	if len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return fmt.Errorf("set languages %v: %w", langs, err)
		}
	}
	vars := make(map[string]string, len(in.Metadata)+1)
	if in.DPI > 0 {
		vars["user_defined_dpi"] = strconv.Itoa(in.DPI)
	}
	for k, v := range in.Metadata {
		vars[k] = v
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.SetVariable(gosseract.SettableVariable(k), vars[k]); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// groupLines starts a new line whenever a word begins left of its
// predecessor or below its bottom edge.
func groupLines(words []ocr.TextWord) []ocr.TextLine {
	var lines []ocr.TextLine
	for i := 0; i < len(words); {
		j := i + 1
		for j < len(words) {
			prev, cur := words[j-1].Bounds, words[j].Bounds
			if cur.X < prev.X || cur.Y >= prev.Y+prev.Height {
				break
			}
			j++
		}
		ws := words[i:j]
		texts := make([]string, len(ws))
		for k, w := range ws {
			texts[k] = w.Text
		}
		lines = append(lines, ocr.TextLine{
			Text:       strings.Join(texts, " "),
			Bounds:     union(ws),
			Words:      ws,
			Confidence: meanConfidence(ws),
		})
		i = j
	}
	return lines
}

func union(words []ocr.TextWord) ocr.Region {
	if len(words) == 0 {
		return ocr.Region{}
	}
	b := words[0].Bounds
	x0, y0, x1, y1 := b.X, b.Y, b.X+b.Width, b.Y+b.Height
	for _, w := range words[1:] {
		r := w.Bounds
		x0, y0 = math.Min(x0, r.X), math.Min(y0, r.Y)
		x1, y1 = math.Max(x1, r.X+r.Width), math.Max(y1, r.Y+r.Height)
	}
	return ocr.Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func meanConfidence(words []ocr.TextWord) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

// crop re-encodes the part of data inside region. Without a region the
// image passes through untouched.
func crop(data []byte, region *ocr.Region) ([]byte, error) {
	if region == nil || region.IsEmpty() {
		return data, nil
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	r := image.Rect(
		int(math.Round(region.X)), int(math.Round(region.Y)),
		int(math.Round(region.X+region.Width)), int(math.Round(region.Y+region.Height)),
	).Intersect(src.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("region %+v outside image %v", *region, src.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), src, r.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode region: %w", err)
	}
	return buf.Bytes(), nil
}
