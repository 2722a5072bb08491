package editor

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/extractor"
	"github.com/wudi/pdfstudio/ocr"
)

// TextRun is a piece of existing page text positioned in canvas space. Runs
// are read-only once extracted for a page load.
type TextRun struct {
	ID            string
	Text          string
	X, Y          float64
	Width, Height float64
	FontSize      float64
	FontName      string
}

func (r TextRun) Rect() coords.Rect {
	return coords.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

const (
	defaultRunFontSize = 12
	defaultRunWidth    = 100
)

// RunsFromTextItems converts renderer text items, whose transforms are in
// viewport space with a bottom-left origin, into canvas runs. The run top
// sits one font size above the baseline. Identities follow the item index,
// so dropped blank items leave gaps.
func RunsFromTextItems(items []extractor.TextItem, viewportHeight float64) []TextRun {
	runs := make([]TextRun, 0, len(items))
	for i, it := range items {
		text := strings.TrimSpace(norm.NFC.String(it.Str))
		if text == "" {
			continue
		}
		size := math.Abs(it.Transform[3])
		if size == 0 {
			size = defaultRunFontSize
		}
		width := it.Width
		if width == 0 {
			width = defaultRunWidth
		}
		runs = append(runs, TextRun{
			ID:       fmt.Sprintf("extracted_%d", i),
			Text:     text,
			X:        it.Transform[4],
			Y:        viewportHeight - it.Transform[5] - size,
			Width:    width,
			Height:   size,
			FontSize: size,
			FontName: it.FontName,
		})
	}
	return runs
}

// RunsFromOCR turns recognised words into runs. Word boxes are already in
// canvas pixels because the engine saw the rendered canvas.
func RunsFromOCR(words []ocr.TextWord) []TextRun {
	runs := make([]TextRun, 0, len(words))
	for i, w := range words {
		text := strings.TrimSpace(norm.NFC.String(w.Text))
		if text == "" || w.Bounds.IsEmpty() {
			continue
		}
		runs = append(runs, TextRun{
			ID:       fmt.Sprintf("ocr_%d", i),
			Text:     text,
			X:        w.Bounds.X,
			Y:        w.Bounds.Y,
			Width:    w.Bounds.Width,
			Height:   w.Bounds.Height,
			FontSize: w.Bounds.Height,
			FontName: "ocr",
		})
	}
	return runs
}
