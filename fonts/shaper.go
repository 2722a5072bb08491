package fonts

import (
	"bytes"
	"fmt"
	"sync"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Measurer returns the advance width of text at a font size, in the same
// units as the size.
type Measurer interface {
	Measure(text string, size float64) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(text string, size float64) float64

func (f MeasureFunc) Measure(text string, size float64) float64 { return f(text, size) }

// StandardMeasurer measures with the AFM widths of a standard font, which
// is what a PDF viewer uses for that font.
func StandardMeasurer(font string) Measurer {
	return MeasureFunc(func(text string, size float64) float64 { return TextWidth(font, text, size) })
}

// ShapingMeasurer shapes text with HarfBuzz against a TrueType face, so
// the result matches what the canvas draws with that face.
type ShapingMeasurer struct {
	face   *gofont.Face
	shaper shaping.HarfbuzzShaper
	mu     sync.Mutex
}

// NewShapingMeasurer parses ttf. A nil slice selects the Go Regular face.
func NewShapingMeasurer(ttf []byte) (*ShapingMeasurer, error) {
	if ttf == nil {
		ttf = goregular.TTF
	}
	face, err := gofont.ParseTTF(bytes.NewReader(ttf))
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &ShapingMeasurer{face: face}, nil
}

var (
	defaultMeasurerOnce sync.Once
	defaultMeasurer     Measurer
)

// DefaultMeasurer is the shaping measurer over Go Regular, falling back to
// Helvetica metrics if the embedded face cannot be parsed.
func DefaultMeasurer() Measurer {
	defaultMeasurerOnce.Do(func() {
		m, err := NewShapingMeasurer(nil)
		if err != nil {
			defaultMeasurer = StandardMeasurer(DefaultFont)
			return
		}
		defaultMeasurer = m
	})
	return defaultMeasurer
}

func (m *ShapingMeasurer) Measure(text string, size float64) float64 {
	runes := []rune(text)
	if len(runes) == 0 || size <= 0 {
		return 0
	}
	script := detectScript(runes)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: scriptDirection(script),
		Face:      m.face,
		Size:      fixed.Int26_6(size * 64),
		Script:    script,
		Language:  language.DefaultLanguage(),
	}
	// The HarfBuzz shaper reuses internal buffers between calls.
	m.mu.Lock()
	out := m.shaper.Shape(input)
	m.mu.Unlock()
	var adv fixed.Int26_6
	for _, g := range out.Glyphs {
		adv += g.XAdvance
	}
	if adv < 0 {
		adv = -adv
	}
	return float64(adv) / 64
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew, language.Syriac, language.Thaana, language.Nko:
		return di.DirectionRTL
	default:
		return di.DirectionLTR
	}
}

func detectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	maxCount := 0
	best := language.Latin
	for _, r := range runes {
		script := scriptFromRune(r)
		if script == language.Unknown {
			continue
		}
		counts[script]++
		if counts[script] > maxCount {
			maxCount = counts[script]
			best = script
		}
	}
	return best
}

func scriptFromRune(r rune) language.Script {
	switch {
	case unicode.Is(unicode.Latin, r):
		return language.Latin
	case unicode.Is(unicode.Arabic, r):
		return language.Arabic
	case unicode.Is(unicode.Hebrew, r):
		return language.Hebrew
	case unicode.Is(unicode.Cyrillic, r):
		return language.Cyrillic
	case unicode.Is(unicode.Greek, r):
		return language.Greek
	case unicode.Is(unicode.Han, r):
		return language.Han
	case unicode.Is(unicode.Hiragana, r):
		return language.Hiragana
	case unicode.Is(unicode.Katakana, r):
		return language.Katakana
	case unicode.Is(unicode.Hangul, r):
		return language.Hangul
	}
	return language.Unknown
}
