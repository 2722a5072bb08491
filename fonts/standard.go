// Package fonts knows the standard 14 PDF fonts: their names, WinAnsi
// encoding, and glyph widths for layout. It also measures and rasterises
// text for the editor canvas.
package fonts

import (
	"strings"
)

const DefaultFont = "Helvetica"

var standard14 = []string{
	"Helvetica", "Helvetica-Bold", "Helvetica-Oblique", "Helvetica-BoldOblique",
	"Times-Roman", "Times-Bold", "Times-Italic", "Times-BoldItalic",
	"Courier", "Courier-Bold", "Courier-Oblique", "Courier-BoldOblique",
	"Symbol", "ZapfDingbats",
}

var aliases = map[string]string{
	"arial":           "Helvetica",
	"arial-bold":      "Helvetica-Bold",
	"sans":            "Helvetica",
	"sans-serif":      "Helvetica",
	"helvetica":       "Helvetica",
	"times":           "Times-Roman",
	"times new roman": "Times-Roman",
	"timesroman":      "Times-Roman",
	"times-roman":     "Times-Roman",
	"serif":           "Times-Roman",
	"courier":         "Courier",
	"courier new":     "Courier",
	"monospace":       "Courier",
}

// StandardNames lists the 14 standard font names.
func StandardNames() []string { return append([]string(nil), standard14...) }

func IsStandard(name string) bool {
	for _, n := range standard14 {
		if n == name {
			return true
		}
	}
	return false
}

// Canonical maps common family names onto a standard font name. ok is
// false for names it does not recognise.
func Canonical(name string) (string, bool) {
	if IsStandard(name) {
		return name, true
	}
	if n, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return n, true
	}
	for _, n := range standard14 {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

// family reports which width table serves a standard font. Bold and
// italic faces share the regular widths of their family.
func family(name string) string {
	switch {
	case strings.HasPrefix(name, "Courier"):
		return "Courier"
	case strings.HasPrefix(name, "Times"):
		return "Times"
	default:
		return "Helvetica"
	}
}

// Widths in 1/1000 em for WinAnsi codes 32..126.
var helveticaWidths = [95]int{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}

var timesWidths = [95]int{
	250, 333, 408, 500, 500, 833, 778, 180, 333, 333, 500, 564, 250, 333, 250, 278,
	500, 500, 500, 500, 500, 500, 500, 500, 500, 500, 278, 278, 564, 564, 564, 444,
	921, 722, 667, 667, 722, 611, 556, 722, 722, 333, 389, 722, 611, 889, 722, 722,
	556, 722, 667, 556, 611, 722, 722, 944, 722, 722, 611, 333, 278, 333, 469, 500,
	333, 444, 500, 444, 500, 444, 333, 500, 500, 278, 278, 500, 278, 778, 500, 500,
	500, 500, 333, 389, 278, 500, 500, 722, 500, 500, 444, 480, 200, 480, 541,
}

// GlyphWidth returns the width of a WinAnsi code in 1/1000 em.
func GlyphWidth(font string, code byte) int {
	switch family(font) {
	case "Courier":
		return 600
	case "Times":
		if code >= 32 && code <= 126 {
			return timesWidths[code-32]
		}
		return 500
	default:
		if code >= 32 && code <= 126 {
			return helveticaWidths[code-32]
		}
		return 556
	}
}

// StringWidth measures encoded bytes in 1/1000 em.
func StringWidth(font string, encoded []byte) int {
	w := 0
	for _, c := range encoded {
		w += GlyphWidth(font, c)
	}
	return w
}

// TextWidth measures s set in a standard font at size points.
func TextWidth(font, s string, size float64) float64 {
	return float64(StringWidth(font, winAnsiLossy(s))) * size / 1000
}
