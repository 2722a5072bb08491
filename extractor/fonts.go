package extractor

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/ir/raw"
)

// FontInfo describes a font resource and the pages using it.
type FontInfo struct {
	ResourceName string
	BaseFont     string
	Subtype      string
	Encoding     string
	HasToUnicode bool
	Pages        []int
}

// ExtractFonts reports the distinct fonts referenced by page resources.
func (e *Extractor) ExtractFonts() []FontInfo {
	byDict := make(map[*raw.DictObj]*FontInfo)
	for idx, page := range e.doc.Pages() {
		fontDict, ok := e.raw.ResolveDict(get(page.Resources(), "Font"))
		if !ok {
			continue
		}
		for _, name := range fontDict.Keys() {
			obj, _ := fontDict.Get(name)
			dict, ok := e.raw.ResolveDict(obj)
			if !ok {
				continue
			}
			info, ok := byDict[dict]
			if !ok {
				base, _ := dict.Name("BaseFont")
				subtype, _ := dict.Name("Subtype")
				enc, _ := dict.Name("Encoding")
				_, hasCMap := dict.Get("ToUnicode")
				info = &FontInfo{ResourceName: name, BaseFont: base, Subtype: subtype, Encoding: enc, HasToUnicode: hasCMap}
				byDict[dict] = info
			}
			if n := len(info.Pages); n == 0 || info.Pages[n-1] != idx {
				info.Pages = append(info.Pages, idx)
			}
		}
	}
	out := make([]FontInfo, 0, len(byDict))
	for _, info := range byDict {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BaseFont == out[j].BaseFont {
			return out[i].ResourceName < out[j].ResourceName
		}
		return out[i].BaseFont < out[j].BaseFont
	})
	return out
}

// fontModel is what text extraction needs from a font: how to split a
// string into codes, what each code means and how wide it is.
type fontModel struct {
	base         string
	twoByte      bool
	cmap         *toUnicode
	widths       map[int]float64 // 1/1000 text space units
	defaultWidth float64
	standard     string // standard font supplying widths, if any
	decodeByte   func(byte) rune
	differences  map[int]rune
}

var helveticaModel = &fontModel{base: fonts.DefaultFont, standard: fonts.DefaultFont, defaultWidth: 556, decodeByte: winAnsiRune}

func winAnsiRune(b byte) rune  { return charmap.Windows1252.DecodeByte(b) }
func macRomanRune(b byte) rune { return charmap.Macintosh.DecodeByte(b) }

func (e *Extractor) font(ctx context.Context, obj raw.Object) *fontModel {
	if ref, ok := obj.(raw.RefObj); ok {
		if f, ok := e.fontCache[ref.R]; ok {
			return f
		}
		f := e.buildFont(ctx, obj)
		e.fontCache[ref.R] = f
		return f
	}
	return e.buildFont(ctx, obj)
}

func (e *Extractor) buildFont(ctx context.Context, obj raw.Object) *fontModel {
	dict, ok := e.raw.ResolveDict(obj)
	if !ok {
		return helveticaModel
	}
	f := &fontModel{decodeByte: winAnsiRune, widths: make(map[int]float64)}
	f.base, _ = dict.Name("BaseFont")
	subtype, _ := dict.Name("Subtype")
	if stm, ok := e.raw.Resolve(get(dict, "ToUnicode")).(*raw.StreamObj); ok {
		if data, err := e.pipe.DecodeStream(ctx, stm); err == nil {
			f.cmap = parseToUnicode(data)
		} else {
			e.log.Debug("ToUnicode undecodable", fieldErr(err))
		}
	}
	if subtype == "Type0" {
		f.twoByte = true
		f.defaultWidth = 1000
		if desc, ok := e.raw.ResolveArray(get(dict, "DescendantFonts")); ok && desc.Len() > 0 {
			if cid, ok := e.raw.ResolveDict(desc.Items[0]); ok {
				if dw, ok := raw.ToFloat(e.raw.Resolve(get(cid, "DW"))); ok {
					f.defaultWidth = dw
				}
				e.cidWidths(f, get(cid, "W"))
			}
		}
		return f
	}

	stripped := f.base
	if i := strings.IndexByte(stripped, '+'); i == 6 {
		stripped = stripped[i+1:]
	}
	if name, ok := fonts.Canonical(stripped); ok {
		f.standard = name
	}
	f.defaultWidth = 500
	if fd, ok := e.raw.ResolveDict(get(dict, "FontDescriptor")); ok {
		if mw, ok := raw.ToFloat(e.raw.Resolve(get(fd, "MissingWidth"))); ok && mw > 0 {
			f.defaultWidth = mw
		}
	}
	first, _ := raw.ToFloat(e.raw.Resolve(get(dict, "FirstChar")))
	if w, ok := e.raw.ResolveArray(get(dict, "Widths")); ok {
		for i, it := range w.Items {
			if v, ok := raw.ToFloat(e.raw.Resolve(it)); ok {
				f.widths[int(first)+i] = v
			}
		}
	}
	switch enc := e.raw.Resolve(get(dict, "Encoding")).(type) {
	case raw.NameObj:
		f.setBaseEncoding(enc.Val)
	case *raw.DictObj:
		if b, ok := enc.Name("BaseEncoding"); ok {
			f.setBaseEncoding(b)
		}
		if diffs, ok := e.raw.ResolveArray(get(enc, "Differences")); ok {
			f.differences = parseDifferences(diffs)
		}
	}
	return f
}

func (f *fontModel) setBaseEncoding(name string) {
	if name == "MacRomanEncoding" {
		f.decodeByte = macRomanRune
	}
}

// cidWidths reads a CIDFont /W array: "c [w1 w2 ...]" and "c1 c2 w" runs.
func (e *Extractor) cidWidths(f *fontModel, obj raw.Object) {
	arr, ok := e.raw.ResolveArray(obj)
	if !ok {
		return
	}
	items := arr.Items
	for i := 0; i < len(items); {
		start, ok := raw.ToFloat(e.raw.Resolve(items[i]))
		if !ok || i+1 >= len(items) {
			return
		}
		if list, ok := e.raw.Resolve(items[i+1]).(*raw.ArrayObj); ok {
			for j, it := range list.Items {
				if w, ok := raw.ToFloat(e.raw.Resolve(it)); ok {
					f.widths[int(start)+j] = w
				}
			}
			i += 2
			continue
		}
		if i+2 >= len(items) {
			return
		}
		end, _ := raw.ToFloat(e.raw.Resolve(items[i+1]))
		w, _ := raw.ToFloat(e.raw.Resolve(items[i+2]))
		for c := int(start); c <= int(end) && c-int(start) < 0x10000; c++ {
			f.widths[c] = w
		}
		i += 3
	}
}

// glyph is one decoded character code.
type glyph struct {
	code  int
	text  string
	width float64 // 1/1000 text space units
	space bool    // single-byte code 32, subject to word spacing
}

func (f *fontModel) glyphs(data []byte) []glyph {
	var out []glyph
	for len(data) > 0 {
		n := 1
		if f.twoByte && len(data) >= 2 {
			n = 2
		}
		text, used, mapped := "", n, false
		if f.cmap != nil {
			if t, l, ok := f.cmap.next(data); ok {
				text, used, mapped = t, l, true
			}
		}
		code := codeValue(data[:used])
		if !mapped {
			text = f.fallbackText(code)
		}
		out = append(out, glyph{code: code, text: text, width: f.width(code), space: used == 1 && code == 32})
		data = data[used:]
	}
	return out
}

func (f *fontModel) fallbackText(code int) string {
	if f.twoByte {
		// Identity encodings without a ToUnicode map carry glyph ids,
		// which only sometimes coincide with Unicode.
		return string(rune(code))
	}
	if r, ok := f.differences[code]; ok {
		return string(r)
	}
	return string(f.decodeByte(byte(code)))
}

func (f *fontModel) width(code int) float64 {
	if w, ok := f.widths[code]; ok {
		return w
	}
	if f.standard != "" && code < 256 {
		return float64(fonts.GlyphWidth(f.standard, byte(code)))
	}
	return f.defaultWidth
}

// parseDifferences maps codes to runes for glyph names it can interpret.
func parseDifferences(arr *raw.ArrayObj) map[int]rune {
	out := make(map[int]rune)
	code := 0
	for _, it := range arr.Items {
		switch v := it.(type) {
		case raw.NumberObj:
			code = int(v.Int())
		case raw.NameObj:
			if r, ok := glyphRune(v.Val); ok {
				out[code] = r
			}
			code++
		}
	}
	return out
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "parenleft": '(', "parenright": ')',
	"asterisk": '*', "plus": '+', "comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4', "five": '5', "six": '6',
	"seven": '7', "eight": '8', "nine": '9', "colon": ':', "semicolon": ';', "less": '<',
	"equal": '=', "greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "underscore": '_', "quoteleft": '‘',
	"quoteright": '’', "quotedblleft": '“', "quotedblright": '”', "endash": '–',
	"emdash": '—', "bullet": '•', "ellipsis": '…', "fi": 'ﬁ', "fl": 'ﬂ', "euro": '€',
}

func glyphRune(name string) (rune, bool) {
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) == 1 {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) == 7 {
		if v, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	return 0, false
}
