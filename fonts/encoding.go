package fonts

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// ErrUnencodable is returned for text a standard-14 font cannot show.
var ErrUnencodable = errors.New("text not encodable in WinAnsiEncoding")

// EncodeWinAnsi converts s to WinAnsiEncoding bytes. The first rune outside
// the code page is reported as ErrUnencodable.
func EncodeWinAnsi(s string) ([]byte, error) {
	enc := charmap.Windows1252
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := enc.EncodeRune(r)
		if !ok {
			return nil, fmt.Errorf("%w: %q (U+%04X)", ErrUnencodable, r, r)
		}
		out = append(out, b)
	}
	return out, nil
}

// winAnsiLossy is EncodeWinAnsi with '?' for unencodable runes, for
// measuring only.
func winAnsiLossy(s string) []byte {
	enc := charmap.Windows1252
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := enc.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}

// DecodeWinAnsi converts WinAnsiEncoding bytes to a UTF-8 string.
func DecodeWinAnsi(b []byte) string {
	enc := charmap.Windows1252
	runes := make([]rune, 0, len(b))
	for _, c := range b {
		runes = append(runes, enc.DecodeByte(c))
	}
	return string(runes)
}

// DecodePDFText decodes a text string from a document information
// dictionary or form field: UTF-16BE with a byte-order mark, UTF-8 with a
// BOM, or PDFDocEncoding (read as WinAnsi, which agrees on printable ASCII
// and Latin-1).
func DecodePDFText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xfe && b[1] == 0xff {
		runes := make([]rune, 0, len(b)/2)
		for i := 2; i+1 < len(b); i += 2 {
			u := rune(b[i])<<8 | rune(b[i+1])
			if u >= 0xd800 && u < 0xdc00 && i+3 < len(b) {
				lo := rune(b[i+2])<<8 | rune(b[i+3])
				u = 0x10000 + (u-0xd800)<<10 + (lo - 0xdc00)
				i += 2
			}
			runes = append(runes, u)
		}
		return string(runes)
	}
	if len(b) >= 3 && b[0] == 0xef && b[1] == 0xbb && b[2] == 0xbf {
		return string(b[3:])
	}
	return DecodeWinAnsi(b)
}

// EncodePDFText encodes s as a PDF text string: PDFDocEncoding-compatible
// bytes when every rune fits, UTF-16BE with a BOM otherwise.
func EncodePDFText(s string) []byte {
	ascii := true
	for _, r := range s {
		if r > 0x7e || (r < 0x20 && r != '\n' && r != '\r' && r != '\t') {
			ascii = false
			break
		}
	}
	if ascii {
		return []byte(s)
	}
	out := []byte{0xfe, 0xff}
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			hi, lo := 0xd800+(r>>10), 0xdc00+(r&0x3ff)
			out = append(out, byte(hi>>8), byte(hi), byte(lo>>8), byte(lo))
			continue
		}
		out = append(out, byte(r>>8), byte(r))
	}
	return out
}
