package extractor

import (
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/wudi/pdfstudio/contentstream"
	"github.com/wudi/pdfstudio/ir/raw"
)

// toUnicode maps character codes to text through a ToUnicode CMap.
type toUnicode struct {
	entries map[string]string
	lengths []int // code lengths in bytes, longest first
}

// parseToUnicode reads the bfchar and bfrange sections of a CMap. The CMap
// syntax is close enough to a content stream that its parser splits it
// into operators whose operands are the section bodies.
func parseToUnicode(data []byte) *toUnicode {
	ops, _ := contentstream.Parse(data)
	m := &toUnicode{entries: make(map[string]string)}
	lengths := make(map[int]bool)
	for _, op := range ops {
		switch op.Operator {
		case "endcodespacerange":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				if lo := stringBytes(op.Operands[i]); len(lo) > 0 {
					lengths[len(lo)] = true
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(op.Operands); i += 2 {
				src := stringBytes(op.Operands[i])
				if len(src) == 0 {
					continue
				}
				m.entries[string(src)] = utf16BE(stringBytes(op.Operands[i+1]))
				lengths[len(src)] = true
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.Operands); i += 3 {
				lo, hi := stringBytes(op.Operands[i]), stringBytes(op.Operands[i+1])
				if len(lo) == 0 || len(lo) != len(hi) {
					continue
				}
				lengths[len(lo)] = true
				start, end := codeValue(lo), codeValue(hi)
				if end < start || end-start > 0xffff {
					continue
				}
				switch dst := op.Operands[i+2].(type) {
				case *raw.ArrayObj:
					for j, it := range dst.Items {
						if start+j > end {
							break
						}
						m.entries[string(codeBytes(start+j, len(lo)))] = utf16BE(stringBytes(it))
					}
				default:
					base := stringBytes(dst)
					if len(base) == 0 {
						continue
					}
					for c := start; c <= end; c++ {
						m.entries[string(codeBytes(c, len(lo)))] = utf16BE(increment(base, c-start))
					}
				}
			}
		}
	}
	if len(lengths) == 0 {
		for k := range m.entries {
			lengths[len(k)] = true
		}
	}
	for l := range lengths {
		m.lengths = append(m.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.lengths)))
	return m
}

// next decodes the code at the start of data. n is the number of bytes
// consumed; ok is false when no mapping matched.
func (m *toUnicode) next(data []byte) (text string, n int, ok bool) {
	for _, l := range m.lengths {
		if len(data) < l {
			continue
		}
		if v, found := m.entries[string(data[:l])]; found {
			return v, l, true
		}
	}
	return "", 0, false
}

func stringBytes(o raw.Object) []byte {
	if s, ok := o.(raw.StringObj); ok {
		return s.Bytes
	}
	return nil
}

func codeValue(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func codeBytes(v, n int) []byte {
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// increment adds delta to the last byte-pair of a UTF-16BE destination.
func increment(base []byte, delta int) []byte {
	out := append([]byte(nil), base...)
	if len(out) < 2 {
		return out
	}
	v := int(out[len(out)-2])<<8 | int(out[len(out)-1])
	v += delta
	out[len(out)-2], out[len(out)-1] = byte(v>>8), byte(v)
	return out
}

func utf16BE(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return strings.ToValidUTF8(string(utf16.Decode(units)), "�")
}
