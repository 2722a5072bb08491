package writer

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wudi/pdfstudio/ir/raw"
)

// AppendObject writes the PDF syntax for o to buf.
func AppendObject(buf *bytes.Buffer, o raw.Object) {
	switch v := o.(type) {
	case nil, raw.NullObj:
		buf.WriteString("null")
	case raw.BoolObj:
		if v.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case raw.NumberObj:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(FormatReal(v.F))
		}
	case raw.NameObj:
		appendName(buf, v.Val)
	case raw.StringObj:
		if v.Hex {
			fmt.Fprintf(buf, "<%X>", v.Bytes)
		} else {
			appendLiteral(buf, v.Bytes)
		}
	case raw.RefObj:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			AppendObject(buf, it)
		}
		buf.WriteByte(']')
	case *raw.DictObj:
		buf.WriteString("<<")
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			appendName(buf, k)
			buf.WriteByte(' ')
			AppendObject(buf, val)
		}
		buf.WriteString(">>")
	case *raw.StreamObj:
		AppendObject(buf, v.Dict)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		buf.WriteString("null")
	}
}

// FormatReal prints f with at most five decimals and no trailing zeros.
func FormatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', 5, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

func appendName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '#' || bytes.IndexByte([]byte("()<>[]{}/%"), c) >= 0 {
			fmt.Fprintf(buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
}

func appendLiteral(buf *bytes.Buffer, b []byte) {
	buf.WriteByte('(')
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 || c > 0x7e {
				fmt.Fprintf(buf, "\\%03o", c)
			} else {
				buf.WriteByte(c)
			}
		}
	}
	buf.WriteByte(')')
}
