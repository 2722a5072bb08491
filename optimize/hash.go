package optimize

import (
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstudio/ir/raw"
)

type digest [32]byte

func hashObject(obj raw.Object) digest {
	h, _ := blake2b.New256(nil)
	writeHash(h, obj)
	var d digest
	copy(d[:], h.Sum(nil))
	return d
}

// writeHash feeds a canonical form of obj to w. Dictionary keys are sorted
// so insertion order does not matter.
func writeHash(w io.Writer, obj raw.Object) {
	if obj == nil {
		io.WriteString(w, "nil")
		return
	}
	io.WriteString(w, obj.Type())
	io.WriteString(w, ":")
	switch t := obj.(type) {
	case raw.NameObj:
		fmt.Fprintf(w, "%q", t.Val)
	case raw.NumberObj:
		if t.IsInt {
			fmt.Fprint(w, t.I)
		} else {
			fmt.Fprint(w, t.F)
		}
	case raw.BoolObj:
		fmt.Fprint(w, t.V)
	case raw.StringObj:
		fmt.Fprintf(w, "%d:", len(t.Bytes))
		w.Write(t.Bytes)
	case raw.RefObj:
		fmt.Fprintf(w, "%d %d R", t.R.Num, t.R.Gen)
	case *raw.ArrayObj:
		io.WriteString(w, "[")
		for _, it := range t.Items {
			writeHash(w, it)
			io.WriteString(w, ",")
		}
		io.WriteString(w, "]")
	case *raw.DictObj:
		keys := t.Keys()
		sort.Strings(keys)
		io.WriteString(w, "<<")
		for _, k := range keys {
			v, _ := t.Get(k)
			fmt.Fprintf(w, "%q", k)
			writeHash(w, v)
		}
		io.WriteString(w, ">>")
	case *raw.StreamObj:
		writeHash(w, t.Dict)
		fmt.Fprintf(w, "%d:", len(t.Data))
		w.Write(t.Data)
	}
}
