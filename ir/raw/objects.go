package raw

import "math"

type NameObj struct{ Val string }

func (NameObj) Type() string    { return "name" }
func (n NameObj) Value() string { return n.Val }

type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (NumberObj) Type() string { return "number" }
func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(math.Round(n.F))
}
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}

type BoolObj struct{ V bool }

func (BoolObj) Type() string { return "boolean" }

type NullObj struct{}

func (NullObj) Type() string { return "null" }

// StringObj holds string bytes. Hex only affects how the writer emits it.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (StringObj) Type() string    { return "string" }
func (s StringObj) Value() []byte { return s.Bytes }

type ArrayObj struct{ Items []Object }

func (*ArrayObj) Type() string { return "array" }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}
func (a *ArrayObj) Len() int        { return len(a.Items) }
func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

// Floats returns the numeric items of a, skipping anything else.
func (a *ArrayObj) Floats() []float64 {
	out := make([]float64, 0, len(a.Items))
	for _, it := range a.Items {
		if f, ok := ToFloat(it); ok {
			out = append(out, f)
		}
	}
	return out
}

// DictObj keeps its keys in insertion order so serialisation is stable.
type DictObj struct {
	keys []string
	kv   map[string]Object
}

func (*DictObj) Type() string { return "dict" }

func (d *DictObj) Get(key string) (Object, bool) {
	if d == nil || d.kv == nil {
		return nil, false
	}
	o, ok := d.kv[key]
	return o, ok
}

func (d *DictObj) Set(key string, value Object) {
	if d.kv == nil {
		d.kv = make(map[string]Object)
	}
	if _, exists := d.kv[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.kv[key] = value
}

func (d *DictObj) Delete(key string) {
	if _, ok := d.kv[key]; !ok {
		return
	}
	delete(d.kv, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

func (d *DictObj) Keys() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.keys...)
}

func (d *DictObj) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Name returns the name value stored under key.
func (d *DictObj) Name(key string) (string, bool) {
	o, ok := d.Get(key)
	if !ok {
		return "", false
	}
	n, ok := o.(NameObj)
	return n.Val, ok
}

func (d *DictObj) Int(key string) (int64, bool) {
	o, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := o.(NumberObj)
	return n.Int(), ok
}

func (d *DictObj) Ref(key string) (ObjectRef, bool) {
	o, ok := d.Get(key)
	if !ok {
		return ObjectRef{}, false
	}
	r, ok := o.(RefObj)
	return r.R, ok
}

type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (*StreamObj) Type() string { return "stream" }

type RefObj struct{ R ObjectRef }

func (RefObj) Type() string { return "ref" }

func NameLiteral(v string) NameObj    { return NameObj{Val: v} }
func NumberInt(i int64) NumberObj     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj { return NumberObj{F: f} }
func Bool(v bool) BoolObj             { return BoolObj{V: v} }
func Str(b []byte) StringObj          { return StringObj{Bytes: b} }
func NewArray(items ...Object) *ArrayObj {
	return &ArrayObj{Items: items}
}
func Dict() *DictObj { return &DictObj{kv: make(map[string]Object)} }
func NewStream(dict *DictObj, data []byte) *StreamObj {
	if dict == nil {
		dict = Dict()
	}
	return &StreamObj{Dict: dict, Data: data}
}
func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

// Rect builds the four-number array used for /MediaBox and /Rect entries.
func Rect(x1, y1, x2, y2 float64) *ArrayObj {
	return NewArray(Number(x1), Number(y1), Number(x2), Number(y2))
}

// Number picks the integer form when f has no fractional part.
func Number(f float64) NumberObj {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return NumberInt(int64(f))
	}
	return NumberFloat(f)
}

func ToFloat(o Object) (float64, bool) {
	n, ok := o.(NumberObj)
	if !ok {
		return 0, false
	}
	return n.Float(), true
}

// Clone returns a deep copy of o. References are copied as-is.
func Clone(o Object) Object {
	switch v := o.(type) {
	case *ArrayObj:
		out := &ArrayObj{Items: make([]Object, len(v.Items))}
		for i, it := range v.Items {
			out.Items[i] = Clone(it)
		}
		return out
	case *DictObj:
		out := Dict()
		for _, k := range v.keys {
			out.Set(k, Clone(v.kv[k]))
		}
		return out
	case *StreamObj:
		return &StreamObj{Dict: Clone(v.Dict).(*DictObj), Data: append([]byte(nil), v.Data...)}
	case StringObj:
		return StringObj{Bytes: append([]byte(nil), v.Bytes...), Hex: v.Hex}
	default:
		return o
	}
}

// Walk calls fn for o and every object nested in it, depth first.
func Walk(o Object, fn func(Object)) {
	fn(o)
	switch v := o.(type) {
	case *ArrayObj:
		for _, it := range v.Items {
			Walk(it, fn)
		}
	case *DictObj:
		for _, k := range v.keys {
			Walk(v.kv[k], fn)
		}
	case *StreamObj:
		Walk(v.Dict, fn)
	}
}
