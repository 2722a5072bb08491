// Package raw is the in-memory PDF object graph: the objects exactly as they
// appear in the file, before any page or font interpretation.
package raw

import (
	"fmt"
	"sort"
)

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is implemented by every raw PDF value.
type Object interface {
	Type() string
}

// Document is the root container for raw PDF objects.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer *DictObj
	Version string // e.g. "1.7"
}

func NewDocument() *Document {
	return &Document{Objects: make(map[ObjectRef]Object), Trailer: Dict(), Version: "1.7"}
}

// Get returns the object stored under ref.
func (d *Document) Get(ref ObjectRef) (Object, bool) {
	o, ok := d.Objects[ref]
	return o, ok
}

// Resolve follows indirect references until a direct object is reached.
// A dangling reference resolves to NullObj, as PDF readers are required to.
func (d *Document) Resolve(o Object) Object {
	for i := 0; i < 32; i++ {
		r, ok := o.(RefObj)
		if !ok {
			return o
		}
		next, found := d.Objects[r.R]
		if !found {
			return NullObj{}
		}
		o = next
	}
	return NullObj{}
}

// ResolveDict resolves o and returns it as a dictionary. Streams yield their
// dictionary.
func (d *Document) ResolveDict(o Object) (*DictObj, bool) {
	switch v := d.Resolve(o).(type) {
	case *DictObj:
		return v, true
	case *StreamObj:
		return v.Dict, true
	}
	return nil, false
}

func (d *Document) ResolveArray(o Object) (*ArrayObj, bool) {
	a, ok := d.Resolve(o).(*ArrayObj)
	return a, ok
}

// MaxObjectNum returns the highest object number in use.
func (d *Document) MaxObjectNum() int {
	max := 0
	for ref := range d.Objects {
		if ref.Num > max {
			max = ref.Num
		}
	}
	return max
}

// Add stores o under the next free object number and returns a reference.
func (d *Document) Add(o Object) RefObj {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	ref := ObjectRef{Num: d.MaxObjectNum() + 1}
	d.Objects[ref] = o
	return RefObj{R: ref}
}

// Set replaces the object stored under ref.
func (d *Document) Set(ref ObjectRef, o Object) {
	if d.Objects == nil {
		d.Objects = make(map[ObjectRef]Object)
	}
	d.Objects[ref] = o
}

// Refs returns all object references in ascending order.
func (d *Document) Refs() []ObjectRef {
	refs := make([]ObjectRef, 0, len(d.Objects))
	for r := range d.Objects {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Num != refs[j].Num {
			return refs[i].Num < refs[j].Num
		}
		return refs[i].Gen < refs[j].Gen
	})
	return refs
}

// Catalog returns the document catalog named by the trailer's /Root.
func (d *Document) Catalog() (*DictObj, error) {
	if d.Trailer == nil {
		return nil, fmt.Errorf("missing trailer")
	}
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil, fmt.Errorf("trailer has no /Root")
	}
	cat, ok := d.ResolveDict(root)
	if !ok {
		return nil, fmt.Errorf("/Root is not a dictionary")
	}
	return cat, nil
}
