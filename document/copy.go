package document

import (
	"fmt"

	"github.com/wudi/pdfstudio/ir/raw"
)

// CopyPages deep-copies the pages at indices of src into d. The copies are
// not yet part of d's page list; place them with InsertPage.
//
// Objects reachable from each page are renumbered into d. References to
// other pages (annotation /P, link destinations) become null, so copying a
// page never drags in its neighbours.
func (d *Document) CopyPages(src *Document, indices []int) ([]*Page, error) {
	for _, i := range indices {
		if i < 0 || i >= len(src.pages) {
			return nil, fmt.Errorf("%w: %d of %d", ErrPageIndex, i, len(src.pages))
		}
	}
	for _, p := range src.pages {
		p.flush()
	}
	c := &copier{src: src.raw, dst: d.raw, mapped: make(map[raw.ObjectRef]raw.RefObj)}
	out := make([]*Page, 0, len(indices))
	for _, i := range indices {
		sp := src.pages[i]
		dict := raw.Dict()
		newRef := d.raw.Add(dict)
		c.mapped[sp.ref] = newRef
		c.page = sp.ref
		for _, k := range sp.dict.Keys() {
			if k == "Parent" {
				continue
			}
			v, _ := sp.dict.Get(k)
			dict.Set(k, c.copy(v))
		}
		dict.Set("Parent", raw.RefObj{R: d.pagesRoot})
		out = append(out, &Page{doc: d, ref: newRef.R, dict: dict})
	}
	return out, nil
}

type copier struct {
	src, dst *raw.Document
	mapped   map[raw.ObjectRef]raw.RefObj
	page     raw.ObjectRef
}

func (c *copier) copy(o raw.Object) raw.Object {
	switch v := o.(type) {
	case raw.RefObj:
		if r, ok := c.mapped[v.R]; ok {
			return r
		}
		target, ok := c.src.Get(v.R)
		if !ok {
			return raw.NullObj{}
		}
		if c.isOtherPage(v.R, target) {
			return raw.NullObj{}
		}
		// Reserve the number first so cycles resolve to it.
		placeholder := c.dst.Add(raw.NullObj{})
		c.mapped[v.R] = placeholder
		c.dst.Set(placeholder.R, c.copy(target))
		return placeholder
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, it := range v.Items {
			out.Append(c.copy(it))
		}
		return out
	case *raw.DictObj:
		out := raw.Dict()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out.Set(k, c.copy(val))
		}
		return out
	case *raw.StreamObj:
		return &raw.StreamObj{Dict: c.copy(v.Dict).(*raw.DictObj), Data: append([]byte(nil), v.Data...)}
	default:
		return raw.Clone(o)
	}
}

func (c *copier) isOtherPage(ref raw.ObjectRef, o raw.Object) bool {
	if ref == c.page {
		return false
	}
	dict, ok := o.(*raw.DictObj)
	if !ok {
		return false
	}
	t, _ := dict.Name("Type")
	return t == "Page" || t == "Pages"
}
