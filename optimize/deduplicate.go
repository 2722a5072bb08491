package optimize

import (
	"context"

	"github.com/wudi/pdfstudio/ir/raw"
)

// resourceTypes are the dictionary /Type values eligible for combining.
var resourceTypes = map[string]bool{
	"Font":           true,
	"FontDescriptor": true,
	"ExtGState":      true,
	"Encoding":       true,
}

func (o *Optimizer) eligible(obj raw.Object) bool {
	switch t := obj.(type) {
	case *raw.StreamObj:
		return o.config.CombineDuplicateStreams
	case *raw.DictObj:
		if !o.config.CombineResources {
			return false
		}
		typ, _ := t.Name("Type")
		return resourceTypes[typ]
	}
	return false
}

// combineObjects repeats until no pass finds a duplicate, since combining
// font files can make the fonts that use them equal.
func (o *Optimizer) combineObjects(ctx context.Context, doc *raw.Document) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		seen := make(map[digest]raw.ObjectRef)
		replacements := make(map[raw.ObjectRef]raw.ObjectRef)
		for _, ref := range doc.Refs() {
			obj := doc.Objects[ref]
			if !o.eligible(obj) {
				continue
			}
			h := hashObject(obj)
			if keep, ok := seen[h]; ok {
				replacements[ref] = keep
				continue
			}
			seen[h] = ref
		}
		if len(replacements) == 0 {
			return total, nil
		}
		applyReplacements(doc, replacements)
		for dup := range replacements {
			delete(doc.Objects, dup)
		}
		total += len(replacements)
	}
}

func applyReplacements(doc *raw.Document, replacements map[raw.ObjectRef]raw.ObjectRef) {
	for _, obj := range doc.Objects {
		replaceRefs(obj, replacements)
	}
	if doc.Trailer != nil {
		replaceRefs(doc.Trailer, replacements)
	}
}

func replaceRefs(obj raw.Object, replacements map[raw.ObjectRef]raw.ObjectRef) {
	switch t := obj.(type) {
	case *raw.ArrayObj:
		for i, val := range t.Items {
			if ref, ok := val.(raw.RefObj); ok {
				if to, found := replacements[ref.R]; found {
					t.Items[i] = raw.RefObj{R: to}
				}
				continue
			}
			replaceRefs(val, replacements)
		}
	case *raw.DictObj:
		for _, key := range t.Keys() {
			val, _ := t.Get(key)
			if ref, ok := val.(raw.RefObj); ok {
				if to, found := replacements[ref.R]; found {
					t.Set(key, raw.RefObj{R: to})
				}
				continue
			}
			replaceRefs(val, replacements)
		}
	case *raw.StreamObj:
		replaceRefs(t.Dict, replacements)
	}
}
