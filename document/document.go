// Package document creates, loads, edits and saves PDF documents: pages,
// standard fonts, raster images, drawing, metadata and form fields.
//
// A Document is not safe for concurrent use.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wudi/pdfstudio/fonts"
	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/parser"
	"github.com/wudi/pdfstudio/recovery"
	"github.com/wudi/pdfstudio/writer"
)

var (
	ErrPageIndex        = errors.New("page index out of range")
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrUnencodable rejects text the standard-14 fonts cannot show.
	ErrUnencodable = fonts.ErrUnencodable
	ErrForeignPage = errors.New("page belongs to another document")
)

// A4 and Letter page sizes in points.
var (
	A4     = [2]float64{595.28, 841.89}
	Letter = [2]float64{612, 792}
)

const producer = "pdfstudio"

// Options configures New and Load. The zero value is usable.
type Options struct {
	// Recovery decides how malformed input is handled on Load. Nil is strict.
	Recovery recovery.Strategy
	Writer   writer.Config
	Logger   observability.Logger
	// Now stamps creation and modification dates. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	o.Logger = observability.OrNop(o.Logger)
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Document is an editable PDF.
type Document struct {
	raw       *raw.Document
	pagesRoot raw.ObjectRef
	pages     []*Page
	fonts     map[string]*Font
	images    map[[32]byte]*Image
	form      *Form
	opts      Options
	log       observability.Logger
}

// New returns an empty document with no pages.
func New() *Document { return NewWithOptions(Options{}) }

func NewWithOptions(opts Options) *Document {
	opts = opts.withDefaults()
	rd := raw.NewDocument()
	pages := raw.Dict()
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", raw.NewArray())
	pages.Set("Count", raw.NumberInt(0))
	pagesRef := rd.Add(pages)
	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", pagesRef)
	rd.Trailer.Set("Root", rd.Add(catalog))

	d := newDocument(rd, pagesRef.R, opts)
	now := opts.Now()
	d.SetInfo(Info{Producer: producer, Creator: producer, CreationDate: now, ModDate: now})
	return d
}

func newDocument(rd *raw.Document, root raw.ObjectRef, opts Options) *Document {
	return &Document{
		raw:       rd,
		pagesRoot: root,
		fonts:     make(map[string]*Font),
		images:    make(map[[32]byte]*Image),
		opts:      opts,
		log:       opts.Logger,
	}
}

// Load parses data strictly.
func Load(ctx context.Context, data []byte) (*Document, error) {
	return LoadWithOptions(ctx, data, Options{})
}

func LoadWithOptions(ctx context.Context, data []byte, opts Options) (*Document, error) {
	opts = opts.withDefaults()
	p := parser.NewDocumentParser(parser.Config{Recovery: opts.Recovery, Logger: opts.Logger})
	rd, err := p.ParseBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	catalog, err := rd.Catalog()
	if err != nil {
		return nil, err
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return nil, errors.New("catalog has no /Pages")
	}
	rootRef, ok := pagesObj.(raw.RefObj)
	if !ok {
		// A direct page tree root is legal but awkward to edit; promote it.
		rootRef = rd.Add(pagesObj)
		catalog.Set("Pages", rootRef)
	}
	d := newDocument(rd, rootRef.R, opts)
	if err := d.collectPages(rootRef.R); err != nil {
		return nil, err
	}
	d.indexFonts()
	d.log.Debug("document loaded", observability.Int("pages", len(d.pages)), observability.Int("objects", len(rd.Objects)))
	return d, nil
}

var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// collectPages flattens the page tree, copying inherited attributes onto
// each leaf so pages can later be moved between trees.
func (d *Document) collectPages(root raw.ObjectRef) error {
	seen := make(map[raw.ObjectRef]bool)
	var walk func(ref raw.ObjectRef, inherited map[string]raw.Object, depth int) error
	walk = func(ref raw.ObjectRef, inherited map[string]raw.Object, depth int) error {
		if depth > 64 {
			return errors.New("page tree too deep")
		}
		if seen[ref] {
			return fmt.Errorf("page tree cycle at %s", ref)
		}
		seen[ref] = true
		node, ok := d.raw.ResolveDict(raw.RefObj{R: ref})
		if !ok {
			return fmt.Errorf("page tree node %s is not a dictionary", ref)
		}
		attrs := make(map[string]raw.Object, len(inherited))
		for k, v := range inherited {
			attrs[k] = v
		}
		for _, k := range inheritable {
			if v, ok := node.Get(k); ok {
				attrs[k] = v
			}
		}
		typ, _ := node.Name("Type")
		kidsObj, hasKids := node.Get("Kids")
		if typ == "Page" || (!hasKids && typ != "Pages") {
			for _, k := range inheritable {
				if _, ok := node.Get(k); !ok {
					if v, ok := attrs[k]; ok {
						node.Set(k, v)
					}
				}
			}
			if _, ok := node.Get("MediaBox"); !ok {
				node.Set("MediaBox", raw.Rect(0, 0, Letter[0], Letter[1]))
			}
			d.pages = append(d.pages, &Page{doc: d, ref: ref, dict: node})
			return nil
		}
		kids, _ := d.raw.ResolveArray(kidsObj)
		if kids == nil {
			return nil
		}
		for _, k := range kids.Items {
			kr, ok := k.(raw.RefObj)
			if !ok {
				continue
			}
			if err := walk(kr.R, attrs, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root, nil, 0)
}

// Raw exposes the underlying object graph.
func (d *Document) Raw() *raw.Document { return d.raw }

func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the page at zero-based index i.
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageIndex, i, len(d.pages))
	}
	return d.pages[i], nil
}

// Pages returns the pages in document order.
func (d *Document) Pages() []*Page { return append([]*Page(nil), d.pages...) }

// PageIndices returns 0..PageCount()-1.
func (d *Document) PageIndices() []int {
	out := make([]int, len(d.pages))
	for i := range out {
		out[i] = i
	}
	return out
}

// AddPage appends a blank page. A zero size selects A4.
func (d *Document) AddPage(width, height float64) *Page {
	p := d.newPage(width, height)
	d.pages = append(d.pages, p)
	return p
}

func (d *Document) newPage(width, height float64) *Page {
	if width <= 0 || height <= 0 {
		width, height = A4[0], A4[1]
	}
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("Page"))
	dict.Set("Parent", raw.RefObj{R: d.pagesRoot})
	dict.Set("MediaBox", raw.Rect(0, 0, width, height))
	dict.Set("Resources", raw.Dict())
	ref := d.raw.Add(dict)
	return &Page{doc: d, ref: ref.R, dict: dict}
}

// InsertPage places p at index i, shifting later pages. p must come from
// this document (AddPage removed, or CopyPages) and not already be in the
// page list. i == PageCount() appends.
func (d *Document) InsertPage(i int, p *Page) error {
	if p == nil || p.doc != d {
		return ErrForeignPage
	}
	if i < 0 || i > len(d.pages) {
		return fmt.Errorf("%w: %d of %d", ErrPageIndex, i, len(d.pages))
	}
	for _, q := range d.pages {
		if q == p {
			return fmt.Errorf("page %s already in document", p.ref)
		}
	}
	d.pages = append(d.pages, nil)
	copy(d.pages[i+1:], d.pages[i:])
	d.pages[i] = p
	p.dict.Set("Parent", raw.RefObj{R: d.pagesRoot})
	return nil
}

// RemovePage drops the page at index i from the page list. Its objects are
// discarded on Save unless still referenced.
func (d *Document) RemovePage(i int) error {
	if i < 0 || i >= len(d.pages) {
		return fmt.Errorf("%w: %d of %d", ErrPageIndex, i, len(d.pages))
	}
	d.pages = append(d.pages[:i], d.pages[i+1:]...)
	return nil
}

// Save serialises the document.
func (d *Document) Save(ctx context.Context) ([]byte, error) {
	for _, p := range d.pages {
		p.flush()
	}
	d.rebuildPageTree()
	if d.form != nil {
		d.form.commit()
	}
	d.prune()
	out, err := writer.Bytes(ctx, d.raw, d.opts.Writer)
	if err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	d.log.Debug("document saved", observability.Int("pages", len(d.pages)), observability.Int("bytes", len(out)))
	return out, nil
}

func (d *Document) rebuildPageTree() {
	root, ok := d.raw.ResolveDict(raw.RefObj{R: d.pagesRoot})
	if !ok {
		root = raw.Dict()
		d.raw.Set(d.pagesRoot, root)
	}
	root.Set("Type", raw.NameLiteral("Pages"))
	kids := raw.NewArray()
	for _, p := range d.pages {
		p.dict.Set("Parent", raw.RefObj{R: d.pagesRoot})
		kids.Append(raw.RefObj{R: p.ref})
	}
	root.Set("Kids", kids)
	root.Set("Count", raw.NumberInt(int64(len(d.pages))))
	root.Delete("Parent")
}

// prune removes objects no longer reachable from the trailer.
func (d *Document) prune() {
	reached := make(map[raw.ObjectRef]bool)
	var visit func(o raw.Object)
	visit = func(o raw.Object) {
		raw.Walk(o, func(n raw.Object) {
			r, ok := n.(raw.RefObj)
			if !ok || reached[r.R] {
				return
			}
			reached[r.R] = true
			if target, ok := d.raw.Get(r.R); ok {
				visit(target)
			}
		})
	}
	visit(d.raw.Trailer)
	removed := 0
	for ref := range d.raw.Objects {
		if !reached[ref] {
			delete(d.raw.Objects, ref)
			removed++
		}
	}
	if removed > 0 {
		d.log.Debug("pruned unreachable objects", observability.Int("count", removed))
	}
}

// Font is an embedded standard font.
type Font struct {
	Name string
	ref  raw.RefObj
}

// EmbedFont registers one of the standard 14 fonts. Common aliases such as
// "Arial" resolve to their standard equivalent.
func (d *Document) EmbedFont(name string) (*Font, error) {
	canonical, ok := fonts.Canonical(name)
	if !ok {
		return nil, fmt.Errorf("font %q is not a standard font", name)
	}
	if f, ok := d.fonts[canonical]; ok {
		return f, nil
	}
	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("Font"))
	dict.Set("Subtype", raw.NameLiteral("Type1"))
	dict.Set("BaseFont", raw.NameLiteral(canonical))
	if canonical != "Symbol" && canonical != "ZapfDingbats" {
		dict.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	}
	f := &Font{Name: canonical, ref: d.raw.Add(dict)}
	d.fonts[canonical] = f
	return f, nil
}

// indexFonts lets EmbedFont reuse simple standard font objects already in a
// loaded file.
func (d *Document) indexFonts() {
	for _, ref := range d.raw.Refs() {
		dict, ok := d.raw.Objects[ref].(*raw.DictObj)
		if !ok {
			continue
		}
		if t, _ := dict.Name("Type"); t != "Font" {
			continue
		}
		if st, _ := dict.Name("Subtype"); st != "Type1" {
			continue
		}
		base, _ := dict.Name("BaseFont")
		enc, _ := dict.Name("Encoding")
		if !fonts.IsStandard(base) || (enc != "WinAnsiEncoding" && base != "Symbol" && base != "ZapfDingbats") {
			continue
		}
		if _, dup := d.fonts[base]; !dup {
			d.fonts[base] = &Font{Name: base, ref: raw.RefObj{R: ref}}
		}
	}
}
