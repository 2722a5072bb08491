// Package parser turns PDF bytes into a raw.Document.
package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/observability"
	"github.com/wudi/pdfstudio/recovery"
	"github.com/wudi/pdfstudio/scanner"
	"github.com/wudi/pdfstudio/xref"
)

var ErrEncrypted = errors.New("encrypted documents are not supported")

// Config controls high-level PDF parsing (xref resolution + object loading).
type Config struct {
	Recovery    recovery.Strategy
	XRef        xref.ResolverConfig
	MaxIndirect int
	Cache       Cache
	Logger      observability.Logger
}

// DocumentParser builds a raw.Document using xref tables/streams and the object loader.
type DocumentParser struct {
	cfg Config
}

func NewDocumentParser(cfg Config) *DocumentParser {
	if cfg.MaxIndirect == 0 {
		cfg.MaxIndirect = 32
	}
	if cfg.XRef.Recovery == nil {
		cfg.XRef.Recovery = cfg.Recovery
	}
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &DocumentParser{cfg: cfg}
}

func (p *DocumentParser) Parse(ctx context.Context, r io.ReaderAt) (*raw.Document, error) {
	data, err := scanner.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return p.ParseBytes(ctx, data)
}

func (p *DocumentParser) ParseBytes(ctx context.Context, data []byte) (*raw.Document, error) {
	version, ok := headerVersion(data)
	if !ok {
		if recovery.Decide(p.cfg.Recovery, errors.New("missing %PDF header"), recovery.Location{Component: "header"}) == recovery.ActionFail {
			return nil, errors.New("not a PDF: missing %PDF header")
		}
		version = "1.7"
	}

	table, err := xref.NewResolver(p.cfg.XRef).Resolve(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("resolve xref: %w", err)
	}
	if _, ok := table.Trailer.Get("Encrypt"); ok {
		return nil, ErrEncrypted
	}
	if table.Repaired {
		p.cfg.Logger.Warn("cross-reference table rebuilt", observability.Int("objects", len(table.Objects())))
	}

	loader := newObjectLoader(data, table, p.cfg.Cache, p.cfg.MaxIndirect)
	doc := raw.NewDocument()
	doc.Version = version
	for _, num := range table.Objects() {
		if num == 0 {
			continue
		}
		entry, _ := table.Lookup(num)
		ref := raw.ObjectRef{Num: num, Gen: entry.Gen}
		if entry.Compressed {
			ref.Gen = 0
		}
		obj, err := loader.Load(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			loc := recovery.Location{Component: "object", ObjectNum: ref.Num, ObjectGen: ref.Gen, ByteOffset: entry.Offset}
			if recovery.Decide(p.cfg.Recovery, err, loc) == recovery.ActionFail {
				return nil, fmt.Errorf("load object %d: %w", num, err)
			}
			continue
		}
		if isStructural(obj) {
			continue
		}
		doc.Objects[ref] = obj
	}

	doc.Trailer = cleanTrailer(table.Trailer)
	if _, ok := doc.Trailer.Get("Root"); !ok {
		if ref, ok := findCatalog(doc); ok {
			doc.Trailer.Set("Root", raw.RefObj{R: ref})
		}
	}
	if _, err := doc.Catalog(); err != nil {
		return nil, fmt.Errorf("document catalog: %w", err)
	}
	p.cfg.Logger.Debug("parsed document",
		observability.String("version", doc.Version),
		observability.Int("objects", len(doc.Objects)),
		observability.Int("sections", table.Sections))
	return doc, nil
}

// isStructural reports objects that only describe the file layout. They are
// rebuilt on save.
func isStructural(o raw.Object) bool {
	stm, ok := o.(*raw.StreamObj)
	if !ok {
		return false
	}
	typ, _ := stm.Dict.Name("Type")
	return typ == "XRef" || typ == "ObjStm"
}

func cleanTrailer(t *raw.DictObj) *raw.DictObj {
	out := raw.Dict()
	for _, k := range []string{"Root", "Info", "ID"} {
		if v, ok := t.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

func findCatalog(doc *raw.Document) (raw.ObjectRef, bool) {
	for _, ref := range doc.Refs() {
		if d, ok := doc.Objects[ref].(*raw.DictObj); ok {
			if typ, _ := d.Name("Type"); typ == "Catalog" {
				return ref, true
			}
		}
	}
	return raw.ObjectRef{}, false
}

func headerVersion(data []byte) (string, bool) {
	limit := len(data)
	if limit > 1024 {
		limit = 1024
	}
	idx := bytes.Index(data[:limit], []byte("%PDF-"))
	if idx < 0 {
		return "", false
	}
	v := data[idx+5:]
	end := 0
	for end < len(v) && end < 4 && (v[end] == '.' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	if end == 0 {
		return "", false
	}
	return string(v[:end]), true
}
