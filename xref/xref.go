// Package xref locates indirect objects: classic cross-reference tables,
// cross-reference streams, incremental-update chains, and a repair scan for
// files whose tables are damaged.
package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/recovery"
	"github.com/wudi/pdfstudio/scanner"
)

var ErrNoStartXRef = errors.New("startxref not found")

// Entry locates one object. Compressed entries live inside the object
// stream numbered Stream at position Index.
type Entry struct {
	Offset     int64
	Gen        int
	Compressed bool
	Stream     int
	Index      int
}

// Table is the merged view over every section of the file.
type Table struct {
	entries  map[int]Entry
	Trailer  *raw.DictObj
	Repaired bool
	Sections int
}

func newTable() *Table { return &Table{entries: make(map[int]Entry)} }

func (t *Table) Lookup(objNum int) (Entry, bool) {
	e, ok := t.entries[objNum]
	return e, ok
}

func (t *Table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// add keeps the first entry seen; sections are read newest first.
func (t *Table) add(num int, e Entry) {
	if _, ok := t.entries[num]; !ok {
		t.entries[num] = e
	}
}

type Resolver interface {
	Resolve(ctx context.Context, data []byte) (*Table, error)
}

type ResolverConfig struct {
	MaxXRefDepth int
	Recovery     recovery.Strategy
}

func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &resolver{cfg: cfg, pipeline: filters.Default()}
}

type resolver struct {
	cfg      ResolverConfig
	pipeline *filters.Pipeline
}

func (r *resolver) Resolve(ctx context.Context, data []byte) (*Table, error) {
	t, err := r.resolveChain(ctx, data)
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if recovery.Decide(r.cfg.Recovery, err, recovery.Location{Component: "xref"}) != recovery.ActionFix {
		return nil, err
	}
	return Repair(ctx, data)
}

func (r *resolver) resolveChain(ctx context.Context, data []byte) (*Table, error) {
	offset, err := startXRef(data)
	if err != nil {
		return nil, err
	}
	t := newTable()
	seen := make(map[int64]bool)
	for depth := 0; offset >= 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth >= r.cfg.MaxXRefDepth {
			return nil, fmt.Errorf("xref chain deeper than %d", r.cfg.MaxXRefDepth)
		}
		if seen[offset] {
			break
		}
		seen[offset] = true
		if offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset %d out of range", offset)
		}
		trailer, err := r.readSection(ctx, data, offset, t)
		if err != nil {
			return nil, err
		}
		t.Sections++
		if t.Trailer == nil {
			t.Trailer = trailer
		}
		// Hybrid files point at an xref stream from a classic trailer.
		if stm, ok := trailer.Int("XRefStm"); ok && !seen[stm] {
			seen[stm] = true
			if _, err := r.readSection(ctx, data, stm, t); err != nil {
				return nil, err
			}
		}
		prev, ok := trailer.Int("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	if t.Trailer == nil {
		return nil, errors.New("no trailer")
	}
	return t, nil
}

func startXRef(data []byte) (int64, error) {
	idx := bytes.LastIndex(data, []byte("startxref"))
	if idx < 0 {
		return 0, ErrNoStartXRef
	}
	fields := bytes.Fields(data[idx+len("startxref"):])
	if len(fields) == 0 {
		return 0, ErrNoStartXRef
	}
	off, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse startxref: %w", err)
	}
	if off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("xref offset out of range: %d", off)
	}
	return off, nil
}

// readSection reads the section at offset into t and returns its trailer.
func (r *resolver) readSection(ctx context.Context, data []byte, offset int64, t *Table) (*raw.DictObj, error) {
	s := scanner.New(data, scanner.Config{})
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, fmt.Errorf("xref at %d: %w", offset, err)
	}
	if tok.Type == scanner.TokenKeyword && tok.Str == "xref" {
		return readTable(s, t)
	}
	if err := s.Seek(offset); err != nil {
		return nil, err
	}
	_, obj, err := scanner.ReadIndirect(s, directLength)
	if err != nil {
		return nil, fmt.Errorf("xref stream at %d: %w", offset, err)
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("xref at %d: neither a table nor a stream", offset)
	}
	if typ, _ := stm.Dict.Name("Type"); typ != "XRef" {
		return nil, fmt.Errorf("xref at %d: stream type %q", offset, typ)
	}
	if err := r.readStream(ctx, stm, t); err != nil {
		return nil, fmt.Errorf("xref stream at %d: %w", offset, err)
	}
	return stm.Dict, nil
}

func directLength(o raw.Object) int64 {
	if n, ok := o.(raw.NumberObj); ok {
		return n.Int()
	}
	return -1
}

func readTable(s scanner.Scanner, t *Table) (*raw.DictObj, error) {
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "trailer" {
			obj, err := scanner.ReadObject(s)
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			dict, ok := obj.(*raw.DictObj)
			if !ok {
				return nil, errors.New("trailer is not a dictionary")
			}
			return dict, nil
		}
		countTok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("xref table: %w", err)
		}
		if tok.Type != scanner.TokenNumber || countTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("invalid xref subsection header at %d", tok.Pos)
		}
		start, count := int(tok.Int), int(countTok.Int)
		for i := 0; i < count; i++ {
			offTok, err1 := s.Next()
			genTok, err2 := s.Next()
			kind, err3 := s.Next()
			if err := errors.Join(err1, err2, err3); err != nil {
				return nil, fmt.Errorf("xref entry %d: %w", start+i, err)
			}
			if offTok.Type != scanner.TokenNumber || genTok.Type != scanner.TokenNumber {
				return nil, fmt.Errorf("invalid xref entry for object %d", start+i)
			}
			if kind.Str != "n" {
				continue
			}
			t.add(start+i, Entry{Offset: offTok.Int, Gen: int(genTok.Int)})
		}
	}
}

func (r *resolver) readStream(ctx context.Context, stm *raw.StreamObj, t *Table) error {
	wArr, ok := stm.Dict.Get("W")
	if !ok {
		return errors.New("missing /W")
	}
	arr, ok := wArr.(*raw.ArrayObj)
	if !ok || arr.Len() != 3 {
		return errors.New("invalid /W")
	}
	var w [3]int
	for i, f := range arr.Floats() {
		w[i] = int(f)
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen == 0 {
		return errors.New("zero-width /W")
	}
	size, _ := stm.Dict.Int("Size")
	index := []int{0, int(size)}
	if idx, ok := stm.Dict.Get("Index"); ok {
		if ia, ok := idx.(*raw.ArrayObj); ok {
			index = index[:0]
			for _, f := range ia.Floats() {
				index = append(index, int(f))
			}
		}
	}
	body, err := r.pipeline.DecodeStream(ctx, stm)
	if err != nil {
		return err
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(body) {
				return fmt.Errorf("xref stream truncated at object %d", start+j)
			}
			row := body[pos : pos+rowLen]
			pos += rowLen
			typ := int64(1)
			if w[0] > 0 {
				typ = field(row[:w[0]])
			}
			f2 := field(row[w[0] : w[0]+w[1]])
			f3 := field(row[w[0]+w[1]:])
			switch typ {
			case 1:
				t.add(start+j, Entry{Offset: f2, Gen: int(f3)})
			case 2:
				t.add(start+j, Entry{Compressed: true, Stream: int(f2), Index: int(f3)})
			}
		}
	}
	return nil
}

func field(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
