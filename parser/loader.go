package parser

import (
	"context"
	"fmt"
	"sync"

	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/scanner"
	"github.com/wudi/pdfstudio/xref"
)

// ObjectLoader loads indirect objects on demand.
type ObjectLoader interface {
	Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error)
}

// Cache stores loaded objects. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ref raw.ObjectRef) (raw.Object, bool)
	Put(ref raw.ObjectRef, obj raw.Object)
}

type mapCache struct {
	mu sync.Mutex
	m  map[raw.ObjectRef]raw.Object
}

// NewMapCache returns an unbounded in-memory cache.
func NewMapCache() Cache { return &mapCache{m: make(map[raw.ObjectRef]raw.Object)} }

func (c *mapCache) Get(ref raw.ObjectRef) (raw.Object, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.m[ref]
	return o, ok
}

func (c *mapCache) Put(ref raw.ObjectRef, obj raw.Object) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[ref] = obj
}

type objectLoader struct {
	data     []byte
	table    *xref.Table
	cache    Cache
	pipeline *filters.Pipeline
	maxDepth int

	mu         sync.Mutex
	objStreams map[int]*objectStream
}

type objectStream struct {
	body    []byte
	first   int64
	offsets []int64
}

func newObjectLoader(data []byte, table *xref.Table, cache Cache, maxDepth int) *objectLoader {
	if cache == nil {
		cache = NewMapCache()
	}
	return &objectLoader{
		data:       data,
		table:      table,
		cache:      cache,
		pipeline:   filters.Default(),
		maxDepth:   maxDepth,
		objStreams: make(map[int]*objectStream),
	}
}

func (o *objectLoader) Load(ctx context.Context, ref raw.ObjectRef) (raw.Object, error) {
	return o.load(ctx, ref, 0)
}

func (o *objectLoader) load(ctx context.Context, ref raw.ObjectRef, depth int) (raw.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if depth > o.maxDepth {
		return nil, fmt.Errorf("object %s: indirect depth exceeds %d", ref, o.maxDepth)
	}
	if obj, ok := o.cache.Get(ref); ok {
		return obj, nil
	}
	entry, ok := o.table.Lookup(ref.Num)
	if !ok {
		return raw.NullObj{}, nil
	}
	var obj raw.Object
	var err error
	if entry.Compressed {
		obj, err = o.loadFromObjectStream(ctx, ref, entry, depth)
	} else {
		obj, err = o.loadAtOffset(ctx, ref, entry.Offset, depth)
	}
	if err != nil {
		return nil, err
	}
	o.cache.Put(ref, obj)
	return obj, nil
}

func (o *objectLoader) loadAtOffset(ctx context.Context, ref raw.ObjectRef, offset int64, depth int) (raw.Object, error) {
	s := scanner.New(o.data, scanner.Config{MaxDepth: 256})
	if err := s.Seek(offset); err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	got, obj, err := scanner.ReadIndirect(s, func(l raw.Object) int64 {
		return o.streamLength(ctx, l, depth)
	})
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if got.Num != ref.Num {
		return nil, fmt.Errorf("object %s: found %s at offset %d", ref, got, offset)
	}
	return obj, nil
}

func (o *objectLoader) streamLength(ctx context.Context, l raw.Object, depth int) int64 {
	switch v := l.(type) {
	case raw.NumberObj:
		return v.Int()
	case raw.RefObj:
		obj, err := o.load(ctx, v.R, depth+1)
		if err != nil {
			return -1
		}
		if n, ok := obj.(raw.NumberObj); ok {
			return n.Int()
		}
	}
	return -1
}

func (o *objectLoader) loadFromObjectStream(ctx context.Context, ref raw.ObjectRef, entry xref.Entry, depth int) (raw.Object, error) {
	os, err := o.objectStream(ctx, entry.Stream, depth)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if entry.Index < 0 || entry.Index >= len(os.offsets) {
		return nil, fmt.Errorf("object %s: index %d outside object stream %d", ref, entry.Index, entry.Stream)
	}
	s := scanner.New(os.body, scanner.Config{MaxDepth: 256})
	if err := s.Seek(os.first + os.offsets[entry.Index]); err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	obj, err := scanner.ReadObject(s)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", ref, err)
	}
	return obj, nil
}

func (o *objectLoader) objectStream(ctx context.Context, num int, depth int) (*objectStream, error) {
	o.mu.Lock()
	cached, ok := o.objStreams[num]
	o.mu.Unlock()
	if ok {
		return cached, nil
	}
	entry, ok := o.table.Lookup(num)
	if !ok || entry.Compressed {
		return nil, fmt.Errorf("object stream %d not found", num)
	}
	obj, err := o.load(ctx, raw.ObjectRef{Num: num, Gen: entry.Gen}, depth+1)
	if err != nil {
		return nil, err
	}
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("object %d is not an object stream", num)
	}
	body, err := o.pipeline.DecodeStream(ctx, stm)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", num, err)
	}
	n, _ := stm.Dict.Int("N")
	first, _ := stm.Dict.Int("First")
	s := scanner.New(body, scanner.Config{})
	offsets := make([]int64, 0, n)
	for i := int64(0); i < n; i++ {
		numTok, err1 := s.Next()
		offTok, err2 := s.Next()
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("object stream %d: truncated header", num)
		}
		if numTok.Type != scanner.TokenNumber || offTok.Type != scanner.TokenNumber {
			return nil, fmt.Errorf("object stream %d: bad header", num)
		}
		offsets = append(offsets, offTok.Int)
	}
	os := &objectStream{body: body, first: first, offsets: offsets}
	o.mu.Lock()
	o.objStreams[num] = os
	o.mu.Unlock()
	return os, nil
}
