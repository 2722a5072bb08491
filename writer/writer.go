// Package writer serialises a raw.Document into a complete PDF file with a
// classic cross-reference table.
package writer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"

	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/ir/raw"
)

type PDFVersion string

const (
	PDF14 PDFVersion = "1.4"
	PDF17 PDFVersion = "1.7"
)

type Config struct {
	// Version overrides the document's header version when set.
	Version PDFVersion
	// Compression flate-encodes streams that carry no filter yet.
	Compression bool
	// Deterministic derives both /ID halves from the file body, so equal
	// documents produce equal bytes.
	Deterministic bool
}

type Writer interface {
	Write(ctx context.Context, doc *raw.Document, w io.Writer) error
}

func New(cfg Config) Writer { return &impl{cfg: cfg} }

type impl struct{ cfg Config }

// Bytes writes doc into memory.
func Bytes(ctx context.Context, doc *raw.Document, cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := New(cfg).Write(ctx, doc, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer) error {
	if doc.Trailer == nil {
		return fmt.Errorf("document has no trailer")
	}
	if _, ok := doc.Trailer.Get("Root"); !ok {
		return fmt.Errorf("trailer has no /Root")
	}
	version := string(w.cfg.Version)
	if version == "" {
		version = doc.Version
	}
	if version == "" {
		version = string(PDF17)
	}

	cw := &countingWriter{w: bufio.NewWriter(out)}
	fmt.Fprintf(cw, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	digest, _ := blake2b.New(16, nil)
	refs := doc.Refs()
	offsets := make(map[int]int64, len(refs))
	gens := make(map[int]int, len(refs))
	var body bytes.Buffer
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, err := w.prepare(doc.Objects[ref])
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		body.Reset()
		fmt.Fprintf(&body, "%d %d obj\n", ref.Num, ref.Gen)
		AppendObject(&body, obj)
		body.WriteString("\nendobj\n")
		offsets[ref.Num] = cw.n
		gens[ref.Num] = ref.Gen
		digest.Write(body.Bytes())
		if _, err := cw.Write(body.Bytes()); err != nil {
			return err
		}
	}

	size := doc.MaxObjectNum() + 1
	xrefAt := cw.n
	fmt.Fprintf(cw, "xref\n0 %d\n", size)
	// Free entries are chained in ascending order, ending back at 0.
	nextFree := make(map[int]int)
	last := 0
	for i := size - 1; i >= 0; i-- {
		if _, used := offsets[i]; !used {
			nextFree[i] = last
			last = i
		}
	}
	for i := 0; i < size; i++ {
		if off, used := offsets[i]; used {
			fmt.Fprintf(cw, "%010d %05d n\r\n", off, gens[i])
			continue
		}
		gen := 65535
		if i != 0 {
			gen = 1
		}
		fmt.Fprintf(cw, "%010d %05d f\r\n", nextFree[i], gen)
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(size)))
	for _, k := range doc.Trailer.Keys() {
		if k == "Size" || k == "Prev" || k == "ID" {
			continue
		}
		v, _ := doc.Trailer.Get(k)
		trailer.Set(k, v)
	}
	trailer.Set("ID", w.fileID(doc, digest.Sum(nil)))

	var tb bytes.Buffer
	AppendObject(&tb, trailer)
	fmt.Fprintf(cw, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", tb.Bytes(), xrefAt)
	return cw.w.Flush()
}

func (w *impl) fileID(doc *raw.Document, seed []byte) *raw.ArrayObj {
	first := seed
	if id, ok := doc.Trailer.Get("ID"); ok {
		if arr, ok := id.(*raw.ArrayObj); ok && arr.Len() == 2 {
			if s, ok := arr.Items[0].(raw.StringObj); ok && len(s.Bytes) > 0 {
				first = s.Bytes
			}
		}
	}
	second := seed
	if !w.cfg.Deterministic {
		second = make([]byte, 16)
		if _, err := rand.Read(second); err != nil {
			second = seed
		}
	}
	return raw.NewArray(raw.StringObj{Bytes: first, Hex: true}, raw.StringObj{Bytes: second, Hex: true})
}

// prepare fixes stream lengths and applies compression without touching
// the caller's objects.
func (w *impl) prepare(obj raw.Object) (raw.Object, error) {
	stm, ok := obj.(*raw.StreamObj)
	if !ok {
		return obj, nil
	}
	dict := raw.Clone(stm.Dict).(*raw.DictObj)
	data := stm.Data
	if _, filtered := dict.Get("Filter"); !filtered && w.cfg.Compression && len(data) > 64 {
		compressed, err := filters.Flate(data)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(data) {
			data = compressed
			dict.Set("Filter", raw.NameLiteral("FlateDecode"))
		}
	}
	dict.Set("Length", raw.NumberInt(int64(len(data))))
	return &raw.StreamObj{Dict: dict, Data: data}, nil
}
