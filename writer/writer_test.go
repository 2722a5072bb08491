package writer_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/parser"
	"github.com/wudi/pdfstudio/writer"
)

func sampleDocument() *raw.Document {
	doc := raw.NewDocument()
	content := raw.NewStream(nil, bytes.Repeat([]byte("0 0 m 10 10 l S\n"), 20))
	contentRef := doc.Add(content)
	pages := raw.Dict()
	pagesRef := doc.Add(pages)
	page := raw.Dict()
	page.Set("Type", raw.NameLiteral("Page"))
	page.Set("Parent", pagesRef)
	page.Set("MediaBox", raw.Rect(0, 0, 595.28, 841.89))
	page.Set("Contents", contentRef)
	pageRef := doc.Add(page)
	pages.Set("Type", raw.NameLiteral("Pages"))
	pages.Set("Kids", raw.NewArray(pageRef))
	pages.Set("Count", raw.NumberInt(1))
	cat := raw.Dict()
	cat.Set("Type", raw.NameLiteral("Catalog"))
	cat.Set("Pages", pagesRef)
	doc.Trailer.Set("Root", doc.Add(cat))
	info := raw.Dict()
	info.Set("Title", raw.Str([]byte("Tab\t(paren) \\ é")))
	doc.Trailer.Set("Info", doc.Add(info))
	return doc
}

func TestWriteParseRoundTrip(t *testing.T) {
	for _, cfg := range []writer.Config{{}, {Compression: true}} {
		doc := sampleDocument()
		out, err := writer.Bytes(context.Background(), doc, cfg)
		if err != nil {
			t.Fatalf("write: %v", err)
		}
		back, err := parser.NewDocumentParser(parser.Config{}).ParseBytes(context.Background(), out)
		if err != nil {
			t.Fatalf("parse written file: %v", err)
		}
		if len(back.Objects) != len(doc.Objects) {
			t.Fatalf("objects: wrote %d, read %d", len(doc.Objects), len(back.Objects))
		}
		info, _ := back.ResolveDict(mustGet(t, back.Trailer, "Info"))
		title, _ := info.Get("Title")
		if got := string(title.(raw.StringObj).Bytes); got != "Tab\t(paren) \\ é" {
			t.Fatalf("title = %q", got)
		}
		stm := back.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj)
		_, filtered := stm.Dict.Get("Filter")
		if filtered != cfg.Compression {
			t.Fatalf("compression %v but filter present = %v", cfg.Compression, filtered)
		}
		// The caller's stream is never rewritten.
		if _, ok := doc.Objects[raw.ObjectRef{Num: 1}].(*raw.StreamObj).Dict.Get("Filter"); ok {
			t.Fatalf("writer mutated the input stream")
		}
	}
}

func TestWriteDeterministic(t *testing.T) {
	cfg := writer.Config{Deterministic: true}
	a, err := writer.Bytes(context.Background(), sampleDocument(), cfg)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	b, _ := writer.Bytes(context.Background(), sampleDocument(), cfg)
	if !bytes.Equal(a, b) {
		t.Fatalf("deterministic output differs")
	}
	c, _ := writer.Bytes(context.Background(), sampleDocument(), writer.Config{})
	if bytes.Equal(a, c) {
		t.Fatalf("random ID expected without Deterministic")
	}
}

func TestWriteFreeEntriesForGaps(t *testing.T) {
	doc := sampleDocument()
	delete(doc.Objects, raw.ObjectRef{Num: 1})
	doc.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj).Delete("Contents")
	out, err := writer.Bytes(context.Background(), doc, writer.Config{Version: writer.PDF14})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-1.4\n")) {
		t.Fatalf("header = %q", out[:9])
	}
	if !bytes.Contains(out, []byte("0000000000 00001 f\r\n")) {
		t.Fatalf("free entry for the removed object missing:\n%s", out)
	}
}

func TestWriteRequiresRoot(t *testing.T) {
	if _, err := writer.Bytes(context.Background(), raw.NewDocument(), writer.Config{}); err == nil {
		t.Fatalf("expected missing root error")
	}
}

func TestFormatReal(t *testing.T) {
	tests := map[float64]string{1.5: "1.5", 841.89: "841.89", -0.000001: "0", 2: "2", 1.0 / 3: "0.33333"}
	for in, want := range tests {
		if got := writer.FormatReal(in); got != want {
			t.Errorf("FormatReal(%v) = %q, want %q", in, got, want)
		}
	}
}

func mustGet(t *testing.T, d *raw.DictObj, key string) raw.Object {
	t.Helper()
	v, ok := d.Get(key)
	if !ok {
		t.Fatalf("missing /%s", key)
	}
	return v
}
