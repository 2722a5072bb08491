package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/recovery"
)

type pdfBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int
}

func newPDFBuilder(version string) *pdfBuilder {
	b := &pdfBuilder{offsets: make(map[int]int)}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n", version)
	return b
}

func (b *pdfBuilder) obj(num int, body string) {
	b.offsets[num] = b.buf.Len()
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

func (b *pdfBuilder) finish(trailer string) []byte {
	max := 0
	for n := range b.offsets {
		if n > max {
			max = n
		}
	}
	xrefAt := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n0000000000 65535 f \n", max+1)
	for i := 1; i <= max; i++ {
		if off, ok := b.offsets[i]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
		} else {
			b.buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&b.buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xrefAt)
	return b.buf.Bytes()
}

func buildClassicPDF() []byte {
	b := newPDFBuilder("1.4")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.obj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.obj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.obj(4, "<< /Length 5 0 R >>\nstream\nBT /F1 12 Tf (Hello) Tj ET\nendstream")
	b.obj(5, "26")
	return b.finish("<< /Size 6 /Root 1 0 R >>")
}

func TestDocumentParserParsesClassicXRef(t *testing.T) {
	doc, err := NewDocumentParser(Config{}).Parse(context.Background(), bytes.NewReader(buildClassicPDF()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Version != "1.4" {
		t.Fatalf("version = %q", doc.Version)
	}
	if len(doc.Objects) != 5 {
		t.Fatalf("objects = %d", len(doc.Objects))
	}
	cat, err := doc.Catalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if typ, _ := cat.Name("Type"); typ != "Catalog" {
		t.Fatalf("catalog type = %q", typ)
	}
	stm, ok := doc.Objects[raw.ObjectRef{Num: 4}].(*raw.StreamObj)
	if !ok {
		t.Fatalf("object 4 is %T", doc.Objects[raw.ObjectRef{Num: 4}])
	}
	if string(stm.Data) != "BT /F1 12 Tf (Hello) Tj ET" {
		t.Fatalf("stream data = %q", stm.Data)
	}
}

func TestDocumentParserReadsObjectStreams(t *testing.T) {
	b := newPDFBuilder("1.5")
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	header := "2 0 3 42 "
	objs := "<< /Type /Pages /Kids [3 0 R] /Count 1 >> << /Type /Page /Parent 2 0 R /MediaBox [0 0 10 10] >>"
	body, _ := filters.Flate([]byte(header + objs))
	objStmAt := b.buf.Len()
	fmt.Fprintf(&b.buf, "4 0 obj\n<< /Type /ObjStm /N 2 /First %d /Filter /FlateDecode /Length %d >>\nstream\n", len(header), len(body))
	b.buf.Write(body)
	b.buf.WriteString("\nendstream\nendobj\n")

	rows := []byte{
		0, 0, 0, 0,
		1, 0, byte(b.offsets[1]), 0,
		2, 0, 4, 0,
		2, 0, 4, 1,
		1, 0, byte(objStmAt), 0,
	}
	xrefBody, _ := filters.Flate(rows)
	xrefAt := b.buf.Len()
	fmt.Fprintf(&b.buf, "5 0 obj\n<< /Type /XRef /Size 5 /W [1 2 1] /Root 1 0 R /Filter /FlateDecode /Length %d >>\nstream\n", len(xrefBody))
	b.buf.Write(xrefBody)
	fmt.Fprintf(&b.buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefAt)

	doc, err := NewDocumentParser(Config{}).ParseBytes(context.Background(), b.buf.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	page, ok := doc.Objects[raw.ObjectRef{Num: 3}].(*raw.DictObj)
	if !ok {
		t.Fatalf("object 3 = %T", doc.Objects[raw.ObjectRef{Num: 3}])
	}
	if typ, _ := page.Name("Type"); typ != "Page" {
		t.Fatalf("page type = %q", typ)
	}
	if _, ok := doc.Objects[raw.ObjectRef{Num: 4}]; ok {
		t.Fatalf("object stream container should be dropped")
	}
	if _, ok := doc.Trailer.Get("W"); ok {
		t.Fatalf("xref stream keys leaked into trailer")
	}
}

func TestDocumentParserRecovery(t *testing.T) {
	data := buildClassicPDF()
	// Break object 3's dictionary so the loader fails on it.
	broken := bytes.Replace(data, []byte("/Contents 4 0 R >>"), []byte("/Contents 4 0 R   "), 1)

	if _, err := NewDocumentParser(Config{Recovery: recovery.NewStrictStrategy()}).ParseBytes(context.Background(), broken); err == nil {
		t.Fatalf("strict parse should fail")
	}
	rec := recovery.NewLenientStrategy(nil)
	doc, err := NewDocumentParser(Config{Recovery: rec}).ParseBytes(context.Background(), broken)
	if err != nil {
		t.Fatalf("lenient parse: %v", err)
	}
	if len(rec.Errors) == 0 {
		t.Fatalf("lenient strategy recorded nothing")
	}
	if _, err := doc.Catalog(); err != nil {
		t.Fatalf("catalog lost: %v", err)
	}
}

func TestDocumentParserRepairsWithoutTrailer(t *testing.T) {
	data := []byte("%PDF-1.3\n1 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n2 0 obj\n<< /Type /Catalog /Pages 1 0 R >>\nendobj\n")
	doc, err := NewDocumentParser(Config{Recovery: recovery.NewLenientStrategy(nil)}).ParseBytes(context.Background(), data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r, _ := doc.Trailer.Ref("Root"); r.Num != 2 {
		t.Fatalf("root = %v", r)
	}
}

func TestDocumentParserRejectsEncrypted(t *testing.T) {
	b := newPDFBuilder("1.7")
	b.obj(1, "<< /Type /Catalog >>")
	b.obj(2, "<< /Filter /Standard /V 2 >>")
	_, err := NewDocumentParser(Config{}).ParseBytes(context.Background(), b.finish("<< /Size 3 /Root 1 0 R /Encrypt 2 0 R >>"))
	if !errors.Is(err, ErrEncrypted) {
		t.Fatalf("err = %v", err)
	}
}

func TestDocumentParserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDocumentParser(Config{}).ParseBytes(ctx, buildClassicPDF()); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
