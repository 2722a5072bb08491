package xref

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/wudi/pdfstudio/filters"
	"github.com/wudi/pdfstudio/recovery"
)

func buildSimplePDF() ([]byte, map[int]int64) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	offsets := make(map[int]int64)

	offsets[1] = int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= 2; i++ {
		fmt.Fprintf(buf, "%010d 00000 n \n", offsets[i])
	}
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	fmt.Fprintf(buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), offsets
}

func TestResolverParsesXRefTable(t *testing.T) {
	pdf, offsets := buildSimplePDF()
	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), pdf)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for obj, off := range offsets {
		e, ok := table.Lookup(obj)
		if !ok {
			t.Fatalf("missing object %d", obj)
		}
		if e.Offset != off || e.Gen != 0 {
			t.Fatalf("object %d: expected (%d,0), got %+v", obj, off, e)
		}
	}
	if _, ok := table.Lookup(0); ok {
		t.Fatalf("free entry 0 should not be listed")
	}
	if r, ok := table.Trailer.Ref("Root"); !ok || r.Num != 1 {
		t.Fatalf("trailer root = %v", r)
	}
}

func TestResolverFollowsPrev(t *testing.T) {
	pdf, _ := buildSimplePDF()
	buf := bytes.NewBuffer(append([]byte(nil), pdf...))
	firstXRef := bytes.LastIndex(pdf, []byte("\nxref")) + 1

	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 /Updated true >>\nendobj\n")
	off3 := buf.Len()
	buf.WriteString("3 0 obj\n(new)\nendobj\n")
	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "xref\n2 2\n%010d 00000 n \n%010d 00000 n \n", off2, off3)
	fmt.Fprintf(buf, "trailer\n<< /Size 4 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", firstXRef, xrefOffset)

	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if table.Sections != 2 {
		t.Fatalf("sections = %d", table.Sections)
	}
	if e, _ := table.Lookup(2); e.Offset != int64(off2) {
		t.Fatalf("object 2 should come from the update, got %+v", e)
	}
	if _, ok := table.Lookup(1); !ok {
		t.Fatalf("object 1 from the base section missing")
	}
	if _, ok := table.Lookup(3); !ok {
		t.Fatalf("object 3 missing")
	}
}

func TestResolverParsesXRefStream(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	// object 2 is compressed inside object stream 5, index 0
	rows := []byte{
		0, 0, 0, 0xff,
		1, 0, byte(off1), 0,
		2, 0, 5, 0,
	}
	body, err := filters.Flate(rows)
	if err != nil {
		t.Fatalf("flate: %v", err)
	}
	xrefOffset := buf.Len()
	fmt.Fprintf(buf, "6 0 obj\n<< /Type /XRef /Size 3 /W [1 2 1] /Root 1 0 R /Filter /FlateDecode /Length %d >>\nstream\n", len(body))
	buf.Write(body)
	fmt.Fprintf(buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	table, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if e, ok := table.Lookup(1); !ok || e.Offset != int64(off1) {
		t.Fatalf("object 1 = %+v", e)
	}
	if e, ok := table.Lookup(2); !ok || !e.Compressed || e.Stream != 5 || e.Index != 0 {
		t.Fatalf("object 2 = %+v", e)
	}
	if typ, _ := table.Trailer.Name("Type"); typ != "XRef" {
		t.Fatalf("trailer should be the stream dictionary")
	}
}

func TestResolverRepairsMissingXRef(t *testing.T) {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Count 0 >>\nendobj\n")
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n%%EOF\n")

	if _, err := NewResolver(ResolverConfig{}).Resolve(context.Background(), buf.Bytes()); !errors.Is(err, ErrNoStartXRef) {
		t.Fatalf("expected ErrNoStartXRef, got %v", err)
	}

	rec := recovery.NewLenientStrategy(nil)
	table, err := NewResolver(ResolverConfig{Recovery: rec}).Resolve(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if !table.Repaired || len(rec.Errors) != 1 {
		t.Fatalf("repaired=%v errors=%v", table.Repaired, rec.Errors)
	}
	if e, _ := table.Lookup(1); e.Offset != int64(off1) {
		t.Fatalf("object 1 at %d, want %d", e.Offset, off1)
	}
	if e, _ := table.Lookup(2); e.Offset != int64(off2) {
		t.Fatalf("object 2 at %d, want %d", e.Offset, off2)
	}
	if size, _ := table.Trailer.Int("Size"); size != 3 {
		t.Fatalf("size = %d", size)
	}
}

func TestRepairSkipsStreamBodies(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Length 12 >>\nstream\n9 0 obj fake\nendstream\nendobj\n")
	table, err := Repair(context.Background(), data)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if _, ok := table.Lookup(9); ok {
		t.Fatalf("object header inside a stream was indexed")
	}
	if got := table.Objects(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("objects = %v", got)
	}
}
