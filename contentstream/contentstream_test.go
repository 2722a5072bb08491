package contentstream

import (
	"strings"
	"testing"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/ir/raw"
)

func TestParseOperations(t *testing.T) {
	src := "q 1 0 0 1 50 50 cm BT /F1 12 Tf [(A) -120 (B)] TJ ET Q\n0 0 1 RG /P <</MCID 3>> BDC EMC"
	ops, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var names []string
	for _, op := range ops {
		names = append(names, op.Operator)
	}
	if got := strings.Join(names, " "); got != "q cm BT Tf TJ ET Q RG BDC EMC" {
		t.Fatalf("operators = %s", got)
	}
	if f, ok := Floats(ops[1], 6); !ok || f[4] != 50 {
		t.Fatalf("cm operands = %v", ops[1].Operands)
	}
	arr, ok := ops[4].Operands[0].(*raw.ArrayObj)
	if !ok || arr.Len() != 3 {
		t.Fatalf("TJ operand = %#v", ops[4].Operands)
	}
	if _, ok := ops[8].Operands[1].(*raw.DictObj); !ok {
		t.Fatalf("BDC properties = %#v", ops[8].Operands)
	}
}

func TestParseInlineImage(t *testing.T) {
	ops, err := Parse([]byte("q BI /W 2 /H 1 /BPC 8 /CS /G ID \x10\x20\nEI Q"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != 3 || ops[1].Operator != "BI" {
		t.Fatalf("ops = %+v", ops)
	}
	if string(ops[1].InlineData) != "\x10\x20" {
		t.Fatalf("inline data = %q", ops[1].InlineData)
	}
	again, err := Parse(Serialize(ops))
	if err != nil || len(again) != 3 || string(again[1].InlineData) != "\x10\x20" {
		t.Fatalf("reparse = %+v, %v", again, err)
	}
}

func TestBuilderSerializeRoundTrip(t *testing.T) {
	b := NewBuilder().
		SaveState().
		SetFillRGB(RGB{1, 1, 1}).
		Rectangle(10, 20, 30.5, 40).
		Fill().
		BeginText().
		SetFont("F1", 12).
		MoveText(72, 700).
		ShowText([]byte("Hi (there)")).
		EndText().
		RestoreState()
	ops, err := Parse(b.Bytes())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(ops) != len(b.Operations()) {
		t.Fatalf("got %d ops, built %d", len(ops), len(b.Operations()))
	}
	s, ok := ops[7].Operands[0].(raw.StringObj)
	if !ok || string(s.Bytes) != "Hi (there)" {
		t.Fatalf("Tj operand = %#v", ops[7].Operands)
	}
	if f, _ := Floats(ops[2], 4); f[2] != 30.5 {
		t.Fatalf("re operands = %v", f)
	}
}

func TestEllipseClosesOnStart(t *testing.T) {
	ops := NewBuilder().Ellipse(50, 50, 20, 10).Operations()
	if len(ops) != 6 || ops[0].Operator != "m" || ops[5].Operator != "h" {
		t.Fatalf("ops = %+v", ops)
	}
	start, _ := Floats(ops[0], 2)
	end, _ := Floats(ops[4], 6)
	if start[0] != end[4] || start[1] != end[5] {
		t.Fatalf("ellipse does not close: %v vs %v", start, end[4:])
	}
}

func TestTextStateRenderMatrix(t *testing.T) {
	ts := NewTextState()
	ts.FontSize = 10
	ts.BeginText()
	ts.MoveLine(100, 700)
	ts.Advance(25)
	gs := NewGraphicsState()
	gs.Concat(coords.Scale(2, 2))
	m := ts.RenderMatrix(gs.CTM)
	if m[0] != 20 || m[4] != 250 || m[5] != 1400 {
		t.Fatalf("render matrix = %v", m)
	}
	gs.Save()
	gs.Concat(coords.Translate(5, 5))
	if err := gs.Restore(); err != nil || gs.CTM != coords.Scale(2, 2) {
		t.Fatalf("restore = %v, %v", gs.CTM, err)
	}
	if err := gs.Restore(); err == nil {
		t.Fatalf("expected empty stack error")
	}
}
