// Package contentstream parses, serialises and builds page content streams.
package contentstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstudio/coords"
	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/scanner"
	"github.com/wudi/pdfstudio/writer"
)

// Operation is one operator with its operands, in stream order. Inline
// images keep their parameters in Operands and their bytes in InlineData.
type Operation struct {
	Operator   string
	Operands   []raw.Object
	InlineData []byte
}

// Parse splits a decoded content stream into operations. Trailing operands
// without an operator are dropped.
func Parse(data []byte) ([]Operation, error) {
	s := scanner.New(data, scanner.Config{ContentStream: true, MaxDepth: 64})
	var ops []Operation
	var operands []raw.Object
	for {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			return ops, nil
		}
		if err != nil {
			return ops, fmt.Errorf("content stream: %w", err)
		}
		switch tok.Type {
		case scanner.TokenKeyword:
			if tok.Str == "BI" {
				op, err := parseInlineImage(s)
				if err != nil {
					return ops, err
				}
				ops = append(ops, op)
				operands = nil
				continue
			}
			ops = append(ops, Operation{Operator: tok.Str, Operands: operands})
			operands = nil
		default:
			obj, err := scanner.ObjectFrom(s, tok)
			if err != nil {
				return ops, fmt.Errorf("content stream operand: %w", err)
			}
			operands = append(operands, obj)
		}
	}
}

func parseInlineImage(s scanner.Scanner) (Operation, error) {
	params := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return Operation{}, fmt.Errorf("inline image: %w", err)
		}
		if tok.Type == scanner.TokenInlineImage {
			return Operation{Operator: "BI", Operands: []raw.Object{params}, InlineData: tok.Bytes}, nil
		}
		if tok.Type != scanner.TokenName {
			return Operation{}, fmt.Errorf("inline image: unexpected %s", tok.Type)
		}
		val, err := scanner.ReadObject(s)
		if err != nil {
			return Operation{}, fmt.Errorf("inline image: %w", err)
		}
		params.Set(tok.Str, val)
	}
}

// Serialize writes ops back into content stream syntax, one per line.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if op.Operator == "BI" && len(op.Operands) == 1 {
			buf.WriteString("BI")
			if params, ok := op.Operands[0].(*raw.DictObj); ok {
				for _, k := range params.Keys() {
					v, _ := params.Get(k)
					buf.WriteByte(' ')
					writer.AppendObject(&buf, raw.NameLiteral(k))
					buf.WriteByte(' ')
					writer.AppendObject(&buf, v)
				}
			}
			buf.WriteString(" ID ")
			buf.Write(op.InlineData)
			buf.WriteString("\nEI\n")
			continue
		}
		for _, o := range op.Operands {
			writer.AppendObject(&buf, o)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// GraphicsState is the subset of the PDF graphics state that positioning
// needs.
type GraphicsState struct {
	CTM   coords.Matrix
	stack []coords.Matrix
}

func NewGraphicsState() *GraphicsState { return &GraphicsState{CTM: coords.Identity()} }

func (gs *GraphicsState) Save() { gs.stack = append(gs.stack, gs.CTM) }

func (gs *GraphicsState) Restore() error {
	n := len(gs.stack)
	if n == 0 {
		return errors.New("state stack empty")
	}
	gs.CTM = gs.stack[n-1]
	gs.stack = gs.stack[:n-1]
	return nil
}

// Concat applies a cm operator.
func (gs *GraphicsState) Concat(m coords.Matrix) { gs.CTM = m.Multiply(gs.CTM) }

type TextState struct {
	FontName       string
	FontSize       float64
	CharSpacing    float64
	WordSpacing    float64
	HScale         float64 // percent, 100 by default
	Leading        float64
	Rise           float64
	RenderMode     TextRenderMode
	TextMatrix     coords.Matrix
	TextLineMatrix coords.Matrix
}

func NewTextState() *TextState {
	return &TextState{HScale: 100, TextMatrix: coords.Identity(), TextLineMatrix: coords.Identity()}
}

// BeginText resets the text matrices for a BT operator.
func (ts *TextState) BeginText() {
	ts.TextMatrix = coords.Identity()
	ts.TextLineMatrix = coords.Identity()
}

// MoveLine applies Td.
func (ts *TextState) MoveLine(tx, ty float64) {
	ts.TextLineMatrix = coords.Translate(tx, ty).Multiply(ts.TextLineMatrix)
	ts.TextMatrix = ts.TextLineMatrix
}

// NextLine applies T*.
func (ts *TextState) NextLine() { ts.MoveLine(0, -ts.Leading) }

func (ts *TextState) SetMatrix(m coords.Matrix) {
	ts.TextLineMatrix = m
	ts.TextMatrix = m
}

// Advance moves the text matrix by an unscaled horizontal displacement in
// text space units.
func (ts *TextState) Advance(tx float64) {
	ts.TextMatrix = coords.Translate(tx, 0).Multiply(ts.TextMatrix)
}

// RenderMatrix is the text rendering matrix: font size, horizontal scale
// and rise applied to Tm × CTM.
func (ts *TextState) RenderMatrix(ctm coords.Matrix) coords.Matrix {
	params := coords.Matrix{ts.FontSize * ts.HScale / 100, 0, 0, ts.FontSize, 0, ts.Rise}
	return params.Multiply(ts.TextMatrix).Multiply(ctm)
}

// Floats returns the numeric operands of op. ok is false when any operand
// is not a number or the count differs from n.
func Floats(op Operation, n int) ([]float64, bool) {
	if len(op.Operands) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range op.Operands {
		f, ok := raw.ToFloat(o)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
