// Package filters decodes and encodes PDF stream filters.
package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	stdascii85 "encoding/ascii85"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstudio/ir/raw"
)

type Decoder interface {
	Name() string
	Decode(ctx context.Context, input []byte, params *raw.DictObj) ([]byte, error)
}

var ErrUnknownFilter = errors.New("unknown filter")

type Limits struct {
	MaxDecompressedSize int64
}

type Pipeline struct {
	decoders map[string]Decoder
	limits   Limits
}

// NewPipeline constructs a pipeline with provided decoders and limits.
func NewPipeline(decoders []Decoder, limits Limits) *Pipeline {
	p := &Pipeline{decoders: make(map[string]Decoder), limits: limits}
	for _, d := range decoders {
		p.decoders[d.Name()] = d
	}
	return p
}

// Default returns a pipeline with every decoder this package implements.
func Default() *Pipeline {
	return NewPipeline([]Decoder{NewFlateDecoder(), NewASCIIHexDecoder(), NewASCII85Decoder()}, Limits{MaxDecompressedSize: 256 << 20})
}

func (p *Pipeline) Decode(ctx context.Context, input []byte, filterNames []string, params []*raw.DictObj) ([]byte, error) {
	data := input
	for i, name := range filterNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dec, ok := p.decoders[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
		}
		var param *raw.DictObj
		if i < len(params) {
			param = params[i]
		}
		out, err := dec.Decode(ctx, data, param)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if p.limits.MaxDecompressedSize > 0 && int64(len(out)) > p.limits.MaxDecompressedSize {
			return nil, fmt.Errorf("%s: decoded size exceeds %d bytes", name, p.limits.MaxDecompressedSize)
		}
		data = out
	}
	return data, nil
}

// DecodeStream decodes s according to its /Filter and /DecodeParms.
func (p *Pipeline) DecodeStream(ctx context.Context, s *raw.StreamObj) ([]byte, error) {
	names, params := ExtractFilters(s.Dict)
	if len(names) == 0 {
		return s.Data, nil
	}
	return p.Decode(ctx, s.Data, names, params)
}

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }
func NewFlateDecoder() Decoder    { return flateDecoder{} }

// Decode inflates zlib data, falling back to a bare deflate stream, then
// undoes any predictor. Truncated streams keep what was inflated.
func (flateDecoder) Decode(ctx context.Context, in []byte, params *raw.DictObj) ([]byte, error) {
	var out bytes.Buffer
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err == nil {
		_, err = io.Copy(&out, zr)
		zr.Close()
	} else {
		fr := flate.NewReader(bytes.NewReader(in))
		_, err = io.Copy(&out, fr)
		fr.Close()
	}
	if err != nil && out.Len() == 0 {
		return nil, err
	}
	return applyPredictor(out.Bytes(), params)
}

// Flate compresses data with zlib framing, as FlateDecode expects.
func Flate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }
func (ascii85Decoder) Decode(_ context.Context, in []byte, _ *raw.DictObj) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if i := bytes.Index(trimmed, []byte("~>")); i >= 0 {
		trimmed = trimmed[:i]
	}
	out := make([]byte, 4*len(trimmed)+4)
	n, _, err := stdascii85.Decode(out, trimmed, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
func NewASCII85Decoder() Decoder { return ascii85Decoder{} }

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }
func (asciiHexDecoder) Decode(_ context.Context, in []byte, _ *raw.DictObj) ([]byte, error) {
	digits := make([]byte, 0, len(in))
	for _, c := range in {
		if c == '>' {
			break
		}
		switch c {
		case ' ', '\t', '\r', '\n', '\f', 0:
			continue
		}
		digits = append(digits, c)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	result := make([]byte, hex.DecodedLen(len(digits)))
	n, err := hex.Decode(result, digits)
	if err != nil {
		return nil, err
	}
	return result[:n], nil
}
func NewASCIIHexDecoder() Decoder { return asciiHexDecoder{} }

// ExtractFilters reads Filter and DecodeParms entries from a stream dictionary.
func ExtractFilters(dict *raw.DictObj) ([]string, []*raw.DictObj) {
	var names []string
	var params []*raw.DictObj

	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil
	}
	switch f := filterObj.(type) {
	case raw.NameObj:
		names = append(names, f.Val)
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Val)
			}
		}
	}
	if pObj, ok := dict.Get("DecodeParms"); ok {
		switch p := pObj.(type) {
		case *raw.DictObj:
			params = append(params, p)
		case *raw.ArrayObj:
			for _, item := range p.Items {
				d, _ := item.(*raw.DictObj)
				params = append(params, d)
			}
		}
	}
	return names, params
}
