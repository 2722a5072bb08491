package scanner

import (
	"errors"
	"fmt"
	"io"

	"github.com/wudi/pdfstudio/ir/raw"
)

// ReadObject reads one complete object (dictionaries and arrays included)
// from s.
func ReadObject(s Scanner) (raw.Object, error) {
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	return ObjectFrom(s, tok)
}

// ObjectFrom builds the object that starts with tok, reading any remaining
// tokens from s.
func ObjectFrom(s Scanner, tok Token) (raw.Object, error) {
	switch tok.Type {
	case TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case TokenName:
		return raw.NameLiteral(tok.Str), nil
	case TokenString:
		return raw.StringObj{Bytes: append([]byte(nil), tok.Bytes...), Hex: tok.Hex}, nil
	case TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case TokenNull:
		return raw.NullObj{}, nil
	case TokenRef:
		return raw.Ref(tok.RefNum, tok.RefGen), nil
	case TokenArray:
		arr := raw.NewArray()
		for {
			next, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("array at %d: %w", tok.Pos, unexpectedEOF(err))
			}
			if next.Type == TokenKeyword && next.Str == "]" {
				return arr, nil
			}
			item, err := ObjectFrom(s, next)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case TokenDict:
		dict := raw.Dict()
		for {
			key, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("dictionary at %d: %w", tok.Pos, unexpectedEOF(err))
			}
			if key.Type == TokenKeyword && key.Str == ">>" {
				return dict, nil
			}
			if key.Type != TokenName {
				return nil, fmt.Errorf("dictionary at %d: key is %s, not a name", tok.Pos, key.Type)
			}
			valTok, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("dictionary at %d: %w", tok.Pos, unexpectedEOF(err))
			}
			if valTok.Type == TokenKeyword && valTok.Str == ">>" {
				// A key without a value is dropped.
				return dict, nil
			}
			val, err := ObjectFrom(s, valTok)
			if err != nil {
				return nil, err
			}
			dict.Set(key.Str, val)
		}
	}
	return nil, fmt.Errorf("unexpected %s %q at %d", tok.Type, tok.Str, tok.Pos)
}

// ReadIndirect reads "num gen obj ... endobj" at the scanner's position.
// length resolves a stream's /Length entry, which may be indirect; a
// negative result makes the scanner search for endstream instead.
func ReadIndirect(s Scanner, length func(raw.Object) int64) (raw.ObjectRef, raw.Object, error) {
	var ref raw.ObjectRef
	numTok, err := s.Next()
	if err != nil {
		return ref, nil, err
	}
	genTok, err := s.Next()
	if err != nil {
		return ref, nil, err
	}
	objTok, err := s.Next()
	if err != nil {
		return ref, nil, err
	}
	if numTok.Type != TokenNumber || genTok.Type != TokenNumber || objTok.Str != "obj" {
		return ref, nil, fmt.Errorf("no object header at %d", numTok.Pos)
	}
	ref = raw.ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}

	obj, err := ReadObject(s)
	if err != nil {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	dict, isDict := obj.(*raw.DictObj)
	if !isDict {
		return ref, obj, nil
	}
	n := int64(-1)
	if l, ok := dict.Get("Length"); ok && length != nil {
		n = length(l)
	}
	s.SetNextStreamLength(n)
	after := s.Position()
	tok, err := s.Next()
	s.SetNextStreamLength(-1)
	if err != nil && !errors.Is(err, io.EOF) {
		return ref, nil, fmt.Errorf("object %s: %w", ref, err)
	}
	if err == nil && tok.Type == TokenStream {
		return ref, raw.NewStream(dict, append([]byte(nil), tok.Bytes...)), nil
	}
	_ = s.Seek(after)
	return ref, dict, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
