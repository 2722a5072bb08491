package xref

import (
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfstudio/ir/raw"
	"github.com/wudi/pdfstudio/scanner"
)

// Repair rebuilds a table by scanning the whole file for "num gen obj"
// headers. Later definitions of the same object win, matching incremental
// updates. The last "trailer" dictionary found becomes the trailer; when
// there is none the trailer only carries /Size and the caller has to find
// the catalog itself.
func Repair(ctx context.Context, data []byte) (*Table, error) {
	s := scanner.New(data, scanner.Config{})
	t := newTable()
	var trailer *raw.DictObj
	var prev, prev2 scanner.Token

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Skip the offending byte and keep scanning.
			_ = s.Seek(s.Position() + 1)
			prev, prev2 = scanner.Token{}, scanner.Token{}
			continue
		}
		switch {
		case tok.Type == scanner.TokenKeyword && tok.Str == "obj" &&
			prev2.Type == scanner.TokenNumber && prev2.IsInt &&
			prev.Type == scanner.TokenNumber && prev.IsInt:
			t.entries[int(prev2.Int)] = Entry{Offset: prev2.Pos, Gen: int(prev.Int)}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			if obj, err := scanner.ReadObject(s); err == nil {
				if d, ok := obj.(*raw.DictObj); ok {
					trailer = d
				}
			}
		}
		prev2, prev = prev, tok
	}
	if len(t.entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if trailer == nil {
		trailer = raw.Dict()
	}
	trailer.Delete("Prev")
	trailer.Delete("XRefStm")
	max := 0
	for n := range t.entries {
		if n > max {
			max = n
		}
	}
	trailer.Set("Size", raw.NumberInt(int64(max+1)))
	t.Trailer = trailer
	t.Repaired = true
	return t, nil
}
