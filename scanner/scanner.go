// Package scanner tokenises PDF file bodies and content streams.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDict        TokenType = iota // '<<'
	TokenArray                        // '['
	TokenName                         // '/Name'
	TokenString                       // literal or hex string
	TokenNumber                       // numeric value
	TokenBoolean                      // true/false
	TokenNull                         // null
	TokenRef                          // indirect ref '5 0 R'
	TokenStream                       // stream payload
	TokenInlineImage                  // inline image data between ID and EI
	TokenKeyword                      // obj, endobj, '>>', ']', operators
)

func (t TokenType) String() string {
	switch t {
	case TokenDict:
		return "dict"
	case TokenArray:
		return "array"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenBoolean:
		return "boolean"
	case TokenNull:
		return "null"
	case TokenRef:
		return "ref"
	case TokenStream:
		return "stream"
	case TokenInlineImage:
		return "inline-image"
	default:
		return "keyword"
	}
}

type Token struct {
	Type   TokenType
	Str    string // names and keywords
	Bytes  []byte // strings, stream and inline image payloads
	Int    int64
	Float  float64
	IsInt  bool
	Bool   bool
	RefNum int
	RefGen int
	Hex    bool
	Pos    int64
}

// Number returns the numeric value of a TokenNumber.
func (t Token) Number() float64 {
	if t.IsInt {
		return float64(t.Int)
	}
	return t.Float
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	Seek(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxDepth        int
	// ContentStream disables indirect references ("0 1 RG" is a colour
	// operator, not a reference) and enables inline image payloads.
	ContentStream bool
}

var ErrUnterminated = errors.New("unterminated token")

type pdfScanner struct {
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	depth         int
}

// New returns a scanner over data. The slice is not copied.
func New(data []byte, cfg Config) Scanner {
	return &pdfScanner{data: data, cfg: cfg, nextStreamLen: -1}
}

// ReadAll drains r from offset 0. io.ReaderAt has no length, so it reads in
// growing windows until a short read.
func ReadAll(r io.ReaderAt) ([]byte, error) {
	var out []byte
	buf := make([]byte, 64*1024)
	var off int64
	for {
		n, err := r.ReadAt(buf, off)
		out = append(out, buf[:n]...)
		off += int64(n)
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek %d out of range", offset)
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *pdfScanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return s.emit(Token{Type: TokenDict, Str: "<<", Pos: start})
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return s.emit(Token{Type: TokenKeyword, Str: ">>", Pos: start})
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return s.emit(Token{Type: TokenArray, Str: "[", Pos: start})
	case ']':
		s.pos++
		return s.emit(Token{Type: TokenKeyword, Str: "]", Pos: start})
	case '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	return s.scanKeyword()
}

func (s *pdfScanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *pdfScanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				break
			}
			esc := s.data[s.pos]
			s.pos++
			switch {
			case esc == '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
			}
		}
		buf.WriteByte(c)
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, fmt.Errorf("literal string at %d too long", start)
		}
	}
	return Token{}, fmt.Errorf("literal string at %d: %w", start, ErrUnterminated)
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++
	var nibbles []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if len(nibbles)%2 == 1 {
				nibbles = append(nibbles, '0')
			}
			out := make([]byte, len(nibbles)/2)
			for i := range out {
				out[i] = fromHex(nibbles[2*i])<<4 | fromHex(nibbles[2*i+1])
			}
			return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		if !isHex(c) {
			return Token{}, fmt.Errorf("hex string at %d: invalid digit %q", start, c)
		}
		nibbles = append(nibbles, c)
	}
	return Token{}, fmt.Errorf("hex string at %d: %w", start, ErrUnterminated)
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	first := s.scanNumberString()
	if first == "" {
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	if !s.cfg.ContentStream && isUnsigned(first) {
		save := s.pos
		s.skipWSAndComments()
		second := s.scanNumberString()
		if second != "" && isUnsigned(second) {
			s.skipWSAndComments()
			if s.peek(0) == 'R' && (s.pos+1 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+1])) {
				s.pos++
				num, _ := strconv.Atoi(first)
				gen, _ := strconv.Atoi(second)
				return Token{Type: TokenRef, RefNum: num, RefGen: gen, Pos: start}, nil
			}
		}
		s.pos = save
	}
	if i, err := strconv.ParseInt(first, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(normaliseReal(first), 64)
	if err != nil {
		// Malformed reals such as "--5" or "1.2.3" read as zero.
		f = 0
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c >= '0' && c <= '9' {
			seenDigit = true
		} else if c != '+' && c != '-' && c != '.' {
			break
		}
		s.pos++
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		if !s.cfg.ContentStream {
			return s.scanStream(start)
		}
	case "ID":
		if s.cfg.ContentStream {
			return s.scanInlineImage(start)
		}
	}
	return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
}

// scanStream reads the payload following the stream keyword. A length set
// through SetNextStreamLength is trusted when endstream follows it;
// otherwise the payload runs to the next endstream marker.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	if s.peek(0) == '\r' {
		s.pos++
	}
	if s.peek(0) == '\n' {
		s.pos++
	}
	dataStart := s.pos
	declared := s.nextStreamLen
	s.nextStreamLen = -1
	needle := []byte("endstream")
	if declared >= 0 && dataStart+declared <= int64(len(s.data)) {
		end := dataStart + declared
		after := end
		for after < int64(len(s.data)) && isWhitespace(s.data[after]) {
			after++
		}
		if bytes.HasPrefix(s.data[after:], needle) {
			s.pos = after + int64(len(needle))
			return Token{Type: TokenStream, Bytes: s.data[dataStart:end], Pos: start}, nil
		}
	}
	idx := bytes.Index(s.data[dataStart:], needle)
	if idx < 0 {
		return Token{}, fmt.Errorf("stream at %d: %w", start, ErrUnterminated)
	}
	end := dataStart + int64(idx)
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	s.pos = dataStart + int64(idx+len(needle))
	return Token{Type: TokenStream, Bytes: s.data[dataStart:end], Pos: start}, nil
}

// scanInlineImage consumes the bytes after ID up to an EI surrounded by
// whitespace.
func (s *pdfScanner) scanInlineImage(start int64) (Token, error) {
	if s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	dataStart := s.pos
	for i := dataStart; i+1 < int64(len(s.data)); i++ {
		if s.data[i] != 'E' || s.data[i+1] != 'I' {
			continue
		}
		if i > dataStart && !isWhitespace(s.data[i-1]) {
			continue
		}
		if i+2 < int64(len(s.data)) && !isDelimiter(s.data[i+2]) {
			continue
		}
		end := i
		if end > dataStart {
			end--
		}
		s.pos = i + 2
		return Token{Type: TokenInlineImage, Bytes: s.data[dataStart:end], Pos: start}, nil
	}
	return Token{}, fmt.Errorf("inline image at %d: %w", start, ErrUnterminated)
}

func (s *pdfScanner) emit(tok Token) (Token, error) {
	switch tok.Type {
	case TokenDict, TokenArray:
		s.depth++
		if s.cfg.MaxDepth > 0 && s.depth > s.cfg.MaxDepth {
			return Token{}, fmt.Errorf("nesting deeper than %d at %d", s.cfg.MaxDepth, tok.Pos)
		}
	case TokenKeyword:
		if s.depth > 0 {
			s.depth--
		}
	}
	return tok, nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isUnsigned(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// normaliseReal drops the doubled signs some producers emit.
func normaliseReal(s string) string {
	for len(s) > 1 && (s[0] == '-' || s[0] == '+') && (s[1] == '-' || s[1] == '+') {
		s = s[1:]
	}
	return s
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
