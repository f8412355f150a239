package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/wudi/pdftools/recovery"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect ref '5 0 R'
	TokenStream                   // stream payload following the 'stream' keyword
	TokenKeyword                  // other keywords (obj, endobj, >>, ], trailer, ...)
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
	default:
		return "keyword"
	}
}

// Token is a single lexical element. Which fields are set depends on Type:
// Str for names and keywords, Bytes for strings and stream payloads,
// Int/Float/IsInt for numbers, Int/Gen for refs and Bool for booleans.
type Token struct {
	Type  TokenType
	Pos   int64
	Str   string
	Bytes []byte
	Int   int64
	Float float64
	IsInt bool
	Gen   int
	Bool  bool
	// Overflow is set when an integer literal does not fit in int64. Int is
	// then clamped and Float carries the approximate value.
	Overflow bool
	// Hex marks strings written as <...>.
	Hex bool
}

type Scanner interface {
	Next() (Token, error)
	Position() int64
	SeekTo(offset int64) error
	SetNextStreamLength(n int64)
}

type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
	MaxStreamScan   int64
	WindowSize      int64
	Recovery        recovery.Strategy
}

type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// pdfScanner incrementally buffers PDF data from a ReaderAt in fixed-size windows.
type pdfScanner struct {
	reader        ReaderAt
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
	chunkSize     int64
	eof           bool
	recLoc        recovery.Location
}

// New returns a scanner reading r lazily in windows of cfg.WindowSize bytes.
func New(r ReaderAt, cfg Config) Scanner {
	chunk := cfg.WindowSize
	if chunk <= 0 {
		chunk = 64 * 1024
	}
	return &pdfScanner{reader: r, cfg: cfg, nextStreamLen: -1, chunkSize: chunk}
}

func (s *pdfScanner) Position() int64 { return s.pos }

func (s *pdfScanner) SeekTo(offset int64) error {
	if offset < 0 {
		return errors.New("seek out of range")
	}
	if err := s.ensure(offset); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if offset > int64(len(s.data)) {
		return errors.New("seek out of range")
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) SetNextStreamLength(n int64)               { s.nextStreamLen = n }
func (s *pdfScanner) SetRecoveryLocation(loc recovery.Location) { s.recLoc = loc }

func (s *pdfScanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peekAhead(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Str: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peekAhead(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Str: "[", Pos: start}, nil
	case ']':
		s.pos++
		return Token{Type: TokenKeyword, Str: "]", Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	if isRegular(c) {
		return s.scanKeyword()
	}
	// Stray delimiter such as ')' or '{'.
	s.pos++
	return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
}

func (s *pdfScanner) skipWSAndComments() error {
	for {
		if err := s.ensure(s.pos); err != nil {
			return err
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for {
				s.pos++
				if err := s.ensure(s.pos); err != nil {
					return err
				}
				if isEOL(s.data[s.pos]) {
					break
				}
			}
			continue
		}
		return nil
	}
}

// ensure makes s.data[n] addressable, returning io.EOF when the input is shorter.
func (s *pdfScanner) ensure(n int64) error {
	for int64(len(s.data)) <= n {
		if s.eof {
			return io.EOF
		}
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pdfScanner) loadMore() error {
	buf := make([]byte, s.chunkSize)
	off := int64(len(s.data))
	n, err := s.reader.ReadAt(buf, off)
	if n > 0 {
		s.data = append(s.data, buf[:n]...)
	}
	if errors.Is(err, io.EOF) {
		s.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	if n == 0 {
		s.eof = true
	}
	return nil
}

// loadAll pulls the remainder of the input into the window.
func (s *pdfScanner) loadAll() error {
	for !s.eof {
		if err := s.loadMore(); err != nil {
			return err
		}
	}
	return nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }
func isRegular(c byte) bool    { return !isDelimiter(c) }

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for s.ensure(s.pos) == nil {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.isHex(s.pos+1) && s.isHex(s.pos+2) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *pdfScanner) isHex(i int64) bool {
	if s.ensure(i) != nil {
		return false
	}
	c := s.data[i]
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for depth > 0 && s.ensure(s.pos) == nil {
		c := s.data[s.pos]
		switch c {
		case '\\':
			s.pos++
			if s.ensure(s.pos) != nil {
				continue
			}
			esc := s.data[s.pos]
			switch {
			case esc == '\r':
				// line continuation
				s.pos++
				if s.ensure(s.pos) == nil && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
				s.pos++
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				s.pos++
				for k := 0; k < 2 && s.ensure(s.pos) == nil; k++ {
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
				s.pos++
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				continue
			}
		}
		buf.WriteByte(c)
		s.pos++
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, s.recover(errors.New("literal string too long"), "literal")
		}
	}
	if depth != 0 {
		if err := s.recover(errors.New("unterminated literal string"), "literal"); err != nil {
			return Token{}, err
		}
	}
	return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var hexbuf []byte
	closed := false
	for s.ensure(s.pos) == nil {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			closed = true
			break
		}
		if isWhitespace(c) {
			continue
		}
		hexbuf = append(hexbuf, c)
	}
	if !closed {
		if err := s.recover(errors.New("unterminated hex string"), "hex"); err != nil {
			return Token{}, err
		}
	}
	if len(hexbuf)%2 == 1 {
		hexbuf = append(hexbuf, '0')
	}
	if s.cfg.MaxStringLength > 0 && int64(len(hexbuf)/2) > s.cfg.MaxStringLength {
		return Token{}, s.recover(errors.New("hex string too long"), "hex")
	}
	out := make([]byte, 0, len(hexbuf)/2)
	for i := 0; i < len(hexbuf); i += 2 {
		out = append(out, fromHex(hexbuf[i])<<4|fromHex(hexbuf[i+1]))
	}
	return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
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

var endstreamKW = []byte("endstream")

// scanStream reads the payload following the 'stream' keyword. A declared
// length set through SetNextStreamLength is trusted only when it lands on
// 'endstream'; otherwise the payload is delimited by searching for the marker.
func (s *pdfScanner) scanStream(start int64) (Token, error) {
	if err := s.ensure(s.pos); err != nil {
		return Token{}, s.recover(errors.New("stream missing EOL before data"), "stream")
	}
	switch s.data[s.pos] {
	case '\r':
		s.pos++
		if s.ensure(s.pos) == nil && s.data[s.pos] == '\n' {
			s.pos++
		}
	case '\n':
		s.pos++
	default:
		s.warn(errors.New("stream missing EOL before data"), "stream")
	}
	dataStart := s.pos
	declared := s.nextStreamLen
	s.nextStreamLen = -1

	if declared >= 0 {
		if s.cfg.MaxStreamLength > 0 && declared > s.cfg.MaxStreamLength {
			return Token{}, s.recover(errors.New("stream too long"), "stream")
		}
		end := dataStart + declared
		p := end
		for s.ensure(p) == nil && isWhitespace(s.data[p]) && p-end < 4 {
			p++
		}
		if s.hasPrefixAt(p, endstreamKW) {
			payload := append([]byte(nil), s.data[dataStart:end]...)
			s.pos = p + int64(len(endstreamKW))
			return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
		}
		s.warn(errors.New("stream length does not match endstream"), "stream")
	}
	return s.scanStreamToMarker(start, dataStart)
}

func (s *pdfScanner) scanStreamToMarker(start, dataStart int64) (Token, error) {
	if err := s.loadAll(); err != nil {
		return Token{}, err
	}
	window := s.data[dataStart:]
	if s.cfg.MaxStreamScan > 0 && int64(len(window)) > s.cfg.MaxStreamScan {
		window = window[:s.cfg.MaxStreamScan]
	}
	idx := -1
	for off := 0; off < len(window); {
		i := bytes.Index(window[off:], endstreamKW)
		if i < 0 {
			break
		}
		abs := dataStart + int64(off+i)
		after := abs + int64(len(endstreamKW))
		if after >= int64(len(s.data)) || isDelimiter(s.data[after]) {
			idx = int(abs)
			break
		}
		off += i + 1
	}
	if idx < 0 {
		if err := s.recover(errors.New("endstream not found"), "stream"); err != nil {
			return Token{}, err
		}
		payload := append([]byte(nil), s.data[dataStart:]...)
		s.pos = int64(len(s.data))
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}
	end := idx
	if end > int(dataStart) && s.data[end-1] == '\n' {
		end--
	}
	if end > int(dataStart) && s.data[end-1] == '\r' {
		end--
	}
	if s.cfg.MaxStreamLength > 0 && int64(end)-dataStart > s.cfg.MaxStreamLength {
		return Token{}, s.recover(errors.New("stream too long"), "stream")
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	s.pos = int64(idx + len(endstreamKW))
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func (s *pdfScanner) hasPrefixAt(p int64, prefix []byte) bool {
	if s.ensure(p+int64(len(prefix))-1) != nil {
		return false
	}
	return bytes.Equal(s.data[p:p+int64(len(prefix))], prefix)
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

func (s *pdfScanner) peekAhead(n int64) byte {
	if s.ensure(s.pos+n) != nil {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.ensure(s.pos) == nil && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true", "false":
		return Token{Type: TokenBoolean, Bool: kw == "true", Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	default:
		return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
	}
}

func (s *pdfScanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1 := s.scanNumberString()
	if num1 == "" {
		// lone sign or dot: treat as keyword so the caller can skip it
		s.pos++
		return Token{Type: TokenKeyword, Str: string(s.data[start]), Pos: start}, nil
	}
	tok := s.numberToken(num1, start)
	if !tok.IsInt || tok.Overflow || tok.Int < 0 {
		return tok, nil
	}

	// Look ahead for "<gen> R".
	afterFirst := s.pos
	if s.skipWSAndComments() == nil {
		num2 := s.scanNumberString()
		if num2 != "" && isUnsigned(num2) {
			if s.skipWSAndComments() == nil && s.data[s.pos] == 'R' &&
				(s.ensure(s.pos+1) != nil || isDelimiter(s.data[s.pos+1])) {
				gen, err := strconv.Atoi(num2)
				if err == nil {
					s.pos++
					return Token{Type: TokenRef, Int: tok.Int, Gen: gen, Pos: start}, nil
				}
			}
		}
	}
	s.pos = afterFirst
	return tok, nil
}

func isUnsigned(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (s *pdfScanner) numberToken(lit string, pos int64) Token {
	if strings.IndexByte(lit, '.') >= 0 {
		return s.realToken(lit, pos)
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: pos}
	} else if errors.Is(err, strconv.ErrRange) {
		f, _ := strconv.ParseFloat(lit, 64)
		tok := Token{Type: TokenNumber, IsInt: true, Overflow: true, Float: f, Pos: pos}
		if f < 0 {
			tok.Int = -1 << 63
		} else {
			tok.Int = 1<<63 - 1
		}
		return tok
	}
	return s.realToken(lit, pos)
}

func (s *pdfScanner) realToken(lit string, pos int64) Token {
	f, err := strconv.ParseFloat(lit, 64)
	if errors.Is(err, strconv.ErrRange) {
		// ParseFloat returns ±Inf, which the reader caps or rejects.
		return Token{Type: TokenNumber, Float: f, Pos: pos}
	}
	if err != nil {
		// Malformed literals like "1.2.3" or "--4" read as zero.
		s.warn(errors.New("malformed number "+strconv.Quote(lit)), "number")
		return Token{Type: TokenNumber, Float: 0, Pos: pos}
	}
	return Token{Type: TokenNumber, Float: f, Pos: pos}
}

func (s *pdfScanner) scanNumberString() string {
	start := s.pos
	seenDigit := false
	for s.ensure(s.pos) == nil {
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			if (c == '+' || c == '-') && s.pos > start {
				break
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return ""
	}
	return string(s.data[start:s.pos])
}

// recover consults the recovery strategy. A nil return means the caller may
// continue with a best-effort token.
func (s *pdfScanner) recover(err error, loc string) error {
	if s.cfg.Recovery == nil {
		return err
	}
	location := s.recLoc
	location.ByteOffset = s.pos
	if location.Component != "" {
		location.Component += "->"
	}
	location.Component += "scanner:" + loc
	switch s.cfg.Recovery.OnError(nil, err, location) {
	case recovery.ActionSkip, recovery.ActionFix, recovery.ActionWarn:
		return nil
	default:
		return err
	}
}

// warn reports a self-healing defect. The scanner continues regardless of
// the strategy's answer.
func (s *pdfScanner) warn(err error, loc string) {
	if s.cfg.Recovery != nil {
		_ = s.recover(err, loc)
	}
}
