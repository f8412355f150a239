package scanner

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/wudi/pdftools/recovery"
)

func newScanner(t *testing.T, data string, cfg Config) Scanner {
	t.Helper()
	return New(bytes.NewReader([]byte(data)), cfg)
}

func nextToken(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj", Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Name value, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		tok = nextToken(t, s)
		if tok.Type != TokenNumber || !tok.IsInt || tok.Int != i {
			t.Fatalf("expected array number %d, got %+v", i, tok)
		}
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != "]" {
		t.Fatalf("expected array close, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Flag" {
		t.Fatalf("expected Flag key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true boolean, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Null" {
		t.Fatalf("expected Null key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null value, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenKeyword || tok.Str != ">>" {
		t.Fatalf("expected dict close, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Str != "endobj" {
		t.Fatalf("expected endobj, got %+v", tok)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_Strings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		hex  bool
	}{
		{"escapes", "(Hi\\n\\050\\051\\t)", "Hi\n()\t", false},
		{"line continuation", "(Line\\\r\ncontinued)", "Linecontinued", false},
		{"nested parens", "(a (b) c)", "a (b) c", false},
		{"octal", "(\\101\\102C)", "ABC", false},
		{"hex odd length", "<48656c6c6f3>", "Hello0", true},
		{"hex whitespace", "<48 65\n6c>", "Hel", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tok := nextToken(t, newScanner(t, tc.in, Config{}))
			if tok.Type != TokenString || string(tok.Bytes) != tc.want || tok.Hex != tc.hex {
				t.Fatalf("got %+v (%q), want %q", tok, tok.Bytes, tc.want)
			}
		})
	}
}

func TestScanner_NameHexEscapes(t *testing.T) {
	tok := nextToken(t, newScanner(t, "/Name#20With#23Hash", Config{}))
	if tok.Type != TokenName || tok.Str != "Name With#Hash" {
		t.Fatalf("got %+v", tok)
	}
}

func TestScanner_ReferenceDetection(t *testing.T) {
	s := newScanner(t, "12 5 R %comment\n7 0 obj", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenRef || tok.Int != 12 || tok.Gen != 5 {
		t.Fatalf("expected ref 12 5 R, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || tok.Int != 7 {
		t.Fatalf("expected number 7 after ref, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || tok.Int != 0 {
		t.Fatalf("expected generation 0, got %+v", tok)
	}
}

func TestScanner_Numbers(t *testing.T) {
	s := newScanner(t, "-3 +4 .5 -.25 6. 99999999999999999999", Config{})
	want := []float64{-3, 4, 0.5, -0.25, 6}
	for _, w := range want {
		tok := nextToken(t, s)
		if tok.Type != TokenNumber {
			t.Fatalf("expected number, got %+v", tok)
		}
		got := tok.Float
		if tok.IsInt {
			got = float64(tok.Int)
		}
		if got != w {
			t.Fatalf("got %v, want %v", got, w)
		}
	}
	tok := nextToken(t, s)
	if !tok.Overflow || tok.Int != 1<<63-1 {
		t.Fatalf("expected clamped overflow token, got %+v", tok)
	}
}

func TestScanner_LongRealIsNotInteger(t *testing.T) {
	s := newScanner(t, "100000000000000000000.5 -12345678901234567890123.25", Config{})
	for _, want := range []float64{1e20, -12345678901234567890123.25} {
		tok := nextToken(t, s)
		if tok.Type != TokenNumber || tok.IsInt || tok.Overflow {
			t.Fatalf("expected real token, got %+v", tok)
		}
		if tok.Float != want {
			t.Fatalf("got %v, want %v", tok.Float, want)
		}
	}
}

func TestScanner_StreamWithLength(t *testing.T) {
	s := newScanner(t, "stream\r\nhello\nendstream endobj", Config{})
	s.SetNextStreamLength(5)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "hello" {
		t.Fatalf("got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Str != "endobj" {
		t.Fatalf("expected endobj after stream, got %+v", tok)
	}
}

func TestScanner_StreamWrongLengthFallsBack(t *testing.T) {
	s := newScanner(t, "stream\nhello world\nendstream", Config{})
	s.SetNextStreamLength(3)
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "hello world" {
		t.Fatalf("expected marker search to recover the payload, got %q", tok.Bytes)
	}
}

func TestScanner_StreamFallbackToEndstream(t *testing.T) {
	s := newScanner(t, "stream\nabc\r\nendstream", Config{})
	tok := nextToken(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "abc" {
		t.Fatalf("got %q", tok.Bytes)
	}
}

func TestScanner_Limits(t *testing.T) {
	if _, err := newScanner(t, "<000102>", Config{MaxStringLength: 2}).Next(); err == nil {
		t.Fatalf("expected hex string length error")
	}
	if _, err := newScanner(t, "(abcdef)", Config{MaxStringLength: 3}).Next(); err == nil {
		t.Fatalf("expected literal string length error")
	}
	s := newScanner(t, "stream\nabcdef\nendstream", Config{MaxStreamLength: 3})
	s.SetNextStreamLength(6)
	if _, err := s.Next(); err == nil {
		t.Fatalf("expected stream length error")
	}
}

func TestScanner_Unterminated(t *testing.T) {
	for _, in := range []string{"(abc", "<abc"} {
		if _, err := newScanner(t, in, Config{}).Next(); err == nil {
			t.Fatalf("%q: expected error without recovery", in)
		}
	}
}

type recordRecovery struct {
	locs []recovery.Location
}

func (r *recordRecovery) OnError(ctx recovery.Context, err error, loc recovery.Location) recovery.Action {
	r.locs = append(r.locs, loc)
	return recovery.ActionFix
}

func TestScanner_FixUnterminatedLiteralString(t *testing.T) {
	rec := &recordRecovery{}
	s := New(bytes.NewReader([]byte("(abc")), Config{Recovery: rec})
	if rc, ok := s.(interface{ SetRecoveryLocation(recovery.Location) }); ok {
		rc.SetRecoveryLocation(recovery.Location{ObjectNum: 5, ObjectGen: 2, Component: "parser"})
	}
	tok := nextToken(t, s)
	if tok.Type != TokenString || string(tok.Bytes) != "abc" {
		t.Fatalf("got %+v", tok)
	}
	if len(rec.locs) != 1 {
		t.Fatalf("expected one recovery call, got %d", len(rec.locs))
	}
	loc := rec.locs[0]
	if loc.ObjectNum != 5 || loc.ObjectGen != 2 || loc.Component != "parser->scanner:literal" {
		t.Fatalf("unexpected location %+v", loc)
	}
}

func TestScanner_SeekTo(t *testing.T) {
	s := newScanner(t, "1 0 obj 2 0 obj", Config{WindowSize: 4})
	if err := s.SeekTo(8); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if tok := nextToken(t, s); tok.Int != 2 {
		t.Fatalf("expected 2 after seek, got %+v", tok)
	}
	if err := s.SeekTo(100); err == nil {
		t.Fatalf("expected out of range seek to fail")
	}
}
