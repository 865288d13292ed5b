package scanner

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/hyeonwoo/redactkit/recovery"
)

func newTest(input string) Scanner {
	return New(bytes.NewReader([]byte(input)), Config{})
}

func mustNext(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return tok
}

func TestScanName(t *testing.T) {
	s := newTest("/Type /Font#20Name")
	tok := mustNext(t, s)
	if tok.Type != TokenName || tok.Str != "Type" {
		t.Errorf("got %v %q, want name Type", tok.Type, tok.Str)
	}
	tok = mustNext(t, s)
	if tok.Str != "Font Name" {
		t.Errorf("hex escape: got %q, want %q", tok.Str, "Font Name")
	}
}

func TestScanNumbers(t *testing.T) {
	s := newTest("42 -17 3.14 .5")
	tok := mustNext(t, s)
	if !tok.IsInt || tok.Int != 42 {
		t.Errorf("got %+v, want int 42", tok)
	}
	tok = mustNext(t, s)
	if !tok.IsInt || tok.Int != -17 {
		t.Errorf("got %+v, want int -17", tok)
	}
	tok = mustNext(t, s)
	if tok.IsInt || tok.Float != 3.14 {
		t.Errorf("got %+v, want float 3.14", tok)
	}
	tok = mustNext(t, s)
	if tok.Float != 0.5 {
		t.Errorf("got %+v, want float 0.5", tok)
	}
}

func TestScanReference(t *testing.T) {
	s := newTest("12 0 R 7 2 R 3 4")
	tok := mustNext(t, s)
	if tok.Type != TokenRef || tok.Int != 12 || tok.Gen != 0 {
		t.Errorf("got %+v, want ref 12 0", tok)
	}
	tok = mustNext(t, s)
	if tok.Type != TokenRef || tok.Int != 7 || tok.Gen != 2 {
		t.Errorf("got %+v, want ref 7 2", tok)
	}
	// Two numbers not followed by R stay two numbers.
	tok = mustNext(t, s)
	if tok.Type != TokenNumber || tok.Int != 3 {
		t.Errorf("got %+v, want number 3", tok)
	}
	tok = mustNext(t, s)
	if tok.Type != TokenNumber || tok.Int != 4 {
		t.Errorf("got %+v, want number 4", tok)
	}
}

func TestScanLiteralString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`(hello)`, "hello"},
		{`(a(b)c)`, "a(b)c"},
		{`(tab\there)`, "tab\there"},
		{`(\101\102)`, "AB"},
		{`(line\
cont)`, "linecont"},
	}
	for _, c := range cases {
		s := newTest(c.in)
		tok := mustNext(t, s)
		if tok.Type != TokenString || string(tok.Bytes) != c.want {
			t.Errorf("%s: got %q, want %q", c.in, tok.Bytes, c.want)
		}
	}
}

func TestScanHexString(t *testing.T) {
	s := newTest("<48 65 6C6C6F> <9>")
	tok := mustNext(t, s)
	if string(tok.Bytes) != "Hello" {
		t.Errorf("got %q, want Hello", tok.Bytes)
	}
	// Odd digit count pads with zero.
	tok = mustNext(t, s)
	if !bytes.Equal(tok.Bytes, []byte{0x90}) {
		t.Errorf("got % x, want 90", tok.Bytes)
	}
}

func TestScanDictAndArray(t *testing.T) {
	s := newTest("<< /K [1 2] >>")
	want := []struct {
		typ TokenType
		str string
	}{
		{TokenDict, "<<"},
		{TokenName, "K"},
		{TokenArray, "["},
		{TokenNumber, ""},
		{TokenNumber, ""},
		{TokenKeyword, "]"},
		{TokenKeyword, ">>"},
	}
	for i, w := range want {
		tok := mustNext(t, s)
		if tok.Type != w.typ {
			t.Fatalf("token %d: type %v, want %v", i, tok.Type, w.typ)
		}
		if w.str != "" && tok.Str != w.str {
			t.Fatalf("token %d: str %q, want %q", i, tok.Str, w.str)
		}
	}
}

func TestScanBoolNullKeyword(t *testing.T) {
	s := newTest("true false null obj endobj")
	tok := mustNext(t, s)
	if tok.Type != TokenBoolean || !tok.Bool {
		t.Errorf("got %+v, want true", tok)
	}
	tok = mustNext(t, s)
	if tok.Type != TokenBoolean || tok.Bool {
		t.Errorf("got %+v, want false", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenNull {
		t.Errorf("got %+v, want null", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Errorf("got %+v, want obj", tok)
	}
	if tok = mustNext(t, s); tok.Str != "endobj" {
		t.Errorf("got %+v, want endobj", tok)
	}
}

func TestScanStreamWithLengthHint(t *testing.T) {
	s := newTest("stream\nHELLO\nendstream endobj")
	s.SetNextStreamLength(5)
	tok := mustNext(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "HELLO" {
		t.Fatalf("got %v %q, want stream HELLO", tok.Type, tok.Bytes)
	}
	tok = mustNext(t, s)
	if tok.Str != "endobj" {
		t.Errorf("after stream: got %q, want endobj", tok.Str)
	}
}

func TestScanStreamWithoutHint(t *testing.T) {
	s := newTest("stream\r\nDATA BYTES\nendstream\n")
	tok := mustNext(t, s)
	if string(tok.Bytes) != "DATA BYTES" {
		t.Errorf("got %q, want %q", tok.Bytes, "DATA BYTES")
	}
}

func TestScanStreamBadLengthRecovers(t *testing.T) {
	// Declared length runs past the end of input. A lenient strategy
	// truncates instead of failing.
	s := New(bytes.NewReader([]byte("stream\nSHORT")), Config{Recovery: recovery.NewLenientStrategy()})
	s.SetNextStreamLength(500)
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(tok.Bytes) != "SHORT" {
		t.Errorf("got %q, want SHORT", tok.Bytes)
	}
}

func TestLenientStrategyWarnsAndContinues(t *testing.T) {
	// A warning action recovers: the scan goes on and the strategy keeps the
	// error for later inspection.
	strategy := recovery.NewLenientStrategy()
	s := New(bytes.NewReader([]byte("stream\nDATA")), Config{Recovery: strategy})
	s.SetNextStreamLength(64)
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(tok.Bytes) != "DATA" {
		t.Errorf("got %q, want DATA", tok.Bytes)
	}
	if len(strategy.Errors) == 0 {
		t.Error("strategy recorded no warnings")
	}
}

func TestStrictStrategyStillFails(t *testing.T) {
	s := New(bytes.NewReader([]byte("stream\nDATA")), Config{Recovery: recovery.NewStrictStrategy()})
	s.SetNextStreamLength(64)
	if _, err := s.Next(); err == nil {
		t.Fatal("truncated stream accepted under strict recovery")
	}
}

func TestScanComments(t *testing.T) {
	s := newTest("% comment line\n42 % trailing\n/Name")
	if tok := mustNext(t, s); tok.Int != 42 {
		t.Errorf("got %+v, want 42", tok)
	}
	if tok := mustNext(t, s); tok.Str != "Name" {
		t.Errorf("got %+v, want Name", tok)
	}
}

func TestSeekTo(t *testing.T) {
	s := newTest("aaaa 42 bbbb")
	if err := s.SeekTo(5); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	if tok := mustNext(t, s); tok.Int != 42 {
		t.Errorf("got %+v, want 42 after seek", tok)
	}
	if err := s.SeekTo(-1); err == nil {
		t.Error("negative seek accepted")
	}
}

func TestStringLengthLimit(t *testing.T) {
	s := New(bytes.NewReader([]byte("(aaaaaaaaaaaaaaaaaaaa)")), Config{MaxStringLength: 4})
	if _, err := s.Next(); err == nil {
		t.Error("oversized string accepted")
	}
}

func TestDictDepthLimit(t *testing.T) {
	s := New(bytes.NewReader([]byte("<< << << /A 1")), Config{MaxDictDepth: 2})
	var err error
	for err == nil {
		_, err = s.Next()
	}
	if errors.Is(err, io.EOF) {
		t.Error("depth limit never triggered")
	}
}

func TestEOF(t *testing.T) {
	s := newTest("   ")
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF", err)
	}
}
