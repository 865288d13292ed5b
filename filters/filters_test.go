package filters

import (
	"bytes"
	"compress/zlib"
	"context"
	"testing"

	"github.com/hyeonwoo/redactkit/ir/raw"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	w.Close()
	return buf.Bytes()
}

func TestFlateDecodeZlib(t *testing.T) {
	want := []byte("salary data is confidential")
	in := zlibCompress(t, want)
	got, err := NewFlateDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFlateEncodeRoundTrip(t *testing.T) {
	want := bytes.Repeat([]byte("BT /F1 12 Tf ET "), 50)
	enc, err := FlateEncode(want)
	if err != nil {
		t.Fatalf("FlateEncode: %v", err)
	}
	if len(enc) >= len(want) {
		t.Errorf("no compression: %d >= %d", len(enc), len(want))
	}
	got, err := NewFlateDecoder().Decode(context.Background(), enc, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("round trip mismatch")
	}
}

func TestASCIIHexDecode(t *testing.T) {
	got, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6C 6C 6F>"), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "Hello" {
		t.Errorf("got %q, want Hello", got)
	}
	// Odd digit count pads with zero.
	got, err = NewASCIIHexDecoder().Decode(context.Background(), []byte("7>"), nil)
	if err != nil || !bytes.Equal(got, []byte{0x70}) {
		t.Errorf("odd digits: got % x, err %v", got, err)
	}
}

func TestASCII85Decode(t *testing.T) {
	got, err := NewASCII85Decoder().Decode(context.Background(), []byte("<~87cUR~>"), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "Hell" {
		t.Errorf("got %q, want Hell", got)
	}
}

func TestRunLengthDecode(t *testing.T) {
	// 2 literal bytes "ab", then 'c' repeated 4 times, then EOD.
	in := []byte{1, 'a', 'b', 253, 'c', 128}
	got, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(got) != "abcccc" {
		t.Errorf("got %q, want abcccc", got)
	}
}

func TestPNGUpPredictor(t *testing.T) {
	// Two rows of three columns, PNG Up filtering. Row 1 is stored raw
	// (filter 0), row 2 as deltas against row 1 (filter 2).
	raw0 := []byte{10, 20, 30}
	raw1 := []byte{11, 22, 33}
	filtered := []byte{
		0, 10, 20, 30,
		2, 1, 2, 3,
	}
	in := zlibCompress(t, filtered)

	params := raw.Dict()
	params.Set(raw.NameLiteral("Predictor"), raw.NumberInt(12))
	params.Set(raw.NameLiteral("Columns"), raw.NumberInt(3))

	got, err := NewFlateDecoder().Decode(context.Background(), in, params)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := append(append([]byte{}, raw0...), raw1...)
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestPipelineChain(t *testing.T) {
	want := []byte("chained")
	flated := zlibCompress(t, want)
	var hexed bytes.Buffer
	for _, b := range flated {
		hexed.WriteString(string("0123456789ABCDEF"[b>>4]) + string("0123456789ABCDEF"[b&0xF]))
	}
	hexed.WriteByte('>')

	p := NewDefaultPipeline(Limits{})
	got, err := p.Decode(context.Background(), hexed.Bytes(), []string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPipelineSizeLimit(t *testing.T) {
	big := bytes.Repeat([]byte{'x'}, 4096)
	in := zlibCompress(t, big)
	p := NewDefaultPipeline(Limits{MaxDecompressedSize: 100})
	if _, err := p.Decode(context.Background(), in, []string{"FlateDecode"}, nil); err == nil {
		t.Error("size limit not enforced")
	}
}

func TestPipelineUnknownFilter(t *testing.T) {
	p := NewDefaultPipeline(Limits{})
	if _, err := p.Decode(context.Background(), nil, []string{"JBIG2Decode"}, nil); err == nil {
		t.Error("unknown filter accepted")
	}
}

func TestExtractFilters(t *testing.T) {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Filter"), raw.NewArray(raw.NameLiteral("ASCIIHexDecode"), raw.NameLiteral("FlateDecode")))
	names, _ := ExtractFilters(d)
	if len(names) != 2 || names[0] != "ASCIIHexDecode" || names[1] != "FlateDecode" {
		t.Errorf("names = %v", names)
	}

	single := raw.Dict()
	single.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
	names, _ = ExtractFilters(single)
	if len(names) != 1 || names[0] != "FlateDecode" {
		t.Errorf("single name = %v", names)
	}
}
