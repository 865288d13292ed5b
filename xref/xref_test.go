package xref

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"testing"

	"github.com/hyeonwoo/redactkit/recovery"
)

// buildClassic assembles a two-object file with a classic xref table.
func buildClassic() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n(hello)\nendobj\n")
	xrefOff := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", off1)
	fmt.Fprintf(&buf, "%010d 00000 n \n", off2)
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

func TestResolveClassicTable(t *testing.T) {
	data := buildClassic()
	rs := NewResolver(ResolverConfig{})
	tab, err := rs.Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	e, ok := tab.Lookup(1)
	if !ok {
		t.Fatal("object 1 not found")
	}
	if !bytes.HasPrefix(data[e.Offset:], []byte("1 0 obj")) {
		t.Errorf("offset %d does not point at object 1", e.Offset)
	}
	if tab.Trailer() == nil {
		t.Fatal("trailer missing")
	}
	if got := tab.Objects(); len(got) != 2 {
		t.Errorf("Objects() = %v, want 2 in-use entries", got)
	}
}

func TestResolvePrevChain(t *testing.T) {
	base := buildClassic()
	baseXRef := bytes.Index(base, []byte("xref"))

	// Incremental update rewrites object 2.
	var buf bytes.Buffer
	buf.Write(base)
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n(updated)\nendobj\n")
	xrefOff := buf.Len()
	buf.WriteString("xref\n2 1\n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", off2)
	fmt.Fprintf(&buf, "trailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\n", baseXRef)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOff)
	data := buf.Bytes()

	rs := NewResolver(ResolverConfig{})
	tab, err := rs.Resolve(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	e, ok := tab.Lookup(2)
	if !ok {
		t.Fatal("object 2 not found")
	}
	if int(e.Offset) != off2 {
		t.Errorf("object 2 offset = %d, want updated copy at %d", e.Offset, off2)
	}
	// Object 1 still comes from the base section.
	if _, ok := tab.Lookup(1); !ok {
		t.Error("object 1 lost through Prev chain")
	}
}

func TestResolveXRefStream(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	// Rows: free entry, object 1 at off1, object 2 in stream 5 index 3.
	var rows bytes.Buffer
	writeRow := func(t, a, b int) {
		rows.WriteByte(byte(t))
		rows.WriteByte(byte(a >> 8))
		rows.WriteByte(byte(a))
		rows.WriteByte(byte(b))
	}
	writeRow(0, 0, 0)
	writeRow(1, off1, 0)
	writeRow(2, 5, 3)

	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	zw.Write(rows.Bytes())
	zw.Close()

	xrefOff := buf.Len()
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /XRef /Size 3 /W [1 2 1] /Root 1 0 R /Filter /FlateDecode /Length %d >>\nstream\n", comp.Len())
	buf.Write(comp.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOff)

	rs := NewResolver(ResolverConfig{})
	tab, err := rs.Resolve(context.Background(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	e1, ok := tab.Lookup(1)
	if !ok || int(e1.Offset) != off1 {
		t.Errorf("object 1: %+v, %v (want offset %d)", e1, ok, off1)
	}
	e2, ok := tab.Lookup(2)
	if !ok || !e2.InStream || e2.StreamNum != 5 || e2.StreamIdx != 3 {
		t.Errorf("object 2: %+v, %v (want stream 5 idx 3)", e2, ok)
	}
}

func TestRepairFallback(t *testing.T) {
	data := buildClassic()
	// Corrupt the startxref offset.
	broken := bytes.Replace(data, []byte("startxref\n"), []byte("startxref\n999999\n%%OLD "), 1)

	rs := NewResolver(ResolverConfig{Recovery: recovery.NewLenientStrategy()})
	tab, err := rs.Resolve(context.Background(), bytes.NewReader(broken))
	if err != nil {
		t.Fatalf("Resolve with repair: %v", err)
	}
	e, ok := tab.Lookup(1)
	if !ok {
		t.Fatal("repair did not find object 1")
	}
	if !bytes.HasPrefix(broken[e.Offset:], []byte("1 0 obj")) {
		t.Errorf("repair offset %d wrong", e.Offset)
	}
}

func TestResolveStrictFailsOnCorruption(t *testing.T) {
	data := buildClassic()
	broken := bytes.Replace(data, []byte("xref\n0 3"), []byte("xref\nBAD!"), 1)
	rs := NewResolver(ResolverConfig{Recovery: recovery.NewStrictStrategy()})
	if _, err := rs.Resolve(context.Background(), bytes.NewReader(broken)); err == nil {
		t.Error("corrupted table accepted under strict recovery")
	}
}
