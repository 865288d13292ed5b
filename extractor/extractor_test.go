package extractor

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/security"
)

func helveticaDict() *raw.DictObj {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	d.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	d.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral("Helvetica"))
	return d
}

// makeDoc assembles a one-page document with the given content stream and
// font resources.
func makeDoc(t *testing.T, content string, fontDicts map[string]raw.Object, extra map[raw.ObjectRef]raw.Object) *semantic.Document {
	t.Helper()

	fonts := raw.Dict()
	for name, obj := range fontDicts {
		fonts.Set(raw.NameLiteral(name), obj)
	}
	resources := raw.Dict()
	resources.Set(raw.NameLiteral("Font"), fonts)

	csDict := raw.Dict()
	csDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(content))))

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), raw.Ref(2, 0))
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0), raw.NumberInt(612), raw.NumberInt(792)))
	page.Set(raw.NameLiteral("Resources"), resources)
	page.Set(raw.NameLiteral("Contents"), raw.Ref(5, 0))

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), raw.NewArray(raw.Ref(3, 0)))
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(1))

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(2, 0))

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(1, 0))

	objects := map[raw.ObjectRef]raw.Object{
		{Num: 1}: catalog,
		{Num: 2}: pages,
		{Num: 3}: page,
		{Num: 5}: raw.NewStream(csDict, []byte(content)),
	}
	for ref, obj := range extra {
		objects[ref] = obj
	}

	doc, err := semantic.Build(context.Background(), &raw.Document{
		Objects: objects,
		Trailer: trailer,
		Version: "1.4",
	}, security.Limits{})
	if err != nil {
		t.Fatalf("semantic.Build: %v", err)
	}
	return doc
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.01 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestExtractSimpleTextPosition(t *testing.T) {
	doc := makeDoc(t, "BT /F1 12 Tf 100 700 Td (Hello) Tj ET",
		map[string]raw.Object{"F1": helveticaDict()}, nil)

	frags, err := New(doc, Config{}).Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}
	f := frags[0]
	if f.Text != "Hello" || f.Page != 1 {
		t.Errorf("fragment = %+v", f)
	}
	approx(t, "X", f.X, 100)
	// Baseline 700pt from the bottom, 12pt tall, flipped to top-left origin.
	approx(t, "Y", f.Y, 792-700-12)
	approx(t, "H", f.H, 12)
	// Five glyphs at the 500/1000 default width.
	approx(t, "W", f.W, 5*0.5*12)
}

func TestExtractHonorsWidthsArray(t *testing.T) {
	font := helveticaDict()
	font.Set(raw.NameLiteral("FirstChar"), raw.NumberInt(65)) // 'A'
	font.Set(raw.NameLiteral("Widths"), raw.NewArray(
		raw.NumberInt(700), raw.NumberInt(300)))

	doc := makeDoc(t, "BT /F1 10 Tf 0 100 Td (AB) Tj ET",
		map[string]raw.Object{"F1": font}, nil)
	frags, err := New(doc, Config{}).Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "W", frags[0].W, (0.7+0.3)*10)
}

func TestExtractTJKerning(t *testing.T) {
	doc := makeDoc(t, "BT /F1 10 Tf 0 100 Td [(AB) -500 (C)] TJ ET",
		map[string]raw.Object{"F1": helveticaDict()}, nil)
	frags, err := New(doc, Config{}).Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || frags[0].Text != "ABC" {
		t.Fatalf("frags = %+v", frags)
	}
	// Three 5pt glyphs plus 5pt from the -500 kern.
	approx(t, "W", frags[0].W, 20)
}

func TestExtractWordSpacing(t *testing.T) {
	doc := makeDoc(t, "BT /F1 10 Tf 2 Tw 0 100 Td (a b) Tj ET",
		map[string]raw.Object{"F1": helveticaDict()}, nil)
	frags, err := New(doc, Config{}).Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "W", frags[0].W, 3*5+2)
}

func TestExtractCTMScaling(t *testing.T) {
	doc := makeDoc(t, "2 0 0 2 0 0 cm BT /F1 12 Tf 50 300 Td (x) Tj ET",
		map[string]raw.Object{"F1": helveticaDict()}, nil)
	frags, err := New(doc, Config{}).Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	f := frags[0]
	approx(t, "X", f.X, 100)
	approx(t, "H", f.H, 24)
	approx(t, "Y", f.Y, 792-600-24)
}

func TestExtractType0ToUnicode(t *testing.T) {
	cmap := `/CIDInit /ProcSet findresource begin
begincmap
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
1 beginbfchar
<0001> <C5F0>
endbfchar
endcmap
end`
	cmapDict := raw.Dict()
	cmapDict.Set(raw.NameLiteral("Length"), raw.NumberInt(int64(len(cmap))))

	descendant := raw.Dict()
	descendant.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))
	descendant.Set(raw.NameLiteral("DW"), raw.NumberInt(1000))
	descendant.Set(raw.NameLiteral("W"), raw.NewArray(
		raw.NumberInt(1), raw.NewArray(raw.NumberInt(600))))

	font := raw.Dict()
	font.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	font.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("Identity-H"))
	font.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(descendant))
	font.Set(raw.NameLiteral("ToUnicode"), raw.Ref(7, 0))

	doc := makeDoc(t, "BT /F2 20 Tf 50 100 Td <0001> Tj ET",
		map[string]raw.Object{"F2": font},
		map[raw.ObjectRef]raw.Object{{Num: 7}: raw.NewStream(cmapDict, []byte(cmap))})

	frags, err := New(doc, Config{}).Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 || frags[0].Text != "연" {
		t.Fatalf("frags = %+v", frags)
	}
	approx(t, "W", frags[0].W, 0.6*20)
}

func TestDocumentSkipsEmptyPagesIntoFallback(t *testing.T) {
	doc := makeDoc(t, " ", map[string]raw.Object{"F1": helveticaDict()}, nil)

	called := false
	ex := New(doc, Config{
		Fallback: func(ctx context.Context, page *semantic.Page) ([]Fragment, error) {
			called = true
			return []Fragment{{Page: page.Number, Text: "ocr text", X: 1, Y: 1, W: 10, H: 10}}, nil
		},
	})
	frags, err := ex.Document(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("fallback not invoked for empty page")
	}
	if len(frags) != 1 || frags[0].Text != "ocr text" {
		t.Errorf("frags = %+v", frags)
	}
}

func TestPlainTextReadingOrder(t *testing.T) {
	frags := []Fragment{
		{Page: 1, Text: "world", X: 60, Y: 100, W: 40, H: 12},
		{Page: 1, Text: "Hello", X: 10, Y: 101, W: 40, H: 12},
		{Page: 1, Text: "below", X: 10, Y: 130, W: 40, H: 12},
		{Page: 2, Text: "next", X: 10, Y: 10, W: 40, H: 12},
	}
	got := PlainText(frags)
	want := "Hello world\nbelow\n\nnext"
	if got != want {
		t.Errorf("PlainText = %q, want %q", got, want)
	}
}

func TestPlainTextEmpty(t *testing.T) {
	if PlainText(nil) != "" {
		t.Error("PlainText(nil) not empty")
	}
}

func TestParseWArraySpans(t *testing.T) {
	arr := raw.NewArray(
		raw.NumberInt(1), raw.NewArray(raw.NumberInt(600), raw.NumberInt(700)),
		raw.NumberInt(10), raw.NumberInt(12), raw.NumberInt(550),
	)
	w := parseWArray(arr)
	cases := map[int]float64{1: 600, 2: 700, 10: 550, 11: 550, 12: 550}
	for cid, want := range cases {
		if w[cid] != want {
			t.Errorf("W[%d] = %v, want %v", cid, w[cid], want)
		}
	}
	if _, ok := w[3]; ok {
		t.Error("unexpected width for CID 3")
	}
}

func TestMultiLineNewlines(t *testing.T) {
	doc := makeDoc(t, "BT /F1 12 Tf 14 TL 72 700 Td (first) Tj T* (second) Tj ET",
		map[string]raw.Object{"F1": helveticaDict()}, nil)
	frags, err := New(doc, Config{}).Page(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 2 {
		t.Fatalf("got %d fragments", len(frags))
	}
	if !(frags[1].Y > frags[0].Y) {
		t.Errorf("second line not below first: %v vs %v", frags[1].Y, frags[0].Y)
	}
	if !strings.Contains(PlainText(frags), "first\nsecond") {
		t.Errorf("PlainText = %q", PlainText(frags))
	}
}
