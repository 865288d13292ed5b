package fonts

import (
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestLoadTrueTypeMetrics(t *testing.T) {
	f, err := LoadTrueType("", goregular.TTF)
	if err != nil {
		t.Fatalf("LoadTrueType: %v", err)
	}
	if f.PostScriptName == "" {
		t.Error("empty PostScript name")
	}
	if f.UnitsPerEm <= 0 {
		t.Errorf("UnitsPerEm = %d", f.UnitsPerEm)
	}
	if f.Ascent <= 0 || f.Descent <= 0 {
		t.Errorf("ascent/descent = %v/%v", f.Ascent, f.Descent)
	}
	if len(f.GlyphWidths) == 0 {
		t.Error("no glyph widths extracted")
	}
}

func TestLoadTrueTypeRejectsGarbage(t *testing.T) {
	if _, err := LoadTrueType("x", []byte("not a font")); err == nil {
		t.Error("garbage accepted as font")
	}
	if _, err := LoadTrueType("x", nil); err == nil {
		t.Error("empty data accepted")
	}
}

func TestGlyphForRune(t *testing.T) {
	f, err := LoadTrueType("", goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	gid, ok := f.GlyphForRune('A')
	if !ok || gid == 0 {
		t.Fatalf("no glyph for 'A'")
	}
	if w := f.WidthForGID(gid); w <= 0 {
		t.Errorf("width for 'A' = %d", w)
	}
	// Go Regular has no Hangul coverage.
	if _, ok := f.GlyphForRune('연'); ok {
		t.Error("unexpected Hangul glyph in Go Regular")
	}
}

func TestMeasureString(t *testing.T) {
	f, err := LoadTrueType("", goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	short := f.MeasureString("Hi", 12)
	long := f.MeasureString("Hello, world", 12)
	if short <= 0 {
		t.Fatalf("MeasureString(Hi) = %v", short)
	}
	if long <= short {
		t.Errorf("longer text measured narrower: %v vs %v", long, short)
	}
	// Doubling the size doubles the advance.
	big := f.MeasureString("Hi", 24)
	if diff := big - 2*short; diff > 0.01 || diff < -0.01 {
		t.Errorf("size scaling off: %v vs %v", big, 2*short)
	}
}
