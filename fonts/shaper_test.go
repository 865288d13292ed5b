package fonts

import (
	"testing"

	"github.com/go-text/typesetting/language"
	"golang.org/x/image/font/gofont/goregular"
)

func TestShapeLatin(t *testing.T) {
	f, err := LoadTrueType("", goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	glyphs, err := Shape(f, "AV")
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if len(glyphs) != 2 {
		t.Fatalf("shaped %d glyphs, want 2", len(glyphs))
	}
	for i, g := range glyphs {
		if g.GID == 0 {
			t.Errorf("glyph %d is .notdef", i)
		}
		if g.XAdvance <= 0 {
			t.Errorf("glyph %d XAdvance = %v", i, g.XAdvance)
		}
	}
}

func TestShapeEmptyInput(t *testing.T) {
	f, err := LoadTrueType("", goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	glyphs, err := Shape(f, "")
	if err != nil || glyphs != nil {
		t.Errorf("Shape(empty) = %v, %v", glyphs, err)
	}
	glyphs, err = Shape(nil, "abc")
	if err != nil || glyphs != nil {
		t.Errorf("Shape(nil font) = %v, %v", glyphs, err)
	}
}

func TestDetectScript(t *testing.T) {
	cases := map[string]language.Script{
		"salary":   language.Latin,
		"연봉 정보":    language.Hangul,
		"급여: 5000": language.Hangul,
		"年収":       language.Han,
	}
	for text, want := range cases {
		if got := detectScript([]rune(text)); got != want {
			t.Errorf("detectScript(%q) = %v, want %v", text, got, want)
		}
	}
}
