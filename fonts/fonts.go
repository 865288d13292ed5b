// Package fonts loads TrueType/OpenType fonts and exposes the metrics and
// glyph mappings needed to embed them as Type0 Identity-H fonts and to
// measure or shape text drawn with them.
package fonts

import (
	"fmt"
	"math"
	"strings"
	"sync"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// TrueTypeFont is a parsed font ready for embedding. Metric fields are in
// 1000-unit text space regardless of the font's own unitsPerEm.
type TrueTypeFont struct {
	PostScriptName string
	Data           []byte

	UnitsPerEm  int
	Ascent      float64
	Descent     float64 // positive distance below the baseline
	CapHeight   float64
	ItalicAngle float64
	Flags       int
	BBox        [4]float64

	// GlyphWidths maps glyph ID to advance width. DefaultWidth covers glyphs
	// missing from the map.
	GlyphWidths  map[uint16]int
	DefaultWidth int

	sfnt *sfnt.Font
	mu   sync.Mutex
	buf  sfnt.Buffer
}

// LoadTrueType parses a TrueType or OpenType font and extracts the metrics
// needed for a FontFile2 embedding. The full font is embedded; no subsetting.
func LoadTrueType(name string, data []byte) (*TrueTypeFont, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("truetype font data is empty")
	}
	font, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse truetype: %w", err)
	}
	unitsPerEm := font.UnitsPerEm()
	if unitsPerEm == 0 {
		return nil, fmt.Errorf("invalid unitsPerEm")
	}
	var buf sfnt.Buffer
	ppem := fixed.Int26_6(unitsPerEm << 6)

	baseName := strings.TrimSpace(name)
	if ps, _ := font.Name(&buf, sfnt.NameIDPostScript); len(ps) > 0 {
		baseName = sanitizeName(ps)
	}
	if baseName == "" {
		baseName = "EmbeddedTT"
	}

	widths := glyphWidths(font, &buf, unitsPerEm, ppem)
	defaultWidth := widths[0]
	if defaultWidth == 0 {
		defaultWidth = 1000
	}

	metrics, _ := font.Metrics(&buf, ppem, xfont.HintingNone)
	bounds, _ := font.Bounds(&buf, ppem, xfont.HintingNone)

	tt := &TrueTypeFont{
		PostScriptName: baseName,
		Data:           data,
		UnitsPerEm:     int(unitsPerEm),
		Ascent:         scaleFixed(metrics.Ascent, unitsPerEm),
		Descent:        scaleFixed(metrics.Descent, unitsPerEm),
		CapHeight:      scaleFixed(metrics.CapHeight, unitsPerEm),
		ItalicAngle:    italicAngle(font),
		Flags:          4, // non-symbolic TrueType
		BBox: [4]float64{
			scaleFixed(bounds.Min.X, unitsPerEm),
			scaleFixed(bounds.Min.Y, unitsPerEm),
			scaleFixed(bounds.Max.X, unitsPerEm),
			scaleFixed(bounds.Max.Y, unitsPerEm),
		},
		GlyphWidths:  widths,
		DefaultWidth: defaultWidth,
		sfnt:         font,
	}
	if tt.CapHeight == 0 {
		tt.CapHeight = tt.Ascent
	}
	return tt, nil
}

// GlyphForRune maps a rune to its glyph ID via the font's cmap.
func (f *TrueTypeFont) GlyphForRune(r rune) (uint16, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gid, err := f.sfnt.GlyphIndex(&f.buf, r)
	if err != nil || gid == 0 {
		return 0, false
	}
	return uint16(gid), true
}

// WidthForGID returns the advance width of a glyph in 1000-unit text space.
func (f *TrueTypeFont) WidthForGID(gid uint16) int {
	if w, ok := f.GlyphWidths[gid]; ok {
		return w
	}
	return f.DefaultWidth
}

// MeasureString returns the advance width of text at the given point size,
// using shaping when available and falling back to per-rune cmap widths.
func (f *TrueTypeFont) MeasureString(text string, size float64) float64 {
	if glyphs, err := Shape(f, text); err == nil && len(glyphs) > 0 {
		var total float64
		for _, g := range glyphs {
			total += g.XAdvance
		}
		return total / 1000.0 * size
	}
	var total float64
	for _, r := range text {
		gid, ok := f.GlyphForRune(r)
		if !ok {
			total += float64(f.DefaultWidth)
			continue
		}
		total += float64(f.WidthForGID(gid))
	}
	return total / 1000.0 * size
}

func glyphWidths(font *sfnt.Font, buf *sfnt.Buffer, unitsPerEm sfnt.Units, ppem fixed.Int26_6) map[uint16]int {
	glyphs := font.NumGlyphs()
	widths := make(map[uint16]int, glyphs)
	for i := 0; i < glyphs; i++ {
		adv, err := font.GlyphAdvance(buf, sfnt.GlyphIndex(i), ppem, xfont.HintingNone)
		if err != nil {
			continue
		}
		widths[uint16(i)] = int(math.Round(scaleFixed(adv, unitsPerEm)))
	}
	return widths
}

func italicAngle(font *sfnt.Font) float64 {
	post := font.PostTable()
	if post == nil {
		return 0
	}
	return post.ItalicAngle
}

func scaleFixed(val fixed.Int26_6, unitsPerEm sfnt.Units) float64 {
	return float64(val) * 1000.0 / (64.0 * float64(unitsPerEm))
}

// sanitizeName strips characters that are not valid in a PDF BaseFont name.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r > 0x20 && r < 0x7F && !strings.ContainsRune("()<>[]{}/%#", r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
