package builder

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/ir/raw"
)

// EmbedTrueType writes the Type0/Identity-H object set covering text into an
// existing object table, for callers that add glyphs to parsed documents.
// Returns the composite font reference and the hex-encoded show string.
func EmbedTrueType(objects map[raw.ObjectRef]raw.Object, alloc func() raw.ObjectRef,
	f *fonts.TrueTypeFont, text string, compress bool) (raw.ObjectRef, []byte, error) {

	reg := &registeredFont{font: f, usedGIDs: make(map[uint16]rune)}
	encoded, err := encodeIdentityH(reg, text)
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	ref, err := embedTrueType(objects, alloc, reg, compress)
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	return ref, encoded, nil
}

// builtinHelvetica returns the font dictionary for the non-embedded standard
// Helvetica, which every viewer supplies.
func builtinHelvetica() *raw.DictObj {
	d := raw.Dict()
	d.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	d.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type1"))
	d.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(defaultBaseFont))
	d.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("WinAnsiEncoding"))
	return d
}

// embedTrueType writes the Type0/Identity-H object set for a registered font:
// the composite font, its CIDFontType2 descendant, the descriptor with the
// FontFile2 stream, and a ToUnicode CMap covering the glyphs actually drawn.
func embedTrueType(objects map[raw.ObjectRef]raw.Object, alloc func() raw.ObjectRef,
	reg *registeredFont, compress bool) (raw.ObjectRef, error) {

	f := reg.font

	fileData := f.Data
	fileDict := raw.Dict()
	fileDict.Set(raw.NameLiteral("Length1"), raw.NumberInt(int64(len(f.Data))))
	if compress {
		compressed, err := filters.FlateEncode(f.Data)
		if err != nil {
			return raw.ObjectRef{}, fmt.Errorf("compress font file: %w", err)
		}
		fileDict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
		fileData = compressed
	}
	fileRef := alloc()
	objects[fileRef] = raw.NewStream(fileDict, fileData)

	descriptor := raw.Dict()
	descriptor.Set(raw.NameLiteral("Type"), raw.NameLiteral("FontDescriptor"))
	descriptor.Set(raw.NameLiteral("FontName"), raw.NameLiteral(f.PostScriptName))
	descriptor.Set(raw.NameLiteral("Flags"), raw.NumberInt(int64(f.Flags)))
	descriptor.Set(raw.NameLiteral("FontBBox"), raw.NewArray(
		raw.NumberFloat(f.BBox[0]), raw.NumberFloat(f.BBox[1]),
		raw.NumberFloat(f.BBox[2]), raw.NumberFloat(f.BBox[3])))
	descriptor.Set(raw.NameLiteral("ItalicAngle"), raw.NumberFloat(f.ItalicAngle))
	descriptor.Set(raw.NameLiteral("Ascent"), raw.NumberFloat(f.Ascent))
	descriptor.Set(raw.NameLiteral("Descent"), raw.NumberFloat(-f.Descent))
	descriptor.Set(raw.NameLiteral("CapHeight"), raw.NumberFloat(f.CapHeight))
	descriptor.Set(raw.NameLiteral("StemV"), raw.NumberInt(80))
	descriptor.Set(raw.NameLiteral("FontFile2"), raw.Ref(fileRef.Num, 0))
	descriptorRef := alloc()
	objects[descriptorRef] = descriptor

	cidInfo := raw.Dict()
	cidInfo.Set(raw.NameLiteral("Registry"), raw.Str([]byte("Adobe")))
	cidInfo.Set(raw.NameLiteral("Ordering"), raw.Str([]byte("Identity")))
	cidInfo.Set(raw.NameLiteral("Supplement"), raw.NumberInt(0))

	descendant := raw.Dict()
	descendant.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	descendant.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("CIDFontType2"))
	descendant.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(f.PostScriptName))
	descendant.Set(raw.NameLiteral("CIDSystemInfo"), cidInfo)
	descendant.Set(raw.NameLiteral("FontDescriptor"), raw.Ref(descriptorRef.Num, 0))
	descendant.Set(raw.NameLiteral("DW"), raw.NumberInt(int64(f.DefaultWidth)))
	descendant.Set(raw.NameLiteral("W"), widthArray(reg))
	descendant.Set(raw.NameLiteral("CIDToGIDMap"), raw.NameLiteral("Identity"))
	descendantRef := alloc()
	objects[descendantRef] = descendant

	toUnicodeRef := alloc()
	objects[toUnicodeRef] = raw.NewStream(raw.Dict(), toUnicodeCMap(reg))

	font := raw.Dict()
	font.Set(raw.NameLiteral("Type"), raw.NameLiteral("Font"))
	font.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Type0"))
	font.Set(raw.NameLiteral("BaseFont"), raw.NameLiteral(f.PostScriptName))
	font.Set(raw.NameLiteral("Encoding"), raw.NameLiteral("Identity-H"))
	font.Set(raw.NameLiteral("DescendantFonts"), raw.NewArray(raw.Ref(descendantRef.Num, 0)))
	font.Set(raw.NameLiteral("ToUnicode"), raw.Ref(toUnicodeRef.Num, 0))
	fontRef := alloc()
	objects[fontRef] = font
	return fontRef, nil
}

// widthArray emits per-glyph entries for the glyphs the document uses. Unused
// glyphs fall back to DW.
func widthArray(reg *registeredFont) *raw.ArrayObj {
	gids := sortedGIDs(reg)
	arr := raw.NewArray()
	for _, gid := range gids {
		arr.Items = append(arr.Items,
			raw.NumberInt(int64(gid)),
			raw.NewArray(raw.NumberInt(int64(reg.font.WidthForGID(gid)))))
	}
	return arr
}

// toUnicodeCMap builds the CMap stream that maps used glyph IDs back to the
// text they were drawn for, so extraction and copy-paste survive embedding.
func toUnicodeCMap(reg *registeredFont) []byte {
	gids := sortedGIDs(reg)

	var b bytes.Buffer
	b.WriteString("/CIDInit /ProcSet findresource begin\n")
	b.WriteString("12 dict begin\nbegincmap\n")
	b.WriteString("/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def\n")
	b.WriteString("/CMapName /Adobe-Identity-UCS def\n/CMapType 2 def\n")
	b.WriteString("1 begincodespacerange\n<0000> <FFFF>\nendcodespacerange\n")

	for start := 0; start < len(gids); start += 100 {
		end := start + 100
		if end > len(gids) {
			end = len(gids)
		}
		fmt.Fprintf(&b, "%d beginbfchar\n", end-start)
		for _, gid := range gids[start:end] {
			fmt.Fprintf(&b, "<%04X> <", gid)
			for _, u := range utf16.Encode([]rune{reg.usedGIDs[gid]}) {
				fmt.Fprintf(&b, "%04X", u)
			}
			b.WriteString(">\n")
		}
		b.WriteString("endbfchar\n")
	}

	b.WriteString("endcmap\nCMapName currentdict /CMap defineresource pop\nend\nend\n")
	return b.Bytes()
}

func sortedGIDs(reg *registeredFont) []uint16 {
	gids := make([]uint16, 0, len(reg.usedGIDs))
	for gid := range reg.usedGIDs {
		gids = append(gids, gid)
	}
	sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
	return gids
}

// helveticaWidth returns the AFM advance width of a rune in standard
// Helvetica, in 1000-unit text space.
func helveticaWidth(r rune) float64 {
	if r < 0x20 || r > 0x7E {
		return 556
	}
	return float64(helveticaWidths[r-0x20])
}

// Advance widths for ASCII 0x20..0x7E from the Helvetica AFM.
var helveticaWidths = [95]int16{
	278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333, 278, 278,
	556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278, 584, 584, 584, 556,
	1015, 667, 667, 722, 722, 667, 611, 778, 722, 278, 500, 667, 556, 833, 722, 778,
	667, 778, 722, 667, 611, 722, 667, 944, 667, 667, 611, 278, 278, 278, 469, 556,
	333, 556, 556, 500, 556, 556, 278, 556, 556, 222, 222, 500, 222, 833, 556, 556,
	556, 556, 333, 500, 278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
}
