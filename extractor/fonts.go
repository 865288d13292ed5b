package extractor

import (
	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/ir/semantic"
)

// pageFont holds the per-font data needed to decode show-operator strings and
// compute their advance widths.
type pageFont struct {
	twoByte   bool // Type0 fonts consume two bytes per code
	toUnicode *unicodeMap

	// Simple fonts: Widths indexed from FirstChar.
	simpleWidths map[int]float64
	missing      float64

	// Type0 fonts: per-CID widths from the descendant's W array.
	cidWidths map[int]float64
	defaultW  float64
}

// codes splits string bytes into character codes.
func (f *pageFont) codes(data []byte) []int {
	if f == nil || !f.twoByte {
		out := make([]int, len(data))
		for i, b := range data {
			out[i] = int(b)
		}
		return out
	}
	out := make([]int, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		out = append(out, int(data[i])<<8|int(data[i+1]))
	}
	return out
}

// width returns the advance of a code in 1000-unit text space.
func (f *pageFont) width(code int) float64 {
	if f == nil {
		return 500
	}
	if f.twoByte {
		if w, ok := f.cidWidths[code]; ok {
			return w
		}
		return f.defaultW
	}
	if w, ok := f.simpleWidths[code]; ok {
		return w
	}
	return f.missing
}

// decode turns show-operator bytes into text. Fonts with a ToUnicode CMap use
// it; two-byte fonts without one fall back to UTF-16BE, one-byte fonts to
// Latin-1.
func (f *pageFont) decode(data []byte) string {
	if f != nil && f.toUnicode != nil {
		return f.toUnicode.decode(data)
	}
	if len(data) >= 2 && data[0] == 0xFE && data[1] == 0xFF {
		return utf16BEString(data[2:])
	}
	if f != nil && f.twoByte {
		return utf16BEString(data)
	}
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// loadPageFonts builds decoders for every font in the page's resources.
func (e *Extractor) loadPageFonts(page *semantic.Page) map[string]*pageFont {
	if page.Resources == nil {
		return nil
	}
	fontsDict, ok := e.derefDict(mustGet(page.Resources, "Font"))
	if !ok {
		return nil
	}
	out := make(map[string]*pageFont)
	for _, key := range fontsDict.Keys() {
		obj, _ := fontsDict.Get(key)
		if ref, isRef := obj.(raw.Reference); isRef {
			if cached, hit := e.fontCache[ref.Ref()]; hit {
				out[key.Value()] = cached
				continue
			}
			font := e.parseFont(obj)
			e.fontCache[ref.Ref()] = font
			out[key.Value()] = font
			continue
		}
		out[key.Value()] = e.parseFont(obj)
	}
	return out
}

func (e *Extractor) parseFont(obj raw.Object) *pageFont {
	dict, ok := e.derefDict(obj)
	if !ok {
		return nil
	}
	font := &pageFont{missing: 500, defaultW: 1000}

	if data := e.streamBytes(mustGet(dict, "ToUnicode")); len(data) > 0 {
		font.toUnicode = parseToUnicode(data)
	}

	subtype, _ := raw.DictName(dict, "Subtype")
	if subtype == "Type0" {
		font.twoByte = true
		if descArr, ok := e.derefArray(mustGet(dict, "DescendantFonts")); ok && descArr.Len() > 0 {
			item, _ := descArr.Get(0)
			if desc, ok := e.derefDict(item); ok {
				if dw, ok := raw.DictFloat(desc, "DW"); ok {
					font.defaultW = dw
				}
				if wArr, ok := e.derefArray(mustGet(desc, "W")); ok {
					font.cidWidths = parseWArray(wArr)
				}
			}
		}
		return font
	}

	if mw, ok := raw.DictFloat(dict, "MissingWidth"); ok {
		font.missing = mw
	}
	first, _ := raw.DictInt(dict, "FirstChar")
	if wArr, ok := e.derefArray(mustGet(dict, "Widths")); ok {
		font.simpleWidths = make(map[int]float64, wArr.Len())
		for i := 0; i < wArr.Len(); i++ {
			item, _ := wArr.Get(i)
			if n, ok := item.(raw.NumberObj); ok {
				font.simpleWidths[int(first)+i] = n.Float()
			}
		}
	}
	return font
}

// parseWArray decodes the CID width array: either `c [w1 w2 ...]` runs or
// `cFirst cLast w` spans.
func parseWArray(arr *raw.ArrayObj) map[int]float64 {
	widths := make(map[int]float64)
	i := 0
	for i < len(arr.Items) {
		first, ok := arr.Items[i].(raw.NumberObj)
		if !ok {
			i++
			continue
		}
		if i+1 < len(arr.Items) {
			if list, ok := arr.Items[i+1].(*raw.ArrayObj); ok {
				for j, w := range list.Items {
					if n, ok := w.(raw.NumberObj); ok {
						widths[int(first.Int())+j] = n.Float()
					}
				}
				i += 2
				continue
			}
		}
		if i+2 < len(arr.Items) {
			last, okLast := arr.Items[i+1].(raw.NumberObj)
			w, okW := arr.Items[i+2].(raw.NumberObj)
			if okLast && okW {
				for c := int(first.Int()); c <= int(last.Int()); c++ {
					widths[c] = w.Float()
				}
			}
			i += 3
			continue
		}
		i++
	}
	return widths
}

// mustGet is Get without the second return, for feeding deref helpers.
func mustGet(d raw.Dictionary, key string) raw.Object {
	if d == nil {
		return nil
	}
	obj, ok := d.Get(raw.NameLiteral(key))
	if !ok {
		return nil
	}
	return obj
}
