package redact

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hyeonwoo/redactkit/builder"
	"github.com/hyeonwoo/redactkit/coords"
	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/observability"
)

const (
	placeholderText = "***"
	placeholderSize = 10.0
	// Resource name for the placeholder font, chosen to dodge collisions
	// with the document's own font names.
	placeholderRes = "RKPH"
)

// CoverRegions paints an opaque white box over each region by appending to
// the affected pages' content streams. This is visual concealment only: the
// original text remains in the file and any PDF tool can recover it. Use
// FlattenAndRedact when the text must actually be destroyed.
func CoverRegions(ctx context.Context, document []byte, regions []Region, opts Options) (RedactionResult, error) {
	opts = opts.withDefaults()

	rawDoc, doc, err := loadDocument(ctx, document, opts)
	if err != nil {
		return RedactionResult{}, err
	}
	byPage := groupRegions(regions, doc.PageCount(), opts.Logger)

	next := rawDoc.MaxRef()
	alloc := func() raw.ObjectRef {
		next++
		return raw.ObjectRef{Num: next}
	}

	ph := preparePlaceholder(rawDoc, alloc, opts)

	count := 0
	for _, page := range doc.Pages {
		rects := byPage[page.Number]
		if len(rects) == 0 {
			continue
		}
		var ops bytes.Buffer
		ops.WriteString("Q\n")
		for _, rect := range rects {
			box := coverBox(rect, page.MediaBox)
			fmt.Fprintf(&ops, "q 1 1 1 rg %s %s %s %s re f Q\n",
				fnum(box.X), fnum(box.Y), fnum(box.W), fnum(box.H))
			if ph != nil {
				ph.draw(&ops, page, box)
			}
			count++
		}
		if err := appendContent(rawDoc, page, alloc, ops.Bytes()); err != nil {
			return RedactionResult{}, fmt.Errorf("redact page %d: %w", page.Number, err)
		}
	}

	out, err := serialize(rawDoc)
	if err != nil {
		return RedactionResult{}, err
	}
	return RedactionResult{Output: out, WasMasked: count > 0, MaskedCount: count}, nil
}

// placeholder holds the one embedded font shared by every cover box.
type placeholder struct {
	fontRef raw.ObjectRef
	encoded []byte
	width   float64 // of placeholderText at placeholderSize
	logger  observability.Logger
}

// preparePlaceholder embeds the placeholder font once. Any failure is logged
// and disables the placeholder; the boxes themselves are never at risk.
func preparePlaceholder(rawDoc *raw.Document, alloc func() raw.ObjectRef, opts Options) *placeholder {
	if !opts.Placeholder || opts.PlaceholderFont == nil {
		return nil
	}
	ref, encoded, err := builder.EmbedTrueType(rawDoc.Objects, alloc, opts.PlaceholderFont, placeholderText, true)
	if err != nil {
		opts.Logger.Warn("placeholder dropped", observability.Error("err", err))
		return nil
	}
	return &placeholder{
		fontRef: ref,
		encoded: encoded,
		width:   opts.PlaceholderFont.MeasureString(placeholderText, placeholderSize),
		logger:  opts.Logger,
	}
}

func (ph *placeholder) draw(ops *bytes.Buffer, page *semantic.Page, box coords.PdfRect) {
	if err := ensureFontResource(page, ph.fontRef); err != nil {
		ph.logger.Warn("placeholder dropped",
			observability.Int("page", page.Number), observability.Error("err", err))
		return
	}
	tx := box.X + (box.W-ph.width)/2
	ty := box.Y + (box.H-placeholderSize*0.7)/2
	fmt.Fprintf(ops, "BT 0.5 0.5 0.5 rg /%s %s Tf %s %s Td %s Tj ET\n",
		placeholderRes, fnum(placeholderSize), fnum(tx), fnum(ty), ph.encoded)
}

// ensureFontResource makes the placeholder font reachable from the page's
// resource dictionary under placeholderRes.
func ensureFontResource(page *semantic.Page, fontRef raw.ObjectRef) error {
	if page.RawDict == nil {
		return fmt.Errorf("page has no dictionary")
	}
	res := page.Resources
	if res == nil {
		res = raw.Dict()
		page.Resources = res
	}
	// Pin resources directly on the page so inherited dictionaries are not
	// silently replaced elsewhere in the tree.
	page.RawDict.Set(raw.NameLiteral("Resources"), res)

	fontsObj, ok := res.Get(raw.NameLiteral("Font"))
	fontDict, isDict := fontsObj.(*raw.DictObj)
	if !ok || !isDict {
		fontDict = raw.Dict()
		res.Set(raw.NameLiteral("Font"), fontDict)
	}
	fontDict.Set(raw.NameLiteral(placeholderRes), raw.Ref(fontRef.Num, 0))
	return nil
}

// appendContent wraps the page's existing content in q/Q and adds the cover
// operations after it, so the boxes paint above everything and inherit a
// clean graphics state.
func appendContent(rawDoc *raw.Document, page *semantic.Page, alloc func() raw.ObjectRef, ops []byte) error {
	preRef := alloc()
	rawDoc.Objects[preRef] = raw.NewStream(raw.Dict(), []byte("q\n"))
	postRef := alloc()
	rawDoc.Objects[postRef] = raw.NewStream(raw.Dict(), ops)

	arr := raw.NewArray(raw.Ref(preRef.Num, 0))
	contents, ok := page.RawDict.Get(raw.NameLiteral("Contents"))
	if ok {
		switch v := contents.(type) {
		case *raw.ArrayObj:
			arr.Items = append(arr.Items, v.Items...)
		default:
			arr.Items = append(arr.Items, v)
		}
	}
	arr.Items = append(arr.Items, raw.Ref(postRef.Num, 0))
	page.RawDict.Set(raw.NameLiteral("Contents"), arr)
	return nil
}

// fnum formats a coordinate without exponent notation.
func fnum(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
