// Package extractor pulls positioned text out of parsed documents. Every
// show operator becomes a Fragment with its bounding box in render space:
// top-left origin, y growing downward, page points at scale 1.0.
package extractor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hyeonwoo/redactkit/contentstream"
	"github.com/hyeonwoo/redactkit/coords"
	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/security"
)

// Fragment is one run of shown text with its render-space bounding box.
type Fragment struct {
	Page int // 1-based
	Text string
	X    float64
	Y    float64
	W    float64
	H    float64
}

// Fallback produces fragments for a page that yielded no text, typically by
// rasterizing it and running OCR.
type Fallback func(ctx context.Context, page *semantic.Page) ([]Fragment, error)

type Config struct {
	Limits   security.Limits
	Logger   observability.Logger
	Fallback Fallback
}

// Extractor walks page content streams and resolves font resources against
// the underlying raw document.
type Extractor struct {
	doc       *semantic.Document
	cfg       Config
	pipeline  *filters.Pipeline
	fontCache map[raw.ObjectRef]*pageFont
}

func New(doc *semantic.Document, cfg Config) *Extractor {
	cfg.Limits = cfg.Limits.OrDefault()
	cfg.Logger = observability.OrNop(cfg.Logger)
	return &Extractor{
		doc: doc,
		cfg: cfg,
		pipeline: filters.NewDefaultPipeline(filters.Limits{
			MaxDecompressedSize: cfg.Limits.MaxDecompressedSize,
			MaxDecodeTime:       cfg.Limits.MaxDecodeTime,
		}),
		fontCache: make(map[raw.ObjectRef]*pageFont),
	}
}

// Page extracts the fragments of one page.
func (e *Extractor) Page(ctx context.Context, number int) ([]Fragment, error) {
	page, err := e.doc.Page(number)
	if err != nil {
		return nil, err
	}
	frags, err := e.extractPage(ctx, page)
	if err != nil {
		return nil, err
	}
	if len(frags) == 0 && e.cfg.Fallback != nil {
		return e.cfg.Fallback(ctx, page)
	}
	return frags, nil
}

// Document extracts every page. A page that fails to parse is logged and
// skipped so one corrupt page does not hide the rest of the document.
func (e *Extractor) Document(ctx context.Context) ([]Fragment, error) {
	var out []Fragment
	for _, page := range e.doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frags, err := e.extractPage(ctx, page)
		if err != nil {
			e.cfg.Logger.Warn("page extraction failed",
				observability.Int("page", page.Number),
				observability.Error("err", err))
			continue
		}
		if len(frags) == 0 && e.cfg.Fallback != nil {
			frags, err = e.cfg.Fallback(ctx, page)
			if err != nil {
				e.cfg.Logger.Warn("page fallback failed",
					observability.Int("page", page.Number),
					observability.Error("err", err))
				continue
			}
		}
		out = append(out, frags...)
	}
	return out, nil
}

func (e *Extractor) extractPage(ctx context.Context, page *semantic.Page) ([]Fragment, error) {
	if len(page.Contents) == 0 {
		return nil, nil
	}
	fonts := e.loadPageFonts(page)
	pageHeight := page.MediaBox.Height()

	var frags []Fragment
	show := func(st *contentstream.State, op contentstream.Op) error {
		if len(op.Operands) == 0 {
			return nil
		}
		font := fonts[st.Text.Font]
		var text strings.Builder
		var advance float64 // text-space units, font size applied

		addString := func(data []byte) {
			text.WriteString(font.decode(data))
			for _, code := range font.codes(data) {
				w := font.width(code)/1000.0*st.Text.FontSize + st.Text.CharSpacing
				if code == 32 && (font == nil || !font.twoByte) {
					w += st.Text.WordSpacing
				}
				advance += w * st.Text.HorizScale / 100.0
			}
		}

		switch v := op.Operands[len(op.Operands)-1].(type) {
		case raw.StringObj:
			addString(v.Value())
		case *raw.ArrayObj:
			for _, item := range v.Items {
				switch it := item.(type) {
				case raw.StringObj:
					addString(it.Value())
				case raw.NumberObj:
					advance -= it.Float() / 1000.0 * st.Text.FontSize * st.Text.HorizScale / 100.0
				}
			}
		default:
			return nil
		}

		frag, ok := fragmentBounds(st, text.String(), advance, pageHeight)
		if ok {
			frag.Page = page.Number
			frags = append(frags, frag)
		}
		st.Text.ShowAdvance(advance)
		return nil
	}

	p := contentstream.NewProcessor(e.cfg.Limits)
	p.Handle(show, "Tj", "TJ", "'", "\"")
	if err := p.Run(ctx, page.Contents, contentstream.NewState()); err != nil {
		return nil, fmt.Errorf("page %d content: %w", page.Number, err)
	}
	return frags, nil
}

// fragmentBounds projects a show operation into render space. The baseline
// origin becomes the bottom edge; height is the effective font size.
func fragmentBounds(st *contentstream.State, text string, advance, pageHeight float64) (Fragment, bool) {
	if text == "" {
		return Fragment{}, false
	}
	trm := st.Text.Tm.Multiply(st.Graphics.CTM)
	origin := st.Text.Origin(st.Graphics)
	scaleX := math.Hypot(trm[0], trm[1])
	scaleY := math.Hypot(trm[2], trm[3])

	w := advance * scaleX
	h := st.Text.FontSize * scaleY
	if h <= 0 {
		h = st.Text.FontSize
	}
	rect, err := coords.ToRenderSpace(coords.PdfRect{
		X: origin.X, Y: origin.Y, W: w, H: h,
	}, 1.0, pageHeight)
	if err != nil {
		return Fragment{}, false
	}
	return Fragment{Text: text, X: rect.X, Y: rect.Y, W: rect.W, H: rect.H}, true
}

// PlainText joins fragments in reading order: pages ascending, rows top to
// bottom, left to right within a row.
func PlainText(frags []Fragment) string {
	if len(frags) == 0 {
		return ""
	}
	sorted := make([]Fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		return sorted[i].Y < sorted[j].Y
	})

	// Group into visual rows first so left-to-right order within a row wins
	// over sub-point baseline jitter.
	var rows [][]Fragment
	for _, f := range sorted {
		if len(rows) > 0 {
			last := rows[len(rows)-1]
			if last[0].Page == f.Page && sameRow(last[0], f) {
				rows[len(rows)-1] = append(last, f)
				continue
			}
		}
		rows = append(rows, []Fragment{f})
	}

	var out strings.Builder
	for i, row := range rows {
		sort.SliceStable(row, func(a, b int) bool { return row[a].X < row[b].X })
		if i > 0 {
			if row[0].Page != rows[i-1][0].Page {
				out.WriteString("\n\n")
			} else {
				out.WriteByte('\n')
			}
		}
		for j, f := range row {
			if j > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(f.Text)
		}
	}
	return out.String()
}

// sameRow reports whether two fragments sit on one visual line.
func sameRow(a, b Fragment) bool {
	tolerance := math.Max(a.H, b.H) / 2
	if tolerance <= 0 {
		tolerance = 2
	}
	centerA := a.Y + a.H/2
	centerB := b.Y + b.H/2
	return math.Abs(centerA-centerB) <= tolerance
}

func (e *Extractor) derefDict(obj raw.Object) (*raw.DictObj, bool) {
	obj = e.deref(obj)
	d, ok := obj.(*raw.DictObj)
	return d, ok
}

func (e *Extractor) derefArray(obj raw.Object) (*raw.ArrayObj, bool) {
	obj = e.deref(obj)
	a, ok := obj.(*raw.ArrayObj)
	return a, ok
}

func (e *Extractor) deref(obj raw.Object) raw.Object {
	for depth := 0; depth < e.cfg.Limits.MaxIndirectDepth; depth++ {
		ref, ok := obj.(raw.Reference)
		if !ok {
			return obj
		}
		next, ok := e.doc.Raw.Objects[ref.Ref()]
		if !ok {
			next, ok = e.doc.Raw.Objects[raw.ObjectRef{Num: ref.Ref().Num}]
			if !ok {
				return nil
			}
		}
		obj = next
	}
	return nil
}

// streamBytes resolves and decodes a stream object, returning nil on any
// failure.
func (e *Extractor) streamBytes(obj raw.Object) []byte {
	st, ok := e.deref(obj).(*raw.StreamObj)
	if !ok {
		return nil
	}
	data, err := e.pipeline.DecodeStream(context.Background(), st)
	if err != nil {
		return nil
	}
	return data
}
