// Package redact removes salary regions from documents. CoverRegions paints
// opaque boxes over existing page content; FlattenAndRedact rasterizes
// affected pages so the text underneath the boxes is destroyed.
package redact

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/hyeonwoo/redactkit/coords"
	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/parser"
	"github.com/hyeonwoo/redactkit/recovery"
	"github.com/hyeonwoo/redactkit/security"
	"github.com/hyeonwoo/redactkit/writer"
)

// ErrPageRender marks a page that could not be rasterized. FlattenAndRedact
// aborts the whole operation rather than ship a partially redacted document.
var ErrPageRender = errors.New("page render failed")

// Region is a redaction target in native page space.
type Region struct {
	Page int // 1-based
	Rect coords.PdfRect
}

// RedactionResult carries the rewritten document and what was done to it.
type RedactionResult struct {
	Output      []byte
	WasMasked   bool
	MaskedCount int
}

type Options struct {
	// Placeholder draws "***" centered in each cover box. Requires
	// PlaceholderFont; glyph or embed failure drops the placeholder, never
	// the box.
	Placeholder     bool
	PlaceholderFont *fonts.TrueTypeFont

	// Scale is the flatten raster scale; zero uses the render default.
	Scale float64

	Limits   security.Limits
	Logger   observability.Logger
	Recovery recovery.Strategy
}

func (o Options) withDefaults() Options {
	o.Limits = o.Limits.OrDefault()
	o.Logger = observability.OrNop(o.Logger)
	if o.Recovery == nil {
		o.Recovery = recovery.NewLenientStrategy()
	}
	return o
}

// Box geometry shared by both redactors.
const (
	boxMargin = 4.0
	minBoxW   = 30.0
	minBoxH   = 14.0
)

func loadDocument(ctx context.Context, document []byte, opts Options) (*raw.Document, *semantic.Document, error) {
	p := parser.NewDocumentParser(parser.Config{
		Limits:   opts.Limits,
		Recovery: opts.Recovery,
	})
	rawDoc, err := p.Parse(ctx, bytes.NewReader(document))
	if err != nil {
		return nil, nil, fmt.Errorf("load: %w", err)
	}
	doc, err := semantic.Build(ctx, rawDoc, opts.Limits)
	if err != nil {
		return nil, nil, fmt.Errorf("load: %w", err)
	}
	return rawDoc, doc, nil
}

// groupRegions buckets regions by page, dropping ones that point outside the
// document.
func groupRegions(regions []Region, pageCount int, logger observability.Logger) map[int][]coords.PdfRect {
	byPage := make(map[int][]coords.PdfRect)
	for _, r := range regions {
		if r.Page < 1 || r.Page > pageCount {
			logger.Warn("region outside document skipped", observability.Int("page", r.Page))
			continue
		}
		byPage[r.Page] = append(byPage[r.Page], r.Rect)
	}
	return byPage
}

// coverBox grows a region by the safety margin, enforces the minimum drawn
// size around the region's center, and clamps the result to the media box.
func coverBox(r coords.PdfRect, mb semantic.Rectangle) coords.PdfRect {
	x := r.X - boxMargin
	y := r.Y - boxMargin
	w := r.W + 2*boxMargin
	h := r.H + 2*boxMargin
	if w < minBoxW {
		x -= (minBoxW - w) / 2
		w = minBoxW
	}
	if h < minBoxH {
		y -= (minBoxH - h) / 2
		h = minBoxH
	}
	if x < mb.LLX {
		x = mb.LLX
	}
	if y < mb.LLY {
		y = mb.LLY
	}
	if x+w > mb.URX {
		w = mb.URX - x
	}
	if y+h > mb.URY {
		h = mb.URY - y
	}
	return coords.PdfRect{X: x, Y: y, W: w, H: h}
}

func serialize(doc *raw.Document) ([]byte, error) {
	var out bytes.Buffer
	if err := writer.New(writer.Config{}).Write(doc, &out); err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return out.Bytes(), nil
}
