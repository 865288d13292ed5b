// Package redactkit masks salary information in PDF documents. Mask runs the
// full pipeline: extract positioned text, find salary regions with the
// built-in heuristics, and cover or destroy them. MaskRegions skips detection
// and masks caller-chosen regions, typically drawn in a viewer. Detect runs
// detection alone for previews.
package redactkit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hyeonwoo/redactkit/coords"
	"github.com/hyeonwoo/redactkit/extractor"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/match"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/ocr"
	"github.com/hyeonwoo/redactkit/parser"
	"github.com/hyeonwoo/redactkit/redact"
	"github.com/hyeonwoo/redactkit/render"
	"github.com/hyeonwoo/redactkit/session"
)

// Result is the outcome of a masking run.
type Result = redact.RedactionResult

// Match is a detected salary region in render space at scale 1.0.
type Match = match.Region

// Selection is a manually drawn region in render space, carrying the scale it
// was drawn at.
type Selection = session.SelectedRegion

// Mask detects salary regions and masks them. A document with nothing to mask
// comes back byte-identical with WasMasked false.
func Mask(ctx context.Context, document []byte, opts Options) (Result, error) {
	opts = opts.withDefaults()
	doc, err := load(ctx, document, opts)
	if err != nil {
		return Result{}, err
	}
	matches, err := detect(ctx, doc, opts)
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		return Result{Output: document}, nil
	}
	return apply(ctx, document, pdfRegions(doc, matches, opts.Logger), opts)
}

// MaskRegions masks caller-chosen regions without running detection.
// Selections pointing outside the document are logged and skipped; if none
// survive, ErrNoRegions is returned.
func MaskRegions(ctx context.Context, document []byte, selections []Selection, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if len(selections) == 0 {
		return Result{}, ErrNoRegions
	}
	doc, err := load(ctx, document, opts)
	if err != nil {
		return Result{}, err
	}

	regions := make([]redact.Region, 0, len(selections))
	for _, sel := range selections {
		page, err := doc.Page(sel.Page)
		if err != nil {
			opts.Logger.Warn("selection outside document skipped",
				observability.Int("page", sel.Page))
			continue
		}
		scale := sel.Scale
		if scale <= 0 {
			scale = 1.0
		}
		rect, err := coords.ToPDFSpace(coords.RenderRect{
			X: sel.X, Y: sel.Y, W: sel.W, H: sel.H,
		}, scale, page.MediaBox.Height())
		if err != nil {
			return Result{}, fmt.Errorf("selection: %w", err)
		}
		regions = append(regions, redact.Region{Page: sel.Page, Rect: rect})
	}
	if len(regions) == 0 {
		return Result{}, ErrNoRegions
	}
	return apply(ctx, document, regions, opts)
}

// Detect runs extraction and detection without touching the document.
func Detect(ctx context.Context, document []byte, opts Options) ([]Match, error) {
	opts = opts.withDefaults()
	doc, err := load(ctx, document, opts)
	if err != nil {
		return nil, err
	}
	return detect(ctx, doc, opts)
}

func load(ctx context.Context, document []byte, opts Options) (*semantic.Document, error) {
	p := parser.NewDocumentParser(parser.Config{
		Limits:   opts.Limits,
		Recovery: opts.Recovery,
	})
	rawDoc, err := p.Parse(ctx, bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}
	doc, err := semantic.Build(ctx, rawDoc, opts.Limits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentLoad, err)
	}
	return doc, nil
}

func detect(ctx context.Context, doc *semantic.Document, opts Options) ([]Match, error) {
	fallback, err := ocrFallback(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	ex := extractor.New(doc, extractor.Config{
		Limits:   opts.Limits,
		Logger:   opts.Logger,
		Fallback: fallback,
	})
	frags, err := ex.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	m := match.NewMatcher(match.Config{Logger: opts.Logger, Rules: opts.Rules})
	return m.FindMatches(ctx, frags), nil
}

// ocrFallback wires the configured OCR engine behind the extractor: pages
// without any text objects get rasterized and recognized, and the word boxes
// come back descaled into render space.
func ocrFallback(doc *semantic.Document, opts Options) (extractor.Fallback, error) {
	if opts.OCR == nil {
		return nil, nil
	}
	rast, err := render.NewRasterizer(doc, render.Config{
		Scale:  opts.RasterScale,
		Limits: opts.Limits,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, page *semantic.Page) ([]extractor.Fragment, error) {
		img, err := rast.Page(ctx, page.Number)
		if err != nil {
			return nil, err
		}
		var inOpts []ocr.InputOption
		if len(opts.OCRLanguages) > 0 {
			inOpts = append(inOpts, ocr.WithLanguages(opts.OCRLanguages...))
		}
		in, err := ocr.InputFromImage(page.Number, img, inOpts...)
		if err != nil {
			return nil, err
		}
		res, err := opts.OCR.Recognize(ctx, in)
		if err != nil {
			return nil, err
		}
		return ocr.FragmentsFromResult(res, page.Number, rast.Scale(page)), nil
	}, nil
}

// pdfRegions converts detected fragments into native page space. Matches on
// pages the document does not have are dropped; detection produced them from
// the same document, so this only fires on corrupt page trees.
func pdfRegions(doc *semantic.Document, matches []Match, logger observability.Logger) []redact.Region {
	regions := make([]redact.Region, 0, len(matches))
	for _, m := range matches {
		page, err := doc.Page(m.Page)
		if err != nil {
			logger.Warn("matched region outside document skipped",
				observability.Int("page", m.Page))
			continue
		}
		rect, err := coords.ToPDFSpace(coords.RenderRect{
			X: m.X, Y: m.Y, W: m.W, H: m.H,
		}, 1.0, page.MediaBox.Height())
		if err != nil {
			continue
		}
		regions = append(regions, redact.Region{Page: m.Page, Rect: rect})
	}
	return regions
}

func apply(ctx context.Context, document []byte, regions []redact.Region, opts Options) (Result, error) {
	ropts := redact.Options{
		Placeholder:     opts.Placeholder,
		PlaceholderFont: opts.PlaceholderFont,
		Scale:           opts.RasterScale,
		Limits:          opts.Limits,
		Logger:          opts.Logger,
		Recovery:        opts.Recovery,
	}
	if opts.Mode == ModeFlatten {
		return redact.FlattenAndRedact(ctx, document, regions, ropts)
	}
	return redact.CoverRegions(ctx, document, regions, ropts)
}
