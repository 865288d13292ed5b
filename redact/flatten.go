package redact

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"runtime"
	"sync"

	"github.com/hyeonwoo/redactkit/builder"
	"github.com/hyeonwoo/redactkit/coords"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/render"
)

// FlattenAndRedact rebuilds the document with every affected page rasterized,
// painted over, and re-embedded as a full-page image. Text objects on those
// pages are destroyed; pages without regions are copied structurally intact.
// Fails closed: one unrenderable page aborts the whole operation.
func FlattenAndRedact(ctx context.Context, document []byte, regions []Region, opts Options) (RedactionResult, error) {
	opts = opts.withDefaults()

	rawDoc, doc, err := loadDocument(ctx, document, opts)
	if err != nil {
		return RedactionResult{}, err
	}
	byPage := groupRegions(regions, doc.PageCount(), opts.Logger)

	rast, err := render.NewRasterizer(doc, render.Config{
		Scale:  opts.Scale,
		Limits: opts.Limits,
		Logger: opts.Logger,
	})
	if err != nil {
		return RedactionResult{}, fmt.Errorf("%w: %v", ErrPageRender, err)
	}

	flattened, err := renderAffected(ctx, rast, doc, byPage, opts)
	if err != nil {
		return RedactionResult{}, err
	}

	b := builder.New()
	count := 0
	for _, page := range doc.Pages {
		enc, ok := flattened[page.Number]
		if !ok {
			b.ImportPage(rawDoc, page.Ref)
			continue
		}
		w, h := page.MediaBox.Width(), page.MediaBox.Height()
		b.NewPage(w, h).DrawImage(builder.ImageStream{
			Width:            enc.Width,
			Height:           enc.Height,
			ColorSpace:       enc.ColorSpace,
			BitsPerComponent: enc.BitsPerComponent,
			Filter:           enc.Filter,
			Data:             enc.Data,
		}, 0, 0, w, h)
		count += len(byPage[page.Number])
	}

	outDoc, err := b.Build()
	if err != nil {
		return RedactionResult{}, fmt.Errorf("assemble: %w", err)
	}
	out, err := serialize(outDoc)
	if err != nil {
		return RedactionResult{}, err
	}
	return RedactionResult{Output: out, WasMasked: count > 0, MaskedCount: count}, nil
}

// renderAffected rasterizes and paints every page that has regions, bounded
// by a GOMAXPROCS semaphore.
func renderAffected(ctx context.Context, rast *render.Rasterizer, doc *semantic.Document,
	byPage map[int][]coords.PdfRect, opts Options) (map[int]render.Encoded, error) {

	out := make(map[int]render.Encoded, len(byPage))
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for number, rects := range byPage {
		wg.Add(1)
		go func(number int, rects []coords.PdfRect) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			enc, err := flattenPage(ctx, rast, doc, number, rects, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: page %d: %v", ErrPageRender, number, err)
				}
				return
			}
			out[number] = enc
		}(number, rects)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func flattenPage(ctx context.Context, rast *render.Rasterizer, doc *semantic.Document,
	number int, rects []coords.PdfRect, opts Options) (render.Encoded, error) {

	page, err := doc.Page(number)
	if err != nil {
		return render.Encoded{}, err
	}
	img, err := rast.Page(ctx, number)
	if err != nil {
		return render.Encoded{}, err
	}

	scale := rast.Scale(page)
	pageH := page.MediaBox.Height()
	for _, rect := range rects {
		box := coverBox(rect, page.MediaBox)
		rr, err := coords.ToRenderSpace(box, scale, pageH)
		if err != nil {
			return render.Encoded{}, err
		}
		paint := image.Rect(
			int(rr.X), int(rr.Y),
			int(rr.X+rr.W)+1, int(rr.Y+rr.H)+1)
		draw.Draw(img, paint.Intersect(img.Bounds()), image.White, image.Point{}, draw.Src)
	}

	return render.EncodePage(img, opts.Limits)
}
