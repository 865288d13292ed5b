// Package render rasterizes pages for the flattening redactor. Output is
// best-effort typography: a white ground, rectangle fills, placed images, and
// text drawn from extracted fragments. The goal is a legible bitmap whose
// text objects are gone, not pixel fidelity.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/hyeonwoo/redactkit/contentstream"
	"github.com/hyeonwoo/redactkit/coords"
	"github.com/hyeonwoo/redactkit/extractor"
	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/security"
)

const defaultScale = 3.0

type Config struct {
	// Scale multiplies native page dimensions; defaults to 3.
	Scale  float64
	Limits security.Limits
	Logger observability.Logger
}

// Rasterizer renders pages of one document.
type Rasterizer struct {
	doc      *semantic.Document
	cfg      Config
	pipeline *filters.Pipeline
	ex       *extractor.Extractor
	ttf      *opentype.Font
	faces    map[int]font.Face
}

func NewRasterizer(doc *semantic.Document, cfg Config) (*Rasterizer, error) {
	if cfg.Scale <= 0 {
		cfg.Scale = defaultScale
	}
	cfg.Limits = cfg.Limits.OrDefault()
	cfg.Logger = observability.OrNop(cfg.Logger)

	ttf, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse render font: %w", err)
	}
	return &Rasterizer{
		doc: doc,
		cfg: cfg,
		pipeline: filters.NewDefaultPipeline(filters.Limits{
			MaxDecompressedSize: cfg.Limits.MaxDecompressedSize,
			MaxDecodeTime:       cfg.Limits.MaxDecodeTime,
		}),
		ex:    extractor.New(doc, extractor.Config{Limits: cfg.Limits, Logger: cfg.Logger}),
		ttf:   ttf,
		faces: make(map[int]font.Face),
	}, nil
}

// Scale returns the effective render scale for a page, reduced when the full
// bitmap would exceed the raster pixel limit.
func (r *Rasterizer) Scale(page *semantic.Page) float64 {
	scale := r.cfg.Scale
	w, h := page.MediaBox.Width(), page.MediaBox.Height()
	if w <= 0 || h <= 0 {
		return scale
	}
	maxPixels := float64(r.cfg.Limits.MaxRasterPixels)
	if maxPixels > 0 && w*scale*h*scale > maxPixels {
		scale = math.Sqrt(maxPixels / (w * h))
	}
	return scale
}

// Page renders one page to RGBA. Any content parse failure is fatal: the
// flattening redactor must not ship a partially drawn page.
func (r *Rasterizer) Page(ctx context.Context, number int) (*image.RGBA, error) {
	page, err := r.doc.Page(number)
	if err != nil {
		return nil, err
	}
	scale := r.Scale(page)
	pageW, pageH := page.MediaBox.Width(), page.MediaBox.Height()
	wPx := int(math.Ceil(pageW * scale))
	hPx := int(math.Ceil(pageH * scale))
	if wPx <= 0 || hPx <= 0 {
		return nil, fmt.Errorf("page %d has no printable area", number)
	}

	dst := image.NewRGBA(image.Rect(0, 0, wPx, hPx))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	if err := r.paintGraphics(ctx, page, dst, scale); err != nil {
		return nil, fmt.Errorf("page %d: %w", number, err)
	}
	if err := r.paintText(ctx, page, dst, scale); err != nil {
		return nil, fmt.Errorf("page %d text: %w", number, err)
	}
	return dst, nil
}

// paintGraphics replays rectangle fills and image placements.
func (r *Rasterizer) paintGraphics(ctx context.Context, page *semantic.Page, dst *image.RGBA, scale float64) error {
	if len(page.Contents) == 0 {
		return nil
	}
	pageH := page.MediaBox.Height()
	var pending [][4]float64

	p := contentstream.NewProcessor(r.cfg.Limits)
	p.Handle(func(st *contentstream.State, op contentstream.Op) error {
		if v, ok := contentstream.Floats(op.Operands, 4); ok {
			pending = append(pending, [4]float64{v[0], v[1], v[2], v[3]})
		}
		return nil
	}, "re")
	p.Handle(func(st *contentstream.State, op contentstream.Op) error {
		for _, rect := range pending {
			r.fillRect(dst, st, rect, pageH, scale)
		}
		pending = nil
		return nil
	}, "f", "F", "f*", "B", "B*", "b", "b*")
	p.Handle(func(st *contentstream.State, op contentstream.Op) error {
		pending = nil
		return nil
	}, "n", "S", "s")
	p.Handle(func(st *contentstream.State, op contentstream.Op) error {
		if len(op.Operands) == 0 {
			return nil
		}
		name, ok := contentstream.NameOperand(op.Operands[len(op.Operands)-1])
		if !ok {
			return nil
		}
		r.drawXObject(ctx, page, dst, st, name, pageH, scale)
		return nil
	}, "Do")

	return p.Run(ctx, page.Contents, contentstream.NewState())
}

// fillRect paints one user-space rectangle through the CTM.
func (r *Rasterizer) fillRect(dst *image.RGBA, st *contentstream.State, rect [4]float64, pageH, scale float64) {
	bounds, ok := deviceBounds(st, rect, pageH, scale)
	if !ok {
		return
	}
	c := st.Graphics.FillColor
	fill := color.RGBA{
		R: uint8(clamp01(c[0]) * 255),
		G: uint8(clamp01(c[1]) * 255),
		B: uint8(clamp01(c[2]) * 255),
		A: 255,
	}
	draw.Draw(dst, bounds.Intersect(dst.Bounds()), image.NewUniform(fill), image.Point{}, draw.Src)
}

// paintText draws extracted fragments with the bundled face. Glyphs the face
// lacks render as its missing glyph; destruction matters more than fidelity.
func (r *Rasterizer) paintText(ctx context.Context, page *semantic.Page, dst *image.RGBA, scale float64) error {
	frags, err := r.ex.Page(ctx, page.Number)
	if err != nil {
		return err
	}
	for _, f := range frags {
		sizePx := int(math.Round(f.H * scale))
		if sizePx < 2 {
			continue
		}
		face, err := r.face(sizePx)
		if err != nil {
			return err
		}
		drawer := font.Drawer{
			Dst:  dst,
			Src:  image.Black,
			Face: face,
			Dot:  fixed.P(int(f.X*scale), int((f.Y+f.H)*scale)),
		}
		drawer.DrawString(f.Text)
	}
	return nil
}

func (r *Rasterizer) face(sizePx int) (font.Face, error) {
	if f, ok := r.faces[sizePx]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.ttf, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	r.faces[sizePx] = f
	return f, nil
}

// drawXObject places an image resource into its CTM unit square. Unsupported
// or undecodable images are skipped; they were pixels, not text.
func (r *Rasterizer) drawXObject(ctx context.Context, page *semantic.Page, dst *image.RGBA, st *contentstream.State, name string, pageH, scale float64) {
	img := r.imageResource(ctx, page, name)
	if img == nil {
		return
	}
	bounds, ok := deviceBounds(st, [4]float64{0, 0, 1, 1}, pageH, scale)
	if !ok || bounds.Empty() {
		return
	}
	xdraw.CatmullRom.Scale(dst, bounds.Intersect(dst.Bounds()), img, img.Bounds(), xdraw.Over, nil)
}

// deviceBounds maps a user-space rectangle through the CTM into pixel space.
func deviceBounds(st *contentstream.State, rect [4]float64, pageH, scale float64) (image.Rectangle, bool) {
	x, y, w, h := rect[0], rect[1], rect[2], rect[3]
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, corner := range [][2]float64{{x, y}, {x + w, y}, {x, y + h}, {x + w, y + h}} {
		p := st.Graphics.CTM.Transform(coords.Point{X: corner[0], Y: corner[1]})
		px := p.X * scale
		py := (pageH - p.Y) * scale
		minX = math.Min(minX, px)
		maxX = math.Max(maxX, px)
		minY = math.Min(minY, py)
		maxY = math.Max(maxY, py)
	}
	if math.IsInf(minX, 1) {
		return image.Rectangle{}, false
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY))), true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
