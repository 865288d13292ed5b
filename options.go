package redactkit

import (
	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/observability"
	"github.com/hyeonwoo/redactkit/ocr"
	"github.com/hyeonwoo/redactkit/recovery"
	"github.com/hyeonwoo/redactkit/security"
)

// Mode selects how regions are removed from the document.
type Mode string

const (
	// ModeOverlay paints boxes over the content. Fast and layout-preserving,
	// but visual concealment only: the text stays in the file.
	ModeOverlay Mode = "overlay"
	// ModeFlatten rasterizes affected pages so the text is destroyed.
	ModeFlatten Mode = "flatten"
)

// Options configures the pipeline. The zero value masks with overlay boxes,
// no placeholder, no OCR, and default limits.
type Options struct {
	Mode Mode

	// Placeholder draws "***" in each overlay box; needs PlaceholderFont.
	Placeholder     bool
	PlaceholderFont *fonts.TrueTypeFont

	// RasterScale is the flatten render scale; zero uses the default.
	RasterScale float64

	// OCR recognizes pages the extractor found no text on. Nil disables the
	// fallback. Results are best effort.
	OCR          ocr.Engine
	OCRLanguages []string

	// Rules holds JavaScript custom detection rules run after the built-in
	// salary heuristics.
	Rules []string

	Logger   observability.Logger
	Recovery recovery.Strategy
	Limits   security.Limits
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = ModeOverlay
	}
	o.Logger = observability.OrNop(o.Logger)
	o.Limits = o.Limits.OrDefault()
	return o
}
