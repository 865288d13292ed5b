package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hyeonwoo/redactkit/builder"
	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/writer"
)

// A4 with one-inch margins.
const (
	pageWidth    = 595.28
	pageHeight   = 841.89
	pageMargin   = 72.0
	baseFontSize = 10.0
	lineSpacing  = 1.5
	bulletIndent = 15.0
)

const reportFontName = "Report"

// engine tracks a cursor down the page and breaks to a new one when a line
// would cross the bottom margin.
type engine struct {
	doc     *builder.DocumentBuilder
	page    *builder.PageBuilder
	font    string
	cursorY float64
}

func newEngine(font *fonts.TrueTypeFont) *engine {
	doc := builder.New()
	name := ""
	if font != nil {
		doc.RegisterFont(reportFontName, font)
		name = reportFontName
	}
	return &engine{doc: doc, font: name}
}

func (e *engine) opts(size float64) builder.TextOptions {
	return builder.TextOptions{Font: e.font, Size: size}
}

func (e *engine) ensurePage() {
	if e.page == nil {
		e.page = e.doc.NewPage(pageWidth, pageHeight)
		e.cursorY = pageHeight - pageMargin
	}
}

func (e *engine) breakIfNeeded(lineHeight float64) {
	e.ensurePage()
	if e.cursorY-lineHeight < pageMargin {
		e.page = e.doc.NewPage(pageWidth, pageHeight)
		e.cursorY = pageHeight - pageMargin
	}
}

func (e *engine) heading(text string, level int) {
	size := baseFontSize * 2.0
	if level == 2 {
		size = baseFontSize * 1.5
	} else if level >= 3 {
		size = baseFontSize * 1.25
	}
	lineHeight := size * lineSpacing
	e.breakIfNeeded(lineHeight)
	e.page.DrawText(text, pageMargin, e.cursorY-size, e.opts(size))
	e.cursorY -= lineHeight
}

func (e *engine) paragraph(text string) {
	e.wrapped(text, pageMargin)
	e.cursorY -= baseFontSize * lineSpacing / 2
}

func (e *engine) listItem(text string) {
	lineHeight := baseFontSize * lineSpacing
	e.breakIfNeeded(lineHeight)
	e.page.DrawText("-", pageMargin, e.cursorY-baseFontSize, e.opts(baseFontSize))
	e.wrapped(text, pageMargin+bulletIndent)
}

// wrapped draws text with word wrapping against the right margin.
func (e *engine) wrapped(text string, x float64) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return
	}
	e.ensurePage()
	lineHeight := baseFontSize * lineSpacing
	maxWidth := pageWidth - pageMargin - x

	line := words[0]
	flush := func() {
		e.breakIfNeeded(lineHeight)
		e.page.DrawText(line, x, e.cursorY-baseFontSize, e.opts(baseFontSize))
		e.cursorY -= lineHeight
	}
	for _, word := range words[1:] {
		candidate := line + " " + word
		if e.page.MeasureText(candidate, e.opts(baseFontSize)) <= maxWidth {
			line = candidate
			continue
		}
		flush()
		line = word
	}
	flush()
}

func (e *engine) bytes() ([]byte, error) {
	rawDoc, err := e.doc.Build()
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	var out bytes.Buffer
	if err := writer.New(writer.Config{}).Write(rawDoc, &out); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	return out.Bytes(), nil
}
