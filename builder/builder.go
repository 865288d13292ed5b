// Package builder assembles PDF documents programmatically: pages with text,
// rectangles, and images, plus pages imported wholesale from an existing
// parsed document. Build produces a raw.Document ready for the writer.
package builder

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/ir/raw"
)

const (
	defaultFontResource = "F1"
	defaultBaseFont     = "Helvetica"
	defaultFontSize     = 12.0
)

// Color is an RGB color with components in [0,1].
type Color struct {
	R, G, B float64
}

var Black = Color{}

// TextOptions controls DrawText. A zero value draws 12pt black text in the
// built-in Helvetica.
type TextOptions struct {
	Font  string // name passed to RegisterFont; empty uses Helvetica
	Size  float64
	Color Color
}

// DocumentBuilder accumulates pages and document-level state. Methods return
// the builder so calls chain; the first error sticks and Build reports it.
type DocumentBuilder struct {
	entries  []pageEntry
	info     map[string]string
	fonts    map[string]*registeredFont
	fontSeq  int
	compress bool
	err      error
}

type pageEntry struct {
	page     *PageBuilder
	imported *importedPage
}

type registeredFont struct {
	font     *fonts.TrueTypeFont
	resource string
	usedGIDs map[uint16]rune
}

// New returns an empty builder with stream compression enabled.
func New() *DocumentBuilder {
	return &DocumentBuilder{
		info:     make(map[string]string),
		fonts:    make(map[string]*registeredFont),
		compress: true,
	}
}

// WithCompression toggles Flate compression of generated content streams.
func (b *DocumentBuilder) WithCompression(on bool) *DocumentBuilder {
	b.compress = on
	return b
}

// SetInfo records a document information entry such as Title or Producer.
func (b *DocumentBuilder) SetInfo(key, value string) *DocumentBuilder {
	b.info[key] = value
	return b
}

// RegisterFont makes a loaded TrueType font available to DrawText under the
// given name. The font is embedded as Type0 Identity-H.
func (b *DocumentBuilder) RegisterFont(name string, f *fonts.TrueTypeFont) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	if name == "" || f == nil {
		b.err = fmt.Errorf("register font: empty name or nil font")
		return b
	}
	b.fontSeq++
	b.fonts[name] = &registeredFont{
		font:     f,
		resource: fmt.Sprintf("TF%d", b.fontSeq),
		usedGIDs: make(map[uint16]rune),
	}
	return b
}

// NewPage appends a page of the given size in points and returns its builder.
func (b *DocumentBuilder) NewPage(width, height float64) *PageBuilder {
	p := &PageBuilder{
		doc:       b,
		width:     width,
		height:    height,
		usedFonts: make(map[string]bool),
	}
	b.entries = append(b.entries, pageEntry{page: p})
	return p
}

// PageCount returns the number of pages added so far.
func (b *DocumentBuilder) PageCount() int { return len(b.entries) }

// PageBuilder emits content stream operators for one page.
type PageBuilder struct {
	doc       *DocumentBuilder
	width     float64
	height    float64
	content   bytes.Buffer
	usedFonts map[string]bool
	images    []placedImage
}

type placedImage struct {
	resource string
	stream   ImageStream
}

// Finish returns to the document builder.
func (p *PageBuilder) Finish() *DocumentBuilder { return p.doc }

// FillRect paints a solid rectangle. Coordinates are in PDF user space with
// the origin at the lower left.
func (p *PageBuilder) FillRect(x, y, w, h float64, c Color) *PageBuilder {
	fmt.Fprintf(&p.content, "q %s %s %s rg %s %s %s %s re f Q\n",
		num(c.R), num(c.G), num(c.B), num(x), num(y), num(w), num(h))
	return p
}

// StrokeRect outlines a rectangle with the given line width.
func (p *PageBuilder) StrokeRect(x, y, w, h, lineWidth float64, c Color) *PageBuilder {
	fmt.Fprintf(&p.content, "q %s %s %s RG %s w %s %s %s %s re S Q\n",
		num(c.R), num(c.G), num(c.B), num(lineWidth), num(x), num(y), num(w), num(h))
	return p
}

// DrawText places a single line of text with its baseline at (x, y).
func (p *PageBuilder) DrawText(text string, x, y float64, opts TextOptions) *PageBuilder {
	if p.doc.err != nil || text == "" {
		return p
	}
	size := opts.Size
	if size <= 0 {
		size = defaultFontSize
	}

	resource := defaultFontResource
	var encoded []byte
	if opts.Font != "" {
		reg, ok := p.doc.fonts[opts.Font]
		if !ok {
			p.doc.err = fmt.Errorf("draw text: font %q not registered", opts.Font)
			return p
		}
		resource = reg.resource
		var err error
		encoded, err = encodeIdentityH(reg, text)
		if err != nil {
			p.doc.err = fmt.Errorf("draw text: %w", err)
			return p
		}
	} else {
		encoded = encodeWinAnsi(text)
	}
	p.usedFonts[opts.Font] = true

	fmt.Fprintf(&p.content, "BT %s %s %s rg /%s %s Tf %s %s Td ",
		num(opts.Color.R), num(opts.Color.G), num(opts.Color.B),
		resource, num(size), num(x), num(y))
	p.content.Write(encoded)
	p.content.WriteString(" Tj ET\n")
	return p
}

// MeasureText returns the advance width of text under the given options.
func (p *PageBuilder) MeasureText(text string, opts TextOptions) float64 {
	size := opts.Size
	if size <= 0 {
		size = defaultFontSize
	}
	if opts.Font != "" {
		if reg, ok := p.doc.fonts[opts.Font]; ok {
			return reg.font.MeasureString(text, size)
		}
	}
	var total float64
	for _, r := range text {
		total += helveticaWidth(r)
	}
	return total / 1000.0 * size
}

// DrawImage places an image stream into the rectangle (x, y, w, h).
func (p *PageBuilder) DrawImage(im ImageStream, x, y, w, h float64) *PageBuilder {
	if p.doc.err != nil {
		return p
	}
	if im.Width <= 0 || im.Height <= 0 || len(im.Data) == 0 {
		p.doc.err = fmt.Errorf("draw image: empty image")
		return p
	}
	resource := fmt.Sprintf("Im%d", len(p.images)+1)
	p.images = append(p.images, placedImage{resource: resource, stream: im})
	fmt.Fprintf(&p.content, "q %s 0 0 %s %s %s cm /%s Do Q\n",
		num(w), num(h), num(x), num(y), resource)
	return p
}

// Build assembles the accumulated pages into a raw document.
func (b *DocumentBuilder) Build() (*raw.Document, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.entries) == 0 {
		return nil, fmt.Errorf("build: document has no pages")
	}

	objects := make(map[raw.ObjectRef]raw.Object)
	next := 0
	alloc := func() raw.ObjectRef {
		next++
		return raw.ObjectRef{Num: next}
	}

	catalogRef := alloc()
	pagesRef := alloc()

	// Embed every registered font once; pages reference the same objects.
	fontRefs := make(map[string]raw.ObjectRef, len(b.fonts))
	for name, reg := range b.fonts {
		ref, err := embedTrueType(objects, alloc, reg, b.compress)
		if err != nil {
			return nil, fmt.Errorf("embed font %q: %w", name, err)
		}
		fontRefs[name] = ref
	}
	helveticaRef := alloc()
	objects[helveticaRef] = builtinHelvetica()

	kids := raw.NewArray()
	for _, entry := range b.entries {
		var pageRef raw.ObjectRef
		var err error
		if entry.imported != nil {
			pageRef, err = entry.imported.copyInto(objects, alloc, pagesRef)
		} else {
			pageRef, err = entry.page.build(objects, alloc, pagesRef, helveticaRef, fontRefs, b.compress)
		}
		if err != nil {
			return nil, err
		}
		kids.Items = append(kids.Items, raw.Ref(pageRef.Num, 0))
	}

	pages := raw.Dict()
	pages.Set(raw.NameLiteral("Type"), raw.NameLiteral("Pages"))
	pages.Set(raw.NameLiteral("Kids"), kids)
	pages.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(len(b.entries))))
	objects[pagesRef] = pages

	catalog := raw.Dict()
	catalog.Set(raw.NameLiteral("Type"), raw.NameLiteral("Catalog"))
	catalog.Set(raw.NameLiteral("Pages"), raw.Ref(pagesRef.Num, 0))
	objects[catalogRef] = catalog

	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Root"), raw.Ref(catalogRef.Num, 0))

	meta := raw.DocumentMetadata{
		Title:    b.info["Title"],
		Author:   b.info["Author"],
		Subject:  b.info["Subject"],
		Creator:  b.info["Creator"],
		Producer: b.info["Producer"],
	}
	if len(b.info) > 0 {
		infoDict := raw.Dict()
		for key, value := range b.info {
			infoDict.Set(raw.NameLiteral(key), raw.Str([]byte(value)))
		}
		infoRef := alloc()
		objects[infoRef] = infoDict
		trailer.Set(raw.NameLiteral("Info"), raw.Ref(infoRef.Num, 0))
	}

	return &raw.Document{
		Objects:  objects,
		Trailer:  trailer,
		Version:  "1.7",
		Metadata: meta,
	}, nil
}

func (p *PageBuilder) build(objects map[raw.ObjectRef]raw.Object, alloc func() raw.ObjectRef,
	pagesRef, helveticaRef raw.ObjectRef, fontRefs map[string]raw.ObjectRef, compress bool) (raw.ObjectRef, error) {

	contentRef := alloc()
	data := p.content.Bytes()
	csDict := raw.Dict()
	if compress && len(data) > 0 {
		compressed, err := filters.FlateEncode(data)
		if err != nil {
			return raw.ObjectRef{}, fmt.Errorf("compress content: %w", err)
		}
		csDict.Set(raw.NameLiteral("Filter"), raw.NameLiteral("FlateDecode"))
		data = compressed
	}
	objects[contentRef] = raw.NewStream(csDict, data)

	fontsDict := raw.Dict()
	for name := range p.usedFonts {
		if name == "" {
			fontsDict.Set(raw.NameLiteral(defaultFontResource), raw.Ref(helveticaRef.Num, 0))
			continue
		}
		reg := p.doc.fonts[name]
		fontsDict.Set(raw.NameLiteral(reg.resource), raw.Ref(fontRefs[name].Num, 0))
	}

	xobjects := raw.Dict()
	for _, placed := range p.images {
		ref, err := placed.stream.embed(objects, alloc)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		xobjects.Set(raw.NameLiteral(placed.resource), raw.Ref(ref.Num, 0))
	}

	resources := raw.Dict()
	if len(fontsDict.KV) > 0 {
		resources.Set(raw.NameLiteral("Font"), fontsDict)
	}
	if len(xobjects.KV) > 0 {
		resources.Set(raw.NameLiteral("XObject"), xobjects)
	}

	page := raw.Dict()
	page.Set(raw.NameLiteral("Type"), raw.NameLiteral("Page"))
	page.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, 0))
	page.Set(raw.NameLiteral("MediaBox"), raw.NewArray(
		raw.NumberInt(0), raw.NumberInt(0),
		raw.NumberFloat(p.width), raw.NumberFloat(p.height)))
	page.Set(raw.NameLiteral("Resources"), resources)
	page.Set(raw.NameLiteral("Contents"), raw.Ref(contentRef.Num, 0))

	pageRef := alloc()
	objects[pageRef] = page
	return pageRef, nil
}

// encodeWinAnsi renders text as an escaped literal string, replacing runes
// outside Latin-1 with '?'.
func encodeWinAnsi(text string) []byte {
	var b bytes.Buffer
	b.WriteByte('(')
	for _, r := range text {
		c := byte('?')
		if r < 0x100 {
			c = byte(r)
		}
		switch c {
		case '\\', '(', ')':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.Bytes()
}

// encodeIdentityH shapes text and renders the glyph IDs as a hex string.
// Used glyphs are recorded for the font's W array and ToUnicode map.
func encodeIdentityH(reg *registeredFont, text string) ([]byte, error) {
	glyphs, err := fonts.Shape(reg.font, text)
	if err != nil {
		return nil, err
	}
	if len(glyphs) == 0 {
		return nil, fmt.Errorf("no glyphs for %q", text)
	}
	runes := []rune(text)
	var b bytes.Buffer
	b.WriteByte('<')
	for _, g := range glyphs {
		fmt.Fprintf(&b, "%04X", g.GID)
		if _, seen := reg.usedGIDs[g.GID]; !seen && g.Cluster < len(runes) {
			reg.usedGIDs[g.GID] = runes[g.Cluster]
		}
	}
	b.WriteByte('>')
	return b.Bytes(), nil
}

// num formats a coordinate with enough precision for layout without ever
// using exponent notation.
func num(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}
