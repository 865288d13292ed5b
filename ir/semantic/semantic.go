// Package semantic interprets the raw object graph as a document with pages:
// it walks the page tree, applies attribute inheritance, and decodes page
// content streams.
package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/security"
)

// Rectangle represents a PDF rectangle in default user space.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Page models a single page. Contents holds the decoded, concatenated content
// streams; RawDict keeps the original page dictionary for callers that modify
// the document in place.
type Page struct {
	Number    int // 1-based
	MediaBox  Rectangle
	Rotate    int // degrees: 0/90/180/270
	Resources *raw.DictObj
	Contents  []byte
	RawDict   *raw.DictObj
	Ref       raw.ObjectRef
}

// Document is the page-level view of a parsed file.
type Document struct {
	Pages []*Page
	Raw   *raw.Document
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.Pages) }

// Page returns the page with the given 1-based number.
func (d *Document) Page(number int) (*Page, error) {
	if number < 1 || number > len(d.Pages) {
		return nil, fmt.Errorf("page %d out of range (1..%d)", number, len(d.Pages))
	}
	return d.Pages[number-1], nil
}

type resolver struct {
	doc      *raw.Document
	maxDepth int
}

// resolve follows reference chains through the object table.
func (r resolver) resolve(obj raw.Object) (raw.Object, error) {
	for depth := 0; ; depth++ {
		if depth > r.maxDepth {
			return nil, errors.New("reference chain too deep")
		}
		ref, ok := obj.(raw.Reference)
		if !ok {
			return obj, nil
		}
		next, ok := r.doc.Objects[ref.Ref()]
		if !ok {
			// Some writers emit gen-0 refs to regenerated objects.
			next, ok = r.doc.Objects[raw.ObjectRef{Num: ref.Ref().Num}]
			if !ok {
				return nil, fmt.Errorf("unresolved reference %v", ref.Ref())
			}
		}
		obj = next
	}
}

func (r resolver) resolveDict(obj raw.Object) (*raw.DictObj, bool) {
	resolved, err := r.resolve(obj)
	if err != nil {
		return nil, false
	}
	d, ok := resolved.(*raw.DictObj)
	return d, ok
}

func (r resolver) resolveArray(obj raw.Object) (*raw.ArrayObj, bool) {
	resolved, err := r.resolve(obj)
	if err != nil {
		return nil, false
	}
	a, ok := resolved.(*raw.ArrayObj)
	return a, ok
}

// Build walks the catalog's page tree and materializes pages with decoded
// content.
func Build(ctx context.Context, doc *raw.Document, limits security.Limits) (*Document, error) {
	limits = limits.OrDefault()
	if doc.Trailer == nil {
		return nil, errors.New("document has no trailer")
	}
	res := resolver{doc: doc, maxDepth: limits.MaxIndirectDepth}

	rootObj, ok := doc.Trailer.Get(raw.NameLiteral("Root"))
	if !ok {
		return nil, errors.New("trailer has no Root")
	}
	catalog, ok := res.resolveDict(rootObj)
	if !ok {
		return nil, errors.New("catalog is not a dictionary")
	}
	pagesObj, ok := catalog.Get(raw.NameLiteral("Pages"))
	if !ok {
		return nil, errors.New("catalog has no Pages")
	}

	pipeline := filters.NewDefaultPipeline(filters.Limits{
		MaxDecompressedSize: limits.MaxDecompressedSize,
		MaxDecodeTime:       limits.MaxDecodeTime,
	})

	b := &treeBuilder{res: res, pipeline: pipeline, ctx: ctx}
	if err := b.walk(pagesObj, inherited{}, 0); err != nil {
		return nil, err
	}
	if len(b.pages) == 0 {
		return nil, errors.New("document has no pages")
	}
	for i, p := range b.pages {
		p.Number = i + 1
	}
	return &Document{Pages: b.pages, Raw: doc}, nil
}

type inherited struct {
	mediaBox  *Rectangle
	rotate    *int
	resources raw.Object
}

type treeBuilder struct {
	res      resolver
	pipeline *filters.Pipeline
	ctx      context.Context
	pages    []*Page
}

func (b *treeBuilder) walk(obj raw.Object, inh inherited, depth int) error {
	if depth > b.res.maxDepth {
		return errors.New("page tree too deep")
	}

	var pageRef raw.ObjectRef
	if ref, ok := obj.(raw.Reference); ok {
		pageRef = ref.Ref()
	}
	dict, ok := b.res.resolveDict(obj)
	if !ok {
		return errors.New("page tree node is not a dictionary")
	}

	if mbObj, ok := dict.Get(raw.NameLiteral("MediaBox")); ok {
		if mb := rectangleFromObj(b.res, mbObj); mb != nil {
			inh.mediaBox = mb
		}
	}
	if rotObj, ok := dict.Get(raw.NameLiteral("Rotate")); ok {
		if n, ok := rotObj.(raw.NumberObj); ok {
			v := normalizeRotation(int(n.Int()))
			inh.rotate = &v
		}
	}
	if resObj, ok := dict.Get(raw.NameLiteral("Resources")); ok {
		inh.resources = resObj
	}

	typ, _ := raw.DictName(dict, "Type")
	_, hasKids := dict.Get(raw.NameLiteral("Kids"))
	if typ == "Page" || (typ != "Pages" && !hasKids) {
		page, err := b.buildPage(dict, pageRef, inh)
		if err != nil {
			return err
		}
		b.pages = append(b.pages, page)
		return nil
	}

	kidsObj, ok := dict.Get(raw.NameLiteral("Kids"))
	if !ok {
		return errors.New("pages node missing Kids")
	}
	kids, ok := b.res.resolveArray(kidsObj)
	if !ok {
		return errors.New("Kids is not an array")
	}
	for _, kid := range kids.Items {
		if err := b.walk(kid, inh, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (b *treeBuilder) buildPage(dict *raw.DictObj, ref raw.ObjectRef, inh inherited) (*Page, error) {
	page := &Page{RawDict: dict, Ref: ref}

	if inh.mediaBox != nil {
		page.MediaBox = *inh.mediaBox
	} else {
		page.MediaBox = Rectangle{0, 0, 612, 792} // Letter default
	}
	if inh.rotate != nil {
		page.Rotate = *inh.rotate
	}
	if inh.resources != nil {
		if resDict, ok := b.res.resolveDict(inh.resources); ok {
			page.Resources = resDict
		}
	}

	if contentsObj, ok := dict.Get(raw.NameLiteral("Contents")); ok {
		data, err := b.decodeContents(contentsObj)
		if err != nil {
			return nil, fmt.Errorf("page contents: %w", err)
		}
		page.Contents = data
	}
	return page, nil
}

// decodeContents concatenates one or more content streams with a separating
// space, as viewers do.
func (b *treeBuilder) decodeContents(obj raw.Object) ([]byte, error) {
	resolved, err := b.res.resolve(obj)
	if err != nil {
		return nil, err
	}
	var out []byte
	appendStream := func(st *raw.StreamObj) error {
		data, err := b.pipeline.DecodeStream(b.ctx, st)
		if err != nil {
			return err
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, data...)
		return nil
	}

	switch v := resolved.(type) {
	case *raw.StreamObj:
		if err := appendStream(v); err != nil {
			return nil, err
		}
	case *raw.ArrayObj:
		for _, item := range v.Items {
			itemResolved, err := b.res.resolve(item)
			if err != nil {
				return nil, err
			}
			st, ok := itemResolved.(*raw.StreamObj)
			if !ok {
				continue
			}
			if err := appendStream(st); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("Contents is not a stream or array, got %T", resolved)
	}
	return out, nil
}

func rectangleFromObj(res resolver, obj raw.Object) *Rectangle {
	arr, ok := res.resolveArray(obj)
	if !ok {
		return nil
	}
	var nums []float64
	for _, item := range arr.Items {
		if n, ok := item.(raw.NumberObj); ok {
			nums = append(nums, n.Float())
		}
	}
	if len(nums) < 4 {
		return nil
	}
	// Normalize so LL is really lower-left.
	llx, urx := nums[0], nums[2]
	if llx > urx {
		llx, urx = urx, llx
	}
	lly, ury := nums[1], nums[3]
	if lly > ury {
		lly, ury = ury, lly
	}
	return &Rectangle{LLX: llx, LLY: lly, URX: urx, URY: ury}
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return (deg / 90) * 90
}
