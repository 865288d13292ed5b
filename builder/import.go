package builder

import (
	"fmt"

	"github.com/hyeonwoo/redactkit/ir/raw"
)

// ImportPage appends a page copied from an already parsed document. The page
// dictionary and everything it references transitively come across with fresh
// object numbers; only the Parent link is rewritten to the new page tree.
func (b *DocumentBuilder) ImportPage(src *raw.Document, pageRef raw.ObjectRef) *DocumentBuilder {
	if b.err != nil {
		return b
	}
	if src == nil {
		b.err = fmt.Errorf("import page: nil source document")
		return b
	}
	b.entries = append(b.entries, pageEntry{imported: &importedPage{src: src, ref: pageRef}})
	return b
}

type importedPage struct {
	src *raw.Document
	ref raw.ObjectRef
}

func (ip *importedPage) copyInto(objects map[raw.ObjectRef]raw.Object, alloc func() raw.ObjectRef,
	pagesRef raw.ObjectRef) (raw.ObjectRef, error) {

	srcPage, ok := lookup(ip.src, ip.ref)
	if !ok {
		return raw.ObjectRef{}, fmt.Errorf("import page: object %v not in source", ip.ref)
	}
	pageDict, ok := srcPage.(*raw.DictObj)
	if !ok {
		return raw.ObjectRef{}, fmt.Errorf("import page: object %v is not a dictionary", ip.ref)
	}

	c := &copier{src: ip.src, dst: objects, alloc: alloc, memo: make(map[raw.ObjectRef]raw.ObjectRef)}

	newPage := raw.Dict()
	for _, key := range pageDict.Keys() {
		if key.Value() == "Parent" {
			continue
		}
		v, _ := pageDict.Get(key)
		copied, err := c.copy(v, 0)
		if err != nil {
			return raw.ObjectRef{}, fmt.Errorf("import page: %w", err)
		}
		newPage.Set(key, copied)
	}
	newPage.Set(raw.NameLiteral("Parent"), raw.Ref(pagesRef.Num, 0))

	ref := alloc()
	objects[ref] = newPage
	return ref, nil
}

type copier struct {
	src   *raw.Document
	dst   map[raw.ObjectRef]raw.Object
	alloc func() raw.ObjectRef
	memo  map[raw.ObjectRef]raw.ObjectRef
}

const maxCopyDepth = 100

// copy duplicates an object graph, remapping indirect references. The memo is
// filled before recursing so self-referential graphs terminate.
func (c *copier) copy(obj raw.Object, depth int) (raw.Object, error) {
	if depth > maxCopyDepth {
		return nil, fmt.Errorf("object graph too deep")
	}
	switch v := obj.(type) {
	case raw.Reference:
		srcRef := v.Ref()
		if mapped, ok := c.memo[srcRef]; ok {
			return raw.Ref(mapped.Num, 0), nil
		}
		target, ok := lookup(c.src, srcRef)
		if !ok {
			// Dangling refs become null rather than failing the import.
			return raw.Null(), nil
		}
		newRef := c.alloc()
		c.memo[srcRef] = newRef
		copied, err := c.copy(target, depth+1)
		if err != nil {
			return nil, err
		}
		c.dst[newRef] = copied
		return raw.Ref(newRef.Num, 0), nil
	case *raw.DictObj:
		out := raw.Dict()
		for _, key := range v.Keys() {
			item, _ := v.Get(key)
			copied, err := c.copy(item, depth+1)
			if err != nil {
				return nil, err
			}
			out.Set(key, copied)
		}
		return out, nil
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, item := range v.Items {
			copied, err := c.copy(item, depth+1)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, copied)
		}
		return out, nil
	case *raw.StreamObj:
		dictCopy, err := c.copy(v.Dict, depth+1)
		if err != nil {
			return nil, err
		}
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return raw.NewStream(dictCopy.(*raw.DictObj), data), nil
	default:
		// Scalars are immutable values.
		return obj, nil
	}
}

func lookup(doc *raw.Document, ref raw.ObjectRef) (raw.Object, bool) {
	if obj, ok := doc.Objects[ref]; ok {
		return obj, true
	}
	obj, ok := doc.Objects[raw.ObjectRef{Num: ref.Num}]
	return obj, ok
}
