package render

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/observability"
)

// imageResource resolves an image XObject from the page resources and decodes
// it. Returns nil for forms, masks, unsupported color spaces, or decode
// failures.
func (r *Rasterizer) imageResource(ctx context.Context, page *semantic.Page, name string) image.Image {
	if page.Resources == nil {
		return nil
	}
	xobjObj, ok := page.Resources.Get(raw.NameLiteral("XObject"))
	if !ok {
		return nil
	}
	xobjects, ok := r.derefDict(xobjObj)
	if !ok {
		return nil
	}
	entry, ok := xobjects.Get(raw.NameLiteral(name))
	if !ok {
		return nil
	}
	stream, ok := r.deref(entry).(*raw.StreamObj)
	if !ok {
		return nil
	}
	if subtype, _ := raw.DictName(stream.Dict, "Subtype"); subtype != "Image" {
		return nil
	}

	img, err := r.decodeImage(ctx, stream)
	if err != nil {
		r.cfg.Logger.Warn("image xobject skipped",
			observability.String("name", name), observability.Error("err", err))
		return nil
	}
	return img
}

// decodeImage converts an image XObject stream into an image.Image. JPEG data
// goes straight to the codec; everything else is run through the filter
// pipeline and reassembled from raw samples.
func (r *Rasterizer) decodeImage(ctx context.Context, stream *raw.StreamObj) (image.Image, error) {
	if hasFilter(stream.Dict, "DCTDecode") {
		return jpeg.Decode(bytes.NewReader(stream.Data))
	}

	data, err := r.pipeline.DecodeStream(ctx, stream)
	if err != nil {
		return nil, err
	}

	w, _ := raw.DictInt(stream.Dict, "Width")
	h, _ := raw.DictInt(stream.Dict, "Height")
	width, height := int(w), int(h)
	if width <= 0 || height <= 0 {
		return nil, errBadImage("dimensions")
	}
	bpc, ok := raw.DictInt(stream.Dict, "BitsPerComponent")
	if !ok {
		bpc = 8
	}
	if bpc != 8 {
		return nil, errBadImage("bits per component")
	}

	space, _ := raw.DictName(stream.Dict, "ColorSpace")
	switch space {
	case "DeviceGray":
		return grayImage(data, width, height)
	case "DeviceRGB":
		return rgbImage(data, width, height)
	default:
		return nil, errBadImage("color space " + space)
	}
}

func grayImage(data []byte, width, height int) (image.Image, error) {
	if len(data) < width*height {
		return nil, errBadImage("truncated gray samples")
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		copy(img.Pix[y*img.Stride:], data[y*width:(y+1)*width])
	}
	return img, nil
}

func rgbImage(data []byte, width, height int) (image.Image, error) {
	if len(data) < width*height*3 {
		return nil, errBadImage("truncated rgb samples")
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	i := 0
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			row[x*4+0] = data[i]
			row[x*4+1] = data[i+1]
			row[x*4+2] = data[i+2]
			row[x*4+3] = 0xFF
			i += 3
		}
	}
	return img, nil
}

// hasFilter reports whether the stream's filter chain includes name.
func hasFilter(dict *raw.DictObj, name string) bool {
	obj, ok := dict.Get(raw.NameLiteral("Filter"))
	if !ok {
		return false
	}
	switch v := obj.(type) {
	case raw.NameObj:
		return v.Value() == name
	case *raw.ArrayObj:
		for _, item := range v.Items {
			if n, ok := item.(raw.NameObj); ok && n.Value() == name {
				return true
			}
		}
	}
	return false
}

func (r *Rasterizer) deref(obj raw.Object) raw.Object {
	for depth := 0; depth < r.cfg.Limits.MaxIndirectDepth; depth++ {
		ref, ok := obj.(raw.Reference)
		if !ok {
			return obj
		}
		next, ok := r.doc.Raw.Objects[ref.Ref()]
		if !ok {
			next, ok = r.doc.Raw.Objects[raw.ObjectRef{Num: ref.Ref().Num}]
			if !ok {
				return nil
			}
		}
		obj = next
	}
	return nil
}

func (r *Rasterizer) derefDict(obj raw.Object) (*raw.DictObj, bool) {
	d, ok := r.deref(obj).(*raw.DictObj)
	return d, ok
}

type errBadImage string

func (e errBadImage) Error() string { return "unsupported image: " + string(e) }
