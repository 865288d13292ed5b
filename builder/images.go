package builder

import (
	"fmt"
	"image"

	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/ir/raw"
)

// ImageStream is pre-encoded image data ready to become an image XObject.
// Filter names the single decode filter applied to Data, or is empty for raw
// samples.
type ImageStream struct {
	Width            int
	Height           int
	ColorSpace       string // DeviceRGB or DeviceGray
	BitsPerComponent int
	Filter           string // FlateDecode or DCTDecode
	Data             []byte
	SMask            *ImageStream
}

// FromImage converts a decoded image into a Flate-compressed DeviceRGB
// stream, with a DeviceGray soft mask when the image carries alpha.
func FromImage(img image.Image) (ImageStream, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return ImageStream{}, fmt.Errorf("image has no pixels")
	}

	rgb := make([]byte, 0, w*h*3)
	var alpha []byte
	hasAlpha := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			rgb = append(rgb, byte(r>>8), byte(g>>8), byte(b>>8))
			alpha = append(alpha, byte(a>>8))
			if a>>8 != 0xFF {
				hasAlpha = true
			}
		}
	}

	compressed, err := filters.FlateEncode(rgb)
	if err != nil {
		return ImageStream{}, fmt.Errorf("compress image: %w", err)
	}
	im := ImageStream{
		Width:            w,
		Height:           h,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Filter:           "FlateDecode",
		Data:             compressed,
	}

	if hasAlpha {
		maskData, err := filters.FlateEncode(alpha)
		if err != nil {
			return ImageStream{}, fmt.Errorf("compress mask: %w", err)
		}
		im.SMask = &ImageStream{
			Width:            w,
			Height:           h,
			ColorSpace:       "DeviceGray",
			BitsPerComponent: 8,
			Filter:           "FlateDecode",
			Data:             maskData,
		}
	}
	return im, nil
}

// embed writes the image and any soft mask as stream objects.
func (im ImageStream) embed(objects map[raw.ObjectRef]raw.Object, alloc func() raw.ObjectRef) (raw.ObjectRef, error) {
	dict := raw.Dict()
	dict.Set(raw.NameLiteral("Type"), raw.NameLiteral("XObject"))
	dict.Set(raw.NameLiteral("Subtype"), raw.NameLiteral("Image"))
	dict.Set(raw.NameLiteral("Width"), raw.NumberInt(int64(im.Width)))
	dict.Set(raw.NameLiteral("Height"), raw.NumberInt(int64(im.Height)))
	colorSpace := im.ColorSpace
	if colorSpace == "" {
		colorSpace = "DeviceRGB"
	}
	dict.Set(raw.NameLiteral("ColorSpace"), raw.NameLiteral(colorSpace))
	bpc := im.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	dict.Set(raw.NameLiteral("BitsPerComponent"), raw.NumberInt(int64(bpc)))
	if im.Filter != "" {
		dict.Set(raw.NameLiteral("Filter"), raw.NameLiteral(im.Filter))
	}

	if im.SMask != nil {
		maskRef, err := im.SMask.embed(objects, alloc)
		if err != nil {
			return raw.ObjectRef{}, err
		}
		dict.Set(raw.NameLiteral("SMask"), raw.Ref(maskRef.Num, 0))
	}

	ref := alloc()
	objects[ref] = raw.NewStream(dict, im.Data)
	return ref, nil
}
