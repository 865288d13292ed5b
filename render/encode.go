package render

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/hyeonwoo/redactkit/filters"
	"github.com/hyeonwoo/redactkit/security"
)

const jpegQuality = 85

// Encoded is a rendered page ready for embedding as an image XObject.
type Encoded struct {
	Width            int
	Height           int
	ColorSpace       string
	Filter           string // FlateDecode or DCTDecode
	BitsPerComponent int
	Data             []byte
}

// EncodePage compresses a rendered page, picking whichever of Flate and JPEG
// comes out smaller. Scanned pages with photographic content favor JPEG;
// mostly-white text pages compress far better losslessly.
func EncodePage(img image.Image, limits security.Limits) (Encoded, error) {
	limits = limits.OrDefault()
	img = capPixels(img, limits.MaxRasterPixels)
	bounds := img.Bounds()

	raw := rgbSamples(img)
	flated, err := filters.FlateEncode(raw)
	if err != nil {
		return Encoded{}, fmt.Errorf("flate page: %w", err)
	}

	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Encoded{}, fmt.Errorf("jpeg page: %w", err)
	}

	out := Encoded{
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
	}
	if len(flated) <= jpg.Len() {
		out.Filter = "FlateDecode"
		out.Data = flated
	} else {
		out.Filter = "DCTDecode"
		out.Data = jpg.Bytes()
	}
	return out, nil
}

// capPixels downscales images that slipped past the render-time limit.
func capPixels(img image.Image, maxPixels int64) image.Image {
	bounds := img.Bounds()
	pixels := int64(bounds.Dx()) * int64(bounds.Dy())
	if maxPixels <= 0 || pixels <= maxPixels {
		return img
	}
	factor := math.Sqrt(float64(maxPixels) / float64(pixels))
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}

// rgbSamples flattens an image into packed 8-bit RGB rows.
func rgbSamples(img image.Image) []byte {
	bounds := img.Bounds()
	out := make([]byte, 0, bounds.Dx()*bounds.Dy()*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	return out
}
