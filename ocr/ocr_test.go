package ocr

import (
	"image"
	"testing"
)

func TestInputFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	meta := map[string]string{"psm": "6"}
	region := Region{X: 0, Y: 0, Width: 2, Height: 2}

	in, err := InputFromImage(3, img,
		WithLanguages("kor", "eng"),
		WithRegion(region),
		WithDPI(300),
		WithMetadata(meta),
	)
	if err != nil {
		t.Fatalf("InputFromImage: %v", err)
	}
	if in.ID != "page-3" || in.Page != 3 {
		t.Errorf("identity = %q/%d", in.ID, in.Page)
	}
	if in.Format != ImageFormatPNG || len(in.Image) == 0 {
		t.Errorf("payload = %v (%d bytes)", in.Format, len(in.Image))
	}
	if len(in.Languages) != 2 || in.Languages[0] != "kor" {
		t.Errorf("languages = %v", in.Languages)
	}
	if in.Region == nil || *in.Region != region {
		t.Errorf("region = %#v", in.Region)
	}
	if in.DPI != 300 {
		t.Errorf("dpi = %d", in.DPI)
	}
	meta["psm"] = "7"
	if in.Metadata["psm"] != "6" {
		t.Errorf("metadata not copied: %v", in.Metadata)
	}
}

func TestWithRegionClearsEmpty(t *testing.T) {
	in := Input{Region: &Region{X: 1, Y: 1, Width: 2, Height: 2}}
	WithRegion(Region{})(&in)
	if in.Region != nil {
		t.Errorf("empty region kept: %#v", in.Region)
	}
}

func TestTesseractOptions(t *testing.T) {
	in := Input{}
	WithTesseractPSM(6)(&in)
	if got := in.Metadata["tessedit_pageseg_mode"]; got != "6" {
		t.Errorf("psm = %q", got)
	}
	WithTesseractWhitelist("0123456789")(&in)
	if got := in.Metadata["tessedit_char_whitelist"]; got != "0123456789" {
		t.Errorf("whitelist = %q", got)
	}
}

func TestFragmentsFromResult(t *testing.T) {
	res := Result{
		Blocks: []TextBlock{{
			Lines: []TextLine{{
				Words: []TextWord{
					{Text: "연봉", Bounds: Region{X: 30, Y: 60, Width: 60, Height: 24}},
					{Text: "", Bounds: Region{X: 0, Y: 0, Width: 5, Height: 5}},
					{Text: "3,500만원", Bounds: Region{X: 120, Y: 60, Width: 150, Height: 24}},
				},
			}},
		}},
	}
	frags := FragmentsFromResult(res, 2, 3.0)
	if len(frags) != 2 {
		t.Fatalf("fragments = %+v", frags)
	}
	first := frags[0]
	if first.Page != 2 || first.Text != "연봉" {
		t.Errorf("first = %+v", first)
	}
	if first.X != 10 || first.Y != 20 || first.W != 20 || first.H != 8 {
		t.Errorf("bounds not descaled: %+v", first)
	}
}

func TestFragmentsFromResultBadScale(t *testing.T) {
	if got := FragmentsFromResult(Result{}, 1, 0); got != nil {
		t.Errorf("got %+v", got)
	}
}
