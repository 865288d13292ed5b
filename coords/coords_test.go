package coords

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestToPDFSpaceWorkedExample(t *testing.T) {
	// Rectangle drawn in a preview zoomed to 1.5x on a page 800 points tall.
	r := RenderRect{X: 100, Y: 50, W: 80, H: 20}
	p, err := ToPDFSpace(r, 1.5, 800)
	if err != nil {
		t.Fatalf("ToPDFSpace: %v", err)
	}
	if !almostEqual(p.X, 66.67, 0.01) {
		t.Errorf("X = %v, want 66.67", p.X)
	}
	if !almostEqual(p.W, 53.33, 0.01) {
		t.Errorf("W = %v, want 53.33", p.W)
	}
	if !almostEqual(p.H, 13.33, 0.01) {
		t.Errorf("H = %v, want 13.33", p.H)
	}
	// 800 - 33.33 - 13.33
	if !almostEqual(p.Y, 753.34, 0.01) {
		t.Errorf("Y = %v, want 753.34", p.Y)
	}
}

func TestToPDFSpaceScaleOne(t *testing.T) {
	p, err := ToPDFSpace(RenderRect{X: 10, Y: 20, W: 30, H: 40}, 1.0, 842)
	if err != nil {
		t.Fatalf("ToPDFSpace: %v", err)
	}
	want := PdfRect{X: 10, Y: 842 - 20 - 40, W: 30, H: 40}
	if p != want {
		t.Errorf("got %+v, want %+v", p, want)
	}
}

func TestRenderSpaceRoundTrip(t *testing.T) {
	cases := []struct {
		r      RenderRect
		scale  float64
		height float64
	}{
		{RenderRect{X: 0, Y: 0, W: 100, H: 50}, 1.0, 842},
		{RenderRect{X: 12.5, Y: 700, W: 3, H: 9}, 2.0, 842},
		{RenderRect{X: 100, Y: 50, W: 80, H: 20}, 1.5, 800},
		{RenderRect{X: 301.25, Y: 88.8, W: 41.1, H: 14.4}, 0.75, 595.28},
	}
	for _, tc := range cases {
		p, err := ToPDFSpace(tc.r, tc.scale, tc.height)
		if err != nil {
			t.Fatalf("ToPDFSpace(%+v): %v", tc.r, err)
		}
		back, err := ToRenderSpace(p, tc.scale, tc.height)
		if err != nil {
			t.Fatalf("ToRenderSpace(%+v): %v", p, err)
		}
		for name, pair := range map[string][2]float64{
			"X": {back.X, tc.r.X}, "Y": {back.Y, tc.r.Y},
			"W": {back.W, tc.r.W}, "H": {back.H, tc.r.H},
		} {
			if !almostEqual(pair[0], pair[1], 1e-6) {
				t.Errorf("round trip %s: got %v, want %v", name, pair[0], pair[1])
			}
		}
	}
}

func TestInvalidScaleRejected(t *testing.T) {
	if _, err := ToPDFSpace(RenderRect{W: 10, H: 10}, 0, 842); err != ErrInvalidScale {
		t.Errorf("scale 0: err = %v, want ErrInvalidScale", err)
	}
	if _, err := ToRenderSpace(PdfRect{W: 10, H: 10}, -1, 842); err != ErrInvalidScale {
		t.Errorf("scale -1: err = %v, want ErrInvalidScale", err)
	}
}

func TestMatrixInverse(t *testing.T) {
	m := Translate(5, -3).Multiply(Scale(2, 4))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	p := m.Transform(Point{X: 1.5, Y: 2.5})
	back := inv.Transform(p)
	if !almostEqual(back.X, 1.5, 1e-9) || !almostEqual(back.Y, 2.5, 1e-9) {
		t.Errorf("inverse round trip: got %+v", back)
	}
}

func TestMatrixSingular(t *testing.T) {
	if _, err := (Matrix{0, 0, 0, 0, 1, 2}).Inverse(); err == nil {
		t.Error("expected error for singular matrix")
	}
}
