// Package coords provides the coordinate systems used by the redaction
// pipelines: affine matrices for content-stream geometry, and conversions
// between the top-left-origin render space used by previews and the
// bottom-left-origin native PDF page space.
package coords

import (
	"errors"
	"math"
)

// Matrix is a PDF affine transform [a b c d e f].
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

type Point struct{ X, Y float64 }

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }
func Rotate(angle float64) Matrix {
	c := math.Cos(angle)
	s := math.Sin(angle)
	return Matrix{c, s, -s, c, 0, 0}
}

// RenderRect is a rectangle in render space: origin at the top-left corner of
// the page, y growing downward, dimensions multiplied by the render scale.
type RenderRect struct {
	X, Y, W, H float64
}

// PdfRect is a rectangle in native page space: origin at the bottom-left
// corner, y growing upward, scale 1.0 (PDF points). X,Y is the lower-left
// corner of the rectangle.
type PdfRect struct {
	X, Y, W, H float64
}

var ErrInvalidScale = errors.New("coords: render scale must be positive")

// ToPDFSpace converts a render-space rectangle drawn at renderScale into the
// page's native space. pageHeight is the native page height (scale 1.0).
func ToPDFSpace(r RenderRect, renderScale, pageHeight float64) (PdfRect, error) {
	if renderScale <= 0 {
		return PdfRect{}, ErrInvalidScale
	}
	w := r.W / renderScale
	h := r.H / renderScale
	return PdfRect{
		X: r.X / renderScale,
		Y: pageHeight - r.Y/renderScale - h,
		W: w,
		H: h,
	}, nil
}

// ToRenderSpace is the inverse of ToPDFSpace: it projects a native-space
// rectangle into render space at the given scale.
func ToRenderSpace(p PdfRect, renderScale, pageHeight float64) (RenderRect, error) {
	if renderScale <= 0 {
		return RenderRect{}, ErrInvalidScale
	}
	return RenderRect{
		X: p.X * renderScale,
		Y: (pageHeight - p.Y - p.H) * renderScale,
		W: p.W * renderScale,
		H: p.H * renderScale,
	}, nil
}
