package svgpath

import (
	"fmt"
	"math"
)

// Matrix2D represents an SVG style matrix
//
//	| A C E |
//	| B D F |
//	| 0 0 1 |
type Matrix2D struct {
	A, B, C, D, E, F float64
}

// Identity is the identity matrix
var Identity = Matrix2D{1, 0, 0, 1, 0, 0}

// NewTranslation returns the translation by (x, y).
func NewTranslation(x, y float64) Matrix2D { return Matrix2D{1, 0, 0, 1, x, y} }

// NewScale returns the scaling by (x, y).
func NewScale(x, y float64) Matrix2D { return Matrix2D{x, 0, 0, y, 0, 0} }

// Mult returns a*b, that is the transformation applying b then a.
func (a Matrix2D) Mult(b Matrix2D) Matrix2D {
	return Matrix2D{
		A: a.A*b.A + a.C*b.B,
		B: a.B*b.A + a.D*b.B,
		C: a.A*b.C + a.C*b.D,
		D: a.B*b.C + a.D*b.D,
		E: a.A*b.E + a.C*b.F + a.E,
		F: a.B*b.E + a.D*b.F + a.F,
	}
}

// Det returns the determinant of the linear part.
func (a Matrix2D) Det() float64 { return a.A*a.D - a.B*a.C }

// IsSingular returns true if the matrix can't be inverted,
// which means that content transformed by it is not visible.
func (a Matrix2D) IsSingular() bool {
	d := a.Det()
	return d == 0 || math.IsNaN(d) || math.IsInf(d, 0)
}

// IsIdentity returns true for the identity matrix.
func (a Matrix2D) IsIdentity() bool { return a == Identity }

// Invert returns the inverse matrix. The result is
// meaningless if `a` is singular.
func (a Matrix2D) Invert() Matrix2D {
	det := a.Det()
	return Matrix2D{
		A: a.D / det,
		B: -a.B / det,
		C: -a.C / det,
		D: a.A / det,
		E: (a.C*a.F - a.D*a.E) / det,
		F: (a.B*a.E - a.A*a.F) / det,
	}
}

// Transform multiples the input vector by matrix m and outputs the results vector
// components.
func (a Matrix2D) Transform(x1, y1 float64) (x2, y2 float64) {
	x2 = x1*a.A + y1*a.C + a.E
	y2 = x1*a.B + y1*a.D + a.F
	return
}

// TransformVector is a modidifed version of Transform that ignores the
// translation components.
func (a Matrix2D) TransformVector(x1, y1 float64) (x2, y2 float64) {
	x2 = x1*a.A + y1*a.C
	y2 = x1*a.B + y1*a.D
	return
}

// Apply transforms the point p.
func (a Matrix2D) Apply(p Point) Point {
	x, y := a.Transform(p.X, p.Y)
	return Point{x, y}
}

// ScaleFactor returns the mean scaling of the matrix, that is
// the square root of the absolute value of its determinant.
func (a Matrix2D) ScaleFactor() float64 { return math.Sqrt(math.Abs(a.Det())) }

// Scale matrix in x and y dimensions
func (a Matrix2D) Scale(x, y float64) Matrix2D {
	return a.Mult(Matrix2D{A: x, D: y})
}

// Translate translates the matrix to the x , y point
func (a Matrix2D) Translate(x, y float64) Matrix2D {
	return a.Mult(Matrix2D{A: 1, D: 1, E: x, F: y})
}

// Rotate rotate the matrix by theta (in radians)
func (a Matrix2D) Rotate(theta float64) Matrix2D {
	s, c := math.Sincos(theta)
	return a.Mult(Matrix2D{A: c, B: s, C: -s, D: c})
}

// SkewX skews the matrix in the X dimension
func (a Matrix2D) SkewX(theta float64) Matrix2D {
	return a.Mult(Matrix2D{A: 1, C: math.Tan(theta), D: 1})
}

// SkewY skews the matrix in the Y dimension
func (a Matrix2D) SkewY(theta float64) Matrix2D {
	return a.Mult(Matrix2D{A: 1, B: math.Tan(theta), D: 1})
}

// Array returns the six coefficients, in PDF order.
func (a Matrix2D) Array() [6]float64 { return [6]float64{a.A, a.B, a.C, a.D, a.E, a.F} }

func (a Matrix2D) String() string {
	return fmt.Sprintf("matrix(%g %g %g %g %g %g)", a.A, a.B, a.C, a.D, a.E, a.F)
}

// ViewBoxTransform returns the matrix mapping `viewBox` into the
// viewport [0, width]x[0, height], following the SVG preserveAspectRatio
// rules.
func ViewBoxTransform(viewBox Rect, aspect AspectRatio, width, height float64) Matrix2D {
	if viewBox.W <= 0 || viewBox.H <= 0 {
		return Identity
	}
	sx, sy := width/viewBox.W, height/viewBox.H
	if aspect.Align == AlignNone {
		return NewScale(sx, sy).Translate(-viewBox.X, -viewBox.Y)
	}
	s := math.Min(sx, sy)
	if aspect.Slice {
		s = math.Max(sx, sy)
	}
	dx, dy := width-viewBox.W*s, height-viewBox.H*s
	var tx, ty float64
	switch aspect.Align {
	case AlignXMidYMin, AlignXMidYMid, AlignXMidYMax:
		tx = dx / 2
	case AlignXMaxYMin, AlignXMaxYMid, AlignXMaxYMax:
		tx = dx
	}
	switch aspect.Align {
	case AlignXMinYMid, AlignXMidYMid, AlignXMaxYMid:
		ty = dy / 2
	case AlignXMinYMax, AlignXMidYMax, AlignXMaxYMax:
		ty = dy
	}
	return NewTranslation(tx, ty).Scale(s, s).Translate(-viewBox.X, -viewBox.Y)
}

// Align is the alignment part of preserveAspectRatio.
type Align uint8

const (
	AlignXMidYMid Align = iota // default
	AlignNone
	AlignXMinYMin
	AlignXMidYMin
	AlignXMaxYMin
	AlignXMinYMid
	AlignXMaxYMid
	AlignXMinYMax
	AlignXMidYMax
	AlignXMaxYMax
)

// AspectRatio is the value of a preserveAspectRatio attribute.
type AspectRatio struct {
	Align Align
	Slice bool
}
