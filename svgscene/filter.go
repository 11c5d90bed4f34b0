package svgscene

import (
	"math"

	"github.com/benoitkugler/svg2pdf/svgpath"
)

// Filter is a filter chain: its primitives form a small
// data flow graph, linked by result names.
type Filter struct {
	ID             string
	Units          Units // for Region
	PrimitiveUnits Units // for the primitive attributes
	// Region is the filter region, outside of which
	// the result is transparent.
	Region     svgpath.Rect
	Primitives []FilterPrimitive
}

// InputKind identifies the input of a filter primitive.
type InputKind uint8

const (
	// PreviousResult is the result of the previous primitive,
	// or SourceGraphic for the first one.
	PreviousResult InputKind = iota
	SourceGraphic
	SourceAlpha
	// NamedResult refers to the result of a previous primitive.
	NamedResult
)

// Input is the input of a filter primitive.
type Input struct {
	Kind InputKind
	Name string // for NamedResult
}

// Named returns the input referencing the result `name`.
func Named(name string) Input { return Input{Kind: NamedResult, Name: name} }

// FilterPrimitive is one node of a filter chain.
type FilterPrimitive struct {
	// Result is the optional name of the output.
	Result string
	Kind   PrimitiveKind
}

// PrimitiveKind is the concrete operation of a primitive, one of
// Flood, Offset, Merge, Blend, ColorMatrixFilter, Composite,
// GaussianBlur, DropShadow, Morphology or Unsupported.
type PrimitiveKind interface {
	// Inputs returns the inputs consumed.
	Inputs() []Input
}

// Flood fills the filter region with a color.
type Flood struct {
	Color   PlainColor
	Opacity float64
}

// Offset translates its input.
type Offset struct {
	In     Input
	Dx, Dy float64
}

// Merge composites its inputs, in order, with the 'over' operator.
type Merge struct {
	In []Input
}

// Blend blends In over In2.
type Blend struct {
	In, In2 Input
	Mode    BlendMode
}

// ColorMatrix is a 4x5 matrix, in row major order,
// applied to non premultiplied RGBA colors in [0, 1].
type ColorMatrix [20]float64

// IdentityMatrix is the neutral color matrix.
var IdentityMatrix = ColorMatrix{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// SaturateMatrix returns the matrix of feColorMatrix type="saturate".
func SaturateMatrix(s float64) ColorMatrix {
	return ColorMatrix{
		0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s, 0, 0,
		0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s, 0, 0,
		0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// HueRotateMatrix returns the matrix of feColorMatrix type="hueRotate",
// for an angle in degrees.
func HueRotateMatrix(degrees float64) ColorMatrix {
	s, c := math.Sincos(degrees * math.Pi / 180)
	return ColorMatrix{
		0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928, 0, 0,
		0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283, 0, 0,
		0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072, 0, 0,
		0, 0, 0, 1, 0,
	}
}

// LuminanceToAlphaMatrix is the matrix of feColorMatrix type="luminanceToAlpha".
var LuminanceToAlphaMatrix = ColorMatrix{
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0.2125, 0.7154, 0.0721, 0, 0,
}

// Mult returns the matrix applying `n` then `m`.
func (m ColorMatrix) Mult(n ColorMatrix) ColorMatrix {
	var out ColorMatrix
	for i := 0; i < 4; i++ {
		for j := 0; j < 5; j++ {
			var v float64
			for k := 0; k < 4; k++ {
				v += m[i*5+k] * n[k*5+j]
			}
			if j == 4 {
				v += m[i*5+4]
			}
			out[i*5+j] = v
		}
	}
	return out
}

// Apply transforms the non premultiplied color (r, g, b, a),
// clamping the result to [0, 1].
func (m ColorMatrix) Apply(r, g, b, a float64) (float64, float64, float64, float64) {
	in := [4]float64{r, g, b, a}
	var out [4]float64
	for i := range out {
		v := m[i*5+4]
		for k, c := range in {
			v += m[i*5+k] * c
		}
		out[i] = math.Max(0, math.Min(1, v))
	}
	return out[0], out[1], out[2], out[3]
}

// ColorMatrixFilter applies a color matrix to its input.
type ColorMatrixFilter struct {
	In     Input
	Matrix ColorMatrix
}

// CompositeOperator is the operator of feComposite.
type CompositeOperator uint8

const (
	CompositeOver CompositeOperator = iota
	CompositeIn
	CompositeOut
	CompositeAtop
	CompositeXor
	CompositeArithmetic
)

// Composite combines In and In2 with a Porter-Duff operator.
type Composite struct {
	In, In2        Input
	Operator       CompositeOperator
	K1, K2, K3, K4 float64 // for CompositeArithmetic
}

// GaussianBlur blurs its input.
type GaussianBlur struct {
	In               Input
	StdDevX, StdDevY float64
}

// DropShadow is the shorthand for a blurred, offset and
// flooded copy of the input alpha, drawn below the input.
type DropShadow struct {
	In               Input
	Dx, Dy           float64
	StdDevX, StdDevY float64
	Color            PlainColor
	Opacity          float64
}

// MorphologyOperator is the operator of feMorphology.
type MorphologyOperator uint8

const (
	Erode MorphologyOperator = iota
	Dilate
)

// Morphology thickens or thins its input.
type Morphology struct {
	In               Input
	Operator         MorphologyOperator
	RadiusX, RadiusY float64
}

// Unsupported is a primitive with no implementation
// (lighting, turbulence, ...): it outputs its input unchanged.
type Unsupported struct {
	Name string
	In   Input
}

func (Flood) Inputs() []Input               { return nil }
func (f Offset) Inputs() []Input            { return []Input{f.In} }
func (f Merge) Inputs() []Input             { return f.In }
func (f Blend) Inputs() []Input             { return []Input{f.In, f.In2} }
func (f ColorMatrixFilter) Inputs() []Input { return []Input{f.In} }
func (f Composite) Inputs() []Input         { return []Input{f.In, f.In2} }
func (f GaussianBlur) Inputs() []Input      { return []Input{f.In} }
func (f DropShadow) Inputs() []Input        { return []Input{f.In} }
func (f Morphology) Inputs() []Input        { return []Input{f.In} }
func (f Unsupported) Inputs() []Input       { return []Input{f.In} }
