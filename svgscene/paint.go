package svgscene

import (
	"github.com/benoitkugler/svg2pdf/svgpath"
)

// Paint is one of PlainColor, PaintRef, *LinearGradient,
// *RadialGradient or *Pattern.
type Paint interface {
	isPaint()
}

// PaintServer is a paint which may be shared by id:
// *LinearGradient, *RadialGradient or *Pattern.
type PaintServer interface {
	Paint
	isServer()
}

// PlainColor is an opaque RGB color. Transparency is
// carried by the opacity of the fill or stroke.
type PlainColor struct {
	R, G, B uint8
}

// NewPlainColor returns the color (r, g, b).
func NewPlainColor(r, g, b uint8) PlainColor { return PlainColor{r, g, b} }

// Black is the default fill.
var Black = PlainColor{}

// RGB returns the components in [0, 1].
func (c PlainColor) RGB() (r, g, b float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}

// PaintRef references a paint server of the tree.
type PaintRef string

// Units defines the coordinate system of a resource.
type Units uint8

const (
	// UserSpaceOnUse units are the user units of the element
	// referencing the resource.
	UserSpaceOnUse Units = iota
	// ObjectBoundingBox units are fractions of the bounding box
	// of the element referencing the resource.
	ObjectBoundingBox
)

// SpreadMethod is the SVG spreadMethod attribute.
type SpreadMethod uint8

const (
	PadSpread SpreadMethod = iota
	ReflectSpread
	RepeatSpread
)

func (s SpreadMethod) String() string {
	switch s {
	case PadSpread:
		return "pad"
	case ReflectSpread:
		return "reflect"
	case RepeatSpread:
		return "repeat"
	default:
		return "<unknown SpreadMethod>"
	}
}

// GradStop is a gradient stop.
type GradStop struct {
	Offset  float64 // in [0, 1]
	Color   PlainColor
	Opacity float64
}

// LinearGradient is a linear gradient, along the vector (X1, Y1) -> (X2, Y2).
type LinearGradient struct {
	ID             string
	X1, Y1, X2, Y2 float64
	Units          Units
	Transform      svgpath.Matrix2D
	Spread         SpreadMethod
	Stops          []GradStop
}

// RadialGradient is a radial gradient, from the focal circle (Fx, Fy, Fr)
// to the circle (Cx, Cy, R).
type RadialGradient struct {
	ID                string
	Cx, Cy, R, Fx, Fy float64
	Fr                float64
	Units             Units
	Transform         svgpath.Matrix2D
	Spread            SpreadMethod
	Stops             []GradStop
}

// Pattern is a tiling pattern. Its content is drawn
// in the tile Rect (expressed in Units), with an optional view box.
type Pattern struct {
	ID           string
	Rect         svgpath.Rect
	Units        Units
	ContentUnits Units
	ViewBox      *svgpath.Rect
	AspectRatio  svgpath.AspectRatio
	Transform    svgpath.Matrix2D
	Root         *Group
}

func (PlainColor) isPaint()      {}
func (PaintRef) isPaint()        {}
func (*LinearGradient) isPaint() {}
func (*RadialGradient) isPaint() {}
func (*Pattern) isPaint()        {}

func (*LinearGradient) isServer() {}
func (*RadialGradient) isServer() {}
func (*Pattern) isServer()        {}

// FillRule is the SVG fill-rule property.
type FillRule uint8

const (
	NonZero FillRule = iota
	EvenOdd
)

// Fill describes how to fill a shape.
type Fill struct {
	Paint   Paint
	Opacity float64
	Rule    FillRule
}

// NewFill returns an opaque, non-zero fill.
func NewFill(p Paint) *Fill { return &Fill{Paint: p, Opacity: 1} }

// JoinMode type to specify how segments join.
type JoinMode uint8

// JoinMode constants determine how stroke segments bridge the gap at a join
// ArcClip mode is like MiterClip applied to arcs, and is not part of the SVG2.0
// standard.
const (
	Miter JoinMode = iota
	Round
	Bevel
	MiterClip // New in SVG2
	Arc       // New in SVG2
	ArcClip   // Like MiterClip applied to arcs, and is not part of the SVG2.0 standard.
)

func (s JoinMode) String() string {
	switch s {
	case Round:
		return "Round"
	case Bevel:
		return "Bevel"
	case Miter:
		return "Miter"
	case MiterClip:
		return "MiterClip"
	case Arc:
		return "Arc"
	case ArcClip:
		return "ArcClip"
	default:
		return "<unknown JoinMode>"
	}
}

// CapMode defines how to draw caps on the ends of lines
type CapMode uint8

const (
	ButtCap CapMode = iota // default value
	SquareCap
	RoundCap
)

func (c CapMode) String() string {
	switch c {
	case ButtCap:
		return "ButtCap"
	case SquareCap:
		return "SquareCap"
	case RoundCap:
		return "RoundCap"
	default:
		return "<unknown CapMode>"
	}
}

// Stroke describes how to stroke a shape.
type Stroke struct {
	Paint      Paint
	Opacity    float64
	Width      float64
	Cap        CapMode
	Join       JoinMode
	MiterLimit float64
	Dash       []float64 // values for the dash pattern (nil or an empty slice for no dashes)
	DashOffset float64   // starting offset into the dash array
}

// NewStroke returns an opaque stroke with SVG defaults.
func NewStroke(p Paint, width float64) *Stroke {
	return &Stroke{Paint: p, Opacity: 1, Width: width, MiterLimit: 4}
}

// BlendMode is a separable or non separable blend mode,
// shared by the mix-blend-mode property and feBlend.
// The String method returns the PDF name.
type BlendMode uint8

const (
	Normal BlendMode = iota
	Multiply
	Screen
	Overlay
	Darken
	Lighten
	ColorDodge
	ColorBurn
	HardLight
	SoftLight
	Difference
	Exclusion
	Hue
	Saturation
	Color
	Luminosity
)

var blendNames = [...]string{
	Normal:     "Normal",
	Multiply:   "Multiply",
	Screen:     "Screen",
	Overlay:    "Overlay",
	Darken:     "Darken",
	Lighten:    "Lighten",
	ColorDodge: "ColorDodge",
	ColorBurn:  "ColorBurn",
	HardLight:  "HardLight",
	SoftLight:  "SoftLight",
	Difference: "Difference",
	Exclusion:  "Exclusion",
	Hue:        "Hue",
	Saturation: "Saturation",
	Color:      "Color",
	Luminosity: "Luminosity",
}

func (b BlendMode) String() string {
	if int(b) < len(blendNames) {
		return blendNames[b]
	}
	return "<unknown BlendMode>"
}

// IsSeparable returns true for the blend modes computed
// channel by channel.
func (b BlendMode) IsSeparable() bool { return b < Hue }
