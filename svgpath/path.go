// Implements an abstract representation of
// svg paths, which can then be consumed
// by painting driver
package svgpath

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/image/math/fixed"
)

// Point is a point in user space.
type Point struct {
	X, Y float64
}

// Pt is a shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{x, y} }

// Fixed converts the point to 26.6 fixed precision.
func (p Point) Fixed() fixed.Point26_6 {
	return fixed.Point26_6{X: fixed.Int26_6(math.Round(p.X * 64)), Y: fixed.Int26_6(math.Round(p.Y * 64))}
}

// FromFixed converts a 26.6 point.
func FromFixed(p fixed.Point26_6) Point {
	return Point{float64(p.X) / 64, float64(p.Y) / 64}
}

func (p Point) add(q Point) Point           { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) sub(q Point) Point           { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) scale(f float64) Point       { return Point{p.X * f, p.Y * f} }
func lerp(p, q Point, t float64) Point      { return p.add(q.sub(p).scale(t)) }
func reflect(center, p Point) Point         { return center.scale(2).sub(p) }
func (p Point) format(precision int) string { return fmtPair(p.X, p.Y, precision) }

func fmtPair(x, y float64, precision int) string {
	return fmt.Sprintf("%.*f,%.*f", precision, x, precision, y)
}

// Drawer is implemented by types that can accumlate path commands
type Drawer interface {
	// Start starts a new curve at the given point.
	Start(a Point)
	// Line adds a line segment to the path
	Line(b Point)
	// QuadBezier adds a quadratic bezier curve to the path
	QuadBezier(b, c Point)
	// CubeBezier adds a cubic bezier curve to the path
	CubeBezier(b, c, d Point)
	// Closes the path to the start point if closeLoop is true
	Stop(closeLoop bool)
}

type pathCommand uint8

// Human readable path constants
const (
	pathMoveTo pathCommand = iota
	pathLineTo
	pathQuadTo
	pathCubicTo
	pathClose
)

// Operation groups the different SVG commands
type Operation interface {
	command() pathCommand
	transform(m Matrix2D) Operation
}

type MoveTo Point

type LineTo Point

type QuadTo [2]Point

type CubicTo [3]Point

type Close struct{}

func (MoveTo) command() pathCommand  { return pathMoveTo }
func (LineTo) command() pathCommand  { return pathLineTo }
func (QuadTo) command() pathCommand  { return pathQuadTo }
func (CubicTo) command() pathCommand { return pathCubicTo }
func (Close) command() pathCommand   { return pathClose }

func (op MoveTo) transform(m Matrix2D) Operation { return MoveTo(m.Apply(Point(op))) }
func (op LineTo) transform(m Matrix2D) Operation { return LineTo(m.Apply(Point(op))) }
func (op QuadTo) transform(m Matrix2D) Operation { return QuadTo{m.Apply(op[0]), m.Apply(op[1])} }
func (op CubicTo) transform(m Matrix2D) Operation {
	return CubicTo{m.Apply(op[0]), m.Apply(op[1]), m.Apply(op[2])}
}
func (op Close) transform(Matrix2D) Operation { return op }

// Path describes a sequence of basic SVG operations, which should not be nil
// Higher-level shapes may be reduced to a path.
type Path []Operation

// ToSVGPath returns a string representation of the path
func (p Path) ToSVGPath() string {
	chunks := make([]string, len(p))
	for i, op := range p {
		switch op := op.(type) {
		case MoveTo:
			chunks[i] = "M" + Point(op).format(3)
		case LineTo:
			chunks[i] = "L" + Point(op).format(3)
		case QuadTo:
			chunks[i] = "Q" + op[0].format(3) + "," + op[1].format(3)
		case CubicTo:
			chunks[i] = "C" + op[0].format(3) + "," + op[1].format(3) + "," + op[2].format(3)
		case Close:
			chunks[i] = "Z"
		}
	}
	return strings.Join(chunks, " ")
}

// String returns a readable representation of a Path.
func (p Path) String() string {
	return p.ToSVGPath()
}

// Clear zeros the path slice
func (p *Path) Clear() {
	*p = (*p)[:0]
}

// Start starts a new curve at the given point.
func (p *Path) Start(a Point) {
	*p = append(*p, MoveTo(a))
}

// Line adds a linear segment to the current curve.
func (p *Path) Line(b Point) {
	*p = append(*p, LineTo(b))
}

// QuadBezier adds a quadratic segment to the current curve.
func (p *Path) QuadBezier(b, c Point) {
	*p = append(*p, QuadTo{b, c})
}

// CubeBezier adds a cubic segment to the current curve.
func (p *Path) CubeBezier(b, c, d Point) {
	*p = append(*p, CubicTo{b, c, d})
}

// Stop joins the ends of the path
func (p *Path) Stop(closeLoop bool) {
	if closeLoop {
		*p = append(*p, Close{})
	}
}

// AddTo adds the Path p to q.
func (p Path) AddTo(q Drawer) {
	started := false
	for _, op := range p {
		switch op := op.(type) {
		case MoveTo:
			if started {
				q.Stop(false) // implicit close if currently in path.
			}
			q.Start(Point(op))
			started = true
		case LineTo:
			q.Line(Point(op))
		case QuadTo:
			q.QuadBezier(op[0], op[1])
		case CubicTo:
			q.CubeBezier(op[0], op[1], op[2])
		case Close:
			q.Stop(true)
			started = false
		}
	}
	if started {
		q.Stop(false)
	}
}

// Transform returns a new path, whose points
// are transformed by `m`.
func (p Path) Transform(m Matrix2D) Path {
	out := make(Path, len(p))
	for i, op := range p {
		out[i] = op.transform(m)
	}
	return out
}

// IsEmpty returns true if the path has no drawing segment.
func (p Path) IsEmpty() bool {
	for _, op := range p {
		switch op.(type) {
		case LineTo, QuadTo, CubicTo:
			return false
		}
	}
	return true
}

// QuadToCubic returns the control points of the cubic Bezier curve
// equivalent to the quadratic one (p0, q, p2).
func QuadToCubic(p0, q, p2 Point) (c1, c2 Point) {
	return lerp(p0, q, 2./3), lerp(p2, q, 2./3)
}

// Rect returns the closed path of the given rectangle.
func (r Rect) Path() Path {
	return Path{
		MoveTo{r.X, r.Y},
		LineTo{r.X + r.W, r.Y},
		LineTo{r.X + r.W, r.Y + r.H},
		LineTo{r.X, r.Y + r.H},
		Close{},
	}
}
