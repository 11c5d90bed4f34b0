package svgpath

import "math"

// Rect is an axis aligned rectangle.
// W and H are expected to be non negative.
type Rect struct {
	X, Y, W, H float64
}

// RectFromPoints returns the smallest rectangle containing `p` and `q`.
func RectFromPoints(p, q Point) Rect {
	minX, maxX := math.Min(p.X, q.X), math.Max(p.X, q.X)
	minY, maxY := math.Min(p.Y, q.Y), math.Max(p.Y, q.Y)
	return Rect{minX, minY, maxX - minX, maxY - minY}
}

// IsEmpty returns true if the rectangle has no area.
func (r Rect) IsEmpty() bool { return !(r.W > 0 && r.H > 0) }

// Max returns the bottom-right corner.
func (r Rect) Max() Point { return Point{r.X + r.W, r.Y + r.H} }

// Union returns the smallest rectangle containing both `r` and `s`.
func (r Rect) Union(s Rect) Rect {
	return RectFromPoints(
		Point{math.Min(r.X, s.X), math.Min(r.Y, s.Y)},
		Point{math.Max(r.X+r.W, s.X+s.W), math.Max(r.Y+r.H, s.Y+s.H)},
	)
}

// Intersect returns the intersection of `r` and `s`,
// which may be empty.
func (r Rect) Intersect(s Rect) Rect {
	minX, minY := math.Max(r.X, s.X), math.Max(r.Y, s.Y)
	maxX, maxY := math.Min(r.X+r.W, s.X+s.W), math.Min(r.Y+r.H, s.Y+s.H)
	if maxX <= minX || maxY <= minY {
		return Rect{minX, minY, 0, 0}
	}
	return Rect{minX, minY, maxX - minX, maxY - minY}
}

// Expand grows the rectangle by `dx` and `dy` on each side.
func (r Rect) Expand(dx, dy float64) Rect {
	return Rect{r.X - dx, r.Y - dy, r.W + 2*dx, r.H + 2*dy}
}

// Transform returns the bounding box of the image of `r` by `m`.
func (r Rect) Transform(m Matrix2D) Rect {
	var bb BoundingBox
	bb.Add(m.Apply(Point{r.X, r.Y}))
	bb.Add(m.Apply(Point{r.X + r.W, r.Y}))
	bb.Add(m.Apply(Point{r.X + r.W, r.Y + r.H}))
	bb.Add(m.Apply(Point{r.X, r.Y + r.H}))
	return bb.Rect()
}

// UnitTransform returns the matrix mapping the unit square
// onto `r`, used to resolve objectBoundingBox units.
func (r Rect) UnitTransform() Matrix2D {
	return Matrix2D{A: r.W, D: r.H, E: r.X, F: r.Y}
}

// BoundingBox accumulates points.
// Its zero value is an empty box.
type BoundingBox struct {
	minX, minY, maxX, maxY float64
	ok                     bool
}

// Add extends the box to contain `p`.
func (bb *BoundingBox) Add(p Point) {
	if !bb.ok {
		bb.minX, bb.maxX, bb.minY, bb.maxY = p.X, p.X, p.Y, p.Y
		bb.ok = true
		return
	}
	bb.minX = math.Min(bb.minX, p.X)
	bb.minY = math.Min(bb.minY, p.Y)
	bb.maxX = math.Max(bb.maxX, p.X)
	bb.maxY = math.Max(bb.maxY, p.Y)
}

// AddRect extends the box to contain `r`.
func (bb *BoundingBox) AddRect(r Rect) {
	bb.Add(Point{r.X, r.Y})
	bb.Add(r.Max())
}

// IsEmpty returns true if no point has been added.
func (bb BoundingBox) IsEmpty() bool { return !bb.ok }

// Rect returns the accumulated rectangle.
func (bb BoundingBox) Rect() Rect {
	if !bb.ok {
		return Rect{}
	}
	return Rect{bb.minX, bb.minY, bb.maxX - bb.minX, bb.maxY - bb.minY}
}

// Bounds returns the exact bounding box of the path,
// using the extrema of the Bezier curves and not their control points.
func (p Path) Bounds() Rect {
	var bb BoundingBox
	p.addBounds(&bb, Identity)
	return bb.Rect()
}

// BoundsIn returns the bounding box of the path, after
// applying the transformation `m`.
func (p Path) BoundsIn(m Matrix2D) Rect {
	var bb BoundingBox
	p.addBounds(&bb, m)
	return bb.Rect()
}

func (p Path) addBounds(bb *BoundingBox, m Matrix2D) {
	var current, start Point
	for _, op := range p {
		switch op := op.(type) {
		case MoveTo:
			current = m.Apply(Point(op))
			start = current
			bb.Add(current)
		case LineTo:
			current = m.Apply(Point(op))
			bb.Add(current)
		case QuadTo:
			cu := quadBezier{current, m.Apply(op[0]), m.Apply(op[1])}
			cu.extendBox(bb)
			current = cu[2]
		case CubicTo:
			cu := cubicBezier{current, m.Apply(op[0]), m.Apply(op[1]), m.Apply(op[2])}
			cu.extendBox(bb)
			current = cu[3]
		case Close:
			current = start
		}
	}
}

// compute the bouding box of a path, needed when using gradient with objectBoudingBox

type quadBezier [3]Point

// quadratic polinomial
// x = At^2 + Bt + C
// where
// A = p0 + p2 - 2p1
// B = 2(p1 - p0)
// C = p0
func bezierQuad(p0, p1, p2, t float64) float64 {
	return (p0+p2-2*p1)*t*t + 2*(p1-p0)*t + p0
}

// derivative as at + b where a,b :
func quadraticDerivative(p0, p1, p2 float64) (a, b float64) {
	return 2 * (p2 - p1 - (p1 - p0)), 2 * (p1 - p0)
}

// handle the case where a = 0
func linearRoots(a, b float64) []float64 {
	if a == 0 {
		return nil
	}
	return []float64{-b / a}
}

func (cu quadBezier) criticalPoints() (tX, tY []float64) {
	aX, bX := quadraticDerivative(cu[0].X, cu[1].X, cu[2].X)
	aY, bY := quadraticDerivative(cu[0].Y, cu[1].Y, cu[2].Y)
	return linearRoots(aX, bX), linearRoots(aY, bY)
}

func (cu quadBezier) evaluateCurve(t float64) Point {
	return Point{bezierQuad(cu[0].X, cu[1].X, cu[2].X, t), bezierQuad(cu[0].Y, cu[1].Y, cu[2].Y, t)}
}

func (cu quadBezier) extendBox(bb *BoundingBox) { extendBox(cu, bb) }

type cubicBezier [4]Point

func (cu cubicBezier) criticalPoints() (tX, tY []float64) {
	aX, bX, cX := cubicDerivative(cu[0].X, cu[1].X, cu[2].X, cu[3].X)
	aY, bY, cY := cubicDerivative(cu[0].Y, cu[1].Y, cu[2].Y, cu[3].Y)
	return quadraticRoots(aX, bX, cX), quadraticRoots(aY, bY, cY)
}

func (cu cubicBezier) evaluateCurve(t float64) Point {
	return Point{
		bezierSpline(cu[0].X, cu[1].X, cu[2].X, cu[3].X, t),
		bezierSpline(cu[0].Y, cu[1].Y, cu[2].Y, cu[3].Y, t),
	}
}

func (cu cubicBezier) extendBox(bb *BoundingBox) { extendBox(cu, bb) }

// cubic polinomial
// x = At^3 + Bt^2 + Ct + D
// where A,B,C,D:
// A = p3 -3 * p2 + 3 * p1 - p0
// B = 3 * p2 - 6 * p1 +3 * p0
// C = 3 * p1 - 3 * p0
// D = p0
func bezierSpline(p0, p1, p2, p3, t float64) float64 {
	return (p3-3*p2+3*p1-p0)*t*t*t +
		(3*p2-6*p1+3*p0)*t*t +
		(3*p1-3*p0)*t +
		(p0)
}

// X' = (3*p3-9*p2+9*p1-3*p0)t^2 + (6*p2-12*p1+6*p0)t + (3*p1-3*p0)
// taken as aX^2 + bX + c  a,b and c are:
func cubicDerivative(p0, p1, p2, p3 float64) (a, b, c float64) {
	return 3*p3 - 9*p2 + 9*p1 - 3*p0, 6*p2 - 12*p1 + 6*p0, 3*p1 - 3*p0
}

func quadraticRoots(a, b, c float64) []float64 {
	if a == 0 {
		// bX + c : this is a simple line
		return linearRoots(b, c)
	}
	d := b*b - 4*a*c
	if d < 0 {
		return nil
	}
	if d == 0 {
		return []float64{-b / (2 * a)}
	}
	sq := math.Sqrt(d)
	return []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
}

type bezier interface {
	// compute the t zeroing the derivative
	criticalPoints() (tX, tY []float64)
	// compute the point a time t
	evaluateCurve(t float64) Point
}

func extendBox(curve bezier, bb *BoundingBox) {
	resX, resY := curve.criticalPoints()
	// add begin and end point
	for _, t := range append(append(resX, 0, 1), resY...) {
		// filter invalid value
		if !(0 <= t && t <= 1) {
			continue
		}
		bb.Add(curve.evaluateCurve(t))
	}
}
