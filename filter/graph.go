// Package filter resolves SVG filter chains and implements them,
// either with PDF constructs (for the primitives having an exact
// vector equivalent), or with pixel operations on a rasterized
// rendering of the filtered element.
package filter

import (
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
)

// source of a primitive input: a previous primitive (>= 0),
// or one of the special values below
const (
	sourceGraphic = -1
	sourceAlpha   = -2
)

type node struct {
	kind   svgscene.PrimitiveKind
	inputs []int
}

// Graph is a filter chain whose references have been resolved.
type Graph struct {
	filter *svgscene.Filter
	nodes  []node
}

// Build resolves the input references of the primitives of `f`.
// A reference to a result not defined by a previous primitive
// is an error.
func Build(f *svgscene.Filter) (*Graph, error) {
	g := &Graph{filter: f, nodes: make([]node, len(f.Primitives))}
	for i, prim := range f.Primitives {
		inputs := prim.Kind.Inputs()
		nd := node{kind: prim.Kind, inputs: make([]int, len(inputs))}
		for j, in := range inputs {
			switch in.Kind {
			case svgscene.SourceGraphic:
				nd.inputs[j] = sourceGraphic
			case svgscene.SourceAlpha:
				nd.inputs[j] = sourceAlpha
			case svgscene.NamedResult:
				index := -1
				for k := i - 1; k >= 0; k-- { // the closest result with this name
					if f.Primitives[k].Result == in.Name {
						index = k
						break
					}
				}
				if index == -1 {
					return nil, &svgscene.ReferenceError{Kind: "filter result", ID: in.Name}
				}
				nd.inputs[j] = index
			default:
				nd.inputs[j] = i - 1 // sourceGraphic for the first primitive
			}
		}
		g.nodes[i] = nd
	}
	return g, nil
}

// IsEmpty returns true for a chain without primitives, which
// disables the rendering of the element.
func (g *Graph) IsEmpty() bool { return len(g.nodes) == 0 }

// Region returns the filter region, in the user space of an element
// with bounding box `bbox`, or false if the region is empty.
func (g *Graph) Region(bbox svgpath.Rect) (svgpath.Rect, bool) {
	r := g.filter.Region
	if g.filter.Units == svgscene.ObjectBoundingBox {
		if bbox.IsEmpty() {
			return svgpath.Rect{}, false
		}
		r = r.Transform(bbox.UnitTransform())
	}
	return r, !r.IsEmpty()
}

// primitiveScale returns the user space lengths of one unit
// of the primitive attributes.
func (g *Graph) primitiveScale(bbox svgpath.Rect) (float64, float64) {
	if g.filter.PrimitiveUnits == svgscene.ObjectBoundingBox {
		return bbox.W, bbox.H
	}
	return 1, 1
}

// reachable returns the primitives contributing to the output.
func (g *Graph) reachable() []bool {
	out := make([]bool, len(g.nodes))
	var visit func(i int)
	visit = func(i int) {
		if i < 0 || out[i] {
			return
		}
		out[i] = true
		for _, in := range g.nodes[i].inputs {
			visit(in)
		}
	}
	visit(len(g.nodes) - 1)
	return out
}

// Vector returns true if every primitive contributing to the output
// has an exact PDF equivalent, so that Plan may be used.
func (g *Graph) Vector() bool {
	if g.IsEmpty() {
		return false
	}
	for i, ok := range g.reachable() {
		if ok && !isVector(g.nodes[i].kind) {
			return false
		}
	}
	return true
}

func isVector(kind svgscene.PrimitiveKind) bool {
	switch kind := kind.(type) {
	case svgscene.Flood, svgscene.Offset, svgscene.Merge, svgscene.Blend:
		return true
	case svgscene.ColorMatrixFilter:
		// transparent pixels must stay transparent
		return kind.Matrix[19] == 0
	case svgscene.Composite:
		return kind.Operator == svgscene.CompositeOver
	default:
		return false
	}
}

// Expr is a node of a vector plan: one of Source, Flood, Layers or Blend.
type Expr interface {
	isExpr()
}

// Source is the filtered element itself, translated by (Dx, Dy)
// user units, with an optional color transform.
type Source struct {
	Dx, Dy float64
	Colors *svgscene.ColorMatrix
}

// Flood fills the filter region.
type Flood struct {
	Color   svgscene.PlainColor
	Opacity float64
}

// Layers paints its items, in order, with the normal blend mode.
type Layers []Expr

// Blend paints Top over Bottom, with a blend mode, in an isolated group.
type Blend struct {
	Mode        svgscene.BlendMode
	Bottom, Top Expr
}

func (Source) isExpr() {}
func (Flood) isExpr()  {}
func (Layers) isExpr() {}
func (Blend) isExpr()  {}

// sourceAlphaMatrix keeps the alpha channel, with black colors.
var sourceAlphaMatrix = svgscene.ColorMatrix{
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0, 0, 0, 1, 0,
}

// Plan returns the expression painting the output of a
// chain accepted by Vector, for an element with bounding box `bbox`.
// Offsets and color transforms are pushed down to the sources.
func (g *Graph) Plan(bbox svgpath.Rect) Expr {
	sx, sy := g.primitiveScale(bbox)
	var plan func(i int, dx, dy float64, colors *svgscene.ColorMatrix) Expr
	plan = func(i int, dx, dy float64, colors *svgscene.ColorMatrix) Expr {
		switch i {
		case sourceGraphic:
			return Source{Dx: dx, Dy: dy, Colors: colors}
		case sourceAlpha:
			m := sourceAlphaMatrix
			if colors != nil {
				m = colors.Mult(m)
			}
			return Source{Dx: dx, Dy: dy, Colors: &m}
		}
		nd := g.nodes[i]
		switch kind := nd.kind.(type) {
		case svgscene.Flood:
			out := Flood{Color: kind.Color, Opacity: kind.Opacity}
			if colors != nil {
				r, gr, b := kind.Color.RGB()
				r, gr, b, out.Opacity = colors.Apply(r, gr, b, kind.Opacity)
				out.Color = svgscene.PlainColor{R: to8(r), G: to8(gr), B: to8(b)}
			}
			return out
		case svgscene.Offset:
			return plan(nd.inputs[0], dx+kind.Dx*sx, dy+kind.Dy*sy, colors)
		case svgscene.ColorMatrixFilter:
			m := kind.Matrix
			if colors != nil {
				m = colors.Mult(m)
			}
			return plan(nd.inputs[0], dx, dy, &m)
		case svgscene.Merge:
			out := make(Layers, len(nd.inputs))
			for j, in := range nd.inputs {
				out[j] = plan(in, dx, dy, colors)
			}
			return out
		case svgscene.Composite: // over
			return Layers{plan(nd.inputs[1], dx, dy, colors), plan(nd.inputs[0], dx, dy, colors)}
		case svgscene.Blend:
			return Blend{
				Mode:   kind.Mode,
				Bottom: plan(nd.inputs[1], dx, dy, colors),
				Top:    plan(nd.inputs[0], dx, dy, colors),
			}
		default:
			// not reachable for a vector graph
			return plan(nd.inputs[0], dx, dy, colors)
		}
	}
	return plan(len(g.nodes)-1, 0, 0, nil)
}

func to8(f float64) uint8 {
	if f <= 0 {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}
