// Package pdfdraw writes the geometry of the svgpath package with the
// operators of a content stream Appearance, and converts it to the PDF
// object model.
package pdfdraw

import (
	"strings"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/pdf/reader/parser"
	"github.com/benoitkugler/svg2pdf/svgpath"
)

var _ svgpath.Drawer = (*pather)(nil)

// pather writes the construction operators of a path.
type pather struct {
	ap             *contentstream.Appearance
	current, start svgpath.Point // used to convert quadratic curves
}

// Path writes the construction operators of `p` on `ap`.
// The path is not painted.
func Path(ap *contentstream.Appearance, p svgpath.Path) { p.AddTo(&pather{ap: ap}) }

func (p *pather) Start(a svgpath.Point) {
	p.ap.Ops(contentstream.OpMoveTo{X: a.X, Y: a.Y})
	p.current, p.start = a, a
}

func (p *pather) Line(a svgpath.Point) {
	p.ap.Ops(contentstream.OpLineTo{X: a.X, Y: a.Y})
	p.current = a
}

// QuadBezier elevates the curve to a cubic one, since PDF has no
// quadratic curves.
func (p *pather) QuadBezier(ctrl, to svgpath.Point) {
	c1, c2 := svgpath.QuadToCubic(p.current, ctrl, to)
	p.CubeBezier(c1, c2, to)
}

func (p *pather) CubeBezier(c1, c2, to svgpath.Point) {
	p.ap.Ops(contentstream.OpCubicTo{X1: c1.X, Y1: c1.Y, X2: c2.X, Y2: c2.Y, X3: to.X, Y3: to.Y})
	p.current = to
}

func (p *pather) Stop(closeLoop bool) {
	if closeLoop {
		p.ap.Ops(contentstream.OpClosePath{})
		p.current = p.start
	}
}

// Matrix returns the PDF form [a b c d e f] of `m`.
func Matrix(m svgpath.Matrix2D) model.Matrix { return model.Matrix(m.Array()) }

// Rectangle returns the PDF form [llx lly urx ury] of `r`.
func Rectangle(r svgpath.Rect) model.Rectangle {
	return model.Rectangle{Llx: r.X, Lly: r.Y, Urx: r.X + r.W, Ury: r.Y + r.H}
}

// Form returns the content of `ap` as a form XObject, clipped to `bbox`.
func Form(ap *contentstream.Appearance, bbox svgpath.Rect, compress bool) *model.XObjectForm {
	form := ap.ToXFormObject(compress)
	form.BBox = Rectangle(bbox)
	return form
}

// Group returns the content of `ap` as a transparency group, clipped to `bbox`.
// A nil `cs` uses the color space of the parent.
func Group(ap *contentstream.Appearance, bbox svgpath.Rect, cs model.ColorSpace, isolated, compress bool) *model.XObjectTransparencyGroup {
	return &model.XObjectTransparencyGroup{XObjectForm: *Form(ap, bbox, compress), CS: cs, I: isolated}
}

// Content returns the uncompressed content of `ap`.
func Content(ap *contentstream.Appearance) []byte {
	return ap.ToXFormObject(false).Content
}

// Operations decodes and parses a content stream.
func Operations(s model.Stream) ([]contentstream.Operation, error) {
	content, err := s.Decode()
	if err != nil {
		return nil, err
	}
	return parser.ParseContent(content, nil)
}

// Operators returns the name of the operators of a content stream,
// in order, skipping their operands.
func Operators(s model.Stream) ([]string, error) {
	ops, err := Operations(s)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = OperatorName(op)
	}
	return out, nil
}

// OperatorName returns the PDF operator written by `op`, such as "re" or "Tj".
func OperatorName(op contentstream.Operation) string {
	s := strings.TrimSpace(string(contentstream.WriteOperations(op)))
	return s[strings.LastIndexAny(s, " ])>")+1:]
}

// NewStream returns a stream holding `content`, optionally Flate compressed.
func NewStream(content []byte, compress bool) (model.Stream, error) {
	if !compress {
		return model.Stream{Content: content}, nil
	}
	return model.NewStream(content, model.Filter{Name: model.Flate})
}
