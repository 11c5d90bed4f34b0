package svgpdf

import (
	"math"

	"github.com/benoitkugler/svg2pdf/filter"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
)

// compute the area painted by a node, which bounds the transparency
// groups and soft masks wrapping it

// strokeExtent returns how far a stroke may paint outside of its path.
func strokeExtent(s *svgscene.Stroke) float64 {
	if s == nil || s.Width <= 0 {
		return 0
	}
	factor := 1.
	if s.Join == svgscene.Miter || s.Join == svgscene.MiterClip {
		factor = math.Max(factor, s.MiterLimit)
	}
	if s.Cap == svgscene.SquareCap {
		factor = math.Max(factor, math.Sqrt2)
	}
	return s.Width / 2 * factor
}

// paintedBounds returns the area painted by the content of `n`, in its
// user space, like svgscene.Bounds. Strokes, glyph outlines and the
// filter regions of the descendants are included.
func (c *converter) paintedBounds(n svgscene.Node) (svgpath.Rect, bool) {
	var bb svgpath.BoundingBox
	c.addPaintedBounds(&bb, n, svgpath.Identity)
	return bb.Rect(), !bb.IsEmpty()
}

func (c *converter) addPaintedBounds(bb *svgpath.BoundingBox, n svgscene.Node, m svgpath.Matrix2D) {
	switch n := n.(type) {
	case *svgscene.Group:
		for _, child := range n.Children {
			attrs := child.Attrs()
			if attrs.Transform.IsSingular() {
				continue
			}
			cm := m.Mult(attrs.Transform)
			if r, ok := c.filterRegion(child); ok {
				bb.AddRect(r.Transform(cm))
				continue
			}
			c.addPaintedBounds(bb, child, cm)
		}
	case *svgscene.Path:
		if n.Path.IsEmpty() {
			return
		}
		r := n.Path.Bounds()
		if d := strokeExtent(n.Stroke); d > 0 && n.Stroke.Paint != nil {
			r = r.Expand(d, d)
		}
		bb.AddRect(r.Transform(m))
	case *svgscene.Image:
		bb.AddRect(n.Rect.Transform(m))
	case *svgscene.Text:
		// glyphs may paint outside of their em box
		r, ok := svgscene.Bounds(n)
		if !ok {
			return
		}
		for _, run := range n.Runs {
			d := strokeExtent(run.Stroke)
			bb.AddRect(c.textInk(run, r).Expand(d, d).Transform(m))
		}
	}
}

// filterRegion returns the filter region of a filtered node,
// in its user space.
func (c *converter) filterRegion(n svgscene.Node) (svgpath.Rect, bool) {
	id := n.Attrs().Filter
	if id == "" {
		return svgpath.Rect{}, false
	}
	f, err := c.tree.FilterByID(id)
	if err != nil {
		return svgpath.Rect{}, false
	}
	g, err := filter.Build(f)
	if err != nil {
		return svgpath.Rect{}, false
	}
	bbox, _ := svgscene.Bounds(n)
	return g.Region(bbox)
}
