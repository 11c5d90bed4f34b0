package svgscene

import "github.com/benoitkugler/svg2pdf/svgpath"

// vertical extent of the glyph cells, relative to the font size.
// Outlines may exceed it: renderers needing the painted area
// must add the glyph outlines.
const (
	textAscent  = 0.8
	textDescent = 0.2
)

// Bounds returns the object bounding box of `n`, expressed in
// the coordinate system in which the node's own transform is applied
// (that is, excluding this transform).
// Strokes are ignored, and the second return value is false for
// nodes with no geometry.
func Bounds(n Node) (svgpath.Rect, bool) {
	var bb svgpath.BoundingBox
	addBounds(&bb, n, svgpath.Identity)
	return bb.Rect(), !bb.IsEmpty()
}

func addBounds(bb *svgpath.BoundingBox, n Node, m svgpath.Matrix2D) {
	switch n := n.(type) {
	case *Group:
		for _, child := range n.Children {
			tr := child.Attrs().Transform
			if tr.IsSingular() {
				continue
			}
			addBounds(bb, child, m.Mult(tr))
		}
	case *Path:
		if n.Path.IsEmpty() {
			return
		}
		bb.AddRect(n.Path.BoundsIn(m))
	case *Image:
		bb.AddRect(n.Rect.Transform(m))
	case *Text:
		for _, run := range n.Runs {
			for _, g := range run.Glyphs {
				r := svgpath.Rect{X: g.X, Y: g.Y - textAscent*run.Size, W: g.Advance, H: (textAscent + textDescent) * run.Size}
				bb.AddRect(r.Transform(m))
			}
		}
	}
}
