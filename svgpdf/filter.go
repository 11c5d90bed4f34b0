package svgpdf

import (
	"errors"
	"math"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/svg2pdf/filter"
	"github.com/benoitkugler/svg2pdf/paint"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgraster"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
)

// maxRasterPixels bounds the size of the rasterized filter regions.
const maxRasterPixels = 1 << 24

// filterDrawer returns the function drawing the output of the
// filter `g` applied to `n`, clipped to the filter region.
func (c *converter) filterDrawer(n svgscene.Node, g *filter.Graph, bbox, region svgpath.Rect) func(*contentstream.Appearance) error {
	return func(b *contentstream.Appearance) error {
		if g.Vector() {
			plan := g.Plan(bbox)
			if !(usesColors(plan) && hasImages(n)) {
				b.Ops(contentstream.OpRectangle{X: region.X, Y: region.Y, W: region.W, H: region.H},
					contentstream.OpClip{}, contentstream.OpEndPath{})
				return c.paintExpr(b, n, plan, region)
			}
		}
		return c.rasterFilter(b, n, g, bbox, region)
	}
}

// usesColors returns true if a source of the plan has a color transform.
func usesColors(e filter.Expr) bool {
	switch e := e.(type) {
	case filter.Source:
		return e.Colors != nil
	case filter.Layers:
		for _, item := range e {
			if usesColors(item) {
				return true
			}
		}
	case filter.Blend:
		return usesColors(e.Bottom) || usesColors(e.Top)
	}
	return false
}

// hasImages returns true if color transforms can't be applied
// to the content of `n`.
func hasImages(n svgscene.Node) bool {
	found := errors.New("found")
	err := svgscene.Walk(n, func(n svgscene.Node) error {
		if _, ok := n.(*svgscene.Image); ok {
			return found
		}
		return nil
	})
	return err == found
}

func (c *converter) paintExpr(b *contentstream.Appearance, n svgscene.Node, e filter.Expr, region svgpath.Rect) error {
	switch e := e.(type) {
	case filter.Source:
		st := c.top()
		if e.Dx != 0 || e.Dy != 0 {
			st = st.concat(svgpath.NewTranslation(e.Dx, e.Dy))
		}
		if e.Colors != nil {
			colors := *e.Colors
			if st.colors != nil {
				colors = st.colors.Mult(colors)
			}
			st.colors = &colors
		}
		if err := c.push(st); err != nil {
			return err
		}
		defer c.pop()
		b.Ops(contentstream.OpSave{})
		if e.Dx != 0 || e.Dy != 0 {
			b.Ops(contentstream.OpConcat{Matrix: pdfdraw.Matrix(svgpath.NewTranslation(e.Dx, e.Dy))})
		}
		err := c.content(b, n)
		b.Ops(contentstream.OpRestore{})
		return err
	case filter.Flood:
		st := c.top()
		b.Ops(contentstream.OpSave{})
		ctx := paint.Context{Stream: st.stream, BBox: region, Colors: st.colors}
		ok, err := c.paints.Apply(b, e.Color, e.Opacity, false, ctx)
		if err != nil {
			return err
		}
		if ok {
			b.Ops(contentstream.OpRectangle{X: region.X, Y: region.Y, W: region.W, H: region.H}, contentstream.OpFill{})
		}
		b.Ops(contentstream.OpRestore{})
	case filter.Layers:
		for _, item := range e {
			if err := c.paintExpr(b, n, item, region); err != nil {
				return err
			}
		}
	case filter.Blend:
		top, err := c.group(region, false, func(b *contentstream.Appearance) error {
			return c.paintExpr(b, n, e.Top, region)
		})
		if err != nil {
			return err
		}
		form, err := c.group(region, true, func(b *contentstream.Appearance) error {
			if err := c.paintExpr(b, n, e.Bottom, region); err != nil {
				return err
			}
			if err := c.paints.SetGroupState(b, 1, e.Mode); err != nil {
				return err
			}
			b.AddXObject(top)
			return nil
		})
		if err != nil {
			return err
		}
		b.AddXObject(form)
	}
	return nil
}

// rasterFilter renders the content of `n` into the filter region,
// runs the filter on the pixels and draws the result as an image.
func (c *converter) rasterFilter(b *contentstream.Appearance, n svgscene.Node, g *filter.Graph, bbox, region svgpath.Rect) error {
	st := c.top()
	if visible, ok := st.visible(); ok {
		if region.Intersect(visible).IsEmpty() {
			return nil
		}
	}
	scale := st.ctm.ScaleFactor() * c.opts.RasterScale
	w, h := math.Ceil(region.W*scale), math.Ceil(region.H*scale)
	if w*h > maxRasterPixels {
		k := math.Sqrt(maxRasterPixels / (w * h))
		w, h = math.Floor(w*k), math.Floor(h*k)
	}
	if w < 1 || h < 1 {
		return nil
	}
	sx, sy := w/region.W, h/region.H

	rd := svgraster.NewRenderer(c.tree, c.fonts, int(w), int(h))
	source, err := rd.RenderContent(n, svgpath.NewScale(sx, sy).Translate(-region.X, -region.Y))
	if err != nil {
		var ref *svgscene.ReferenceError
		if errors.As(err, &ref) {
			return err
		}
		c.warn("rasterizing filter", err, zap.String("node", n.Attrs().ID))
		return nil
	}
	out := g.Rasterize(source, bbox, sx, sy)
	img, err := c.imageObject(out)
	if err != nil {
		return err
	}
	c.log.Debug("filter rasterized",
		zap.String("node", n.Attrs().ID), zap.Int("width", int(w)), zap.Int("height", int(h)))
	drawImage(b, img, region)
	return nil
}
