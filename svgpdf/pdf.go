package svgpdf

import (
	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/clipmask"
	"github.com/benoitkugler/svg2pdf/filter"
	"github.com/benoitkugler/svg2pdf/paint"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
)

// assert interface conformance
var (
	_ paint.TileRenderer = (*converter)(nil)
	_ clipmask.Renderer  = (*converter)(nil)
)

// node draws `n` and its descendants, in painting order.
// Each node is enclosed in a q/Q pair.
func (c *converter) node(b *contentstream.Appearance, n svgscene.Node) error {
	attrs := n.Attrs()
	if attrs.Transform.IsSingular() || attrs.Opacity <= 0 {
		return nil
	}
	st := c.top().concat(attrs.Transform)
	st.opacity *= attrs.Opacity
	if attrs.Blend != svgscene.Normal {
		st.blend = attrs.Blend
	}
	if err := c.push(st); err != nil {
		return err
	}
	defer c.pop()

	b.Ops(contentstream.OpSave{})
	if !attrs.Transform.IsIdentity() {
		b.Ops(contentstream.OpConcat{Matrix: pdfdraw.Matrix(attrs.Transform)})
	}
	err := c.effects(b, n)
	b.Ops(contentstream.OpRestore{})
	return err
}

// effects applies the filter, the clip path, the mask, the opacity and
// the blend mode of `n`, in this order, around its content.
func (c *converter) effects(b *contentstream.Appearance, n svgscene.Node) error {
	attrs := n.Attrs()
	bbox, _ := svgscene.Bounds(n)
	region, ok := c.paintedBounds(n)

	draw := func(b *contentstream.Appearance) error { return c.content(b, n) }
	if attrs.Filter != "" {
		f, err := c.tree.FilterByID(attrs.Filter)
		if err != nil {
			return err
		}
		g, err := filter.Build(f)
		if err != nil {
			return err
		}
		if g.IsEmpty() { // disables the rendering
			return nil
		}
		region, ok = g.Region(bbox)
		if !ok {
			return nil
		}
		draw = c.filterDrawer(n, g, bbox, region)
	}
	if !ok {
		return nil
	}

	var softClip, mask *model.GraphicState
	if attrs.ClipPath != "" {
		chain, err := c.tree.ClipChain(attrs.ClipPath)
		if err != nil {
			return err
		}
		bounds, ok := clipmask.Bounds(chain, bbox)
		if !ok {
			return nil
		}
		c.restrict(bounds)
		region = region.Intersect(bounds)
		if region.IsEmpty() {
			return nil
		}
		if clipmask.Native(chain) {
			if !clipmask.ClipNative(b, chain, bbox) {
				return nil
			}
		} else {
			softClip, ok, err = c.clips.ClipMask(chain, bbox, region)
			if err != nil || !ok {
				return err
			}
		}
	}
	if attrs.Mask != "" {
		m, err := c.tree.MaskByID(attrs.Mask)
		if err != nil {
			return err
		}
		mask, ok, err = c.clips.Mask(m, bbox)
		if err != nil || !ok {
			return err
		}
	}

	group, _ := n.(*svgscene.Group)
	isolate := group != nil && group.Isolate
	if softClip == nil && mask == nil && attrs.Opacity >= 1 && attrs.Blend == svgscene.Normal && !isolate {
		return draw(b)
	}

	form, err := c.group(region, isolate, draw)
	if err != nil {
		return err
	}
	if softClip != nil && mask != nil {
		// one soft mask per graphics state: the mask is applied in a nested group
		inner := form
		form, err = c.group(region, false, func(b *contentstream.Appearance) error {
			b.SetGraphicState(mask)
			b.AddXObject(inner)
			return nil
		})
		if err != nil {
			return err
		}
		mask = nil
	}
	for _, gs := range [...]*model.GraphicState{softClip, mask} {
		if gs != nil {
			b.SetGraphicState(gs)
		}
	}
	if err := c.paints.SetGroupState(b, attrs.Opacity, attrs.Blend); err != nil {
		return err
	}
	b.AddXObject(form)
	return nil
}

// group draws into a transparency group form XObject, whose space is the
// current user space, and returns it, interned.
func (c *converter) group(bbox svgpath.Rect, isolated bool, draw func(*contentstream.Appearance) error) (*model.XObjectTransparencyGroup, error) {
	if err := c.push(c.top().form()); err != nil {
		return nil, err
	}
	content := contentstream.NewAppearance(bbox.W, bbox.H)
	err := draw(&content)
	c.pop()
	if err != nil {
		return nil, err
	}

	group := pdfdraw.Group(&content, bbox, model.ColorSpaceRGB, isolated, c.opts.Compress)
	key := rescache.NewHasher("group").
		Bytes(group.Content).
		Resources(c.cache, group.Resources).
		Floats(bbox.X, bbox.Y, bbox.W, bbox.H).
		Bool(isolated).
		Sum()
	return rescache.Intern(c.cache, key, func() (*model.XObjectTransparencyGroup, error) { return group, nil })
}

// content draws `n` without its effects.
func (c *converter) content(b *contentstream.Appearance, n svgscene.Node) error {
	switch n := n.(type) {
	case *svgscene.Group:
		for _, child := range n.Children {
			if err := c.node(b, child); err != nil {
				return err
			}
		}
	case *svgscene.Path:
		return c.shape(b, n.Path, n.Fill, n.Stroke, n.Path.Bounds())
	case *svgscene.Image:
		return c.image(b, n)
	case *svgscene.Text:
		return c.text(b, n)
	}
	return nil
}

// shape fills then strokes `path`. `bbox` is the bounding box used
// by objectBoundingBox paints.
func (c *converter) shape(b *contentstream.Appearance, path svgpath.Path, fill *svgscene.Fill, stroke *svgscene.Stroke, bbox svgpath.Rect) error {
	if path.IsEmpty() {
		return nil
	}
	st := c.top()
	if fill != nil && fill.Paint != nil {
		b.Ops(contentstream.OpSave{})
		ctx := paint.Context{Stream: st.stream, BBox: bbox, Colors: st.colors}
		ok, err := c.paints.Apply(b, fill.Paint, fill.Opacity, false, ctx)
		if err != nil {
			return err
		}
		if ok {
			pdfdraw.Path(b, path)
			if fill.Rule == svgscene.EvenOdd {
				b.Ops(contentstream.OpEOFill{})
			} else {
				b.Ops(contentstream.OpFill{})
			}
		}
		b.Ops(contentstream.OpRestore{})
	}
	if stroke != nil && stroke.Paint != nil && stroke.Width > 0 {
		b.Ops(contentstream.OpSave{})
		d := strokeExtent(stroke)
		ctx := paint.Context{Stream: st.stream, BBox: bbox, Region: path.Bounds().Expand(d, d), Colors: st.colors}
		ok, err := c.paints.Apply(b, stroke.Paint, stroke.Opacity, true, ctx)
		if err != nil {
			return err
		}
		if ok {
			strokeOptions(b, stroke)
			pdfdraw.Path(b, path)
			b.Ops(contentstream.OpStroke{})
		}
		b.Ops(contentstream.OpRestore{})
	}
	return nil
}

var lineCaps = [...]uint8{
	svgscene.ButtCap:   0,
	svgscene.RoundCap:  1,
	svgscene.SquareCap: 2,
}

func lineJoin(j svgscene.JoinMode) uint8 {
	switch j {
	case svgscene.Round, svgscene.Arc:
		return 1
	case svgscene.Bevel:
		return 2
	default: // miter and miter-clip
		return 0
	}
}

func strokeOptions(b *contentstream.Appearance, s *svgscene.Stroke) {
	b.Ops(contentstream.OpSetLineWidth{W: s.Width})
	if int(s.Cap) < len(lineCaps) && s.Cap != svgscene.ButtCap {
		b.Ops(contentstream.OpSetLineCap{Style: lineCaps[s.Cap]})
	}
	if join := lineJoin(s.Join); join != 0 {
		b.Ops(contentstream.OpSetLineJoin{Style: join})
	}
	if s.MiterLimit >= 1 {
		b.Ops(contentstream.OpSetMiterLimit{Limit: s.MiterLimit})
	}
	if dash := dashArray(s.Dash); dash != nil {
		b.Ops(contentstream.OpSetDash{Dash: model.DashPattern{Array: dash, Phase: s.DashOffset}})
	}
}

// dashArray returns nil for invalid or empty dash arrays.
// Odd arrays are repeated.
func dashArray(dash []float64) []float64 {
	var sum float64
	for _, d := range dash {
		if d < 0 {
			return nil
		}
		sum += d
	}
	if sum == 0 {
		return nil
	}
	if len(dash)%2 == 1 {
		return append(append([]float64(nil), dash...), dash...)
	}
	return dash
}

// RenderTile implements paint.TileRenderer.
func (c *converter) RenderTile(root *svgscene.Group, content svgpath.Matrix2D, colors *svgscene.ColorMatrix) (*contentstream.Appearance, error) {
	st := c.top().detached(content)
	st.colors = colors
	ap := contentstream.NewAppearance(1, 1) // the bounding box is set by the pattern
	return &ap, c.drawDetached(&ap, st, content, root)
}

// Render implements clipmask.Renderer.
func (c *converter) Render(b *contentstream.Appearance, root *svgscene.Group, m svgpath.Matrix2D) error {
	return c.drawDetached(b, c.top().detached(m), m, root)
}

func (c *converter) drawDetached(b *contentstream.Appearance, st state, m svgpath.Matrix2D, root *svgscene.Group) error {
	if err := c.push(st); err != nil {
		return err
	}
	defer c.pop()
	if !m.IsIdentity() {
		b.Ops(contentstream.OpConcat{Matrix: pdfdraw.Matrix(m)})
	}
	return c.node(b, root)
}
