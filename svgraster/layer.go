package svgraster

import (
	"image"
	"image/color"
	"math"

	"github.com/benoitkugler/svg2pdf/filter"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"golang.org/x/image/draw"
)

// needsLayer returns true if the node must be drawn in
// a separated image before being composited.
func needsLayer(attrs *svgscene.Common) bool {
	return attrs.Opacity < 1 || attrs.ClipPath != "" || attrs.Mask != "" ||
		attrs.Filter != "" || attrs.Blend != svgscene.Normal
}

// drawLayer applies, in order, the filter, the clip path,
// the mask, the opacity and the blend mode of `n`.
func (rd *Renderer) drawLayer(dst *image.RGBA, n svgscene.Node, m svgpath.Matrix2D) error {
	attrs := n.Attrs()
	bbox, _ := svgscene.Bounds(n)

	layer := rd.newLayer()
	if err := rd.drawContent(layer, n, m); err != nil {
		return err
	}
	if attrs.Filter != "" {
		f, err := rd.tree.FilterByID(attrs.Filter)
		if err != nil {
			return err
		}
		g, err := filter.Build(f)
		if err != nil {
			return err
		}
		var ok bool
		layer, ok = rd.applyFilter(layer, g, bbox, m)
		if !ok {
			return nil
		}
	}

	mask := image.NewAlpha(layer.Bounds())
	fillAlpha(mask, uint8(clamp01(attrs.Opacity)*0xFF+0.5))
	if attrs.ClipPath != "" {
		chain, err := rd.tree.ClipChain(attrs.ClipPath)
		if err != nil {
			return err
		}
		multiply(mask, rd.clipAlpha(chain, bbox, m))
	}
	if attrs.Mask != "" {
		mk, err := rd.tree.MaskByID(attrs.Mask)
		if err != nil {
			return err
		}
		alpha, err := rd.maskAlpha(mk, bbox, m)
		if err != nil {
			return err
		}
		multiply(mask, alpha)
	}

	if attrs.Blend != svgscene.Normal {
		masked := rd.newLayer()
		draw.DrawMask(masked, masked.Bounds(), layer, image.Point{}, mask, image.Point{}, draw.Src)
		filter.BlendImage(dst, masked, attrs.Blend)
		return nil
	}
	draw.DrawMask(dst, dst.Bounds(), layer, image.Point{}, mask, image.Point{}, draw.Over)
	return nil
}

// applyFilter runs the chain on the part of `layer` inside the filter region.
// It returns false if the element is not rendered.
func (rd *Renderer) applyFilter(layer *image.RGBA, g *filter.Graph, bbox svgpath.Rect, m svgpath.Matrix2D) (*image.RGBA, bool) {
	if g.IsEmpty() {
		return nil, false
	}
	region, ok := g.Region(bbox)
	if !ok {
		return nil, false
	}
	dev := region.Transform(m)
	rect := image.Rect(
		int(math.Floor(dev.X)), int(math.Floor(dev.Y)),
		int(math.Ceil(dev.X+dev.W)), int(math.Ceil(dev.Y+dev.H)),
	).Intersect(layer.Bounds())
	out := rd.newLayer()
	if rect.Empty() {
		return out, true
	}
	source := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(source, source.Bounds(), layer, rect.Min, draw.Src)
	scale := m.ScaleFactor()
	result := g.Rasterize(source, bbox, scale, scale)
	draw.Draw(out, rect, result, image.Point{}, draw.Src)
	return out, true
}

// coverage fills `path` in white, into `dst`.
func (rd *Renderer) coverage(dst *image.RGBA, path svgpath.Path, m svgpath.Matrix2D, nonZero bool) {
	rd.scanner.Dest = dst
	rd.filler.Clear()
	rd.SetWinding(nonZero)
	path.AddTo(adder{rd.filler, m})
	rd.scanner.SetColor(color.White)
	rd.filler.Draw()
}

// clipAlpha renders the clip chain: the shapes of each level are merged,
// and the levels are intersected.
func (rd *Renderer) clipAlpha(chain []*svgscene.ClipPath, bbox svgpath.Rect, m svgpath.Matrix2D) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, rd.width, rd.height))
	fillAlpha(out, 0xFF)
	for _, level := range chain {
		lm := level.Transform
		if level.Units == svgscene.ObjectBoundingBox {
			if bbox.IsEmpty() {
				fillAlpha(out, 0)
				return out
			}
			lm = lm.Mult(bbox.UnitTransform())
		}
		cov := rd.newLayer()
		for _, shape := range level.Shapes {
			if shape.Transform.IsSingular() {
				continue
			}
			rd.coverage(cov, shape.Path, m.Mult(lm).Mult(shape.Transform), shape.Rule == svgscene.NonZero)
		}
		multiply(out, alphaOf(cov))
	}
	return out
}

// maskAlpha renders the mask content, restricted to the mask region,
// and converts it to alpha values.
func (rd *Renderer) maskAlpha(mk *svgscene.Mask, bbox svgpath.Rect, m svgpath.Matrix2D) (*image.Alpha, error) {
	out := image.NewAlpha(image.Rect(0, 0, rd.width, rd.height))
	obb := mk.Units == svgscene.ObjectBoundingBox || mk.ContentUnits == svgscene.ObjectBoundingBox
	if obb && bbox.IsEmpty() {
		return out, nil
	}
	key := "mask " + mk.ID
	if rd.active[key] {
		return nil, &svgscene.ReferenceError{Kind: "mask", ID: mk.ID, Cycle: true}
	}
	rd.active[key] = true
	defer delete(rd.active, key)

	rect := mk.Rect
	if mk.Units == svgscene.ObjectBoundingBox {
		rect = rect.Transform(bbox.UnitTransform())
	}
	if rect.IsEmpty() {
		return out, nil
	}
	content := m
	if mk.ContentUnits == svgscene.ObjectBoundingBox {
		content = content.Mult(bbox.UnitTransform())
	}
	layer := rd.newLayer()
	if mk.Root != nil {
		if err := rd.drawNode(layer, mk.Root, content); err != nil {
			return nil, err
		}
	}
	region := rd.newLayer()
	rd.coverage(region, rect.Path(), m, true)

	for i := range out.Pix {
		px := layer.Pix[4*i : 4*i+4]
		var v float64 // premultiplied values give lum * alpha
		if mk.Kind == svgscene.Alpha {
			v = float64(px[3])
		} else {
			v = 0.2125*float64(px[0]) + 0.7154*float64(px[1]) + 0.0721*float64(px[2])
		}
		out.Pix[i] = uint8(math.Min(0xFF, v*float64(region.Pix[4*i+3])/0xFF+0.5))
	}

	if mk.Mask != "" {
		nested, err := rd.tree.MaskByID(mk.Mask)
		if err != nil {
			return nil, err
		}
		alpha, err := rd.maskAlpha(nested, bbox, m)
		if err != nil {
			return nil, err
		}
		multiply(out, alpha)
	}
	return out, nil
}

func fillAlpha(img *image.Alpha, v uint8) {
	for i := range img.Pix {
		img.Pix[i] = v
	}
}

// alphaOf extracts the alpha channel of an image starting at the origin.
func alphaOf(img *image.RGBA) *image.Alpha {
	out := image.NewAlpha(img.Bounds())
	for i := range out.Pix {
		out.Pix[i] = img.Pix[4*i+3]
	}
	return out
}

// multiply stores a * b in a. Both images have the same bounds.
func multiply(a, b *image.Alpha) {
	for i, v := range b.Pix {
		a.Pix[i] = uint8((uint32(a.Pix[i])*uint32(v) + 0x7F) / 0xFF)
	}
}
