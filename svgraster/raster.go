// Implements a raster backend to render scene trees,
// by wrapping rasterx.
// The PDF converter falls back to it for the content
// it can't express with vector constructs.
package svgraster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // decoder
	_ "image/jpeg" // decoder
	_ "image/png"  // decoder
	"math"

	"github.com/benoitkugler/svg2pdf/paint"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // decoder
)

// Outliner provides the glyph outlines used to draw text.
type Outliner interface {
	// GlyphOutline returns the outline of a glyph, for a font size of 1,
	// with the y axis pointing down.
	GlyphOutline(font svgscene.FontID, gid uint16) (svgpath.Path, error)
}

// Renderer draws scene nodes into images of a fixed size.
type Renderer struct {
	tree          *svgscene.Tree
	fonts         Outliner
	width, height int

	scanner *rasterx.ScannerGV
	dasher  *rasterx.Dasher // to avoid shared state
	filler  *rasterx.Filler // we use separated instance

	active map[string]bool // patterns and masks being rendered
}

// NewRenderer returns a renderer producing `width` x `height` images.
// `fonts` is only required for text nodes.
func NewRenderer(tree *svgscene.Tree, fonts Outliner, width, height int) *Renderer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	return &Renderer{
		tree: tree, fonts: fonts, width: width, height: height,
		scanner: scanner,
		dasher:  rasterx.NewDasher(width, height, scanner),
		filler:  rasterx.NewFiller(width, height, scanner),
		active:  map[string]bool{},
	}
}

// child returns a renderer of a different size, sharing
// the cycle detection state.
func (rd *Renderer) child(width, height int) *Renderer {
	out := NewRenderer(rd.tree, rd.fonts, width, height)
	out.active = rd.active
	return out
}

func (rd *Renderer) newLayer() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, rd.width, rd.height))
}

// Render draws `n`, whose parent user space is mapped to pixels by `m`,
// into a new transparent image.
func (rd *Renderer) Render(n svgscene.Node, m svgpath.Matrix2D) (*image.RGBA, error) {
	img := rd.newLayer()
	err := rd.drawNode(img, n, m)
	return img, err
}

// RenderContent draws the content of `n`, ignoring its transform,
// clip path, mask, filter, opacity and blend mode. `m` maps the user
// space of `n` to pixels.
func (rd *Renderer) RenderContent(n svgscene.Node, m svgpath.Matrix2D) (*image.RGBA, error) {
	img := rd.newLayer()
	err := rd.drawContent(img, n, m)
	return img, err
}

// RasterTree renders the whole tree, with `scale` pixels per user unit.
func RasterTree(tree *svgscene.Tree, fonts Outliner, scale float64) (*image.RGBA, error) {
	w, h := int(math.Ceil(tree.Width*scale)), int(math.Ceil(tree.Height*scale))
	rd := NewRenderer(tree, fonts, w, h)
	return rd.Render(tree.Root, svgpath.NewScale(scale, scale).Mult(tree.ViewBoxTransform()))
}

func (rd *Renderer) drawNode(dst *image.RGBA, n svgscene.Node, m svgpath.Matrix2D) error {
	attrs := n.Attrs()
	if attrs.Transform.IsSingular() || attrs.Opacity <= 0 {
		return nil
	}
	m = m.Mult(attrs.Transform)
	if needsLayer(attrs) {
		return rd.drawLayer(dst, n, m)
	}
	return rd.drawContent(dst, n, m)
}

// drawContent ignores the attributes handled by drawLayer.
func (rd *Renderer) drawContent(dst *image.RGBA, n svgscene.Node, m svgpath.Matrix2D) error {
	switch n := n.(type) {
	case *svgscene.Group:
		for _, child := range n.Children {
			if err := rd.drawNode(dst, child, m); err != nil {
				return err
			}
		}
	case *svgscene.Path:
		return rd.drawPath(dst, n.Path, n.Fill, n.Stroke, m, n.Path.Bounds())
	case *svgscene.Image:
		return rd.drawImage(dst, n, m)
	case *svgscene.Text:
		return rd.drawText(dst, n, m)
	}
	return nil
}

// adder maps user space points to pixels, in fixed precision.
type adder struct {
	a rasterx.Adder
	m svgpath.Matrix2D
}

func (d adder) Start(a svgpath.Point) { d.a.Start(d.m.Apply(a).Fixed()) }
func (d adder) Line(b svgpath.Point)  { d.a.Line(d.m.Apply(b).Fixed()) }
func (d adder) QuadBezier(b, c svgpath.Point) {
	d.a.QuadBezier(d.m.Apply(b).Fixed(), d.m.Apply(c).Fixed())
}

func (d adder) CubeBezier(b, c, e svgpath.Point) {
	d.a.CubeBezier(d.m.Apply(b).Fixed(), d.m.Apply(c).Fixed(), d.m.Apply(e).Fixed())
}
func (d adder) Stop(closeLoop bool) { d.a.Stop(closeLoop) }

func (rd *Renderer) SetWinding(useNonZeroWinding bool) {
	rd.dasher.SetWinding(useNonZeroWinding)
	rd.filler.SetWinding(useNonZeroWinding)
}

// drawPath fills then strokes `path`, whose bounding box
// (used by objectBoundingBox paints) is `bbox`.
func (rd *Renderer) drawPath(dst *image.RGBA, path svgpath.Path, fill *svgscene.Fill, stroke *svgscene.Stroke,
	m svgpath.Matrix2D, bbox svgpath.Rect,
) error {
	rd.scanner.Dest = dst
	if fill != nil && fill.Opacity > 0 {
		rd.filler.Clear()
		rd.SetWinding(fill.Rule == svgscene.NonZero)
		path.AddTo(adder{rd.filler, m})
		ok, err := rd.setColor(fill.Paint, fill.Opacity, m, bbox)
		if err != nil {
			return err
		}
		if ok {
			rd.filler.Draw()
		}
	}
	if stroke != nil && stroke.Opacity > 0 && stroke.Width > 0 {
		rd.dasher.Clear()
		rd.SetWinding(true)
		rd.setStrokeOptions(stroke, m.ScaleFactor())
		path.AddTo(adder{rd.dasher, m})
		ok, err := rd.setColor(stroke.Paint, stroke.Opacity, m, bbox)
		if err != nil {
			return err
		}
		if ok {
			rd.dasher.Draw()
		}
	}
	return nil
}

var (
	joinToJoin = [...]rasterx.JoinMode{
		svgscene.Round:     rasterx.Round,
		svgscene.Bevel:     rasterx.Bevel,
		svgscene.Miter:     rasterx.Miter,
		svgscene.MiterClip: rasterx.MiterClip,
		svgscene.Arc:       rasterx.Arc,
		svgscene.ArcClip:   rasterx.ArcClip,
	}

	capToFunc = [...]rasterx.CapFunc{
		svgscene.ButtCap:   rasterx.ButtCap,
		svgscene.SquareCap: rasterx.SquareCap,
		svgscene.RoundCap:  rasterx.RoundCap,
	}
)

// setStrokeOptions configures the dasher for strokes drawn
// with `scale` pixels per user unit.
func (rd *Renderer) setStrokeOptions(s *svgscene.Stroke, scale float64) {
	dashes := s.Dash
	if len(dashes)%2 == 1 {
		dashes = append(append([]float64(nil), dashes...), dashes...)
	}
	scaled := make([]float64, len(dashes))
	for i, d := range dashes {
		scaled[i] = d * scale
	}
	rd.dasher.SetStroke(
		fixed.Int26_6(s.Width*scale*64), fixed.Int26_6(s.MiterLimit*64),
		capToFunc[s.Cap], capToFunc[s.Cap], rasterx.FlatGap,
		joinToJoin[s.Join], scaled, s.DashOffset*scale,
	)
}

// setColor resolves the paint, returning false if nothing should be drawn.
func (rd *Renderer) setColor(p svgscene.Paint, opacity float64, m svgpath.Matrix2D, bbox svgpath.Rect) (bool, error) {
	p, err := rd.tree.ResolvePaint(p)
	if err != nil {
		return false, err
	}
	switch p := p.(type) {
	case svgscene.PlainColor:
		rd.scanner.SetColor(rasterx.ApplyOpacity(color.RGBA{p.R, p.G, p.B, 0xFF}, opacity))
		return true, nil
	case *svgscene.LinearGradient, *svgscene.RadialGradient:
		fn, ok := gradientColor(p, opacity, m, bbox)
		if ok {
			rd.scanner.SetColor(fn)
		}
		return ok, nil
	case *svgscene.Pattern:
		fn, ok, err := rd.patternColor(p, opacity, m, bbox)
		if err != nil || !ok {
			return false, err
		}
		rd.scanner.SetColor(fn)
		return true, nil
	}
	return false, nil
}

// gradientColor returns a color or a rasterx.ColorFunc.
func gradientColor(p svgscene.Paint, opacity float64, m svgpath.Matrix2D, bbox svgpath.Rect) (interface{}, bool) {
	var (
		grad      rasterx.Gradient
		units     svgscene.Units
		transform svgpath.Matrix2D
		stops     []svgscene.GradStop
		flat      bool // degenerate gradient
	)
	switch p := p.(type) {
	case *svgscene.LinearGradient:
		grad.Points = [5]float64{p.X1, p.Y1, p.X2, p.Y2}
		grad.Spread = rasterx.SpreadMethod(p.Spread)
		units, transform, stops = p.Units, p.Transform, p.Stops
		flat = p.X1 == p.X2 && p.Y1 == p.Y2
	case *svgscene.RadialGradient:
		grad.Points = [5]float64{p.Cx, p.Cy, p.Fx, p.Fy, p.R} // in rasterx fr is ignored
		grad.Spread = rasterx.SpreadMethod(p.Spread)
		grad.IsRadial = true
		units, transform, stops = p.Units, p.Transform, p.Stops
		flat = p.R <= 0
	}
	stops = paint.RepairStops(stops)
	if len(stops) == 0 {
		return nil, false
	}
	if flat || len(stops) == 1 {
		last := stops[len(stops)-1]
		return stopColor(last, opacity), true
	}

	// the color function works in pixel space: express the gradient
	// as a unit bounding box mapped to pixels by the whole matrix
	full := m
	if units == svgscene.ObjectBoundingBox {
		if bbox.IsEmpty() {
			return nil, false
		}
		full = full.Mult(bbox.UnitTransform())
	}
	full = full.Mult(transform)
	if full.IsSingular() {
		return nil, false
	}
	grad.Units = rasterx.ObjectBoundingBox
	grad.Bounds.W, grad.Bounds.H = 1, 1
	grad.Matrix = rasterx.Matrix2D(full)
	grad.Stops = make([]rasterx.GradStop, len(stops))
	for i, s := range stops {
		grad.Stops[i] = rasterx.GradStop{
			StopColor: color.RGBA{s.Color.R, s.Color.G, s.Color.B, 0xFF},
			Offset:    s.Offset,
			Opacity:   s.Opacity,
		}
	}
	return grad.GetColorFunction(opacity), true
}

func stopColor(s svgscene.GradStop, opacity float64) color.NRGBA {
	return rasterx.ApplyOpacity(color.RGBA{s.Color.R, s.Color.G, s.Color.B, 0xFF}, s.Opacity*opacity)
}

// patternColor renders one tile and repeats it.
func (rd *Renderer) patternColor(pat *svgscene.Pattern, opacity float64, m svgpath.Matrix2D, bbox svgpath.Rect) (rasterx.ColorFunc, bool, error) {
	contentOBB := pat.ContentUnits == svgscene.ObjectBoundingBox && pat.ViewBox == nil
	if (pat.Units == svgscene.ObjectBoundingBox || contentOBB) && bbox.IsEmpty() {
		return nil, false, nil
	}
	rect := pat.Rect
	if pat.Units == svgscene.ObjectBoundingBox {
		rect = rect.Transform(bbox.UnitTransform())
	}
	if rect.IsEmpty() || pat.Root == nil {
		return nil, false, nil
	}
	tileToPixels := m.Mult(pat.Transform).Mult(svgpath.NewTranslation(rect.X, rect.Y))
	if tileToPixels.IsSingular() {
		return nil, false, nil
	}
	scale := tileToPixels.ScaleFactor()
	w, h := int(math.Ceil(rect.W*scale)), int(math.Ceil(rect.H*scale))
	if w <= 0 || h <= 0 {
		return nil, false, nil
	}

	content := svgpath.Identity
	if pat.ViewBox != nil {
		content = svgpath.ViewBoxTransform(*pat.ViewBox, pat.AspectRatio, rect.W, rect.H)
	} else if contentOBB {
		content = svgpath.NewScale(bbox.W, bbox.H)
	}
	key := "pattern " + pat.ID
	if rd.active[key] {
		return nil, false, &svgscene.ReferenceError{Kind: "paint", ID: pat.ID, Cycle: true}
	}
	rd.active[key] = true
	defer delete(rd.active, key)

	sx, sy := float64(w)/rect.W, float64(h)/rect.H
	tile, err := rd.child(w, h).Render(pat.Root, svgpath.NewScale(sx, sy).Mult(content))
	if err != nil {
		return nil, false, fmt.Errorf("pattern %s: %w", pat.ID, err)
	}

	inv := tileToPixels.Invert()
	alpha := uint32(clamp01(opacity) * 0xFF)
	return func(x, y int) color.Color {
		u, v := inv.Transform(float64(x)+0.5, float64(y)+0.5)
		u, v = math.Mod(u, rect.W), math.Mod(v, rect.H)
		if u < 0 {
			u += rect.W
		}
		if v < 0 {
			v += rect.H
		}
		c := tile.RGBAAt(int(u*sx)%w, int(v*sy)%h)
		return color.RGBA{
			uint8(uint32(c.R) * alpha / 0xFF), uint8(uint32(c.G) * alpha / 0xFF),
			uint8(uint32(c.B) * alpha / 0xFF), uint8(uint32(c.A) * alpha / 0xFF),
		}
	}, true, nil
}

func clamp01(f float64) float64 { return math.Max(0, math.Min(1, f)) }

func (rd *Renderer) drawImage(dst *image.RGBA, img *svgscene.Image, m svgpath.Matrix2D) error {
	if img.Rect.IsEmpty() {
		return nil
	}
	src := img.Decoded
	if src == nil {
		var err error
		src, _, err = image.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return fmt.Errorf("decoding image %s: %w", img.ID, err)
		}
	}
	b := src.Bounds()
	if b.Empty() {
		return nil
	}
	s2d := m.Mult(svgpath.NewTranslation(img.Rect.X, img.Rect.Y)).
		Mult(svgpath.NewScale(img.Rect.W/float64(b.Dx()), img.Rect.H/float64(b.Dy()))).
		Mult(svgpath.NewTranslation(-float64(b.Min.X), -float64(b.Min.Y)))
	draw.BiLinear.Transform(dst, f64.Aff3{s2d.A, s2d.C, s2d.E, s2d.B, s2d.D, s2d.F}, src, b, draw.Over, nil)
	return nil
}

var errNoOutlines = errors.New("no glyph outlines available for text")

func (rd *Renderer) drawText(dst *image.RGBA, t *svgscene.Text, m svgpath.Matrix2D) error {
	if rd.fonts == nil {
		return errNoOutlines
	}
	bbox, _ := svgscene.Bounds(t)
	for _, run := range t.Runs {
		var path svgpath.Path
		for _, g := range run.Glyphs {
			outline, err := rd.fonts.GlyphOutline(run.Font, g.ID)
			if err != nil {
				return err
			}
			path = append(path, outline.Transform(svgpath.NewTranslation(g.X, g.Y).Scale(run.Size, run.Size))...)
		}
		if err := rd.drawPath(dst, path, run.Fill, run.Stroke, m, bbox); err != nil {
			return err
		}
	}
	return nil
}
