package paint

import (
	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
)

// gradient gathers the properties common to linear and radial gradients.
type gradient struct {
	id         string
	radial     bool
	coords     []float64 // x0 y0 x1 y1, or fx fy fr cx cy r
	degenerate bool      // zero length vector or zero radius
	units      svgscene.Units
	transform  svgpath.Matrix2D
	spread     svgscene.SpreadMethod
	stops      []svgscene.GradStop
}

func newLinear(g *svgscene.LinearGradient) gradient {
	return gradient{
		id:         g.ID,
		coords:     []float64{g.X1, g.Y1, g.X2, g.Y2},
		degenerate: g.X1 == g.X2 && g.Y1 == g.Y2,
		units:      g.Units,
		transform:  g.Transform,
		spread:     g.Spread,
		stops:      g.Stops,
	}
}

func newRadial(g *svgscene.RadialGradient) gradient {
	return gradient{
		id:         g.ID,
		radial:     true,
		coords:     []float64{g.Fx, g.Fy, g.Fr, g.Cx, g.Cy, g.R},
		degenerate: g.R <= 0,
		units:      g.Units,
		transform:  g.Transform,
		spread:     g.Spread,
		stops:      g.Stops,
	}
}

// RepairStops returns a copy of `stops` where offsets and opacities are
// clamped into [0, 1], and where an offset lower than the previous one
// is replaced by the previous one.
func RepairStops(stops []svgscene.GradStop) []svgscene.GradStop {
	out := make([]svgscene.GradStop, len(stops))
	prev := 0.
	for i, s := range stops {
		s.Offset = clamp01(s.Offset)
		if s.Offset < prev {
			s.Offset = prev
		}
		s.Opacity = clamp01(s.Opacity)
		prev = s.Offset
		out[i] = s
	}
	return out
}

// padStops adds copies of the first and last stops at offsets 0 and 1.
func padStops(stops []svgscene.GradStop) []svgscene.GradStop {
	out := make([]svgscene.GradStop, 0, len(stops)+2)
	if first := stops[0]; first.Offset != 0 {
		first.Offset = 0
		out = append(out, first)
	}
	out = append(out, stops...)
	if last := stops[len(stops)-1]; last.Offset != 1 {
		last.Offset = 1
		out = append(out, last)
	}
	return out
}

func (e *Encoder) gradient(ap *contentstream.Appearance, g gradient, opacity float64, stroke bool, ctx Context) (bool, error) {
	if g.units == svgscene.ObjectBoundingBox && ctx.BBox.IsEmpty() {
		return false, nil
	}
	stops := RepairStops(g.stops)
	if ctx.Colors != nil {
		for i, s := range stops {
			r, gr, bl := s.Color.RGB()
			r, gr, bl, s.Opacity = ctx.Colors.Apply(r, gr, bl, s.Opacity)
			stops[i].Color = svgscene.PlainColor{R: to8(r), G: to8(gr), B: to8(bl)}
			stops[i].Opacity = s.Opacity
		}
	}
	switch {
	case len(stops) == 0: // paint server "none"
		return false, nil
	case len(stops) == 1 || g.degenerate:
		last := stops[len(stops)-1]
		return true, e.solid(ap, last.Color, opacity*last.Opacity, stroke, nil)
	}
	if g.spread != svgscene.PadSpread {
		e.log().Debug("unsupported gradient spread method, using pad", zap.String("gradient", g.id), zap.Stringer("spread", g.spread))
	}

	stops = padStops(stops)
	local := g.transform
	if g.units == svgscene.ObjectBoundingBox {
		local = ctx.BBox.UnitTransform().Mult(g.transform)
	}

	shading, err := e.shading(g, stops, false)
	if err != nil {
		return false, err
	}
	matrix := pdfdraw.Matrix(ctx.Stream.Mult(local))
	key := rescache.NewHasher("shading pattern").Object(e.Cache, shading).Floats(matrix[:]...).Sum()
	pattern, err := rescache.Intern(e.Cache, key, func() (*model.PatternShading, error) {
		return &model.PatternShading{Shading: shading, Matrix: matrix}, nil
	})
	if err != nil {
		return false, err
	}

	if hasTransparentStop(stops) {
		if err := e.stopsMask(ap, g, stops, local, ctx.region()); err != nil {
			return false, err
		}
	}
	setPattern(ap, pattern, stroke)
	return true, e.SetAlpha(ap, opacity, stroke)
}

func hasTransparentStop(stops []svgscene.GradStop) bool {
	for _, s := range stops {
		if s.Opacity < 1 {
			return true
		}
	}
	return false
}

// shading interns an axial or radial shading, whose colors are the RGB
// stop colors, or the stop opacities if `opacities` is true.
// The shading is extended on both sides, as required by the pad spread method.
func (e *Encoder) shading(g gradient, stops []svgscene.GradStop, opacities bool) (*model.ShadingDict, error) {
	hs := rescache.NewHasher("shading").Bool(g.radial).Floats(g.coords...).Bool(opacities)
	for _, s := range stops {
		hs.Floats(s.Offset, float64(s.Color.R), float64(s.Color.G), float64(s.Color.B), s.Opacity)
	}
	return rescache.Intern(e.Cache, hs.Sum(), func() (*model.ShadingDict, error) {
		base := model.BaseGradient{
			Function: []model.FunctionDict{stitchingFunction(stops, opacities)},
			Extend:   [2]bool{true, true},
		}
		out := &model.ShadingDict{ColorSpace: model.ColorSpaceRGB}
		if opacities {
			out.ColorSpace = model.ColorSpaceGray
		}
		if g.radial {
			var coords [6]model.Fl
			copy(coords[:], g.coords)
			out.ShadingType = model.ShadingRadial{BaseGradient: base, Coords: coords}
		} else {
			var coords [4]model.Fl
			copy(coords[:], g.coords)
			out.ShadingType = model.ShadingAxial{BaseGradient: base, Coords: coords}
		}
		return out, nil
	})
}

// stitchingFunction returns a type 3 function, made of
// linear interpolations between each pair of (padded) stops.
func stitchingFunction(stops []svgscene.GradStop, opacities bool) model.FunctionDict {
	color := func(s svgscene.GradStop) []model.Fl {
		if opacities {
			return []model.Fl{s.Opacity}
		}
		r, g, b := s.Color.RGB()
		return []model.Fl{r, g, b}
	}
	var (
		functions []model.FunctionDict
		bounds    = []model.Fl{}
	)
	for i := 0; i+1 < len(stops); i++ {
		functions = append(functions, model.FunctionDict{
			FunctionType: model.FunctionExpInterpolation{C0: color(stops[i]), C1: color(stops[i+1]), N: 1},
			Domain:       []model.Range{{0, 1}},
		})
		if i != 0 {
			bounds = append(bounds, stops[i].Offset)
		}
	}
	return model.FunctionDict{
		FunctionType: model.FunctionStitching{
			Functions: functions,
			Bounds:    bounds,
			Encode:    model.FunctionEncodeRepeat(len(functions)),
		},
		Domain: []model.Range{{0, 1}},
	}
}

// stopsMask activates a luminosity soft mask rendering the stop opacities,
// with the same geometry as the gradient.
// The mask content is expressed in the user space of the element.
func (e *Encoder) stopsMask(ap *contentstream.Appearance, g gradient, stops []svgscene.GradStop, local svgpath.Matrix2D, region svgpath.Rect) error {
	shading, err := e.shading(g, stops, true)
	if err != nil {
		return err
	}
	matrix := pdfdraw.Matrix(local)
	key := rescache.NewHasher("stops mask").Object(e.Cache, shading).
		Floats(matrix[:]...).
		Floats(region.X, region.Y, region.W, region.H).Sum()
	gs, err := rescache.Intern(e.Cache, key, func() (*model.GraphicState, error) {
		content := contentstream.NewAppearance(region.W, region.H)
		content.Ops(contentstream.OpConcat{Matrix: matrix})
		content.Shading(shading)
		group := pdfdraw.Group(&content, region, model.ColorSpaceGray, false, e.Compress)
		return &model.GraphicState{SMask: model.SoftMaskDict{S: "Luminosity", G: group}}, nil
	})
	if err != nil {
		return err
	}
	ap.SetGraphicState(gs)
	return nil
}

func to8(f float64) uint8 { return uint8(clamp01(f)*255 + 0.5) }
