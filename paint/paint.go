// Package paint converts SVG paints (plain colors, gradients and
// patterns) into PDF color operators, shadings and patterns.
package paint

import (
	"errors"
	"fmt"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// SetLogger sets the logger used by the encoders with no Logger.
func SetLogger(l *zap.Logger) { logger = l }

// Context locates the element being painted.
type Context struct {
	// Stream maps the user space of the element to the
	// default space of the current content stream.
	Stream svgpath.Matrix2D
	// BBox is the object bounding box, in user space,
	// used to resolve objectBoundingBox units.
	BBox svgpath.Rect
	// Region is the painted area in user space (for strokes, the bounding box
	// expanded by the line width). It bounds the soft masks
	// of translucent gradients. If empty, BBox is used.
	Region svgpath.Rect
	// Colors is an optional color transform applied to every color.
	Colors *svgscene.ColorMatrix
}

func (ctx Context) region() svgpath.Rect {
	if ctx.Region.IsEmpty() {
		return ctx.BBox
	}
	return ctx.Region
}

// TileRenderer renders the content of pattern tiles.
type TileRenderer interface {
	// RenderTile draws `root` into a new content stream, whose default
	// space is the tile space. `content` maps the pattern content
	// units to the tile space.
	RenderTile(root *svgscene.Group, content svgpath.Matrix2D, colors *svgscene.ColorMatrix) (*contentstream.Appearance, error)
}

// Encoder builds the resources needed by paints.
type Encoder struct {
	Cache    *rescache.Cache
	Compress bool
	Tiles    TileRenderer
	// Tree resolves paint references. It may be nil
	// if no PaintRef is used.
	Tree *svgscene.Tree
	// Logger reports degraded paints. If nil, the logger
	// set by SetLogger is used.
	Logger *zap.Logger

	active map[*svgscene.Pattern]bool // patterns whose tile is being rendered
}

func (e *Encoder) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logger
}

// Apply selects the paint `p`, with the given opacity, as the current
// fill (or stroke) color of `ap`. It returns false if nothing should be painted,
// for instance when an objectBoundingBox paint is used on an element
// with an empty bounding box.
func (e *Encoder) Apply(ap *contentstream.Appearance, p svgscene.Paint, opacity float64, stroke bool, ctx Context) (bool, error) {
	if ref, ok := p.(svgscene.PaintRef); ok {
		if e.Tree == nil {
			return false, &svgscene.ReferenceError{Kind: "paint", ID: string(ref)}
		}
		var err error
		p, err = e.Tree.ResolvePaint(ref)
		if err != nil {
			return false, err
		}
	}

	switch p := p.(type) {
	case svgscene.PlainColor:
		return true, e.solid(ap, p, opacity, stroke, ctx.Colors)
	case *svgscene.LinearGradient:
		return e.gradient(ap, newLinear(p), opacity, stroke, ctx)
	case *svgscene.RadialGradient:
		return e.gradient(ap, newRadial(p), opacity, stroke, ctx)
	case *svgscene.Pattern:
		return e.pattern(ap, p, opacity, stroke, ctx)
	default:
		return false, fmt.Errorf("unsupported paint %T", p)
	}
}

func (e *Encoder) solid(ap *contentstream.Appearance, c svgscene.PlainColor, opacity float64, stroke bool, colors *svgscene.ColorMatrix) error {
	r, g, b := c.RGB()
	if colors != nil {
		r, g, b, opacity = colors.Apply(r, g, b, opacity)
	}
	if stroke {
		ap.Ops(contentstream.OpSetStrokeRGBColor{R: r, G: g, B: b})
	} else {
		ap.Ops(contentstream.OpSetFillRGBColor{R: r, G: g, B: b})
	}
	return e.SetAlpha(ap, opacity, stroke)
}

// SetAlpha activates an ExtGState with the given constant alpha
// for fill (ca) or stroke (CA) operations. Nothing is written for
// opaque values.
func (e *Encoder) SetAlpha(ap *contentstream.Appearance, alpha float64, stroke bool) error {
	if alpha >= 1 {
		return nil
	}
	alpha = clamp01(alpha)
	key := rescache.NewHasher("alpha").Float(alpha).Bool(stroke).Sum()
	gs, err := rescache.Intern(e.Cache, key, func() (*model.GraphicState, error) {
		if stroke {
			return &model.GraphicState{CA: model.ObjFloat(alpha)}, nil
		}
		return &model.GraphicState{Ca: model.ObjFloat(alpha)}, nil
	})
	if err != nil {
		return err
	}
	ap.SetGraphicState(gs)
	return nil
}

// SetGroupState activates an ExtGState with the given constant alpha,
// for both fill and stroke operations, and blend mode.
// Nothing is written for opaque values and normal blending.
func (e *Encoder) SetGroupState(ap *contentstream.Appearance, opacity float64, blend svgscene.BlendMode) error {
	if opacity >= 1 && blend == svgscene.Normal {
		return nil
	}
	opacity = clamp01(opacity)
	key := rescache.NewHasher("group state").Float(opacity).String(blend.String()).Sum()
	gs, err := rescache.Intern(e.Cache, key, func() (*model.GraphicState, error) {
		gs := new(model.GraphicState)
		if opacity < 1 {
			gs.CA, gs.Ca = model.ObjFloat(opacity), model.ObjFloat(opacity)
		}
		if blend != svgscene.Normal {
			gs.BM = []model.Name{model.Name(blend.String())}
		}
		return gs, nil
	})
	if err != nil {
		return err
	}
	ap.SetGraphicState(gs)
	return nil
}

// patternError locates an error in the content of a pattern.
// Only the outermost pattern is reported.
type patternError struct {
	id  string
	err error
}

func (e *patternError) Error() string { return fmt.Sprintf("pattern %s: %s", e.id, e.err) }

func (e *patternError) Unwrap() error { return e.err }

func (e *Encoder) pattern(ap *contentstream.Appearance, pat *svgscene.Pattern, opacity float64, stroke bool, ctx Context) (bool, error) {
	if e.Tiles == nil {
		return false, fmt.Errorf("no renderer for pattern %s", pat.ID)
	}
	contentOBB := pat.ContentUnits == svgscene.ObjectBoundingBox && pat.ViewBox == nil
	if (pat.Units == svgscene.ObjectBoundingBox || contentOBB) && ctx.BBox.IsEmpty() {
		return false, nil
	}
	rect := pat.Rect
	if pat.Units == svgscene.ObjectBoundingBox {
		rect = rect.Transform(ctx.BBox.UnitTransform())
	}
	if rect.IsEmpty() || pat.Root == nil {
		return false, nil
	}
	if e.active[pat] {
		return false, &svgscene.ReferenceError{Kind: "paint", ID: pat.ID, Cycle: true}
	}

	content := svgpath.Identity
	if pat.ViewBox != nil {
		content = svgpath.ViewBoxTransform(*pat.ViewBox, pat.AspectRatio, rect.W, rect.H)
	} else if contentOBB {
		// the tile origin is already in the pattern matrix
		content = svgpath.NewScale(ctx.BBox.W, ctx.BBox.H)
	}
	if e.active == nil {
		e.active = make(map[*svgscene.Pattern]bool)
	}
	e.active[pat] = true
	tile, err := e.Tiles.RenderTile(pat.Root, content, ctx.Colors)
	delete(e.active, pat)
	if err != nil {
		var inner *patternError
		if errors.As(err, &inner) {
			return false, err
		}
		return false, &patternError{id: pat.ID, err: err}
	}

	matrix := pdfdraw.Matrix(ctx.Stream.Mult(pat.Transform).Mult(svgpath.NewTranslation(rect.X, rect.Y)))
	form := tile.ToXFormObject(e.Compress)
	key := rescache.NewHasher("tiling pattern").
		Bytes(form.Content).
		Resources(e.Cache, form.Resources).
		Floats(rect.W, rect.H).
		Floats(matrix[:]...).
		Sum()
	pattern, err := rescache.Intern(e.Cache, key, func() (*model.PatternTiling, error) {
		return &model.PatternTiling{
			ContentStream: form.ContentStream,
			PaintType:     1,
			TilingType:    1,
			BBox:          model.Rectangle{Urx: rect.W, Ury: rect.H},
			XStep:         rect.W,
			YStep:         rect.H,
			Resources:     form.Resources,
			Matrix:        matrix,
		}, nil
	})
	if err != nil {
		return false, err
	}
	setPattern(ap, pattern, stroke)
	return true, e.SetAlpha(ap, opacity, stroke)
}

func setPattern(ap *contentstream.Appearance, pattern model.Pattern, stroke bool) {
	name := ap.AddPattern(pattern)
	if stroke {
		ap.Ops(contentstream.OpSetStrokeColorSpace{ColorSpace: model.Name(model.ColorSpacePattern)},
			contentstream.OpSetStrokeColorN{Pattern: name})
	} else {
		ap.Ops(contentstream.OpSetFillColorSpace{ColorSpace: model.Name(model.ColorSpacePattern)},
			contentstream.OpSetFillColorN{Pattern: name})
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
