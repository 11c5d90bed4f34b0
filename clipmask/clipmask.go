// Package clipmask converts SVG clip paths and masks to PDF:
// clipping paths when PDF can express the clip natively, and
// soft masks otherwise.
package clipmask

import (
	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
)

// Renderer draws the content of masks.
type Renderer interface {
	// Render draws `root` into `ap`, the content stream of a new form,
	// whose default space is mapped to the user space of `root` by `m`.
	Render(ap *contentstream.Appearance, root *svgscene.Group, m svgpath.Matrix2D) error
}

// Compositor writes clipping operators and soft masks.
type Compositor struct {
	Cache    *rescache.Cache
	Compress bool
	Tree     *svgscene.Tree
	Renderer Renderer

	active map[string]bool // masks being rendered
}

// Native returns true if the clip chain may be expressed with
// PDF clipping paths, which is the case if every level is made of
// exactly one shape: PDF intersects successive clipping paths,
// but has no way of expressing an union.
func Native(chain []*svgscene.ClipPath) bool {
	for _, level := range chain {
		if len(level.Shapes) != 1 {
			return false
		}
	}
	return true
}

// levelMatrix returns the matrix mapping the coordinates of the
// shapes of `clip` to the user space of the clipped element.
// It returns false if the clip path uses objectBoundingBox units
// with an empty bounding box.
func levelMatrix(clip *svgscene.ClipPath, bbox svgpath.Rect) (svgpath.Matrix2D, bool) {
	m := clip.Transform
	if clip.Units == svgscene.ObjectBoundingBox {
		if bbox.IsEmpty() {
			return svgpath.Matrix2D{}, false
		}
		m = m.Mult(bbox.UnitTransform())
	}
	return m, !m.IsSingular()
}

// Bounds returns the region, in user space, outside of which
// the chain clips everything, or false if the chain clips everything.
func Bounds(chain []*svgscene.ClipPath, bbox svgpath.Rect) (svgpath.Rect, bool) {
	var out svgpath.Rect
	for i, level := range chain {
		m, ok := levelMatrix(level, bbox)
		if !ok {
			return svgpath.Rect{}, false
		}
		var bb svgpath.BoundingBox
		for _, shape := range level.Shapes {
			if shape.Transform.IsSingular() {
				continue
			}
			bb.AddRect(shape.Path.BoundsIn(m.Mult(shape.Transform)))
		}
		r := bb.Rect()
		if i == 0 {
			out = r
		} else {
			out = out.Intersect(r)
		}
		if out.IsEmpty() {
			return svgpath.Rect{}, false
		}
	}
	return out, true
}

// ClipNative writes the clipping paths of a chain accepted by Native,
// expressed in the current user space. It returns false if the clip hides
// everything, in which case nothing is written.
func ClipNative(ap *contentstream.Appearance, chain []*svgscene.ClipPath, bbox svgpath.Rect) bool {
	paths := make([]svgpath.Path, len(chain))
	for i, level := range chain {
		m, ok := levelMatrix(level, bbox)
		shape := level.Shapes[0]
		if !ok || shape.Transform.IsSingular() {
			return false
		}
		paths[i] = shape.Path.Transform(m.Mult(shape.Transform))
	}
	for i, p := range paths {
		pdfdraw.Path(ap, p)
		if chain[i].Shapes[0].Rule == svgscene.EvenOdd {
			ap.Ops(contentstream.OpEOClip{})
		} else {
			ap.Ops(contentstream.OpClip{})
		}
		ap.Ops(contentstream.OpEndPath{})
	}
	return true
}

// ClipMask returns an ExtGState whose luminosity soft mask
// is white inside the clip chain and black outside,
// expressed in the user space of the element.
// `region` is the area of the element, in user space.
func (c *Compositor) ClipMask(chain []*svgscene.ClipPath, bbox, region svgpath.Rect) (*model.GraphicState, bool, error) {
	content := contentstream.NewAppearance(region.W, region.H)
	ok, err := c.clipContent(&content, chain, bbox, region)
	if err != nil || !ok {
		return nil, ok, err
	}
	group, err := c.group(&content, region, model.ColorSpaceGray)
	if err != nil {
		return nil, false, err
	}
	gs, err := c.softMaskState(group, svgscene.Luminance)
	return gs, true, err
}

// clipContent fills the first level of the chain in white,
// restricted to the next levels.
func (c *Compositor) clipContent(ap *contentstream.Appearance, chain []*svgscene.ClipPath, bbox, region svgpath.Rect) (bool, error) {
	level, nested := chain[0], chain[1:]
	m, ok := levelMatrix(level, bbox)
	if !ok {
		return false, nil
	}
	ap.Ops(contentstream.OpSave{})
	if len(nested) != 0 {
		if Native(nested) {
			if !ClipNative(ap, nested, bbox) {
				return false, nil
			}
		} else {
			gs, ok, err := c.ClipMask(nested, bbox, region)
			if err != nil || !ok {
				return ok, err
			}
			ap.SetGraphicState(gs)
		}
	}
	ap.Ops(contentstream.OpSetFillGray{G: 1})
	for _, shape := range level.Shapes {
		if shape.Transform.IsSingular() {
			continue
		}
		pdfdraw.Path(ap, shape.Path.Transform(m.Mult(shape.Transform)))
		if shape.Rule == svgscene.EvenOdd {
			ap.Ops(contentstream.OpEOFill{})
		} else {
			ap.Ops(contentstream.OpFill{})
		}
	}
	ap.Ops(contentstream.OpRestore{})
	return true, nil
}

// Mask returns an ExtGState applying the mask `m` to an element
// with bounding box `bbox`, both in user space.
// It returns false if the mask hides the element.
func (c *Compositor) Mask(m *svgscene.Mask, bbox svgpath.Rect) (*model.GraphicState, bool, error) {
	if c.active[m.ID] {
		return nil, false, &svgscene.ReferenceError{Kind: "mask", ID: m.ID, Cycle: true}
	}
	if c.active == nil {
		c.active = make(map[string]bool)
	}
	c.active[m.ID] = true
	defer delete(c.active, m.ID)

	rect := m.Rect
	if m.Units == svgscene.ObjectBoundingBox {
		if bbox.IsEmpty() {
			return nil, false, nil
		}
		rect = rect.Transform(bbox.UnitTransform())
	}
	if rect.IsEmpty() {
		return nil, false, nil
	}
	contentMatrix := svgpath.Identity
	if m.ContentUnits == svgscene.ObjectBoundingBox {
		if bbox.IsEmpty() {
			return nil, false, nil
		}
		contentMatrix = bbox.UnitTransform()
	}

	ap := contentstream.NewAppearance(rect.W, rect.H)
	ap.Ops(contentstream.OpSave{}, contentstream.OpRectangle{X: rect.X, Y: rect.Y, W: rect.W, H: rect.H},
		contentstream.OpClip{}, contentstream.OpEndPath{})
	if m.Mask != "" {
		nested, err := c.Tree.MaskByID(m.Mask)
		if err != nil {
			return nil, false, err
		}
		gs, ok, err := c.Mask(nested, bbox)
		if err != nil || !ok {
			return nil, ok, err
		}
		ap.SetGraphicState(gs)
	}
	if m.Root != nil {
		// the content is grouped, so that the nested mask applies to the whole
		inner := contentstream.NewAppearance(rect.W, rect.H)
		if err := c.Renderer.Render(&inner, m.Root, contentMatrix); err != nil {
			return nil, false, err
		}
		group, err := c.group(&inner, rect, model.ColorSpaceRGB)
		if err != nil {
			return nil, false, err
		}
		ap.AddXObject(group)
	}
	ap.Ops(contentstream.OpRestore{})

	group, err := c.group(&ap, rect, model.ColorSpaceRGB)
	if err != nil {
		return nil, false, err
	}
	gs, err := c.softMaskState(group, m.Kind)
	return gs, true, err
}

// group interns a transparency group form XObject.
func (c *Compositor) group(content *contentstream.Appearance, bbox svgpath.Rect, cs model.ColorSpaceName) (*model.XObjectTransparencyGroup, error) {
	group := pdfdraw.Group(content, bbox, cs, false, c.Compress)
	key := rescache.NewHasher("mask group").
		Bytes(group.Content).
		Resources(c.Cache, group.Resources).
		Floats(bbox.X, bbox.Y, bbox.W, bbox.H).
		String(string(cs)).
		Sum()
	return rescache.Intern(c.Cache, key, func() (*model.XObjectTransparencyGroup, error) { return group, nil })
}

func (c *Compositor) softMaskState(group *model.XObjectTransparencyGroup, kind svgscene.MaskKind) (*model.GraphicState, error) {
	key := rescache.NewHasher("soft mask").Object(c.Cache, group).String(kind.String()).Sum()
	return rescache.Intern(c.Cache, key, func() (*model.GraphicState, error) {
		return &model.GraphicState{SMask: model.SoftMaskDict{S: model.Name(kind.String()), G: group}}, nil
	})
}
