package svgpdf

import (
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
)

// state is the graphic state of the node being converted.
type state struct {
	// ctm maps the user space to the space of the root form,
	// in points.
	ctm svgpath.Matrix2D
	// stream maps the user space to the default space of the
	// content stream being written.
	stream svgpath.Matrix2D
	// clip is the visible area, in the space of the root form.
	// It is unknown in pattern tiles and masks.
	clip    svgpath.Rect
	clipped bool
	// opacity is the product of the group opacities. It is already
	// applied by PDF, and only used to skip invisible nodes.
	opacity float64
	blend   svgscene.BlendMode
	// colors is the color transform of the filter being emulated, if any.
	colors *svgscene.ColorMatrix
}

// concat returns the state of a child user space.
func (s state) concat(m svgpath.Matrix2D) state {
	s.ctm = s.ctm.Mult(m)
	s.stream = s.stream.Mult(m)
	return s
}

// form returns the state at the start of a form XObject
// drawn in the current user space.
func (s state) form() state {
	s.stream = svgpath.Identity
	return s
}

// detached returns the state at the start of a pattern tile or
// a mask, drawn with the matrix `m` in the current user space.
func (s state) detached(m svgpath.Matrix2D) state {
	s = s.form().concat(m)
	s.clipped = false
	s.opacity = 1
	s.blend = svgscene.Normal
	s.colors = nil
	return s
}

// visible returns the clip area in user space, or false
// if it is unknown.
func (s state) visible() (svgpath.Rect, bool) {
	if !s.clipped || s.ctm.IsSingular() {
		return svgpath.Rect{}, false
	}
	return s.clip.Transform(s.ctm.Invert()), true
}

func (c *converter) top() state { return c.stack[len(c.stack)-1] }

// push starts a nested state, failing if the tree is too deep.
func (c *converter) push(s state) error {
	if len(c.stack) > c.opts.MaxDepth {
		return &MalformedError{Err: errDepth}
	}
	c.stack = append(c.stack, s)
	return nil
}

func (c *converter) pop() { c.stack = c.stack[:len(c.stack)-1] }

// restrict intersects the clip area with `r`, in user space.
func (c *converter) restrict(r svgpath.Rect) {
	s := &c.stack[len(c.stack)-1]
	if !s.clipped {
		s.clip, s.clipped = r.Transform(s.ctm), true
		return
	}
	s.clip = s.clip.Intersect(r.Transform(s.ctm))
}
