// Package svgscene defines the normalized scene graph consumed by
// the PDF converter: a tree of groups, paths, images and text, plus
// the shared resources (paint servers, clip paths, masks and filters)
// referenced by identifier.
//
// Trees are built once, by a frontend like svgicon, and are
// never mutated afterwards: a tree may be converted several times,
// possibly concurrently.
package svgscene

import (
	"fmt"
	"image"

	"github.com/benoitkugler/svg2pdf/svgpath"
)

// Tree is a parsed SVG document.
type Tree struct {
	// Width and Height define the viewport, in user units.
	Width, Height float64
	// ViewBox is ignored if empty.
	ViewBox     svgpath.Rect
	AspectRatio svgpath.AspectRatio

	Root *Group

	// Resources, indexed by id.
	Paints    map[string]PaintServer
	ClipPaths map[string]*ClipPath
	Masks     map[string]*Mask
	Filters   map[string]*Filter
}

// NewTree returns an empty tree with initialized maps.
func NewTree(width, height float64) *Tree {
	return &Tree{
		Width:     width,
		Height:    height,
		Root:      NewGroup(),
		Paints:    map[string]PaintServer{},
		ClipPaths: map[string]*ClipPath{},
		Masks:     map[string]*Mask{},
		Filters:   map[string]*Filter{},
	}
}

// ViewBoxTransform returns the matrix mapping the view box to the viewport.
func (t *Tree) ViewBoxTransform() svgpath.Matrix2D {
	if t.ViewBox.IsEmpty() {
		return svgpath.Identity
	}
	return svgpath.ViewBoxTransform(t.ViewBox, t.AspectRatio, t.Width, t.Height)
}

// ReferenceError is returned when a node references an unknown
// or recursively defined resource.
type ReferenceError struct {
	Kind  string // "paint", "clip-path", "mask", "filter"
	ID    string
	Cycle bool
}

func (e *ReferenceError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("recursive %s reference '%s'", e.Kind, e.ID)
	}
	return fmt.Sprintf("unknown %s reference '%s'", e.Kind, e.ID)
}

// ResolvePaint returns the paint server referenced by `p`,
// or `p` itself if it is not a PaintRef.
func (t *Tree) ResolvePaint(p Paint) (Paint, error) {
	ref, ok := p.(PaintRef)
	if !ok {
		return p, nil
	}
	server, ok := t.Paints[string(ref)]
	if !ok {
		return nil, &ReferenceError{Kind: "paint", ID: string(ref)}
	}
	return server, nil
}

// ClipPathByID returns the clip path with the given id.
func (t *Tree) ClipPathByID(id string) (*ClipPath, error) {
	c, ok := t.ClipPaths[id]
	if !ok {
		return nil, &ReferenceError{Kind: "clip-path", ID: id}
	}
	return c, nil
}

// ClipChain returns the clip path with the given id, followed
// by its nested clip paths, if any.
func (t *Tree) ClipChain(id string) ([]*ClipPath, error) {
	var out []*ClipPath
	seen := map[string]bool{}
	for id != "" {
		if seen[id] {
			return nil, &ReferenceError{Kind: "clip-path", ID: id, Cycle: true}
		}
		seen[id] = true
		c, err := t.ClipPathByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		id = c.ClipPath
	}
	return out, nil
}

// MaskByID returns the mask with the given id.
func (t *Tree) MaskByID(id string) (*Mask, error) {
	m, ok := t.Masks[id]
	if !ok {
		return nil, &ReferenceError{Kind: "mask", ID: id}
	}
	return m, nil
}

// FilterByID returns the filter with the given id.
func (t *Tree) FilterByID(id string) (*Filter, error) {
	f, ok := t.Filters[id]
	if !ok {
		return nil, &ReferenceError{Kind: "filter", ID: id}
	}
	return f, nil
}

// Node is one of *Group, *Path, *Image or *Text.
type Node interface {
	// Attrs returns the attributes shared by all nodes.
	Attrs() *Common
	isNode()
}

// Common stores the attributes shared by every node.
type Common struct {
	ID        string
	Transform svgpath.Matrix2D
	// Opacity is the group opacity, in [0, 1].
	Opacity float64
	Blend   BlendMode

	// References to resources, empty for none.
	ClipPath string
	Mask     string
	Filter   string
}

// Attrs implements Node.
func (c *Common) Attrs() *Common { return c }

func newCommon() Common { return Common{Transform: svgpath.Identity, Opacity: 1} }

// Group is a container node.
type Group struct {
	Common
	// Isolate requests a transparency group even
	// when not required by the attributes.
	Isolate  bool
	Children []Node
}

// NewGroup returns a group with default attributes.
func NewGroup(children ...Node) *Group {
	return &Group{Common: newCommon(), Children: children}
}

// Path is a filled and/or stroked shape.
type Path struct {
	Common
	Path   svgpath.Path
	Fill   *Fill   // optional
	Stroke *Stroke // optional
}

// NewPath returns a path node with default attributes.
func NewPath(path svgpath.Path, fill *Fill, stroke *Stroke) *Path {
	return &Path{Common: newCommon(), Path: path, Fill: fill, Stroke: stroke}
}

// ImageFormat is the format of the compressed image data.
type ImageFormat uint8

const (
	UnknownImage ImageFormat = iota
	PNG
	JPEG
	GIF
	WEBP
)

// Image is a raster image, drawn into Rect.
type Image struct {
	Common
	Rect   svgpath.Rect
	Format ImageFormat
	// Data is the original, compressed content.
	Data []byte
	// Decoded is optional; if nil, Data is decoded
	// by the converter.
	Decoded image.Image
}

// NewImage returns an image node with default attributes.
func NewImage(rect svgpath.Rect, format ImageFormat, data []byte) *Image {
	return &Image{Common: newCommon(), Rect: rect, Format: format, Data: data}
}

// FontID identifies a font program, see FontResolver.
type FontID string

// FontResolver provides the font programs (TrueType or OpenType)
// used by text nodes.
type FontResolver interface {
	FontData(id FontID) ([]byte, error)
}

// MapResolver is a FontResolver backed by a map.
type MapResolver map[FontID][]byte

// FontData implements FontResolver.
func (m MapResolver) FontData(id FontID) ([]byte, error) {
	b, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("font %s not found", id)
	}
	return b, nil
}

// Glyph is a positionned glyph. Text nodes are already shaped.
type Glyph struct {
	ID uint16 // glyph index in the font
	// X and Y give the origin of the glyph, on the baseline,
	// in user units.
	X, Y    float64
	Advance float64 // in user units
	// Text is the text of the cluster starting with this glyph,
	// empty for the other glyphs of the cluster.
	Text string
}

// TextRun is a sequence of glyphs sharing the same font and style.
type TextRun struct {
	Font   FontID
	Size   float64 // font size, in user units
	Fill   *Fill
	Stroke *Stroke
	Glyphs []Glyph
}

// Text is a block of shaped text.
type Text struct {
	Common
	Runs []TextRun
}

// NewText returns a text node with default attributes.
func NewText(runs ...TextRun) *Text {
	return &Text{Common: newCommon(), Runs: runs}
}

func (*Group) isNode() {}
func (*Path) isNode()  {}
func (*Image) isNode() {}
func (*Text) isNode()  {}

// Walk calls `fn` for `n` and its descendants, in painting order,
// stopping at the first error. Resources referenced by the nodes
// are not visited.
func Walk(n Node, fn func(Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	if g, ok := n.(*Group); ok {
		for _, child := range g.Children {
			if err := Walk(child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
