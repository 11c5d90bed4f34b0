package svgscene

import "github.com/benoitkugler/svg2pdf/svgpath"

// ClipShape is one of the shapes of a clip path.
type ClipShape struct {
	Path      svgpath.Path
	Transform svgpath.Matrix2D
	// Rule is the clip-rule of the shape.
	Rule FillRule
}

// ClipPath is the union of its shapes, intersected with
// the optional nested clip path.
type ClipPath struct {
	ID        string
	Units     Units
	Transform svgpath.Matrix2D
	Shapes    []ClipShape
	// ClipPath is the id of a nested clip path, or empty.
	ClipPath string
}

// MaskKind selects the channel used by a mask.
type MaskKind uint8

const (
	Luminance MaskKind = iota
	Alpha
)

func (k MaskKind) String() string {
	if k == Alpha {
		return "Alpha"
	}
	return "Luminosity"
}

// Mask is a soft mask, whose content is rendered in Rect.
type Mask struct {
	ID           string
	Kind         MaskKind
	Units        Units
	ContentUnits Units
	Rect         svgpath.Rect
	Root         *Group
	// Mask is the id of a nested mask, or empty.
	Mask string
}
