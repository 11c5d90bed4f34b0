package svgicon

import (
	"fmt"
	"math"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
)

func init() {
	// avoids cyclical static declaration
	// called on package initialization
	drawFuncs["svg"] = svgF
	drawFuncs["g"] = gF
	drawFuncs["a"] = gF
	drawFuncs["switch"] = switchF
	drawFuncs["use"] = useF
	drawFuncs["text"] = textF
}

// svgFunc builds the node for an element, whose computed style is `st`.
// A nil node is returned for elements with no visible content.
type svgFunc func(c *iconCursor, el *element, st *style) (svgscene.Node, error)

var drawFuncs = map[string]svgFunc{
	"line":     shapeF,
	"rect":     shapeF,
	"circle":   shapeF,
	"ellipse":  shapeF,
	"polyline": shapeF,
	"polygon":  shapeF,
	"path":     shapeF,
	"image":    imageF,
}

// nonRendering elements are only used through references, or
// are ignored.
var nonRendering = map[string]bool{
	"defs": true, "title": true, "desc": true, "metadata": true, "style": true,
	"linearGradient": true, "radialGradient": true, "pattern": true, "stop": true,
	"clipPath": true, "mask": true, "filter": true, "symbol": true, "marker": true,
	"script": true, "font": true, "font-face": true, "cursor": true, "view": true,
}

// children builds the content of `el` into a group.
func (c *iconCursor) children(el *element, st *style) (*svgscene.Group, error) {
	g := svgscene.NewGroup()
	for _, child := range el.Children {
		if child.Name == "" {
			continue
		}
		n, err := c.node(child, st)
		if err != nil {
			return nil, err
		}
		if n != nil {
			g.Children = append(g.Children, n)
		}
	}
	return g, nil
}

// node builds the element `el`, whose parent has style `parent`.
func (c *iconCursor) node(el *element, parent *style) (svgscene.Node, error) {
	if el.Attrs["display"] == "none" || nonRendering[el.Name] {
		return nil, nil
	}
	df, ok := drawFuncs[el.Name]
	if !ok {
		errStr := "Cannot process svg element " + el.Name
		return nil, c.handleError(errStr)
	}
	st, err := c.inherit(*parent, el)
	if err != nil {
		return nil, err
	}
	n, err := df(c, el, &st)
	if err != nil || n == nil {
		return nil, err
	}
	ok, err = c.common(n.Attrs(), el)
	if err != nil || !ok {
		return nil, err
	}
	if g, isGroup := n.(*svgscene.Group); isGroup && el.Attrs["isolation"] == "isolate" {
		g.Isolate = true
	}
	return n, nil
}

var blendModes = map[string]svgscene.BlendMode{
	"normal":      svgscene.Normal,
	"multiply":    svgscene.Multiply,
	"screen":      svgscene.Screen,
	"overlay":     svgscene.Overlay,
	"darken":      svgscene.Darken,
	"lighten":     svgscene.Lighten,
	"color-dodge": svgscene.ColorDodge,
	"color-burn":  svgscene.ColorBurn,
	"hard-light":  svgscene.HardLight,
	"soft-light":  svgscene.SoftLight,
	"difference":  svgscene.Difference,
	"exclusion":   svgscene.Exclusion,
	"hue":         svgscene.Hue,
	"saturation":  svgscene.Saturation,
	"color":       svgscene.Color,
	"luminosity":  svgscene.Luminosity,
}

// common reads the non inherited attributes shared by all nodes.
// It returns false if the element must not be rendered, which happens
// when it references a missing clip path, mask or filter.
func (c *iconCursor) common(attrs *svgscene.Common, el *element) (bool, error) {
	attrs.ID = el.Attrs["id"]
	if v, ok := el.Attrs["transform"]; ok {
		m, err := parseTransform(v)
		if err != nil {
			if err = c.handleError(fmt.Sprintf("invalid transform %q: %s", v, err)); err != nil {
				return false, err
			}
		} else {
			attrs.Transform = m.Mult(attrs.Transform)
		}
	}
	if v, ok := el.Attrs["opacity"]; ok {
		op, err := readFraction(v)
		if err != nil {
			if err = c.handleError(fmt.Sprintf("invalid opacity %q", v)); err != nil {
				return false, err
			}
		} else {
			attrs.Opacity = clamp01(op)
		}
	}
	if v, ok := el.Attrs["mix-blend-mode"]; ok {
		if mode, ok := blendModes[v]; ok {
			attrs.Blend = mode
		} else if err := c.handleError("unknown blend mode " + v); err != nil {
			return false, err
		}
	}

	for _, ref := range [...]struct {
		attr    string
		resolve func(string) (bool, error)
		dst     *string
	}{
		{"clip-path", c.clipPath, &attrs.ClipPath},
		{"mask", c.mask, &attrs.Mask},
		{"filter", c.filter, &attrs.Filter},
	} {
		v, ok := el.Attrs[ref.attr]
		if !ok || v == "none" {
			continue
		}
		id, _, isURL := parseURL(v)
		if !isURL {
			if err := c.handleError(fmt.Sprintf("unsupported %s %q", ref.attr, v)); err != nil {
				return false, err
			}
			continue
		}
		found, err := ref.resolve(id)
		if err != nil {
			return false, err
		}
		if !found {
			// the element is not rendered
			c.log.Warn(fmt.Sprintf("unknown %s %s", ref.attr, id))
			return false, nil
		}
		*ref.dst = id
	}
	return true, nil
}

func svgF(c *iconCursor, el *element, st *style) (svgscene.Node, error) {
	var x, y float64
	w, h := c.viewport.W, c.viewport.H
	for _, attr := range [...]struct {
		name string
		dir  direction
		dst  *float64
	}{
		{"x", horizontal, &x}, {"y", vertical, &y},
		{"width", horizontal, &w}, {"height", vertical, &h},
	} {
		if v, ok := el.Attrs[attr.name]; ok {
			f, err := c.parseLength(v, attr.dir, st)
			if err != nil {
				return nil, err
			}
			*attr.dst = f
		}
	}
	return c.viewportGroup(el, st, svgpath.Rect{X: x, Y: y, W: w, H: h})
}

// viewportGroup builds the content of a nested svg or
// a symbol, rendered into `viewport`.
func (c *iconCursor) viewportGroup(el *element, st *style, viewport svgpath.Rect) (svgscene.Node, error) {
	if viewport.IsEmpty() {
		return nil, nil
	}
	m := svgpath.NewTranslation(viewport.X, viewport.Y)
	inner := svgpath.Rect{W: viewport.W, H: viewport.H}
	if v, ok := el.Attrs["viewBox"]; ok {
		viewBox, err := parseViewBox(v)
		if err != nil {
			return nil, c.handleError(err.Error())
		}
		if viewBox.IsEmpty() {
			return nil, nil
		}
		m = m.Mult(svgpath.ViewBoxTransform(viewBox, parseAspectRatio(el.Attrs["preserveAspectRatio"]), viewport.W, viewport.H))
		inner = viewBox
	}

	saved := c.viewport
	c.viewport = inner
	content, err := c.children(el, st)
	c.viewport = saved
	if err != nil {
		return nil, err
	}
	content.Transform = m

	if v := el.Attrs["overflow"]; v == "visible" || v == "auto" {
		return content, nil
	}
	// clip to the viewport, in the parent coordinates
	c.clipCount++
	id := fmt.Sprintf("__viewport%d", c.clipCount)
	c.tree.ClipPaths[id] = &svgscene.ClipPath{
		ID:        id,
		Units:     svgscene.UserSpaceOnUse,
		Transform: svgpath.Identity,
		Shapes:    []svgscene.ClipShape{{Path: viewport.Path(), Transform: svgpath.Identity}},
	}
	g := svgscene.NewGroup(content)
	g.ClipPath = id
	return g, nil
}

func gF(c *iconCursor, el *element, st *style) (svgscene.Node, error) {
	return c.children(el, st)
}

// switchF renders the first direct child whose conditions are met.
func switchF(c *iconCursor, el *element, st *style) (svgscene.Node, error) {
	for _, child := range el.Children {
		if child.Name == "" || nonRendering[child.Name] {
			continue
		}
		if _, ok := child.Attrs["requiredExtensions"]; ok {
			continue
		}
		if lang, ok := child.Attrs["systemLanguage"]; ok && !matchLanguage(lang) {
			continue
		}
		n, err := c.node(child, st)
		if err != nil || n == nil {
			return nil, err
		}
		return svgscene.NewGroup(n), nil
	}
	return nil, nil
}

// matchLanguage accepts english, the language of the renderer.
func matchLanguage(list string) bool {
	for _, lang := range splitOnCommaOrSpace(list) {
		if lang == "en" || strings.HasPrefix(lang, "en-") {
			return true
		}
	}
	return false
}

func useF(c *iconCursor, el *element, st *style) (svgscene.Node, error) {
	href := el.href()
	if href == "" {
		return nil, c.handleError("only use tags with local href are supported")
	}
	target, ok := c.ids[href]
	if !ok {
		return nil, c.handleError(fmt.Sprintf("href ID %s in use statement was not found", href))
	}
	if c.using[target] || isAncestor(target, el) {
		return nil, c.handleError(fmt.Sprintf("recursive use of %s", href))
	}
	c.using[target] = true
	defer delete(c.using, target)

	var x, y float64
	var err error
	if v, ok := el.Attrs["x"]; ok {
		if x, err = c.parseLength(v, horizontal, st); err != nil {
			return nil, err
		}
	}
	if v, ok := el.Attrs["y"]; ok {
		if y, err = c.parseLength(v, vertical, st); err != nil {
			return nil, err
		}
	}

	var n svgscene.Node
	switch target.Name {
	case "symbol":
		w, h := c.viewport.W, c.viewport.H
		if v, ok := el.Attrs["width"]; ok {
			if w, err = c.parseLength(v, horizontal, st); err != nil {
				return nil, err
			}
		}
		if v, ok := el.Attrs["height"]; ok {
			if h, err = c.parseLength(v, vertical, st); err != nil {
				return nil, err
			}
		}
		symbolStyle, err := c.inherit(*st, target)
		if err != nil {
			return nil, err
		}
		n, err = c.viewportGroup(target, &symbolStyle, svgpath.Rect{W: w, H: h})
		if err != nil || n == nil {
			return nil, err
		}
		if ok, err := c.common(n.Attrs(), target); err != nil || !ok {
			return nil, err
		}
	default:
		// the referenced element inherits from the use element
		n, err = c.node(target, st)
		if err != nil || n == nil {
			return nil, err
		}
	}
	g := svgscene.NewGroup(n)
	g.Transform = svgpath.NewTranslation(x, y)
	return g, nil
}

func isAncestor(anc, el *element) bool {
	for ; el != nil; el = el.Parent {
		if el == anc {
			return true
		}
	}
	return false
}

// shapeF builds the basic shapes and paths.
func shapeF(c *iconCursor, el *element, st *style) (svgscene.Node, error) {
	if st.hidden {
		return nil, nil
	}
	path, err := c.shapeGeometry(el, st)
	if err != nil || path.IsEmpty() {
		return nil, err
	}
	fill, stroke := st.fillAndStroke()
	if fill == nil && stroke == nil {
		return nil, nil
	}
	return svgscene.NewPath(path, fill, stroke), nil
}

func (st *style) fillAndStroke() (*svgscene.Fill, *svgscene.Stroke) {
	var (
		fill   *svgscene.Fill
		stroke *svgscene.Stroke
	)
	if st.fill != nil {
		fill = &svgscene.Fill{Paint: st.fill, Opacity: st.fillOpacity, Rule: st.fillRule}
	}
	if st.stroke != nil && st.strokeWidth > 0 {
		stroke = &svgscene.Stroke{
			Paint:      st.stroke,
			Opacity:    st.strokeOpacity,
			Width:      st.strokeWidth,
			Cap:        st.cap,
			Join:       st.join,
			MiterLimit: st.miterLimit,
			Dash:       st.dash,
			DashOffset: st.dashOffset,
		}
	}
	return fill, stroke
}

// lengths parses the given attributes, missing ones being 0.
func (c *iconCursor) lengths(el *element, st *style, names []string, dirs []direction) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, ok := el.Attrs[name]
		if !ok || v == "auto" {
			continue
		}
		f, err := c.parseLength(v, dirs[i], st)
		if err != nil {
			return nil, fmt.Errorf("invalid attribute %s=%q: %s", name, v, err)
		}
		out[i] = f
	}
	return out, nil
}

// shapeGeometry returns the outline of a shape element, or an empty
// path if the shape is not rendered.
func (c *iconCursor) shapeGeometry(el *element, st *style) (svgpath.Path, error) {
	const (
		h = horizontal
		v = vertical
		d = diagonal
	)
	var path svgpath.Path
	switch el.Name {
	case "rect":
		ls, err := c.lengths(el, st, []string{"x", "y", "width", "height", "rx", "ry"}, []direction{h, v, h, v, h, v})
		if err != nil {
			return nil, c.handleError(err.Error())
		}
		x, y, w, ht, rx, ry := ls[0], ls[1], ls[2], ls[3], ls[4], ls[5]
		if w <= 0 || ht <= 0 {
			return nil, nil
		}
		_, hasRx := el.Attrs["rx"]
		_, hasRy := el.Attrs["ry"]
		if hasRx && !hasRy {
			ry = rx
		} else if hasRy && !hasRx {
			rx = ry
		}
		rx, ry = math.Min(math.Max(rx, 0), w/2), math.Min(math.Max(ry, 0), ht/2)
		if rx == 0 || ry == 0 {
			path.AddRect(x, y, x+w, y+ht)
		} else {
			path.AddRoundRect(x, y, x+w, y+ht, rx, ry)
		}
	case "circle", "ellipse":
		ls, err := c.lengths(el, st, []string{"cx", "cy", "r", "rx", "ry"}, []direction{h, v, d, h, v})
		if err != nil {
			return nil, c.handleError(err.Error())
		}
		cx, cy, rx, ry := ls[0], ls[1], ls[3], ls[4]
		if el.Name == "circle" {
			rx, ry = ls[2], ls[2]
		} else {
			_, hasRx := el.Attrs["rx"]
			_, hasRy := el.Attrs["ry"]
			if hasRx && !hasRy {
				ry = rx
			} else if hasRy && !hasRx {
				rx = ry
			}
		}
		if rx <= 0 || ry <= 0 { // not drawn, but not an error
			return nil, nil
		}
		path.AddEllipse(cx, cy, rx, ry)
	case "line":
		ls, err := c.lengths(el, st, []string{"x1", "y1", "x2", "y2"}, []direction{h, v, h, v})
		if err != nil {
			return nil, c.handleError(err.Error())
		}
		path.Start(svgpath.Pt(ls[0], ls[1]))
		path.Line(svgpath.Pt(ls[2], ls[3]))
		path.Stop(false)
	case "polyline", "polygon":
		points, err := svgpath.ParsePoints(el.Attrs["points"])
		if err != nil {
			if err = c.handleError(fmt.Sprintf("invalid points: %s", err)); err != nil {
				return nil, err
			}
		}
		if len(points) < 2 {
			return nil, nil
		}
		path.AddPolyline(points, el.Name == "polygon")
	case "path":
		var err error
		path, err = svgpath.ParsePath(el.Attrs["d"])
		if err != nil {
			// the path is rendered up to the error
			if err = c.handleError(fmt.Sprintf("invalid path data: %s", err)); err != nil {
				return nil, err
			}
		}
	}
	return path, nil
}
