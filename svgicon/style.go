package svgicon

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
	"golang.org/x/image/colornames"
)

var errParamMismatch = errors.New("param mismatch")

// style holds the inherited properties.
type style struct {
	fill        svgscene.Paint // nil for none
	fillOpacity float64
	fillRule    svgscene.FillRule
	clipRule    svgscene.FillRule

	stroke        svgscene.Paint // nil for none
	strokeOpacity float64
	strokeWidth   float64
	cap           svgscene.CapMode
	join          svgscene.JoinMode
	miterLimit    float64
	dash          []float64 // values for the dash pattern (nil or an empty slice for no dashes)
	dashOffset    float64   // starting offset into the dash array

	color svgscene.PlainColor // for currentColor

	fontFamily string
	fontSize   float64
	bold       bool
	textAnchor textAnchor

	hidden bool // visibility
}

type textAnchor uint8

const (
	anchorStart textAnchor = iota
	anchorMiddle
	anchorEnd
)

// defaultStyle fills in black, with the non-zero winding rule,
// full opacity, and no stroke.
var defaultStyle = style{
	fill:          svgscene.Black,
	fillOpacity:   1,
	strokeOpacity: 1,
	strokeWidth:   1,
	miterLimit:    4,
	fontFamily:    "sans-serif",
	fontSize:      16,
}

// iconCursor is used while building the scene tree.
type iconCursor struct {
	opts Options
	log  *zap.Logger
	tree *svgscene.Tree

	ids      map[string]*element
	styles   map[*element]style // computed styles of resources content
	viewport svgpath.Rect       // for percentages

	paints    map[string]svgscene.Paint // resolved paint servers, nil for none
	building  map[string]bool           // href chains being resolved
	using     map[*element]bool         // use elements being expanded
	clipCount int                       // for the generated viewport clips
	fonts     *fontCache
}

func newCursor(root *element, opts Options) *iconCursor {
	c := &iconCursor{
		opts:     opts,
		log:      opts.Logger,
		tree:     svgscene.NewTree(0, 0),
		ids:      map[string]*element{},
		styles:   map[*element]style{},
		paints:   map[string]svgscene.Paint{},
		building: map[string]bool{},
		using:    map[*element]bool{},
		fonts:    newFontCache(opts.Fonts),
	}
	root.walk(func(el *element) {
		if id := el.Attrs["id"]; id != "" {
			if _, ok := c.ids[id]; !ok { // first one wins
				c.ids[id] = el
			}
		}
	})
	return c
}

// handleError returns an error in strict mode, and logs it otherwise.
func (c *iconCursor) handleError(errStr string) error {
	switch c.opts.ErrorMode {
	case StrictErrorMode:
		return errors.New(errStr)
	case WarnErrorMode:
		c.log.Warn(errStr)
	}
	return nil
}

// styleOf returns the computed style of `el`, which may be
// outside of the rendered tree.
func (c *iconCursor) styleOf(el *element) (style, error) {
	if el == nil {
		return defaultStyle, nil
	}
	if st, ok := c.styles[el]; ok {
		return st, nil
	}
	parent, err := c.styleOf(el.Parent)
	if err != nil {
		return style{}, err
	}
	st, err := c.inherit(parent, el)
	if err != nil {
		return style{}, err
	}
	c.styles[el] = st
	return st, nil
}

// properties lists the inherited properties, in resolution order:
// color and font size are used by the others.
var properties = [...]string{
	"color", "font-size", "font-family", "font-weight", "text-anchor", "visibility",
	"fill", "fill-opacity", "fill-rule", "clip-rule",
	"stroke", "stroke-opacity", "stroke-width", "stroke-linecap", "stroke-linejoin",
	"stroke-miterlimit", "stroke-dasharray", "stroke-dashoffset",
}

// inherit returns the style of `el`, whose parent style is `parent`.
// Invalid values are ignored, unless in strict mode.
func (c *iconCursor) inherit(parent style, el *element) (style, error) {
	st := parent
	for _, k := range properties {
		v, ok := el.Attrs[k]
		if !ok || v == "inherit" {
			continue
		}
		if err := c.readStyleAttr(&st, k, v); err != nil {
			if err = c.handleError(fmt.Sprintf("invalid property %s=%q on %s: %s", k, v, el.Name, err)); err != nil {
				return st, err
			}
		}
	}
	return st, nil
}

func (c *iconCursor) readStyleAttr(curStyle *style, k, v string) error {
	switch k {
	case "color":
		col, err := parseSVGColor(v)
		if err != nil {
			return err
		}
		curStyle.color = col
	case "fill":
		p, err := c.parsePaint(v, curStyle)
		if err != nil {
			return err
		}
		curStyle.fill = p
	case "stroke":
		p, err := c.parsePaint(v, curStyle)
		if err != nil {
			return err
		}
		curStyle.stroke = p
	case "fill-rule", "clip-rule":
		rule := svgscene.NonZero
		if v == "evenodd" {
			rule = svgscene.EvenOdd
		}
		if k == "fill-rule" {
			curStyle.fillRule = rule
		} else {
			curStyle.clipRule = rule
		}
	case "stroke-linecap":
		switch v {
		case "butt":
			curStyle.cap = svgscene.ButtCap
		case "round":
			curStyle.cap = svgscene.RoundCap
		case "square":
			curStyle.cap = svgscene.SquareCap
		}
	case "stroke-linejoin":
		switch v {
		case "miter":
			curStyle.join = svgscene.Miter
		case "miter-clip":
			curStyle.join = svgscene.MiterClip
		case "arc-clip":
			curStyle.join = svgscene.ArcClip
		case "round":
			curStyle.join = svgscene.Round
		case "arc":
			curStyle.join = svgscene.Arc
		case "bevel":
			curStyle.join = svgscene.Bevel
		}
	case "stroke-miterlimit":
		mLimit, err := parseBasicFloat(v)
		if err != nil {
			return err
		}
		curStyle.miterLimit = mLimit
	case "stroke-width":
		width, err := c.parseLength(v, diagonal, curStyle)
		if err != nil {
			return err
		}
		curStyle.strokeWidth = width
	case "stroke-dashoffset":
		dashOffset, err := c.parseLength(v, diagonal, curStyle)
		if err != nil {
			return err
		}
		curStyle.dashOffset = dashOffset
	case "stroke-dasharray":
		if v == "none" {
			curStyle.dash = nil
			break
		}
		dashes := splitOnCommaOrSpace(v)
		dList := make([]float64, len(dashes))
		for i, dstr := range dashes {
			d, err := c.parseLength(dstr, diagonal, curStyle)
			if err != nil {
				return err
			}
			dList[i] = d
		}
		curStyle.dash = dList
	case "fill-opacity", "stroke-opacity":
		op, err := readFraction(v)
		if err != nil {
			return err
		}
		op = clamp01(op)
		if k == "fill-opacity" {
			curStyle.fillOpacity = op
		} else {
			curStyle.strokeOpacity = op
		}
	case "font-size":
		size, err := c.parseFontSize(v, curStyle.fontSize)
		if err != nil {
			return err
		}
		curStyle.fontSize = size
	case "font-family":
		curStyle.fontFamily = v
	case "font-weight":
		switch v {
		case "bold", "bolder":
			curStyle.bold = true
		case "normal", "lighter":
			curStyle.bold = false
		default:
			w, err := parseBasicFloat(v)
			if err != nil {
				return err
			}
			curStyle.bold = w >= 600
		}
	case "text-anchor":
		switch v {
		case "start":
			curStyle.textAnchor = anchorStart
		case "middle":
			curStyle.textAnchor = anchorMiddle
		case "end":
			curStyle.textAnchor = anchorEnd
		}
	case "visibility":
		curStyle.hidden = v == "hidden" || v == "collapse"
	}
	return nil
}

// parsePaint parses the value of fill and stroke. A nil paint
// is returned for "none".
func (c *iconCursor) parsePaint(v string, st *style) (svgscene.Paint, error) {
	switch v {
	case "none", "transparent":
		return nil, nil
	case "currentColor":
		return st.color, nil
	}
	if id, fallback, ok := parseURL(v); ok {
		p, found, err := c.paintServer(id)
		if err != nil {
			return nil, err
		}
		if found {
			return p, nil
		}
		if fallback == "" {
			return nil, c.handleError(fmt.Sprintf("unknown paint server %s", id))
		}
		return c.parsePaint(fallback, st)
	}
	return parseSVGColor(v)
}

// parseURL parses "url(#id) [fallback]".
func parseURL(v string) (id, fallback string, ok bool) {
	if !strings.HasPrefix(v, "url(") {
		return "", "", false
	}
	end := strings.IndexByte(v, ')')
	if end == -1 {
		return "", "", false
	}
	id = strings.Trim(strings.TrimSpace(v[4:end]), `"'`)
	if !strings.HasPrefix(id, "#") {
		return "", "", false
	}
	return id[1:], strings.TrimSpace(v[end+1:]), true
}

// parseSVGColor parses the SVG color keywords, hexadecimal notations
// and the rgb() functional notation.
func parseSVGColor(colorStr string) (svgscene.PlainColor, error) {
	v := strings.ToLower(strings.TrimSpace(colorStr))
	if strings.HasPrefix(v, "#") {
		hex := v[1:]
		switch len(hex) {
		case 3, 4: // alpha is ignored
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		case 6, 8:
			hex = hex[:6]
		default:
			return svgscene.PlainColor{}, fmt.Errorf("invalid color %s", colorStr)
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return svgscene.PlainColor{}, fmt.Errorf("invalid color %s", colorStr)
		}
		return svgscene.NewPlainColor(uint8(n>>16), uint8(n>>8), uint8(n)), nil
	}
	if strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba(") {
		start, end := strings.IndexByte(v, '('), strings.IndexByte(v, ')')
		if end < start {
			return svgscene.PlainColor{}, fmt.Errorf("invalid color %s", colorStr)
		}
		comps := splitOnCommaOrSpace(v[start+1 : end])
		if len(comps) < 3 {
			return svgscene.PlainColor{}, errParamMismatch
		}
		var rgb [3]uint8
		for i, comp := range comps[:3] {
			f, err := readFraction(comp)
			if err != nil {
				return svgscene.PlainColor{}, err
			}
			if !strings.HasSuffix(comp, "%") {
				f /= 255
			}
			rgb[i] = uint8(clamp01(f)*255 + 0.5)
		}
		return svgscene.NewPlainColor(rgb[0], rgb[1], rgb[2]), nil
	}
	if col, ok := colornames.Map[v]; ok {
		return svgscene.NewPlainColor(col.R, col.G, col.B), nil
	}
	return svgscene.PlainColor{}, fmt.Errorf("invalid color %s", colorStr)
}

type direction uint8

const (
	horizontal direction = iota
	vertical
	diagonal
)

// parseLength parses a length with an optional unit, resolving
// percentages against the current viewport.
func (c *iconCursor) parseLength(v string, dir direction, st *style) (float64, error) {
	v = strings.TrimSpace(v)
	if strings.HasSuffix(v, "%") {
		f, err := parseBasicFloat(strings.TrimSuffix(v, "%"))
		if err != nil {
			return 0, err
		}
		ref := math.Hypot(c.viewport.W, c.viewport.H) / math.Sqrt2
		switch dir {
		case horizontal:
			ref = c.viewport.W
		case vertical:
			ref = c.viewport.H
		}
		return f / 100 * ref, nil
	}
	factor := 1.
	for _, unit := range [...]struct {
		suffix string
		factor float64
	}{
		{"px", 1},
		{"pt", c.opts.DPI / 72},
		{"pc", c.opts.DPI / 6},
		{"in", c.opts.DPI},
		{"cm", c.opts.DPI / 2.54},
		{"mm", c.opts.DPI / 25.4},
		{"em", st.fontSize},
		{"ex", st.fontSize / 2},
	} {
		if strings.HasSuffix(v, unit.suffix) {
			v, factor = strings.TrimSuffix(v, unit.suffix), unit.factor
			break
		}
	}
	f, err := parseBasicFloat(v)
	return f * factor, err
}

var fontSizes = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16,
	"large": 18, "x-large": 24, "xx-large": 32,
}

func (c *iconCursor) parseFontSize(v string, parent float64) (float64, error) {
	if size, ok := fontSizes[v]; ok {
		return size, nil
	}
	switch v {
	case "larger":
		return parent * 1.2, nil
	case "smaller":
		return parent / 1.2, nil
	}
	if strings.HasSuffix(v, "%") {
		f, err := parseBasicFloat(strings.TrimSuffix(v, "%"))
		return f / 100 * parent, err
	}
	return c.parseLength(v, diagonal, &style{fontSize: parent})
}

func parseBasicFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func readFraction(v string) (f float64, err error) {
	v = strings.TrimSpace(v)
	d := 1.0
	if strings.HasSuffix(v, "%") {
		d = 100
		v = strings.TrimSuffix(v, "%")
	}
	f, err = parseBasicFloat(v)
	f /= d
	return
}

func clamp01(f float64) float64 { return math.Max(0, math.Min(1, f)) }

// splitOnCommaOrSpace returns a list of strings after splitting the input on comma and space delimiters
func splitOnCommaOrSpace(s string) []string {
	return strings.FieldsFunc(s,
		func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
}

func readTransformAttr(m1 svgpath.Matrix2D, k string, points []float64) (svgpath.Matrix2D, error) {
	ln := len(points)
	switch k {
	case "rotate":
		if ln == 1 {
			m1 = m1.Rotate(points[0] * math.Pi / 180)
		} else if ln == 3 {
			m1 = m1.Translate(points[1], points[2]).
				Rotate(points[0]*math.Pi/180).
				Translate(-points[1], -points[2])
		} else {
			return m1, errParamMismatch
		}
	case "translate":
		if ln == 1 {
			m1 = m1.Translate(points[0], 0)
		} else if ln == 2 {
			m1 = m1.Translate(points[0], points[1])
		} else {
			return m1, errParamMismatch
		}
	case "skewx":
		if ln == 1 {
			m1 = m1.SkewX(points[0] * math.Pi / 180)
		} else {
			return m1, errParamMismatch
		}
	case "skewy":
		if ln == 1 {
			m1 = m1.SkewY(points[0] * math.Pi / 180)
		} else {
			return m1, errParamMismatch
		}
	case "scale":
		if ln == 1 {
			m1 = m1.Scale(points[0], points[0])
		} else if ln == 2 {
			m1 = m1.Scale(points[0], points[1])
		} else {
			return m1, errParamMismatch
		}
	case "matrix":
		if ln == 6 {
			m1 = m1.Mult(svgpath.Matrix2D{
				A: points[0],
				B: points[1],
				C: points[2],
				D: points[3],
				E: points[4],
				F: points[5]})
		} else {
			return m1, errParamMismatch
		}
	default:
		return m1, errParamMismatch
	}
	return m1, nil
}

// parseTransform parses a transform list.
func parseTransform(v string) (svgpath.Matrix2D, error) {
	ts := strings.Split(v, ")")
	m1 := svgpath.Identity
	for _, t := range ts {
		t = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), ","))
		if len(t) == 0 {
			continue
		}
		d := strings.Split(t, "(")
		if len(d) != 2 || len(d[1]) < 1 {
			return m1, errParamMismatch // badly formed transformation
		}
		points, err := svgpath.ParseNumbers(d[1])
		if err != nil {
			return m1, err
		}
		m1, err = readTransformAttr(m1, strings.ToLower(strings.TrimSpace(d[0])), points)
		if err != nil {
			return m1, err
		}
	}
	return m1, nil
}

func parseViewBox(v string) (svgpath.Rect, error) {
	points, err := svgpath.ParseNumbers(v)
	if err != nil {
		return svgpath.Rect{}, err
	}
	if len(points) != 4 {
		return svgpath.Rect{}, errParamMismatch
	}
	return svgpath.Rect{X: points[0], Y: points[1], W: points[2], H: points[3]}, nil
}

var aligns = map[string]svgpath.Align{
	"none":     svgpath.AlignNone,
	"xMinYMin": svgpath.AlignXMinYMin,
	"xMidYMin": svgpath.AlignXMidYMin,
	"xMaxYMin": svgpath.AlignXMaxYMin,
	"xMinYMid": svgpath.AlignXMinYMid,
	"xMidYMid": svgpath.AlignXMidYMid,
	"xMaxYMid": svgpath.AlignXMaxYMid,
	"xMinYMax": svgpath.AlignXMinYMax,
	"xMidYMax": svgpath.AlignXMidYMax,
	"xMaxYMax": svgpath.AlignXMaxYMax,
}

func parseAspectRatio(v string) svgpath.AspectRatio {
	var out svgpath.AspectRatio
	for _, field := range strings.Fields(v) {
		if field == "slice" {
			out.Slice = true
		} else if align, ok := aligns[field]; ok {
			out.Align = align
		}
	}
	return out
}
