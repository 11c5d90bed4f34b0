package svgicon

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// loadedFont is a font program parsed for shaping,
// and for outlines (used by clip paths).
type loadedFont struct {
	face    *gofont.Face
	outline *sfnt.Font
	buf     sfnt.Buffer
}

type fontCache struct {
	resolver svgscene.FontResolver
	fonts    map[svgscene.FontID]*loadedFont // nil for invalid fonts
	shaper   shaping.HarfbuzzShaper
}

func newFontCache(resolver svgscene.FontResolver) *fontCache {
	return &fontCache{resolver: resolver, fonts: map[svgscene.FontID]*loadedFont{}}
}

// load returns nil if `id` is not available.
func (fc *fontCache) load(id svgscene.FontID) *loadedFont {
	if f, ok := fc.fonts[id]; ok {
		return f
	}
	fc.fonts[id] = nil
	if fc.resolver == nil {
		return nil
	}
	data, err := fc.resolver.FontData(id)
	if err != nil {
		return nil
	}
	face, err := gofont.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	outline, err := sfnt.Parse(data)
	if err != nil {
		return nil
	}
	f := &loadedFont{face: face, outline: outline}
	fc.fonts[id] = f
	return f
}

// lookupFont returns the first available font of the family list,
// or the default font.
func (c *iconCursor) lookupFont(st *style) (svgscene.FontID, *loadedFont) {
	for _, family := range strings.Split(st.fontFamily, ",") {
		family = strings.ToLower(strings.Trim(strings.TrimSpace(family), `"'`))
		if family == "" {
			continue
		}
		candidates := []svgscene.FontID{svgscene.FontID(family)}
		if st.bold {
			candidates = append([]svgscene.FontID{svgscene.FontID(family + ":bold")}, candidates...)
		}
		for _, id := range candidates {
			if f := c.fonts.load(id); f != nil {
				return id, f
			}
		}
	}
	if c.opts.DefaultFont != "" {
		if f := c.fonts.load(c.opts.DefaultFont); f != nil {
			return c.opts.DefaultFont, f
		}
	}
	return "", nil
}

func textF(c *iconCursor, el *element, st *style) (svgscene.Node, error) {
	runs, err := c.layoutText(el, st)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return svgscene.NewText(runs...), nil
}

// textSpan is a piece of character data with its style
// and the positioning attributes of its tspan.
type textSpan struct {
	st   style
	text string
	// absolute positions, for the first character
	x, y       *float64
	dx, dy     float64
	startChunk bool
}

// collectSpans flattens the text content of `el`, whose style is `st`.
func (c *iconCursor) collectSpans(el *element, st *style, spans []textSpan) ([]textSpan, error) {
	pos, err := c.textPosition(el, st)
	if err != nil {
		return nil, err
	}
	first := true
	for _, child := range el.Children {
		if child.Name == "" {
			span := textSpan{st: *st, text: child.Data}
			if first {
				span.x, span.y, span.dx, span.dy = pos.x, pos.y, pos.dx, pos.dy
				span.startChunk = pos.x != nil || pos.y != nil
				first = false
			}
			spans = append(spans, span)
			continue
		}
		if child.Attrs["display"] == "none" {
			continue
		}
		switch child.Name {
		case "tspan":
			childStyle, err := c.inherit(*st, child)
			if err != nil {
				return nil, err
			}
			if first {
				// the positioning applies to the first tspan
				spans = append(spans, textSpan{st: *st, x: pos.x, y: pos.y, dx: pos.dx, dy: pos.dy, startChunk: pos.x != nil || pos.y != nil})
				first = false
			}
			if spans, err = c.collectSpans(child, &childStyle, spans); err != nil {
				return nil, err
			}
		default:
			if err := c.handleError("unsupported text content element " + child.Name); err != nil {
				return nil, err
			}
		}
	}
	return spans, nil
}

type textPos struct {
	x, y   *float64
	dx, dy float64
}

// textPosition reads the first value of the x, y, dx and dy attributes.
func (c *iconCursor) textPosition(el *element, st *style) (textPos, error) {
	var out textPos
	for _, attr := range [...]struct {
		name string
		dir  direction
	}{{"x", horizontal}, {"y", vertical}, {"dx", horizontal}, {"dy", vertical}} {
		v, ok := el.Attrs[attr.name]
		if !ok {
			continue
		}
		values := splitOnCommaOrSpace(v)
		if len(values) == 0 {
			continue
		}
		if len(values) > 1 {
			c.log.Warn(fmt.Sprintf("only the first value of %s is supported", attr.name))
		}
		f, err := c.parseLength(values[0], attr.dir, st)
		if err != nil {
			if err = c.handleError(fmt.Sprintf("invalid %s %q", attr.name, v)); err != nil {
				return out, err
			}
			continue
		}
		switch attr.name {
		case "x":
			out.x = &f
		case "y":
			out.y = &f
		case "dx":
			out.dx = f
		case "dy":
			out.dy = f
		}
	}
	return out, nil
}

// collapseSpaces applies the default white space handling:
// new lines are removed, tabs become spaces, consecutive spaces
// are collapsed and the text is trimmed.
func collapseSpaces(spans []textSpan) {
	lastSpace := true // trims the start
	for i := range spans {
		var b strings.Builder
		for _, r := range spans[i].text {
			switch r {
			case '\n', '\r':
				continue
			case '\t':
				r = ' '
			}
			if r == ' ' && lastSpace {
				continue
			}
			lastSpace = r == ' '
			b.WriteRune(r)
		}
		spans[i].text = b.String()
	}
	// trims the end
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].text == "" {
			continue
		}
		spans[i].text = strings.TrimSuffix(spans[i].text, " ")
		break
	}
}

// layoutText shapes the content of a text element.
func (c *iconCursor) layoutText(el *element, st *style) ([]svgscene.TextRun, error) {
	spans, err := c.collectSpans(el, st, nil)
	if err != nil {
		return nil, err
	}
	collapseSpaces(spans)

	var (
		runs       []svgscene.TextRun
		penX, penY float64
		chunkStart = 0 // index in runs
		chunkX     = 0.
	)
	alignChunk := func() {
		var shift float64
		switch st.textAnchor {
		case anchorMiddle:
			shift = -(penX - chunkX) / 2
		case anchorEnd:
			shift = -(penX - chunkX)
		default:
			return
		}
		for _, run := range runs[chunkStart:] {
			for j := range run.Glyphs {
				run.Glyphs[j].X += shift
			}
		}
	}
	for _, span := range spans {
		if span.startChunk {
			alignChunk()
			chunkStart = len(runs)
		}
		if span.x != nil {
			penX = *span.x
		}
		if span.y != nil {
			penY = *span.y
		}
		penX += span.dx
		penY += span.dy
		if span.startChunk {
			chunkX = penX
		}
		if span.text == "" {
			continue
		}

		id, font := c.lookupFont(&span.st)
		if font == nil {
			c.log.Warn(fmt.Sprintf("no font available for %q: text %q is not rendered", span.st.fontFamily, span.text))
			continue
		}
		glyphs, advance := c.fonts.shape(font, span.text, span.st.fontSize, penX, penY)
		penX += advance
		if span.st.hidden {
			continue
		}
		fill, stroke := span.st.fillAndStroke()
		if fill == nil && stroke == nil {
			continue
		}
		runs = append(runs, svgscene.TextRun{
			Font: id, Size: span.st.fontSize,
			Fill: fill, Stroke: stroke,
			Glyphs: glyphs,
		})
	}
	alignChunk()
	return runs, nil
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

// shape positions the glyphs of `text`, starting at (x, y), and
// returns the total advance.
func (fc *fontCache) shape(font *loadedFont, text string, size, x, y float64) ([]svgscene.Glyph, float64) {
	runes := []rune(text)
	script := language.Latin
	for _, r := range runes {
		if r != ' ' {
			script = language.LookupScript(r)
			break
		}
	}
	output := fc.shaper.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      font.face,
		Size:      fixed.Int26_6(size * 64),
		Script:    script,
		Language:  language.DefaultLanguage(),
	})
	glyphs := make([]svgscene.Glyph, len(output.Glyphs))
	pen := x
	for i, g := range output.Glyphs {
		glyph := svgscene.Glyph{
			ID:      uint16(g.GlyphID),
			X:       pen + fixedToFloat(g.XOffset),
			Y:       y - fixedToFloat(g.YOffset), // Y up in the shaper output
			Advance: fixedToFloat(g.XAdvance),
		}
		if i == 0 || g.ClusterIndex != output.Glyphs[i-1].ClusterIndex {
			end := g.ClusterIndex + g.RuneCount
			if end > len(runes) {
				end = len(runes)
			}
			glyph.Text = string(runes[g.ClusterIndex:end])
		}
		glyphs[i] = glyph
		pen += glyph.Advance
	}
	return glyphs, pen - x
}

// textOutline returns the glyph outlines of a text element,
// used in clip paths.
func (c *iconCursor) textOutline(el *element, st *style) (svgpath.Path, error) {
	runs, err := c.layoutText(el, st)
	if err != nil {
		return nil, err
	}
	var path svgpath.Path
	for _, run := range runs {
		font := c.fonts.load(run.Font)
		for _, g := range run.Glyphs {
			if err := font.appendOutline(&path, g, run.Size); err != nil {
				c.log.Warn(fmt.Sprintf("invalid glyph %d: %s", g.ID, err))
			}
		}
	}
	return path, nil
}

func (f *loadedFont) appendOutline(path *svgpath.Path, g svgscene.Glyph, size float64) error {
	segments, err := f.outline.LoadGlyph(&f.buf, sfnt.GlyphIndex(g.ID), fixed.Int26_6(size*64), nil)
	if err != nil {
		return err
	}
	origin := svgpath.Pt(g.X, g.Y)
	pt := func(p fixed.Point26_6) svgpath.Point {
		q := svgpath.FromFixed(p)
		return svgpath.Pt(q.X+origin.X, q.Y+origin.Y)
	}
	started := false
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			if started {
				path.Stop(true)
			}
			path.Start(pt(seg.Args[0]))
			started = true
		case sfnt.SegmentOpLineTo:
			path.Line(pt(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			path.QuadBezier(pt(seg.Args[0]), pt(seg.Args[1]))
		case sfnt.SegmentOpCubeTo:
			path.CubeBezier(pt(seg.Args[0]), pt(seg.Args[1]), pt(seg.Args[2]))
		}
	}
	if started {
		path.Stop(true)
	}
	return nil
}
