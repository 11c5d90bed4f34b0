package svgpdf

import (
	"math"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/fonts"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/paint"
	"github.com/benoitkugler/svg2pdf/pdffont"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
)

// text draws a text node, either with embedded fonts, or as paths
// when text embedding is disabled or one of its fonts can't be embedded.
func (c *converter) text(b *contentstream.Appearance, t *svgscene.Text) error {
	bbox, _ := svgscene.Bounds(t)
	if c.embeddable(t) {
		for _, run := range t.Runs {
			if err := c.textRun(b, run, bbox); err != nil {
				return err
			}
		}
		return nil
	}
	for _, run := range t.Runs {
		path, err := c.runOutlines(run)
		if err != nil {
			c.warn("skipping text run", err, zap.String("node", t.ID), zap.String("font", string(run.Font)))
			continue
		}
		if err := c.shape(b, path, run.Fill, run.Stroke, bbox); err != nil {
			return err
		}
	}
	return nil
}

// embeddable returns true if every font of `t` can be embedded.
func (c *converter) embeddable(t *svgscene.Text) bool {
	if !c.opts.EmbedText {
		return false
	}
	for _, run := range t.Runs {
		if err := c.fonts.Check(run.Font); err != nil {
			c.log.Debug("drawing text as paths", zap.String("node", t.ID), zap.Error(err))
			return false
		}
	}
	return true
}

func (c *converter) runOutlines(run svgscene.TextRun) (svgpath.Path, error) {
	var path svgpath.Path
	for _, g := range run.Glyphs {
		outline, err := c.fonts.GlyphOutline(run.Font, g.ID)
		if err != nil {
			return nil, err
		}
		path = append(path, outline.Transform(svgpath.NewTranslation(g.X, g.Y).Scale(run.Size, run.Size))...)
	}
	return path, nil
}

// textRun shows the glyphs of `run`, with one pass for the fill and
// one for the stroke.
func (c *converter) textRun(b *contentstream.Appearance, run svgscene.TextRun, bbox svgpath.Rect) error {
	if len(run.Glyphs) == 0 || run.Size <= 0 {
		return nil
	}
	subset, err := c.fonts.Subset(run.Font)
	if err != nil {
		return err
	}
	st := c.top()

	if run.Fill != nil && run.Fill.Paint != nil {
		b.Ops(contentstream.OpSave{})
		ctx := paint.Context{Stream: st.stream, BBox: bbox, Colors: st.colors}
		ok, err := c.paints.Apply(b, run.Fill.Paint, run.Fill.Opacity, false, ctx)
		if err != nil {
			return err
		}
		if ok {
			showGlyphs(b, subset, run, 0)
		}
		b.Ops(contentstream.OpRestore{})
	}
	if s := run.Stroke; s != nil && s.Paint != nil && s.Width > 0 {
		b.Ops(contentstream.OpSave{})
		d := strokeExtent(s)
		ctx := paint.Context{Stream: st.stream, BBox: bbox, Region: c.textInk(run, bbox).Expand(d, d), Colors: st.colors}
		ok, err := c.paints.Apply(b, s.Paint, s.Opacity, true, ctx)
		if err != nil {
			return err
		}
		if ok {
			strokeOptions(b, s)
			showGlyphs(b, subset, run, 1)
		}
		b.Ops(contentstream.OpRestore{})
	}
	return nil
}

// showGlyphs writes a text object positioning each glyph at its
// origin. A new line is started when the baseline changes.
func showGlyphs(b *contentstream.Appearance, subset *pdffont.Subset, run svgscene.TextRun, mode model.Fl) {
	b.Ops(contentstream.OpBeginText{})
	b.SetFontAndSize(fonts.BuiltFont{Meta: subset.Dict}, run.Size)
	if mode != 0 {
		b.Ops(contentstream.OpSetTextRender{Render: mode})
	}
	var (
		line    []fonts.TextSpaced
		penX, y float64
	)
	flush := func() {
		if len(line) != 0 {
			b.Ops(contentstream.OpShowSpaceText{Texts: line})
			line = nil
		}
	}
	for i, g := range run.Glyphs {
		if i == 0 || g.Y != y {
			flush()
			y, penX = g.Y, g.X
			// the user space is y-down
			b.Ops(contentstream.OpSetTextMatrix{Matrix: model.Matrix{1, 0, 0, -1, g.X, g.Y}})
			line = append(line, fonts.TextSpaced{})
		}
		// TJ adjustments are integer thousandths of em, subtracted
		// from the pen position
		if adjust := int(math.Round((penX - g.X) * 1000 / run.Size)); adjust != 0 {
			line[len(line)-1].SpaceSubtractedAfter = adjust
			line = append(line, fonts.TextSpaced{})
			penX -= float64(adjust) * run.Size / 1000
		}
		cid := subset.CID(g.ID, g.Text)
		line[len(line)-1].Text += string([]byte{byte(cid >> 8), byte(cid)})
		// widths are written in integer thousandths of em
		penX += math.Round(1000*subset.Font.Advance(g.ID)) / 1000 * run.Size
	}
	flush()
	b.Ops(contentstream.OpEndText{})
}

// textInk returns the area covered by the outlines of the glyphs
// of `run`, united with `bbox`.
func (c *converter) textInk(run svgscene.TextRun, bbox svgpath.Rect) svgpath.Rect {
	path, err := c.runOutlines(run)
	if err != nil || path.IsEmpty() {
		return bbox
	}
	return bbox.Union(path.Bounds())
}
