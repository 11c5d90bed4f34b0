// Package pdffont embeds the fonts used by text nodes: the glyphs
// actually used are collected during the conversion, then each font is
// written once, as a subsetted TrueType program wrapped in a Type0
// composite font with the Identity-H encoding.
//
// It also provides the glyph outlines used to draw text as paths.
package pdffont

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// ErrNotSubsettable is returned for fonts which can't be embedded,
// like fonts with CFF outlines. Their text is drawn with paths.
var ErrNotSubsettable = errors.New("font can't be subsetted")

// Font is a parsed font program.
type Font struct {
	ID   svgscene.FontID
	data []byte

	font *sfnt.Font
	buf  sfnt.Buffer
	upem float64
	ppem fixed.Int26_6 // one pixel per font unit
}

// Parse parses a TrueType or OpenType font.
func Parse(id svgscene.FontID, data []byte) (*Font, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", id, err)
	}
	upem := f.UnitsPerEm()
	if upem == 0 {
		return nil, fmt.Errorf("parsing font %s: invalid unitsPerEm", id)
	}
	return &Font{ID: id, data: data, font: f, upem: float64(upem), ppem: fixed.Int26_6(upem) << 6}, nil
}

// NumGlyphs returns the number of glyphs in the font.
func (f *Font) NumGlyphs() int { return f.font.NumGlyphs() }

// IsTrueType returns true for fonts with TrueType outlines,
// which are the only ones supported by the subsetter.
func (f *Font) IsTrueType() bool {
	if len(f.data) < 4 {
		return false
	}
	switch string(f.data[:4]) {
	case "\x00\x01\x00\x00", "true":
		return true
	default:
		return false
	}
}

// PostScriptName returns the name of the font, with
// the characters forbidden in PDF names removed.
func (f *Font) PostScriptName() string {
	name, err := f.font.Name(&f.buf, sfnt.NameIDPostScript)
	if err != nil || name == "" {
		name, _ = f.font.Name(&f.buf, sfnt.NameIDFull)
	}
	name = strings.Map(func(r rune) rune {
		if r <= ' ' || r > '~' || strings.ContainsRune("()<>[]{}/%#", r) {
			return -1
		}
		return r
	}, name)
	if name == "" {
		name = "Font"
	}
	return name
}

func (f *Font) units(v fixed.Int26_6) float64 { return float64(v) / 64 / f.upem }

// Advance returns the advance of a glyph, in em.
func (f *Font) Advance(gid uint16) float64 {
	adv, err := f.font.GlyphAdvance(&f.buf, sfnt.GlyphIndex(gid), f.ppem, font.HintingNone)
	if err != nil {
		return 0
	}
	return f.units(adv)
}

// GlyphOutline returns the outline of a glyph, for a font size of 1,
// with the y axis pointing down. Glyphs without outline fall
// back to the notdef glyph.
func (f *Font) GlyphOutline(gid uint16) (svgpath.Path, error) {
	if int(gid) >= f.NumGlyphs() {
		gid = 0
	}
	segments, err := f.font.LoadGlyph(&f.buf, sfnt.GlyphIndex(gid), f.ppem, nil)
	if err != nil && gid != 0 {
		segments, err = f.font.LoadGlyph(&f.buf, 0, f.ppem, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("loading glyph %d of font %s: %w", gid, f.ID, err)
	}
	pt := func(p fixed.Point26_6) svgpath.Point { return svgpath.Pt(f.units(p.X), f.units(p.Y)) }
	var (
		out  svgpath.Path
		open bool
	)
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			if open {
				out.Stop(true)
			}
			out.Start(pt(seg.Args[0]))
			open = true
		case sfnt.SegmentOpLineTo:
			out.Line(pt(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			out.QuadBezier(pt(seg.Args[0]), pt(seg.Args[1]))
		case sfnt.SegmentOpCubeTo:
			out.CubeBezier(pt(seg.Args[0]), pt(seg.Args[1]), pt(seg.Args[2]))
		}
	}
	if open {
		out.Stop(true)
	}
	return out, nil
}

// metrics are expressed in thousandths of em, with the y axis pointing up.
type metrics struct {
	ascent, descent, capHeight float64
	italicAngle                float64
	bbox                       [4]float64
}

func (f *Font) metrics() metrics {
	var out metrics
	scale := func(v fixed.Int26_6) float64 { return 1000 * f.units(v) }
	if m, err := f.font.Metrics(&f.buf, f.ppem, font.HintingNone); err == nil {
		out.ascent = scale(m.Ascent)
		out.descent = -scale(m.Descent)
		out.capHeight = scale(m.CapHeight)
	}
	if out.capHeight == 0 {
		out.capHeight = out.ascent
	}
	if b, err := f.font.Bounds(&f.buf, f.ppem, font.HintingNone); err == nil {
		out.bbox = [4]float64{scale(b.Min.X), -scale(b.Max.Y), scale(b.Max.X), -scale(b.Min.Y)}
	}
	if post := f.font.PostTable(); post != nil {
		out.italicAngle = post.ItalicAngle
	}
	return out
}
