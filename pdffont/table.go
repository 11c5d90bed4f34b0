package pdffont

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
)

var logger = zap.NewNop()

// SetLogger sets the logger used by the tables with no Logger.
func SetLogger(l *zap.Logger) { logger = l }

// ErrFinalized is returned when a glyph is used after
// the fonts have been written.
var ErrFinalized = errors.New("font table already finalized")

// Subset accumulates the glyphs of one font: each new glyph
// gets the next CID, 0 being reserved for notdef.
type Subset struct {
	Font *Font
	// Dict is the Type0 font dictionary, to be used in resources.
	// It is only filled by Table.Finalize.
	Dict *model.FontDict

	glyphs []uint16          // CID -> glyph index
	cids   map[uint16]uint16 // glyph index -> CID
	texts  []string          // CID -> text
}

// CID returns the code of the glyph `gid`, whose text is `text`.
// Unknown glyphs are mapped to notdef.
func (s *Subset) CID(gid uint16, text string) uint16 {
	if int(gid) >= s.Font.NumGlyphs() {
		gid = 0
	}
	cid, ok := s.cids[gid]
	if !ok {
		cid = uint16(len(s.glyphs))
		s.cids[gid] = cid
		s.glyphs = append(s.glyphs, gid)
		s.texts = append(s.texts, "")
	}
	if text != "" && s.texts[cid] == "" {
		s.texts[cid] = text
	}
	return cid
}

// Len returns the number of CIDs, notdef included.
func (s *Subset) Len() int { return len(s.glyphs) }

// Table stores the fonts of one conversion: the parsed programs,
// and the subsets of the embedded fonts, in first use order.
type Table struct {
	Compress bool
	// Logger reports embedded fonts. If nil, the logger
	// set by SetLogger is used.
	Logger *zap.Logger

	resolver  svgscene.FontResolver
	files     map[rescache.Key]*model.FontFile
	fonts     map[svgscene.FontID]*Font
	errs      map[svgscene.FontID]error
	subsets   map[svgscene.FontID]*Subset
	order     []*Subset
	finalized bool
}

// NewTable returns an empty table, loading the fonts from `resolver`.
func NewTable(resolver svgscene.FontResolver, compress bool) *Table {
	return &Table{
		Compress: compress,
		resolver: resolver,
		files:    map[rescache.Key]*model.FontFile{},
		fonts:    map[svgscene.FontID]*Font{},
		errs:     map[svgscene.FontID]error{},
		subsets:  map[svgscene.FontID]*Subset{},
	}
}

func (t *Table) log() *zap.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return logger
}

// Font returns the parsed font `id`. Failures are cached.
func (t *Table) Font(id svgscene.FontID) (*Font, error) {
	if f, ok := t.fonts[id]; ok {
		return f, nil
	}
	if err, ok := t.errs[id]; ok {
		return nil, err
	}
	if t.resolver == nil {
		return nil, fmt.Errorf("no font resolver for font %s", id)
	}
	data, err := t.resolver.FontData(id)
	var f *Font
	if err == nil {
		f, err = Parse(id, data)
	}
	if err != nil {
		t.errs[id] = err
		return nil, err
	}
	t.fonts[id] = f
	return f, nil
}

// GlyphOutline implements svgraster.Outliner.
func (t *Table) GlyphOutline(id svgscene.FontID, gid uint16) (svgpath.Path, error) {
	f, err := t.Font(id)
	if err != nil {
		return nil, err
	}
	return f.GlyphOutline(gid)
}

// Check returns an error if the font `id` can't be embedded,
// without allocating its subset.
func (t *Table) Check(id svgscene.FontID) error {
	if _, ok := t.subsets[id]; ok {
		return nil
	}
	f, err := t.Font(id)
	if err != nil {
		return err
	}
	if !f.IsTrueType() {
		return fmt.Errorf("font %s: %w", id, ErrNotSubsettable)
	}
	tables, err := readTables(f.data)
	if err != nil {
		return fmt.Errorf("font %s: %w", id, err)
	}
	for _, tag := range requiredTables {
		if _, ok := tables[tag]; !ok {
			return fmt.Errorf("font %s: missing table %s: %w", id, tag, ErrNotSubsettable)
		}
	}
	return nil
}

// Subset returns the subset of the font `id`, creating it on first use.
// ErrNotSubsettable is returned for fonts which should be drawn
// with paths.
func (t *Table) Subset(id svgscene.FontID) (*Subset, error) {
	if t.finalized {
		return nil, ErrFinalized
	}
	if s, ok := t.subsets[id]; ok {
		return s, nil
	}
	if err := t.Check(id); err != nil {
		return nil, err
	}
	f := t.fonts[id]
	s := &Subset{Font: f, Dict: new(model.FontDict), cids: map[uint16]uint16{}}
	s.CID(0, "") // notdef
	t.subsets[id] = s
	t.order = append(t.order, s)
	return s, nil
}

// Len returns the number of embedded fonts.
func (t *Table) Len() int { return len(t.order) }

// Finalize writes the embedded fonts. It must be called exactly
// once, after the last glyph use.
func (t *Table) Finalize() error {
	if t.finalized {
		return ErrFinalized
	}
	t.finalized = true
	for _, s := range t.order {
		if err := t.writeSubset(s); err != nil {
			return fmt.Errorf("embedding font %s: %w", s.Font.ID, err)
		}
	}
	return nil
}

const subsetModulus = 26 * 26 * 26 * 26 * 26 * 26

// subsetTag returns a 6 letters tag describing the glyph set.
func subsetTag(glyphs []uint16, numGlyphs int) string {
	sorted := append([]uint16(nil), glyphs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	x := uint32(numGlyphs)
	for _, g := range sorted {
		x = (x*11 + uint32(g)) % subsetModulus
	}
	var buf [6]byte
	for i := range buf {
		buf[i] = 'A' + byte(x%26)
		x /= 26
	}
	return string(buf[:])
}

func (t *Table) writeSubset(s *Subset) error {
	program, glyphs, err := subsetTrueType(s.Font.data, s.glyphs)
	if err != nil {
		return err
	}
	fileKey := rescache.NewHasher("font file").Bytes(program).Sum()
	fontFile := t.files[fileKey]
	if fontFile == nil {
		stream, err := pdfdraw.NewStream(program, t.Compress)
		if err != nil {
			return err
		}
		fontFile = &model.FontFile{Stream: stream, Length1: len(program)}
		t.files[fileKey] = fontFile
	}

	baseFont := model.Name(subsetTag(glyphs, s.Font.NumGlyphs()) + "+" + s.Font.PostScriptName())
	m := s.Font.metrics()
	descriptor := model.FontDescriptor{
		FontName:    baseFont,
		Flags:       model.Symbolic,
		FontBBox:    model.Rectangle{Llx: m.bbox[0], Lly: m.bbox[1], Urx: m.bbox[2], Ury: m.bbox[3]},
		ItalicAngle: m.italicAngle,
		Ascent:      math.Round(m.ascent),
		Descent:     math.Round(m.descent),
		CapHeight:   math.Round(m.capHeight),
		StemV:       80,
		FontFile:    fontFile,
	}

	widths := make([]int, len(glyphs))
	for cid, gid := range glyphs {
		widths[cid] = int(math.Round(1000 * s.Font.Advance(gid)))
	}

	cmap, err := toUnicode(s.texts)
	if err != nil {
		return err
	}
	cmapStream, err := pdfdraw.NewStream(cmap, t.Compress)
	if err != nil {
		return err
	}

	*s.Dict = model.FontDict{
		Subtype: model.FontType0{
			BaseFont: baseFont,
			Encoding: model.CMapEncodingPredefined("Identity-H"),
			DescendantFonts: model.CIDFontDictionary{
				Subtype:        "CIDFontType2",
				BaseFont:       baseFont,
				CIDSystemInfo:  model.CIDSystemInfo{Registry: "Adobe", Ordering: "Identity"},
				FontDescriptor: descriptor,
				W:              []model.CIDWidth{model.CIDWidthArray{Start: 0, W: widths}},
				CIDToGIDMap:    model.CIDToGIDMapIdentity{},
			},
		},
		ToUnicode: &model.UnicodeCMap{Stream: cmapStream},
	}
	t.log().Debug("font embedded", zap.String("font", string(s.Font.ID)),
		zap.Int("glyphs", len(glyphs)), zap.Int("size", len(program)))
	return nil
}

const toUnicodeHeader = `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap
/CIDSystemInfo << /Registry (Adobe) /Ordering (UCS) /Supplement 0 >> def
/CMapName /Adobe-Identity-UCS def
/CMapType 2 def
1 begincodespacerange
<0000> <FFFF>
endcodespacerange
`

const toUnicodeFooter = `endcmap
CMapName currentdict /CMap defineresource pop
end
end
`

// toUnicode returns a CMap mapping the CIDs to their text,
// written in UTF-16BE.
func toUnicode(texts []string) ([]byte, error) {
	encoder := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	type pair struct {
		cid   int
		utf16 []byte
	}
	var pairs []pair
	for cid, text := range texts {
		if text == "" {
			continue
		}
		b, err := encoder.Bytes([]byte(text))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{cid, b})
	}

	var buf bytes.Buffer
	buf.WriteString(toUnicodeHeader)
	for len(pairs) > 0 {
		chunk := pairs
		if len(chunk) > 100 { // per block limit
			chunk = chunk[:100]
		}
		pairs = pairs[len(chunk):]
		fmt.Fprintf(&buf, "%d beginbfchar\n", len(chunk))
		for _, p := range chunk {
			fmt.Fprintf(&buf, "<%04X> <%X>\n", p.cid, p.utf16)
		}
		buf.WriteString("endbfchar\n")
	}
	buf.WriteString(toUnicodeFooter)
	return buf.Bytes(), nil
}
