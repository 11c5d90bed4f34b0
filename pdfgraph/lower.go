package pdfgraph

import (
	"fmt"
	"sort"
	"time"

	"github.com/benoitkugler/pdf/model"
	"golang.org/x/text/encoding/unicode"
)

// Lowerer converts objects of the PDF model to numbered objects of a Graph.
//
// Objects shared by pointer are written once. They are numbered in the
// order of a depth first walk, where the entries of resource dictionaries
// are visited by name: lowering the same model twice gives the same graph.
//
// Only the parts of the model used by the converter are supported;
// the first unsupported value is reported by Err.
type Lowerer struct {
	g    *Graph
	refs map[any]Ref
	err  error
}

// NewLowerer returns a Lowerer adding objects to `g`.
func NewLowerer(g *Graph) *Lowerer {
	return &Lowerer{g: g, refs: make(map[any]Ref)}
}

// Err returns the first error met while lowering.
func (l *Lowerer) Err() error { return l.err }

func (l *Lowerer) fail(format string, args ...any) Object {
	if l.err == nil {
		l.err = fmt.Errorf("pdfgraph: "+format, args...)
	}
	return Null{}
}

// shared returns the reference of `key`, building its object on first use.
func (l *Lowerer) shared(key any, build func() Object) Ref {
	if ref, ok := l.refs[key]; ok {
		return ref
	}
	ref := l.g.Alloc()
	l.refs[key] = ref
	l.g.Put(ref, build())
	return ref
}

// add writes an object which is not shared.
func (l *Lowerer) add(build func() Object) Ref {
	ref := l.g.Alloc()
	l.g.Put(ref, build())
	return ref
}

func sortedNames[V any](m map[model.Name]V) []model.Name {
	out := make([]model.Name, 0, len(m))
	for n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func rectangle(r model.Rectangle) Array { return Rect(r.Llx, r.Lly, r.Urx, r.Ury) }

func maybeFloat(f model.MaybeFloat) (Object, bool) {
	v, ok := f.(model.ObjFloat)
	return Real(v), ok
}

// Document lowers the page tree and the information dictionary
// of `doc`, and returns the matching trailer.
// Nested page trees are not supported.
func (l *Lowerer) Document(doc model.Document) Trailer {
	catalog, pages := l.g.Alloc(), l.g.Alloc()
	kids := Array{}
	for _, kid := range doc.Catalog.Pages.Kids {
		page, ok := kid.(*model.PageObject)
		if !ok {
			l.fail("unsupported page node %T", kid)
			continue
		}
		kids = append(kids, l.add(func() Object { return l.page(page, pages) }))
	}
	tree := Dict{"Type": Name("Pages"), "Kids": kids, "Count": Integer(len(kids))}
	if box := doc.Catalog.Pages.MediaBox; box != nil {
		tree["MediaBox"] = rectangle(*box)
	}
	if res := doc.Catalog.Pages.Resources; !res.IsEmpty() {
		tree["Resources"] = l.Resources(*res)
	}
	l.g.Put(pages, tree)
	l.g.Put(catalog, Dict{"Type": Name("Catalog"), "Pages": pages})

	trailer := Trailer{Root: catalog}
	if info := infoDict(doc.Trailer.Info); len(info) != 0 {
		trailer.Info = l.g.Add(info)
	}
	return trailer
}

func (l *Lowerer) page(page *model.PageObject, parent Ref) Object {
	dict := Dict{"Type": Name("Page"), "Parent": parent}
	if page.MediaBox != nil {
		dict["MediaBox"] = rectangle(*page.MediaBox)
	}
	if !page.Resources.IsEmpty() {
		dict["Resources"] = l.Resources(*page.Resources)
	}
	contents := make(Array, len(page.Contents))
	for i, content := range page.Contents {
		content := content
		contents[i] = l.add(func() Object { return l.stream(content.Stream, Dict{}) })
	}
	switch len(contents) {
	case 0:
	case 1:
		dict["Contents"] = contents[0]
	default:
		dict["Contents"] = contents
	}
	return dict
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// textString encodes `s` as PDFDocEncoding when it is ASCII,
// as UTF-16BE otherwise.
func textString(s string) String {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			out, err := utf16BE.NewEncoder().String(s)
			if err == nil {
				return String(out)
			}
			break
		}
	}
	return String(s)
}

func date(t time.Time) String {
	return String(t.UTC().Format("D:20060102150405Z"))
}

func infoDict(info model.Info) Dict {
	out := Dict{}
	for _, e := range [...]struct {
		key   Name
		value string
	}{
		{"Producer", info.Producer},
		{"Title", info.Title},
		{"Subject", info.Subject},
		{"Author", info.Author},
		{"Keywords", info.Keywords},
		{"Creator", info.Creator},
	} {
		if e.value != "" {
			out[e.key] = textString(e.value)
		}
	}
	if !info.CreationDate.IsZero() {
		out["CreationDate"] = date(info.CreationDate)
	}
	if !info.ModDate.IsZero() {
		out["ModDate"] = date(info.ModDate)
	}
	return out
}

func (l *Lowerer) stream(s model.Stream, dict Dict) Stream {
	names := make(Array, len(s.Filter))
	for i, f := range s.Filter {
		if len(f.DecodeParms) != 0 {
			l.fail("unsupported decode parameters for filter %s", f.Name)
		}
		names[i] = Name(f.Name)
	}
	switch len(names) {
	case 0:
	case 1:
		dict["Filter"] = names[0]
	default:
		dict["Filter"] = names
	}
	return Stream{Dict: dict, Content: s.Content}
}

// Resources lowers a resource dictionary.
func (l *Lowerer) Resources(res model.ResourcesDict) Dict {
	out := Dict{}
	if len(res.ExtGState) != 0 {
		d := Dict{}
		for _, n := range sortedNames(res.ExtGState) {
			d[Name(n)] = l.extGState(res.ExtGState[n])
		}
		out["ExtGState"] = d
	}
	if len(res.ColorSpace) != 0 {
		d := Dict{}
		for _, n := range sortedNames(res.ColorSpace) {
			d[Name(n)] = l.colorSpace(res.ColorSpace[n])
		}
		out["ColorSpace"] = d
	}
	if len(res.Shading) != 0 {
		d := Dict{}
		for _, n := range sortedNames(res.Shading) {
			d[Name(n)] = l.shading(res.Shading[n])
		}
		out["Shading"] = d
	}
	if len(res.Pattern) != 0 {
		d := Dict{}
		for _, n := range sortedNames(res.Pattern) {
			d[Name(n)] = l.pattern(res.Pattern[n])
		}
		out["Pattern"] = d
	}
	if len(res.Font) != 0 {
		d := Dict{}
		for _, n := range sortedNames(res.Font) {
			d[Name(n)] = l.font(res.Font[n])
		}
		out["Font"] = d
	}
	if len(res.XObject) != 0 {
		d := Dict{}
		for _, n := range sortedNames(res.XObject) {
			d[Name(n)] = l.XObject(res.XObject[n])
		}
		out["XObject"] = d
	}
	if len(res.Properties) != 0 {
		l.fail("unsupported property lists")
	}
	return out
}

func (l *Lowerer) colorSpace(cs model.ColorSpace) Object {
	name, ok := cs.(model.ColorSpaceName)
	if !ok {
		return l.fail("unsupported color space %T", cs)
	}
	return Name(name)
}

func (l *Lowerer) extGState(gs *model.GraphicState) Ref {
	return l.shared(gs, func() Object {
		dict := Dict{"Type": Name("ExtGState")}
		if gs.LW != 0 {
			dict["LW"] = Real(gs.LW)
		}
		if v, ok := maybeFloat(gs.CA); ok {
			dict["CA"] = v
		}
		if v, ok := maybeFloat(gs.Ca); ok {
			dict["ca"] = v
		}
		switch len(gs.BM) {
		case 0:
		case 1:
			dict["BM"] = Name(gs.BM[0])
		default:
			modes := make(Array, len(gs.BM))
			for i, m := range gs.BM {
				modes[i] = Name(m)
			}
			dict["BM"] = modes
		}
		switch mask := gs.SMask; mask.S {
		case "":
		case "None":
			dict["SMask"] = Name("None")
		default:
			d := Dict{"Type": Name("Mask"), "S": Name(mask.S)}
			if mask.G != nil {
				d["G"] = l.XObject(mask.G)
			}
			if len(mask.BC) != 0 {
				d["BC"] = Reals(mask.BC...)
			}
			dict["SMask"] = d
		}
		return dict
	})
}

func (l *Lowerer) shading(sh *model.ShadingDict) Ref {
	return l.shared(sh, func() Object {
		dict := Dict{"ColorSpace": l.colorSpace(sh.ColorSpace)}
		if len(sh.Background) != 0 {
			dict["Background"] = Reals(sh.Background...)
		}
		if sh.BBox != nil {
			dict["BBox"] = rectangle(*sh.BBox)
		}
		if sh.AntiAlias {
			dict["AntiAlias"] = Bool(true)
		}
		var base model.BaseGradient
		switch t := sh.ShadingType.(type) {
		case model.ShadingAxial:
			dict["ShadingType"] = Integer(2)
			dict["Coords"] = Reals(t.Coords[:]...)
			base = t.BaseGradient
		case model.ShadingRadial:
			dict["ShadingType"] = Integer(3)
			dict["Coords"] = Reals(t.Coords[:]...)
			base = t.BaseGradient
		default:
			return l.fail("unsupported shading %T", sh.ShadingType)
		}
		if base.Domain != ([2]model.Fl{}) {
			dict["Domain"] = Reals(base.Domain[:]...)
		}
		if len(base.Function) == 1 {
			dict["Function"] = l.function(base.Function[0])
		} else {
			fns := make(Array, len(base.Function))
			for i, f := range base.Function {
				fns[i] = l.function(f)
			}
			dict["Function"] = fns
		}
		if base.Extend != ([2]bool{}) {
			dict["Extend"] = Array{Bool(base.Extend[0]), Bool(base.Extend[1])}
		}
		return dict
	})
}

func ranges(rs []model.Range) Array {
	out := make(Array, 0, 2*len(rs))
	for _, r := range rs {
		out = append(out, Real(r[0]), Real(r[1]))
	}
	return out
}

// function writes a direct function dictionary.
func (l *Lowerer) function(f model.FunctionDict) Object {
	dict := Dict{"Domain": ranges(f.Domain)}
	if len(f.Range) != 0 {
		dict["Range"] = ranges(f.Range)
	}
	switch t := f.FunctionType.(type) {
	case model.FunctionExpInterpolation:
		dict["FunctionType"] = Integer(2)
		if t.C0 != nil {
			dict["C0"] = Reals(t.C0...)
		}
		if t.C1 != nil {
			dict["C1"] = Reals(t.C1...)
		}
		dict["N"] = Integer(t.N)
	case model.FunctionStitching:
		dict["FunctionType"] = Integer(3)
		fns := make(Array, len(t.Functions))
		for i, sub := range t.Functions {
			fns[i] = l.function(sub)
		}
		dict["Functions"] = fns
		dict["Bounds"] = Reals(t.Bounds...)
		encode := make(Array, 0, 2*len(t.Encode))
		for _, e := range t.Encode {
			encode = append(encode, Real(e[0]), Real(e[1]))
		}
		dict["Encode"] = encode
	default:
		return l.fail("unsupported function %T", f.FunctionType)
	}
	return dict
}

func (l *Lowerer) pattern(p model.Pattern) Ref {
	return l.shared(p, func() Object {
		switch p := p.(type) {
		case *model.PatternShading:
			dict := Dict{"Type": Name("Pattern"), "PatternType": Integer(2), "Shading": l.shading(p.Shading)}
			if p.Matrix != (model.Matrix{}) {
				dict["Matrix"] = Matrix(p.Matrix)
			}
			if p.ExtGState != nil {
				dict["ExtGState"] = l.extGState(p.ExtGState)
			}
			return dict
		case *model.PatternTiling:
			dict := Dict{
				"Type":        Name("Pattern"),
				"PatternType": Integer(1),
				"PaintType":   Integer(p.PaintType),
				"TilingType":  Integer(p.TilingType),
				"BBox":        rectangle(p.BBox),
				"XStep":       Real(p.XStep),
				"YStep":       Real(p.YStep),
				"Resources":   l.Resources(p.Resources),
			}
			if p.Matrix != (model.Matrix{}) {
				dict["Matrix"] = Matrix(p.Matrix)
			}
			return l.stream(p.Stream, dict)
		default:
			return l.fail("unsupported pattern %T", p)
		}
	})
}

func (l *Lowerer) font(f *model.FontDict) Ref {
	return l.shared(f, func() Object {
		t0, ok := f.Subtype.(model.FontType0)
		if !ok {
			return l.fail("unsupported font %T", f.Subtype)
		}
		dict := Dict{
			"Type":     Name("Font"),
			"Subtype":  Name("Type0"),
			"BaseFont": Name(t0.BaseFont),
		}
		if enc, ok := t0.Encoding.(model.CMapEncodingPredefined); ok {
			dict["Encoding"] = Name(enc)
		} else {
			l.fail("unsupported CMap encoding %T", t0.Encoding)
		}
		dict["DescendantFonts"] = Array{l.add(func() Object { return l.cidFont(t0.DescendantFonts) })}
		if f.ToUnicode != nil {
			dict["ToUnicode"] = l.shared(f.ToUnicode, func() Object { return l.stream(f.ToUnicode.Stream, Dict{}) })
		}
		return dict
	})
}

func (l *Lowerer) cidFont(cid model.CIDFontDictionary) Object {
	dict := Dict{
		"Type":     Name("Font"),
		"Subtype":  Name(cid.Subtype),
		"BaseFont": Name(cid.BaseFont),
		"CIDSystemInfo": Dict{
			"Registry":   String(cid.CIDSystemInfo.Registry),
			"Ordering":   String(cid.CIDSystemInfo.Ordering),
			"Supplement": Integer(cid.CIDSystemInfo.Supplement),
		},
	}
	dict["FontDescriptor"] = l.add(func() Object { return l.fontDescriptor(cid.FontDescriptor) })
	if cid.DW != 0 {
		dict["DW"] = Integer(cid.DW)
	}
	if len(cid.W) != 0 {
		var widths Array
		for _, w := range cid.W {
			switch w := w.(type) {
			case model.CIDWidthArray:
				ws := make(Array, len(w.W))
				for i, v := range w.W {
					ws[i] = Integer(v)
				}
				widths = append(widths, Integer(w.Start), ws)
			case model.CIDWidthRange:
				widths = append(widths, Integer(w.First), Integer(w.Last), Integer(w.Width))
			}
		}
		dict["W"] = widths
	}
	switch m := cid.CIDToGIDMap.(type) {
	case nil:
	case model.CIDToGIDMapIdentity:
		dict["CIDToGIDMap"] = Name("Identity")
	default:
		l.fail("unsupported CIDToGIDMap %T", m)
	}
	return dict
}

func (l *Lowerer) fontDescriptor(fd model.FontDescriptor) Object {
	dict := Dict{
		"Type":        Name("FontDescriptor"),
		"FontName":    Name(fd.FontName),
		"Flags":       Integer(fd.Flags),
		"FontBBox":    rectangle(fd.FontBBox),
		"ItalicAngle": Real(fd.ItalicAngle),
		"Ascent":      Real(fd.Ascent),
		"Descent":     Real(fd.Descent),
		"CapHeight":   Real(fd.CapHeight),
		"StemV":       Real(fd.StemV),
	}
	if file := fd.FontFile; file != nil {
		key := Name("FontFile2")
		if file.Subtype != "" {
			key = "FontFile3"
		}
		dict[key] = l.shared(file, func() Object {
			d := Dict{}
			if file.Length1 != 0 {
				d["Length1"] = Integer(file.Length1)
			}
			if file.Subtype != "" {
				d["Subtype"] = Name(file.Subtype)
			}
			return l.stream(file.Stream, d)
		})
	}
	return dict
}

// XObject lowers a form, a transparency group or an image.
func (l *Lowerer) XObject(x model.XObject) Ref {
	return l.shared(x, func() Object {
		switch x := x.(type) {
		case *model.XObjectForm:
			return l.form(x, nil)
		case *model.XObjectTransparencyGroup:
			group := Dict{"S": Name("Transparency")}
			if x.CS != nil {
				group["CS"] = l.colorSpace(x.CS)
			}
			if x.I {
				group["I"] = Bool(true)
			}
			if x.K {
				group["K"] = Bool(true)
			}
			return l.form(&x.XObjectForm, group)
		case *model.XObjectImage:
			return l.image(x)
		default:
			return l.fail("unsupported XObject %T", x)
		}
	})
}

func (l *Lowerer) form(f *model.XObjectForm, group Dict) Object {
	dict := Dict{
		"Type":    Name("XObject"),
		"Subtype": Name("Form"),
		"BBox":    rectangle(f.BBox),
	}
	if f.Matrix != (model.Matrix{}) {
		dict["Matrix"] = Matrix(f.Matrix)
	}
	if !f.Resources.IsEmpty() {
		dict["Resources"] = l.Resources(f.Resources)
	}
	if group != nil {
		dict["Group"] = group
	}
	return l.stream(f.Stream, dict)
}

func imageDict(img model.Image) Dict {
	dict := Dict{
		"Type":             Name("XObject"),
		"Subtype":          Name("Image"),
		"Width":            Integer(img.Width),
		"Height":           Integer(img.Height),
		"BitsPerComponent": Integer(img.BitsPerComponent),
	}
	if img.Interpolate {
		dict["Interpolate"] = Bool(true)
	}
	return dict
}

func (l *Lowerer) image(img *model.XObjectImage) Object {
	dict := imageDict(img.Image)
	dict["ColorSpace"] = l.colorSpace(img.ColorSpace)
	if mask := img.SMask; mask != nil {
		dict["SMask"] = l.shared(mask, func() Object {
			d := imageDict(mask.Image)
			d["ColorSpace"] = Name(model.ColorSpaceGray)
			return l.stream(mask.Stream, d)
		})
	}
	return l.stream(img.Stream, dict)
}
