package svgpdf

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/pdf/reader"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/pdfgraph"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
)

var red = svgscene.NewPlainColor(0xff, 0, 0)

func rectNode(r svgpath.Rect) *svgscene.Path {
	return svgscene.NewPath(r.Path(), svgscene.NewFill(red), nil)
}

func testTree(children ...svgscene.Node) *svgscene.Tree {
	tree := svgscene.NewTree(100, 100)
	tree.Root.Children = children
	return tree
}

func uncompressed() Options {
	opts := DefaultOptions()
	opts.Compress = false
	return opts
}

func mustChunk(t *testing.T, tree *svgscene.Tree, opts Options) *Chunk {
	t.Helper()
	chunk, err := ConvertToChunk(tree, opts)
	if err != nil {
		t.Fatal(err)
	}
	return chunk
}

// formOperators returns the operators of every form XObject of the graph.
func formOperators(t *testing.T, g *pdfgraph.Graph) []string {
	t.Helper()
	var out []string
	_, objs := g.Objects()
	for _, obj := range objs {
		st, ok := obj.(pdfgraph.Stream)
		if !ok || st.Dict["Subtype"] != pdfgraph.Name("Form") {
			continue
		}
		content, err := st.Decode()
		if err != nil {
			t.Fatal(err)
		}
		ops, err := pdfdraw.Operators(model.Stream{Content: content})
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, ops...)
	}
	return out
}

// rootOperations returns the parsed content of the form of the chunk.
func rootOperations(t *testing.T, chunk *Chunk) []contentstream.Operation {
	t.Helper()
	ops, err := pdfdraw.Operations(chunk.Form.Stream)
	if err != nil {
		t.Fatal(err)
	}
	return ops
}

// groups returns the transparency groups used by `form`.
func groups(form *model.XObjectForm) []*model.XObjectTransparencyGroup {
	var out []*model.XObjectTransparencyGroup
	for _, xo := range form.Resources.XObject {
		if g, ok := xo.(*model.XObjectTransparencyGroup); ok {
			out = append(out, g)
		}
	}
	return out
}

// countObjects returns the number of objects for which `match` is true.
func countObjects(g *pdfgraph.Graph, match func(pdfgraph.Dict) bool) int {
	n := 0
	_, objs := g.Objects()
	for _, obj := range objs {
		var dict pdfgraph.Dict
		switch obj := obj.(type) {
		case pdfgraph.Dict:
			dict = obj
		case pdfgraph.Stream:
			dict = obj.Dict
		default:
			continue
		}
		if match(dict) {
			n++
		}
	}
	return n
}

func isImage(d pdfgraph.Dict) bool { return d["Subtype"] == pdfgraph.Name("Image") }

func hasSoftMask(d pdfgraph.Dict) bool {
	_, ok := d["SMask"]
	return ok && d["Type"] == pdfgraph.Name("ExtGState")
}

func contains(ops []string, op string) bool { return count(ops, op) != 0 }

func count(ops []string, op string) int {
	n := 0
	for _, o := range ops {
		if o == op {
			n++
		}
	}
	return n
}

func TestConvertDeterministic(t *testing.T) {
	build := func() *svgscene.Tree {
		g := svgscene.NewGroup(rectNode(svgpath.Rect{X: 10, Y: 10, W: 30, H: 30}))
		g.Opacity = 0.5
		return testTree(g, rectNode(svgpath.Rect{X: 50, Y: 50, W: 20, H: 20}))
	}
	out1, err := Convert(build(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	out2, err := Convert(build(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(out1, []byte("%PDF-")) {
		t.Fatalf("invalid header %q", out1[:10])
	}
	if !bytes.Equal(out1, out2) {
		t.Error("output is not deterministic")
	}
}

func TestRoundTrip(t *testing.T) {
	out, err := Convert(testTree(rectNode(svgpath.Rect{W: 50, H: 50})), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	g, trailer, err := pdfgraph.Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Check(); err != nil {
		t.Fatal(err)
	}
	catalog, ok := g.Get(trailer.Root).(pdfgraph.Dict)
	if !ok || catalog["Type"] != pdfgraph.Name("Catalog") {
		t.Fatalf("invalid catalog %v", catalog)
	}
}

func TestGradientRoundTrip(t *testing.T) {
	lg := &svgscene.LinearGradient{
		ID: "lg", X2: 1,
		Units:     svgscene.ObjectBoundingBox,
		Transform: svgpath.Identity,
		Stops: []svgscene.GradStop{
			{Offset: 0, Color: red, Opacity: 1},
			{Offset: 1, Color: svgscene.NewPlainColor(0, 0, 0xff), Opacity: 1},
		},
	}
	node := svgscene.NewPath(svgpath.Rect{W: 100, H: 100}.Path(), svgscene.NewFill(lg), nil)
	doc, err := ConvertDocument(testTree(node), uncompressed())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := doc.Write(&buf, nil); err != nil {
		t.Fatal(err)
	}

	parsed, _, err := reader.ParsePDFReader(bytes.NewReader(buf.Bytes()), reader.Options{})
	if err != nil {
		t.Fatal(err)
	}
	pages := parsed.Catalog.Pages.Flatten()
	if len(pages) != 1 || *pages[0].MediaBox != (model.Rectangle{Urx: 100, Ury: 100}) {
		t.Fatalf("expected one 100x100 page, got %v", pages)
	}
	if len(pages[0].Resources.XObject) != 1 {
		t.Fatalf("expected one form, got %v", pages[0].Resources.XObject)
	}
	var form *model.XObjectForm
	for _, xo := range pages[0].Resources.XObject {
		form = xo.(*model.XObjectForm)
	}
	if len(form.Resources.Pattern) != 1 {
		t.Fatalf("expected one shading pattern, got %d patterns", len(form.Resources.Pattern))
	}
	var name model.ObjName
	var pattern *model.PatternShading
	for n, p := range form.Resources.Pattern {
		name, pattern = n, p.(*model.PatternShading)
	}

	ops, err := pdfdraw.Operations(form.Stream)
	if err != nil {
		t.Fatal(err)
	}
	var fills int
	var current model.ObjName
	for _, op := range ops {
		switch op := op.(type) {
		case contentstream.OpSetFillColorN:
			current = op.Pattern
		case contentstream.OpFill:
			fills++
			if current != name {
				t.Errorf("fill should use the pattern %s, got %q", name, current)
			}
		}
	}
	if fills != 1 {
		t.Errorf("expected one fill, got %d", fills)
	}

	axial, ok := pattern.Shading.ShadingType.(model.ShadingAxial)
	if !ok || len(axial.Function) != 1 {
		t.Fatalf("unexpected shading %v", pattern.Shading.ShadingType)
	}
	stitching, ok := axial.Function[0].FunctionType.(model.FunctionStitching)
	if !ok || len(stitching.Functions) != 1 {
		t.Fatalf("unexpected function %v", axial.Function[0].FunctionType)
	}
	expected := model.FunctionExpInterpolation{C0: []model.Fl{1, 0, 0}, C1: []model.Fl{0, 0, 1}, N: 1}
	if diff := cmp.Diff(expected, stitching.Functions[0].FunctionType, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("unexpected stops (-want +got)\n%s", diff)
	}
}

func TestPageSize(t *testing.T) {
	tree := testTree(rectNode(svgpath.Rect{W: 50, H: 50}))
	opts := uncompressed()
	opts.DPI = 96
	chunk := mustChunk(t, tree, opts)
	if diff := cmp.Diff([2]float64{75, 75}, [2]float64{chunk.Width, chunk.Height}); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}

	opts.DPI = 72
	opts.Viewport = svgpath.Rect{X: 10, Y: 10, W: 20, H: 40}
	chunk = mustChunk(t, tree, opts)
	if diff := cmp.Diff([2]float64{20, 40}, [2]float64{chunk.Width, chunk.Height}); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func TestClips(t *testing.T) {
	tree := testTree()
	tree.ClipPaths["rect"] = &svgscene.ClipPath{
		ID: "rect", Transform: svgpath.Identity,
		Shapes: []svgscene.ClipShape{{Path: svgpath.Rect{W: 20, H: 20}.Path(), Transform: svgpath.Identity}},
	}
	tree.ClipPaths["union"] = &svgscene.ClipPath{
		ID: "union", Transform: svgpath.Identity,
		Shapes: []svgscene.ClipShape{
			{Path: svgpath.Rect{W: 20, H: 20}.Path(), Transform: svgpath.Identity},
			{Path: svgpath.Rect{X: 40, Y: 40, W: 20, H: 20}.Path(), Transform: svgpath.Identity},
		},
	}

	for _, test := range []struct {
		clip     string
		softMask bool
	}{
		{"rect", false},
		{"union", true},
	} {
		node := rectNode(svgpath.Rect{W: 100, H: 100})
		node.ClipPath = test.clip
		tree.Root.Children = []svgscene.Node{node}
		chunk := mustChunk(t, tree, uncompressed())

		ops := formOperators(t, chunk.Graph)
		if got := contains(ops, "W"); got == test.softMask {
			t.Errorf("clip %s: unexpected W operator presence %v", test.clip, got)
		}
		if got := countObjects(chunk.Graph, hasSoftMask) != 0; got != test.softMask {
			t.Errorf("clip %s: expected soft mask %v, got %v", test.clip, test.softMask, got)
		}
	}
}

func TestNestedClips(t *testing.T) {
	tree := testTree()
	tree.ClipPaths["a"] = &svgscene.ClipPath{
		ID: "a", Transform: svgpath.Identity, ClipPath: "b",
		Shapes: []svgscene.ClipShape{{Path: svgpath.Rect{W: 60, H: 60}.Path(), Transform: svgpath.Identity}},
	}
	tree.ClipPaths["b"] = &svgscene.ClipPath{
		ID: "b", Transform: svgpath.Identity,
		Shapes: []svgscene.ClipShape{{Path: svgpath.Rect{X: 40, Y: 30, W: 60, H: 60}.Path(), Transform: svgpath.Identity}},
	}
	node := rectNode(svgpath.Rect{W: 100, H: 100})
	node.ClipPath = "a"
	node.Opacity = 0.5
	tree.Root.Children = []svgscene.Node{node}
	chunk := mustChunk(t, tree, uncompressed())

	if n := count(formOperators(t, chunk.Graph), "W"); n != 2 {
		t.Errorf("expected two clipping paths, got %d", n)
	}
	// the group is bounded by A∩B
	gs := groups(chunk.Form)
	if len(gs) != 1 {
		t.Fatalf("expected one group, got %d", len(gs))
	}
	if diff := cmp.Diff(model.Rectangle{Llx: 40, Lly: 30, Urx: 60, Ury: 60}, gs[0].BBox); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func TestHiddenNodes(t *testing.T) {
	transparent := rectNode(svgpath.Rect{W: 10, H: 10})
	transparent.Opacity = 0
	singular := rectNode(svgpath.Rect{W: 10, H: 10})
	singular.Transform = svgpath.NewScale(0, 1)
	tree := testTree(transparent, singular)
	tree.Filters["empty"] = &svgscene.Filter{ID: "empty", Region: svgpath.Rect{W: 100, H: 100}}
	filtered := rectNode(svgpath.Rect{W: 10, H: 10})
	filtered.Filter = "empty"
	tree.Root.Children = append(tree.Root.Children, filtered)

	chunk := mustChunk(t, tree, uncompressed())
	if contains(formOperators(t, chunk.Graph), "f") {
		t.Error("hidden nodes should not be painted")
	}
}

func TestGroupDeduplication(t *testing.T) {
	group := func() svgscene.Node {
		g := svgscene.NewGroup(rectNode(svgpath.Rect{W: 10, H: 10}))
		g.Opacity = 0.5
		return g
	}
	chunk := mustChunk(t, testTree(group(), group()), uncompressed())
	groups := countObjects(chunk.Graph, func(d pdfgraph.Dict) bool { _, ok := d["Group"]; return ok })
	if groups != 1 {
		t.Errorf("expected one transparency group, got %d", groups)
	}
}

func TestBlendAndOpacity(t *testing.T) {
	node := rectNode(svgpath.Rect{W: 10, H: 10})
	node.Opacity = 0.5
	node.Blend = svgscene.Multiply
	chunk := mustChunk(t, testTree(node), uncompressed())

	n := countObjects(chunk.Graph, func(d pdfgraph.Dict) bool {
		return d["BM"] == pdfgraph.Name("Multiply") && d["ca"] == pdfgraph.Real(0.5)
	})
	if n != 1 {
		t.Errorf("expected one blend graphics state, got %d", n)
	}
}

func TestImages(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(0, 0, color.NRGBA{A: 0x80})
	newImage := func() *svgscene.Image {
		node := svgscene.NewImage(svgpath.Rect{W: 20, H: 20}, svgscene.PNG, nil)
		node.Decoded = img
		return node
	}
	broken := svgscene.NewImage(svgpath.Rect{W: 20, H: 20}, svgscene.PNG, []byte("not an image"))

	chunk := mustChunk(t, testTree(newImage(), newImage(), broken), uncompressed())
	// the image and its soft mask
	if n := countObjects(chunk.Graph, isImage); n != 2 {
		t.Errorf("expected 2 image objects, got %d", n)
	}
	if n := len(chunk.Form.Resources.XObject); n != 1 {
		t.Errorf("expected one image resource, got %d", n)
	}
	if chunk.Warnings == nil {
		t.Error("expected a warning for the broken image")
	}
}

func TestFilters(t *testing.T) {
	tree := testTree()
	region := svgpath.Rect{X: -0.1, Y: -0.1, W: 1.2, H: 1.2}
	tree.Filters["offset"] = &svgscene.Filter{ID: "offset", Units: svgscene.ObjectBoundingBox, Region: region, Primitives: []svgscene.FilterPrimitive{
		{Kind: svgscene.Offset{Dx: 5, Dy: 5}},
	}}
	tree.Filters["matrix"] = &svgscene.Filter{ID: "matrix", Units: svgscene.ObjectBoundingBox, Region: region, Primitives: []svgscene.FilterPrimitive{
		{Kind: svgscene.ColorMatrixFilter{Matrix: svgscene.LuminanceToAlphaMatrix}},
	}}
	tree.Filters["blur"] = &svgscene.Filter{ID: "blur", Units: svgscene.ObjectBoundingBox, Region: region, Primitives: []svgscene.FilterPrimitive{
		{Kind: svgscene.GaussianBlur{StdDevX: 2, StdDevY: 2}},
	}}

	for _, test := range []struct {
		filter string
		raster bool
	}{
		{"offset", false},
		{"matrix", false},
		{"blur", true},
	} {
		node := rectNode(svgpath.Rect{X: 10, Y: 10, W: 20, H: 20})
		node.Filter = test.filter
		tree.Root.Children = []svgscene.Node{node}
		chunk := mustChunk(t, tree, uncompressed())
		if got := countObjects(chunk.Graph, isImage) != 0; got != test.raster {
			t.Errorf("filter %s: expected rasterization %v, got %v", test.filter, test.raster, got)
		}
		if !test.raster && !contains(formOperators(t, chunk.Graph), "f") {
			t.Errorf("filter %s: expected a vector fill", test.filter)
		}
	}
}

// the rasterized filter is drawn as one image, whose alpha
// channel is its soft mask, covering the filter region
func TestFilterRaster(t *testing.T) {
	tree := testTree()
	tree.Filters["blur"] = &svgscene.Filter{ID: "blur", Units: svgscene.ObjectBoundingBox, Region: svgpath.Rect{X: -0.1, Y: -0.1, W: 1.2, H: 1.2}, Primitives: []svgscene.FilterPrimitive{
		{Kind: svgscene.GaussianBlur{StdDevX: 2, StdDevY: 2}},
	}}
	node := rectNode(svgpath.Rect{X: 10, Y: 10, W: 20, H: 20})
	node.Filter = "blur"
	tree.Root.Children = []svgscene.Node{node}
	chunk := mustChunk(t, tree, uncompressed())

	if len(chunk.Form.Resources.XObject) != 1 {
		t.Fatalf("expected one image, got %v", chunk.Form.Resources.XObject)
	}
	for _, xo := range chunk.Form.Resources.XObject {
		img, ok := xo.(*model.XObjectImage)
		if !ok || img.SMask == nil {
			t.Fatalf("expected an image with a soft mask, got %T", xo)
		}
	}
	ops := rootOperations(t, chunk)
	var draws int
	for i, op := range ops {
		if _, ok := op.(contentstream.OpXObject); !ok {
			continue
		}
		draws++
		// region [8 8 24 24], y-down
		expected := contentstream.OpConcat{Matrix: model.Matrix{24, 0, 0, -24, 8, 32}}
		if diff := cmp.Diff(expected, ops[i-1], cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("unexpected placement (-want +got)\n%s", diff)
		}
	}
	if draws != 1 {
		t.Errorf("expected one image drawn, got %d", draws)
	}
}

func TestText(t *testing.T) {
	text := func() *svgscene.Text {
		return svgscene.NewText(svgscene.TextRun{
			Font: "regular", Size: 12, Fill: svgscene.NewFill(red),
			Glyphs: []svgscene.Glyph{
				{ID: 43, X: 10, Y: 50, Advance: 8, Text: "H"},
				{ID: 72, X: 18, Y: 50, Advance: 6, Text: "e"},
			},
		})
	}
	fonts := svgscene.MapResolver{"regular": goregular.TTF}
	isFontFile := func(d pdfgraph.Dict) bool { _, ok := d["Length1"]; return ok }

	opts := uncompressed()
	opts.Fonts = fonts
	chunk := mustChunk(t, testTree(text()), opts)
	if !contains(formOperators(t, chunk.Graph), "TJ") {
		t.Error("expected embedded text")
	}
	if n := countObjects(chunk.Graph, isFontFile); n != 1 {
		t.Errorf("expected one font program, got %d", n)
	}

	opts.EmbedText = false
	chunk = mustChunk(t, testTree(text()), opts)
	ops := formOperators(t, chunk.Graph)
	if contains(ops, "TJ") || !contains(ops, "f") {
		t.Errorf("expected text as paths, got %v", ops)
	}
	if n := countObjects(chunk.Graph, isFontFile); n != 0 {
		t.Errorf("unexpected font program")
	}
}

func TestErrors(t *testing.T) {
	missing := rectNode(svgpath.Rect{W: 10, H: 10})
	missing.Mask = "missing"
	_, err := ConvertToChunk(testTree(missing), DefaultOptions())
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected malformed error, got %v", err)
	}

	var deep svgscene.Node = rectNode(svgpath.Rect{W: 10, H: 10})
	for i := 0; i < 20; i++ {
		deep = svgscene.NewGroup(deep)
	}
	opts := DefaultOptions()
	opts.MaxDepth = 10
	_, err = ConvertToChunk(testTree(deep), opts)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected malformed error, got %v", err)
	}

	_, err = ConvertToChunk(&svgscene.Tree{}, DefaultOptions())
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected malformed error, got %v", err)
	}

	failing := DefaultOptions()
	failing.Serialize = func(*pdfgraph.Graph, pdfgraph.Trailer) ([]byte, error) { return nil, errors.New("disk full") }
	_, err = Convert(testTree(), failing)
	if !errors.Is(err, ErrInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestDashArray(t *testing.T) {
	for _, test := range []struct {
		dash, want []float64
	}{
		{nil, nil},
		{[]float64{0, 0}, nil},
		{[]float64{1, -2}, nil},
		{[]float64{2, 1}, []float64{2, 1}},
		{[]float64{1, 2, 3}, []float64{1, 2, 3, 1, 2, 3}},
	} {
		if diff := cmp.Diff(test.want, dashArray(test.dash)); diff != "" {
			t.Errorf("dash %v: (-want +got)\n%s", test.dash, diff)
		}
	}
}

func TestStrokeOptions(t *testing.T) {
	stroke := svgscene.NewStroke(red, 2)
	stroke.Cap = svgscene.RoundCap
	stroke.Join = svgscene.Bevel
	stroke.Dash = []float64{3}
	ap := contentstream.NewAppearance(10, 10)
	strokeOptions(&ap, stroke)
	want := []string{"w", "J", "j", "M", "d"}
	got, err := pdfdraw.Operators(ap.ToXFormObject(false).Stream)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func TestTextBounds(t *testing.T) {
	font, err := sfnt.Parse(goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	var buf sfnt.Buffer
	gid, err := font.GlyphIndex(&buf, 'Å')
	if err != nil || gid == 0 {
		t.Fatal("missing glyph")
	}
	text := svgscene.NewText(svgscene.TextRun{
		Font: "regular", Size: 40, Fill: svgscene.NewFill(red),
		Glyphs: []svgscene.Glyph{{ID: uint16(gid), X: 10, Y: 60, Advance: 27, Text: "Å"}},
	})
	text.Opacity = 0.5
	opts := uncompressed()
	opts.Fonts = svgscene.MapResolver{"regular": goregular.TTF}
	chunk := mustChunk(t, testTree(text), opts)

	gs := groups(chunk.Form)
	if len(gs) != 1 {
		t.Fatalf("expected one group, got %d", len(gs))
	}
	// the ring is above the em box
	if top := gs[0].BBox.Lly; top > 22.3 {
		t.Errorf("the group clips the glyph: %v", gs[0].BBox)
	}
}

func TestAspectRatio(t *testing.T) {
	tree := testTree(rectNode(svgpath.Rect{W: 50, H: 100}))
	tree.ViewBox = svgpath.Rect{W: 50, H: 100}

	scaleX := func(opts Options) float64 {
		ops := rootOperations(t, mustChunk(t, tree, opts))
		return ops[0].(contentstream.OpConcat).Matrix[0]
	}
	opts := uncompressed()
	if got := scaleX(opts); got != 1 {
		t.Errorf("expected uniform scaling, got %g", got)
	}
	opts.AspectRatio = &svgpath.AspectRatio{Align: svgpath.AlignNone}
	if got := scaleX(opts); got != 2 {
		t.Errorf("expected stretched view box, got %g", got)
	}
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := &svgscene.LinearGradient{
		ID: "reflected", X2: 1, Spread: svgscene.ReflectSpread,
		Units:     svgscene.ObjectBoundingBox,
		Transform: svgpath.Identity,
		Stops:     []svgscene.GradStop{{Color: red, Opacity: 1}, {Offset: 1, Opacity: 1}},
	}
	node := svgscene.NewPath(svgpath.Rect{W: 10, H: 10}.Path(), svgscene.NewFill(lg), nil)
	opts := uncompressed()
	opts.Logger = zap.New(core)
	mustChunk(t, testTree(node), opts)
	if n := logs.FilterField(zap.String("gradient", "reflected")).Len(); n != 1 {
		t.Errorf("expected the gradient to be logged once, got %v", logs.All())
	}
}
