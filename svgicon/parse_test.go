package svgicon

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/image/font/gofont/goregular"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func parseIcon(t *testing.T, src string, opts Options) *svgscene.Tree {
	t.Helper()
	icon, err := ReadIconStream(strings.NewReader(src), opts)
	if err != nil {
		t.Fatal(err)
	}
	return icon.Tree
}

func parseDefault(t *testing.T, src string) *svgscene.Tree {
	return parseIcon(t, src, DefaultOptions())
}

func TestParseColor(t *testing.T) {
	red := svgscene.NewPlainColor(255, 0, 0)
	for _, test := range []struct {
		input string
		want  svgscene.PlainColor
	}{
		{"#f00", red},
		{"#FF0000", red},
		{"#ff0000cc", red},
		{"rgb(255, 0, 0)", red},
		{"rgb(100%,0%,0%)", red},
		{"rgba(255,0,0,0.5)", red},
		{"red", red},
		{"teal", svgscene.NewPlainColor(0, 128, 128)},
	} {
		got, err := parseSVGColor(test.input)
		if err != nil {
			t.Fatal(err)
		}
		if got != test.want {
			t.Errorf("%s: expected %v, got %v", test.input, test.want, got)
		}
	}

	for _, invalid := range []string{"#12", "rgb(1,2)", "notacolor", "#gggggg"} {
		if _, err := parseSVGColor(invalid); err == nil {
			t.Errorf("expected error for %q", invalid)
		}
	}
}

func TestParseTransform(t *testing.T) {
	for _, test := range []struct {
		input string
		want  svgpath.Matrix2D
	}{
		{"translate(10)", svgpath.NewTranslation(10, 0)},
		{"translate(10 20) scale(2)", svgpath.Matrix2D{A: 2, D: 2, E: 10, F: 20}},
		{"scale(2, 3)", svgpath.NewScale(2, 3)},
		{"rotate(90)", svgpath.Matrix2D{A: 0, B: 1, C: -1, D: 0}},
		{"rotate(90, 10, 10)", svgpath.Matrix2D{A: 0, B: 1, C: -1, D: 0, E: 20, F: 0}},
		{"matrix(1 2 3 4 5 6)", svgpath.Matrix2D{A: 1, B: 2, C: 3, D: 4, E: 5, F: 6}},
		{"skewX(45)", svgpath.Matrix2D{A: 1, C: 1, D: 1}},
	} {
		got, err := parseTransform(test.input)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(test.want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("%s: (-want +got)\n%s", test.input, diff)
		}
	}

	for _, invalid := range []string{"translate(1 2 3)", "rotate()", "foo(1)", "scale(a)"} {
		if _, err := parseTransform(invalid); err == nil {
			t.Errorf("expected error for %q", invalid)
		}
	}
}

func TestParseLength(t *testing.T) {
	c := newCursor(&element{Name: "svg", Attrs: map[string]string{}}, DefaultOptions())
	c.viewport = svgpath.Rect{W: 200, H: 100}
	st := defaultStyle
	for _, test := range []struct {
		input string
		dir   direction
		want  float64
	}{
		{"10", horizontal, 10},
		{"10px", horizontal, 10},
		{"1in", horizontal, 96},
		{"72pt", vertical, 96},
		{"2.54cm", vertical, 96},
		{"2em", horizontal, 32},
		{"50%", horizontal, 100},
		{"50%", vertical, 50},
		{"100%", diagonal, math.Sqrt(200*200+100*100) / math.Sqrt2},
	} {
		got, err := c.parseLength(test.input, test.dir, &st)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(got-test.want) > 1e-9 {
			t.Errorf("%s: expected %g, got %g", test.input, test.want, got)
		}
	}
}

func TestRootViewport(t *testing.T) {
	tree := parseDefault(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 100" preserveAspectRatio="xMinYMax slice">
		<rect width="50%" height="50%"/>
	</svg>`)
	if tree.Width != 200 || tree.Height != 100 {
		t.Errorf("unexpected size %g x %g", tree.Width, tree.Height)
	}
	if want := (svgpath.AspectRatio{Align: svgpath.AlignXMinYMax, Slice: true}); tree.AspectRatio != want {
		t.Errorf("unexpected aspect ratio %v", tree.AspectRatio)
	}
	rect := tree.Root.Children[0].(*svgscene.Path)
	if diff := cmp.Diff(svgpath.Rect{W: 100, H: 50}, rect.Path.Bounds(), approx); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}

	tree = parseDefault(t, `<svg width="1in" height="2in"></svg>`)
	if tree.Width != 96 || tree.Height != 192 {
		t.Errorf("unexpected size %g x %g", tree.Width, tree.Height)
	}
}

func TestShapes(t *testing.T) {
	tree := parseDefault(t, `<svg width="100" height="100">
		<rect x="10" y="20" width="30" height="40" rx="5"/>
		<circle cx="50" cy="50" r="10"/>
		<ellipse cx="50" cy="50" rx="10" ry="5"/>
		<line x1="0" y1="0" x2="10" y2="10" stroke="black"/>
		<polyline points="0,0 10,0 10,10 5"/>
		<polygon points="0,0 10,0 10,10"/>
		<path d="M 0 0 L 20 0 L 20 30 Z"/>
		<rect width="0" height="10"/>
		<circle r="-1"/>
	</svg>`)
	want := []svgpath.Rect{
		{X: 10, Y: 20, W: 30, H: 40},
		{X: 40, Y: 40, W: 20, H: 20},
		{X: 40, Y: 45, W: 20, H: 10},
		{W: 10, H: 10},
		{W: 10, H: 10},
		{W: 10, H: 10},
		{W: 20, H: 30},
	}
	if len(tree.Root.Children) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(tree.Root.Children))
	}
	for i, n := range tree.Root.Children {
		got := n.(*svgscene.Path).Path.Bounds()
		if diff := cmp.Diff(want[i], got, approx); diff != "" {
			t.Errorf("shape %d: (-want +got)\n%s", i, diff)
		}
	}
	if line := tree.Root.Children[3].(*svgscene.Path); line.Fill == nil || line.Stroke == nil {
		t.Error("line should be filled (with no effect) and stroked")
	}
}

func TestStyleInheritance(t *testing.T) {
	tree := parseDefault(t, `<svg width="100" height="100">
		<g fill="red" stroke="blue" stroke-width="2" fill-rule="evenodd" color="green">
			<rect width="10" height="10" style="fill: currentColor; stroke-opacity: 0.5 !important"/>
			<rect width="10" height="10" fill-opacity="50%" stroke-linejoin="round" stroke-dasharray="1 2"/>
			<rect width="10" height="10" fill="none" stroke="none"/>
			<rect width="10" height="10" visibility="hidden"/>
			<rect width="10" height="10" display="none"/>
		</g>
	</svg>`)
	g := tree.Root.Children[0].(*svgscene.Group)
	if len(g.Children) != 2 {
		t.Fatalf("expected 2 visible rects, got %d", len(g.Children))
	}
	first, second := g.Children[0].(*svgscene.Path), g.Children[1].(*svgscene.Path)

	wantFill := &svgscene.Fill{Paint: svgscene.NewPlainColor(0, 128, 0), Opacity: 1, Rule: svgscene.EvenOdd}
	if diff := cmp.Diff(wantFill, first.Fill); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	wantStroke := &svgscene.Stroke{Paint: svgscene.NewPlainColor(0, 0, 255), Opacity: 0.5, Width: 2, MiterLimit: 4}
	if diff := cmp.Diff(wantStroke, first.Stroke); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}

	if second.Fill.Opacity != 0.5 || second.Fill.Paint != svgscene.Paint(svgscene.NewPlainColor(255, 0, 0)) {
		t.Errorf("unexpected fill %v", second.Fill)
	}
	if second.Stroke.Join != svgscene.Round || !cmp.Equal(second.Stroke.Dash, []float64{1, 2}) {
		t.Errorf("unexpected stroke %v", second.Stroke)
	}
}

func TestCommonAttributes(t *testing.T) {
	tree := parseDefault(t, `<svg width="100" height="100">
		<g id="grp" transform="translate(5 5)" opacity="0.5" mix-blend-mode="multiply" isolation="isolate">
			<rect width="10" height="10"/>
		</g>
		<rect width="10" height="10" mask="url(#missing)"/>
		<rect width="10" height="10" opacity="2"/>
	</svg>`)
	if len(tree.Root.Children) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(tree.Root.Children))
	}
	g := tree.Root.Children[0].(*svgscene.Group)
	if g.ID != "grp" || g.Transform != svgpath.NewTranslation(5, 5) || g.Opacity != 0.5 ||
		g.Blend != svgscene.Multiply || !g.Isolate {
		t.Errorf("unexpected group attributes %+v", g.Common)
	}
	if op := tree.Root.Children[1].Attrs().Opacity; op != 1 {
		t.Errorf("expected clamped opacity, got %g", op)
	}
}

func TestGradients(t *testing.T) {
	tree := parseDefault(t, `<svg xmlns:xlink="http://www.w3.org/1999/xlink" width="100" height="100">
		<defs>
			<linearGradient id="base" spreadMethod="reflect">
				<stop offset="0" stop-color="red"/>
				<stop offset="150%" stop-color="blue" stop-opacity="0.5"/>
			</linearGradient>
			<linearGradient id="lin" xlink:href="#base" x2="0" y2="1"/>
			<radialGradient id="rad" gradientUnits="userSpaceOnUse" cx="50" cy="50" r="50%" fx="40">
				<stop offset="0.5" stop-color="red"/>
				<stop offset="0.2" stop-color="blue"/>
			</radialGradient>
			<linearGradient id="empty"/>
		</defs>
		<rect width="10" height="10" fill="url(#lin)"/>
		<rect width="10" height="10" fill="url(#rad)"/>
		<rect width="10" height="10" fill="url(#empty)"/>
		<rect width="10" height="10" fill="url(#unknown) green"/>
	</svg>`)
	if len(tree.Root.Children) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(tree.Root.Children))
	}
	for i, want := range []svgscene.Paint{
		svgscene.PaintRef("lin"), svgscene.PaintRef("rad"), svgscene.NewPlainColor(0, 128, 0),
	} {
		if got := tree.Root.Children[i].(*svgscene.Path).Fill.Paint; got != want {
			t.Errorf("expected paint %v, got %v", want, got)
		}
	}

	wantLin := &svgscene.LinearGradient{
		ID: "lin", X2: 0, Y2: 1,
		Units: svgscene.ObjectBoundingBox, Transform: svgpath.Identity, Spread: svgscene.ReflectSpread,
		Stops: []svgscene.GradStop{
			{Offset: 0, Color: svgscene.NewPlainColor(255, 0, 0), Opacity: 1},
			{Offset: 1, Color: svgscene.NewPlainColor(0, 0, 255), Opacity: 0.5},
		},
	}
	if diff := cmp.Diff(wantLin, tree.Paints["lin"], approx); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	wantRad := &svgscene.RadialGradient{
		ID: "rad", Cx: 50, Cy: 50, R: math.Sqrt(100*100+100*100) / math.Sqrt2 / 2, Fx: 40, Fy: 50,
		Units: svgscene.UserSpaceOnUse, Transform: svgpath.Identity,
		Stops: []svgscene.GradStop{
			{Offset: 0.5, Color: svgscene.NewPlainColor(255, 0, 0), Opacity: 1},
			{Offset: 0.5, Color: svgscene.NewPlainColor(0, 0, 255), Opacity: 1},
		},
	}
	if diff := cmp.Diff(wantRad, tree.Paints["rad"], approx); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	if _, ok := tree.Paints["base"]; ok {
		t.Error("unreferenced gradients should not be registered")
	}
}

func TestPattern(t *testing.T) {
	tree := parseDefault(t, `<svg width="100" height="100">
		<pattern id="p" width="10" height="10" patternUnits="userSpaceOnUse" viewBox="0 0 1 1">
			<rect width="1" height="1" fill="url(#p)"/>
		</pattern>
		<rect width="100" height="100" fill="url(#p)"/>
	</svg>`)
	p, ok := tree.Paints["p"].(*svgscene.Pattern)
	if !ok {
		t.Fatal("missing pattern")
	}
	if p.Rect != (svgpath.Rect{W: 10, H: 10}) || p.ViewBox == nil || *p.ViewBox != (svgpath.Rect{W: 1, H: 1}) {
		t.Errorf("unexpected pattern geometry %v %v", p.Rect, p.ViewBox)
	}
	// the cycle is kept, and reported by the converters
	inner := p.Root.Children[0].(*svgscene.Path)
	if inner.Fill.Paint != svgscene.Paint(svgscene.PaintRef("p")) {
		t.Errorf("unexpected inner paint %v", inner.Fill.Paint)
	}
}

func TestClipAndMask(t *testing.T) {
	tree := parseDefault(t, `<svg width="100" height="100">
		<clipPath id="c" clipPathUnits="objectBoundingBox" clip-path="url(#c2)">
			<rect width="0.5" height="1" clip-rule="evenodd"/>
			<use href="#shape" x="2"/>
			<circle r="0"/>
		</clipPath>
		<clipPath id="c2"><rect width="10" height="10"/></clipPath>
		<mask id="m" mask-type="alpha"><rect width="10" height="10" fill="white"/></mask>
		<defs><rect id="shape" width="3" height="3" transform="scale(2)"/></defs>
		<rect width="10" height="10" clip-path="url(#c)" mask="url(#m)"/>
	</svg>`)
	rect := tree.Root.Children[0].(*svgscene.Path)
	if rect.ClipPath != "c" || rect.Mask != "m" {
		t.Fatalf("unexpected references %q %q", rect.ClipPath, rect.Mask)
	}
	clip := tree.ClipPaths["c"]
	if clip.Units != svgscene.ObjectBoundingBox || clip.ClipPath != "c2" || len(clip.Shapes) != 2 {
		t.Fatalf("unexpected clip path %+v", clip)
	}
	if clip.Shapes[0].Rule != svgscene.EvenOdd {
		t.Error("expected even-odd clip rule")
	}
	if want := svgpath.NewTranslation(2, 0).Scale(2, 2); clip.Shapes[1].Transform != want {
		t.Errorf("expected %v, got %v", want, clip.Shapes[1].Transform)
	}

	mask := tree.Masks["m"]
	want := svgpath.Rect{X: -0.1, Y: -0.1, W: 1.2, H: 1.2}
	if mask.Kind != svgscene.Alpha || mask.Units != svgscene.ObjectBoundingBox || len(mask.Root.Children) != 1 {
		t.Errorf("unexpected mask %+v", mask)
	}
	if diff := cmp.Diff(want, mask.Rect, approx); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func TestFilter(t *testing.T) {
	tree := parseDefault(t, `<svg width="100" height="100">
		<filter id="f" color="red">
			<feGaussianBlur stdDeviation="2 3" result="blur"/>
			<feOffset in="blur" dx="4"/>
			<feFlood flood-color="currentColor" flood-opacity="0.5" result="flood"/>
			<feComposite in="flood" in2="SourceAlpha" operator="in"/>
			<feColorMatrix type="saturate" values="0"/>
			<feMerge><feMergeNode in="blur"/><feMergeNode in="unknown"/></feMerge>
			<feTurbulence/>
		</filter>
		<rect width="10" height="10" filter="url(#f)"/>
	</svg>`)
	f := tree.Filters["f"]
	if f.Units != svgscene.ObjectBoundingBox || f.PrimitiveUnits != svgscene.UserSpaceOnUse {
		t.Errorf("unexpected units %v %v", f.Units, f.PrimitiveUnits)
	}
	if diff := cmp.Diff(svgpath.Rect{X: -0.1, Y: -0.1, W: 1.2, H: 1.2}, f.Region, approx); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	previous := svgscene.Input{Kind: svgscene.PreviousResult}
	want := []svgscene.FilterPrimitive{
		{Result: "blur", Kind: svgscene.GaussianBlur{In: previous, StdDevX: 2, StdDevY: 3}},
		{Kind: svgscene.Offset{In: svgscene.Named("blur"), Dx: 4}},
		{Result: "flood", Kind: svgscene.Flood{Color: svgscene.NewPlainColor(255, 0, 0), Opacity: 0.5}},
		{Kind: svgscene.Composite{In: svgscene.Named("flood"), In2: svgscene.Input{Kind: svgscene.SourceAlpha}, Operator: svgscene.CompositeIn}},
		{Kind: svgscene.ColorMatrixFilter{In: previous, Matrix: svgscene.SaturateMatrix(0)}},
		{Kind: svgscene.Merge{In: []svgscene.Input{svgscene.Named("blur"), previous}}},
		{Kind: svgscene.Unsupported{Name: "feTurbulence", In: previous}},
	}
	if diff := cmp.Diff(want, f.Primitives, approx); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func TestUseAndNestedSVG(t *testing.T) {
	tree := parseDefault(t, `<svg width="100" height="100">
		<defs>
			<rect id="r" width="10" height="10"/>
			<symbol id="s" viewBox="0 0 10 10"><rect id="self" width="10" height="10"/></symbol>
			<g id="loop"><use href="#loop"/></g>
		</defs>
		<use href="#r" x="5" y="6" transform="scale(2)"/>
		<use href="#s" width="20" height="20"/>
		<use href="#loop"/>
		<svg x="10" y="10" width="20" height="20" viewBox="0 0 10 10"><rect width="10" height="10"/></svg>
	</svg>`)
	if len(tree.Root.Children) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(tree.Root.Children))
	}

	use := tree.Root.Children[0].(*svgscene.Group)
	if want := svgpath.NewScale(2, 2).Translate(5, 6); use.Transform != want {
		t.Errorf("expected %v, got %v", want, use.Transform)
	}
	if _, ok := use.Children[0].(*svgscene.Path); !ok {
		t.Errorf("unexpected use content %T", use.Children[0])
	}

	symbol := tree.Root.Children[1].(*svgscene.Group).Children[0].(*svgscene.Group)
	if symbol.ClipPath == "" {
		t.Error("symbol content should be clipped")
	}
	if content := symbol.Children[0].(*svgscene.Group); content.Transform != svgpath.NewScale(2, 2) {
		t.Errorf("unexpected symbol transform %v", content.Transform)
	}

	nested := tree.Root.Children[3].(*svgscene.Group)
	clip := tree.ClipPaths[nested.ClipPath]
	if clip == nil || clip.Shapes[0].Path.Bounds() != (svgpath.Rect{X: 10, Y: 10, W: 20, H: 20}) {
		t.Errorf("unexpected viewport clip %v", clip)
	}
	if content := nested.Children[0].(*svgscene.Group); content.Transform != (svgpath.Matrix2D{A: 2, D: 2, E: 10, F: 10}) {
		t.Errorf("unexpected nested svg transform %v", content.Transform)
	}
}

func TestImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 2))); err != nil {
		t.Fatal(err)
	}
	data := base64.StdEncoding.EncodeToString(buf.Bytes())
	tree := parseDefault(t, `<svg width="100" height="100">
		<image width="10" href="data:image/png;base64,`+data+`"/>
		<image width="10" height="10" href="data:image/png;base64,`+data+`" preserveAspectRatio="none"/>
		<image width="10" height="10" href="image.png"/>
	</svg>`)
	if len(tree.Root.Children) != 2 {
		t.Fatalf("expected 2 images, got %d", len(tree.Root.Children))
	}
	for i, want := range []svgpath.Rect{{W: 10, H: 20}, {W: 10, H: 10}} {
		img := tree.Root.Children[i].(*svgscene.Image)
		if img.Format != svgscene.PNG {
			t.Errorf("unexpected format %v", img.Format)
		}
		if diff := cmp.Diff(want, img.Rect, approx); diff != "" {
			t.Errorf("(-want +got)\n%s", diff)
		}
	}
}

func TestDataURL(t *testing.T) {
	mediaType, data, err := parseDataURL("data:text/plain;charset=utf-8,hello%20world")
	if err != nil {
		t.Fatal(err)
	}
	if mediaType != "text/plain" || string(data) != "hello world" {
		t.Errorf("unexpected data URL content %q %q", mediaType, data)
	}
	if _, data, _ = parseDataURL("data:;base64,aGVs\nbG8="); string(data) != "hello" {
		t.Errorf("unexpected data %q", data)
	}
	if _, _, err = parseDataURL("file.png"); err != errExternalImage {
		t.Errorf("unexpected error %v", err)
	}
}

func TestCollapseSpaces(t *testing.T) {
	spans := []textSpan{{text: "  Hello\n"}, {text: "   world  "}, {text: "  "}}
	collapseSpaces(spans)
	var got []string
	for _, s := range spans {
		got = append(got, s.text)
	}
	if diff := cmp.Diff([]string{"Hello", " world", ""}, got); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func textOptions() Options {
	opts := DefaultOptions()
	opts.Fonts = svgscene.MapResolver{"go": goregular.TTF}
	opts.DefaultFont = "go"
	return opts
}

func TestText(t *testing.T) {
	tree := parseIcon(t, `<svg width="200" height="100">
		<text x="10" y="50" font-family="Arial" font-size="20">He<tspan fill="red">llo</tspan></text>
		<text x="100" y="20" text-anchor="end">Hello</text>
		<clipPath id="c"><text x="0" y="20">A</text></clipPath>
		<rect width="10" height="10" clip-path="url(#c)"/>
	</svg>`, textOptions())

	text := tree.Root.Children[0].(*svgscene.Text)
	if len(text.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(text.Runs))
	}
	var content string
	pen := 10.
	for _, run := range text.Runs {
		if run.Font != "go" || run.Size != 20 {
			t.Errorf("unexpected run font %s %g", run.Font, run.Size)
		}
		for _, g := range run.Glyphs {
			if g.Y != 50 || math.Abs(g.X-pen) > 1e-6 {
				t.Errorf("unexpected glyph position (%g, %g), expected (%g, 50)", g.X, g.Y, pen)
			}
			pen += g.Advance
			content += g.Text
		}
	}
	if content != "Hello" {
		t.Errorf("unexpected text %q", content)
	}
	if text.Runs[1].Fill.Paint != svgscene.Paint(svgscene.NewPlainColor(255, 0, 0)) {
		t.Errorf("unexpected tspan fill %v", text.Runs[1].Fill)
	}

	glyphs := tree.Root.Children[1].(*svgscene.Text).Runs[0].Glyphs
	last := glyphs[len(glyphs)-1]
	if end := last.X + last.Advance; math.Abs(end-100) > 1e-6 {
		t.Errorf("anchored text should end at 100, got %g", end)
	}

	clip := tree.ClipPaths["c"]
	if len(clip.Shapes) != 1 || clip.Shapes[0].Path.IsEmpty() {
		t.Fatalf("expected text outline in clip path")
	}
	if bounds := clip.Shapes[0].Path.Bounds(); bounds.Max().Y > 20.5 || bounds.Y > 10 {
		t.Errorf("unexpected outline bounds %v", bounds)
	}
}

func TestTextWithoutFonts(t *testing.T) {
	tree := parseDefault(t, `<svg width="200" height="100"><text x="10" y="50">Hello</text></svg>`)
	if len(tree.Root.Children) != 0 {
		t.Errorf("text with no font should be skipped")
	}
}

func TestErrorModes(t *testing.T) {
	const src = `<svg width="10" height="10"><foo/><rect width="1" height="1" fill="notacolor"/></svg>`
	opts := DefaultOptions()
	opts.ErrorMode = StrictErrorMode
	if _, err := ReadIconStream(strings.NewReader(src), opts); err == nil {
		t.Error("expected error in strict mode")
	}
	for _, mode := range []ErrorMode{IgnoreErrorMode, WarnErrorMode} {
		opts.ErrorMode = mode
		icon, err := ReadIconStream(strings.NewReader(src), opts)
		if err != nil {
			t.Fatal(err)
		}
		// the invalid fill is ignored, and the default is used
		rect := icon.Tree.Root.Children[0].(*svgscene.Path)
		if rect.Fill.Paint != svgscene.Paint(svgscene.Black) {
			t.Errorf("unexpected fill %v", rect.Fill.Paint)
		}
	}

	for _, invalid := range []string{"", "<g></g>", "<svg><rect></svg>"} {
		if _, err := ReadIconStream(strings.NewReader(invalid), DefaultOptions()); err == nil {
			t.Errorf("expected error for %q", invalid)
		}
	}
}

func TestMetadata(t *testing.T) {
	icon, err := ReadIconStream(strings.NewReader(`<svg><title>A title</title><desc>Some <b>text</b></desc></svg>`), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A title"}, icon.Titles); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Some text"}, icon.Descriptions); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}
