package clipmask

import (
	"errors"
	"testing"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func rectClip(id string, r svgpath.Rect, nested string) *svgscene.ClipPath {
	return &svgscene.ClipPath{
		ID:        id,
		Transform: svgpath.Identity,
		Shapes:    []svgscene.ClipShape{{Path: r.Path(), Transform: svgpath.Identity}},
		ClipPath:  nested,
	}
}

func TestNative(t *testing.T) {
	a := rectClip("a", svgpath.Rect{W: 10, H: 10}, "")
	b := rectClip("b", svgpath.Rect{W: 10, H: 10}, "")
	if !Native([]*svgscene.ClipPath{a, b}) {
		t.Error("expected native clip")
	}
	b.Shapes = append(b.Shapes, b.Shapes[0])
	if Native([]*svgscene.ClipPath{a, b}) {
		t.Error("union of shapes is not native")
	}
}

func TestBounds(t *testing.T) {
	chain := []*svgscene.ClipPath{
		rectClip("a", svgpath.Rect{X: 0, Y: 0, W: 50, H: 50}, "b"),
		rectClip("b", svgpath.Rect{X: 25, Y: 25, W: 50, H: 50}, ""),
	}
	r, ok := Bounds(chain, svgpath.Rect{})
	if !ok {
		t.Fatal("unexpected empty clip")
	}
	if diff := cmp.Diff(svgpath.Rect{X: 25, Y: 25, W: 25, H: 25}, r, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}

	chain[1] = rectClip("b", svgpath.Rect{X: 60, Y: 60, W: 5, H: 5}, "")
	if _, ok = Bounds(chain, svgpath.Rect{}); ok {
		t.Error("disjoint clips should hide everything")
	}

	obb := rectClip("obb", svgpath.Rect{W: 0.5, H: 1}, "")
	obb.Units = svgscene.ObjectBoundingBox
	r, _ = Bounds([]*svgscene.ClipPath{obb}, svgpath.Rect{X: 10, Y: 10, W: 20, H: 20})
	if diff := cmp.Diff(svgpath.Rect{X: 10, Y: 10, W: 10, H: 20}, r, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	if _, ok = Bounds([]*svgscene.ClipPath{obb}, svgpath.Rect{W: 20}); ok {
		t.Error("objectBoundingBox clip on empty box should hide everything")
	}
}

func operators(t *testing.T, s model.Stream) []string {
	t.Helper()
	ops, err := pdfdraw.Operators(s)
	if err != nil {
		t.Fatal(err)
	}
	return ops
}

func TestClipNative(t *testing.T) {
	a := rectClip("a", svgpath.Rect{W: 50, H: 50}, "b")
	b := rectClip("b", svgpath.Rect{X: 25, Y: 25, W: 50, H: 50}, "")
	b.Shapes[0].Rule = svgscene.EvenOdd
	ap := contentstream.NewAppearance(100, 100)
	if !ClipNative(&ap, []*svgscene.ClipPath{a, b}, svgpath.Rect{}) {
		t.Fatal("unexpected hidden clip")
	}
	expected := []string{"m", "l", "l", "l", "h", "W", "n", "m", "l", "l", "l", "h", "W*", "n"}
	if diff := cmp.Diff(expected, operators(t, ap.ToXFormObject(false).Stream)); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

func newCompositor(tree *svgscene.Tree, r Renderer) *Compositor {
	return &Compositor{Cache: rescache.New(), Tree: tree, Renderer: r}
}

func TestClipMask(t *testing.T) {
	c := newCompositor(svgscene.NewTree(100, 100), nil)
	union := rectClip("u", svgpath.Rect{W: 10, H: 10}, "")
	union.Shapes = append(union.Shapes, svgscene.ClipShape{
		Path:      svgpath.Rect{X: 20, W: 10, H: 10}.Path(),
		Transform: svgpath.Identity,
	})
	region := svgpath.Rect{W: 100, H: 100}
	gs, ok, err := c.ClipMask([]*svgscene.ClipPath{union}, svgpath.Rect{}, region)
	if err != nil || !ok {
		t.Fatal(err)
	}
	again, _, _ := c.ClipMask([]*svgscene.ClipPath{union}, svgpath.Rect{}, region)
	if again != gs || c.Cache.Len() != 2 {
		t.Fatalf("expected one group and one state, got %d resources", c.Cache.Len())
	}
	if gs.SMask.S != "Luminosity" || gs.SMask.G.CS != model.ColorSpaceGray {
		t.Errorf("unexpected soft mask %v", gs.SMask)
	}
	expected := []string{"q", "g", "m", "l", "l", "l", "h", "f", "m", "l", "l", "l", "h", "f", "Q"}
	if diff := cmp.Diff(expected, operators(t, gs.SMask.G.Stream)); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
}

// a nested chain which is not native is expressed with a mask
// inside the mask
func TestClipMaskNested(t *testing.T) {
	c := newCompositor(svgscene.NewTree(100, 100), nil)
	a := rectClip("a", svgpath.Rect{W: 50, H: 50}, "b")
	b := rectClip("b", svgpath.Rect{X: 25, W: 10, H: 100}, "")
	b.Shapes = append(b.Shapes, svgscene.ClipShape{Path: svgpath.Rect{X: 40, W: 10, H: 100}.Path(), Transform: svgpath.Identity})
	gs, ok, err := c.ClipMask([]*svgscene.ClipPath{a, b}, svgpath.Rect{}, svgpath.Rect{W: 100, H: 100})
	if err != nil || !ok {
		t.Fatal(err)
	}
	outer := gs.SMask.G
	expected := []string{"q", "gs", "g", "m", "l", "l", "l", "h", "f", "Q"}
	if diff := cmp.Diff(expected, operators(t, outer.Stream)); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	inner := outer.Resources.ExtGState["GS0"]
	if inner == nil || inner.SMask.G == outer {
		t.Fatalf("expected a nested soft mask, got %v", inner)
	}
	if c.Cache.Len() != 4 {
		t.Errorf("expected two groups and two states, got %d", c.Cache.Len())
	}
}

type fillRenderer struct{ calls int }

func (r *fillRenderer) Render(ap *contentstream.Appearance, root *svgscene.Group, m svgpath.Matrix2D) error {
	r.calls++
	ap.Ops(contentstream.OpConcat{Matrix: pdfdraw.Matrix(m)}, contentstream.OpRectangle{W: 1, H: 1}, contentstream.OpFill{})
	return nil
}

func TestMask(t *testing.T) {
	tree := svgscene.NewTree(100, 100)
	inner := &svgscene.Mask{ID: "inner", Kind: svgscene.Alpha, Rect: svgpath.Rect{W: 100, H: 100}, Root: svgscene.NewGroup()}
	outer := &svgscene.Mask{
		ID:           "outer",
		Units:        svgscene.ObjectBoundingBox,
		ContentUnits: svgscene.ObjectBoundingBox,
		Rect:         svgpath.Rect{X: -0.1, Y: -0.1, W: 1.2, H: 1.2},
		Root:         svgscene.NewGroup(),
		Mask:         "inner",
	}
	tree.Masks["inner"], tree.Masks["outer"] = inner, outer
	r := &fillRenderer{}
	c := newCompositor(tree, r)

	gs, ok, err := c.Mask(outer, svgpath.Rect{X: 10, Y: 10, W: 10, H: 10})
	if err != nil || !ok {
		t.Fatal(err)
	}
	if r.calls != 2 {
		t.Errorf("expected both masks to be rendered, got %d", r.calls)
	}
	if gs.SMask.S != "Luminosity" {
		t.Errorf("unexpected mask type %v", gs.SMask.S)
	}
	group := gs.SMask.G
	if diff := cmp.Diff(model.Rectangle{Llx: 9, Lly: 9, Urx: 21, Ury: 21}, group.BBox, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("unexpected mask region (-want +got)\n%s", diff)
	}
	expected := []string{"q", "re", "W", "n", "gs", "q", "cm", "Do", "Q", "Q"}
	if diff := cmp.Diff(expected, operators(t, group.Stream)); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	if nested := group.Resources.ExtGState["GS0"]; nested.SMask.S != "Alpha" {
		t.Errorf("unexpected nested mask %v", nested.SMask)
	}

	if _, ok, _ = c.Mask(outer, svgpath.Rect{W: 10}); ok {
		t.Error("objectBoundingBox mask on empty box should hide the element")
	}
}

func TestMaskCycle(t *testing.T) {
	tree := svgscene.NewTree(100, 100)
	tree.Masks["a"] = &svgscene.Mask{ID: "a", Rect: svgpath.Rect{W: 1, H: 1}, Mask: "b"}
	tree.Masks["b"] = &svgscene.Mask{ID: "b", Rect: svgpath.Rect{W: 1, H: 1}, Mask: "a"}
	c := newCompositor(tree, &fillRenderer{})
	_, _, err := c.Mask(tree.Masks["a"], svgpath.Rect{W: 1, H: 1})
	var ref *svgscene.ReferenceError
	if !errors.As(err, &ref) || !ref.Cycle {
		t.Errorf("expected cycle error, got %v", err)
	}
}
