package svgscene

import (
	"errors"
	"testing"

	"github.com/benoitkugler/svg2pdf/svgpath"
)

func rectPath(x, y, w, h float64) *Path {
	return NewPath(svgpath.Rect{X: x, Y: y, W: w, H: h}.Path(), NewFill(Black), nil)
}

func TestBounds(t *testing.T) {
	inner := rectPath(0, 0, 10, 10)
	inner.Transform = svgpath.NewTranslation(20, 30).Scale(2, 2)
	g := NewGroup(rectPath(0, 0, 5, 5), inner)
	g.Transform = svgpath.NewScale(10, 10) // ignored

	got, ok := Bounds(g)
	if !ok {
		t.Fatal("expected non empty bounds")
	}
	if want := (svgpath.Rect{X: 0, Y: 0, W: 40, H: 50}); got != want {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, ok := Bounds(NewGroup()); ok {
		t.Error("expected empty bounds for empty group")
	}

	hidden := rectPath(100, 100, 1, 1)
	hidden.Transform = svgpath.Matrix2D{}
	got, _ = Bounds(NewGroup(rectPath(0, 0, 1, 1), hidden))
	if want := (svgpath.Rect{W: 1, H: 1}); got != want {
		t.Errorf("singular children should be ignored: got %v", got)
	}
}

func TestReferences(t *testing.T) {
	tree := NewTree(10, 10)
	tree.ClipPaths["a"] = &ClipPath{ID: "a", ClipPath: "b"}
	tree.ClipPaths["b"] = &ClipPath{ID: "b"}
	tree.ClipPaths["loop"] = &ClipPath{ID: "loop", ClipPath: "loop"}

	chain, err := tree.ClipChain("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[1].ID != "b" {
		t.Errorf("unexpected chain %v", chain)
	}

	var refErr *ReferenceError
	if _, err = tree.ClipChain("loop"); !errors.As(err, &refErr) || !refErr.Cycle {
		t.Errorf("expected cycle error, got %v", err)
	}
	if _, err = tree.MaskByID("missing"); !errors.As(err, &refErr) || refErr.Kind != "mask" {
		t.Errorf("expected reference error, got %v", err)
	}
	if _, err = tree.ResolvePaint(PaintRef("grad")); err == nil {
		t.Error("expected error for unknown paint")
	}
	lg := &LinearGradient{ID: "grad"}
	tree.Paints["grad"] = lg
	if p, err := tree.ResolvePaint(PaintRef("grad")); err != nil || p != Paint(lg) {
		t.Errorf("unexpected resolution %v %v", p, err)
	}
	if p, _ := tree.ResolvePaint(Black); p != Paint(Black) {
		t.Error("plain colors resolve to themselves")
	}
}

func TestColorMatrix(t *testing.T) {
	r, g, b, a := IdentityMatrix.Apply(0.2, 0.4, 0.6, 0.8)
	if r != 0.2 || g != 0.4 || b != 0.6 || a != 0.8 {
		t.Errorf("identity changed the color: %v %v %v %v", r, g, b, a)
	}
	if IdentityMatrix.Mult(SaturateMatrix(0.3)) != SaturateMatrix(0.3) {
		t.Error("identity is not neutral")
	}
	// luminanceToAlpha of white is opaque black
	r, g, b, a = LuminanceToAlphaMatrix.Apply(1, 1, 1, 0.5)
	if r != 0 || g != 0 || b != 0 || a < 0.99 {
		t.Errorf("unexpected luminance to alpha %v %v %v %v", r, g, b, a)
	}
	// the offset column is applied once
	shift := IdentityMatrix
	shift[4] = 0.5
	if got := shift.Mult(shift); got[4] != 1 {
		t.Errorf("expected cumulated offset, got %v", got[4])
	}
}
