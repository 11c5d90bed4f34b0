package svgpath

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestParsePath(t *testing.T) {
	for _, test := range []struct {
		d        string
		expected Path
	}{
		{"M10 20 L 30,40", Path{MoveTo{10, 20}, LineTo{30, 40}}},
		{"m10 20 l5 5 h10 v-5 z", Path{MoveTo{10, 20}, LineTo{15, 25}, LineTo{25, 25}, LineTo{25, 20}, Close{}}},
		{"M0 0 10 10 20 0", Path{MoveTo{0, 0}, LineTo{10, 10}, LineTo{20, 0}}},
		{"M-1-2.5.5.5", Path{MoveTo{-1, -2.5}, LineTo{0.5, 0.5}}},
		{"M1e1 2E-1", Path{MoveTo{10, 0.2}}},
		{"M0 0C1 1 2 2 3 3S5 5 6 6", Path{
			MoveTo{0, 0},
			CubicTo{{1, 1}, {2, 2}, {3, 3}},
			CubicTo{{4, 4}, {5, 5}, {6, 6}},
		}},
		{"M0 0Q1 1 2 0T4 0", Path{
			MoveTo{0, 0},
			QuadTo{{1, 1}, {2, 0}},
			QuadTo{{3, -1}, {4, 0}},
		}},
		{"M0 0 L1 0 Z L 2 2", Path{MoveTo{0, 0}, LineTo{1, 0}, Close{}, MoveTo{0, 0}, LineTo{2, 2}}},
	} {
		got, err := ParsePath(test.d)
		if err != nil {
			t.Fatalf("parsing %q: %s", test.d, err)
		}
		if diff := cmp.Diff(test.expected, got); diff != "" {
			t.Errorf("parsing %q: (-want +got)\n%s", test.d, diff)
		}
	}
}

func TestParsePathErrors(t *testing.T) {
	for _, d := range []string{
		"L 10 10",
		"M 10 10 L 5",
		"M 0 0 X 3",
		"M 0 0 A 1 1 0 2 0 3 3",
	} {
		if _, err := ParsePath(d); err == nil {
			t.Errorf("expected error for %q", d)
		}
	}

	// the valid prefix is kept
	p, err := ParsePath("M 0 0 L 10 10 L 5")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(p) != 2 {
		t.Fatalf("expected the valid prefix, got %s", p)
	}
}

func TestArcFlags(t *testing.T) {
	// compact flags, as emitted by minifiers
	p, err := ParsePath("M0 0a5 5 0 1010 0")
	if err != nil {
		t.Fatal(err)
	}
	end, ok := p[len(p)-1].(CubicTo)
	if !ok {
		t.Fatalf("expected cubic segments, got %s", p)
	}
	if end[2] != (Point{10, 0}) {
		t.Fatalf("unexpected end point %v", end[2])
	}
	bounds := p.Bounds()
	// a half circle of radius 5, either up or down
	if math.Abs(bounds.W-10) > 1e-3 || math.Abs(bounds.H-5) > 1e-2 {
		t.Fatalf("unexpected arc bounds %v", bounds)
	}
}

func TestBounds(t *testing.T) {
	var p Path
	p.AddEllipse(50, 40, 20, 10)
	got := p.Bounds()
	want := Rect{30, 30, 40, 20}
	approx := cmpopts.EquateApprox(0, 1e-9)
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("ellipse bounds (-want +got)\n%s", diff)
	}

	// control points far outside the curve must not count
	p = Path{MoveTo{0, 0}, CubicTo{{0, 100}, {10, 100}, {10, 0}}}
	got = p.Bounds()
	if got.H != 75 {
		t.Errorf("expected height 75, got %v", got)
	}

	rotated := Path{MoveTo{0, 0}, LineTo{10, 0}}.BoundsIn(Identity.Rotate(math.Pi / 2))
	if diff := cmp.Diff(Rect{0, 0, 0, 10}, rotated, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("rotated bounds (-want +got)\n%s", diff)
	}
}

func TestRect(t *testing.T) {
	a, b := Rect{0, 0, 60, 60}, Rect{40, 20, 60, 60}
	if got := a.Intersect(b); got != (Rect{40, 20, 20, 40}) {
		t.Errorf("unexpected intersection %v", got)
	}
	if got := a.Union(b); got != (Rect{0, 0, 100, 80}) {
		t.Errorf("unexpected union %v", got)
	}
	if !a.Intersect(Rect{100, 100, 1, 1}).IsEmpty() {
		t.Error("expected empty intersection")
	}
	if got := a.Transform(NewTranslation(1, 2).Scale(2, 0.5)); got != (Rect{1, 2, 120, 30}) {
		t.Errorf("unexpected transformed rect %v", got)
	}
}

func TestMatrix(t *testing.T) {
	m := Identity.Translate(10, 20).Rotate(0.3).Scale(2, 3).SkewX(0.1)
	got := m.Mult(m.Invert())
	if diff := cmp.Diff(Identity, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("m * m^-1 (-want +got)\n%s", diff)
	}
	if !(Matrix2D{1, 2, 2, 4, 0, 0}).IsSingular() {
		t.Error("expected singular matrix")
	}
	x, y := NewTranslation(5, 5).Scale(2, 2).Transform(1, 1)
	if x != 7 || y != 7 {
		t.Errorf("unexpected transform (%g, %g)", x, y)
	}
}

func TestViewBoxTransform(t *testing.T) {
	vb := Rect{0, 0, 50, 100}
	m := ViewBoxTransform(vb, AspectRatio{}, 200, 200)
	// meet: scale 2, centered horizontally
	if want := (Matrix2D{2, 0, 0, 2, 50, 0}); m != want {
		t.Errorf("expected %v, got %v", want, m)
	}
	m = ViewBoxTransform(vb, AspectRatio{Align: AlignNone}, 200, 200)
	if want := (Matrix2D{4, 0, 0, 2, 0, 0}); m != want {
		t.Errorf("expected %v, got %v", want, m)
	}
	m = ViewBoxTransform(Rect{10, 10, 100, 100}, AspectRatio{Align: AlignXMinYMin, Slice: true}, 100, 50)
	if want := (Matrix2D{1, 0, 0, 1, -10, -10}); m != want {
		t.Errorf("expected %v, got %v", want, m)
	}
}

type recorder struct{ ops []string }

func (r *recorder) Start(Point)              { r.ops = append(r.ops, "start") }
func (r *recorder) Line(Point)               { r.ops = append(r.ops, "line") }
func (r *recorder) QuadBezier(_, _ Point)    { r.ops = append(r.ops, "quad") }
func (r *recorder) CubeBezier(_, _, _ Point) { r.ops = append(r.ops, "cube") }

func (r *recorder) Stop(closeLoop bool) {
	if closeLoop {
		r.ops = append(r.ops, "close")
	} else {
		r.ops = append(r.ops, "stop")
	}
}

func (r *recorder) expect(t *testing.T, s ...string) {
	t.Helper()
	if diff := cmp.Diff(s, r.ops); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	r.ops = nil
}

func TestAddTo(t *testing.T) {
	var r recorder
	Path{MoveTo{}, LineTo{}, MoveTo{}, QuadTo{}, Close{}}.AddTo(&r)
	r.expect(t, "start", "line", "stop", "start", "quad", "close")

	Path{MoveTo{}, CubicTo{}}.AddTo(&r)
	r.expect(t, "start", "cube", "stop")
}
