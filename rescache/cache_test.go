package rescache

import (
	"errors"
	"math"
	"testing"

	"github.com/benoitkugler/pdf/model"
)

func TestHasher(t *testing.T) {
	a := NewHasher("gs").Float(0.5).String("Normal").Sum()
	b := NewHasher("gs").Float(0.5).String("Normal").Sum()
	if a != b {
		t.Fatal("equal fields should give equal keys")
	}
	for _, other := range []Key{
		NewHasher("gs").Float(0.5).String("Multiply").Sum(),
		NewHasher("gs").Float(0.25).String("Normal").Sum(),
		NewHasher("sh").Float(0.5).String("Normal").Sum(),
		// same bytes, different split
		NewHasher("g").String("s").Float(0.5).String("Normal").Sum(),
		NewHasher("gs").Floats(0.5).String("Normal").Sum(),
	} {
		if other == a {
			t.Errorf("unexpected collision for %s", other)
		}
	}
	if NewHasher("x").Float(0).Sum() != NewHasher("x").Float(math.Copysign(0, -1)).Sum() {
		t.Error("0 and -0 should hash the same")
	}
}

func TestIntern(t *testing.T) {
	c := New()
	calls := 0
	build := func() (*model.GraphicState, error) {
		calls++
		return &model.GraphicState{Ca: model.ObjFloat(0.5)}, nil
	}
	k1 := NewHasher("gs").Float(0.5).Sum()
	r1, err := Intern(c, k1, build)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Intern(c, NewHasher("gs").Float(0.5).Sum(), build)
	if err != nil {
		t.Fatal(err)
	}
	if r1 != r2 || calls != 1 {
		t.Fatalf("expected one build, got %d (%p %p)", calls, r1, r2)
	}
	if c.Len() != 1 || c.Hits() != 1 {
		t.Fatalf("unexpected stats: %d %d", c.Len(), c.Hits())
	}
	if got, ok := c.Lookup(k1); !ok || got != r1 {
		t.Fatalf("unexpected lookup %v %v", got, ok)
	}
}

func TestInternNested(t *testing.T) {
	c := New()
	inner := NewHasher("shading").Sum()
	outer := NewHasher("pattern").Key(inner).Sum()
	pattern, err := Intern(c, outer, func() (*model.PatternShading, error) {
		sh, err := Intern(c, inner, func() (*model.ShadingDict, error) {
			return &model.ShadingDict{ColorSpace: model.ColorSpaceRGB}, nil
		})
		if err != nil {
			return nil, err
		}
		return &model.PatternShading{Shading: sh}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if pattern.Shading == nil || c.Len() != 2 {
		t.Fatalf("unexpected result %v %d", pattern, c.Len())
	}
}

func TestInternInvariant(t *testing.T) {
	c := New()
	key := NewHasher("loop").Sum()
	_, err := Intern(c, key, func() (*model.GraphicState, error) {
		return Intern(c, key, func() (*model.GraphicState, error) { return new(model.GraphicState), nil })
	})
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected invariant error, got %v", err)
	}

	_, err = Intern(c, NewHasher("nil").Sum(), func() (*model.GraphicState, error) { return nil, nil })
	if !errors.Is(err, ErrInvariant) {
		t.Errorf("expected invariant error, got %v", err)
	}

	// the same key can't be used for two kinds of objects
	k := NewHasher("kind").Sum()
	if _, err = Intern(c, k, func() (*model.GraphicState, error) { return new(model.GraphicState), nil }); err != nil {
		t.Fatal(err)
	}
	if _, err = Intern(c, k, func() (*model.ShadingDict, error) { return new(model.ShadingDict), nil }); !errors.Is(err, ErrInvariant) {
		t.Errorf("expected invariant error, got %v", err)
	}

	// failed builds are not cached
	boom := errors.New("boom")
	k = NewHasher("fail").Sum()
	if _, err = Intern(c, k, func() (*model.GraphicState, error) { return nil, boom }); err != boom {
		t.Errorf("expected %v, got %v", boom, err)
	}
	gs := new(model.GraphicState)
	if got, err := Intern(c, k, func() (*model.GraphicState, error) { return gs, nil }); err != nil || got != gs {
		t.Errorf("unexpected retry result %p %v", got, err)
	}
}

func TestResources(t *testing.T) {
	c := New()
	gs1, gs2 := new(model.GraphicState), new(model.GraphicState)
	key := func(res model.ResourcesDict) Key {
		return NewHasher("form").Resources(c, res).Sum()
	}
	a := key(model.ResourcesDict{ExtGState: map[model.Name]*model.GraphicState{"GS0": gs1, "GS1": gs2}})
	b := key(model.ResourcesDict{ExtGState: map[model.Name]*model.GraphicState{"GS1": gs2, "GS0": gs1}})
	if a != b {
		t.Error("map order should not change the key")
	}
	for _, res := range []model.ResourcesDict{
		{ExtGState: map[model.Name]*model.GraphicState{"GS0": gs2, "GS1": gs1}},
		{ExtGState: map[model.Name]*model.GraphicState{"GS0": gs1}},
		{XObject: map[model.Name]model.XObject{"GS0": new(model.XObjectForm)}},
	} {
		if key(res) == a {
			t.Errorf("unexpected collision for %v", res)
		}
	}
	if c.ID(gs1) != 1 || c.ID(gs2) != 2 || c.ID(gs1) != 1 {
		t.Errorf("unexpected ids %d %d", c.ID(gs1), c.ID(gs2))
	}
}
