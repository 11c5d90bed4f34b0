package pdfgraph

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormat(t *testing.T) {
	for _, test := range []struct {
		obj      Object
		expected string
	}{
		{Real(1.5), "1.5"},
		{Real(-0.0000001), "0"},
		{Real(2), "2"},
		{Real(1. / 3), "0.33333"},
		{Name("Type"), "/Type"},
		{Name("A B#"), "/A#20B#23"},
		{String("a(b)\\"), `(a\(b\)\\)`},
		{Array{Integer(1), Ref(3), Bool(true), Null{}}, "[1 3 0 R true null]"},
		{Dict{"Z": Integer(1), "A": Name("B")}, "<</A /B/Z 1>>"},
	} {
		if got := Format(test.obj); got != test.expected {
			t.Errorf("expected %s, got %s", test.expected, got)
		}
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	g := NewGraph()
	catalog := g.Alloc()
	pages := g.Alloc()
	content := g.Add(NewStream(nil, []byte("0 0 m 10 10 l S"), true))
	page := g.Add(Dict{
		"Type":     Name("Page"),
		"Parent":   pages,
		"MediaBox": Rect(0, 0, 100, 50.5),
		"Contents": content,
	})
	g.Put(pages, Dict{"Type": Name("Pages"), "Kids": Array{page}, "Count": Integer(1)})
	g.Put(catalog, Dict{"Type": Name("Catalog"), "Pages": pages})
	info := g.Add(Dict{"Producer": String("test (v1)")})

	data, err := Serialize(g, Trailer{Root: catalog, Info: info})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-1.7")) || !bytes.HasSuffix(data, []byte("%%EOF\n")) {
		t.Fatal("invalid header or footer")
	}

	back, trailer, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if trailer != (Trailer{Root: catalog, Info: info}) {
		t.Fatalf("unexpected trailer %v", trailer)
	}
	if back.Len() != g.Len() {
		t.Fatalf("expected %d objects, got %d", g.Len(), back.Len())
	}
	// whole reals are read back as integers: compare the serialized forms
	for ref := Ref(1); int(ref) <= g.Len(); ref++ {
		if want, got := Format(g.Get(ref)), Format(back.Get(ref)); want != got {
			t.Errorf("object %d: expected %s, got %s", ref, want, got)
		}
	}
	stream := back.Get(content).(Stream)
	decoded, err := stream.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != "0 0 m 10 10 l S" {
		t.Errorf("unexpected content %q", decoded)
	}
}

func TestCheck(t *testing.T) {
	g := NewGraph()
	g.Alloc()
	if _, err := Serialize(g, Trailer{Root: 1}); err == nil {
		t.Error("expected error for undefined object")
	}

	g = NewGraph()
	g.Add(Dict{"Next": Ref(4)})
	if err := g.Check(); err == nil {
		t.Error("expected error for dangling reference")
	}
}

func TestRenumber(t *testing.T) {
	g := NewGraph()
	a := g.Alloc()
	b := g.Add(Array{a})
	g.Put(a, Dict{"Other": b, "Data": NewStream(Dict{"K": Array{b}}, []byte("x"), false)})

	shifted, shift := g.Renumber(10)
	if shift(a) != 10 || shift(b) != 11 {
		t.Fatalf("unexpected shift: %d %d", shift(a), shift(b))
	}
	refs, objs := shifted.Objects()
	if diff := cmp.Diff([]Ref{10, 11}, refs); diff != "" {
		t.Fatal(diff)
	}
	want := Dict{"Other": Ref(11), "Data": Stream{Dict: Dict{"K": Array{Ref(11)}}, Content: []byte("x")}}
	if diff := cmp.Diff(Object(want), objs[0]); diff != "" {
		t.Errorf("(-want +got)\n%s", diff)
	}
	// the original graph is untouched
	if g.Get(b).(Array)[0] != a {
		t.Error("renumbering modified the source graph")
	}
}
