package pdfgraph

import (
	"fmt"

	"github.com/benoitkugler/pdf/model"
)

// Writer is the boundary between the converter and the
// object graph: references are allocated first, and their
// content is provided later, once known.
type Writer interface {
	// Alloc returns a fresh reference.
	Alloc() Ref
	// Put defines the object for a reference returned by Alloc.
	Put(ref Ref, obj Object)
}

// Graph is an arena of indirect objects, numbered from 1.
type Graph struct {
	objects []Object // object number i is at index i-1, nil if not yet defined
}

var _ Writer = (*Graph)(nil)

// NewGraph returns an empty graph.
func NewGraph() *Graph { return &Graph{} }

// Alloc implements Writer.
func (g *Graph) Alloc() Ref {
	g.objects = append(g.objects, nil)
	return Ref(len(g.objects))
}

// Put implements Writer. It panics if `ref` has not been allocated.
func (g *Graph) Put(ref Ref, obj Object) {
	if ref == 0 || int(ref) > len(g.objects) {
		panic(fmt.Sprintf("pdfgraph: invalid reference %d", ref))
	}
	g.objects[ref-1] = obj
}

// Add allocates a new reference for `obj`.
func (g *Graph) Add(obj Object) Ref {
	ref := g.Alloc()
	g.Put(ref, obj)
	return ref
}

// Get returns the object for `ref`, or nil.
func (g *Graph) Get(ref Ref) Object {
	if ref == 0 || int(ref) > len(g.objects) {
		return nil
	}
	return g.objects[ref-1]
}

// Len returns the number of allocated references.
func (g *Graph) Len() int { return len(g.objects) }

// Check returns an error if an allocated reference has not been
// defined, or if an object references an unknown object.
func (g *Graph) Check() error {
	for i, obj := range g.objects {
		if obj == nil {
			return fmt.Errorf("object %d is allocated but never defined", i+1)
		}
		var err error
		walkRefs(obj, func(r Ref) Ref {
			if r == 0 || int(r) > len(g.objects) {
				err = fmt.Errorf("object %d references unknown object %d", i+1, r)
			}
			return r
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Renumber returns a copy of the graph, where the object numbered 1
// becomes `first`, and every reference is shifted accordingly.
// It is used to splice a graph into another document, whose
// objects 1 to first-1 are already used.
func (g *Graph) Renumber(first Ref) (*Graph, func(Ref) Ref) {
	shift := func(r Ref) Ref { return r + first - 1 }
	out := &Graph{objects: make([]Object, int(first)-1+len(g.objects))}
	for i, obj := range g.objects {
		out.objects[int(shift(Ref(i+1)))-1] = walkRefs(obj, shift)
	}
	return out, shift
}

// Objects returns the defined objects and their references, in order.
func (g *Graph) Objects() ([]Ref, []Object) {
	var (
		refs []Ref
		objs []Object
	)
	for i, obj := range g.objects {
		if obj == nil {
			continue
		}
		refs = append(refs, Ref(i+1))
		objs = append(objs, obj)
	}
	return refs, objs
}

// walkRefs returns a copy of `obj` where each reference is replaced
// by fn(ref).
func walkRefs(obj Object, fn func(Ref) Ref) Object {
	switch obj := obj.(type) {
	case Ref:
		return fn(obj)
	case Array:
		out := make(Array, len(obj))
		for i, v := range obj {
			out[i] = walkRefs(v, fn)
		}
		return out
	case Dict:
		return walkDict(obj, fn)
	case Stream:
		return Stream{Dict: walkDict(obj.Dict, fn), Content: obj.Content}
	default:
		return obj
	}
}

func walkDict(d Dict, fn func(Ref) Ref) Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = walkRefs(v, fn)
	}
	return out
}

// NewStream returns a stream with the given content,
// Flate compressed if `compress` is true.
func NewStream(dict Dict, content []byte, compress bool) Stream {
	if dict == nil {
		dict = Dict{}
	}
	if !compress {
		return Stream{Dict: dict, Content: content}
	}
	s, err := model.NewStream(content, model.Filter{Name: model.Flate})
	if err != nil { // the Flate encoder does not fail on in-memory data
		return Stream{Dict: dict, Content: content}
	}
	dict["Filter"] = Name(model.Flate)
	return Stream{Dict: dict, Content: s.Content}
}

// Decode returns the decoded content of the stream.
func (s Stream) Decode() ([]byte, error) {
	var filters model.Filters
	switch f := s.Dict["Filter"].(type) {
	case nil:
	case Name:
		filters = model.Filters{{Name: model.Name(f)}}
	case Array:
		for _, name := range f {
			name, ok := name.(Name)
			if !ok {
				return nil, fmt.Errorf("invalid filter %v", name)
			}
			filters = append(filters, model.Filter{Name: model.Name(name)})
		}
	default:
		return nil, fmt.Errorf("invalid filter %v", f)
	}
	return model.Stream{Filter: filters, Content: s.Content}.Decode()
}
