// Package pdfgraph numbers and serializes PDF objects.
//
// Documents are built with the object model of github.com/benoitkugler/pdf,
// where objects are identified by pointers. A Lowerer converts them to a Graph
// of numbered objects, in a deterministic order, which is then written by
// Serialize. A Graph may also be renumbered to be spliced into another document.
package pdfgraph

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Object is a PDF object. The implementations are
// Null, Bool, Integer, Real, Name, String, Array, Dict, Ref and Stream.
type Object interface {
	write(b *bytes.Buffer)
}

type (
	Null    struct{}
	Bool    bool
	Integer int
	Real    float64
	Name    string
	// String is a byte string, written as a literal string.
	String string
	Array  []Object
	// Dict keys are written in sorted order.
	Dict map[Name]Object
	// Ref is an indirect reference. The zero value is invalid.
	Ref uint32
)

// Stream is a dictionary followed by binary content.
// The Length entry is added at serialization.
type Stream struct {
	Dict    Dict
	Content []byte
}

func (Null) write(b *bytes.Buffer) { b.WriteString("null") }

func (o Bool) write(b *bytes.Buffer) {
	if o {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
}

func (o Integer) write(b *bytes.Buffer) { b.WriteString(strconv.Itoa(int(o))) }

func (o Real) write(b *bytes.Buffer) { b.WriteString(FormatFloat(float64(o))) }

func (o Name) write(b *bytes.Buffer) {
	b.WriteByte('/')
	for i := 0; i < len(o); i++ {
		c := o[i]
		if c < '!' || c > '~' || bytes.IndexByte([]byte("#()<>[]{}/%"), c) >= 0 {
			fmt.Fprintf(b, "#%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
}

func (o String) write(b *bytes.Buffer) {
	b.WriteByte('(')
	for i := 0; i < len(o); i++ {
		switch c := o[i]; c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
}

func (o Array) write(b *bytes.Buffer) {
	b.WriteByte('[')
	for i, v := range o {
		if i != 0 {
			b.WriteByte(' ')
		}
		v.write(b)
	}
	b.WriteByte(']')
}

// Keys returns the sorted keys of the dictionary.
func (o Dict) Keys() []Name {
	keys := make([]Name, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (o Dict) write(b *bytes.Buffer) {
	b.WriteString("<<")
	for _, k := range o.Keys() {
		k.write(b)
		b.WriteByte(' ')
		o[k].write(b)
	}
	b.WriteString(">>")
}

func (o Ref) write(b *bytes.Buffer) { fmt.Fprintf(b, "%d 0 R", o) }

func (o Stream) write(b *bytes.Buffer) {
	d := make(Dict, len(o.Dict)+1)
	for k, v := range o.Dict {
		d[k] = v
	}
	d["Length"] = Integer(len(o.Content))
	d.write(b)
	b.WriteString("\nstream\n")
	b.Write(o.Content)
	b.WriteString("\nendstream")
}

// FormatFloat returns a compact representation of `f`,
// with at most 5 decimals.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		if f == 0 {
			return "0" // avoid -0
		}
		return strconv.FormatInt(int64(f), 10)
	}
	s := strconv.FormatFloat(f, 'f', 5, 64)
	s = trimZeros(s)
	if s == "-0" {
		return "0"
	}
	return s
}

func trimZeros(s string) string {
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// Rect returns the PDF rectangle [llx lly urx ury].
func Rect(x0, y0, x1, y1 float64) Array {
	return Array{Real(x0), Real(y0), Real(x1), Real(y1)}
}

// Matrix returns the PDF array of the six coefficients.
func Matrix(m [6]float64) Array {
	return Array{Real(m[0]), Real(m[1]), Real(m[2]), Real(m[3]), Real(m[4]), Real(m[5])}
}

// Reals returns an array of numbers.
func Reals(fs ...float64) Array {
	out := make(Array, len(fs))
	for i, f := range fs {
		out[i] = Real(f)
	}
	return out
}

// Format returns the serialized form of the object.
func Format(o Object) string {
	var b bytes.Buffer
	o.write(&b)
	return b.String()
}
