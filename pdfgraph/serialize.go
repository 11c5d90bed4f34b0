package pdfgraph

import (
	"bytes"
	"fmt"
)

// Trailer holds the entries of the document trailer.
type Trailer struct {
	Root Ref // the document catalog
	Info Ref // optional
}

// Serialize writes the graph as a complete PDF file:
// header, objects in number order, cross-reference table and trailer.
func Serialize(g *Graph, trailer Trailer) ([]byte, error) {
	if err := g.Check(); err != nil {
		return nil, err
	}
	if trailer.Root == 0 || g.Get(trailer.Root) == nil {
		return nil, fmt.Errorf("invalid catalog reference %d", trailer.Root)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(g.objects))
	for i, obj := range g.objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		obj.write(&buf)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(g.objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}

	dict := Dict{
		"Size": Integer(len(g.objects) + 1),
		"Root": trailer.Root,
	}
	if trailer.Info != 0 {
		dict["Info"] = trailer.Info
	}
	buf.WriteString("trailer\n")
	dict.write(&buf)
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes(), nil
}
