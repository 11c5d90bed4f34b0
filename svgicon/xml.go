package svgicon

import (
	"encoding/xml"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// element is a node of the XML document. Character data
// are stored as elements with an empty Name.
type element struct {
	Name string
	// Attrs merges the attributes and the declarations
	// of the style attribute, which take precedence.
	Attrs    map[string]string
	Children []*element
	Parent   *element
	Data     string
}

// readElements parses the XML document into a tree.
func readElements(stream io.Reader) (*element, error) {
	decoder := xml.NewDecoder(stream)
	decoder.CharsetReader = charset.NewReaderLabel
	var (
		root  *element
		stack []*element
	)
	for {
		t, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				if root == nil {
					return nil, errEmptyDocument
				}
				return root, nil
			}
			return nil, err
		}
		// Inspect the type of the XML token
		switch se := t.(type) {
		case xml.StartElement:
			el := &element{Name: se.Name.Local, Attrs: readAttrs(se.Attr)}
			if len(stack) == 0 {
				if root != nil {
					return nil, errEmptyDocument
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				el.Parent = parent
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) != 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, &element{Parent: parent, Data: string(se)})
			}
		}
	}
}

// readAttrs reads all recognized style attributes from the start element.
func readAttrs(attrs []xml.Attr) map[string]string {
	out := make(map[string]string, len(attrs))
	var style string
	for _, attr := range attrs {
		switch name := attr.Name.Local; name {
		case "style":
			style = attr.Value
		default:
			out[name] = strings.TrimSpace(attr.Value)
		}
	}
	for _, pair := range strings.Split(style, ";") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(kv[1]), "!important"))
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// walk calls fn for `el` and its descendants, in document order.
func (el *element) walk(fn func(*element)) {
	fn(el)
	for _, child := range el.Children {
		child.walk(fn)
	}
}

// text returns the concatenated character data of `el`.
func (el *element) text() string {
	var b strings.Builder
	el.walk(func(e *element) { b.WriteString(e.Data) })
	return b.String()
}

// href returns the id referenced by the href attribute,
// or an empty string.
func (el *element) href() string {
	v := el.Attrs["href"]
	if !strings.HasPrefix(v, "#") {
		return ""
	}
	return v[1:]
}
