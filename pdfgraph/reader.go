package pdfgraph

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// Parse reads back a PDF file with a classic cross-reference table,
// as written by Serialize. It does not support object streams,
// cross-reference streams or incremental updates.
func Parse(data []byte) (*Graph, Trailer, error) {
	start := bytes.LastIndex(data, []byte("startxref"))
	if start < 0 {
		return nil, Trailer{}, errors.New("missing startxref")
	}
	p := &parser{data: data, pos: start + len("startxref")}
	xref, err := p.integer()
	if err != nil {
		return nil, Trailer{}, err
	}

	p.pos = xref
	if !p.keyword("xref") {
		return nil, Trailer{}, errors.New("missing xref table")
	}
	first, err := p.integer()
	if err != nil {
		return nil, Trailer{}, err
	}
	count, err := p.integer()
	if err != nil {
		return nil, Trailer{}, err
	}
	offsets := make([]int, count)
	for i := range offsets {
		off, err := p.integer()
		if err != nil {
			return nil, Trailer{}, err
		}
		if _, err = p.integer(); err != nil {
			return nil, Trailer{}, err
		}
		p.skipSpace()
		if p.pos >= len(p.data) {
			return nil, Trailer{}, errors.New("truncated xref table")
		}
		if p.data[p.pos] == 'n' {
			offsets[i] = off
		} else {
			offsets[i] = -1
		}
		p.pos++
	}
	if !p.keyword("trailer") {
		return nil, Trailer{}, errors.New("missing trailer")
	}
	trailerObj, err := p.object()
	if err != nil {
		return nil, Trailer{}, err
	}
	trailerDict, ok := trailerObj.(Dict)
	if !ok {
		return nil, Trailer{}, errors.New("invalid trailer")
	}
	var trailer Trailer
	trailer.Root, _ = trailerDict["Root"].(Ref)
	trailer.Info, _ = trailerDict["Info"].(Ref)

	g := &Graph{}
	for i, off := range offsets {
		number := first + i
		if number == 0 || off < 0 {
			continue
		}
		p.pos = off
		if _, err := p.integer(); err != nil {
			return nil, Trailer{}, fmt.Errorf("object %d: %s", number, err)
		}
		if _, err := p.integer(); err != nil {
			return nil, Trailer{}, fmt.Errorf("object %d: %s", number, err)
		}
		if !p.keyword("obj") {
			return nil, Trailer{}, fmt.Errorf("object %d: missing obj keyword", number)
		}
		obj, err := p.object()
		if err != nil {
			return nil, Trailer{}, fmt.Errorf("object %d: %s", number, err)
		}
		for len(g.objects) < number {
			g.objects = append(g.objects, nil)
		}
		g.objects[number-1] = obj
	}
	return g, trailer, nil
}

type parser struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return bytes.IndexByte([]byte("()<>[]{}/%"), c) >= 0
}

func (p *parser) skipSpace() {
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if c == '%' { // comment
			for p.pos < len(p.data) && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		if !isWhite(c) {
			return
		}
		p.pos++
	}
}

// token returns the next regular token, without consuming it.
func (p *parser) token() string {
	p.skipSpace()
	end := p.pos
	for end < len(p.data) && !isWhite(p.data[end]) && !isDelimiter(p.data[end]) {
		end++
	}
	return string(p.data[p.pos:end])
}

func (p *parser) keyword(kw string) bool {
	if p.token() != kw {
		return false
	}
	p.pos += len(kw)
	return true
}

func (p *parser) integer() (int, error) {
	tk := p.token()
	v, err := strconv.Atoi(tk)
	if err != nil {
		return 0, fmt.Errorf("expected integer, got %q", tk)
	}
	p.pos += len(tk)
	return v, nil
}

func (p *parser) object() (Object, error) {
	p.skipSpace()
	if p.pos >= len(p.data) {
		return nil, errors.New("unexpected end of file")
	}
	switch c := p.data[p.pos]; {
	case c == '/':
		p.pos++
		return p.name(), nil
	case c == '(':
		return p.literalString()
	case c == '<' && p.pos+1 < len(p.data) && p.data[p.pos+1] == '<':
		return p.dictOrStream()
	case c == '<':
		return p.hexString()
	case c == '[':
		p.pos++
		var arr Array
		for {
			p.skipSpace()
			if p.pos < len(p.data) && p.data[p.pos] == ']' {
				p.pos++
				return arr, nil
			}
			obj, err := p.object()
			if err != nil {
				return nil, err
			}
			arr = append(arr, obj)
		}
	}
	tk := p.token()
	switch tk {
	case "":
		return nil, fmt.Errorf("unexpected character %q", p.data[p.pos])
	case "true", "false":
		p.pos += len(tk)
		return Bool(tk == "true"), nil
	case "null":
		p.pos += len(tk)
		return Null{}, nil
	}
	if i, err := strconv.Atoi(tk); err == nil {
		p.pos += len(tk)
		// look ahead for a reference "n 0 R"
		save := p.pos
		if _, err := p.integer(); err == nil && p.keyword("R") {
			return Ref(i), nil
		}
		p.pos = save
		return Integer(i), nil
	}
	f, err := strconv.ParseFloat(tk, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid token %q", tk)
	}
	p.pos += len(tk)
	return Real(f), nil
}

func (p *parser) name() Name {
	var out []byte
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if isWhite(c) || isDelimiter(c) {
			break
		}
		if c == '#' && p.pos+2 < len(p.data) {
			if v, err := strconv.ParseUint(string(p.data[p.pos+1:p.pos+3]), 16, 8); err == nil {
				out = append(out, byte(v))
				p.pos += 3
				continue
			}
		}
		out = append(out, c)
		p.pos++
	}
	return Name(out)
}

func (p *parser) literalString() (Object, error) {
	p.pos++ // (
	var out []byte
	depth := 0
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		p.pos++
		switch c {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return String(out), nil
			}
			depth--
		case '\\':
			if p.pos >= len(p.data) {
				break
			}
			e := p.data[p.pos]
			p.pos++
			switch e {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for k := 0; k < 2 && p.pos < len(p.data) && '0' <= p.data[p.pos] && p.data[p.pos] <= '7'; k++ {
					v = v*8 + int(p.data[p.pos]-'0')
					p.pos++
				}
				c = byte(v)
			case '\n':
				continue
			default:
				c = e
			}
		}
		out = append(out, c)
	}
	return nil, errors.New("unterminated string")
}

func (p *parser) hexString() (Object, error) {
	end := bytes.IndexByte(p.data[p.pos:], '>')
	if end < 0 {
		return nil, errors.New("unterminated hex string")
	}
	var digits []byte
	for _, c := range p.data[p.pos+1 : p.pos+end] {
		if !isWhite(c) {
			digits = append(digits, c)
		}
	}
	p.pos += end + 1
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		v, err := strconv.ParseUint(string(digits[2*i:2*i+2]), 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return String(out), nil
}

func (p *parser) dictOrStream() (Object, error) {
	p.pos += 2 // <<
	dict := Dict{}
	for {
		p.skipSpace()
		if p.pos+1 < len(p.data) && p.data[p.pos] == '>' && p.data[p.pos+1] == '>' {
			p.pos += 2
			break
		}
		key, err := p.object()
		if err != nil {
			return nil, err
		}
		name, ok := key.(Name)
		if !ok {
			return nil, fmt.Errorf("invalid dictionary key %v", key)
		}
		value, err := p.object()
		if err != nil {
			return nil, err
		}
		dict[name] = value
	}

	if !p.keyword("stream") {
		return dict, nil
	}
	// the keyword is followed by an end of line
	if p.pos < len(p.data) && p.data[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.data) && p.data[p.pos] == '\n' {
		p.pos++
	}
	length, ok := dict["Length"].(Integer)
	if !ok || p.pos+int(length) > len(p.data) {
		return nil, errors.New("invalid stream length")
	}
	content := p.data[p.pos : p.pos+int(length)]
	p.pos += int(length)
	if !p.keyword("endstream") {
		return nil, errors.New("missing endstream")
	}
	delete(dict, "Length")
	return Stream{Dict: dict, Content: content}, nil
}
