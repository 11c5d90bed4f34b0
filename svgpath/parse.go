package svgpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errNoNumber = errors.New("expected number")

// ParsePath parses the content of a 'd' attribute.
// On error, the path parsed up to the faulty segment is returned
// along with the error, so that callers may still render it.
func ParsePath(d string) (Path, error) {
	c := pathCursor{input: d}
	err := c.compile()
	return c.path, err
}

// ParsePoints parses a list of coordinates, as found
// in the 'points' attribute of polylines. A trailing odd
// value is ignored.
func ParsePoints(s string) ([]Point, error) {
	c := pathCursor{input: s}
	var out []Point
	for c.hasNumber() {
		x, err := c.readNumber()
		if err != nil {
			return out, err
		}
		if !c.hasNumber() {
			break
		}
		y, err := c.readNumber()
		if err != nil {
			return out, err
		}
		out = append(out, Point{x, y})
	}
	return out, nil
}

// ParseNumbers parses a list of numbers separated
// by white spaces and/or commas.
func ParseNumbers(s string) ([]float64, error) {
	c := pathCursor{input: s}
	var out []float64
	for c.hasNumber() {
		v, err := c.readNumber()
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	c.skipSeparators()
	if c.pos < len(c.input) {
		return out, fmt.Errorf("unexpected character %q in number list", c.input[c.pos])
	}
	return out, nil
}

type pathCursor struct {
	input string
	pos   int

	path                    Path
	current, start, control Point
	lastCommand             byte
}

func isSeparator(b byte) bool {
	return b == ' ' || b == ',' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

func (c *pathCursor) skipSeparators() {
	for c.pos < len(c.input) && isSeparator(c.input[c.pos]) {
		c.pos++
	}
}

// hasNumber skips the separators and returns true if
// a number may start at the current position.
func (c *pathCursor) hasNumber() bool {
	c.skipSeparators()
	if c.pos >= len(c.input) {
		return false
	}
	b := c.input[c.pos]
	return isDigit(b) || b == '-' || b == '+' || b == '.'
}

func (c *pathCursor) readNumber() (float64, error) {
	c.skipSeparators()
	s, start := c.input, c.pos
	if c.pos < len(s) && (s[c.pos] == '-' || s[c.pos] == '+') {
		c.pos++
	}
	digits := false
	for c.pos < len(s) && isDigit(s[c.pos]) {
		c.pos++
		digits = true
	}
	if c.pos < len(s) && s[c.pos] == '.' {
		c.pos++
		for c.pos < len(s) && isDigit(s[c.pos]) {
			c.pos++
			digits = true
		}
	}
	if !digits {
		c.pos = start
		return 0, errNoNumber
	}
	if c.pos < len(s) && (s[c.pos] == 'e' || s[c.pos] == 'E') {
		save := c.pos
		c.pos++
		if c.pos < len(s) && (s[c.pos] == '-' || s[c.pos] == '+') {
			c.pos++
		}
		if c.pos < len(s) && isDigit(s[c.pos]) {
			for c.pos < len(s) && isDigit(s[c.pos]) {
				c.pos++
			}
		} else {
			c.pos = save // not an exponent, as in "1em"
		}
	}
	return strconv.ParseFloat(s[start:c.pos], 64)
}

// readFlag reads an arc flag, which may not be
// separated from the following number.
func (c *pathCursor) readFlag() (bool, error) {
	c.skipSeparators()
	if c.pos >= len(c.input) {
		return false, errors.New("expected flag")
	}
	switch c.input[c.pos] {
	case '0':
		c.pos++
		return false, nil
	case '1':
		c.pos++
		return true, nil
	}
	return false, fmt.Errorf("invalid flag %q", c.input[c.pos])
}

func (c *pathCursor) readNumbers(out []float64) error {
	for i := range out {
		var err error
		out[i], err = c.readNumber()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *pathCursor) readPoint(relative bool) (Point, error) {
	var args [2]float64
	if err := c.readNumbers(args[:]); err != nil {
		return Point{}, err
	}
	p := Point{args[0], args[1]}
	if relative {
		p = p.add(c.current)
	}
	return p, nil
}

func (c *pathCursor) compile() error {
	for {
		c.skipSeparators()
		if c.pos >= len(c.input) {
			return nil
		}
		cmd := c.input[c.pos]
		if strings.IndexByte("MmLlHhVvCcSsQqTtAaZz", cmd) >= 0 {
			c.pos++
		} else if c.lastCommand != 0 && c.hasNumber() {
			// implicit repetition of the previous command
			cmd = c.lastCommand
			switch cmd {
			case 'M':
				cmd = 'L'
			case 'm':
				cmd = 'l'
			case 'Z', 'z':
				return fmt.Errorf("unexpected number after close path at %d", c.pos)
			}
		} else {
			return fmt.Errorf("invalid path command %q at %d", cmd, c.pos)
		}
		if c.lastCommand == 0 && cmd != 'M' && cmd != 'm' {
			return fmt.Errorf("path data must start with a move to, got %q", cmd)
		}
		if err := c.addSegment(cmd); err != nil {
			return fmt.Errorf("invalid path segment %q: %s", cmd, err)
		}
		c.lastCommand = cmd
	}
}

func (c *pathCursor) addSegment(cmd byte) error {
	relative := 'a' <= cmd && cmd <= 'z'
	if c.lastCommand == 'Z' || c.lastCommand == 'z' {
		switch cmd {
		case 'M', 'm', 'Z', 'z':
		default:
			// a segment following a close path starts at the subpath start
			c.path.Start(c.start)
		}
	}
	switch cmd {
	case 'M', 'm':
		p, err := c.readPoint(relative)
		if err != nil {
			return err
		}
		c.path.Start(p)
		c.current, c.start, c.control = p, p, p
	case 'L', 'l':
		p, err := c.readPoint(relative)
		if err != nil {
			return err
		}
		c.lineTo(p)
	case 'H', 'h':
		x, err := c.readNumber()
		if err != nil {
			return err
		}
		if relative {
			x += c.current.X
		}
		c.lineTo(Point{x, c.current.Y})
	case 'V', 'v':
		y, err := c.readNumber()
		if err != nil {
			return err
		}
		if relative {
			y += c.current.Y
		}
		c.lineTo(Point{c.current.X, y})
	case 'C', 'c', 'S', 's':
		var c1 Point
		if cmd == 'S' || cmd == 's' {
			c1 = c.current
			switch c.lastCommand {
			case 'C', 'c', 'S', 's':
				c1 = reflect(c.current, c.control)
			}
		} else {
			var err error
			if c1, err = c.readPoint(relative); err != nil {
				return err
			}
		}
		c2, err := c.readPoint(relative)
		if err != nil {
			return err
		}
		end, err := c.readPoint(relative)
		if err != nil {
			return err
		}
		c.path.CubeBezier(c1, c2, end)
		c.current, c.control = end, c2
	case 'Q', 'q', 'T', 't':
		var ctl Point
		if cmd == 'T' || cmd == 't' {
			ctl = c.current
			switch c.lastCommand {
			case 'Q', 'q', 'T', 't':
				ctl = reflect(c.current, c.control)
			}
		} else {
			var err error
			if ctl, err = c.readPoint(relative); err != nil {
				return err
			}
		}
		end, err := c.readPoint(relative)
		if err != nil {
			return err
		}
		c.path.QuadBezier(ctl, end)
		c.current, c.control = end, ctl
	case 'A', 'a':
		var radii [3]float64
		if err := c.readNumbers(radii[:]); err != nil {
			return err
		}
		largeArc, err := c.readFlag()
		if err != nil {
			return err
		}
		sweep, err := c.readFlag()
		if err != nil {
			return err
		}
		end, err := c.readPoint(relative)
		if err != nil {
			return err
		}
		c.current = c.path.AddArc(c.current, radii[0], radii[1], radii[2], largeArc, sweep, end)
		c.control = c.current
	case 'Z', 'z':
		c.path.Stop(true)
		c.current, c.control = c.start, c.start
	}
	return nil
}

func (c *pathCursor) lineTo(p Point) {
	c.path.Line(p)
	c.current, c.control = p, p
}
