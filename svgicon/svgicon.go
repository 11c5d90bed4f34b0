// Package svgicon parses SVG files into the scene tree consumed
// by the converters (see svgpdf and svgraster).
//
// Presentation attributes and the style attribute are supported,
// but not CSS style sheets. Text is shaped with HarfBuzz, using the
// fonts provided in Options.
package svgicon

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
)

// ErrorMode is the for setting how the parser reacts to unparsed elements
type ErrorMode uint8

const (
	// IgnoreErrorMode skips unparsed SVG elements
	IgnoreErrorMode ErrorMode = iota

	// WarnErrorMode outputs a warning when an unparsed SVG element is found
	WarnErrorMode

	// StrictErrorMode causes a error when an unparsed SVG element is found
	StrictErrorMode
)

// Options configures the parser.
type Options struct {
	ErrorMode ErrorMode

	// Fonts provides the font programs used to shape text.
	// Font families are used as FontID, lower cased. For bold
	// text, "<family>:bold" is tried first.
	Fonts svgscene.FontResolver
	// DefaultFont is used when no family of a text element
	// is found in Fonts.
	DefaultFont svgscene.FontID

	// DPI is the resolution used for absolute units (in, cm, mm, pt, pc).
	DPI float64

	Logger *zap.Logger
}

// DefaultOptions returns the options used by ReadIcon.
func DefaultOptions() Options {
	return Options{ErrorMode: WarnErrorMode, DPI: 96, Logger: zap.NewNop()}
}

// Icon is a parsed SVG document.
type Icon struct {
	Tree         *svgscene.Tree
	Titles       []string // Title elements collect here
	Descriptions []string // Description elements collect here
}

// ReadIconStream reads the Icon from the given io.Reader.
// opts.ErrorMode determines if the parser ignores, errors out, or logs a warning
// when it does not handle an element found in the icon file.
func ReadIconStream(stream io.Reader, opts Options) (*Icon, error) {
	if opts.DPI <= 0 {
		opts.DPI = 96
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	root, err := readElements(stream)
	if err != nil {
		return nil, err
	}
	if root.Name != "svg" {
		return nil, fmt.Errorf("invalid root element %s", root.Name)
	}

	c := newCursor(root, opts)
	if err := c.readRoot(root); err != nil {
		return nil, err
	}
	icon := &Icon{Tree: c.tree}
	root.walk(func(el *element) {
		switch el.Name {
		case "title":
			icon.Titles = append(icon.Titles, el.text())
		case "desc":
			icon.Descriptions = append(icon.Descriptions, el.text())
		}
	})
	return icon, nil
}

// ReadIcon reads the Icon from the named file, with the default options.
func ReadIcon(iconFile string) (*Icon, error) {
	fin, errf := os.Open(iconFile)
	if errf != nil {
		return nil, errf
	}
	defer fin.Close()
	return ReadIconStream(fin, DefaultOptions())
}

var errEmptyDocument = errors.New("invalid svg xml icon")

// readRoot reads the viewport of the outermost svg element
// and its content.
func (c *iconCursor) readRoot(root *element) error {
	st, err := c.inherit(defaultStyle, root)
	if err != nil {
		return err
	}
	var viewBox svgpath.Rect
	if v, ok := root.Attrs["viewBox"]; ok {
		if viewBox, err = parseViewBox(v); err != nil {
			if err = c.handleError(err.Error()); err != nil {
				return err
			}
		}
	}
	// percentages of the root size are relative to the view box
	c.viewport = svgpath.Rect{W: 100, H: 100}
	if !viewBox.IsEmpty() {
		c.viewport = viewBox
	}
	width, height := viewBox.W, viewBox.H
	if v, ok := root.Attrs["width"]; ok {
		if width, err = c.parseLength(v, horizontal, &st); err != nil {
			return err
		}
	}
	if v, ok := root.Attrs["height"]; ok {
		if height, err = c.parseLength(v, vertical, &st); err != nil {
			return err
		}
	}
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 100
	}
	if viewBox.IsEmpty() {
		c.viewport = svgpath.Rect{W: width, H: height}
	}

	c.tree.Width, c.tree.Height = width, height
	c.tree.ViewBox = viewBox
	if v, ok := root.Attrs["preserveAspectRatio"]; ok {
		c.tree.AspectRatio = parseAspectRatio(v)
	}
	g, err := c.children(root, &st)
	if err != nil {
		return err
	}
	ok, err := c.common(&g.Common, root)
	if err != nil {
		return err
	}
	if ok {
		c.tree.Root = g
	}
	return nil
}
