package svgpdf

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/benoitkugler/svg2pdf/pdfgraph"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Options configures a conversion. Zero fields are
// replaced by their default value.
type Options struct {
	// EmbedText writes text with embedded, subsetted fonts.
	// If false, glyphs are drawn as filled paths and no font is embedded.
	EmbedText bool
	// RasterScale is the resolution of the filters which can't be
	// expressed in PDF, relative to the output resolution.
	RasterScale float64
	// Compress enables Flate compression of the streams.
	// Image samples are always compressed.
	Compress bool
	// DPI is the resolution of the user units: the page
	// is Width * 72 / DPI points wide.
	DPI float64
	// Viewport, if not empty, selects the area of the document
	// shown on the page, in the coordinates of the SVG viewport.
	Viewport svgpath.Rect
	// AspectRatio, if not nil, overrides the preserveAspectRatio
	// attribute of the root element.
	AspectRatio *svgpath.AspectRatio

	// Fonts provides the programs of the fonts used by text nodes.
	Fonts svgscene.FontResolver
	// DecodeRaster decodes the images which are not already decoded.
	DecodeRaster func(data []byte) (image.Image, error)
	// Serialize writes the final document.
	Serialize func(*pdfgraph.Graph, pdfgraph.Trailer) ([]byte, error)

	// MaxDepth bounds the nesting of nodes, including
	// the content of patterns and masks.
	MaxDepth int

	// Logger receives warnings and debug information.
	Logger *zap.Logger
}

// DefaultOptions returns the default options.
func DefaultOptions() Options {
	return Options{
		EmbedText:    true,
		RasterScale:  1.5,
		Compress:     true,
		DPI:          72,
		DecodeRaster: decodeRaster,
		Serialize:    pdfgraph.Serialize,
		MaxDepth:     256,
		Logger:       zap.NewNop(),
	}
}

func decodeRaster(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// withDefaults fills the zero fields. EmbedText and Compress
// are booleans and can't be defaulted.
func (opts Options) withDefaults() Options {
	def := DefaultOptions()
	if opts.RasterScale <= 0 {
		opts.RasterScale = def.RasterScale
	}
	if opts.DPI <= 0 {
		opts.DPI = def.DPI
	}
	if opts.DecodeRaster == nil {
		opts.DecodeRaster = def.DecodeRaster
	}
	if opts.Serialize == nil {
		opts.Serialize = def.Serialize
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	return opts
}
