// Package svgpdf converts scene trees to PDF, either as a
// standalone document or as a form XObject to be embedded in
// another document.
//
// Paths, gradients and patterns are written as vector graphics.
// Only the filters without PDF equivalent are rasterized.
package svgpdf

import (
	"errors"
	"fmt"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/clipmask"
	"github.com/benoitkugler/svg2pdf/paint"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/pdffont"
	"github.com/benoitkugler/svg2pdf/pdfgraph"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const producer = "svg2pdf"

// Chunk is a form XObject drawing a tree, to be
// included in another document.
type Chunk struct {
	// Form draws the tree. It may be used directly in a
	// model.Document, which numbers its objects when written.
	Form *model.XObjectForm
	// Graph holds the numbered objects of Form, for
	// the documents written with pdfgraph.
	Graph *pdfgraph.Graph
	// Root is the reference of Form in Graph.
	Root pdfgraph.Ref
	// Width and Height are the size of the form, in points.
	Width, Height float64
	// Warnings aggregates the resources which could not be
	// converted and were skipped, like broken images.
	Warnings error
}

// Convert returns a PDF document made of one page showing `tree`.
// Warnings are only logged.
func Convert(tree *svgscene.Tree, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	doc, err := ConvertDocument(tree, opts)
	if err != nil {
		return nil, err
	}
	g := pdfgraph.NewGraph()
	lw := pdfgraph.NewLowerer(g)
	trailer := lw.Document(doc)
	if err := lw.Err(); err != nil {
		return nil, &InternalError{Err: err}
	}
	out, err := opts.Serialize(g, trailer)
	if err != nil {
		return nil, &InternalError{Err: fmt.Errorf("writing document: %w", err)}
	}
	return out, nil
}

// ConvertDocument returns a document made of one page showing `tree`,
// which may be modified before being written with model.Document.Write.
// Warnings are only logged.
func ConvertDocument(tree *svgscene.Tree, opts Options) (model.Document, error) {
	opts = opts.withDefaults()
	chunk, err := convert(tree, opts)
	if err != nil {
		return model.Document{}, err
	}
	content := contentstream.NewAppearance(chunk.Width, chunk.Height)
	content.AddXObject(chunk.Form)
	page := &model.PageObject{MediaBox: &model.Rectangle{Urx: chunk.Width, Ury: chunk.Height}}
	content.ApplyToPageObject(page, opts.Compress)

	var doc model.Document
	doc.Trailer.Info.Producer = producer
	doc.Catalog.Pages.Kids = []model.PageNode{page}
	return doc, nil
}

// ConvertToChunk returns a form XObject drawing `tree`, and its
// object graph. The graph may be renumbered with Graph.Renumber
// before being spliced into another document.
func ConvertToChunk(tree *svgscene.Tree, opts Options) (*Chunk, error) {
	opts = opts.withDefaults()
	chunk, err := convert(tree, opts)
	if err != nil {
		return nil, err
	}
	chunk.Graph = pdfgraph.NewGraph()
	lw := pdfgraph.NewLowerer(chunk.Graph)
	chunk.Root = lw.XObject(chunk.Form)
	if err := lw.Err(); err != nil {
		return nil, &InternalError{Err: err}
	}
	if err := chunk.Graph.Check(); err != nil {
		return nil, &InternalError{Err: err}
	}
	return chunk, nil
}

// convert draws `tree` into a form XObject. The object graph
// of the returned chunk is not built.
func convert(tree *svgscene.Tree, opts Options) (*Chunk, error) {
	if tree == nil || tree.Root == nil {
		return nil, &MalformedError{Err: errors.New("empty tree")}
	}
	viewport := opts.Viewport
	if viewport.IsEmpty() {
		viewport = svgpath.Rect{W: tree.Width, H: tree.Height}
	}
	if viewport.IsEmpty() {
		return nil, &MalformedError{Err: fmt.Errorf("invalid viewport %v", viewport)}
	}
	k := 72 / opts.DPI
	width, height := viewport.W*k, viewport.H*k

	c := newConverter(tree, opts)
	// SVG to PDF coordinates: y axis pointing up, and points
	toForm := svgpath.NewTranslation(0, height).Scale(k, -k).Translate(-viewport.X, -viewport.Y)
	full := toForm.Mult(viewBoxTransform(tree, opts.AspectRatio))

	root := contentstream.NewAppearance(width, height)
	root.Ops(contentstream.OpConcat{Matrix: pdfdraw.Matrix(full)})
	c.stack = []state{{
		ctm:     full,
		stream:  full,
		clip:    svgpath.Rect{W: width, H: height},
		clipped: true,
		opacity: 1,
	}}
	if err := c.node(&root, tree.Root); err != nil {
		return nil, classify(err)
	}
	if err := c.fonts.Finalize(); err != nil {
		return nil, fmt.Errorf("svgpdf: %w", err)
	}

	form := pdfdraw.Form(&root, svgpath.Rect{W: width, H: height}, opts.Compress)
	c.log.Debug("tree converted",
		zap.Int("resources", c.cache.Len()),
		zap.Int("cacheHits", c.cache.Hits()),
		zap.Int("fonts", c.fonts.Len()))
	return &Chunk{Form: form, Width: width, Height: height, Warnings: c.warnings}, nil
}

// viewBoxTransform maps the view box of the tree to its viewport,
// with the given aspect ratio, if not nil, instead of the one of the tree.
func viewBoxTransform(tree *svgscene.Tree, aspect *svgpath.AspectRatio) svgpath.Matrix2D {
	if aspect == nil || tree.ViewBox.IsEmpty() {
		return tree.ViewBoxTransform()
	}
	return svgpath.ViewBoxTransform(tree.ViewBox, *aspect, tree.Width, tree.Height)
}

// classify wraps the errors caused by the input into MalformedError,
// and the invariant violations into InternalError.
func classify(err error) error {
	if errors.Is(err, ErrMalformed) || errors.Is(err, ErrInternal) {
		return err
	}
	var ref *svgscene.ReferenceError
	if errors.As(err, &ref) {
		return &MalformedError{Err: err}
	}
	if errors.Is(err, rescache.ErrInvariant) {
		return &InternalError{Err: err}
	}
	return fmt.Errorf("svgpdf: %w", err)
}

// converter holds the state of one conversion.
type converter struct {
	tree *svgscene.Tree
	opts Options
	log  *zap.Logger

	cache  *rescache.Cache
	paints *paint.Encoder
	clips  *clipmask.Compositor
	fonts  *pdffont.Table

	stack    []state
	warnings error
}

func newConverter(tree *svgscene.Tree, opts Options) *converter {
	c := &converter{
		tree:  tree,
		opts:  opts,
		log:   opts.Logger,
		cache: rescache.New(),
	}
	c.paints = &paint.Encoder{Cache: c.cache, Compress: opts.Compress, Tiles: c, Tree: tree, Logger: opts.Logger}
	c.clips = &clipmask.Compositor{Cache: c.cache, Compress: opts.Compress, Tree: tree, Renderer: c}
	c.fonts = pdffont.NewTable(opts.Fonts, opts.Compress)
	c.fonts.Logger = opts.Logger
	return c
}

// warn records a resource failure: the element is skipped.
func (c *converter) warn(msg string, err error, fields ...zap.Field) {
	c.warnings = multierr.Append(c.warnings, fmt.Errorf("%s: %w", msg, err))
	c.log.Warn(msg, append(fields, zap.Error(err))...)
}
