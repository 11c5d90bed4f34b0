// Command svg2pdf converts an SVG file to a one page PDF document.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/benoitkugler/svg2pdf/paint"
	"github.com/benoitkugler/svg2pdf/pdffont"
	"github.com/benoitkugler/svg2pdf/svgicon"
	"github.com/benoitkugler/svg2pdf/svgpdf"
	"github.com/benoitkugler/svg2pdf/svgraster"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
)

// fontFlags collects the -font family=file flags.
type fontFlags struct {
	fonts svgscene.MapResolver
	first svgscene.FontID
}

func (f *fontFlags) String() string { return fmt.Sprint(len(f.fonts), " fonts") }

func (f *fontFlags) Set(v string) error {
	kv := strings.SplitN(v, "=", 2)
	if len(kv) != 2 {
		return fmt.Errorf("expected family=file, got %q", v)
	}
	data, err := os.ReadFile(kv[1])
	if err != nil {
		return err
	}
	id := svgscene.FontID(strings.ToLower(strings.TrimSpace(kv[0])))
	if f.first == "" {
		f.first = id
	}
	f.fonts[id] = data
	return nil
}

func main() {
	fonts := fontFlags{fonts: svgscene.MapResolver{}}
	textToPaths := flag.Bool("text-to-paths", false, "Draw text as paths instead of embedding fonts")
	rasterScale := flag.Float64("raster-scale", 1.5, "Resolution of rasterized filters, relative to the page")
	compress := flag.Bool("compress", true, "Compress the PDF streams")
	dpi := flag.Float64("dpi", 72, "Resolution of the SVG user units")
	strict := flag.Bool("strict", false, "Fail on unsupported SVG content")
	preview := flag.String("preview", "", "Also render a PNG preview to this file, one pixel per user unit")
	verbose := flag.Bool("v", false, "Log debug information")
	flag.Var(&fonts, "font", "Font file for a family, as family=file (repeatable); the first one is the default")
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Printf("Usage: %s [options] input.svg output.pdf\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}
	inputFile, outputFile := flag.Arg(0), flag.Arg(1)

	var (
		logger *zap.Logger
		err    error
	)
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	paint.SetLogger(logger)
	pdffont.SetLogger(logger)

	f, err := os.Open(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	parseOpts := svgicon.DefaultOptions()
	if *strict {
		parseOpts.ErrorMode = svgicon.StrictErrorMode
	}
	parseOpts.Fonts = fonts.fonts
	parseOpts.DefaultFont = fonts.first
	parseOpts.DPI = *dpi
	parseOpts.Logger = logger
	icon, err := svgicon.ReadIconStream(f, parseOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing SVG: %v\n", err)
		os.Exit(1)
	}

	opts := svgpdf.DefaultOptions()
	opts.EmbedText = !*textToPaths
	opts.RasterScale = *rasterScale
	opts.Compress = *compress
	opts.DPI = *dpi
	opts.Fonts = fonts.fonts
	opts.Logger = logger
	content, err := svgpdf.Convert(icon.Tree, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error converting to PDF: %v\n", err)
		os.Exit(1)
	}
	if err = os.WriteFile(outputFile, content, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}

	if *preview != "" {
		outlines := pdffont.NewTable(fonts.fonts, false)
		img, err := svgraster.RasterTree(icon.Tree, outlines, 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering preview: %v\n", err)
			os.Exit(1)
		}
		out, err := os.Create(*preview)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating preview file: %v\n", err)
			os.Exit(1)
		}
		defer out.Close()
		if err = png.Encode(out, img); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding PNG: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("converted", zap.String("input", inputFile), zap.String("output", outputFile))
}
