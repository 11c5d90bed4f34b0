package svgpdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/benoitkugler/pdf/contentstream"
	"github.com/benoitkugler/pdf/model"
	"github.com/benoitkugler/svg2pdf/pdfdraw"
	"github.com/benoitkugler/svg2pdf/rescache"
	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// drawImage paints `img` into `r`, in a y-down user space: the unit
// square of the image is flipped.
func drawImage(b *contentstream.Appearance, img *model.XObjectImage, r svgpath.Rect) {
	b.AddXObjectDims(img, r.X, r.Y+r.H, r.W, -r.H)
}

// image draws a raster image. Images which can't be decoded
// are skipped, with a warning.
func (c *converter) image(b *contentstream.Appearance, img *svgscene.Image) error {
	if img.Rect.IsEmpty() {
		return nil
	}
	obj, err := c.imageXObject(img)
	if err != nil {
		c.warn("skipping image", err, zap.String("node", img.ID))
		return nil
	}
	drawImage(b, obj, img.Rect)
	return nil
}

func (c *converter) imageXObject(img *svgscene.Image) (*model.XObjectImage, error) {
	if img.Decoded == nil && img.Format == svgscene.JPEG {
		if obj, ok, err := c.jpegObject(img.Data); ok || err != nil {
			return obj, err
		}
	}
	src := img.Decoded
	if src == nil {
		if len(img.Data) == 0 {
			return nil, fmt.Errorf("image %s: no data", img.ID)
		}
		var err error
		src, err = c.opts.DecodeRaster(img.Data)
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", img.ID, err)
		}
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("image %s: empty bounds", img.ID)
	}
	return c.imageObject(src)
}

// jpegObject embeds JPEG data as is, using the DCTDecode filter.
// It returns false for the color models it does not handle.
func (c *converter) jpegObject(data []byte) (*model.XObjectImage, bool, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, false, err
	}
	var colorSpace model.ColorSpaceName
	switch cfg.ColorModel {
	case color.YCbCrModel:
		colorSpace = model.ColorSpaceRGB
	case color.GrayModel:
		colorSpace = model.ColorSpaceGray
	default: // CMYK
		return nil, false, nil
	}
	key := rescache.NewHasher("jpeg").Bytes(data).Sum()
	obj, err := rescache.Intern(c.cache, key, func() (*model.XObjectImage, error) {
		return &model.XObjectImage{
			Image: model.Image{
				Stream:           model.Stream{Filter: model.Filters{{Name: model.DCT}}, Content: data},
				BitsPerComponent: 8,
				Width:            cfg.Width,
				Height:           cfg.Height,
			},
			ColorSpace: colorSpace,
		}, nil
	})
	return obj, true, err
}

// imageObject converts `img` to an RGB image XObject. The alpha channel
// of non opaque images is stored in a soft mask image, attached to the
// XObject: only one image is drawn.
// Image data is always compressed.
func (c *converter) imageObject(img image.Image) (*model.XObjectImage, error) {
	bounds := img.Bounds()
	nrgba := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)

	w, h := bounds.Dx(), bounds.Dy()
	rgb := make([]byte, 0, 3*w*h)
	alpha := make([]byte, 0, w*h)
	opaque := true
	for i := 0; i < len(nrgba.Pix); i += 4 {
		px := nrgba.Pix[i : i+4 : i+4]
		rgb = append(rgb, px[0], px[1], px[2])
		alpha = append(alpha, px[3])
		opaque = opaque && px[3] == 0xff
	}

	key := rescache.NewHasher("image").Int(w).Int(h).Bytes(nrgba.Pix).Sum()
	return rescache.Intern(c.cache, key, func() (*model.XObjectImage, error) {
		samples, err := pdfdraw.NewStream(rgb, true)
		if err != nil {
			return nil, err
		}
		out := &model.XObjectImage{
			Image:      model.Image{Stream: samples, BitsPerComponent: 8, Width: w, Height: h},
			ColorSpace: model.ColorSpaceRGB,
		}
		if !opaque {
			mask, err := pdfdraw.NewStream(alpha, true)
			if err != nil {
				return nil, err
			}
			out.SMask = &model.ImageSMask{Image: model.Image{Stream: mask, BitsPerComponent: 8, Width: w, Height: h}}
		}
		return out, nil
	})
}
