package filter

import (
	"image"
	"math"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
)

// pixmap stores premultiplied RGBA values in [0, 1].
type pixmap struct {
	w, h int
	pix  []float32
}

func newPixmap(w, h int) *pixmap { return &pixmap{w: w, h: h, pix: make([]float32, 4*w*h)} }

func fromRGBA(img *image.RGBA) *pixmap {
	b := img.Bounds()
	out := newPixmap(b.Dx(), b.Dy())
	for y := 0; y < out.h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+4*out.w]
		for i, v := range row {
			out.pix[4*y*out.w+i] = float32(v) / 255
		}
	}
	return out
}

func (p *pixmap) toRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, p.w, p.h))
	for i, v := range p.pix {
		out.Pix[i] = uint8(clamp32(v)*255 + 0.5)
	}
	return out
}

func clamp32(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Rasterize runs the chain on `source`, the filtered element rendered
// into the filter region of an element with bounding box `bbox`.
// One user unit is `scaleX` x `scaleY` pixels.
func (g *Graph) Rasterize(source *image.RGBA, bbox svgpath.Rect, scaleX, scaleY float64) *image.RGBA {
	src := fromRGBA(source)
	if g.IsEmpty() {
		return newPixmap(src.w, src.h).toRGBA()
	}
	sx, sy := g.primitiveScale(bbox)
	sx, sy = sx*scaleX, sy*scaleY // pixels per primitive unit

	var alpha *pixmap
	results := make([]*pixmap, len(g.nodes))
	input := func(i int) *pixmap {
		switch i {
		case sourceGraphic:
			return src
		case sourceAlpha:
			if alpha == nil {
				alpha = newPixmap(src.w, src.h)
				for j := 3; j < len(src.pix); j += 4 {
					alpha.pix[j] = src.pix[j]
				}
			}
			return alpha
		default:
			return results[i]
		}
	}
	for i, nd := range g.nodes {
		ins := make([]*pixmap, len(nd.inputs))
		for j, in := range nd.inputs {
			ins[j] = input(in)
		}
		results[i] = apply(nd.kind, ins, src.w, src.h, sx, sy)
	}
	return results[len(results)-1].toRGBA()
}

func apply(kind svgscene.PrimitiveKind, ins []*pixmap, w, h int, sx, sy float64) *pixmap {
	switch kind := kind.(type) {
	case svgscene.Flood:
		return flood(w, h, kind.Color, kind.Opacity)
	case svgscene.Offset:
		return offset(ins[0], kind.Dx*sx, kind.Dy*sy)
	case svgscene.Merge:
		out := newPixmap(w, h)
		for _, in := range ins {
			out = composite(in, out, svgscene.Composite{Operator: svgscene.CompositeOver})
		}
		return out
	case svgscene.Blend:
		return blend(ins[0], ins[1], kind.Mode)
	case svgscene.ColorMatrixFilter:
		return colorMatrix(ins[0], kind.Matrix)
	case svgscene.Composite:
		return composite(ins[0], ins[1], kind)
	case svgscene.GaussianBlur:
		return gaussianBlur(ins[0], kind.StdDevX*sx, kind.StdDevY*sy)
	case svgscene.DropShadow:
		return dropShadow(ins[0], kind, sx, sy)
	case svgscene.Morphology:
		return morphology(ins[0], kind.Operator == svgscene.Dilate, kind.RadiusX*sx, kind.RadiusY*sy)
	default: // unsupported: pass through
		return ins[0]
	}
}

func flood(w, h int, c svgscene.PlainColor, opacity float64) *pixmap {
	out := newPixmap(w, h)
	r, g, b := c.RGB()
	a := float32(math.Max(0, math.Min(1, opacity)))
	px := [4]float32{float32(r) * a, float32(g) * a, float32(b) * a, a}
	for i := 0; i < len(out.pix); i += 4 {
		copy(out.pix[i:i+4], px[:])
	}
	return out
}

// offset translates by a whole number of pixels
func offset(in *pixmap, dx, dy float64) *pixmap {
	ox, oy := int(math.Round(dx)), int(math.Round(dy))
	out := newPixmap(in.w, in.h)
	for y := 0; y < in.h; y++ {
		srcY := y - oy
		if srcY < 0 || srcY >= in.h {
			continue
		}
		for x := 0; x < in.w; x++ {
			srcX := x - ox
			if srcX < 0 || srcX >= in.w {
				continue
			}
			copy(out.pix[4*(y*in.w+x):4*(y*in.w+x)+4], in.pix[4*(srcY*in.w+srcX):])
		}
	}
	return out
}

// composite combines `a` (in) and `b` (in2).
func composite(a, b *pixmap, op svgscene.Composite) *pixmap {
	out := newPixmap(a.w, a.h)
	k1, k2, k3, k4 := float32(op.K1), float32(op.K2), float32(op.K3), float32(op.K4)
	for i := 0; i < len(out.pix); i += 4 {
		aa, ab := a.pix[i+3], b.pix[i+3]
		var fa, fb float32 // Porter-Duff factors
		switch op.Operator {
		case svgscene.CompositeOver:
			fa, fb = 1, 1-aa
		case svgscene.CompositeIn:
			fa, fb = ab, 0
		case svgscene.CompositeOut:
			fa, fb = 1-ab, 0
		case svgscene.CompositeAtop:
			fa, fb = ab, 1-aa
		case svgscene.CompositeXor:
			fa, fb = 1-ab, 1-aa
		case svgscene.CompositeArithmetic:
			alpha := clamp32(k1*aa*ab + k2*aa + k3*ab + k4)
			for c := 0; c < 3; c++ {
				v := k1*a.pix[i+c]*b.pix[i+c] + k2*a.pix[i+c] + k3*b.pix[i+c] + k4
				out.pix[i+c] = min32(clamp32(v), alpha)
			}
			out.pix[i+3] = alpha
			continue
		}
		for c := 0; c < 4; c++ {
			out.pix[i+c] = a.pix[i+c]*fa + b.pix[i+c]*fb
		}
	}
	return out
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func colorMatrix(in *pixmap, m svgscene.ColorMatrix) *pixmap {
	out := newPixmap(in.w, in.h)
	for i := 0; i < len(in.pix); i += 4 {
		a := float64(in.pix[i+3])
		var r, g, b float64
		if a > 0 {
			r, g, b = float64(in.pix[i])/a, float64(in.pix[i+1])/a, float64(in.pix[i+2])/a
		}
		r, g, b, a = m.Apply(r, g, b, a)
		out.pix[i] = float32(r * a)
		out.pix[i+1] = float32(g * a)
		out.pix[i+2] = float32(b * a)
		out.pix[i+3] = float32(a)
	}
	return out
}

// gaussianKernel returns a normalized kernel of size 2*ceil(3*sigma)+1.
func gaussianKernel(sigma float64) []float32 {
	if sigma <= 0 {
		return []float32{1}
	}
	half := int(math.Ceil(sigma * 3))
	kernel := make([]float32, 2*half+1)
	twoSigmaSq := 2 * sigma * sigma
	var sum float64
	for i := range kernel {
		x := float64(i - half)
		v := math.Exp(-(x * x) / twoSigmaSq)
		kernel[i] = float32(v)
		sum += v
	}
	for i := range kernel {
		kernel[i] /= float32(sum)
	}
	return kernel
}

// gaussianBlur is a separable blur. Pixels outside the image
// are transparent.
func gaussianBlur(in *pixmap, sigmaX, sigmaY float64) *pixmap {
	if sigmaX < 0 || sigmaY < 0 || (sigmaX == 0 && sigmaY == 0) {
		return in
	}
	tmp := convolve(in, gaussianKernel(sigmaX), 1, 0)
	return convolve(tmp, gaussianKernel(sigmaY), 0, 1)
}

// convolve applies a 1D kernel along the direction (dx, dy).
func convolve(in *pixmap, kernel []float32, dx, dy int) *pixmap {
	if len(kernel) == 1 {
		return in
	}
	half := len(kernel) / 2
	out := newPixmap(in.w, in.h)
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			var acc [4]float32
			for k, weight := range kernel {
				sx, sy := x+(k-half)*dx, y+(k-half)*dy
				if sx < 0 || sx >= in.w || sy < 0 || sy >= in.h {
					continue
				}
				j := 4 * (sy*in.w + sx)
				acc[0] += in.pix[j] * weight
				acc[1] += in.pix[j+1] * weight
				acc[2] += in.pix[j+2] * weight
				acc[3] += in.pix[j+3] * weight
			}
			copy(out.pix[4*(y*in.w+x):], acc[:])
		}
	}
	return out
}

func dropShadow(in *pixmap, ds svgscene.DropShadow, sx, sy float64) *pixmap {
	shadow := newPixmap(in.w, in.h)
	r, g, b := ds.Color.RGB()
	op := float32(math.Max(0, math.Min(1, ds.Opacity)))
	for i := 0; i < len(in.pix); i += 4 {
		a := in.pix[i+3] * op
		shadow.pix[i], shadow.pix[i+1], shadow.pix[i+2], shadow.pix[i+3] = float32(r)*a, float32(g)*a, float32(b)*a, a
	}
	shadow = gaussianBlur(shadow, ds.StdDevX*sx, ds.StdDevY*sy)
	shadow = offset(shadow, ds.Dx*sx, ds.Dy*sy)
	return composite(in, shadow, svgscene.Composite{Operator: svgscene.CompositeOver})
}

// morphology takes the minimum (erode) or maximum (dilate)
// of each channel in a (2rx+1) x (2ry+1) window.
func morphology(in *pixmap, dilate bool, rx, ry float64) *pixmap {
	if rx < 0 || ry < 0 {
		return newPixmap(in.w, in.h)
	}
	if rx == 0 && ry == 0 {
		return in
	}
	tmp := extremum(in, int(math.Round(rx)), 1, 0, dilate)
	return extremum(tmp, int(math.Round(ry)), 0, 1, dilate)
}

func extremum(in *pixmap, radius, dx, dy int, dilate bool) *pixmap {
	if radius == 0 {
		return in
	}
	out := newPixmap(in.w, in.h)
	for y := 0; y < in.h; y++ {
		for x := 0; x < in.w; x++ {
			var acc [4]float32
			if !dilate {
				acc = [4]float32{1, 1, 1, 1}
			}
			for k := -radius; k <= radius; k++ {
				sx, sy := x+k*dx, y+k*dy
				var px [4]float32 // transparent outside
				if sx >= 0 && sx < in.w && sy >= 0 && sy < in.h {
					copy(px[:], in.pix[4*(sy*in.w+sx):])
				}
				for c := range acc {
					if dilate && px[c] > acc[c] || !dilate && px[c] < acc[c] {
						acc[c] = px[c]
					}
				}
			}
			copy(out.pix[4*(y*in.w+x):], acc[:])
		}
	}
	return out
}
