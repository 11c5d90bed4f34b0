package filter

import (
	"image"
	"math"

	"github.com/benoitkugler/svg2pdf/svgscene"
)

// blend composites `top` over `bottom`, mixing the colors with
// the blend function of `mode`:
//
//	co = cs(1 - ab) + cb(1 - as) + as ab B(Cb, Cs)
//	ao = as + ab - as ab
func blend(top, bottom *pixmap, mode svgscene.BlendMode) *pixmap {
	out := newPixmap(top.w, top.h)
	for i := 0; i < len(out.pix); i += 4 {
		as, ab := top.pix[i+3], bottom.pix[i+3]
		var cs, cb [3]float64 // non premultiplied
		for c := 0; c < 3; c++ {
			if as > 0 {
				cs[c] = float64(top.pix[i+c] / as)
			}
			if ab > 0 {
				cb[c] = float64(bottom.pix[i+c] / ab)
			}
		}
		mixed := blendColors(cb, cs, mode)
		for c := 0; c < 3; c++ {
			out.pix[i+c] = top.pix[i+c]*(1-ab) + bottom.pix[i+c]*(1-as) + as*ab*float32(mixed[c])
		}
		out.pix[i+3] = as + ab - as*ab
	}
	return out
}

// BlendImage paints `top` over `bottom`, in place, mixing the colors
// with `mode`. Both images must have the same size.
func BlendImage(bottom, top *image.RGBA, mode svgscene.BlendMode) {
	out := blend(fromRGBA(top), fromRGBA(bottom), mode).toRGBA()
	b := bottom.Bounds()
	for y := 0; y < b.Dy(); y++ {
		copy(bottom.Pix[y*bottom.Stride:y*bottom.Stride+4*b.Dx()], out.Pix[y*out.Stride:])
	}
}

func blendColors(cb, cs [3]float64, mode svgscene.BlendMode) [3]float64 {
	if mode.IsSeparable() {
		var out [3]float64
		for c := range out {
			out[c] = blendChannel(cb[c], cs[c], mode)
		}
		return out
	}
	switch mode {
	case svgscene.Hue:
		return setLum(setSat(cs, sat(cb)), lum(cb))
	case svgscene.Saturation:
		return setLum(setSat(cb, sat(cs)), lum(cb))
	case svgscene.Color:
		return setLum(cs, lum(cb))
	default: // Luminosity
		return setLum(cb, lum(cs))
	}
}

func blendChannel(cb, cs float64, mode svgscene.BlendMode) float64 {
	switch mode {
	case svgscene.Multiply:
		return cb * cs
	case svgscene.Screen:
		return cb + cs - cb*cs
	case svgscene.Overlay:
		return blendChannel(cs, cb, svgscene.HardLight)
	case svgscene.Darken:
		return math.Min(cb, cs)
	case svgscene.Lighten:
		return math.Max(cb, cs)
	case svgscene.ColorDodge:
		if cb == 0 {
			return 0
		}
		if cs >= 1 {
			return 1
		}
		return math.Min(1, cb/(1-cs))
	case svgscene.ColorBurn:
		if cb >= 1 {
			return 1
		}
		if cs <= 0 {
			return 0
		}
		return 1 - math.Min(1, (1-cb)/cs)
	case svgscene.HardLight:
		if cs <= 0.5 {
			return cb * 2 * cs
		}
		return blendChannel(cb, 2*cs-1, svgscene.Screen)
	case svgscene.SoftLight:
		if cs <= 0.5 {
			return cb - (1-2*cs)*cb*(1-cb)
		}
		var d float64
		if cb <= 0.25 {
			d = ((16*cb-12)*cb + 4) * cb
		} else {
			d = math.Sqrt(cb)
		}
		return cb + (2*cs-1)*(d-cb)
	case svgscene.Difference:
		return math.Abs(cb - cs)
	case svgscene.Exclusion:
		return cb + cs - 2*cb*cs
	default: // Normal
		return cs
	}
}

func lum(c [3]float64) float64 { return 0.3*c[0] + 0.59*c[1] + 0.11*c[2] }

func clipColor(c [3]float64) [3]float64 {
	l := lum(c)
	n := math.Min(c[0], math.Min(c[1], c[2]))
	x := math.Max(c[0], math.Max(c[1], c[2]))
	for i := range c {
		if n < 0 {
			c[i] = l + (c[i]-l)*l/(l-n)
		}
		if x > 1 {
			c[i] = l + (c[i]-l)*(1-l)/(x-l)
		}
	}
	return c
}

func setLum(c [3]float64, l float64) [3]float64 {
	d := l - lum(c)
	return clipColor([3]float64{c[0] + d, c[1] + d, c[2] + d})
}

func sat(c [3]float64) float64 {
	return math.Max(c[0], math.Max(c[1], c[2])) - math.Min(c[0], math.Min(c[1], c[2]))
}

func setSat(c [3]float64, s float64) [3]float64 {
	// indices of the min, mid and max components
	imin, imid, imax := 0, 1, 2
	if c[imin] > c[imid] {
		imin, imid = imid, imin
	}
	if c[imid] > c[imax] {
		imid, imax = imax, imid
	}
	if c[imin] > c[imid] {
		imin, imid = imid, imin
	}
	var out [3]float64
	if c[imax] > c[imin] {
		out[imid] = (c[imid] - c[imin]) * s / (c[imax] - c[imin])
		out[imax] = s
	}
	return out
}
