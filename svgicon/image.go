package svgicon

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // decoder
	_ "image/jpeg" // decoder
	_ "image/png"  // decoder
	"net/url"
	"strings"

	"github.com/benoitkugler/svg2pdf/svgpath"
	"github.com/benoitkugler/svg2pdf/svgscene"
	_ "golang.org/x/image/webp" // decoder
)

var errExternalImage = errors.New("only data URLs are supported for images")

var imageFormats = map[string]svgscene.ImageFormat{
	"png":  svgscene.PNG,
	"jpeg": svgscene.JPEG,
	"gif":  svgscene.GIF,
	"webp": svgscene.WEBP,
}

// parseDataURL decodes "data:[<mediatype>][;base64],<data>".
func parseDataURL(href string) (mediaType string, data []byte, err error) {
	if !strings.HasPrefix(href, "data:") {
		return "", nil, errExternalImage
	}
	comma := strings.IndexByte(href, ',')
	if comma == -1 {
		return "", nil, errors.New("invalid data URL")
	}
	header, payload := href[len("data:"):comma], href[comma+1:]
	isBase64 := strings.HasSuffix(header, ";base64")
	mediaType = strings.TrimSuffix(header, ";base64")
	if i := strings.IndexByte(mediaType, ';'); i != -1 {
		mediaType = mediaType[:i]
	}
	if isBase64 {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// try without padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		return mediaType, data, err
	}
	unescaped, err := url.PathUnescape(payload)
	return mediaType, []byte(unescaped), err
}

func imageF(c *iconCursor, el *element, st *style) (svgscene.Node, error) {
	if st.hidden {
		return nil, nil
	}
	href := el.Attrs["href"]
	_, data, err := parseDataURL(href)
	if err != nil {
		return nil, c.handleError(fmt.Sprintf("image: %s", err))
	}
	config, formatName, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, c.handleError(fmt.Sprintf("image: %s", err))
	}
	format, ok := imageFormats[formatName]
	if !ok {
		return nil, c.handleError("unsupported image format " + formatName)
	}

	ls, err := c.lengths(el, st, []string{"x", "y", "width", "height"}, []direction{horizontal, vertical, horizontal, vertical})
	if err != nil {
		return nil, c.handleError(err.Error())
	}
	viewport := svgpath.Rect{X: ls[0], Y: ls[1], W: ls[2], H: ls[3]}
	natural := svgpath.Rect{W: float64(config.Width), H: float64(config.Height)}
	// auto sizing keeps the aspect ratio
	_, hasW := el.Attrs["width"]
	_, hasH := el.Attrs["height"]
	switch {
	case !hasW && !hasH:
		viewport.W, viewport.H = natural.W, natural.H
	case !hasW && natural.H != 0:
		viewport.W = viewport.H * natural.W / natural.H
	case !hasH && natural.W != 0:
		viewport.H = viewport.W * natural.H / natural.W
	}
	if viewport.IsEmpty() || natural.IsEmpty() {
		return nil, nil
	}

	m := svgpath.NewTranslation(viewport.X, viewport.Y).
		Mult(svgpath.ViewBoxTransform(natural, parseAspectRatio(el.Attrs["preserveAspectRatio"]), viewport.W, viewport.H))
	return svgscene.NewImage(natural.Transform(m), format, data), nil
}
