// Package imaging bounds image dimensions before they are sent to the embedding model.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// DefaultMaxDimension is the largest width or height forwarded to the model.
const DefaultMaxDimension = 2048

const jpegQuality = 90

// Fit scales the image so that neither side exceeds maxDim, preserving aspect ratio.
// Images already within bounds are returned unchanged. The output keeps the input format.
// Undecodable bytes wrap domain.ErrUnsupportedMedia.
func Fit(data []byte, maxDim int) ([]byte, string, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", domain.UnsupportedMediaf("decode image header: %v", err)
	}
	contentType := "image/" + format
	if cfg.Width <= maxDim && cfg.Height <= maxDim {
		return data, contentType, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", domain.UnsupportedMediaf("decode image: %v", err)
	}

	w, h := scaled(cfg.Width, cfg.Height, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	default:
		return nil, "", domain.UnsupportedMediaf("image format %q", format)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), contentType, nil
}

// scaled returns dimensions fitting inside maxDim x maxDim with the same aspect ratio.
func scaled(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}
