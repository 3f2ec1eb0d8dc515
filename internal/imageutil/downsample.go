package imageutil

import (
	"bytes"
	"errors"
	"image"
	"image/png"

	// register decoders for the formats the CDN and plain references serve
	_ "image/gif"
	_ "image/jpeg"
)

// Downsample decodes raw image bytes and scales the image so its longer
// side does not exceed maxDimension, preserving aspect ratio. Images that
// already fit are re-encoded unchanged in size. The result is always PNG.
//
// This is a decode-then-resize path: the full-resolution image is
// materialized in memory before scaling.
func Downsample(data []byte, maxDimension int) ([]byte, error) {
	if maxDimension <= 0 {
		return nil, errors.New("invalid max dimension")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("source image has zero size")
	}

	dstW, dstH := w, h
	if w > maxDimension || h > maxDimension {
		if w >= h {
			dstW = maxDimension
			dstH = h * maxDimension / w
		} else {
			dstH = maxDimension
			dstW = w * maxDimension / h
		}
		if dstW < 1 {
			dstW = 1
		}
		if dstH < 1 {
			dstH = 1
		}
	}

	out, err := ResizeImage(img, dstW, dstH)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
