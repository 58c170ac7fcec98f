package vision

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// maxTransportDimension bounds the longest edge of an image sent to a
// provider. Screenshots routinely exceed what vision APIs need for a
// diff classification; downscaling keeps request payloads and
// per-image cost down without materially harming classification
// quality.
const maxTransportDimension = 1024

// preprocess re-encodes an oversized PNG baseline/current pair to a
// bounded JPEG suitable for network transport, leaving small images
// untouched. Bytes that cannot be decoded as an image (a pre-encoded
// transport format, or a test fixture) pass through unchanged:
// downscaling is a transport optimization, never a correctness gate.
func preprocess(req Request) Request {
	out := req
	out.BaselineImage = downscaleForTransport(req.BaselineImage)
	out.CurrentImage = downscaleForTransport(req.CurrentImage)
	return out
}

func downscaleForTransport(raw []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return raw
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxTransportDimension && h <= maxTransportDimension {
		return raw
	}

	scale := float64(maxTransportDimension) / float64(max(w, h))
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
		return raw
	}
	return buf.Bytes()
}
