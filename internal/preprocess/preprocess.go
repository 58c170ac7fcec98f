// Package preprocess normalizes screenshot bytes (raw, base64, or file path)
// into a canonical form suitable for AI vision transport and cache keying:
// resized to fit inside a bounding box, re-encoded, and content-hashed.
package preprocess

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"golang.org/x/image/draw"
)

// Format is the output raster format requested by the caller.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"

	// DefaultMaxWidth and DefaultMaxHeight bound the fit-inside resize.
	DefaultMaxWidth  = 2048
	DefaultMaxHeight = 2048

	// DefaultJPEGQuality is used when the caller requests JPEG without
	// specifying a quality.
	DefaultJPEGQuality = 85
)

// DecodeError is returned when the input bytes cannot be decoded as a
// supported raster format.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("preprocess: decode failed: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError is returned when the normalized image cannot be re-encoded.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("preprocess: encode failed: %v", e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// Options controls resize and re-encode behavior.
type Options struct {
	MaxWidth   int
	MaxHeight  int
	Format     Format
	JPEGQuality int
}

// DefaultOptions returns the spec's default preprocessing options.
func DefaultOptions() Options {
	return Options{
		MaxWidth:    DefaultMaxWidth,
		MaxHeight:   DefaultMaxHeight,
		Format:      FormatJPEG,
		JPEGQuality: DefaultJPEGQuality,
	}
}

// PreprocessedImage is the normalized output of Preprocess.
type PreprocessedImage struct {
	Bytes            []byte
	Base64           string
	Hash             string // hex-encoded sha256 of Bytes
	OriginalSize     int
	ProcessedSize    int
	ReductionPercent float64
	Width            int
	Height           int
	Format           Format
}

// Preprocess normalizes input, which may be raw image bytes, a base64
// string (optionally with a data-URL prefix), or a filesystem path.
func Preprocess(input any, opts Options) (*PreprocessedImage, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultMaxHeight
	}
	if opts.Format == "" {
		opts.Format = FormatJPEG
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}

	raw, err := toBytes(input)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	resized := fitInside(img, opts.MaxWidth, opts.MaxHeight)

	encoded, err := encode(resized, opts)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}

	sum := sha256.Sum256(encoded)
	bounds := resized.Bounds()

	original := len(raw)
	processed := len(encoded)
	reduction := 0.0
	if original > 0 {
		reduction = (1.0 - float64(processed)/float64(original)) * 100
	}

	return &PreprocessedImage{
		Bytes:            encoded,
		Base64:           base64.StdEncoding.EncodeToString(encoded),
		Hash:             hex.EncodeToString(sum[:]),
		OriginalSize:     original,
		ProcessedSize:    processed,
		ReductionPercent: reduction,
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		Format:           opts.Format,
	}, nil
}

// toBytes normalizes the three accepted input shapes into raw bytes.
func toBytes(input any) ([]byte, error) {
	switch v := input.(type) {
	case []byte:
		return v, nil
	case string:
		if data, ok := stripDataURL(v); ok {
			return base64.StdEncoding.DecodeString(data)
		}
		if decoded, err := base64.StdEncoding.DecodeString(v); err == nil && looksLikeBase64(v) {
			return decoded, nil
		}
		data, err := os.ReadFile(v)
		if err != nil {
			return nil, fmt.Errorf("read path %q: %w", v, err)
		}
		return data, nil
	default:
		return nil, errors.New("unsupported input type")
	}
}

func stripDataURL(s string) (string, bool) {
	const prefix = "data:"
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	idx := strings.Index(s, ",")
	if idx == -1 {
		return "", false
	}
	return s[idx+1:], true
}

// looksLikeBase64 is a cheap heuristic: base64 payloads are long and
// contain only the base64 alphabet, unlike filesystem paths.
func looksLikeBase64(s string) bool {
	if len(s) < 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+' || r == '/' || r == '=':
		default:
			return false
		}
	}
	return true
}

// fitInside resizes img, preserving aspect ratio, so that it fits within
// maxW x maxH without enlarging images that are already smaller.
func fitInside(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if hs := float64(maxH) / float64(h); hs < scale {
		scale = hs
	}

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
	return dst
}

func encode(img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer

	switch opts.Format {
	case FormatPNG:
		enc := &png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	case FormatWebP:
		// No stable, pure-Go WebP encoder exists in the ecosystem used by
		// the rest of this module; fall back to PNG so the caller always
		// gets a losslessly-decodable result (documented in DESIGN.md).
		enc := &png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	case FormatJPEG:
		fallthrough
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
