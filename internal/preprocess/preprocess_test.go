package preprocess_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrtest-dev/vrtest/internal/preprocess"
)

func encodedSquare(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocess_HashStableAcrossEqualInputs(t *testing.T) {
	raw := encodedSquare(t, 16, 16, color.White)

	a, err := preprocess.Preprocess(raw, preprocess.DefaultOptions())
	require.NoError(t, err)

	b, err := preprocess.Preprocess(append([]byte(nil), raw...), preprocess.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, a.Hash, b.Hash)
	require.Equal(t, a.Bytes, b.Bytes)
}

func TestPreprocess_HashChangesOnPerturbation(t *testing.T) {
	raw := encodedSquare(t, 16, 16, color.White)
	perturbed := encodedSquare(t, 16, 16, color.RGBA{R: 255, G: 255, B: 254, A: 255})

	// PNG output keeps the one-step blue change; the default JPEG output
	// quantizes both squares to the same bytes.
	opts := preprocess.Options{Format: preprocess.FormatPNG}

	a, err := preprocess.Preprocess(raw, opts)
	require.NoError(t, err)

	b, err := preprocess.Preprocess(perturbed, opts)
	require.NoError(t, err)

	require.NotEqual(t, a.Hash, b.Hash)
}

func TestPreprocess_ResizeFitsInsideWithoutEnlarging(t *testing.T) {
	large := encodedSquare(t, 4096, 2048, color.White)

	out, err := preprocess.Preprocess(large, preprocess.Options{
		MaxWidth: 2048, MaxHeight: 2048, Format: preprocess.FormatPNG,
	})
	require.NoError(t, err)
	require.LessOrEqual(t, out.Width, 2048)
	require.LessOrEqual(t, out.Height, 2048)

	small := encodedSquare(t, 64, 32, color.White)
	outSmall, err := preprocess.Preprocess(small, preprocess.Options{
		MaxWidth: 2048, MaxHeight: 2048, Format: preprocess.FormatPNG,
	})
	require.NoError(t, err)
	require.Equal(t, 64, outSmall.Width)
	require.Equal(t, 32, outSmall.Height)
}

func TestPreprocess_DataURLAndBase64Inputs(t *testing.T) {
	raw := encodedSquare(t, 8, 8, color.White)

	direct, err := preprocess.Preprocess(raw, preprocess.DefaultOptions())
	require.NoError(t, err)

	b64 := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	viaDataURL, err := preprocess.Preprocess(b64, preprocess.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, direct.Hash, viaDataURL.Hash)
}

func TestPreprocess_RoundTripIdempotent(t *testing.T) {
	raw := encodedSquare(t, 32, 32, color.White)

	first, err := preprocess.Preprocess(raw, preprocess.DefaultOptions())
	require.NoError(t, err)

	second, err := preprocess.Preprocess(first.Bytes, preprocess.DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, first.Hash, second.Hash)
	require.Equal(t, first.Bytes, second.Bytes)
}

func TestPreprocess_MalformedInputFailsWithDecodeError(t *testing.T) {
	_, err := preprocess.Preprocess([]byte("not an image"), preprocess.DefaultOptions())
	require.Error(t, err)

	var decErr *preprocess.DecodeError
	require.ErrorAs(t, err, &decErr)
}

