package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToGreyscaleJPEGProducesDecodableImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	out, err := ToGreyscaleJPEG(buf.Bytes())
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, 8, decoded.Bounds().Dx())
}

func TestRewriteSamplesToGreyscaled(t *testing.T) {
	got := RewriteSamplesToGreyscaled("videos/v1/samples/frame_0001.jpg")
	require.Equal(t, "videos/v1/greyscaled/frame_0001.jpg", got)
}
