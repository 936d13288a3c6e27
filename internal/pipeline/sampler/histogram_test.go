package sampler

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidJPEG(t *testing.T, c color.Gray) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = c.Y
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestHistogram256IsNormalized(t *testing.T) {
	data := solidJPEG(t, color.Gray{Y: 100})
	hist, err := histogram256(data)
	require.NoError(t, err)

	var sum float64
	for _, v := range hist {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestPearsonCorrelationIdenticalHistogramsIsOne(t *testing.T) {
	data := solidJPEG(t, color.Gray{Y: 100})
	hist, err := histogram256(data)
	require.NoError(t, err)

	corr := pearsonCorrelation(hist, hist)
	assert.InDelta(t, 1.0, corr, 1e-6)
}

func TestIsDuplicateFirstFrameAlwaysKept(t *testing.T) {
	data := solidJPEG(t, color.Gray{Y: 100})
	hist, err := histogram256(data)
	require.NoError(t, err)

	assert.False(t, isDuplicate(hist, nil))
}

func TestIsDuplicateDetectsRepeatedFrames(t *testing.T) {
	// Two separately re-encoded frames of the same scene, as scene detection
	// emits when a shot holds steady across the threshold window.
	dataA := solidJPEG(t, color.Gray{Y: 100})
	dataB := solidJPEG(t, color.Gray{Y: 100})

	histA, err := histogram256(dataA)
	require.NoError(t, err)
	histB, err := histogram256(dataB)
	require.NoError(t, err)

	assert.True(t, isDuplicate(histB, &histA))
}

func TestIsDuplicateKeepsDistinctFrames(t *testing.T) {
	dataA := solidJPEG(t, color.Gray{Y: 20})
	dataB := solidJPEG(t, color.Gray{Y: 220})

	histA, err := histogram256(dataA)
	require.NoError(t, err)
	histB, err := histogram256(dataB)
	require.NoError(t, err)

	assert.False(t, isDuplicate(histB, &histA))
}
