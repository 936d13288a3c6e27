package ocr

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard(size int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y)%2 == 0 {
				g.SetGray(x, y, color.Gray{Y: 200})
			} else {
				g.SetGray(x, y, color.Gray{Y: 40})
			}
		}
	}
	return g
}

func TestConditionProducesBinaryImageSameSize(t *testing.T) {
	src := checkerboard(24)
	out := Condition(src)

	require.Equal(t, src.Bounds(), out.Bounds())

	for _, p := range out.Pix {
		assert.True(t, p == 0 || p == 255, "adaptive threshold output must be binary")
	}
}

func TestInvertFlipsDarkImages(t *testing.T) {
	dark := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range dark.Pix {
		dark.Pix[i] = 10
	}

	assert.Less(t, meanIntensity(dark), 127.0)
	inverted := invert(dark)
	assert.Greater(t, meanIntensity(inverted), 127.0)
}

func TestSharpenPreservesFlatRegions(t *testing.T) {
	flat := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}
	out := sharpen3x3(flat)
	for _, p := range out.Pix {
		assert.Equal(t, uint8(128), p)
	}
}
