// Package imaging adapts the video pipeline's frame blobs between stages:
// Preprocessor greyscale conversion here, conditioning for OCR in the ocr
// package.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/disintegration/imaging"
)

// JPEGQuality is used whenever a converted frame is re-encoded.
const JPEGQuality = 90

// ToGreyscaleJPEG decodes an arbitrary JPEG/PNG frame and re-encodes it as a
// greyscale JPEG. BGR/RGB → luminance only; no further conditioning is
// mandated at this stage (the OCR worker owns the conditioning pipeline).
func ToGreyscaleJPEG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	grey := imaging.Grayscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, grey, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode greyscale frame: %w", err)
	}
	return buf.Bytes(), nil
}

// RewriteSamplesToGreyscaled rewrites a sample object-store key's
// "/samples/" path segment to "/greyscaled/", the key layout the Preprocessor
// contract requires.
func RewriteSamplesToGreyscaled(sampleKey string) string {
	return strings.Replace(sampleKey, "/samples/", "/greyscaled/", 1)
}
