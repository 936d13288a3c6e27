package sampler

import (
	"bytes"
	"image"
	"math"

	_ "image/jpeg"
	_ "image/png"
)

// dedupCorrelationCeiling is the Pearson correlation at or above which a candidate
// frame is considered a near-duplicate of the last kept frame and dropped.
// Fixed by the algorithm, not configurable.
const dedupCorrelationCeiling = 0.97

// histogram256 computes a 256-bin grayscale histogram, L1-normalized so its
// bins sum to 1.
func histogram256(data []byte) ([256]float64, error) {
	var hist [256]float64

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return hist, err
	}

	b := img.Bounds()
	var total int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray := grayValue(img.At(x, y))
			hist[gray]++
			total++
		}
	}
	if total == 0 {
		return hist, nil
	}
	for i := range hist {
		hist[i] /= float64(total)
	}
	return hist, nil
}

func grayValue(c interface{ RGBA() (r, g, b, a uint32) }) uint8 {
	r, g, b, _ := c.RGBA()
	// Rec. 601 luma, on the RGBA channels shifted back down to 8 bits.
	y := (299*float64(r>>8) + 587*float64(g>>8) + 114*float64(b>>8)) / 1000
	if y < 0 {
		y = 0
	}
	if y > 255 {
		y = 255
	}
	return uint8(y)
}

// pearsonCorrelation computes the Pearson correlation coefficient between
// two equal-length histograms.
func pearsonCorrelation(a, b [256]float64) float64 {
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(len(a))
	meanB /= float64(len(b))

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	denom := math.Sqrt(varA * varB)
	if denom == 0 {
		return 1 // two flat histograms are considered identical
	}
	return cov / denom
}

// isDuplicate reports whether candidate is a near-duplicate of the last kept
// frame's histogram. last == nil means no frame has been kept yet, in which
// case the candidate is always kept.
func isDuplicate(candidate [256]float64, last *[256]float64) bool {
	if last == nil {
		return false
	}
	return pearsonCorrelation(candidate, *last) >= dedupCorrelationCeiling
}
