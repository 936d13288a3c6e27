// Package ocr runs the six-step image conditioning pipeline ahead of text
// recognition and wraps the OCR engine call itself. No pack example wires an
// OpenCV/CLAHE binding, so this conditioning is written directly against the
// standard image library rather than reached for a third-party vision
// package the corpus never uses.
package ocr

import (
	"image"
	"image/color"
	"math"
)

const (
	claheTileSize  = 8
	claheClipLimit = 2.0

	nlmStrength       = 27.0 // within the documented 25-30 range
	nlmTemplateWindow = 7
	nlmSearchWindow   = 21

	adaptiveBlockSize = 17
	adaptiveC         = 8.0
)

var sharpenKernel = [3][3]int{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

// Condition runs the documented six-step pipeline over img and returns the
// resulting binary (thresholded) grayscale image ready for OCR.
func Condition(img image.Image) *image.Gray {
	g := toGray(img)
	if meanIntensity(g) < 127 {
		g = invert(g)
	}
	g = clahe(g, claheTileSize, claheClipLimit)
	g = nlmDenoise(g, nlmStrength, nlmTemplateWindow, nlmSearchWindow)
	g = sharpen3x3(g)
	g = adaptiveGaussianThreshold(g, adaptiveBlockSize, adaptiveC)
	return g
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func meanIntensity(g *image.Gray) float64 {
	b := g.Bounds()
	var sum int64
	n := int64(b.Dx()) * int64(b.Dy())
	if n == 0 {
		return 0
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride : (y-b.Min.Y)*g.Stride+b.Dx()]
		for _, p := range row {
			sum += int64(p)
		}
	}
	return float64(sum) / float64(n)
}

func invert(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, p := range g.Pix {
		out.Pix[i] = 255 - p
	}
	return out
}

// clahe applies contrast-limited adaptive histogram equalization over a
// tileSize x tileSize grid, clipping each tile's histogram at clipLimit
// (expressed as a multiple of the tile's average bin count) before
// redistributing the clipped mass and interpolating between neighboring
// tile mappings.
func clahe(g *image.Gray, tileSize int, clipLimit float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return g
	}

	tilesX := (w + tileSize - 1) / tileSize
	tilesY := (h + tileSize - 1) / tileSize

	mappings := make([][][256]byte, tilesY)
	for ty := 0; ty < tilesY; ty++ {
		mappings[ty] = make([][256]byte, tilesX)
		for tx := 0; tx < tilesX; tx++ {
			mappings[ty][tx] = tileMapping(g, tx, ty, tileSize, clipLimit)
		}
	}

	out := image.NewGray(b)
	for y := 0; y < h; y++ {
		ty := float64(y)/float64(tileSize) - 0.5
		ty0 := clampInt(int(math.Floor(ty)), 0, tilesY-1)
		ty1 := clampInt(ty0+1, 0, tilesY-1)
		fy := ty - float64(ty0)
		if fy < 0 {
			fy = 0
		}

		for x := 0; x < w; x++ {
			tx := float64(x)/float64(tileSize) - 0.5
			tx0 := clampInt(int(math.Floor(tx)), 0, tilesX-1)
			tx1 := clampInt(tx0+1, 0, tilesX-1)
			fx := tx - float64(tx0)
			if fx < 0 {
				fx = 0
			}

			v := g.GrayAt(b.Min.X+x, b.Min.Y+y).Y

			v00 := float64(mappings[ty0][tx0][v])
			v01 := float64(mappings[ty0][tx1][v])
			v10 := float64(mappings[ty1][tx0][v])
			v11 := float64(mappings[ty1][tx1][v])

			top := v00*(1-fx) + v01*fx
			bot := v10*(1-fx) + v11*fx
			val := top*(1-fy) + bot*fy

			out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: uint8(clampFloat(val, 0, 255))})
		}
	}
	return out
}

func tileMapping(g *image.Gray, tx, ty, tileSize int, clipLimit float64) [256]byte {
	b := g.Bounds()
	x0 := tx * tileSize
	y0 := ty * tileSize
	x1 := clampInt(x0+tileSize, 0, b.Dx())
	y1 := clampInt(y0+tileSize, 0, b.Dy())

	var hist [256]int
	count := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			hist[g.GrayAt(b.Min.X+x, b.Min.Y+y).Y]++
			count++
		}
	}
	if count == 0 {
		var identity [256]byte
		for i := range identity {
			identity[i] = byte(i)
		}
		return identity
	}

	clip := int(clipLimit * float64(count) / 256.0)
	if clip < 1 {
		clip = 1
	}

	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	redistribute := excess / 256
	for i := range hist {
		hist[i] += redistribute
	}

	var cdf [256]int
	running := 0
	for i := range hist {
		running += hist[i]
		cdf[i] = running
	}

	var mapping [256]byte
	for i := range mapping {
		mapping[i] = byte(clampFloat(float64(cdf[i])*255.0/float64(count), 0, 255))
	}
	return mapping
}

// nlmDenoise is a non-local-means filter: for each pixel, average over
// candidate pixels in the search window weighted by the similarity of the
// templateWindow patch around each candidate to the patch around the target
// pixel, with strength h controlling the weighting falloff.
func nlmDenoise(g *image.Gray, h float64, templateWindow, searchWindow int) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	tHalf := templateWindow / 2
	sHalf := searchWindow / 2
	hh := h * h

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var weightSum, valueSum float64

			for dy := -sHalf; dy <= sHalf; dy++ {
				for dx := -sHalf; dx <= sHalf; dx++ {
					cx, cy := x+dx, y+dy
					if cx < 0 || cy < 0 || cx >= b.Dx() || cy >= b.Dy() {
						continue
					}

					dist := patchDistance(g, x, y, cx, cy, tHalf)
					weight := math.Exp(-dist / hh)
					weightSum += weight
					valueSum += weight * float64(g.GrayAt(b.Min.X+cx, b.Min.Y+cy).Y)
				}
			}

			val := float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if weightSum > 0 {
				val = valueSum / weightSum
			}
			out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: uint8(clampFloat(val, 0, 255))})
		}
	}
	return out
}

func patchDistance(g *image.Gray, ax, ay, bx, by, half int) float64 {
	b := g.Bounds()
	var sum float64
	n := 0
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			ax2, ay2 := ax+dx, ay+dy
			bx2, by2 := bx+dx, by+dy
			if ax2 < 0 || ay2 < 0 || ax2 >= b.Dx() || ay2 >= b.Dy() {
				continue
			}
			if bx2 < 0 || by2 < 0 || bx2 >= b.Dx() || by2 >= b.Dy() {
				continue
			}
			d := float64(g.GrayAt(b.Min.X+ax2, b.Min.Y+ay2).Y) - float64(g.GrayAt(b.Min.X+bx2, b.Min.Y+by2).Y)
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func sharpen3x3(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var sum int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					weight := sharpenKernel[ky+1][kx+1]
					if weight == 0 {
						continue
					}
					px := clampInt(x+kx, 0, b.Dx()-1)
					py := clampInt(y+ky, 0, b.Dy()-1)
					sum += weight * int(g.GrayAt(b.Min.X+px, b.Min.Y+py).Y)
				}
			}
			out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: uint8(clampInt(sum, 0, 255))})
		}
	}
	return out
}

// adaptiveGaussianThreshold thresholds each pixel against a Gaussian-weighted
// local mean over a blockSize x blockSize neighborhood minus constant C,
// producing a binary image (0 or 255).
func adaptiveGaussianThreshold(g *image.Gray, blockSize int, c float64) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	half := blockSize / 2
	sigma := float64(blockSize) / 6.0
	if sigma <= 0 {
		sigma = 1
	}

	kernel := make([]float64, blockSize)
	for i := 0; i < blockSize; i++ {
		d := float64(i - half)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			var weighted, weightTotal float64
			for ky := 0; ky < blockSize; ky++ {
				py := clampInt(y+ky-half, 0, b.Dy()-1)
				wy := kernel[ky]
				for kx := 0; kx < blockSize; kx++ {
					px := clampInt(x+kx-half, 0, b.Dx()-1)
					weight := wy * kernel[kx]
					weighted += weight * float64(g.GrayAt(b.Min.X+px, b.Min.Y+py).Y)
					weightTotal += weight
				}
			}

			localMean := weighted / weightTotal
			v := float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)

			if v > localMean-c {
				out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: 255})
			} else {
				out.SetGray(b.Min.X+x, b.Min.Y+y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
