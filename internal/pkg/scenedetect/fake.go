package scenedetect

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
)

// FakeDetector is a deterministic in-process stand-in for FFmpegDetector,
// used by pipeline tests that must not depend on an ffmpeg binary being
// installed. It writes solid-color JPEGs to outputDir and reports the
// caller-supplied timestamps, exercising the same contract as the real
// detector.
type FakeDetector struct {
	// Colors lists one solid fill color per scene to synthesize.
	Colors []color.RGBA
	// Timestamps reports the per-scene timestamp to attach, or nil to
	// signal "unavailable" (-1) and force the ordinal-1-seconds fallback.
	Timestamps []float64
	Width      int
	Height     int
}

func (f *FakeDetector) DetectScenes(ctx context.Context, videoPath, outputDir string) ([]Candidate, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	width, height := f.Width, f.Height
	if width == 0 {
		width = 64
	}
	if height == 0 {
		height = 48
	}

	candidates := make([]Candidate, 0, len(f.Colors))
	for i, c := range f.Colors {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.Set(x, y, c)
			}
		}

		path := filepath.Join(outputDir, sceneFilename(i))
		file, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
		file.Close()
		if err != nil {
			return nil, err
		}

		ts := -1.0
		if i < len(f.Timestamps) {
			ts = f.Timestamps[i]
		}
		candidates = append(candidates, Candidate{Path: path, Timestamp: ts})
	}

	return candidates, nil
}

func sceneFilename(i int) string {
	return fmt.Sprintf("scene_%04d.jpg", i)
}
