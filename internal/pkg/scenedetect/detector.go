// Package scenedetect is the documented external-collaborator seam for scene
// boundary detection (spec §1: "scene-detection engine internals" are out of
// scope). It exposes a small interface so the Sampler pipeline stage can be
// driven by a real ffmpeg-backed detector in production and a deterministic
// stand-in in tests.
package scenedetect

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
)

// Candidate is one detected scene-boundary frame extracted to disk.
type Candidate struct {
	Path string // local filesystem path to the extracted JPEG
	// Timestamp is the real, tool-reported time in seconds from the start of
	// the video, or -1 if the detector could not determine it (callers fall
	// back to ordinal-1 seconds per spec.md §4.3 step 5).
	Timestamp float64
}

// Detector detects scene-boundary frames in a video file and extracts them
// to outputDir as sequentially numbered JPEGs.
type Detector interface {
	DetectScenes(ctx context.Context, videoPath, outputDir string) ([]Candidate, error)
}

// FFmpegDetector shells out to ffmpeg's scene-change filter, grounded on the
// pack's scene-based frame extraction (ffmpeg.go's extractSceneFrames /
// showinfo pattern). Real per-frame timestamps are parsed from the
// "showinfo" filter's pts_time field in stderr.
type FFmpegDetector struct {
	ffmpegPath string
	threshold  float64 // scene-change score threshold passed to the scene filter
}

// NewFFmpegDetector resolves ffmpeg on PATH. threshold defaults to 0.3 when
// zero.
func NewFFmpegDetector(threshold float64) (*FFmpegDetector, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	if threshold <= 0 {
		threshold = 0.3
	}
	return &FFmpegDetector{ffmpegPath: path, threshold: threshold}, nil
}

var showinfoPtsTime = regexp.MustCompile(`pts_time:([0-9]+\.?[0-9]*)`)

func (d *FFmpegDetector) DetectScenes(ctx context.Context, videoPath, outputDir string) ([]Candidate, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scene output dir: %w", err)
	}

	outputPattern := filepath.Join(outputDir, "scene_%04d.jpg")

	cmd := exec.CommandContext(ctx, d.ffmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf("select='gt(scene\\,%.2f)',showinfo", d.threshold),
		"-vsync", "vfr",
		"-q:v", "2",
		"-y",
		outputPattern,
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("attach ffmpeg stderr: %w", err)
	}

	var timestamps []float64
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			if m := showinfoPtsTime.FindStringSubmatch(line); m != nil {
				if ts, err := strconv.ParseFloat(m[1], 64); err == nil {
					timestamps = append(timestamps, ts)
				}
			}
		}
	}()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	<-done
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("ffmpeg scene detection failed: %w", err)
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("read scene output dir: %w", err)
	}

	var candidates []Candidate
	idx := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts := -1.0
		if idx < len(timestamps) {
			ts = timestamps[idx]
		}
		candidates = append(candidates, Candidate{
			Path:      filepath.Join(outputDir, entry.Name()),
			Timestamp: ts,
		})
		idx++
	}

	return candidates, nil
}
