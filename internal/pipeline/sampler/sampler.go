// Package sampler implements the Sampler pipeline stage: turn a source video
// into a deduplicated, ordered set of keyframes and fan out greyscale jobs.
package sampler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mwork/videoindex-api/internal/domain/frame"
	"github.com/mwork/videoindex-api/internal/domain/video"
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/scenedetect"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

// Sampler runs the algorithm described in the Sampler contract.
type Sampler struct {
	videos   video.Repository
	frames   frame.Repository
	jobs     jobqueue.Repository
	storage  storage.Storage
	detector scenedetect.Detector
	tmpDir   string
	log      zerolog.Logger
}

func New(
	videos video.Repository,
	frames frame.Repository,
	jobs jobqueue.Repository,
	st storage.Storage,
	detector scenedetect.Detector,
	tmpDir string,
	log zerolog.Logger,
) *Sampler {
	return &Sampler{videos: videos, frames: frames, jobs: jobs, storage: st, detector: detector, tmpDir: tmpDir, log: log}
}

// Run processes one sample job: download the source video, detect scenes,
// dedup by histogram correlation, upload kept frames, insert Frame rows, and
// enqueue one greyscale job per kept frame.
func (s *Sampler) Run(ctx context.Context, payload jobqueue.SamplePayload, maxRetries int) error {
	v, err := s.videos.GetByID(ctx, payload.VideoID)
	if err != nil {
		return fmt.Errorf("resolve source video: %w", err)
	}
	sourceKey := stripHostPrefix(v.Path)

	localVideoPath, cleanup, err := s.downloadToTemp(ctx, sourceKey, filepath.Ext(payload.Filename))
	if err != nil {
		return fmt.Errorf("download source video: %w", err)
	}
	defer cleanup()

	outputDir, err := os.MkdirTemp(s.tmpDir, "videoindex-scenes-*")
	if err != nil {
		return fmt.Errorf("create scene output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	candidates, err := s.detector.DetectScenes(ctx, localVideoPath, outputDir)
	if err != nil {
		return fmt.Errorf("detect scenes: %w", err)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Path < candidates[j].Path })

	kept, err := s.dedupAndPersist(ctx, payload.VideoID, candidates, maxRetries)
	if err != nil {
		return err
	}

	if kept == 0 {
		s.log.Warn().Str("video_id", payload.VideoID).Msg("scene detection produced zero kept frames")
	}

	if err := s.videos.MarkProcessing(ctx, payload.VideoID); err != nil {
		return fmt.Errorf("mark video processing: %w", err)
	}
	return nil
}

func (s *Sampler) dedupAndPersist(ctx context.Context, videoID string, candidates []scenedetect.Candidate, maxRetries int) (int, error) {
	var lastHist *[256]float64
	ordinal := 0

	for _, c := range candidates {
		data, err := os.ReadFile(c.Path)
		if err != nil {
			return ordinal, fmt.Errorf("read candidate frame %s: %w", c.Path, err)
		}

		hist, err := histogram256(data)
		if err != nil {
			return ordinal, fmt.Errorf("histogram for %s: %w", c.Path, err)
		}

		if isDuplicate(hist, lastHist) {
			continue
		}
		lastHist = &hist

		ordinal++
		frameTime := c.Timestamp
		if frameTime < 0 {
			frameTime = float64(ordinal - 1)
		}

		key := fmt.Sprintf("videos/%s/samples/frame_%04d.jpg", videoID, ordinal)
		if err := s.storage.Put(ctx, key, bytes.NewReader(data), "image/jpeg"); err != nil {
			s.log.Error().Err(err).Str("video_id", videoID).Int("frame_number", ordinal).Msg("failed to upload sampled frame, skipping")
			ordinal--
			continue
		}

		f := &frame.Frame{
			VideoID:              videoID,
			FrameNumber:          ordinal,
			FrameTime:            frameTime,
			Path:                 key,
			GreyscaleIsProcessed: false,
		}
		if err := s.frames.UpsertByOrdinal(ctx, f); err != nil {
			return ordinal, fmt.Errorf("upsert frame %d: %w", ordinal, err)
		}

		if _, err := s.jobs.Enqueue(ctx, nil, videoID, jobqueue.TypeGreyscale, jobqueue.GreyscalePayload{
			VideoID:     videoID,
			FrameNumber: ordinal,
			FrameKey:    key,
		}, maxRetries); err != nil {
			return ordinal, fmt.Errorf("enqueue greyscale job for frame %d: %w", ordinal, err)
		}
	}

	return ordinal, nil
}

func (s *Sampler) downloadToTemp(ctx context.Context, key, ext string) (string, func(), error) {
	rc, err := s.storage.Get(ctx, key)
	if err != nil {
		return "", func() {}, err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(s.tmpDir, "videoindex-source-*"+ext)
	if err != nil {
		return "", func() {}, err
	}
	path := tmp.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		cleanup()
		return "", func() {}, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", func() {}, err
	}
	return path, cleanup, nil
}

// stripHostPrefix strips a leading "https://host/bucket/" or "s3://bucket/"
// prefix from a stored path, per the Sampler contract's step 1. Paths are
// written as bare object-store keys by Ingress, so this is a no-op in
// practice but guards against a future backend that persists a full URL.
func stripHostPrefix(path string) string {
	idx := strings.Index(path, "://")
	if idx == -1 {
		return path
	}
	rest := path[idx+3:]
	// s3://bucket/key carries the bucket as its host; an http(s) URL carries
	// the host first and the bucket as the next path segment.
	segments := 2
	if path[:idx] == "s3" {
		segments = 1
	}
	for i := 0; i < segments; i++ {
		slash := strings.Index(rest, "/")
		if slash == -1 {
			return path
		}
		rest = rest[slash+1:]
	}
	return rest
}
