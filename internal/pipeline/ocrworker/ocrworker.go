// Package ocrworker implements the OCR worker pipeline stage: condition one
// greyscale frame, recognize its text, upsert the OcrFrame row, and promote
// the parent Video to ready once every sibling frame has been processed.
package ocrworker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/mwork/videoindex-api/internal/domain/frame"
	"github.com/mwork/videoindex-api/internal/domain/video"
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/ocr"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

// IndexUpdatedChannel is the pub/sub channel a frame's OcrFrame upsert
// notifies on, so any process watching search freshness can react without
// polling.
const IndexUpdatedChannel = "ocr-index-updated"

// Worker runs one ocr job end to end.
type Worker struct {
	videos  video.Repository
	frames  frame.Repository
	storage storage.Storage
	engine  ocr.Engine
	redis   *redis.Client // optional; nil disables the ocr-index-updated publish
	log     zerolog.Logger
}

func New(videos video.Repository, frames frame.Repository, st storage.Storage, engine ocr.Engine, rdb *redis.Client, log zerolog.Logger) *Worker {
	return &Worker{videos: videos, frames: frames, storage: st, engine: engine, redis: rdb, log: log}
}

// Run downloads the greyscale frame, conditions and recognizes it, upserts
// the OcrFrame row keyed by frame_key, and checks whether the parent video
// is now fully indexed. A fatal OCR failure matches ocr.ErrOCRFatal under
// errors.Is, which the caller uses to fail the job via Fail instead of Nack,
// so no further attempt is scheduled.
func (w *Worker) Run(ctx context.Context, payload jobqueue.OCRPayload) error {
	rc, err := w.storage.Get(ctx, payload.FrameKey)
	if err != nil {
		return fmt.Errorf("download greyscale frame: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return fmt.Errorf("read greyscale frame: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("decode greyscale frame: %w", err)
	}

	text, err := ocr.Recognize(ctx, w.engine, img)
	if err != nil {
		return err // may be ocr.ErrOCRFatal; caller branches on it
	}

	if err := w.frames.UpsertOcrFrame(ctx, payload.VideoID, payload.FrameKey, text); err != nil {
		return fmt.Errorf("upsert ocr frame: %w", err)
	}

	w.publishIndexUpdated(ctx, payload.VideoID, payload.FrameKey)

	if err := w.checkParentCompletion(ctx, payload.VideoID); err != nil {
		return fmt.Errorf("check parent completion: %w", err)
	}

	return nil
}

// checkParentCompletion promotes the video to ready once every Frame row has
// a matching processed OcrFrame. Frame count must be greater than zero so a
// video that never got any kept frames never silently flips to ready.
func (w *Worker) checkParentCompletion(ctx context.Context, videoID string) error {
	total, err := w.frames.CountForVideo(ctx, videoID)
	if err != nil {
		return fmt.Errorf("count frames: %w", err)
	}
	if total == 0 {
		return nil
	}

	processed, err := w.frames.CountProcessedOcrFrames(ctx, videoID)
	if err != nil {
		return fmt.Errorf("count processed ocr frames: %w", err)
	}

	if processed >= total {
		if err := w.videos.MarkReady(ctx, videoID); err != nil {
			return fmt.Errorf("mark video ready: %w", err)
		}
	}
	return nil
}

func (w *Worker) publishIndexUpdated(ctx context.Context, videoID, frameKey string) {
	if w.redis == nil {
		return
	}
	if err := w.redis.Publish(ctx, IndexUpdatedChannel, videoID+":"+frameKey).Err(); err != nil {
		w.log.Warn().Err(err).Str("video_id", videoID).Msg("failed to publish ocr-index-updated event")
	}
}
