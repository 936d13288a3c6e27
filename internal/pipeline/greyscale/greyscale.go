// Package greyscale implements the Preprocessor pipeline stage: convert one
// kept sample frame to greyscale and fan out the ocr job.
package greyscale

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mwork/videoindex-api/internal/domain/frame"
	"github.com/mwork/videoindex-api/internal/pkg/imaging"
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

// Preprocessor runs one greyscale job: download the sample, convert, upload,
// flip the frame's greyscale flag and enqueue the ocr job.
type Preprocessor struct {
	frames  frame.Repository
	jobs    jobqueue.Repository
	storage storage.Storage
	log     zerolog.Logger
}

func New(frames frame.Repository, jobs jobqueue.Repository, st storage.Storage, log zerolog.Logger) *Preprocessor {
	return &Preprocessor{frames: frames, jobs: jobs, storage: st, log: log}
}

// Run is idempotent: rerunning the same payload overwrites the greyscaled
// object-store key and re-flips the processed flag rather than erroring or
// inserting a duplicate row.
func (p *Preprocessor) Run(ctx context.Context, payload jobqueue.GreyscalePayload, maxRetries int) error {
	rc, err := p.storage.Get(ctx, payload.FrameKey)
	if err != nil {
		return fmt.Errorf("download sample frame: %w", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return fmt.Errorf("read sample frame: %w", err)
	}

	greyData, err := imaging.ToGreyscaleJPEG(buf.Bytes())
	if err != nil {
		return fmt.Errorf("convert frame %d to greyscale: %w", payload.FrameNumber, err)
	}

	greyKey := imaging.RewriteSamplesToGreyscaled(payload.FrameKey)
	if err := p.storage.Put(ctx, greyKey, bytes.NewReader(greyData), "image/jpeg"); err != nil {
		return fmt.Errorf("upload greyscale frame: %w", err)
	}

	if err := p.frames.MarkGreyscaled(ctx, payload.VideoID, payload.FrameNumber, greyKey); err != nil {
		return fmt.Errorf("mark frame %d greyscaled: %w", payload.FrameNumber, err)
	}

	if _, err := p.jobs.Enqueue(ctx, nil, payload.VideoID, jobqueue.TypeOCR, jobqueue.OCRPayload{
		VideoID:  payload.VideoID,
		FrameKey: greyKey,
	}, maxRetries); err != nil {
		return fmt.Errorf("enqueue ocr job for frame %d: %w", payload.FrameNumber, err)
	}

	return nil
}
