package ocrworker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwork/videoindex-api/internal/domain/frame"
	"github.com/mwork/videoindex-api/internal/domain/video"
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/ocr"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

type fakeVideos struct {
	markedReady []string
}

func (f *fakeVideos) Create(ctx context.Context, tx *sqlx.Tx, v *video.Video) error { return nil }
func (f *fakeVideos) GetByID(ctx context.Context, id string) (*video.Video, error) {
	return &video.Video{ID: id}, nil
}
func (f *fakeVideos) UpdatePath(ctx context.Context, id, path string) error { return nil }
func (f *fakeVideos) MarkProcessing(ctx context.Context, id string) error  { return nil }
func (f *fakeVideos) MarkReady(ctx context.Context, id string) error {
	f.markedReady = append(f.markedReady, id)
	return nil
}
func (f *fakeVideos) MarkFailed(ctx context.Context, id string) error     { return nil }
func (f *fakeVideos) Summary(ctx context.Context) (*video.Summary, error) { return nil, nil }
func (f *fakeVideos) List(ctx context.Context, limit, offset int) ([]video.ListItem, error) {
	return nil, nil
}
func (f *fakeVideos) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeFrames struct {
	total          int
	processed      int
	upsertedText   string
	upsertedCalled bool
}

func (f *fakeFrames) Insert(ctx context.Context, fr *frame.Frame) error          { return nil }
func (f *fakeFrames) UpsertByOrdinal(ctx context.Context, fr *frame.Frame) error { return nil }
func (f *fakeFrames) MarkGreyscaled(ctx context.Context, videoID string, frameNumber int, greyscaleKey string) error {
	return nil
}
func (f *fakeFrames) CountForVideo(ctx context.Context, videoID string) (int, error) {
	return f.total, nil
}
func (f *fakeFrames) ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]frame.WithOcrText, error) {
	return nil, nil
}
func (f *fakeFrames) UpsertOcrFrame(ctx context.Context, videoID, frameKey, ocrText string) error {
	f.upsertedCalled = true
	f.upsertedText = ocrText
	f.processed++
	return nil
}
func (f *fakeFrames) CountProcessedOcrFrames(ctx context.Context, videoID string) (int, error) {
	return f.processed, nil
}

type fakeStorage struct {
	frameData []byte
}

func (s *fakeStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	return nil
}
func (s *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.frameData)), nil
}
func (s *fakeStorage) Delete(ctx context.Context, key string) error         { return nil }
func (s *fakeStorage) Exists(ctx context.Context, key string) (bool, error) { return true, nil }
func (s *fakeStorage) GetURL(key string) string                            { return "https://example.test/" + key }
func (s *fakeStorage) GetInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	return nil, nil
}
func (s *fakeStorage) PresignPutURL(ctx context.Context, key string, expires time.Duration, contentType string) (string, error) {
	return "", nil
}
func (s *fakeStorage) PresignGetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "", nil
}

func greyscaleJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestWorkerRunUpsertsTextAndPromotesVideoWhenComplete(t *testing.T) {
	videos := &fakeVideos{}
	frames := &fakeFrames{total: 1, processed: 0}
	st := &fakeStorage{frameData: greyscaleJPEG(t)}
	engine := &ocr.MockEngine{Text: "hello world"}

	w := New(videos, frames, st, engine, nil, zerolog.Nop())

	err := w.Run(context.Background(), jobqueue.OCRPayload{VideoID: "vid-1", FrameKey: "videos/vid-1/greyscaled/frame_0001.jpg"})
	require.NoError(t, err)

	assert.True(t, frames.upsertedCalled)
	assert.Equal(t, "hello world", frames.upsertedText)
	assert.Equal(t, []string{"vid-1"}, videos.markedReady)
}

func TestWorkerRunDoesNotPromoteWhenSiblingsStillPending(t *testing.T) {
	videos := &fakeVideos{}
	frames := &fakeFrames{total: 3, processed: 0}
	st := &fakeStorage{frameData: greyscaleJPEG(t)}
	engine := &ocr.MockEngine{Text: "partial"}

	w := New(videos, frames, st, engine, nil, zerolog.Nop())

	err := w.Run(context.Background(), jobqueue.OCRPayload{VideoID: "vid-2", FrameKey: "videos/vid-2/greyscaled/frame_0001.jpg"})
	require.NoError(t, err)

	assert.Empty(t, videos.markedReady, "only one of three sibling frames processed so far")
}

func TestWorkerRunPropagatesFatalOCRErrorWithoutUpsert(t *testing.T) {
	videos := &fakeVideos{}
	frames := &fakeFrames{total: 1}
	st := &fakeStorage{frameData: greyscaleJPEG(t)}
	engine := &ocr.MockEngine{Text: "unreachable", FailCount: 99}

	w := New(videos, frames, st, engine, nil, zerolog.Nop())

	err := w.Run(context.Background(), jobqueue.OCRPayload{VideoID: "vid-3", FrameKey: "videos/vid-3/greyscaled/frame_0001.jpg"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ocr.ErrOCRFatal))
	assert.False(t, frames.upsertedCalled)
	assert.Empty(t, videos.markedReady)
}
