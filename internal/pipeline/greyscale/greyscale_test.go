package greyscale

import (
	"bytes"
	"context"
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
	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

type fakeFrames struct {
	markedVideoID string
	markedOrdinal int
	markedKey     string
}

func (f *fakeFrames) Insert(ctx context.Context, fr *frame.Frame) error          { return nil }
func (f *fakeFrames) UpsertByOrdinal(ctx context.Context, fr *frame.Frame) error { return nil }
func (f *fakeFrames) MarkGreyscaled(ctx context.Context, videoID string, frameNumber int, greyscaleKey string) error {
	f.markedVideoID = videoID
	f.markedOrdinal = frameNumber
	f.markedKey = greyscaleKey
	return nil
}
func (f *fakeFrames) CountForVideo(ctx context.Context, videoID string) (int, error) { return 0, nil }
func (f *fakeFrames) ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]frame.WithOcrText, error) {
	return nil, nil
}
func (f *fakeFrames) UpsertOcrFrame(ctx context.Context, videoID, frameKey, ocrText string) error {
	return nil
}
func (f *fakeFrames) CountProcessedOcrFrames(ctx context.Context, videoID string) (int, error) {
	return 0, nil
}

type fakeJobs struct {
	enqueued []jobqueue.OCRPayload
}

func (f *fakeJobs) Enqueue(ctx context.Context, tx *sqlx.Tx, videoID string, jobType jobqueue.Type, payload interface{}, maxRetries int) (*jobqueue.Job, error) {
	if p, ok := payload.(jobqueue.OCRPayload); ok {
		f.enqueued = append(f.enqueued, p)
	}
	return &jobqueue.Job{ID: "job-1", VideoID: videoID, JobType: jobType}, nil
}
func (f *fakeJobs) Claim(ctx context.Context, jobType jobqueue.Type) (*jobqueue.Job, error) {
	return nil, jobqueue.ErrNoJob
}
func (f *fakeJobs) Ack(ctx context.Context, id string) error { return nil }
func (f *fakeJobs) Nack(ctx context.Context, id string, cause error, baseDelay time.Duration) error {
	return nil
}
func (f *fakeJobs) Fail(ctx context.Context, id string, cause error) error { return nil }

type fakeStorage struct {
	sample []byte
	puts   map[string][]byte
}

func (s *fakeStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if s.puts == nil {
		s.puts = map[string][]byte{}
	}
	s.puts[key] = data
	return nil
}
func (s *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.sample)), nil
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

func sampleJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 20, B: 20, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestPreprocessorRunConvertsUploadsAndEnqueuesOCR(t *testing.T) {
	frames := &fakeFrames{}
	jobs := &fakeJobs{}
	st := &fakeStorage{sample: sampleJPEG(t)}

	p := New(frames, jobs, st, zerolog.Nop())

	payload := jobqueue.GreyscalePayload{
		VideoID:     "vid-1",
		FrameNumber: 3,
		FrameKey:    "videos/vid-1/samples/frame_0003.jpg",
	}
	err := p.Run(context.Background(), payload, 3)
	require.NoError(t, err)

	assert.Equal(t, "vid-1", frames.markedVideoID)
	assert.Equal(t, 3, frames.markedOrdinal)
	assert.Equal(t, "videos/vid-1/greyscaled/frame_0003.jpg", frames.markedKey)

	assert.Contains(t, st.puts, "videos/vid-1/greyscaled/frame_0003.jpg")

	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, "videos/vid-1/greyscaled/frame_0003.jpg", jobs.enqueued[0].FrameKey)
	assert.Equal(t, "vid-1", jobs.enqueued[0].VideoID)
}

func TestPreprocessorRunIsIdempotentOnRerun(t *testing.T) {
	frames := &fakeFrames{}
	jobs := &fakeJobs{}
	st := &fakeStorage{sample: sampleJPEG(t)}
	p := New(frames, jobs, st, zerolog.Nop())

	payload := jobqueue.GreyscalePayload{VideoID: "vid-2", FrameNumber: 1, FrameKey: "videos/vid-2/samples/frame_0001.jpg"}
	require.NoError(t, p.Run(context.Background(), payload, 3))
	require.NoError(t, p.Run(context.Background(), payload, 3))

	assert.Len(t, jobs.enqueued, 2, "rerun enqueues a second ocr job rather than failing")
	assert.Equal(t, 1, len(st.puts), "rerun overwrites the same greyscaled key rather than creating a new one")
}
