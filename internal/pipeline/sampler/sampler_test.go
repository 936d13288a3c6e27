package sampler

import (
	"bytes"
	"context"
	"image/color"
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
	"github.com/mwork/videoindex-api/internal/pkg/scenedetect"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

type fakeVideos struct {
	v                *video.Video
	markedProcessing bool
}

func (f *fakeVideos) Create(ctx context.Context, tx *sqlx.Tx, v *video.Video) error { return nil }
func (f *fakeVideos) GetByID(ctx context.Context, id string) (*video.Video, error)  { return f.v, nil }
func (f *fakeVideos) UpdatePath(ctx context.Context, id, path string) error         { return nil }
func (f *fakeVideos) MarkProcessing(ctx context.Context, id string) error {
	f.markedProcessing = true
	return nil
}
func (f *fakeVideos) MarkReady(ctx context.Context, id string) error  { return nil }
func (f *fakeVideos) MarkFailed(ctx context.Context, id string) error { return nil }
func (f *fakeVideos) Summary(ctx context.Context) (*video.Summary, error) { return nil, nil }
func (f *fakeVideos) List(ctx context.Context, limit, offset int) ([]video.ListItem, error) {
	return nil, nil
}
func (f *fakeVideos) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeFrames struct {
	upserted []frame.Frame
}

func (f *fakeFrames) Insert(ctx context.Context, fr *frame.Frame) error { return nil }
func (f *fakeFrames) UpsertByOrdinal(ctx context.Context, fr *frame.Frame) error {
	f.upserted = append(f.upserted, *fr)
	return nil
}
func (f *fakeFrames) MarkGreyscaled(ctx context.Context, videoID string, frameNumber int, greyscaleKey string) error {
	return nil
}
func (f *fakeFrames) CountForVideo(ctx context.Context, videoID string) (int, error) {
	return len(f.upserted), nil
}
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
	enqueued []jobqueue.Type
}

func (f *fakeJobs) Enqueue(ctx context.Context, tx *sqlx.Tx, videoID string, jobType jobqueue.Type, payload interface{}, maxRetries int) (*jobqueue.Job, error) {
	f.enqueued = append(f.enqueued, jobType)
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
	sourceBytes []byte
	puts        map[string][]byte
}

func newFakeStorage(source []byte) *fakeStorage {
	return &fakeStorage{sourceBytes: source, puts: map[string][]byte{}}
}

func (s *fakeStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.puts[key] = data
	return nil
}
func (s *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.sourceBytes)), nil
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

func TestSamplerRunUploadsKeepsAndEnqueuesGreyscaleJobs(t *testing.T) {
	videos := &fakeVideos{v: &video.Video{ID: "vid-1", Path: "videos/vid-1/source.mp4", Status: video.StatusQueued}}
	frames := &fakeFrames{}
	jobs := &fakeJobs{}
	st := newFakeStorage([]byte("fake source video bytes"))
	detector := &scenedetect.FakeDetector{
		Colors: []color.RGBA{
			{R: 10, G: 10, B: 10, A: 255},
			{R: 10, G: 10, B: 10, A: 255}, // near-duplicate of scene 0, should be dropped
			{R: 240, G: 240, B: 240, A: 255},
		},
		Timestamps: []float64{0, 1, 2},
	}

	s := New(videos, frames, jobs, st, detector, t.TempDir(), zerolog.Nop())

	err := s.Run(context.Background(), jobqueue.SamplePayload{VideoID: "vid-1", Filename: "source.mp4"}, 3)
	require.NoError(t, err)

	assert.Len(t, frames.upserted, 2, "the near-duplicate scene should be deduped away")
	assert.Equal(t, 1, frames.upserted[0].FrameNumber)
	assert.Equal(t, 2, frames.upserted[1].FrameNumber)
	assert.Equal(t, "videos/vid-1/samples/frame_0001.jpg", frames.upserted[0].Path)
	assert.Equal(t, "videos/vid-1/samples/frame_0002.jpg", frames.upserted[1].Path)

	assert.Contains(t, st.puts, "videos/vid-1/samples/frame_0001.jpg")
	assert.Contains(t, st.puts, "videos/vid-1/samples/frame_0002.jpg")

	assert.Equal(t, []jobqueue.Type{jobqueue.TypeGreyscale, jobqueue.TypeGreyscale}, jobs.enqueued)
	assert.True(t, videos.markedProcessing)
}

func TestSamplerRunKeepsFirstFrameEvenWhenOnlyOneScene(t *testing.T) {
	videos := &fakeVideos{v: &video.Video{ID: "vid-2", Path: "videos/vid-2/source.mp4"}}
	frames := &fakeFrames{}
	jobs := &fakeJobs{}
	st := newFakeStorage([]byte("fake source video bytes"))
	detector := &scenedetect.FakeDetector{
		Colors:     []color.RGBA{{R: 50, G: 50, B: 50, A: 255}},
		Timestamps: []float64{-1}, // detector couldn't report a timestamp
	}

	s := New(videos, frames, jobs, st, detector, t.TempDir(), zerolog.Nop())

	err := s.Run(context.Background(), jobqueue.SamplePayload{VideoID: "vid-2", Filename: "source.mp4"}, 3)
	require.NoError(t, err)

	require.Len(t, frames.upserted, 1)
	assert.Equal(t, 1, frames.upserted[0].FrameNumber)
	assert.Equal(t, 0.0, frames.upserted[0].FrameTime, "falls back to ordinal-1 seconds when the detector has no timestamp")
}
