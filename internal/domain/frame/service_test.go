package frame

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

type fakeRepo struct {
	frames          []WithOcrText
	gotLimit        int
	gotOffset       int
	listForVideoErr error
}

func (f *fakeRepo) Insert(ctx context.Context, fr *Frame) error          { return nil }
func (f *fakeRepo) UpsertByOrdinal(ctx context.Context, fr *Frame) error { return nil }
func (f *fakeRepo) MarkGreyscaled(ctx context.Context, videoID string, frameNumber int, greyscaleKey string) error {
	return nil
}
func (f *fakeRepo) CountForVideo(ctx context.Context, videoID string) (int, error) {
	return len(f.frames), nil
}
func (f *fakeRepo) ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]WithOcrText, error) {
	if f.listForVideoErr != nil {
		return nil, f.listForVideoErr
	}
	f.gotLimit, f.gotOffset = limit, offset
	return f.frames, nil
}
func (f *fakeRepo) UpsertOcrFrame(ctx context.Context, videoID, frameKey, ocrText string) error {
	return nil
}
func (f *fakeRepo) CountProcessedOcrFrames(ctx context.Context, videoID string) (int, error) {
	return 0, nil
}

type fakeStorage struct{}

func (fakeStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	return nil
}
func (fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) { return nil, nil }
func (fakeStorage) Delete(ctx context.Context, key string) error              { return nil }
func (fakeStorage) Exists(ctx context.Context, key string) (bool, error)      { return true, nil }
func (fakeStorage) GetURL(key string) string                                  { return "https://cdn.example/" + key }
func (fakeStorage) GetInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	return nil, nil
}
func (fakeStorage) PresignPutURL(ctx context.Context, key string, expires time.Duration, contentType string) (string, error) {
	return "", nil
}
func (fakeStorage) PresignGetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func TestListForVideoThreadsLimitAndOffsetToRepository(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{frames: []WithOcrText{{Frame: Frame{FrameNumber: 1, Path: "videos/v1/samples/frame_0001.jpg"}}}}
	svc := NewService(repo, fakeStorage{})

	result, err := svc.ListForVideo(context.Background(), "v1", 5, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, repo.gotLimit)
	assert.Equal(t, 10, repo.gotOffset)
	assert.Equal(t, 5, result.Limit)
	assert.Equal(t, 10, result.Offset)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "https://signed.example/videos/v1/samples/frame_0001.jpg", result.Items[0].URL)
}

func TestListForVideoDefaultsLimitWhenNotPositive(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	svc := NewService(repo, fakeStorage{})

	result, err := svc.ListForVideo(context.Background(), "v1", 0, -5, 0)
	require.NoError(t, err)

	assert.Equal(t, 20, repo.gotLimit)
	assert.Equal(t, 0, repo.gotOffset)
	assert.Equal(t, 20, result.Limit)
	assert.Equal(t, 0, result.Offset)
}
