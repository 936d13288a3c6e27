package video

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

type fakeRepo struct {
	created    []*Video
	failedIDs  []string
	createErr  error
	withTxErr  error
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if f.withTxErr != nil {
		return f.withTxErr
	}
	return fn(nil)
}

func (f *fakeRepo) Create(ctx context.Context, tx *sqlx.Tx, v *Video) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, v)
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*Video, error) {
	for _, v := range f.created {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, ErrVideoNotFound
}

func (f *fakeRepo) UpdatePath(ctx context.Context, id, path string) error { return nil }
func (f *fakeRepo) MarkProcessing(ctx context.Context, id string) error  { return nil }
func (f *fakeRepo) MarkReady(ctx context.Context, id string) error       { return nil }
func (f *fakeRepo) MarkFailed(ctx context.Context, id string) error {
	f.failedIDs = append(f.failedIDs, id)
	return nil
}
func (f *fakeRepo) Summary(ctx context.Context) (*Summary, error) { return &Summary{}, nil }
func (f *fakeRepo) List(ctx context.Context, limit, offset int) ([]ListItem, error) {
	return nil, nil
}

type fakeJobs struct {
	enqueued   []jobqueue.Type
	enqueueErr error
}

func (f *fakeJobs) Enqueue(ctx context.Context, tx *sqlx.Tx, videoID string, jobType jobqueue.Type, payload interface{}, maxRetries int) (*jobqueue.Job, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
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
	putErr      error
	putKey      string
	putContents string
}

func (f *fakeStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	body, _ := io.ReadAll(reader)
	f.putKey = key
	f.putContents = string(body)
	return nil
}
func (f *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) { return nil, nil }
func (f *fakeStorage) Delete(ctx context.Context, key string) error              { return nil }
func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error)      { return true, nil }
func (f *fakeStorage) GetURL(key string) string { return "https://example.com/" + key }
func (f *fakeStorage) GetInfo(ctx context.Context, key string) (*storage.FileInfo, error) {
	return nil, nil
}
func (f *fakeStorage) PresignPutURL(ctx context.Context, key string, expires time.Duration, contentType string) (string, error) {
	return "", nil
}
func (f *fakeStorage) PresignGetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "", nil
}

func TestUploadHappyPath(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	jobs := &fakeJobs{}
	st := &fakeStorage{}
	svc := NewService(repo, jobs, st, zerolog.Nop())

	v, err := svc.Upload(context.Background(), "clip.mp4", strings.NewReader("fake video bytes"), 5)
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.Equal(t, v.ID, repo.created[0].ID)
	assert.Equal(t, StatusQueued, v.Status)
	assert.Equal(t, "clip.mp4", v.OriginalName)

	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, jobqueue.TypeSample, jobs.enqueued[0])

	assert.Equal(t, "fake video bytes", st.putContents)
	assert.Empty(t, repo.failedIDs)
}

func TestUploadMarksVideoFailedWhenEnqueueFails(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	jobs := &fakeJobs{enqueueErr: errors.New("db unavailable")}
	st := &fakeStorage{}
	svc := NewService(repo, jobs, st, zerolog.Nop())

	_, err := svc.Upload(context.Background(), "clip.mp4", strings.NewReader("bytes"), 5)
	require.Error(t, err)

	require.Len(t, repo.created, 1, "row is inserted before enqueue fails inside the same tx")
	require.Len(t, repo.failedIDs, 1)
	assert.Equal(t, repo.created[0].ID, repo.failedIDs[0])
}

func TestUploadWrapsStorageErrorAsUpstreamUnavailable(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	jobs := &fakeJobs{}
	st := &fakeStorage{putErr: errors.New("bucket unreachable")}
	svc := NewService(repo, jobs, st, zerolog.Nop())

	_, err := svc.Upload(context.Background(), "clip.mp4", strings.NewReader("bytes"), 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Empty(t, repo.created, "video row must not be inserted when the object-store write fails")
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	jobs := &fakeJobs{}
	st := &fakeStorage{}
	svc := NewService(repo, jobs, st, zerolog.Nop())

	_, err := svc.Upload(context.Background(), "clip.mp4", strings.NewReader(""), 5)
	require.Error(t, err)
	assert.Empty(t, repo.created)
}
