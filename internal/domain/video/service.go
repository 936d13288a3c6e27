package video

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mwork/videoindex-api/internal/pkg/jobqueue"
	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

// Service implements the Ingress contract: accept an uploaded video, persist
// it, and enqueue one sample job.
type Service struct {
	repo    Repository
	jobs    jobqueue.Repository
	storage storage.Storage
	log     zerolog.Logger
}

func NewService(repo Repository, jobs jobqueue.Repository, st storage.Storage, log zerolog.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, storage: st, log: log}
}

// Upload writes the source blob to the object store at
// videos/{video_id}/{filename}, inserts the Video row, and enqueues one
// sample job — all inside one database transaction for the row+job pair,
// since both live in the same catalog. The object-store write necessarily
// happens outside that transaction (S3 does not participate in Postgres
// transactions); on any downstream failure the Video is best-effort marked
// failed so it never sits silently in "queued".
func (s *Service) Upload(ctx context.Context, filename string, reader io.Reader, maxRetries int) (*Video, error) {
	videoID := uuid.NewString()
	key := fmt.Sprintf("videos/%s/%s", videoID, filepath.Base(filename))

	tmpFile, err := os.CreateTemp("", "videoindex-upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp upload file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmpFile, reader)
	tmpFile.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer upload: %w", err)
	}
	if size == 0 {
		return nil, fmt.Errorf("empty upload")
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("reopen temp upload file: %w", err)
	}
	defer f.Close()

	if err := s.storage.Put(ctx, key, f, contentTypeFromFilename(filename)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	v := &Video{
		ID:           videoID,
		OriginalName: filename,
		Path:         key,
		Status:       StatusQueued,
		CreatedAt:    time.Now(),
	}

	err = s.repo.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.repo.Create(ctx, tx, v); err != nil {
			return fmt.Errorf("insert video: %w", err)
		}
		if _, err := s.jobs.Enqueue(ctx, tx, videoID, jobqueue.TypeSample, jobqueue.SamplePayload{
			VideoID:  videoID,
			Filename: filename,
		}, maxRetries); err != nil {
			return fmt.Errorf("enqueue sample job: %w", err)
		}
		return nil
	})
	if err != nil {
		s.failBestEffort(ctx, videoID)
		return nil, err
	}

	return v, nil
}

func (s *Service) failBestEffort(ctx context.Context, videoID string) {
	if err := s.repo.MarkFailed(ctx, videoID); err != nil {
		s.log.Error().Err(err).Str("video_id", videoID).Msg("failed to mark video failed after upload error")
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (*Video, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	return s.repo.Summary(ctx)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]ListItem, error) {
	return s.repo.List(ctx, limit, offset)
}

func contentTypeFromFilename(filename string) string {
	switch filepath.Ext(filename) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
