package frame

import (
	"context"
	"time"

	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

// Service serves the read-only frame listing used by list_video_frames. The
// pipeline workers (sampler, preprocessor, ocr) write through Repository
// directly since they run outside the HTTP path.
type Service struct {
	repo    Repository
	storage storage.Storage
}

func NewService(repo Repository, st storage.Storage) *Service {
	return &Service{repo: repo, storage: st}
}

// ListForVideo returns a page of frames for a video with a presigned GET URL
// valid for expiresIn (clamped to the [60s, 24h] bound shared with the
// upload presign path).
func (s *Service) ListForVideo(ctx context.Context, videoID string, limit, offset int, expiresIn time.Duration) (*ListResponse, error) {
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	frames, err := s.repo.ListForVideo(ctx, videoID, limit, offset)
	if err != nil {
		return nil, err
	}

	ttl := storage.ClampExpiry(expiresIn)
	out := make([]Response, len(frames))
	for i, f := range frames {
		url, err := s.storage.PresignGetURL(ctx, f.Path, ttl)
		if err != nil {
			url = s.storage.GetURL(f.Path)
		}
		out[i] = FromWithOcrText(f, url)
	}
	return &ListResponse{Items: out, Limit: limit, Offset: offset}, nil
}
