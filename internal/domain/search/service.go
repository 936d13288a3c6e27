package search

import (
	"context"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/mwork/videoindex-api/internal/pkg/storage"
)

const maxOcrTextChars = 8000

var frameNumberRe = regexp.MustCompile(`frame_(\d+)\.(jpg|png|jpeg)$`)

// Service implements search(q, page, page_size, expires_in): full-text match
// first, ILIKE fallback when FTS comes back empty, total count always from
// the ILIKE superset.
type Service struct {
	repo    Repository
	storage storage.Storage
}

func NewService(repo Repository, st storage.Storage) *Service {
	return &Service{repo: repo, storage: st}
}

func (s *Service) Search(ctx context.Context, query string, page, pageSize int, expiresIn time.Duration) (*Result, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	ttl := storage.ClampExpiry(expiresIn)

	total, err := s.repo.CountLike(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, usedFTS, err := s.runSearch(ctx, query, pageSize, offset)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	for _, rw := range rows {
		hits = append(hits, s.toHit(ctx, rw, ttl))
	}

	totalPages := (total + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	return &Result{
		Items:      hits,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		UsedFTS:    usedFTS,
	}, nil
}

// runSearch tries FTS first; an empty result set (not an error) falls back
// to the ILIKE scan per the documented contract.
func (s *Service) runSearch(ctx context.Context, query string, limit, offset int) ([]row, bool, error) {
	ftsRows, err := s.repo.SearchFTS(ctx, query, limit, offset)
	if err != nil {
		return nil, false, err
	}
	if len(ftsRows) > 0 {
		return ftsRows, true, nil
	}

	likeRows, err := s.repo.SearchLike(ctx, query, limit, offset)
	if err != nil {
		return nil, false, err
	}
	return likeRows, false, nil
}

func (s *Service) toHit(ctx context.Context, rw row, ttl time.Duration) Hit {
	text := rw.OcrText
	if len(text) > maxOcrTextChars {
		text = text[:maxOcrTextChars]
	}

	url, err := s.storage.PresignGetURL(ctx, rw.FrameKey, ttl)
	if err != nil {
		url = s.storage.GetURL(rw.FrameKey)
	}

	return Hit{
		VideoID:     rw.VideoID,
		FrameKey:    rw.FrameKey,
		Filename:    filepath.Base(rw.FrameKey),
		FrameNumber: parseFrameNumber(rw.FrameKey),
		Snippet:     rw.Snippet,
		OcrText:     text,
		URL:         url,
	}
}

func parseFrameNumber(key string) int {
	m := frameNumberRe.FindStringSubmatch(filepath.Base(key))
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
