package frame

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// Repository defines Frame/OcrFrame data access.
type Repository interface {
	// Insert creates a Frame row at the given ordinal. Violates
	// ErrDuplicateFrameNumber if frame_number is already taken for the video.
	Insert(ctx context.Context, f *Frame) error

	// UpsertByOrdinal inserts a Frame row, or overwrites the existing one at
	// the same (video_id, frame_number) if the Sampler reruns after a crash
	// (object-store overwrite is allowed per the idempotency contract).
	UpsertByOrdinal(ctx context.Context, f *Frame) error

	// MarkGreyscaled rewrites a frame's path to the greyscale key and flips
	// greyscale_is_processed, keyed on (video_id, frame_number) since that's
	// all the greyscale job payload carries. Idempotent: rerunning the same
	// job overwrites the path and re-sets the flag rather than erroring.
	MarkGreyscaled(ctx context.Context, videoID string, frameNumber int, greyscaleKey string) error

	// CountForVideo returns the total number of kept frames for a video.
	CountForVideo(ctx context.Context, videoID string) (int, error)

	// ListForVideo returns a page of frames for a video, ordered by ordinal,
	// with whatever OCR text has been produced so far.
	ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]WithOcrText, error)

	// UpsertOcrFrame inserts or updates the OcrFrame row keyed on frame_key
	// (never row id), so the trigger-maintained OcrIndex row stays
	// consistent. Retries as an update on a concurrent unique-violation.
	UpsertOcrFrame(ctx context.Context, videoID, frameKey, ocrText string) error

	// CountProcessedOcrFrames returns how many OcrFrame rows for a video are
	// marked processed, used by the parent-completion check.
	CountProcessedOcrFrames(ctx context.Context, videoID string) (int, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository constructs a frame repository.
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, f *Frame) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO frames (id, video_id, frame_number, frame_time, path, greyscale_is_processed)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.ID, f.VideoID, f.FrameNumber, f.FrameTime, f.Path, f.GreyscaleIsProcessed)
	return mapInsertErr(err)
}

// mapInsertErr translates the frames_video_ordinal_uq violation into the
// domain sentinel so callers can branch on it instead of a raw driver error.
func mapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicateFrameNumber
	}
	return err
}

func (r *repository) UpsertByOrdinal(ctx context.Context, f *Frame) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO frames (id, video_id, frame_number, frame_time, path, greyscale_is_processed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (video_id, frame_number) DO UPDATE
			SET frame_time = EXCLUDED.frame_time,
			    path = EXCLUDED.path,
			    greyscale_is_processed = EXCLUDED.greyscale_is_processed
	`, f.ID, f.VideoID, f.FrameNumber, f.FrameTime, f.Path, f.GreyscaleIsProcessed)
	return err
}

func (r *repository) MarkGreyscaled(ctx context.Context, videoID string, frameNumber int, greyscaleKey string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE frames SET path = $3, greyscale_is_processed = true
		WHERE video_id = $1 AND frame_number = $2
	`, videoID, frameNumber, greyscaleKey)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFrameNotFound
	}
	return nil
}

func (r *repository) CountForVideo(ctx context.Context, videoID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM frames WHERE video_id = $1`, videoID)
	return n, err
}

func (r *repository) ListForVideo(ctx context.Context, videoID string, limit, offset int) ([]WithOcrText, error) {
	var items []WithOcrText
	err := r.db.SelectContext(ctx, &items, `
		SELECT
			f.id, f.video_id, f.frame_number, f.frame_time, f.path, f.greyscale_is_processed,
			o.ocr_text, COALESCE(o.processed, false) AS processed
		FROM frames f
		LEFT JOIN ocr_frames o ON o.video_id = f.video_id AND o.frame_key = f.path
		WHERE f.video_id = $1
		ORDER BY f.frame_number ASC
		LIMIT $2 OFFSET $3
	`, videoID, limit, offset)
	return items, err
}

// UpsertOcrFrame implements the upsert-by-frame_key contract: try the insert
// first; on a unique-violation (a row with this key already exists, whether
// from an earlier run or a concurrent worker) fall back to an update keyed on
// frame_key, never on row id, so the sync triggers key off the same column.
func (r *repository) UpsertOcrFrame(ctx context.Context, videoID, frameKey, ocrText string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ocr_frames (id, video_id, frame_key, ocr_text, processed, updated_at)
		VALUES ($1, $2, $3, $4, true, $5)
	`, uuid.NewString(), videoID, frameKey, ocrText, time.Now())
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE ocr_frames SET ocr_text = $2, processed = true, updated_at = $3
		WHERE frame_key = $1
	`, frameKey, ocrText, time.Now())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOcrFrameNotFound
	}
	return nil
}

func (r *repository) CountProcessedOcrFrames(ctx context.Context, videoID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM ocr_frames WHERE video_id = $1 AND processed
	`, videoID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return n, nil
}
