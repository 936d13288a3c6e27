package video

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository defines video data access.
type Repository interface {
	Create(ctx context.Context, tx *sqlx.Tx, v *Video) error
	GetByID(ctx context.Context, id string) (*Video, error)
	UpdatePath(ctx context.Context, id, path string) error
	MarkProcessing(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	Summary(ctx context.Context) (*Summary, error)
	List(ctx context.Context, limit, offset int) ([]ListItem, error)

	// WithTx runs fn inside one database transaction, committing on a nil
	// return and rolling back otherwise. Used by the upload flow to make the
	// Video-row insert and sample-job enqueue atomic.
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates a video repository.
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repository) Create(ctx context.Context, tx *sqlx.Tx, v *Video) error {
	const query = `
		INSERT INTO videos (id, original_name, path, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	args := []interface{}{v.ID, v.OriginalName, v.Path, v.Status, v.CreatedAt}

	if tx != nil {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (*Video, error) {
	var v Video
	err := r.db.GetContext(ctx, &v, `SELECT * FROM videos WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *repository) UpdatePath(ctx context.Context, id, path string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE videos SET path = $2 WHERE id = $1`, id, path)
	return err
}

func (r *repository) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET status = $2 WHERE id = $1 AND status = $3
	`, id, StatusProcessing, StatusQueued)
	return err
}

func (r *repository) MarkReady(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE videos SET status = $2, processed_at = $3 WHERE id = $1
	`, id, StatusReady, time.Now())
	return err
}

func (r *repository) MarkFailed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE videos SET status = $2 WHERE id = $1`, id, StatusFailed)
	return err
}

func (r *repository) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := r.db.GetContext(ctx, &s, `
		SELECT
			(SELECT COUNT(*) FROM videos) AS total_videos,
			(SELECT COUNT(*) FROM frames) AS total_frames,
			(SELECT COUNT(*) FROM ocr_frames WHERE processed) AS indexed_frames
	`)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]ListItem, error) {
	if limit <= 0 {
		limit = 20
	}
	var items []ListItem
	err := r.db.SelectContext(ctx, &items, `
		SELECT
			v.id, v.original_name, v.path, v.status, v.created_at, v.processed_at,
			COUNT(f.id) AS total_frames,
			COUNT(o.id) FILTER (WHERE o.processed) AS processed_frames
		FROM videos v
		LEFT JOIN frames f ON f.video_id = v.id
		LEFT JOIN ocr_frames o ON o.video_id = v.id AND o.frame_key = f.path
		GROUP BY v.id
		ORDER BY v.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].TotalFrames > 0 {
			items[i].ProgressPercent = 100 * float64(items[i].ProcessedFrames) / float64(items[i].TotalFrames)
		}
	}
	return items, nil
}
