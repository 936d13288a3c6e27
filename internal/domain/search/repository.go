package search

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
)

// row is one raw hit before snippet/URL/frame-number post-processing.
type row struct {
	VideoID  string `db:"video_id"`
	FrameKey string `db:"frame_key"`
	OcrText  string `db:"ocr_text"`
	Snippet  string `db:"snippet"`
}

// Repository queries the OcrIndex projection for full-text matches, falling
// back to a case-insensitive substring scan of OcrFrame when FTS yields no
// rows.
type Repository interface {
	// SearchFTS runs the tsvector match with ts_headline snippet generation.
	SearchFTS(ctx context.Context, query string, limit, offset int) ([]row, error)

	// SearchLike runs the ILIKE fallback; CountLike counts the same pattern
	// to give the total, so pagination always covers the FTS superset.
	SearchLike(ctx context.Context, query string, limit, offset int) ([]row, error)

	// CountLike returns the total row count for the ILIKE pattern.
	CountLike(ctx context.Context, query string) (int, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SearchFTS(ctx context.Context, query string, limit, offset int) ([]row, error) {
	var rows []row
	err := r.db.SelectContext(ctx, &rows, `
		SELECT
			video_id,
			frame_key,
			ocr_text,
			ts_headline(
				'english', ocr_text, plainto_tsquery('english', $1),
				'StartSel=<mark>,StopSel=</mark>,MaxWordsPerFragment=10,MinWordsPerFragment=1,MaxFragments=1'
			) AS snippet
		FROM ocr_index
		WHERE text_tsv @@ plainto_tsquery('english', $1)
		ORDER BY video_id, frame_key
		LIMIT $2 OFFSET $3
	`, query, limit, offset)
	return rows, err
}

func (r *repository) SearchLike(ctx context.Context, query string, limit, offset int) ([]row, error) {
	pattern := likePattern(query)
	var rows []row
	err := r.db.SelectContext(ctx, &rows, `
		SELECT video_id, frame_key, ocr_text, ocr_text AS snippet
		FROM ocr_frames
		WHERE ocr_text ILIKE $1 ESCAPE '\'
		ORDER BY video_id, frame_key
		LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	return rows, err
}

func (r *repository) CountLike(ctx context.Context, query string) (int, error) {
	pattern := likePattern(query)
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM ocr_frames WHERE ocr_text ILIKE $1 ESCAPE '\'
	`, pattern)
	return n, err
}

// likePattern escapes ILIKE metacharacters in the raw query before wrapping
// it for a substring match.
func likePattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
	return "%" + escaped + "%"
}
