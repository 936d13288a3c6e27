package search

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// ReconcileInterval is how often the reconciler scans for drift between
// OcrFrame and its trigger-maintained OcrIndex projection.
const ReconcileInterval = 15 * time.Second

// Reconciler recovers OcrIndex rows missing for an existing OcrFrame row —
// the only way that can happen is manual DB surgery or schema drift predating
// the self-heal triggers, since the normal upsert path is transactional with
// the trigger. It exists purely as a backstop.
type Reconciler struct {
	db       *sqlx.DB
	interval time.Duration
	log      zerolog.Logger
	stopCh   chan struct{}
}

func NewReconciler(db *sqlx.DB, log zerolog.Logger) *Reconciler {
	return &Reconciler{db: db, interval: ReconcileInterval, log: log, stopCh: make(chan struct{})}
}

func (r *Reconciler) Start() {
	r.log.Info().Dur("interval", r.interval).Msg("starting ocr index reconciler")
	go r.loop()
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}

func (r *Reconciler) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.reconcile()

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reconciler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := r.RepairMissingIndexRows(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("ocr index reconciliation failed")
		return
	}
	if n > 0 {
		r.log.Warn().Int64("repaired", n).Msg("recovered ocr index rows missing for existing ocr frames")
	}
}

// RepairMissingIndexRows finds OcrFrame rows with no matching OcrIndex row
// (left join, cardinality check) and re-inserts the missing projection rows.
func (r *Reconciler) RepairMissingIndexRows(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ocr_index (video_id, frame_key, ocr_text, text_tsv)
		SELECT o.video_id, o.frame_key, o.ocr_text, to_tsvector('english', o.ocr_text)
		FROM ocr_frames o
		LEFT JOIN ocr_index i ON i.frame_key = o.frame_key
		WHERE i.frame_key IS NULL
		ON CONFLICT (frame_key) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
