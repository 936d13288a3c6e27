// Package selfheal runs the additive, idempotent schema repair the ingress
// binary performs on boot (the worker binaries do not call it): create
// missing tables, add the listed drift columns, recreate the
// OcrFrame->OcrIndex sync triggers, and synthesize placeholder Video parents
// for orphaned Frame/OcrFrame rows. Destructive healing (dropping tables or
// columns) is never implemented — schema drift is treated as an expected
// runtime condition, not an incident.
package selfheal

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// Heal runs every step in order: tables, then columns, then triggers, then
// orphan repair. The ordering plus IF NOT EXISTS/IF EXISTS guards make this
// safe to run concurrently from multiple booting services against the same
// database.
func Heal(ctx context.Context, db *sqlx.DB, log zerolog.Logger) error {
	if err := createTables(ctx, db); err != nil {
		return fmt.Errorf("selfheal: create tables: %w", err)
	}
	log.Debug().Msg("selfheal: tables present")

	if err := addDriftColumns(ctx, db); err != nil {
		return fmt.Errorf("selfheal: add columns: %w", err)
	}
	log.Debug().Msg("selfheal: columns present")

	if err := recreateTriggers(ctx, db); err != nil {
		return fmt.Errorf("selfheal: recreate triggers: %w", err)
	}
	log.Debug().Msg("selfheal: triggers recreated")

	n, err := repairOrphans(ctx, db)
	if err != nil {
		return fmt.Errorf("selfheal: repair orphans: %w", err)
	}
	if n > 0 {
		log.Warn().Int("synthesized_videos", n).Msg("selfheal: repaired orphaned frame/ocr_frame rows")
	}

	return nil
}

var createTableStatements = []string{
	`CREATE TABLE IF NOT EXISTS videos (
		id text PRIMARY KEY,
		original_name text NOT NULL,
		path text NOT NULL DEFAULT '',
		status text NOT NULL DEFAULT 'queued',
		created_at timestamptz NOT NULL DEFAULT now(),
		processed_at timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS frames (
		id text PRIMARY KEY,
		video_id text NOT NULL,
		frame_number integer NOT NULL,
		frame_time double precision NOT NULL,
		path text NOT NULL DEFAULT '',
		greyscale_is_processed boolean NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT frames_video_fk FOREIGN KEY (video_id) REFERENCES videos(id),
		CONSTRAINT frames_video_ordinal_uq UNIQUE (video_id, frame_number)
	)`,
	`CREATE TABLE IF NOT EXISTS ocr_frames (
		id text PRIMARY KEY,
		video_id text NOT NULL,
		frame_key text NOT NULL,
		ocr_text text NOT NULL DEFAULT '',
		processed boolean NOT NULL DEFAULT false,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now(),
		CONSTRAINT ocr_frames_video_fk FOREIGN KEY (video_id) REFERENCES videos(id),
		CONSTRAINT ocr_frames_frame_key_uq UNIQUE (frame_key)
	)`,
	`CREATE TABLE IF NOT EXISTS ocr_index (
		frame_key text PRIMARY KEY,
		video_id text NOT NULL,
		ocr_text text NOT NULL DEFAULT '',
		text_tsv tsvector
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id text PRIMARY KEY,
		video_id text NOT NULL DEFAULT '',
		job_type text NOT NULL,
		status text NOT NULL DEFAULT 'queued',
		payload jsonb NOT NULL DEFAULT '{}'::jsonb,
		retry_count integer NOT NULL DEFAULT 0,
		max_retries integer NOT NULL DEFAULT 3,
		run_after timestamptz NOT NULL DEFAULT now(),
		created_at timestamptz NOT NULL DEFAULT now(),
		started_at timestamptz,
		finished_at timestamptz,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_claim_idx ON jobs (job_type, status, run_after)`,
	`CREATE INDEX IF NOT EXISTS ocr_index_tsv_idx ON ocr_index USING gin (text_tsv)`,
}

func createTables(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range createTableStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type driftColumn struct {
	table  string
	column string
	ddl    string
}

// driftColumns lists the columns added idempotently via ALTER TABLE ... ADD
// COLUMN IF NOT EXISTS so a table pre-created with an older (or hand-rolled,
// per E6) shape is repaired rather than rejected. A missing column that is
// not in this list is not added.
var driftColumns = []driftColumn{
	{"videos", "status", "ALTER TABLE videos ADD COLUMN IF NOT EXISTS status text NOT NULL DEFAULT 'queued'"},
	{"videos", "path", "ALTER TABLE videos ADD COLUMN IF NOT EXISTS path text NOT NULL DEFAULT ''"},
	{"videos", "processed_at", "ALTER TABLE videos ADD COLUMN IF NOT EXISTS processed_at timestamptz"},
	{"frames", "greyscale_is_processed", "ALTER TABLE frames ADD COLUMN IF NOT EXISTS greyscale_is_processed boolean NOT NULL DEFAULT false"},
	{"ocr_frames", "processed", "ALTER TABLE ocr_frames ADD COLUMN IF NOT EXISTS processed boolean NOT NULL DEFAULT false"},
	{"ocr_frames", "updated_at", "ALTER TABLE ocr_frames ADD COLUMN IF NOT EXISTS updated_at timestamptz NOT NULL DEFAULT now()"},
	{"jobs", "retry_count", "ALTER TABLE jobs ADD COLUMN IF NOT EXISTS retry_count integer NOT NULL DEFAULT 0"},
	{"jobs", "run_after", "ALTER TABLE jobs ADD COLUMN IF NOT EXISTS run_after timestamptz NOT NULL DEFAULT now()"},
}

func addDriftColumns(ctx context.Context, db *sqlx.DB) error {
	for _, c := range driftColumns {
		if _, err := db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("%s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}

// recreateTriggers drops and reinstalls the three OcrFrame -> OcrIndex sync
// triggers so they always reference the current column set, even across a
// version that renamed or added a column to ocr_frames.
func recreateTriggers(ctx context.Context, db *sqlx.DB) error {
	const funcDDL = `
CREATE OR REPLACE FUNCTION ocr_frames_sync_index() RETURNS trigger AS $$
BEGIN
	IF TG_OP = 'INSERT' THEN
		INSERT INTO ocr_index (frame_key, video_id, ocr_text, text_tsv)
		VALUES (NEW.frame_key, NEW.video_id, NEW.ocr_text, to_tsvector('english', NEW.ocr_text))
		ON CONFLICT (frame_key) DO UPDATE
			SET video_id = EXCLUDED.video_id,
			    ocr_text = EXCLUDED.ocr_text,
			    text_tsv = EXCLUDED.text_tsv;
		RETURN NEW;
	ELSIF TG_OP = 'UPDATE' THEN
		UPDATE ocr_index
		SET ocr_text = NEW.ocr_text,
		    text_tsv = to_tsvector('english', NEW.ocr_text),
		    video_id = NEW.video_id
		WHERE frame_key = OLD.frame_key;
		RETURN NEW;
	ELSIF TG_OP = 'DELETE' THEN
		DELETE FROM ocr_index WHERE frame_key = OLD.frame_key;
		RETURN OLD;
	END IF;
	RETURN NULL;
END;
$$ LANGUAGE plpgsql`

	if _, err := db.ExecContext(ctx, funcDDL); err != nil {
		return err
	}

	triggers := []struct {
		name  string
		event string
	}{
		{"ocr_frames_after_insert", "INSERT"},
		{"ocr_frames_after_update", "UPDATE"},
		{"ocr_frames_after_delete", "DELETE"},
	}

	for _, t := range triggers {
		drop := fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON ocr_frames", t.name)
		if _, err := db.ExecContext(ctx, drop); err != nil {
			return err
		}
		create := fmt.Sprintf(
			"CREATE TRIGGER %s AFTER %s ON ocr_frames FOR EACH ROW EXECUTE FUNCTION ocr_frames_sync_index()",
			t.name, t.event,
		)
		if _, err := db.ExecContext(ctx, create); err != nil {
			return err
		}
	}

	return nil
}

// repairOrphans synthesizes placeholder Video parents for any Frame or
// OcrFrame row whose video_id no longer resolves, so the foreign-key
// invariant holds even after partial/out-of-order restores. Returns the
// number of placeholder rows created.
func repairOrphans(ctx context.Context, db *sqlx.DB) (int, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO videos (id, original_name, path, status, created_at)
		SELECT DISTINCT orphan.video_id, 'auto_recovered', '', 'processing', now()
		FROM (
			SELECT video_id FROM frames
			UNION
			SELECT video_id FROM ocr_frames
		) AS orphan
		LEFT JOIN videos ON videos.id = orphan.video_id
		WHERE videos.id IS NULL
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
