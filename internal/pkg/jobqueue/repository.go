package jobqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrNoJob is returned by Claim when no eligible job is currently available.
var ErrNoJob = errors.New("jobqueue: no eligible job")

// queryRowxer is satisfied by both *sqlx.DB and *sqlx.Tx, letting Enqueue
// participate in a caller-supplied transaction or run standalone.
type queryRowxer interface {
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

// Repository is the sqlx-backed store for the jobs table.
type Repository interface {
	// Enqueue inserts a new queued job. When tx is non-nil the insert
	// participates in the caller's transaction (used by Ingress to make
	// "Video row + sample job" atomic).
	Enqueue(ctx context.Context, tx *sqlx.Tx, videoID string, jobType Type, payload interface{}, maxRetries int) (*Job, error)

	// Claim leases one eligible job of the given type for exclusive
	// processing, using SELECT ... FOR UPDATE SKIP LOCKED so N concurrent
	// workers of the same type make progress without serializing on each
	// other's claim.
	Claim(ctx context.Context, jobType Type) (*Job, error)

	// Ack marks a claimed job done.
	Ack(ctx context.Context, id string) error

	// Nack records a failed attempt, appending a structured error entry to
	// the payload and scheduling the next attempt with exponential backoff
	// plus jitter. Once retry_count+1 reaches maxRetries the job is marked
	// failed terminally instead of rescheduled.
	Nack(ctx context.Context, id string, cause error, baseDelay time.Duration) error

	// Fail marks a job terminally failed immediately, skipping the
	// reschedule path entirely. Used for fatal errors (e.g. ocr.ErrOCRFatal)
	// where retrying would only repeat a guaranteed failure.
	Fail(ctx context.Context, id string, cause error) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository constructs a job queue repository over db.
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Enqueue(ctx context.Context, tx *sqlx.Tx, videoID string, jobType Type, payload interface{}, maxRetries int) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}

	j := &Job{
		ID:         uuid.NewString(),
		VideoID:    videoID,
		JobType:    jobType,
		Status:     StatusQueued,
		Payload:    raw,
		MaxRetries: maxRetries,
		RunAfter:   time.Now(),
	}

	const query = `
		INSERT INTO jobs (id, video_id, job_type, status, payload, retry_count, max_retries, run_after, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`

	var execer queryRowxer = r.db
	if tx != nil {
		execer = tx
	}

	row := execer.QueryRowxContext(ctx, query, j.ID, j.VideoID, j.JobType, j.Status, j.Payload, j.MaxRetries, j.RunAfter)
	if err := row.Scan(&j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return j, nil
}

// Claim implements the SKIP LOCKED leasing protocol: select one eligible row
// (queued and due) and flip it to processing within the same transaction
// that holds the row lock, so a second worker's concurrent claim attempt
// skips straight past rather than blocking.
func (r *repository) Claim(ctx context.Context, jobType Type) (*Job, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var j Job
	err = tx.GetContext(ctx, &j, `
		SELECT id, video_id, job_type, status, payload, retry_count, max_retries, run_after, created_at, started_at, finished_at, updated_at
		FROM jobs
		WHERE job_type = $1
		  AND status = $2
		  AND run_after <= NOW()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`, jobType, StatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJob
		}
		return nil, fmt.Errorf("claim select: %w", err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, started_at = $3, updated_at = $3
		WHERE id = $1
	`, j.ID, StatusProcessing, now)
	if err != nil {
		return nil, fmt.Errorf("claim update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	j.Status = StatusProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	return &j, nil
}

func (r *repository) Ack(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = $2, finished_at = NOW(), updated_at = NOW() WHERE id = $1
	`, id, StatusDone)
	if err != nil {
		return fmt.Errorf("ack job %s: %w", id, err)
	}
	return nil
}

// Nack appends a structured ErrorEntry to the payload's "errors" array and
// either reschedules the job (run_after pushed out by delay(n)) or marks it
// terminally failed once retry_count+1 reaches maxRetries.
func (r *repository) Nack(ctx context.Context, id string, cause error, baseDelay time.Duration) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin nack tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var j Job
	if err := tx.GetContext(ctx, &j, `
		SELECT id, video_id, job_type, status, payload, retry_count, max_retries, run_after, created_at, started_at, finished_at, updated_at
		FROM jobs WHERE id = $1 FOR UPDATE
	`, id); err != nil {
		return fmt.Errorf("nack select %s: %w", id, err)
	}

	payload := appendErrorEntry(j.Payload, j.RetryCount, cause)
	nextRetryCount := j.RetryCount + 1

	if nextRetryCount >= j.MaxRetries {
		_, err = tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = $2, payload = $3, retry_count = $4, finished_at = NOW(), updated_at = NOW()
			WHERE id = $1
		`, id, StatusFailed, payload, nextRetryCount)
		if err != nil {
			return fmt.Errorf("nack terminal update %s: %w", id, err)
		}
		return tx.Commit()
	}

	delay := BackoffDelay(baseDelay, nextRetryCount)
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, payload = $3, retry_count = $4, run_after = $5, updated_at = NOW()
		WHERE id = $1
	`, id, StatusQueued, payload, nextRetryCount, time.Now().Add(delay))
	if err != nil {
		return fmt.Errorf("nack reschedule %s: %w", id, err)
	}
	return tx.Commit()
}

// Fail marks a job terminally failed without consulting retry_count/
// max_retries, recording cause as the final error-entry.
func (r *repository) Fail(ctx context.Context, id string, cause error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin fail tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var j Job
	if err := tx.GetContext(ctx, &j, `
		SELECT id, video_id, job_type, status, payload, retry_count, max_retries, run_after, created_at, started_at, finished_at, updated_at
		FROM jobs WHERE id = $1 FOR UPDATE
	`, id); err != nil {
		return fmt.Errorf("fail select %s: %w", id, err)
	}

	payload := appendErrorEntry(j.Payload, j.RetryCount, cause)
	_, err = tx.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2, payload = $3, retry_count = $4, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id, StatusFailed, payload, j.RetryCount+1)
	if err != nil {
		return fmt.Errorf("fail terminal update %s: %w", id, err)
	}
	return tx.Commit()
}

// BackoffDelay computes delay(n) = base * 3^n * U(0.8, 1.2), the
// exponential-backoff-with-jitter schedule the retry protocol specifies.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	factor := math.Pow(3, float64(attempt))
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(base) * factor * jitter)
}

func appendErrorEntry(payload json.RawMessage, attempt int, cause error) json.RawMessage {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil || doc == nil {
		doc = map[string]json.RawMessage{}
	}

	var entries []ErrorEntry
	if raw, ok := doc["errors"]; ok {
		_ = json.Unmarshal(raw, &entries)
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	entries = append(entries, ErrorEntry{
		AttemptedAt: time.Now(),
		Attempt:     attempt,
		Message:     msg,
	})

	raw, err := json.Marshal(entries)
	if err != nil {
		return payload
	}
	doc["errors"] = raw

	out, err := json.Marshal(doc)
	if err != nil {
		return payload
	}
	return out
}
