package jobqueue

import (
	"encoding/json"
	"time"
)

// Type enumerates the job kinds the pipeline dispatches. Sample jobs spawn
// zero or more greyscale jobs, each greyscale job spawns one ocr job.
type Type string

const (
	TypeSample    Type = "sample"
	TypeGreyscale Type = "greyscale"
	TypeOCR       Type = "ocr"
)

// Status tracks a job's place in the leasing protocol.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// ErrorEntry records one failed attempt. Nack appends an ErrorEntry to the
// job's payload under the "errors" key rather than overwriting prior history,
// so the payload accumulates a structured failure trail across retries.
type ErrorEntry struct {
	AttemptedAt time.Time `json:"attempted_at"`
	Attempt     int       `json:"attempt"`
	Message     string    `json:"message"`
}

// Job is a row in the `jobs` table: the sole queue, no broker.
type Job struct {
	ID         string          `db:"id" json:"id"`
	VideoID    string          `db:"video_id" json:"video_id"`
	JobType    Type            `db:"job_type" json:"job_type"`
	Status     Status          `db:"status" json:"status"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
	MaxRetries int             `db:"max_retries" json:"max_retries"`
	RunAfter   time.Time       `db:"run_after" json:"run_after"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	StartedAt  *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// DecodePayload unmarshals the job payload into v.
func (j *Job) DecodePayload(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// SamplePayload is the payload shape for a TypeSample job.
type SamplePayload struct {
	VideoID  string `json:"video_id"`
	Filename string `json:"filename"`
}

// GreyscalePayload is the payload shape for a TypeGreyscale job.
type GreyscalePayload struct {
	VideoID     string `json:"video_id"`
	FrameNumber int    `json:"frame_number"`
	FrameKey    string `json:"frame_key"`
}

// OCRPayload is the payload shape for a TypeOCR job.
type OCRPayload struct {
	VideoID  string `json:"video_id"`
	FrameKey string `json:"frame_s3_key"`
}
