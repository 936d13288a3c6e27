package video

import "time"

// Status enumerates the Video lifecycle. A video is created in Queued by
// Ingress, moved to Processing by the Sampler once frames are inserted, and
// moved to Ready by the OCR worker once every child frame has a processed
// OcrFrame. Failed is reached only through explicit admin action.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Video is one uploaded source file and the parent of its extracted frames.
type Video struct {
	ID           string     `db:"id" json:"id"`
	OriginalName string     `db:"original_name" json:"original_name"`
	Path         string     `db:"path" json:"path"`
	Status       Status     `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}

// Summary aggregates counts across all videos for the dashboard endpoint.
type Summary struct {
	TotalVideos   int `json:"total_videos"`
	TotalFrames   int `json:"total_frames"`
	IndexedFrames int `json:"indexed_frames"`
}

// ListItem is one row of list_videos(): a video plus its frame progress.
type ListItem struct {
	Video
	TotalFrames     int     `db:"total_frames" json:"total_frames"`
	ProcessedFrames int     `db:"processed_frames" json:"processed_frames"`
	ProgressPercent float64 `json:"progress_percent"`
}
