package frame

import "time"

// Frame is one kept keyframe extracted from a video by the Sampler. Path
// starts as the sample object-store key and is overwritten by the
// Preprocessor with the greyscale key once that stage runs.
type Frame struct {
	ID                   string  `db:"id" json:"id"`
	VideoID              string  `db:"video_id" json:"video_id"`
	FrameNumber          int     `db:"frame_number" json:"frame_number"`
	FrameTime            float64 `db:"frame_time" json:"frame_time"`
	Path                 string  `db:"path" json:"path"`
	GreyscaleIsProcessed bool    `db:"greyscale_is_processed" json:"greyscale_is_processed"`
}

// OcrFrame is the OCR result for one frame, upserted by frame key (not row
// id) so the trigger-maintained OcrIndex row stays in lock-step.
type OcrFrame struct {
	ID        string    `db:"id" json:"id"`
	VideoID   string    `db:"video_id" json:"video_id"`
	FrameKey  string    `db:"frame_key" json:"frame_key"`
	OcrText   string    `db:"ocr_text" json:"ocr_text"`
	Processed bool      `db:"processed" json:"processed"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WithOcrText is one row returned by listing a video's frames alongside
// whatever OCR text has been produced for them so far (empty until the OCR
// worker has run).
type WithOcrText struct {
	Frame
	OcrText   *string `db:"ocr_text" json:"ocr_text,omitempty"`
	Processed bool    `db:"processed" json:"processed"`
}
