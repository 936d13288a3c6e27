package frame

import "errors"

var (
	// ErrFrameNotFound is returned when a frame id does not resolve.
	ErrFrameNotFound = errors.New("frame not found")

	// ErrOcrFrameNotFound is returned when no OcrFrame exists for a frame key.
	ErrOcrFrameNotFound = errors.New("ocr frame not found")

	// ErrDuplicateFrameNumber signals a Frame insert collided with the
	// per-video frame_number uniqueness invariant.
	ErrDuplicateFrameNumber = errors.New("frame number already used for this video")
)
