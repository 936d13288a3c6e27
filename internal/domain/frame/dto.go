package frame

// Response is one frame as returned by list_video_frames, with a
// time-limited URL for fetching the underlying image directly from the
// object store.
type Response struct {
	FrameNumber int     `json:"frame_number"`
	FrameTime   float64 `json:"frame_time"`
	URL         string  `json:"url"`
	OcrText     *string `json:"ocr_text,omitempty"`
	Processed   bool    `json:"processed"`
}

func FromWithOcrText(f WithOcrText, url string) Response {
	return Response{
		FrameNumber: f.FrameNumber,
		FrameTime:   f.FrameTime,
		URL:         url,
		OcrText:     f.OcrText,
		Processed:   f.Processed,
	}
}

// ListResponse is the list_video_frames envelope: a page of frames plus the
// limit/offset that produced it.
type ListResponse struct {
	Items  []Response `json:"items"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
