package video

// UploadResponse is returned by POST /upload.
type UploadResponse struct {
	VideoID  string `json:"video_id"`
	Filename string `json:"filename"`
	Status   Status `json:"status"`
}

// ListItemResponse is one entry of GET /api/videos.
type ListItemResponse struct {
	VideoID         string     `json:"video_id"`
	Filename        string     `json:"filename"`
	Status          Status     `json:"status"`
	TotalFrames     int        `json:"total_frames"`
	ProcessedFrames int        `json:"processed_frames"`
	ProgressPercent float64    `json:"progress_percent"`
	CreatedAt       string     `json:"created_at"`
	ProcessedAt     *string    `json:"processed_at,omitempty"`
}

// FromListItem converts the repository row into the wire shape.
func FromListItem(item ListItem) ListItemResponse {
	resp := ListItemResponse{
		VideoID:         item.ID,
		Filename:        item.OriginalName,
		Status:          item.Status,
		TotalFrames:     item.TotalFrames,
		ProcessedFrames: item.ProcessedFrames,
		ProgressPercent: item.ProgressPercent,
		CreatedAt:       item.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if item.ProcessedAt != nil {
		s := item.ProcessedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ProcessedAt = &s
	}
	return resp
}

// DetailResponse is returned by GET /api/videos/{id}.
type DetailResponse struct {
	VideoID     string  `json:"video_id"`
	Filename    string  `json:"filename"`
	Status      Status  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

// FromEntity converts a Video into the wire shape.
func FromEntity(v *Video) DetailResponse {
	resp := DetailResponse{
		VideoID:   v.ID,
		Filename:  v.OriginalName,
		Status:    v.Status,
		CreatedAt: v.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if v.ProcessedAt != nil {
		s := v.ProcessedAt.Format("2006-01-02T15:04:05Z07:00")
		resp.ProcessedAt = &s
	}
	return resp
}
