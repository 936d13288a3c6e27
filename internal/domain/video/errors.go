package video

import "errors"

var (
	// ErrVideoNotFound is returned when a video id does not resolve.
	ErrVideoNotFound = errors.New("video not found")

	// ErrStorageFull signals the object store rejected the write for lack
	// of space (mapped to HTTP 507).
	ErrStorageFull = errors.New("object store is full")

	// ErrUpstreamUnavailable signals the object store or catalog could not
	// be reached (mapped to HTTP 502).
	ErrUpstreamUnavailable = errors.New("upstream storage unavailable")

	// ErrInvalidMimeType is returned when the uploaded file's content type
	// is not an accepted video type.
	ErrInvalidMimeType = errors.New("unsupported video content type")

	// ErrFileTooLarge is returned when the uploaded file exceeds the
	// configured maximum size for the "video" category.
	ErrFileTooLarge = errors.New("video exceeds maximum allowed size")
)
