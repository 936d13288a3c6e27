package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// FileInfo represents metadata about a stored object
type FileInfo struct {
	Key         string // Unique identifier/path
	Size        int64
	ContentType string
	URL         string // Public URL if available
}

// Storage defines the interface for the object-store backends the pipeline
// writes source videos and derived frames to
type Storage interface {
	// Put stores an object under key
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get retrieves an object by key
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by key
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetURL returns the public URL for an object
	GetURL(key string) string

	// GetInfo returns object metadata
	GetInfo(ctx context.Context, key string) (*FileInfo, error)

	// PresignPutURL returns a time-limited URL the caller can PUT the object
	// body to directly, bypassing the API process
	PresignPutURL(ctx context.Context, key string, expires time.Duration, contentType string) (string, error)

	// PresignGetURL returns a time-limited URL for reading an object
	// directly from the backend
	PresignGetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// AllowedMimeTypes defines allowed content types per pipeline category
var AllowedMimeTypes = map[string][]string{
	"video": {
		"video/mp4",
		"video/quicktime",
		"video/x-matroska",
		"video/webm",
	},
	"frame": {
		"image/jpeg",
		"image/png",
	},
}

// MaxFileSizes defines max object size per category (bytes)
var MaxFileSizes = map[string]int64{
	"video": 2 * 1024 * 1024 * 1024, // 2 GiB
	"frame": 25 * 1024 * 1024,       // 25 MB
}

// DefaultPresignExpiry is used when a caller requests no explicit TTL
const DefaultPresignExpiry = 15 * time.Minute

// Presign TTL bounds accepted from callers
const (
	MinPresignExpiry = 60 * time.Second
	MaxPresignExpiry = 24 * time.Hour
)

// ClampExpiry clamps a requested TTL into [MinPresignExpiry, MaxPresignExpiry],
// substituting DefaultPresignExpiry for a non-positive value
func ClampExpiry(requested time.Duration) time.Duration {
	if requested <= 0 {
		return DefaultPresignExpiry
	}
	if requested < MinPresignExpiry {
		return MinPresignExpiry
	}
	if requested > MaxPresignExpiry {
		return MaxPresignExpiry
	}
	return requested
}

// Config holds storage configuration
type Config struct {
	Type        string // "local", "s3", "minio" ("r2" is rejected by New)
	LocalPath   string // For local storage: path to store files
	LocalURL    string // For local storage: public URL prefix
	S3Endpoint  string // For S3/MinIO: custom endpoint
	S3Region    string // AWS region
	S3Bucket    string // S3 bucket name
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key
}

// New creates a storage instance based on config
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "local":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case "s3", "minio":
		return NewS3Storage(cfg)
	case "r2":
		// R2Config's field names don't line up with Config's, so New can't
		// build one from cfg alone. Callers that need R2 must construct an
		// R2Config and call NewR2Storage directly instead of going through
		// New with Type: "r2".
		return nil, fmt.Errorf("storage: type %q requires calling NewR2Storage directly, not New", cfg.Type)
	default:
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	}
}
