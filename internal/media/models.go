package media

import (
	"errors"
	"time"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidFileType  = errors.New("invalid file type")
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrUnknownBucket    = errors.New("unknown bucket")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// UploadResult is returned for every stored upload.
type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Kind        string `json:"kind"` // image or video
	Size        int64  `json:"size"`
}

// DeleteRequest is the body of the admin media delete endpoint.
type DeleteRequest struct {
	URLs []string `json:"urls"`
}

const (
	DefaultMaxUploadSize = 50 * 1024 * 1024
	UploadFolder         = "products"

	// Public object paths mirror the storage URL layout the storefront links to.
	ObjectPathPrefix = "/storage/v1/object/public/"
	RenderPathPrefix = "/storage/v1/render/image/public/"

	MaxRenderDimension = 4000
	MinRenderQuality   = 20
	MaxRenderQuality   = 100
	DefaultQuality     = 80
)
