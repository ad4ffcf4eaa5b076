package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"altessa/internal/gallery"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sniffLen is how much of an upload is inspected to detect its type.
const sniffLen = 3072

// Uploader stores product media and removes it again by public URL.
type Uploader struct {
	store     Store
	bucket    string
	publicURL string
	maxBytes  int64
	log       *zap.Logger
	now       func() time.Time
}

func NewUploader(store Store, bucket, publicURL string, maxBytes int64, log *zap.Logger) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	return &Uploader{
		store:     store,
		bucket:    bucket,
		publicURL: publicURL,
		maxBytes:  maxBytes,
		log:       log,
		now:       time.Now,
	}
}

// Bucket is the bucket uploads go to.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// UploadFile is one file of a multi-file upload.
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Upload validates and stores a single file, returning its public URL.
func (u *Uploader) Upload(ctx context.Context, f UploadFile) (*UploadResult, error) {
	if f.Size > u.maxBytes {
		return nil, fmt.Errorf("%w: %q exceeds %dMB", ErrFileTooLarge, f.Name, u.maxBytes/(1024*1024))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	contentType, _, _ := strings.Cut(mt.String(), ";")
	kind := kindOf(contentType)
	if kind == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, contentType)
	}

	key := u.objectKey(f.Name, mt.Extension(), kind)
	body := io.MultiReader(bytes.NewReader(head), f.Reader)

	info, err := u.store.Put(ctx, u.bucket, key, body, f.Size, contentType)
	if err != nil {
		return nil, err
	}

	u.log.Info("media uploaded",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int64("size", info.Size),
	)

	return &UploadResult{
		URL:         ObjectURL(u.publicURL, u.bucket, key),
		Key:         key,
		ContentType: contentType,
		Kind:        kind,
		Size:        f.Size,
	}, nil
}

// UploadMany uploads files in order. On failure the files already stored in
// this call are removed and the error is returned.
func (u *Uploader) UploadMany(ctx context.Context, files []UploadFile) ([]*UploadResult, error) {
	results := make([]*UploadResult, 0, len(files))
	for _, f := range files {
		res, err := u.Upload(ctx, f)
		if err != nil {
			for _, done := range results {
				if rmErr := u.store.Remove(ctx, u.bucket, done.Key); rmErr != nil {
					u.log.Warn("failed to roll back upload", zap.String("key", done.Key), zap.Error(rmErr))
				}
			}
			return nil, fmt.Errorf("failed to upload %q: %w", f.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// DeleteByURL removes the object behind a public URL. Empty URLs and URLs
// that are not served by our storage are treated as already deleted.
func (u *Uploader) DeleteByURL(ctx context.Context, rawURL string) bool {
	if rawURL == "" || !strings.Contains(rawURL, "/storage/") {
		return true
	}

	key, ok := ObjectKeyFromURL(rawURL, u.bucket)
	if !ok {
		return false
	}

	if err := u.store.Remove(ctx, u.bucket, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		u.log.Error("failed to delete media", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// DeleteMany removes every URL and reports whether all deletions succeeded.
func (u *Uploader) DeleteMany(ctx context.Context, urls []string) bool {
	ok := true
	for _, raw := range urls {
		if !u.DeleteByURL(ctx, raw) {
			ok = false
		}
	}
	return ok
}

// objectKey builds "products/{unixmillis}-{random}.{ext}". The extension
// follows the detected type so a URI classifies the same way as its content.
// The client extension is only used when detection has none and it agrees
// with kind.
func (u *Uploader) objectKey(name, detectedExt, kind string) string {
	ext := strings.TrimPrefix(detectedExt, ".")
	if ext == "" {
		clientExt := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
		if clientExt != "" && string(gallery.Classify("x."+clientExt)) == kind {
			ext = clientExt
		}
	}
	if ext == "" {
		ext = "bin"
		if kind == "video" {
			ext = "mp4"
		}
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	return fmt.Sprintf("%s/%d-%s.%s", UploadFolder, u.now().UnixMilli(), token, ext)
}

func kindOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	}
	return ""
}
