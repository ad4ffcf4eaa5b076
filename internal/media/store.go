package media

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// Store is the object storage used for product media and rendered variants.
type Store interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
}

// MinIOStore implements Store on top of a MinIO (S3 compatible) client.
type MinIOStore struct {
	client *minio.Client
}

func NewMinIOStore(client *minio.Client) *MinIOStore {
	return &MinIOStore{client: client}
}

func (s *MinIOStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	info, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=3600",
	})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	return ObjectInfo{
		Bucket:       bucket,
		Key:          info.Key,
		ContentType:  contentType,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}, nil
}

func (s *MinIOStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, translateError(err)
	}

	// GetObject is lazy; Stat surfaces missing keys.
	stat, err := object.Stat()
	if err != nil {
		object.Close()
		return nil, ObjectInfo{}, translateError(err)
	}
	return object, toObjectInfo(bucket, stat), nil
}

func (s *MinIOStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, translateError(err)
	}
	return toObjectInfo(bucket, stat), nil
}

func (s *MinIOStore) Remove(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return translateError(err)
	}
	return nil
}

func toObjectInfo(bucket string, stat minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Bucket:       bucket,
		Key:          stat.Key,
		ContentType:  stat.ContentType,
		Size:         stat.Size,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}
}

func translateError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
