package database

import (
	"context"
	"fmt"

	"altessa/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// NewMinIOClient creates a client without touching any bucket.
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return client, nil
}

// NewMinIOConnection creates the client and makes sure the product media and
// render buckets exist and are publicly readable.
func NewMinIOConnection(ctx context.Context, cfg config.MinIOConfig, log *zap.Logger) (*minio.Client, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := EnsureBuckets(ctx, client, log, cfg.BucketMedia, cfg.BucketRenders); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureBuckets creates missing buckets and applies the public read policy.
// A policy failure is logged, not returned: the buckets remain usable through
// the service's own object routes.
func EnsureBuckets(ctx context.Context, client *minio.Client, log *zap.Logger, buckets ...string) error {
	for _, bucket := range buckets {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}

		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
			log.Info("created bucket", zap.String("bucket", bucket))
		}

		if err := client.SetBucketPolicy(ctx, bucket, PublicReadPolicy(bucket)); err != nil {
			log.Warn("failed to set public policy", zap.String("bucket", bucket), zap.Error(err))
		}
	}
	return nil
}

// PublicReadPolicy is an anonymous s3:GetObject policy for bucket.
func PublicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{
	"Version": "2012-10-17",
	"Statement": [{
		"Effect": "Allow",
		"Principal": {"AWS": ["*"]},
		"Action": ["s3:GetObject"],
		"Resource": ["arn:aws:s3:::%s/*"]
	}]
}`, bucket)
}
