// Package storage issues presigned URLs for hiring-profile objects. Files
// never pass through the service; clients upload and download directly.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Presigner hands out time-limited object URLs.
type Presigner interface {
	PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MinIOPresigner is a thin wrapper around the minio client.
type MinIOPresigner struct {
	client *minio.Client
	bucket string
}

// NewMinIOPresigner creates the client. It does not touch the network; call
// EnsureBucket at startup to create the bucket.
func NewMinIOPresigner(cfg MinIOConfig) (*MinIOPresigner, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	return &MinIOPresigner{client: mc, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist (idempotent).
func (s *MinIOPresigner) EnsureBucket(ctx context.Context) error {
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		// ignore "already exists" style errors
		exist, xerr := s.client.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return nil
}

// PresignPut returns a presigned PUT URL valid for ttl.
func (s *MinIOPresigner) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	if err != nil {
		return "", fmt.Errorf("minio presign put: %w", err)
	}
	return u.String(), nil
}

// PresignGet returns a presigned GET URL valid for ttl.
func (s *MinIOPresigner) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("minio presign get: %w", err)
	}
	return u.String(), nil
}

// New builds the presigner the config selects.
func New(ctx context.Context, cfg Config) (Presigner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == "s3" {
		return NewS3Presigner(ctx, cfg.S3)
	}
	return NewMinIOPresigner(cfg.MinIO)
}
