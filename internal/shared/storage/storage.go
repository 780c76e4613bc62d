// Package storage archives generated files in MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bitfantasy/nimo-repair/internal/config"
)

// Store puts objects.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// MinIO 对象存储
type MinIO struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and makes sure the bucket exists. It returns Nop when
// no endpoint is configured.
func New(ctx context.Context, cfg config.MinIOConfig) (Store, error) {
	if cfg.Endpoint == "" {
		return Nop{}, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinIO{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinIO) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Nop discards objects.
type Nop struct{}

func (Nop) Put(context.Context, string, string, []byte) error { return nil }
