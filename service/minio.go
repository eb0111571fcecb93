package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ReportArchive keeps a copy of exported reports and returns a download link
type ReportArchive interface {
	Store(ctx context.Context, objectName string, pdf []byte) (string, error)
}

// MinioArchive stores exported reports in a MinIO or S3 bucket
type MinioArchive struct {
	client *minio.Client
	bucket string
	config *config.ArchiveConfig
}

func NewMinioArchive(cfg *config.ArchiveConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioArchive{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioArchive) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Store uploads the report and returns a presigned download URL
func (s *MinioArchive) Store(ctx context.Context, objectName string, pdf []byte) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(pdf), int64(len(pdf)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	return s.PresignedURL(ctx, objectName)
}

// PresignedURL generates a presigned URL for the object with expiration
func (s *MinioArchive) PresignedURL(ctx context.Context, objectName string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url.String(), nil
}
