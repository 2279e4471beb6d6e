// Package storage provides a thin interface over S3-compatible object
// storage. It is used to archive uploaded catalog import files so a bad
// import can be replayed or inspected later.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"orderbot_backend/platform/config"
)

// Uploader stores raw files. Implementations must be safe for concurrent use.
type Uploader interface {
	// Upload stores the reader's content under a generated key inside
	// folder and returns the full object key.
	Upload(ctx context.Context, bucket, folder, fileName, contentType string, r io.Reader, size int64) (string, error)
	// EnsureBucket creates the bucket when it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error
}

// MinIOUploader implements Uploader on top of MinIO.
type MinIOUploader struct {
	client *minio.Client
}

// NewMinIOUploader connects to the configured MinIO endpoint.
func NewMinIOUploader(cfg config.StorageConfig) (*MinIOUploader, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("minio storage is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOUploader{client: client}, nil
}

func (s *MinIOUploader) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

func (s *MinIOUploader) Upload(ctx context.Context, bucket, folder, fileName, contentType string, r io.Reader, size int64) (string, error) {
	key := objectKey(folder, fileName)

	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, bucket, key, r, size, opts); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// objectKey namespaces uploads by date and a random ID so repeated imports
// of the same file never collide.
func objectKey(folder, fileName string) string {
	fileName = strings.ReplaceAll(path.Base(fileName), " ", "_")
	datePrefix := time.Now().UTC().Format("2006/01/02")
	return path.Join(folder, datePrefix, uuid.NewString()+"_"+fileName)
}

var _ Uploader = (*MinIOUploader)(nil)
