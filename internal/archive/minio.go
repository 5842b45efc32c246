// Package archive keeps the uploaded transcript files in MinIO.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/agenthands/depo/internal/config"
)

// Archive stores an uploaded file and returns the object name it was stored under.
type Archive interface {
	Put(ctx context.Context, caseID int64, filename string, data []byte, contentType string) (string, error)
}

type MinIOArchive struct {
	client *minio.Client
	bucket string
}

func NewMinIOArchive(ctx context.Context, cfg config.ArchiveConfig) (*MinIOArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIOArchive{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinIOArchive) Put(ctx context.Context, caseID int64, filename string, data []byte, contentType string) (string, error) {
	objectName := ObjectName(caseID, filename, uuid.New().String())
	_, err := m.client.PutObject(ctx, m.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to MinIO: %w", err)
	}
	return objectName, nil
}

// ObjectName builds "cases/<caseID>/<id><ext>" keeping the lower-cased extension.
func ObjectName(caseID int64, filename, id string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("cases/%d/%s%s", caseID, id, ext)
}
