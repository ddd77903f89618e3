// Package storage provides access to the document corpus in object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"miba-assist-go/internal/config"
	"miba-assist-go/pkg/log"
)

// DefaultURLExpiry is the lifetime of generated download links.
const DefaultURLExpiry = 3600 * time.Second

// ObjectStorage is the corpus-facing surface of the object store.
type ObjectStorage interface {
	// ListObjects returns the object keys under the configured bucket/prefix,
	// skipping directory markers and checkpoint artifacts.
	ListObjects(ctx context.Context) ([]string, error)
	// FetchObject returns the raw bytes of one object.
	FetchObject(ctx context.Context, key string) ([]byte, error)
	// PresignedURL returns a time-limited download link for one object.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type minioStorage struct {
	client *minio.Client
	cfg    config.MinIOConfig
}

// NewMinIOStorage connects to MinIO and verifies the bucket exists.
// A missing bucket is a configuration error and therefore fatal.
func NewMinIOStorage(cfg config.MinIOConfig) (ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket '%s': %w", cfg.BucketName, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket '%s' does not exist", cfg.BucketName)
	}

	log.Infof("object storage ready, bucket '%s', prefix '%s'", cfg.BucketName, cfg.BucketPrefix)
	return &minioStorage{client: client, cfg: cfg}, nil
}

func (s *minioStorage) ListObjects(ctx context.Context) ([]string, error) {
	var keys []string
	opts := minio.ListObjectsOptions{Prefix: s.cfg.BucketPrefix, Recursive: true}
	for obj := range s.client.ListObjects(ctx, s.cfg.BucketName, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") || strings.Contains(obj.Key, ".ipynb_checkpoints") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *minioStorage) FetchObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.BucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object '%s': %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}
	return data, nil
}

func (s *minioStorage) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	u, err := s.client.PresignedGetObject(ctx, s.cfg.BucketName, key, expiry, nil)
	if err != nil {
		log.Errorf("failed to generate presigned URL for '%s': %v", key, err)
		return "", err
	}
	return u.String(), nil
}
