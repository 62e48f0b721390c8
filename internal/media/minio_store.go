package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"supportdesk/backend/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const publicReadPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`

// MinioStore keeps media in a MinIO (or any S3 compatible) bucket with public read access.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	log       *zap.Logger
}

// NewMinioStore connects to the bucket, creating it with a public read policy if missing.
func NewMinioStore(ctx context.Context, cfg config.MediaConfig, log *zap.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("media: minio endpoint not configured")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("media: check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("media: create bucket %s: %w", cfg.Bucket, err)
		}
		if err := client.SetBucketPolicy(ctx, cfg.Bucket, fmt.Sprintf(publicReadPolicy, cfg.Bucket)); err != nil {
			return nil, fmt.Errorf("media: set bucket policy %s: %w", cfg.Bucket, err)
		}
		log.Info("Created media bucket", zap.String("bucket", cfg.Bucket))
	}

	return &MinioStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicBaseURL(cfg),
		log:       log,
	}, nil
}

func (s *MinioStore) Upload(ctx context.Context, conversationID string, data []byte, filename, contentType string) (*Object, error) {
	key := objectKey(conversationID, filename, contentType)

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("media: upload %s: %w", key, err)
	}

	return &Object{
		PublicURL:   s.publicURL + "/" + key,
		StoragePath: key,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

func (s *MinioStore) Delete(ctx context.Context, storagePath string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, storagePath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("media: delete %s: %w", storagePath, err)
	}
	return nil
}

// publicBaseURL is MINIO_PUBLIC_URL when set, otherwise the bucket URL on the endpoint.
func publicBaseURL(cfg config.MediaConfig) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, strings.TrimRight(endpoint, "/"), cfg.Bucket)
}
