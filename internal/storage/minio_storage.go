package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioStorage struct {
	client      *minio.Client
	bucket      string
	externalURL string
}

func NewMinioStorage(ctx context.Context, config *BackendConfig) (*MinioStorage, error) {
	client, err := minio.New(config.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.S3AccessKey, config.S3SecretKey, ""),
		Secure: config.S3UseSSL,
		Region: config.S3Region,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, config.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", config.S3Bucket, err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, config.S3Bucket, minio.MakeBucketOptions{Region: config.S3Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", config.S3Bucket, err)
		}
	}

	return &MinioStorage{
		client:      client,
		bucket:      config.S3Bucket,
		externalURL: strings.TrimSuffix(config.ExternalURL, "/"),
	}, nil
}

func (s *MinioStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	putOpts := minio.PutObjectOptions{
		ContentType: opts.ContentType,
		Expires:     opts.Expires,
	}
	if opts.PublicRead {
		putOpts.UserMetadata = map[string]string{"x-amz-acl": "public-read"}
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, putOpts)
	return err
}

// URL is the public object URL; objects are written public-read so no
// presigning is needed.
func (s *MinioStorage) URL(ctx context.Context, key string) (string, error) {
	if s.externalURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.externalURL, s.bucket, key), nil
	}
	u := *s.client.EndpointURL()
	u.Path = "/" + s.bucket + "/" + key
	return u.String(), nil
}
