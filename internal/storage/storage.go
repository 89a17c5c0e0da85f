package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the remote home of committed uploads.
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error
	URL(ctx context.Context, key string) (string, error)
}

type PutOptions struct {
	ContentType string
	PublicRead  bool
	Expires     time.Time
}

type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

type BackendConfig struct {
	Type        StorageType
	LocalPath   string
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	ExternalURL string
}

func NewBackend(ctx context.Context, config *BackendConfig) (ObjectStore, error) {
	switch config.Type {
	case StorageTypeLocal:
		return NewLocalStorage(config)
	case StorageTypeMinio:
		return NewMinioStorage(ctx, config)
	default:
		return NewS3Storage(ctx, config)
	}
}
