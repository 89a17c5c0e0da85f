package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage mirrors the object store on the local filesystem. ACL and
// expiry are not applicable and ignored.
type LocalStorage struct {
	basePath    string
	externalURL string
}

func NewLocalStorage(config *BackendConfig) (*LocalStorage, error) {
	basePath := config.LocalPath
	if basePath == "" {
		basePath = "./store/objects"
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:    basePath,
		externalURL: strings.TrimSuffix(config.ExternalURL, "/"),
	}, nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(file, &contextReader{ctx: ctx, reader: reader})
	if err := errors.Join(copyErr, file.Close()); err != nil {
		os.Remove(fullPath)
		return err
	}

	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.reader.Read(p)
}

func (s *LocalStorage) URL(ctx context.Context, key string) (string, error) {
	if s.externalURL == "" {
		fullPath, err := s.resolve(key)
		if err != nil {
			return "", err
		}
		abs, err := filepath.Abs(fullPath)
		if err != nil {
			return "", err
		}
		return (&url.URL{Scheme: "file", Path: abs}).String(), nil
	}
	return fmt.Sprintf("%s/objects/%s", s.externalURL, url.PathEscape(key)), nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(fullPath, filepath.Clean(s.basePath)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return fullPath, nil
}
