package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	dirPerm  = 0755
	filePerm = 0644
	tmpExt   = ".part"
)

// ChunkStore persists inbound payloads under the upload root.
type ChunkStore struct {
	root string
}

func NewChunkStore(root string) *ChunkStore {
	return &ChunkStore{root: root}
}

func (s *ChunkStore) Root() string {
	return s.root
}

func (s *ChunkStore) UploadDir(uploadID string) string {
	return filepath.Join(s.root, uploadID)
}

func (s *ChunkStore) ChunkDir(uploadID string) string {
	return filepath.Join(s.root, uploadID, chunkDirName)
}

// StorePart writes chunk index of uploadID to its padded name in the chunk
// directory.
func (s *ChunkStore) StorePart(ctx context.Context, uploadID string, index, totalParts int, src io.Reader) error {
	dest := filepath.Join(s.ChunkDir(uploadID), ChunkFilename(index, totalParts))
	if err := s.move(ctx, dest, src); err != nil {
		return fmt.Errorf("%w %d of %s: %v", ErrStoreChunk, index, uploadID, err)
	}
	return nil
}

// StoreFile places a single-shot upload directly at its final destination.
func (s *ChunkStore) StoreFile(ctx context.Context, uploadID, filename string, src io.Reader) (string, error) {
	dest := filepath.Join(s.UploadDir(uploadID), filename)
	if err := s.move(ctx, dest, src); err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrStoreFile, dest, err)
	}
	return dest, nil
}

func (s *ChunkStore) move(ctx context.Context, dest string, src io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Problem creating directory")
		return err
	}

	if f, ok := src.(*os.File); ok {
		if err := os.Rename(f.Name(), dest); err == nil {
			return nil
		}
		// cross-device or already unlinked; fall back to copying
	}

	tmp := dest + tmpExt
	if err := copyToFile(ctx, tmp, src, os.O_CREATE|os.O_WRONLY|os.O_TRUNC); err != nil {
		log.Error().Err(err).Str("dest", dest).Msg("Problem copying file")
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}

	if f, ok := src.(*os.File); ok {
		os.Remove(f.Name())
	}
	return nil
}

func copyToFile(ctx context.Context, path string, src io.Reader, flag int) error {
	file, err := os.OpenFile(path, flag, filePerm)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(file, &ctxReader{ctx: ctx, r: src})
	closeErr := file.Close()
	return errors.Join(copyErr, closeErr)
}

// ctxReader stops a stream copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
