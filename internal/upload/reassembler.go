package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Reassembler concatenates the chunks of an upload, in index order, into the
// final file next to the chunk directory.
type Reassembler struct {
	store *ChunkStore
}

func NewReassembler(store *ChunkStore) *Reassembler {
	return &Reassembler{store: store}
}

// Combine returns the path of the assembled file. The chunk directory is kept
// on failure and removed (best effort) on success.
func (r *Reassembler) Combine(ctx context.Context, uploadID, filename string, totalParts int) (string, error) {
	chunkDir := r.store.ChunkDir(uploadID)

	names, err := r.listChunks(chunkDir, totalParts)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(r.store.UploadDir(uploadID), filename)
	tmp := dest + tmpExt

	if err := appendChunks(ctx, tmp, chunkDir, names); err != nil {
		log.Error().Err(err).Str("uploadId", uploadID).Msg("Problem appending chunk")
		os.Remove(tmp)
		return "", fmt.Errorf("%w for %s: %v", ErrCombine, uploadID, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w for %s: %v", ErrCombine, uploadID, err)
	}

	if err := os.RemoveAll(chunkDir); err != nil {
		log.Warn().Err(err).Str("dir", chunkDir).Msg("Problem deleting chunks dir")
	}

	return dest, nil
}

// listChunks returns the chunk names sorted ascending and fails unless every
// index 0..totalParts-1 is present.
func (r *Reassembler) listChunks(chunkDir string, totalParts int) ([]string, error) {
	entries, err := os.ReadDir(chunkDir)
	if err != nil {
		log.Error().Err(err).Str("dir", chunkDir).Msg("Problem listing chunks")
		return nil, fmt.Errorf("%w: list %s: %v", ErrCombine, chunkDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), tmpExt) {
			continue
		}
		if _, ok := ParseChunkFilename(entry.Name(), totalParts); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if len(names) != totalParts {
		return nil, fmt.Errorf("%w: have %d of %d in %s", ErrMissingChunks, len(names), totalParts, chunkDir)
	}
	for i, name := range names {
		if name != ChunkFilename(i, totalParts) {
			return nil, fmt.Errorf("%w: chunk %d absent in %s", ErrMissingChunks, i, chunkDir)
		}
	}

	return names, nil
}

func appendChunks(ctx context.Context, dest, chunkDir string, names []string) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}

	for _, name := range names {
		if err := appendChunk(ctx, out, filepath.Join(chunkDir, name)); err != nil {
			out.Close()
			return err
		}
	}

	return out.Close()
}

func appendChunk(ctx context.Context, out io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(out, &ctxReader{ctx: ctx, r: in})
	if err != nil {
		return fmt.Errorf("append %s: %w", filepath.Base(path), err)
	}
	return nil
}
