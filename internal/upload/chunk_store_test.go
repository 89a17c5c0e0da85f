package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	data []byte
	read bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

func TestChunkStore_StoreFile_ShouldPlaceFileInUploadDir(t *testing.T) {
	// given
	root := t.TempDir()
	store := NewChunkStore(root)

	// when
	path, err := store.StoreFile(context.Background(), "abc", "x.txt", bytes.NewReader([]byte("0123456789")))

	// then
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "abc", "x.txt"), path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(content))
}

func TestChunkStore_StorePart_ShouldWritePaddedNames(t *testing.T) {
	// given
	root := t.TempDir()
	store := NewChunkStore(root)

	// when
	err := store.StorePart(context.Background(), "def", 3, 12, bytes.NewReader([]byte("d")))

	// then
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(root, "def", "chunks", "03"))
	require.NoError(t, err)
	assert.Equal(t, "d", string(content))
}

func TestChunkStore_StorePart_ShouldAcceptConcurrentParts(t *testing.T) {
	// given
	root := t.TempDir()
	store := NewChunkStore(root)
	total := 20

	// when
	var wg sync.WaitGroup
	errs := make(chan error, total)
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.StorePart(context.Background(), "def", i, total, bytes.NewReader([]byte(fmt.Sprint(i))))
		}(i)
	}
	wg.Wait()
	close(errs)

	// then
	for err := range errs {
		assert.NoError(t, err)
	}
	entries, err := os.ReadDir(store.ChunkDir("def"))
	require.NoError(t, err)
	assert.Len(t, entries, total)
}

func TestChunkStore_StorePart_ShouldRelocateTempFile(t *testing.T) {
	// given
	root := t.TempDir()
	store := NewChunkStore(root)
	src, err := os.CreateTemp(t.TempDir(), "multipart-")
	require.NoError(t, err)
	_, err = src.WriteString("payload")
	require.NoError(t, err)
	defer src.Close()

	// when
	err = store.StorePart(context.Background(), "def", 0, 1, src)

	// then
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(store.ChunkDir("def"), "0"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
	_, err = os.Stat(src.Name())
	assert.True(t, os.IsNotExist(err))
}

func TestChunkStore_StorePart_ShouldLeaveNothingBehindOnReadError(t *testing.T) {
	// given
	root := t.TempDir()
	store := NewChunkStore(root)

	// when
	err := store.StorePart(context.Background(), "def", 1, 3, &failingReader{data: []byte("half")})

	// then
	assert.ErrorIs(t, err, ErrStoreChunk)
	entries, readErr := os.ReadDir(store.ChunkDir("def"))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestChunkStore_StoreFile_ShouldStopOnCancelledContext(t *testing.T) {
	// given
	store := NewChunkStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// when
	path, err := store.StoreFile(ctx, "abc", "x.txt", io.LimitReader(bytes.NewReader(make([]byte, 1024)), 1024))

	// then
	assert.ErrorIs(t, err, ErrStoreFile)
	assert.Empty(t, path)
	_, statErr := os.Stat(filepath.Join(store.UploadDir("abc"), "x.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
