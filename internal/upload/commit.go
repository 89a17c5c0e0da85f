package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
	"github.com/jlairapp/faceFlipper/internal/storage"
	"github.com/rs/zerolog/log"
)

const defaultRemoteWriteTimeout = 60 * time.Second

// DefaultObjectExpires is the fixed Expires value attached to every stored
// object unless configured otherwise.
var DefaultObjectExpires = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// CommitPipeline hands an assembled file to the object store and records the
// resulting key against its owner.
type CommitPipeline struct {
	owners  Owners
	store   storage.ObjectStore
	expires time.Time
	timeout time.Duration
}

func NewCommitPipeline(owners Owners, store storage.ObjectStore, expires time.Time, timeout time.Duration) *CommitPipeline {
	if expires.IsZero() {
		expires = DefaultObjectExpires
	}
	if timeout <= 0 {
		timeout = defaultRemoteWriteTimeout
	}
	return &CommitPipeline{
		owners:  owners,
		store:   store,
		expires: expires,
		timeout: timeout,
	}
}

// Commit resolves the owner's object key, writes the file under it and then
// records the key. The owner record is only touched after the remote write
// succeeded; a remote object written before a failed record is not removed.
func (c *CommitPipeline) Commit(ctx context.Context, ownerID, path string) (*Committed, error) {
	key, err := c.owners.ResolveObjectKey(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve object key for %s: %v", ErrCommit, ownerID, err)
	}

	if err := c.put(ctx, key, path); err != nil {
		return nil, fmt.Errorf("%w: store %s as %s: %v", ErrCommit, path, key, err)
	}

	if err := c.owners.RecordObjectKey(ctx, ownerID, key); err != nil {
		return nil, fmt.Errorf("%w: record object key for %s: %v", ErrCommit, ownerID, err)
	}

	url, err := c.store.URL(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to build object URL")
	}

	return &Committed{OwnerID: ownerID, ObjectKey: key, URL: url}, nil
}

func (c *CommitPipeline) put(ctx context.Context, key, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err = c.store.Put(ctx, key, file, info.Size(), storage.PutOptions{
		ContentType: contentTypeOf(path),
		PublicRead:  true,
		Expires:     c.expires,
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("key", key).
		Str("size", units.HumanSizeWithPrecision(float64(info.Size()), 3)).
		Dur("took", time.Since(start)).
		Msg("Stored object")
	return nil
}

func contentTypeOf(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
