package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Committer is the final stage of a chunked upload.
type Committer interface {
	Commit(ctx context.Context, ownerID, path string) (*Committed, error)
}

// Coordinator routes every inbound part through storage and, for the part
// that completes an upload, through reassembly and commit.
type Coordinator struct {
	store       *ChunkStore
	reassembler *Reassembler
	committer   Committer
	tracker     Tracker
	notifier    Notifier
	maxFileSize int64
}

func NewCoordinator(store *ChunkStore, committer Committer, tracker Tracker, notifier Notifier, maxFileSize int64) *Coordinator {
	if tracker == nil {
		tracker = NewMemoryTracker()
	}
	return &Coordinator{
		store:       store,
		reassembler: NewReassembler(store),
		committer:   committer,
		tracker:     tracker,
		notifier:    notifier,
		maxFileSize: maxFileSize,
	}
}

// AllowedSize reports whether size passes the maximum file size policy
// (0 means unlimited).
func (c *Coordinator) AllowedSize(size int64) bool {
	return c.maxFileSize == 0 || size < c.maxFileSize
}

func (c *Coordinator) HandlePart(ctx context.Context, part *Part) (*Result, error) {
	if !c.AllowedSize(part.DeclaredSize()) {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrTooLarge, part.DeclaredSize(), c.maxFileSize)
	}
	if !validSegment(part.UploadID) || !validFilename(part.Filename) {
		return nil, fmt.Errorf("%w: upload id %q, filename %q", ErrInvalidPart, part.UploadID, part.Filename)
	}

	if !part.Chunked() {
		path, err := c.store.StoreFile(ctx, part.UploadID, part.Filename, part.Data)
		if err != nil {
			return nil, err
		}
		return &Result{Stage: StageStored, Path: path}, nil
	}

	return c.handleChunk(ctx, part)
}

func (c *Coordinator) handleChunk(ctx context.Context, part *Part) (*Result, error) {
	index := *part.Index
	if part.TotalParts <= 0 || index < 0 || index >= part.TotalParts {
		return nil, fmt.Errorf("%w: index %d of %d", ErrInvalidPart, index, part.TotalParts)
	}
	if part.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if err := c.claimOwner(part); err != nil {
		return nil, err
	}

	if err := c.store.StorePart(ctx, part.UploadID, index, part.TotalParts, part.Data); err != nil {
		return nil, err
	}

	complete, err := c.tracker.MarkReceived(ctx, part.UploadID, index, part.TotalParts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreChunk, err)
	}
	if !complete && index == part.TotalParts-1 {
		complete, err = c.reconcile(ctx, part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreChunk, err)
		}
	}
	if !complete {
		if assembled, ok := c.pendingCommit(part); ok {
			return c.recommit(ctx, part, assembled)
		}
		return &Result{Stage: StageChunk}, nil
	}

	return c.complete(ctx, part)
}

// claimOwner records the owner of a chunked upload on its first part and
// rejects parts of the same upload sent by anyone else.
func (c *Coordinator) claimOwner(part *Part) error {
	dir := c.store.UploadDir(part.UploadID)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreChunk, err)
	}

	file, err := os.OpenFile(filepath.Join(dir, ownerMarkerName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if errors.Is(err, fs.ErrExist) {
		return c.checkOwner(part.UploadID, part.OwnerID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreChunk, err)
	}
	_, writeErr := file.WriteString(part.OwnerID)
	if err := errors.Join(writeErr, file.Close()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreChunk, err)
	}
	return nil
}

// checkOwner fails with ErrNotOwner when uploadID was claimed by an owner
// other than ownerID. Uploads without a recorded owner pass.
func (c *Coordinator) checkOwner(uploadID, ownerID string) error {
	recorded, err := os.ReadFile(filepath.Join(c.store.UploadDir(uploadID), ownerMarkerName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read owner of upload %s: %w", uploadID, err)
	}
	if len(recorded) > 0 && string(recorded) != ownerID {
		return fmt.Errorf("%w: upload %s", ErrNotOwner, uploadID)
	}
	return nil
}

// pendingCommit reports the assembled file of an upload whose commit failed.
func (c *Coordinator) pendingCommit(part *Part) (string, bool) {
	if _, err := os.Stat(c.pendingMarker(part.UploadID)); err != nil {
		return "", false
	}
	path := filepath.Join(c.store.UploadDir(part.UploadID), part.Filename)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return path, true
}

func (c *Coordinator) pendingMarker(uploadID string) string {
	return filepath.Join(c.store.UploadDir(uploadID), pendingMarkerName)
}

// recommit answers a resent part of an upload that was already assembled by
// committing the assembled file again. The resent chunk is discarded.
func (c *Coordinator) recommit(ctx context.Context, part *Part, path string) (*Result, error) {
	logger := log.With().Str("uploadId", part.UploadID).Str("ownerId", part.OwnerID).Logger()
	logger.Info().Str("path", path).Msg("Retrying commit of assembled upload")

	if err := c.tracker.Forget(ctx, part.UploadID); err != nil {
		logger.Warn().Err(err).Msg("Failed to forget upload progress")
	}
	if err := os.RemoveAll(c.store.ChunkDir(part.UploadID)); err != nil {
		logger.Warn().Err(err).Msg("Problem deleting chunks dir")
	}

	return c.commit(ctx, part, path)
}

// reconcile feeds chunk files already on disk into the tracker. It covers
// progress lost by a restart between parts of one upload.
func (c *Coordinator) reconcile(ctx context.Context, part *Part) (bool, error) {
	entries, err := os.ReadDir(c.store.ChunkDir(part.UploadID))
	if err != nil {
		return false, err
	}

	complete := false
	for _, entry := range entries {
		index, ok := ParseChunkFilename(entry.Name(), part.TotalParts)
		if !ok {
			continue
		}
		done, err := c.tracker.MarkReceived(ctx, part.UploadID, index, part.TotalParts)
		if err != nil {
			return false, err
		}
		complete = complete || done
	}
	return complete, nil
}

func (c *Coordinator) complete(ctx context.Context, part *Part) (*Result, error) {
	logger := log.With().Str("uploadId", part.UploadID).Str("ownerId", part.OwnerID).Logger()

	path, err := c.reassembler.Combine(ctx, part.UploadID, part.Filename, part.TotalParts)
	if err != nil {
		if releaseErr := c.tracker.Release(ctx, part.UploadID); releaseErr != nil {
			logger.Warn().Err(releaseErr).Msg("Failed to release completion claim")
		}
		return nil, err
	}
	logger.Info().Str("path", path).Int("parts", part.TotalParts).Msg("Chunks combined")

	if err := c.tracker.Forget(ctx, part.UploadID); err != nil {
		logger.Warn().Err(err).Msg("Failed to forget upload progress")
	}

	return c.commit(ctx, part, path)
}

// commit hands the assembled file to the committer. On failure the file stays
// in place and is marked as the source of the next attempt.
func (c *Coordinator) commit(ctx context.Context, part *Part, path string) (*Result, error) {
	logger := log.With().Str("uploadId", part.UploadID).Str("ownerId", part.OwnerID).Logger()

	marker := c.pendingMarker(part.UploadID)
	committed, err := c.committer.Commit(ctx, part.OwnerID, path)
	if err != nil {
		if markErr := os.WriteFile(marker, []byte(part.Filename), filePerm); markErr != nil {
			logger.Warn().Err(markErr).Msg("Failed to mark upload for commit retry")
		}
		return nil, err
	}
	if err := os.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Msg("Failed to clear commit retry marker")
	}
	logger.Info().Str("key", committed.ObjectKey).Msg("Upload committed")

	if c.notifier != nil {
		c.notifier.UploadCompleted(&UploadCompleted{
			UploadID:  part.UploadID,
			OwnerID:   part.OwnerID,
			Filename:  part.Filename,
			ObjectKey: committed.ObjectKey,
			URL:       committed.URL,
		})
	}

	return &Result{
		Stage:     StageCommitted,
		Path:      path,
		ObjectKey: committed.ObjectKey,
		URL:       committed.URL,
	}, nil
}

// DeleteUpload removes everything stored for uploadID. Removing an upload
// that does not exist is not an error. A non-empty ownerID must match the
// owner recorded for a chunked upload.
func (c *Coordinator) DeleteUpload(ctx context.Context, uploadID, ownerID string) error {
	if !validSegment(uploadID) {
		return fmt.Errorf("%w: upload id %q", ErrInvalidPart, uploadID)
	}
	if ownerID != "" {
		if err := c.checkOwner(uploadID, ownerID); err != nil {
			return err
		}
	}

	if err := c.tracker.Forget(ctx, uploadID); err != nil {
		log.Warn().Err(err).Str("uploadId", uploadID).Msg("Failed to forget upload progress")
	}

	dir := c.store.UploadDir(uploadID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	return nil
}
