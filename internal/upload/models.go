package upload

import (
	"context"
	"errors"
	"io"
)

var (
	ErrTooLarge      = errors.New("file too large")
	ErrOwnerRequired = errors.New("owner id is required for chunked uploads")
	ErrInvalidPart   = errors.New("invalid upload part")
	ErrStoreFile     = errors.New("failed to store file")
	ErrStoreChunk    = errors.New("failed to store chunk")
	ErrMissingChunks = errors.New("missing chunks")
	ErrCombine       = errors.New("failed to combine chunks")
	ErrCommit        = errors.New("failed to commit upload")
	ErrTotalMismatch = errors.New("total parts mismatch")
	ErrNotOwner      = errors.New("upload belongs to another owner")
)

// Part is one inbound request of an upload. Index is nil for single-shot
// uploads.
type Part struct {
	UploadID   string
	Filename   string
	OwnerID    string
	Index      *int
	TotalParts int
	TotalSize  int64
	Size       int64
	Data       io.Reader
}

func (p *Part) Chunked() bool {
	return p.Index != nil
}

// DeclaredSize is the size used for the maximum file size policy.
func (p *Part) DeclaredSize() int64 {
	if p.TotalSize > 0 {
		return p.TotalSize
	}
	return p.Size
}

type Stage string

const (
	StageStored    Stage = "stored"
	StageChunk     Stage = "chunk"
	StageCommitted Stage = "committed"
)

// Result describes how far a part got through the pipeline.
type Result struct {
	Stage     Stage
	Path      string
	ObjectKey string
	URL       string
}

// Committed is the outcome of a successful commit.
type Committed struct {
	OwnerID   string
	ObjectKey string
	URL       string
}

type UploadCompleted struct {
	UploadID  string `json:"uploadId"`
	OwnerID   string `json:"ownerId"`
	Filename  string `json:"filename"`
	ObjectKey string `json:"objectKey"`
	URL       string `json:"url,omitempty"`
}

// Notifier announces finished uploads to interested parties.
type Notifier interface {
	UploadCompleted(ev *UploadCompleted)
}

// Owners is the owning-entity collaborator the commit pipeline writes through.
type Owners interface {
	ResolveObjectKey(ctx context.Context, ownerID string) (string, error)
	RecordObjectKey(ctx context.Context, ownerID, key string) error
}

type Response struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	PreventRetry bool   `json:"preventRetry,omitempty"`
}
