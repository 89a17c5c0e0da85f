package upload

import (
	"context"
	"fmt"
	"sync"
)

// Tracker records which part indices of an upload have been stored and hands
// out the completion claim exactly once per upload.
type Tracker interface {
	// MarkReceived records index and reports true only to the single caller
	// that observes all indices 0..total-1 present.
	MarkReceived(ctx context.Context, uploadID string, index, total int) (bool, error)
	// Release drops the completion claim while keeping the received indices,
	// so the upload can be completed again.
	Release(ctx context.Context, uploadID string) error
	// Forget removes all state of the upload.
	Forget(ctx context.Context, uploadID string) error
}

type progress struct {
	total    int
	received map[int]struct{}
	claimed  bool
}

type MemoryTracker struct {
	mu      sync.Mutex
	uploads map[string]*progress
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		uploads: make(map[string]*progress),
	}
}

func (t *MemoryTracker) MarkReceived(ctx context.Context, uploadID string, index, total int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.uploads[uploadID]
	if !exists {
		p = &progress{total: total, received: make(map[int]struct{}, total)}
		t.uploads[uploadID] = p
	}
	if p.total != total {
		return false, fmt.Errorf("%w: upload %s declared %d, got %d", ErrTotalMismatch, uploadID, p.total, total)
	}

	p.received[index] = struct{}{}
	if p.claimed || len(p.received) < p.total {
		return false, nil
	}

	p.claimed = true
	return true, nil
}

func (t *MemoryTracker) Release(ctx context.Context, uploadID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, exists := t.uploads[uploadID]; exists {
		p.claimed = false
	}
	return nil
}

func (t *MemoryTracker) Forget(ctx context.Context, uploadID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.uploads, uploadID)
	return nil
}
