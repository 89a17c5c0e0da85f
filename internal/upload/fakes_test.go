package upload

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/jlairapp/faceFlipper/internal/storage"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	opts    map[string]storage.PutOptions
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: make(map[string][]byte),
		opts:    make(map[string]storage.PutOptions),
	}
}

func (s *fakeObjectStore) Put(ctx context.Context, key string, reader io.Reader, size int64, opts storage.PutOptions) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.opts[key] = opts
	return nil
}

func (s *fakeObjectStore) URL(ctx context.Context, key string) (string, error) {
	return "https://objects.test/" + key, nil
}

type fakeOwners struct {
	mu       sync.Mutex
	keys     map[string]string
	recorded map[string]string
}

func newFakeOwners(keys map[string]string) *fakeOwners {
	return &fakeOwners{keys: keys, recorded: make(map[string]string)}
}

func (o *fakeOwners) ResolveObjectKey(ctx context.Context, ownerID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key, ok := o.keys[ownerID]
	if !ok {
		return "", errors.New("owner not found")
	}
	return key, nil
}

func (o *fakeOwners) RecordObjectKey(ctx context.Context, ownerID, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorded[ownerID] = key
	return nil
}

func (o *fakeOwners) recordedKey(ownerID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	key, ok := o.recorded[ownerID]
	return key, ok
}

type recordingCommitter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *recordingCommitter) Commit(ctx context.Context, ownerID, path string) (*Committed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, path)
	if c.err != nil {
		return nil, c.err
	}
	return &Committed{OwnerID: ownerID, ObjectKey: ownerID + ".bin"}, nil
}

func (c *recordingCommitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*UploadCompleted
}

func (n *recordingNotifier) UploadCompleted(ev *UploadCompleted) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}
