package account

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*Account),
	}
}

func (r *MemoryRepository) CreateAccount(a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[a.ID]; exists {
		return fmt.Errorf("account already exists")
	}
	stored := *a
	r.accounts[a.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetAccount(id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	result := *a
	return &result, nil
}

// ResolveObjectKey falls back to the id itself for owners it has never seen.
func (r *MemoryRepository) ResolveObjectKey(ctx context.Context, id string) (string, error) {
	a, err := r.GetAccount(id)
	if errors.Is(err, ErrAccountNotFound) {
		return objectKeyFor(&Account{ID: id}), nil
	}
	if err != nil {
		return "", err
	}
	return objectKeyFor(a), nil
}

// RecordObjectKey enrolls unknown owners on their first commit.
func (r *MemoryRepository) RecordObjectKey(ctx context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.accounts[id]
	if !exists {
		a = &Account{ID: id}
		r.accounts[id] = a
	}
	a.ObjectKey = key
	a.UpdatedAt = time.Now().Unix()
	return nil
}
