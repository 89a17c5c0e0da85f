package account

import (
	"context"
	"errors"
)

var ErrAccountNotFound = errors.New("account not found")

type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FileName  string `json:"fileName"`
	ObjectKey string `json:"objectKey,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Repository is the account store the upload commit resolves and records
// object keys through.
type Repository interface {
	ResolveObjectKey(ctx context.Context, id string) (string, error)
	RecordObjectKey(ctx context.Context, id, key string) error
}

// objectKeyFor is the canonical remote key of an account: its declared file
// name, or its id when none was set.
func objectKeyFor(a *Account) string {
	if a.FileName != "" {
		return a.FileName
	}
	return a.ID
}
