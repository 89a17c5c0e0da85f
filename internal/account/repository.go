package account

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ResolveObjectKey(ctx context.Context, id string) (string, error) {
	a := &Account{}
	var fileName sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, file_name FROM accounts WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &fileName)

	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get account: %w", err)
	}

	a.FileName = fileName.String
	return objectKeyFor(a), nil
}

func (r *PostgresRepository) RecordObjectKey(ctx context.Context, id, key string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET object_key = $1, updated_at = $2 WHERE id = $3`,
		key, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record object key: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}

	return nil
}
