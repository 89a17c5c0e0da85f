package upload

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultProgressTTL = 24 * time.Hour

// RedisTracker keeps upload progress in Redis so several server processes can
// share one uploads root.
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = defaultProgressTTL
	}
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

func partsKey(uploadID string) string { return "upload:" + uploadID + ":parts" }
func totalKey(uploadID string) string { return "upload:" + uploadID + ":total" }
func claimKey(uploadID string) string { return "upload:" + uploadID + ":claim" }

func (t *RedisTracker) MarkReceived(ctx context.Context, uploadID string, index, total int) (bool, error) {
	if err := t.rdb.SetNX(ctx, totalKey(uploadID), total, t.ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to record total parts: %w", err)
	}

	var (
		declared *redis.StringCmd
		count    *redis.IntCmd
	)
	_, err := t.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, partsKey(uploadID), index)
		pipe.Expire(ctx, partsKey(uploadID), t.ttl)
		pipe.Expire(ctx, totalKey(uploadID), t.ttl)
		declared = pipe.Get(ctx, totalKey(uploadID))
		count = pipe.SCard(ctx, partsKey(uploadID))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record part %d: %w", index, err)
	}

	declaredTotal, err := strconv.Atoi(declared.Val())
	if err != nil {
		return false, fmt.Errorf("corrupt total parts for %s: %w", uploadID, err)
	}
	if declaredTotal != total {
		return false, fmt.Errorf("%w: upload %s declared %d, got %d", ErrTotalMismatch, uploadID, declaredTotal, total)
	}
	if count.Val() < int64(total) {
		return false, nil
	}

	won, err := t.rdb.SetNX(ctx, claimKey(uploadID), 1, t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim completion: %w", err)
	}
	return won, nil
}

func (t *RedisTracker) Release(ctx context.Context, uploadID string) error {
	err := t.rdb.Del(ctx, claimKey(uploadID)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (t *RedisTracker) Forget(ctx context.Context, uploadID string) error {
	return t.rdb.Del(ctx, partsKey(uploadID), totalKey(uploadID), claimKey(uploadID)).Err()
}
