package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dkedar7/pyshala/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	lockKeyPrefix = "pyshala:grading:lock:"
	lockTTL       = 10 * time.Minute
)

type redisIdempotency struct {
	client goredis.UniversalClient
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store using SETNX.
func NewRedisIdempotencyStore(client goredis.UniversalClient) repository.IdempotencyStore {
	return &redisIdempotency{client: client}
}

// AcquireLock uses SETNX so only the first delivery of a submission is graded.
func (r *redisIdempotency) AcquireLock(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKey(id), time.Now().Unix(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseLock refreshes the TTL on the lock key so redeliveries inside the window stay deduplicated.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Expire(ctx, lockKey(id), lockTTL).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}

func lockKey(id uuid.UUID) string {
	return lockKeyPrefix + id.String()
}
