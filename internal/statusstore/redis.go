package statusstore

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
)

const redisStatusKey = "scrpr:status"

// RedisStore backs the Status collaborator with a single Redis key,
// following the "job:lastrun:"-style key-prefixing idiom used elsewhere in
// this codebase's scheduler. Useful when the control API and the collector
// run as separate processes sharing one Redis instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Read(ctx context.Context) (Status, error) {
	val, err := r.client.Get(ctx, redisStatusKey).Result()
	if err == redis.Nil {
		return Exited, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading status: %v", ec2err.ErrSink, err)
	}
	return Status(val), nil
}

func (r *RedisStore) Write(ctx context.Context, s Status) error {
	if err := r.client.Set(ctx, redisStatusKey, string(s), 0).Err(); err != nil {
		return fmt.Errorf("%w: writing status %s: %v", ec2err.ErrSink, s, err)
	}
	return nil
}
