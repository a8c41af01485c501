package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "provision:idemp:"

// RedisRecorder stores results in Redis so replay protection survives
// process restarts and is shared across instances.
type RedisRecorder struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRecorder creates a recorder on the given client. A zero ttl uses
// DefaultTTL.
func NewRedisRecorder(client *redis.Client, ttl time.Duration) *RedisRecorder {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &RedisRecorder{client: client, ttl: ttl}
}

// Get returns the recorded result for key.
func (r *RedisRecorder) Get(ctx context.Context, key string) (*Result, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotRecorded
		}
		return nil, fmt.Errorf("reading idempotency key: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding recorded result: %w", err)
	}
	return &result, nil
}

// Put records the result for key with the configured TTL.
func (r *RedisRecorder) Put(ctx context.Context, key string, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("storing idempotency key: %w", err)
	}
	return nil
}
