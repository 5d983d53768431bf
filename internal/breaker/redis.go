package breaker

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBreaker shares failure counters across every worker process via
// Redis, so the circuit breaker protection spec.md §5 describes actually
// holds in a multi-worker deployment.
type RedisBreaker struct {
	client *redis.Client
}

// NewRedisBreaker returns a RedisBreaker backed by client.
func NewRedisBreaker(client *redis.Client) *RedisBreaker {
	return &RedisBreaker{client: client}
}

func failuresKey(executor string) string { return fmt.Sprintf("breaker:%s:failures", executor) }
func openedKey(executor string) string   { return fmt.Sprintf("breaker:%s:opened", executor) }

// Allow implements Breaker. The circuit is open exactly while the
// "opened" marker key, set with ResetWindow TTL when the threshold is
// crossed, still exists.
func (b *RedisBreaker) Allow(ctx context.Context, executor string) (bool, error) {
	_, err := b.client.Get(ctx, openedKey(executor)).Result()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("breaker: check open marker: %w", err)
	}
	return false, nil
}

// RecordSuccess implements Breaker.
func (b *RedisBreaker) RecordSuccess(ctx context.Context, executor string) error {
	pipe := b.client.Pipeline()
	pipe.Del(ctx, failuresKey(executor))
	pipe.Del(ctx, openedKey(executor))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("breaker: reset counters: %w", err)
	}
	return nil
}

// RecordFailure implements Breaker.
func (b *RedisBreaker) RecordFailure(ctx context.Context, executor string) error {
	count, err := b.client.Incr(ctx, failuresKey(executor)).Result()
	if err != nil {
		return fmt.Errorf("breaker: increment failure counter: %w", err)
	}
	// The failure counter expires ResetWindow after the latest failure,
	// so failures spaced further apart than that never accumulate toward
	// Threshold.
	if err := b.client.Expire(ctx, failuresKey(executor), ResetWindow).Err(); err != nil {
		return fmt.Errorf("breaker: set failure counter ttl: %w", err)
	}

	if count == Threshold {
		if err := b.client.Set(ctx, openedKey(executor), "1", ResetWindow).Err(); err != nil {
			return fmt.Errorf("breaker: set open marker: %w", err)
		}
	}
	return nil
}
