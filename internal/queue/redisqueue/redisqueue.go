// Package redisqueue is a Redis-backed queue.Queue for multi-worker
// deployments: messages live in a sorted set keyed by visibility time,
// so PushDelayed is exactly "insert with a future score" and Pop is
// exactly "pop the lowest score not in the future".
package redisqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskgraph/engine/internal/queue"
	"github.com/taskgraph/engine/internal/util"
)

// PollInterval is how often Pop re-checks the sorted set when nothing is
// yet visible.
const PollInterval = 200 * time.Millisecond

// Queue is a queue.Queue backed by a single Redis sorted set.
type Queue struct {
	client *redis.Client
	key    string
}

// New returns a Queue storing messages under the sorted set name key.
func New(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

type envelope struct {
	ID  string        `json:"id"`
	Msg queue.Message `json:"msg"`
}

func (q *Queue) Push(ctx context.Context, msg queue.Message) error {
	return q.PushDelayed(ctx, msg, 0)
}

func (q *Queue) PushDelayed(ctx context.Context, msg queue.Message, delay time.Duration) error {
	env := envelope{ID: util.NewID(), Msg: msg}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redisqueue: marshal message: %w", err)
	}
	score := float64(time.Now().Add(delay).UnixNano())
	if err := q.client.ZAdd(ctx, q.key, redis.Z{Score: score, Member: data}).Err(); err != nil {
		return fmt.Errorf("redisqueue: push: %w", err)
	}
	return nil
}

// Pop blocks until a visible message is available or ctx is done. Each
// poll pulls the lowest-scored member at or before now and removes it
// with ZRem; a ZRem return of 0 means another worker already claimed
// that member, and the poll is retried without returning a message.
func (q *Queue) Pop(ctx context.Context) (queue.Message, error) {
	for {
		now := float64(time.Now().UnixNano())
		members, err := q.client.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   fmt.Sprintf("%f", now),
			Count: 1,
		}).Result()
		if err != nil {
			return queue.Message{}, fmt.Errorf("redisqueue: range: %w", err)
		}

		if len(members) > 0 {
			removed, err := q.client.ZRem(ctx, q.key, members[0]).Result()
			if err != nil {
				return queue.Message{}, fmt.Errorf("redisqueue: rem: %w", err)
			}
			if removed == 0 {
				continue
			}
			var env envelope
			if err := json.Unmarshal([]byte(members[0]), &env); err != nil {
				return queue.Message{}, fmt.Errorf("redisqueue: unmarshal message: %w", err)
			}
			return env.Msg, nil
		}

		timer := time.NewTimer(PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return queue.Message{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (q *Queue) Close() error { return nil }
