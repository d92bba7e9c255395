package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmpty is returned by Queue reads when nothing is waiting.
var ErrEmpty = errors.New("queue empty")

// Queue is the slice of Redis list and lock commands the workers use.
type Queue interface {
	// BPop blocks up to timeout for the next item on key.
	BPop(ctx context.Context, key string, timeout time.Duration) (string, error)
	// Pop returns the next item on key without blocking.
	Pop(ctx context.Context, key string) (string, error)
	Push(ctx context.Context, key string, values ...string) error
	// TryLock sets key if absent and reports whether this caller now holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisQueue implements Queue on a go-redis client.
type RedisQueue struct {
	Client *redis.Client
}

func (q RedisQueue) BPop(ctx context.Context, key string, timeout time.Duration) (string, error) {
	res, err := q.Client.BLPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

func (q RedisQueue) Pop(ctx context.Context, key string) (string, error) {
	res, err := q.Client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	return res, err
}

func (q RedisQueue) Push(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return q.Client.RPush(ctx, key, args...).Err()
}

func (q RedisQueue) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return q.Client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
}
