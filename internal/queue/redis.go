package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBackend implements SortedSetStore and Locker on a shared Redis.
// Multiple processes may poll the same sets concurrently; the per-job lock is
// the only cross-process mutual exclusion.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) AddScored(ctx context.Context, set string, score float64, member string) error {
	if err := b.client.ZAdd(ctx, set, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("zadd (set=%s): %w", set, err)
	}
	return nil
}

func (b *RedisBackend) RemoveByValue(ctx context.Context, set, member string) (bool, error) {
	removed, err := b.client.ZRem(ctx, set, member).Result()
	if err != nil {
		return false, fmt.Errorf("zrem (set=%s): %w", set, err)
	}
	return removed > 0, nil
}

func (b *RedisBackend) RangeByScore(ctx context.Context, set string, min, max float64, limit int64) ([]string, error) {
	args := &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}
	if limit > 0 {
		args.Count = limit
	}

	members, err := b.client.ZRangeByScore(ctx, set, args).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore (set=%s): %w", set, err)
	}
	return members, nil
}

func (b *RedisBackend) Count(ctx context.Context, set string) (int64, error) {
	count, err := b.client.ZCard(ctx, set).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard (set=%s): %w", set, err)
	}
	return count, nil
}

func (b *RedisBackend) Clear(ctx context.Context, set string) (int64, error) {
	count, err := b.client.ZCard(ctx, set).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard (set=%s): %w", set, err)
	}
	if err := b.client.Del(ctx, set).Err(); err != nil {
		return 0, fmt.Errorf("del (set=%s): %w", set, err)
	}
	return count, nil
}

// releaseScript deletes the lock only while the caller's token still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (b *RedisBackend) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := b.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("setnx (key=%s): %w", key, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (b *RedisBackend) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, b.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("releasing lock (key=%s): %w", key, err)
	}
	return nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}
