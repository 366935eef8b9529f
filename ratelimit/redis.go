package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript implements Take atomically on the Redis side. It never
// increments a full bucket, and the window TTL is set only when the bucket
// is created, so the window is fixed rather than sliding.
var takeScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[2])
if count >= max then
  return {0, count, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {1, count, redis.call('PTTL', KEYS[1])}
`)

// RedisStore shares rate-limit buckets across replicas through Redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps a Redis client as a Store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Take(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Duration, error) {
	res, err := takeScript.Run(ctx, s.client, []string{key}, window.Milliseconds(), max).Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("rate limit take: %w", err)
	}
	if len(res) != 3 {
		return false, 0, 0, fmt.Errorf("rate limit take: unexpected reply shape %v", res)
	}
	admitted, ok1 := res[0].(int64)
	count, ok2 := res[1].(int64)
	ttlMillis, ok3 := res[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return false, 0, 0, fmt.Errorf("rate limit take: unexpected reply types %v", res)
	}
	resetIn := time.Duration(ttlMillis) * time.Millisecond
	if resetIn < 0 {
		// PTTL returns a negative value for a key without expiry.
		resetIn = window
	}
	return admitted == 1, int(count), resetIn, nil
}
