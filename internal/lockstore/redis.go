package lockstore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript performs the atomic CAS-delete: if the stored value still
// equals the caller's owner token, delete the key and return 1; otherwise
// leave it untouched and return 0. A single round-trip, matching the Lua
// script in the original distributed_lock implementation.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// incrScript increments the counter and sets its expiry only on the first
// increment, so concurrent incrs never reset an in-flight window.
var incrScript = redis.NewScript(`
local current = redis.call("incr", KEYS[1])
if current == 1 then
	redis.call("expire", KEYS[1], ARGV[1])
end
return current
`)

// RedisStore implements Store on top of a go-redis client.
//
// Failure semantics (spec §4.A): a store outage makes AcquireLock fail
// closed (returns false, treated as contention) and RateIncr fail open
// (returns a count that can never exceed a caller's max_requests), because
// availability beats perfect isolation for this harvesting workload.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) AcquireLock(ctx context.Context, key, ownerToken string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, ownerToken, ttl).Result()
	if err != nil {
		slog.Error("lockstore: acquire failed, treating as contention", "key", key, "error", err)
		return false, nil
	}
	return ok, nil
}

func (s *RedisStore) ReleaseLock(ctx context.Context, key, ownerToken string) (bool, error) {
	res, err := releaseScript.Run(ctx, s.rdb, []string{key}, ownerToken).Int64()
	if err != nil {
		slog.Error("lockstore: release failed, lock will auto-expire", "key", key, "error", err)
		return false, nil
	}
	return res == 1, nil
}

func (s *RedisStore) RateIncr(ctx context.Context, key string, window time.Duration) (int64, error) {
	windowSeconds := int64(window / time.Second)
	if windowSeconds < 1 {
		windowSeconds = 1
	}
	res, err := incrScript.Run(ctx, s.rdb, []string{key}, windowSeconds).Int64()
	if err != nil {
		slog.Error("lockstore: rate incr failed, failing open", "key", key, "error", err)
		return 0, nil
	}
	return res, nil
}

func (s *RedisStore) ScanAndDelete(ctx context.Context, prefix string) (int, error) {
	match := strings.TrimSuffix(prefix, "*") + "*"
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return deleted, err
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}
