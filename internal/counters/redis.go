package counters

import (
	"context"
	"errors"
	"fmt"
	"time"

	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"
)

const (
	runsPrefix     = "aivis:runs:"
	timeoutsPrefix = "aivis:timeouts:"
)

// acquireScript increments KEYS[1] only while it is below ARGV[1].
var acquireScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return 0
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// releaseScript decrements KEYS[1] floored at zero and deletes it at zero.
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 1 then
	redis.call('DEL', KEYS[1])
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisStore is a Store shared by every instance pointing at the same Redis.
type RedisStore struct {
	client redis.UniversalClient
	// runTTL bounds how long a leaked run slot can survive a crashed instance.
	runTTL time.Duration
	// timeoutTTL lets timeout counters expire even if no sweeper runs.
	timeoutTTL time.Duration
	storage    *fiberredis.Storage
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps the connection of a Fiber Redis storage.
// The storage is shared with the HTTP rate limiter.
func NewRedisStore(storage *fiberredis.Storage, runTTL, timeoutTTL time.Duration) *RedisStore {
	return &RedisStore{
		client:     storage.Conn(),
		runTTL:     runTTL,
		timeoutTTL: timeoutTTL,
		storage:    storage,
	}
}

// TryAcquire implements Store.
func (r *RedisStore) TryAcquire(ctx context.Context, domainID string, limit int) (bool, error) {
	if limit <= 0 {
		return false, ErrInvalidLimit
	}
	n, err := acquireScript.Run(ctx, r.client, []string{runsPrefix + domainID}, limit, r.runTTL.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run slot: %w", err)
	}
	return n == 1, nil
}

// Release implements Store.
func (r *RedisStore) Release(ctx context.Context, domainID string) error {
	if err := releaseScript.Run(ctx, r.client, []string{runsPrefix + domainID}).Err(); err != nil {
		return fmt.Errorf("failed to release run slot: %w", err)
	}
	return nil
}

// ActiveRuns implements Store.
func (r *RedisStore) ActiveRuns(ctx context.Context, domainID string) (int, error) {
	return r.getInt(ctx, runsPrefix+domainID)
}

// IncrementTimeouts implements Store.
func (r *RedisStore) IncrementTimeouts(ctx context.Context, domainID string) (int, error) {
	key := timeoutsPrefix + domainID
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, r.timeoutTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record timeout: %w", err)
	}
	return int(incr.Val()), nil
}

// Timeouts implements Store.
func (r *RedisStore) Timeouts(ctx context.Context, domainID string) (int, error) {
	return r.getInt(ctx, timeoutsPrefix+domainID)
}

// ResetTimeouts implements Store.
func (r *RedisStore) ResetTimeouts(ctx context.Context) error {
	_, err := r.deleteMatching(ctx, timeoutsPrefix+"*", func(string) bool { return true })
	return err
}

// Sweep implements Store. Release already deletes keys at zero, so this only
// catches values left at zero by manual edits.
func (r *RedisStore) Sweep(ctx context.Context) (int, error) {
	return r.deleteMatching(ctx, runsPrefix+"*", func(v string) bool { return v == "0" })
}

// Ping checks that Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.storage.Close()
}

func (r *RedisStore) getInt(ctx context.Context, key string) (int, error) {
	n, err := r.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return n, nil
}

func (r *RedisStore) deleteMatching(ctx context.Context, pattern string, match func(value string) bool) (int, error) {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan %s: %w", pattern, err)
		}
		for _, key := range keys {
			val, err := r.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return removed, fmt.Errorf("failed to read %s: %w", key, err)
			}
			if !match(val) {
				continue
			}
			if err := r.client.Del(ctx, key).Err(); err != nil {
				return removed, fmt.Errorf("failed to delete %s: %w", key, err)
			}
			removed++
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
