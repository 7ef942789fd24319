package ipguard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failureKeyPrefix = "ipguard:failures:"
	blockKeyPrefix   = "ipguard:block:"
	blockedSetKey    = "ipguard:blocked"
)

// RedisCache is the shared Cache for multi-instance deployments. Failure
// counters live in an INCR key whose TTL is set on the first increment, so
// the window is fixed from the first failure. Blocks are JSON values with a
// TTL plus membership in a set used only for listing.
type RedisCache struct {
	rdb *redis.Client
	cfg Config
	now func() time.Time
}

// RedisOption tweaks a RedisCache.
type RedisOption func(*RedisCache)

// WithRedisTimeFunc overrides the clock, for tests. TTLs still follow the
// server clock; only stored timestamps use this.
func WithRedisTimeFunc(now func() time.Time) RedisOption {
	return func(c *RedisCache) { c.now = now }
}

func NewRedisCache(rdb *redis.Client, cfg Config, opts ...RedisOption) *RedisCache {
	c := &RedisCache{rdb: rdb, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) RecordFailure(ctx context.Context, ip string) (bool, error) {
	key := failureKeyPrefix + ip

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, c.cfg.AttemptWindow).Err(); err != nil {
			return false, err
		}
	}

	if count < int64(c.cfg.FailedAttemptThreshold) {
		return false, nil
	}

	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return false, err
	}
	if err := c.block(ctx, ip, "failed login threshold exceeded", c.cfg.BlockDuration); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) IsBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blockKeyPrefix+ip).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Block(ctx context.Context, ip, reason string, d time.Duration) error {
	return c.block(ctx, ip, reason, d)
}

func (c *RedisCache) block(ctx context.Context, ip, reason string, d time.Duration) error {
	now := c.now()
	payload, err := json.Marshal(BlockedIP{
		IP:           ip,
		BlockedAt:    now,
		BlockedUntil: now.Add(d),
		Reason:       reason,
	})
	if err != nil {
		return err
	}

	if err := c.rdb.Set(ctx, blockKeyPrefix+ip, payload, d).Err(); err != nil {
		return err
	}
	// A block supersedes any in-flight failure window.
	if err := c.rdb.Del(ctx, failureKeyPrefix+ip).Err(); err != nil {
		return err
	}
	return c.rdb.SAdd(ctx, blockedSetKey, ip).Err()
}

func (c *RedisCache) Unblock(ctx context.Context, ip string) error {
	n, err := c.rdb.Del(ctx, blockKeyPrefix+ip).Result()
	if err != nil {
		return err
	}
	if err := c.rdb.SRem(ctx, blockedSetKey, ip).Err(); err != nil {
		return err
	}
	// Unblocking forgives past failures; the counter restarts from zero.
	if err := c.rdb.Del(ctx, failureKeyPrefix+ip).Err(); err != nil {
		return err
	}
	if n == 0 {
		return ErrNotBlocked
	}
	return nil
}

func (c *RedisCache) ListBlocked(ctx context.Context) ([]BlockedIP, error) {
	ips, err := c.rdb.SMembers(ctx, blockedSetKey).Result()
	if err != nil {
		return nil, err
	}

	out := make([]BlockedIP, 0, len(ips))
	for _, ip := range ips {
		raw, err := c.rdb.Get(ctx, blockKeyPrefix+ip).Bytes()
		if errors.Is(err, redis.Nil) {
			// Block expired; drop the stale set member.
			if err := c.rdb.SRem(ctx, blockedSetKey, ip).Err(); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		var b BlockedIP
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
