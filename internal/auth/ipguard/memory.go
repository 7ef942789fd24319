package ipguard

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the in-process Cache. Suitable for a single instance; use
// the redis driver when running more than one replica.
type MemoryCache struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	failures map[string]*failureWindow
	blocks   map[string]BlockedIP
}

type failureWindow struct {
	count    int
	expireAt time.Time
}

// MemoryOption tweaks a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithTimeFunc overrides the clock, for tests.
func WithTimeFunc(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

func NewMemoryCache(cfg Config, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		cfg:      cfg,
		now:      time.Now,
		failures: make(map[string]*failureWindow),
		blocks:   make(map[string]BlockedIP),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) RecordFailure(ctx context.Context, ip string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	// The window is fixed from the first failure, matching INCR with an
	// EXPIRE set only on the initial increment.
	w := c.failures[ip]
	if w == nil || !now.Before(w.expireAt) {
		w = &failureWindow{expireAt: now.Add(c.cfg.AttemptWindow)}
		c.failures[ip] = w
	}
	w.count++

	if w.count < c.cfg.FailedAttemptThreshold {
		return false, nil
	}

	delete(c.failures, ip)
	c.blocks[ip] = BlockedIP{
		IP:           ip,
		BlockedAt:    now,
		BlockedUntil: now.Add(c.cfg.BlockDuration),
		Reason:       "failed login threshold exceeded",
	}
	return true, nil
}

func (c *MemoryCache) IsBlocked(ctx context.Context, ip string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.blocks[ip]
	if !ok {
		return false, nil
	}
	if !c.now().Before(b.BlockedUntil) {
		delete(c.blocks, ip)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) Block(ctx context.Context, ip, reason string, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.blocks[ip] = BlockedIP{
		IP:           ip,
		BlockedAt:    now,
		BlockedUntil: now.Add(d),
		Reason:       reason,
	}
	delete(c.failures, ip)
	return nil
}

func (c *MemoryCache) Unblock(ctx context.Context, ip string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Unblocking forgives past failures; the counter restarts from zero.
	delete(c.failures, ip)

	b, ok := c.blocks[ip]
	if !ok || !c.now().Before(b.BlockedUntil) {
		delete(c.blocks, ip)
		return ErrNotBlocked
	}
	delete(c.blocks, ip)
	return nil
}

func (c *MemoryCache) ListBlocked(ctx context.Context) ([]BlockedIP, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	out := make([]BlockedIP, 0, len(c.blocks))
	for ip, b := range c.blocks {
		// Lazy prune on listing; expired entries otherwise linger until the
		// next IsBlocked for that address.
		if !now.Before(b.BlockedUntil) {
			delete(c.blocks, ip)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}
