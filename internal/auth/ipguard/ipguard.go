// Package ipguard tracks failed-login pressure per source IP and blocks
// addresses that cross the configured threshold inside a sliding window.
// Blocks expire on their own; there is no permanent denylist here.
package ipguard

import (
	"context"
	"errors"
	"time"
)

var ErrNotBlocked = errors.New("ipguard: ip not blocked")

// BlockedIP describes one currently blocked address.
type BlockedIP struct {
	IP           string    `json:"ip"`
	BlockedAt    time.Time `json:"blocked_at"`
	BlockedUntil time.Time `json:"blocked_until"`
	Reason       string    `json:"reason"`
}

// Config tunes the failure window and block duration.
type Config struct {
	// FailedAttemptThreshold is the number of failures inside AttemptWindow
	// that triggers an automatic block.
	FailedAttemptThreshold int

	// AttemptWindow is the sliding window over which failures accumulate.
	AttemptWindow time.Duration

	// BlockDuration is how long an automatic block lasts.
	BlockDuration time.Duration
}

// DefaultConfig mirrors the service defaults: 10 failures in 15 minutes
// earns a one hour block.
func DefaultConfig() Config {
	return Config{
		FailedAttemptThreshold: 10,
		AttemptWindow:          15 * time.Minute,
		BlockDuration:          time.Hour,
	}
}

// Cache is the IP reputation store. Implementations must be safe for
// concurrent use.
type Cache interface {
	// RecordFailure counts one failed attempt from ip and reports whether
	// the attempt tripped an automatic block.
	RecordFailure(ctx context.Context, ip string) (blocked bool, err error)

	// IsBlocked reports whether ip is currently blocked.
	IsBlocked(ctx context.Context, ip string) (bool, error)

	// Block manually blocks ip for the given duration with a reason.
	Block(ctx context.Context, ip, reason string, d time.Duration) error

	// Unblock removes a block. Returns ErrNotBlocked when ip is not blocked.
	Unblock(ctx context.Context, ip string) error

	// ListBlocked returns the currently blocked addresses.
	ListBlocked(ctx context.Context) ([]BlockedIP, error)
}
