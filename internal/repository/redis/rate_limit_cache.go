package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"phone-auth-service/internal/client"
	"phone-auth-service/internal/util"
)

const (
	failedAttemptsPrefix = "failed_attempts:"
	blockedPrefix        = "blocked:"
)

// RateLimitCache tracks failed-attempt counters and block flags per
// identifier. Keys are namespaced by identifier kind (phone_number or
// ip_address) so the same value can exist in both namespaces independently.
// All state lives in Redis with per-key TTLs; nothing is swept locally.
type RateLimitCache struct {
	client *client.RedisClient
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client}
}

// IncrementFailures bumps the failure counter for the identifier and resets
// its TTL. INCR makes concurrent failures against the same identifier count
// exactly once each.
func (c *RateLimitCache) IncrementFailures(ctx context.Context, kind, value string, ttl time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := failedAttemptsPrefix + kind + ":" + value
	count, err := c.client.IncrWithExpire(ctx, key, ttl)
	if err != nil {
		util.Error("Failed to increment failure counter",
			zap.String("kind", kind),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment failure counter: %w", err)
	}

	util.Debug("Failure counter incremented",
		zap.String("kind", kind),
		zap.Int64("count", count),
		zap.Duration("ttl", ttl))

	return int(count), nil
}

// ResetFailures deletes the failure counter unconditionally. Deleting an
// absent counter is a no-op.
func (c *RateLimitCache) ResetFailures(ctx context.Context, kind, value string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := failedAttemptsPrefix + kind + ":" + value
	if err := c.client.Del(ctx, key); err != nil {
		util.Error("Failed to reset failure counter",
			zap.String("kind", kind),
			zap.Error(err))
		return fmt.Errorf("failed to reset failure counter: %w", err)
	}

	util.Debug("Failure counter reset", zap.String("kind", kind))
	return nil
}

// SetBlock marks the identifier as blocked for the given duration and drops
// its failure counter. The flag's presence is the sole block signal.
func (c *RateLimitCache) SetBlock(ctx context.Context, kind, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	blockKey := blockedPrefix + kind + ":" + value
	counterKey := failedAttemptsPrefix + kind + ":" + value

	if err := c.client.Set(ctx, blockKey, "1", ttl); err != nil {
		util.Error("Failed to set block flag",
			zap.String("kind", kind),
			zap.Duration("ttl", ttl),
			zap.Error(err))
		return fmt.Errorf("failed to set block flag: %w", err)
	}
	if err := c.client.Del(ctx, counterKey); err != nil {
		return fmt.Errorf("failed to delete failure counter after block: %w", err)
	}

	util.Warn("Block applied",
		zap.String("kind", kind),
		zap.Duration("ttl", ttl))

	return nil
}

// IsBlocked reports whether a block flag exists for the identifier.
func (c *RateLimitCache) IsBlocked(ctx context.Context, kind, value string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := blockedPrefix + kind + ":" + value
	exists, err := c.client.Exists(ctx, key)
	if err != nil {
		util.Error("Failed to check block flag",
			zap.String("kind", kind),
			zap.Error(err))
		return false, fmt.Errorf("failed to check block flag: %w", err)
	}
	return exists, nil
}

// GetFailureCount returns the current counter value, 0 when no counter is
// set.
func (c *RateLimitCache) GetFailureCount(ctx context.Context, kind, value string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := failedAttemptsPrefix + kind + ":" + value
	countStr, err := c.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get failure counter: %w", err)
	}

	var count int
	if _, err := fmt.Sscanf(countStr, "%d", &count); err != nil {
		return 0, fmt.Errorf("invalid counter format: %w", err)
	}
	return count, nil
}
