package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"phone-auth-service/internal/config"
	redisrepo "phone-auth-service/internal/repository/redis"
	"phone-auth-service/internal/util"
)

// AttemptGuard enforces the brute-force mitigation policy: failures are
// counted per identifier inside a rolling window, the threshold trips a
// time-boxed block, and a success wipes the counter but never an existing
// block. A block always runs its full TTL.
type AttemptGuard struct {
	cache  *redisrepo.RateLimitCache
	events EventPublisher

	maxAttempts   int
	attemptWindow time.Duration
	blockDuration time.Duration
}

func NewAttemptGuard(cache *redisrepo.RateLimitCache, events EventPublisher, cfg config.AuthConfig) *AttemptGuard {
	return &AttemptGuard{
		cache:         cache,
		events:        events,
		maxAttempts:   cfg.MaxFailedAttempts,
		attemptWindow: cfg.AttemptWindow,
		blockDuration: cfg.BlockDuration,
	}
}

// CheckBlocked returns ErrIPBlocked or ErrPhoneBlocked when a block flag
// exists for either identifier. phoneNumber may be empty, in which case only
// the IP is checked. This must be the first state-touching action of every
// guarded entry point.
func (g *AttemptGuard) CheckBlocked(ctx context.Context, ipAddress, phoneNumber string) error {
	blocked, err := g.cache.IsBlocked(ctx, string(KindIPAddress), ipAddress)
	if err != nil {
		return err
	}
	if blocked {
		return ErrIPBlocked
	}

	if phoneNumber != "" {
		blocked, err = g.cache.IsBlocked(ctx, string(KindPhoneNumber), phoneNumber)
		if err != nil {
			return err
		}
		if blocked {
			return ErrPhoneBlocked
		}
	}
	return nil
}

// RecordFailure increments the identifier's failure counter (resetting its
// window) and applies a block once the threshold is reached. Returns the
// observed count.
func (g *AttemptGuard) RecordFailure(ctx context.Context, id Identifier) (int, error) {
	count, err := g.cache.IncrementFailures(ctx, string(id.Kind), id.Value, g.attemptWindow)
	if err != nil {
		return 0, err
	}

	g.events.Publish(ctx, SecurityEvent{
		EventType:       EventFailureRecorded,
		IdentifierKind:  string(id.Kind),
		IdentifierValue: id.Value,
		FailureCount:    count,
	})

	if count >= g.maxAttempts {
		if err := g.cache.SetBlock(ctx, string(id.Kind), id.Value, g.blockDuration); err != nil {
			return count, err
		}
		util.Warn("Identifier blocked after repeated failures",
			zap.String("kind", string(id.Kind)),
			zap.Int("failures", count),
			zap.Duration("block_duration", g.blockDuration))
		g.events.Publish(ctx, SecurityEvent{
			EventType:       EventBlockApplied,
			IdentifierKind:  string(id.Kind),
			IdentifierValue: id.Value,
			FailureCount:    count,
		})
	}

	return count, nil
}

// RecordSuccess deletes the failure counter. Calling it twice is a no-op the
// second time, and it never clears an existing block flag.
func (g *AttemptGuard) RecordSuccess(ctx context.Context, id Identifier) error {
	return g.cache.ResetFailures(ctx, string(id.Kind), id.Value)
}

// RecordFailures records a failure for several identifiers concurrently.
func (g *AttemptGuard) RecordFailures(ctx context.Context, ids ...Identifier) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			_, err := g.RecordFailure(ctx, id)
			return err
		})
	}
	return eg.Wait()
}

// RecordSuccesses resets the failure counters of several identifiers
// concurrently.
func (g *AttemptGuard) RecordSuccesses(ctx context.Context, ids ...Identifier) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		eg.Go(func() error {
			return g.RecordSuccess(ctx, id)
		})
	}
	return eg.Wait()
}
